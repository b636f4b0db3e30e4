package protocol

import "fmt"

// DecodeError is the single error kind a failed decode can produce: spec.md §4.1
// defines decode failure as one uniform "malformed" outcome carrying a
// human-readable reason, never anything the receiver needs to branch on.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed message: %s", e.Reason)
}

func malformed(format string, args ...interface{}) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}
