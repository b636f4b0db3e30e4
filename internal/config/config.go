// Package config parses and validates the CLI flags for both binaries, per
// spec.md §6, plus the additional ambient flags this expansion adds
// (-admin-addr and -config on the server, -log-level on both). Grounded on the teacher's internal/config.Load,
// which fills in defaults and checks required fields by hand rather than
// through a struct-tag validation library.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"kierki.dev/kierki/internal/card"
)

// ServerConfig holds kierki-server's CLI flags.
type ServerConfig struct {
	Port      uint16
	File      string
	Timeout   int
	AdminAddr string
	LogLevel  string
}

// ClientConfig holds kierki-client's CLI flags.
type ClientConfig struct {
	Host      string
	Port      uint16
	IPVersion string
	Seat      card.Seat
	Automatic bool
	LogLevel  string
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func (c ServerConfig) validate() error {
	if c.Port == 0 {
		return errors.New("config: -p is required")
	}
	if c.File == "" {
		return errors.New("config: -f is required")
	}
	if c.Timeout < 1 {
		return errors.New("config: -t must be at least 1")
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("config: invalid -log-level %q", c.LogLevel)
	}
	return nil
}

func (c ClientConfig) validate() error {
	if c.Host == "" {
		return errors.New("config: -h is required")
	}
	if c.Port == 0 {
		return errors.New("config: -p is required")
	}
	if c.IPVersion != "" && c.IPVersion != "4" && c.IPVersion != "6" {
		return fmt.Errorf("config: invalid IP version %q", c.IPVersion)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("config: invalid -log-level %q", c.LogLevel)
	}
	return nil
}

// overlay is the shape of the optional -config YAML file: default values
// applied after flags are parsed, only to flags the user did not pass, so a
// flag the user actually passes always wins.
type overlay struct {
	Timeout  int    `yaml:"timeout"`
	LogLevel string `yaml:"log_level"`
}

func loadOverlay(path string) (overlay, error) {
	var o overlay
	if path == "" {
		return o, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("config: read overlay file: %w", err)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("config: parse overlay file: %w", err)
	}
	return o, nil
}

// ParseServer parses args (typically os.Args[1:]) into a validated
// ServerConfig. A fatal parse or validation error is the "fatal-init" error
// kind from spec.md §7.
func ParseServer(args []string) (ServerConfig, error) {
	fs := flag.NewFlagSet("kierki-server", flag.ContinueOnError)
	configFile := fs.String("config", "", "optional YAML file overlaying default timeout and log level")
	port := fs.Uint("p", 0, "port to listen on (required)")
	file := fs.String("f", "", "deal schedule file (required)")
	timeout := fs.Int("t", 5, "per-connection reply timeout in seconds")
	adminAddr := fs.String("admin-addr", "", "optional localhost address for the liveness/metrics endpoint")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, fmt.Errorf("config: parse server flags: %w", err)
	}

	ov, err := loadOverlay(*configFile)
	if err != nil {
		return ServerConfig{}, err
	}
	if !flagWasSet(fs, "t") && ov.Timeout > 0 {
		*timeout = ov.Timeout
	}
	if !flagWasSet(fs, "log-level") && ov.LogLevel != "" {
		*logLevel = ov.LogLevel
	}

	if *port > 65535 {
		return ServerConfig{}, fmt.Errorf("config: -p %d is out of range for a port", *port)
	}

	cfg := ServerConfig{
		Port:      uint16(*port),
		File:      *file,
		Timeout:   *timeout,
		AdminAddr: *adminAddr,
		LogLevel:  *logLevel,
	}
	if err := cfg.validate(); err != nil {
		return ServerConfig{}, fmt.Errorf("config: invalid server configuration: %w", err)
	}
	return cfg, nil
}

// ParseClient parses args into a validated ClientConfig.
func ParseClient(args []string) (ClientConfig, error) {
	fs := flag.NewFlagSet("kierki-client", flag.ContinueOnError)
	host := fs.String("h", "", "server host (required)")
	port := fs.Uint("p", 0, "server port (required)")
	ipv4 := fs.Bool("4", false, "force IPv4")
	ipv6 := fs.Bool("6", false, "force IPv6")
	seatN := fs.Bool("N", false, "sit North")
	seatE := fs.Bool("E", false, "sit East")
	seatS := fs.Bool("S", false, "sit South")
	seatW := fs.Bool("W", false, "sit West")
	automatic := fs.Bool("a", false, "automatic mode (no interactive input)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return ClientConfig{}, fmt.Errorf("config: parse client flags: %w", err)
	}

	var ipVersion string
	switch {
	case *ipv4 && *ipv6:
		return ClientConfig{}, errors.New("config: -4 and -6 are mutually exclusive")
	case *ipv4:
		ipVersion = "4"
	case *ipv6:
		ipVersion = "6"
	}

	seat, err := chosenSeat(*seatN, *seatE, *seatS, *seatW)
	if err != nil {
		return ClientConfig{}, err
	}

	if *port > 65535 {
		return ClientConfig{}, fmt.Errorf("config: -p %d is out of range for a port", *port)
	}

	cfg := ClientConfig{
		Host:      *host,
		Port:      uint16(*port),
		IPVersion: ipVersion,
		Seat:      seat,
		Automatic: *automatic,
		LogLevel:  *logLevel,
	}
	if err := cfg.validate(); err != nil {
		return ClientConfig{}, fmt.Errorf("config: invalid client configuration: %w", err)
	}
	return cfg, nil
}

func chosenSeat(n, e, s, w bool) (card.Seat, error) {
	picks := []struct {
		chosen bool
		seat   card.Seat
	}{
		{n, card.North}, {e, card.East}, {s, card.South}, {w, card.West},
	}
	var seat card.Seat
	count := 0
	for _, p := range picks {
		if p.chosen {
			seat = p.seat
			count++
		}
	}
	if count != 1 {
		return 0, errors.New("config: exactly one of -N -E -S -W is required")
	}
	return seat, nil
}

func flagWasSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
