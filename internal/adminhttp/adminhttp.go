// Package adminhttp is the optional liveness/metrics endpoint from
// SPEC_FULL.md §4.10: a tiny server exposing process-level counters, never game
// state. It listens on whatever address -admin-addr names; it does not check
// that the address is a loopback one. Grounded on the teacher's
// internal/network/server/server.go handleHealth/monitorStats, which uses
// plain net/http with http.HandleFunc rather than a router framework.
package adminhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"kierki.dev/kierki/internal/applog"
)

var adminLogger = applog.Nop()

// SetLogger installs the base logger Server logs unexpected shutdowns through.
func SetLogger(l *applog.Logger) { adminLogger = l }

// Counters are the process-level figures /metrics reports. Every field is
// updated with atomic.AddUint64 from whichever goroutine observes the event;
// none of them carry hands, tricks, or scores.
type Counters struct {
	ConnectionsAccepted uint64
	MessagesDecoded     uint64
	MalformedMessages   uint64
	TimeoutsFired       uint64
}

// Server is the admin HTTP listener. A nil *Server is valid and every method
// on it is a no-op, so callers can unconditionally hold one even when
// -admin-addr was not passed.
type Server struct {
	httpServer *http.Server
	ready      atomic.Bool
	counters   Counters
}

// New constructs a Server bound to addr (e.g. "127.0.0.1:8080"). It does not
// start listening until Start is called.
func New(addr string) *Server {
	if addr == "" {
		return nil
	}
	s := &Server{}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]uint64{
		"connections_accepted": atomic.LoadUint64(&s.counters.ConnectionsAccepted),
		"messages_decoded":     atomic.LoadUint64(&s.counters.MessagesDecoded),
		"malformed_messages":   atomic.LoadUint64(&s.counters.MalformedMessages),
		"timeouts_fired":       atomic.LoadUint64(&s.counters.TimeoutsFired),
	})
}

// Start begins serving in a background goroutine. Call Stop to shut down.
func (s *Server) Start() {
	if s == nil {
		return
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			adminLogger.Errorf("admin http server stopped unexpectedly: %v", err)
		}
	}()
}

// Stop shuts the server down, waiting up to 2 seconds for in-flight requests.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		adminLogger.Debugf("admin http server shutdown error: %v", err)
	}
}

// MarkReady flips /healthz to report 200; call it once the match starts
// accepting connections.
func (s *Server) MarkReady() {
	if s == nil {
		return
	}
	s.ready.Store(true)
}

func (s *Server) IncConnectionsAccepted() {
	if s == nil {
		return
	}
	s.inc(&s.counters.ConnectionsAccepted)
}
func (s *Server) IncMessagesDecoded() {
	if s == nil {
		return
	}
	s.inc(&s.counters.MessagesDecoded)
}
func (s *Server) IncMalformedMessages() {
	if s == nil {
		return
	}
	s.inc(&s.counters.MalformedMessages)
}
func (s *Server) IncTimeoutsFired() {
	if s == nil {
		return
	}
	s.inc(&s.counters.TimeoutsFired)
}

func (s *Server) inc(counter *uint64) {
	if s == nil {
		return
	}
	atomic.AddUint64(counter, 1)
}
