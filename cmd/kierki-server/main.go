// Command kierki-server runs one match to completion per spec.md §6: it loads
// a deal schedule, listens for four seats, and plays the schedule out.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"kierki.dev/kierki/internal/adminhttp"
	"kierki.dev/kierki/internal/applog"
	"kierki.dev/kierki/internal/config"
	"kierki.dev/kierki/internal/dealfile"
	"kierki.dev/kierki/internal/matchserver"
	"kierki.dev/kierki/internal/serverloop"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.ParseServer(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}

	if err := applog.SetLevel(cfg.LogLevel); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}
	logger := applog.New("kierki-server", os.Stdout)
	matchserver.SetLogger(logger)
	adminhttp.SetLogger(logger)

	deals, err := dealfile.Load(cfg.File)
	if err != nil {
		logger.Errorf("failed to load deal schedule: %v", err)
		return 1
	}

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(int(cfg.Port)))
	if err != nil {
		logger.Errorf("failed to bind listening socket: %v", err)
		return 1
	}
	defer listener.Close()

	admin := adminhttp.New(cfg.AdminAddr)
	admin.Start()
	admin.MarkReady()
	defer admin.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := serverloop.New(listener, deals, time.Duration(cfg.Timeout)*time.Second, admin, logger)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Errorf("server loop exited with an error: %v", err)
		return 1
	}

	logger.Infof("match complete, exiting")
	return 0
}
