// Command kierki-client connects to a running match and plays one seat, per
// spec.md §6: interactively from a terminal, or automatically via the
// best-move policy with -a.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"kierki.dev/kierki/internal/applog"
	"kierki.dev/kierki/internal/clientloop"
	"kierki.dev/kierki/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.ParseClient(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}

	if err := applog.SetLevel(cfg.LogLevel); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 1
	}
	logger := applog.New("kierki-client", os.Stdout)

	network := dialNetwork(cfg.IPVersion)
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port)))
	conn, err := net.Dial(network, addr)
	if err != nil {
		logger.Errorf("failed to connect to server: %v", err)
		return 1
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = clientloop.Run(ctx, conn, cfg.Seat, cfg.Automatic, os.Stdin, os.Stdout, logger)
	if err != nil && ctx.Err() == nil {
		logger.Errorf("client exited with an error: %v", err)
		return 1
	}

	return 0
}

func dialNetwork(ipVersion string) string {
	switch ipVersion {
	case "4":
		return "tcp4"
	case "6":
		return "tcp6"
	default:
		return "tcp"
	}
}
