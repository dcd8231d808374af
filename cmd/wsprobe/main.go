// wsprobe connects to a realtime server and prints incoming frames to
// the console. Useful for verifying credentials and watching the
// reconnect behavior against a live endpoint.
//
// Usage: go run ./cmd/wsprobe -host realtime.example.com -token $TOKEN
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmelnik/relaylink/internal/connection"
	"github.com/dmelnik/relaylink/internal/netcheck"
)

func main() {
	host := flag.String("host", "", "realtime server host (host or host:port)")
	token := flag.String("token", "", "auth token")
	probeURL := flag.String("probe-url", "", "reachability probe URL (optional)")
	send := flag.String("send", "", "payload to send once connected (optional)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *host == "" || *token == "" {
		logger.Error("both -host and -token are required")
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	checker := netcheck.FromProbeURL(*probeURL, 5*time.Second)
	mgr := connection.NewManager(connection.DefaultManagerConfig(*host), checker, logger)

	mgr.Register(connection.EventOpen, func(ev connection.Event) {
		fmt.Printf("[OPEN] session=%s\n", ev.SessionID)
		if *send != "" {
			mgr.Send([]byte(*send))
		}
	})
	mgr.Register(connection.EventMessage, func(ev connection.Event) {
		fmt.Printf("[FRAME] %s\n", ev.Data)
	})
	mgr.Register(connection.EventError, func(ev connection.Event) {
		fmt.Printf("[ERROR] %v\n", ev.Err)
	})
	mgr.Register(connection.EventClose, func(ev connection.Event) {
		fmt.Printf("[CLOSE] code=%d err=%v\n", ev.Code, ev.Err)
	})

	mgr.Connect(ctx, *token)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := mgr.Stats()
				logger.Info("stats",
					"state", stats.State,
					"queue_depth", stats.QueueDepth,
					"queue_dropped", stats.QueueDropped,
					"reconnect_attempts", stats.ReconnectAttempts,
				)
			}
		}
	}()

	logger.Info("probing started - press Ctrl+C to stop")

	<-ctx.Done()

	logger.Info("shutting down...")
	mgr.Disconnect()
	logger.Info("shutdown complete")
}
