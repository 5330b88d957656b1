package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	mcp "github.com/mcpwire/go-mcp"
	"github.com/mcpwire/go-mcp/servers/everything"
)

// Serves the everything demo server over SSE on localhost:8080.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	demo := everything.NewServer()

	transport := mcp.NewSSEServer("http://localhost:8080/message")

	mux := http.NewServeMux()
	mux.Handle("/sse", transport.HandleSSE())
	mux.Handle("/message", transport.HandleMessage())

	httpSrv := &http.Server{
		Addr:              ":8080",
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv := mcp.NewServer(mcp.Info{
		Name:    "everything",
		Version: "1.0",
	}, transport,
		mcp.WithServerRequestHandler(demo.HandleRequest),
		mcp.WithResourceUpdater(demo),
		mcp.WithLogStreamer(demo),
		mcp.WithServerLogger(logger),
	)

	go srv.Serve()
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
		}
	}()

	logger.Info("serving on :8080")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown http server", "err", err)
	}

	// Close the demo server first so its updater streams end; Shutdown waits
	// for them to drain.
	demo.Close()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", "err", err)
	}
}
