package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	mcp "github.com/mcpwire/go-mcp"
	"github.com/mcpwire/go-mcp/servers/filesystem"
)

// Serves the filesystem tools over stdio. The allowed root directories are
// passed as command-line arguments.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	roots := os.Args[1:]
	if len(roots) == 0 {
		logger.Error("usage: stdio <allowed-directory> [allowed-directory...]")
		os.Exit(1)
	}

	handler, err := filesystem.NewHandler(roots)
	if err != nil {
		logger.Error("failed to create filesystem handler", "err", err)
		os.Exit(1)
	}

	transport := mcp.NewStdIO(os.Stdin, os.Stdout)

	srv := mcp.NewServer(mcp.Info{
		Name:    "filesystem",
		Version: "1.0",
	}, transport,
		mcp.WithServerRequestHandler(handler.HandleRequest),
		mcp.WithServerCapabilities(mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{},
		}),
		mcp.WithServerLogger(logger),
	)

	go srv.Serve()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", "err", err)
	}
}
