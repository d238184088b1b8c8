package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/academic-reader/internal/app"
	"github.com/Epistemic-Technology/academic-reader/internal/config"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/internal/permission"
	"github.com/Epistemic-Technology/academic-reader/server"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.LoggerConfig())
	if err != nil {
		// Fall back to stderr if logger initialization fails
		panic(err)
	}

	log.Info("Starting academic-reader MCP server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdio has no one to answer a permission prompt
	a, err := app.New(ctx, cfg, log, app.Options{Challenger: permission.DenyAll})
	if err != nil {
		log.Fatal("Failed to initialize: %v", err)
	}
	defer a.Close()

	srv := server.CreateServer(server.NewEnv(a, log), log)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Error("Server failed: %v", err)
		a.Close()
		os.Exit(1)
	}
}
