package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/usersvc/internal/config"
	"github.com/dropDatabas3/usersvc/internal/http/server"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("USERSVC_CONFIG"), "Path to YAML config (optional)")
	envFile := flag.String("env-file", ".env", "Path to .env file (optional)")
	flag.Parse()

	// .env es opcional: en contenedor todo llega por entorno
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Service.Version == "1.0.0" && version != "dev" {
		cfg.Service.Version = version
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg)
	if err != nil {
		log.Fatal("build failed", logger.Err(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("close failed", logger.Err(err))
		}
	}()

	if err := server.Run(ctx, app); err != nil {
		log.Error("server stopped with error", logger.Err(err))
		return
	}
	log.Info("bye")
}
