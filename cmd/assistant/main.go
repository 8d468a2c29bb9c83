package main

import (
	"context"
	"log"
	"os"

	appconfig "github.com/tiempoactualizado/mail-assistant/internal/config"
	"github.com/tiempoactualizado/mail-assistant/internal/server"
	pkgconfig "github.com/tiempoactualizado/mail-assistant/pkg/config"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
)

func main() {
	ctx := context.Background()

	// Optional YAML config file, environment variables take precedence
	configFile := os.Getenv("CONFIG_FILE")

	var cfg appconfig.AppConfig
	if err := pkgconfig.GetConfig(&cfg, configFile, true); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger := logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
	})

	cfg.LogConfig(appLogger)

	srv, err := server.New(ctx, &cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize server", logger.ErrorField(err))
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		appLogger.Error("Server exited with error", logger.ErrorField(err))
		os.Exit(1)
	}

	appLogger.Info("Server shut down cleanly")
}
