package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/arklim/chat-account-api/internal/infra/app"
	"github.com/arklim/chat-account-api/internal/infra/config"
)

var (
	envFile     = flag.String("env-file", ".env", "dotenv file read before the environment; a missing file is ignored")
	checkConfig = flag.Bool("check-config", false, "validate the configuration and exit")
)

func main() {
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		log.Fatalf("failed to load env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *checkConfig {
		log.Printf("config ok: app=%s env=%s listen=%s:%d kafka=%t mongo=%t tracing=%t",
			cfg.App.Name, cfg.App.Env, cfg.App.Host, cfg.App.Port,
			cfg.Kafka.Enabled, cfg.Mongo.Enabled, cfg.Telemetry.TracingEnabled)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init account API: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Printf("account API stopped: %v", err)
		os.Exit(1)
	}
}

// loadEnvFile does not override variables already set in the environment.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
