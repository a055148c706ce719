package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/himanishpuri/AmramAI/internal/config"
	"github.com/himanishpuri/AmramAI/pkg/amram"
	"github.com/himanishpuri/AmramAI/pkg/logger"
)

var version = "dev"

var (
	configPath      string
	addr            string
	allowedOrigins  string
	separateTimeout time.Duration
)

func init() {
	flag.StringVar(&configPath, "config", getEnvOrDefault("AMRAM_CONFIG", ""), "Path to config.yaml")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides server.addr / AMRAM_SERVER_ADDR)")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.DurationVar(&separateTimeout, "separate-timeout", 0, "Upper bound for one separation request (0 for none)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseOrigins(s string) []string {
	if s == "*" {
		return []string{"*"}
	}
	origins := strings.Split(s, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		logger.GetLogger().Errorf("Server failed: %v", err)
		os.Exit(1)
	}
}

func run() error {
	log := logger.GetLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.ApplyLogging(); err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer log.Close()

	if log.Level() > logger.DEBUG {
		gin.SetMode(gin.ReleaseMode)
	}

	service, err := amram.NewService(cfg.ServiceOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Addr:            cfg.Server.Addr,
		DataDir:         cfg.DataDir,
		Model:           cfg.Model,
		SampleRate:      cfg.SampleRate,
		AllowedOrigins:  parseOrigins(allowedOrigins),
		SeparateTimeout: separateTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Start(ctx)
}
