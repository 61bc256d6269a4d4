// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command validator starts the citation validator HTTP server.
//
// This is the main entry point for the containerized validator service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - VALIDATOR_PORT: HTTP server port (default: 8080)
//   - LLM_BACKEND_TYPE: LLM provider - openai, claude (default: openai)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: localhost:4317)
//   - CREDIT_LEDGER_PATH: SQLite credit ledger path (default: ./data/credits.db)
//   - JOB_SWEEP_INTERVAL_SECONDS: cleanup sweeper interval (default: 60)
//   - GIN_MODE: Gin framework mode (debug, release, test)
//
// # Usage
//
//	# Build
//	go build -o validator ./cmd/validator
//
//	# Run
//	./validator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/rosroyros/citations-sub002/services/validator"
)

func main() {
	// Local development convenience; production sets real env vars.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file")
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := validator.Config{
		Port:          getEnvInt("VALIDATOR_PORT", 8080),
		LLMBackend:    getEnvString("LLM_BACKEND_TYPE", "openai"),
		OTelEndpoint:  getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		LedgerPath:    getEnvString("CREDIT_LEDGER_PATH", "./data/credits.db"),
		SweepInterval: time.Duration(getEnvInt("JOB_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
		GinMode:       os.Getenv("GIN_MODE"),
	}

	slog.Info("Starting validator",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"ledger_path", cfg.LedgerPath,
	)

	svc, err := validator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create validator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Validator error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
