// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validator provides the citation validation service.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the LLM client, the asynchronous job
// pipeline, the credit ledger, the cleanup sweeper, and observability
// infrastructure.
//
// # Usage
//
//	cfg := validator.Config{Port: 8080, LLMBackend: "openai"}
//	svc, err := validator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rosroyros/citations-sub002/services/llm"
	"github.com/rosroyros/citations-sub002/services/validator/credits"
	"github.com/rosroyros/citations-sub002/services/validator/handlers"
	"github.com/rosroyros/citations-sub002/services/validator/jobs"
	"github.com/rosroyros/citations-sub002/services/validator/matching"
	"github.com/rosroyros/citations-sub002/services/validator/middleware"
	"github.com/rosroyros/citations-sub002/services/validator/observability"
	"github.com/rosroyros/citations-sub002/services/validator/prompts"
	"github.com/rosroyros/citations-sub002/services/validator/routes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the validator service.
//
// # Description
//
// Service abstracts the validator lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
//
// # Assumptions
//
//   - Service is fully initialized before Run() is called
//   - Run() is called at most once per Service instance
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Assumptions
	//
	//   - Caller will not modify the router
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds validator service configuration options.
//
// # Description
//
// Config centralizes all configuration for the validator service.
// Values can be populated from environment variables or
// programmatically for testing. All fields have defaults applied by
// New().
//
// # Examples
//
//	// Minimal config (uses all defaults)
//	cfg := Config{}
//
//	// Custom port and LLM backend
//	cfg := Config{
//	    Port:       8080,
//	    LLMBackend: "claude",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 8080
	Port int

	// LLMBackend specifies the LLM provider.
	// Valid values: "openai", "claude", "anthropic"
	// Default: "openai"
	LLMBackend string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "localhost:4317"
	OTelEndpoint string

	// LedgerPath is the SQLite data source for the credit ledger.
	// Default: "./data/credits.db"
	LedgerPath string

	// SweepInterval is how often the job cleanup sweeper runs.
	// Default: 1 minute
	SweepInterval time.Duration

	// EnableMetrics enables the Prometheus metrics endpoint.
	// Default: true
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// RateLimitRPS is the per-client request rate. Default: 5
	RateLimitRPS float64

	// RateLimitBurst is the per-client burst allowance. Default: 10
	RateLimitBurst int
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service coordinates:
//   - HTTP routing via Gin
//   - LLM client management
//   - The in-memory job store and background runner
//   - The SQLite credit ledger
//   - The job cleanup sweeper
//   - OpenTelemetry tracing and Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	llmClient     llm.LLMClient
	store         *jobs.Store
	runner        *jobs.Runner
	ledger        *credits.Ledger
	sweeper       *jobs.Sweeper
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a validator Service with the given configuration.
//
// # Description
//
// New initializes all components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Loads the prompt catalog
//  5. Opens the credit ledger
//  6. Creates the LLM client for the configured backend
//  7. Builds the job store, runner, and matcher
//  8. Starts the cleanup sweeper
//  9. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run validator service
//   - error: Non-nil if initialization fails
//
// # Assumptions
//
//   - Environment variables are set for the chosen LLM provider
//   - The ledger path's directory exists and is writable
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	catalog, err := prompts.Load()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to load prompt catalog: %w", err)
	}

	s.ledger, err = credits.Open(s.config.LedgerPath)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open credit ledger: %w", err)
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	s.store = jobs.NewStore()
	validationClient := jobs.NewProviderValidationClient(s.llmClient, catalog)
	s.runner = jobs.NewRunner(s.store, validationClient, s.ledger)
	matcher := matching.NewMatcher(catalog)

	s.sweeper = jobs.NewSweeper(s.store, s.config.SweepInterval)
	if err := s.sweeper.Start(context.Background()); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to start cleanup sweeper: %w", err)
	}

	s.initRouter(handlers.NewHandler(s.store, s.runner, matcher, s.llmClient))

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting validator server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "openai"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "localhost:4317"
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = "./data/credits.db"
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 1 * time.Minute
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 5
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 10
	}
	cfg.EnableMetrics = true

	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Limitations
//
//   - Uses insecure gRPC connection (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("validator-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initLLMClient initializes the LLM provider client.
//
// # Assumptions
//
//   - Required environment variables are set for the chosen provider
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "claude", "anthropic":
		s.llmClient, err = llm.NewAnthropicClient()
		slog.Info("Using Anthropic (Claude) LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to openai", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewOpenAIClient()
	}

	return err
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter(h *handlers.Handler) {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	registerCitationStyleValidation()

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("validator-service"))

	limiter := middleware.NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)
	routes.SetupRoutes(s.router, h, limiter)
}

// supportedStyles are the citation styles the prompt catalog covers.
var supportedStyles = map[string]bool{
	"apa7":    true,
	"mla9":    true,
	"chicago": true,
	"harvard": true,
}

// registerCitationStyleValidation installs the citationstyle binding
// rule used by the request DTOs.
func registerCitationStyleValidation() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("citationstyle", func(fl validator.FieldLevel) bool {
			return supportedStyles[fl.Field().String()]
		})
	}
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.sweeper != nil {
		if err := s.sweeper.Stop(); err != nil {
			slog.Warn("sweeper stop error", "error", err)
		}
	}

	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			slog.Warn("ledger close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
