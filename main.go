// Command backend is the main entrypoint for the barrens-chat API and room
// workers. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres, runs idempotent migrations, and seeds the
//     default personas.
//   - Starts the persona scheduler that posts into the room while humans
//     are present.
//   - Exposes the HTTP server with /ws, /api/messages, /healthz, /readyz,
//     and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/barrens-chat/backend/auth"
	"github.com/onnwee/barrens-chat/backend/chat"
	"github.com/onnwee/barrens-chat/backend/config"
	"github.com/onnwee/barrens-chat/backend/db"
	"github.com/onnwee/barrens-chat/backend/persona"
	"github.com/onnwee/barrens-chat/backend/server"
	"github.com/onnwee/barrens-chat/backend/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load("backend/.env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("barrens-chat", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Run database migrations: versioned migrations (golang-migrate) from
	// db/migrations/ first, embedded SQL (db.Migrate) as fallback for
	// deployments without a schema_migrations table.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
	}
	if err := db.SeedPersonas(context.Background(), database); err != nil {
		slog.Error("failed to seed personas", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Room wiring: store -> hub -> router -> gateway, plus the scheduler.
	store := db.NewStore(database)
	registry := chat.NewRegistry()
	hub := server.NewHub(slog.Default())
	router := chat.NewRouter(store, hub, slog.Default())
	parser := chat.NewParser()
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	gateway := server.NewGateway(verifier, registry, router, parser, hub,
		cfg.RateLimitWindow, cfg.RateLimitMax, slog.Default())

	// Persona generation is optional: without an API key the personas stay
	// in the roster but never post.
	var generator chat.Generator = persona.Disabled{}
	personaEnabled := false
	if err := cfg.ValidatePersonaReady(); err != nil {
		slog.Info("persona generation disabled", slog.Any("reason", err))
	} else {
		gem, err := persona.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Error("failed to create persona generator", slog.Any("err", err))
			os.Exit(1)
		}
		generator = gem
		personaEnabled = true
	}
	scheduler := chat.NewScheduler(store, generator, router, registry,
		cfg.PersonaMinInterval, cfg.PersonaMaxInterval, slog.Default())
	go scheduler.Run(ctx)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server
	handlers := server.NewHandlers(database, store, verifier, personaEnabled)
	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, server.NewMux(ctx, handlers, gateway)); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
	hub.Shutdown()
}
