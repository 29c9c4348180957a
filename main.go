// Command guild-tender is the main entrypoint for the bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Opens the deletion audit store and runs the idempotent schema setup.
//   - Connects the gateway session and routes its events into the bot core
//     (commands, autoreplies, deletion auditing).
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/guild-tender/audit"
	"github.com/onnwee/guild-tender/bot"
	"github.com/onnwee/guild-tender/config"
	"github.com/onnwee/guild-tender/gateway"
	"github.com/onnwee/guild-tender/permission"
	"github.com/onnwee/guild-tender/server"
	"github.com/onnwee/guild-tender/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

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
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Bot configuration (token, prefix, owner, permissions, autoreplies)
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if cfg.Token() == "" {
		slog.Error("you have to provide a valid token in the config file")
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("guild-tender", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Audit store
	auditLog, err := audit.Open("")
	if err != nil {
		slog.Error("failed to open audit store", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := auditLog.Close(); err != nil {
			slog.Error("failed to close audit store", slog.Any("err", err))
		}
	}()
	if err := auditLog.Migrate(context.Background()); err != nil {
		slog.Error("failed to migrate audit store", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	perms := permission.NewStore(cfg)
	session := &gateway.Session{
		Token:      cfg.Token(),
		GuildID:    os.Getenv("GUILD_ID"),
		GatewayURL: os.Getenv("GATEWAY_URL"),
		BaseURL:    os.Getenv("API_BASE_URL"),
	}
	b := bot.New(cfg, perms, session, auditLog)
	session.OnMessage = b.HandleMessage
	session.OnMessageDelete = b.HandleMessageDelete

	// Operational HTTP surface
	handlers := server.NewHandlers(auditLog.DB())
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	httpSrv := &http.Server{Addr: addr, Handler: server.NewMux(handlers), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("http server listening", slog.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.Any("err", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	handlers.SetReady(true)
	err = session.Run(ctx)
	handlers.SetReady(false)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("gateway session ended", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
