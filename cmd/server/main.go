package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pongarena/internal/auth"
	"pongarena/internal/config"
	"pongarena/internal/handlers"
	"pongarena/internal/lobby"
	"pongarena/internal/netwrk"
	"pongarena/internal/routes"
	"pongarena/internal/server"
	"pongarena/internal/store"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config")
	flag.Parse()

	c, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger := setupLogger(c.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorders := store.Multi{store.Log{Logger: logger}}
	var history handlers.History

	if c.Postgres.DSN != "" {
		db, err := store.OpenPostgres(ctx, c.Postgres.DSN)
		if err != nil {
			logger.Error("Failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		if c.Postgres.Migrate {
			if err := store.Migrate(ctx, db); err != nil {
				logger.Error("Failed to apply migrations", slog.Any("error", err))
				os.Exit(1)
			}
			logger.Info("Database migrations applied successfully")
		}
		pg := store.Postgres{DB: db}
		recorders = append(recorders, pg)
		history = pg
	}

	if c.NATS.URL != "" {
		nc, err := store.ConnectNATS(c.NATS.URL, logger)
		if err != nil {
			logger.Error("Failed to connect to nats", slog.Any("error", err))
			os.Exit(1)
		}
		defer nc.Drain()
		recorders = append(recorders, store.NATS{Conn: nc})
	}

	queues := make([]lobby.QueueKind, 0, len(c.Queues))
	for _, q := range c.Queues {
		kind, err := lobby.ParseQueueKind(q)
		if err != nil {
			logger.Error("invalid queue kind", slog.String("queue", q), slog.Any("error", err))
			os.Exit(1)
		}
		queues = append(queues, kind)
	}

	authn := auth.Authenticator{Secret: []byte(c.Auth.JWTSecret), AllowGuests: c.Auth.AllowGuests}
	srv := server.New(server.Options{
		Rules:         c.Match,
		Queues:        queues,
		Recorder:      recorders,
		Authenticator: authn,
		HelloTimeout:  c.TCP.HelloTimeout,
		Logger:        logger,
	})

	if c.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	handler := &handlers.Handler{Server: srv, History: history}
	routes.PublicRoutes(r, handler)
	routes.ProtectedRoutes(r, handler, authn)

	httpServer := &http.Server{
		Addr:        c.HTTP.Addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info("Server running", slog.String("addr", c.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.Any("error", err))
			stop()
		}
	}()

	if c.TCP.Addr != "" {
		go func() {
			logger.Info("TCP listener running", slog.String("addr", c.TCP.Addr))
			if err := netwrk.Listen(ctx, c.TCP.Addr, srv.ServeTCP, logger); err != nil {
				logger.Error("tcp listener failed", slog.Any("error", err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", slog.Any("error", err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("match shutdown did not finish", slog.Any("error", err))
	}
	logger.Info("server stopped")
}

func setupLogger(c config.LogConfig) *slog.Logger {
	level, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
