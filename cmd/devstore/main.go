package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UkralStul/nexus-sync/internal/config"
	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/UkralStul/nexus-sync/internal/logging"
	"github.com/UkralStul/nexus-sync/internal/server"
	"github.com/UkralStul/nexus-sync/internal/storage"
	"github.com/UkralStul/nexus-sync/internal/storage/inmemory"
	"github.com/UkralStul/nexus-sync/internal/storage/postgres"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	storageType := flag.String("storage", "", "Storage type (in-memory or postgres)")
	seed := flag.Bool("seed", true, "Fill in-memory storage with demo data")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *storageType != "" {
		cfg.Server.Storage = *storageType
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Server.DatabaseURL = dsn
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	var store storage.Storage
	log.Info("starting dev store", zap.String("storage", cfg.Server.Storage))
	if cfg.Server.Storage == "postgres" {
		if cfg.Server.DatabaseURL == "" {
			log.Fatal("DATABASE_URL must be set for postgres storage")
		}
		store, err = postgres.New(cfg.Server.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
	} else {
		store = inmemory.New()
		if *seed {
			// Заполним данными для ручной проверки клиента
			fillWithMockData(log, store)
		}
	}

	srv := server.New(store, server.Config{
		JWTSecret:     cfg.Server.JWTSecret,
		TokenTTL:      cfg.Server.TokenTTL,
		RequireAuth:   cfg.Server.RequireAuth,
		RatePerMinute: cfg.Server.RatePerMinute,
		Burst:         cfg.Server.Burst,
	}, log)
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("dev store listening", zap.String("addr", cfg.Server.Addr), zap.Bool("require_auth", cfg.Server.RequireAuth))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed to start", zap.Error(err))
	}
}

func fillWithMockData(log *zap.Logger, s storage.Storage) {
	ctx := context.Background()
	now := time.Now().UnixMilli()

	set := func(value any, segments ...string) {
		tree, err := storage.ToTree(value)
		if err == nil {
			err = s.Set(ctx, storage.Path(segments), tree)
		}
		if err != nil {
			log.Fatal("fillWithMockData failed", zap.Strings("path", segments), zap.Error(err))
		}
	}

	// 1. Два пользователя
	set(domain.User{ID: "demo-ana", Username: "ana", Email: "ana@example.com", Bio: "Hola!"}, "users", "demo-ana")
	set(domain.User{ID: "demo-bea", Username: "bea", Email: "bea@example.com"}, "users", "demo-bea")

	// 2. Пост с комментарием
	set(domain.Post{
		UserID:      "demo-ana",
		Username:    "ana",
		Description: "Primer post de prueba",
		Timestamp:   now - 60_000,
		Likes:       2,
		Comments:    map[string]string{domain.CommentID(now - 30_000): domain.FormatComment("bea", "Genial")},
	}, "posts", "post_demo")

	// 3. Диалог из двух сообщений
	chatID := domain.ChatID("demo-ana", "demo-bea")
	set(domain.Message{SenderID: "demo-ana", SenderName: "ana", Text: "Hola bea", Timestamp: now - 20_000, Status: domain.StatusRead}, "chats", chatID, "messages", inmemory.NewPushID())
	set(domain.Message{SenderID: "demo-bea", SenderName: "bea", Text: "Hola ana!", Timestamp: now - 10_000, Status: domain.StatusSent}, "chats", chatID, "messages", inmemory.NewPushID())

	log.Info("mock data filled", zap.String("post", "post_demo"), zap.String("chat", chatID))
}
