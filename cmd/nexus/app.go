package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/UkralStul/nexus-sync/internal/auth"
	"github.com/UkralStul/nexus-sync/internal/config"
	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/UkralStul/nexus-sync/internal/logging"
	"github.com/UkralStul/nexus-sync/internal/media"
	"github.com/UkralStul/nexus-sync/internal/remote"
	"github.com/UkralStul/nexus-sync/internal/repository"
	"github.com/UkralStul/nexus-sync/internal/session"
	"github.com/UkralStul/nexus-sync/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app - собранные зависимости клиента.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *remote.Client
	sessions *session.Manager
	auth     *auth.Client
	repo     *repository.Repository
	sink     telemetry.Sink

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	settings, err := a.settingsStore()
	if err != nil {
		return nil, err
	}
	a.sessions, err = session.NewManager(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	a.store, err = remote.New(cfg.Store.URL,
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Store.Timeout}),
		remote.WithLogger(log.Named("remote")),
		remote.WithTokenSource(a.sessions.AuthToken),
		remote.WithBreaker(remote.BreakerSettings{
			MaxFailures: cfg.Breaker.MaxFailures,
			Interval:    cfg.Breaker.Interval,
			Timeout:     cfg.Breaker.Timeout,
		}),
	)
	if err != nil {
		return nil, err
	}

	host, err := a.imageHost(ctx)
	if err != nil {
		return nil, err
	}

	sinks := telemetry.Multi{telemetry.LogSink{Log: log.Named("telemetry")}}
	if len(cfg.Telemetry.Brokers) > 0 {
		k := telemetry.NewKafkaSink(cfg.Telemetry.Brokers, cfg.Telemetry.Topic, log)
		a.closers = append(a.closers, k.Close)
		sinks = append(sinks, k)
	}
	a.sink = sinks

	a.auth = auth.New(cfg.Auth.BaseURL, cfg.Auth.APIKey, a.store, a.sessions, log.Named("auth"))
	a.repo = repository.New(a.store, host, log.Named("repository"))
	return a, nil
}

func (a *app) settingsStore() (session.Store, error) {
	c := a.cfg.Session
	switch c.Backend {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		cli := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		a.closers = append(a.closers, cli.Close)
		return session.NewRedisStore(cli, c.RedisPrefix), nil
	default:
		path := c.File
		if path == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("settings dir: %w", err)
			}
			path = filepath.Join(dir, "nexus", "settings.json")
		}
		return session.NewFileStore(path), nil
	}
}

func (a *app) imageHost(ctx context.Context) (media.Host, error) {
	c := a.cfg.Images
	switch c.Host {
	case "imgbb":
		return media.NewImgHost(c.ImgbbURL, c.ImgbbKey), nil
	case "s3":
		h, err := media.NewS3Host(ctx, media.S3Config{
			Region:    c.S3.Region,
			Bucket:    c.S3.Bucket,
			Endpoint:  c.S3.Endpoint,
			PublicURL: c.S3.PublicURL,
			Prefix:    c.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 image host: %w", err)
		}
		return h, nil
	default:
		return media.InlineHost{MaxWidth: c.MaxWidth, Quality: c.Quality}, nil
	}
}

// me возвращает текущую сессию и профиль. Профиль может отсутствовать.
func (a *app) me(ctx context.Context) (*session.Session, *domain.User, error) {
	s := a.sessions.Current()
	if s == nil {
		return nil, nil, repository.ErrNotLoggedIn
	}
	u, err := a.repo.GetUser(ctx, s.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, nil, err
		}
		u = &domain.User{ID: s.UserID, Username: repository.DefaultUsername}
	}
	return s, u, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Debug("close failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
