package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/DmitriiSeitsman/ImageFeed/internal/config"
	"github.com/DmitriiSeitsman/ImageFeed/internal/eventbus"
	httptransport "github.com/DmitriiSeitsman/ImageFeed/internal/http"
	"github.com/DmitriiSeitsman/ImageFeed/internal/http/handler"
	"github.com/DmitriiSeitsman/ImageFeed/internal/httpclient"
	"github.com/DmitriiSeitsman/ImageFeed/internal/server"
	authservice "github.com/DmitriiSeitsman/ImageFeed/internal/service/auth"
	avatarservice "github.com/DmitriiSeitsman/ImageFeed/internal/service/avatar"
	feedservice "github.com/DmitriiSeitsman/ImageFeed/internal/service/feed"
	logoutservice "github.com/DmitriiSeitsman/ImageFeed/internal/service/logout"
	profileservice "github.com/DmitriiSeitsman/ImageFeed/internal/service/profile"
	"github.com/DmitriiSeitsman/ImageFeed/internal/telemetry"
	"github.com/DmitriiSeitsman/ImageFeed/internal/tokenstore"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newHTTPClient,
			newTokenStore,
			newEventBus,
			authservice.NewService,
			avatarservice.NewService,
			newAvatarFetcher,
			profileservice.NewService,
			feedservice.NewService,
			newLogoutCoordinator,
			handler.NewSessionHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newHTTPClient(cfg config.Config, logger *zap.Logger) *httpclient.Client {
	return httpclient.New(nil, cfg.HTTPTimeout, logger)
}

func newTokenStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (tokenstore.Store, error) {
	switch cfg.TokenStoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		return tokenstore.NewRedisStore(client, logger), nil
	case "memory":
		return tokenstore.NewMemoryStore(), nil
	default:
		return tokenstore.NewFileStore(cfg.TokenStorePath, cfg.TokenStoreSecret, logger)
	}
}

func newEventBus(lc fx.Lifecycle, logger *zap.Logger) *eventbus.Bus {
	bus := eventbus.New(logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			bus.Close()
			return nil
		},
	})
	return bus
}

func newAvatarFetcher(avatars *avatarservice.Service) profileservice.AvatarFetcher {
	return avatars
}

func newLogoutCoordinator(
	store tokenstore.Store,
	client *httpclient.Client,
	logger *zap.Logger,
	profiles *profileservice.Service,
	avatars *avatarservice.Service,
	feed *feedservice.Service,
) *logoutservice.Coordinator {
	return logoutservice.NewCoordinator(store, client, logger, profiles, avatars, feed)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
