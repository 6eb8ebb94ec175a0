package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/api"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/config"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/storage"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/stream"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port, seed string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task API",
		Long: `Run the task API. Tasks live in Azure Table Storage when STORAGE_CONNECTION_STRING
is set and in memory otherwise. REDIS_CONNECTION_STRING enables the read cache,
idempotency keys and cross-instance change fan-out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			if seed != "" {
				cfg.SeedFile = seed
			}
			logger := newLogger(cfg.Debug)
			srv, err := newServer(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer srv.close()
			return srv.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	cmd.Flags().StringVar(&seed, "seed", "", "YAML fixture loaded at startup (overrides SEED_FILE)")
	return cmd
}

// server is one running API instance and the collaborators it owns.
type server struct {
	cfg    config.Server
	logger *log.Logger

	e      *echo.Echo
	rc     *redis.Client
	cache  *storage.Cache
	broker *stream.Broker
	jwks   *keyfunc.JWKS
	tp     *sdktrace.TracerProvider
	flush  func()
}

func newServer(ctx context.Context, cfg config.Server, logger *log.Logger) (*server, error) {
	s := &server{cfg: cfg, logger: logger, broker: stream.NewBroker()}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	var store storage.Store
	if cfg.UseTables() {
		tables, err := storage.New(cfg.StorageConnStr, cfg.TasksTable, cfg.UsersTable)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		store = tables
	} else {
		logger.Warn("STORAGE_CONNECTION_STRING not set, keeping tasks in memory")
		store = storage.NewMemory()
	}
	if cfg.SeedFile != "" {
		seed, err := storage.LoadSeed(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		if err := seed.Apply(ctx, store, time.Now()); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		logger.WithFields(log.Fields{"users": len(seed.Users), "tasks": len(seed.Tasks)}).Info("seed applied")
	}

	var sinks []api.ChangeSink
	var deduper api.Deduper
	if cfg.RedisConnStr != "" {
		opts, err := config.RedisOptions(cfg.RedisConnStr)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		s.rc = redis.NewClient(opts)
		s.cache = storage.NewCache(store, s.rc, cfg.CacheTTL)
		store = s.cache
		deduper = api.NewRedisDeduper(s.rc, cfg.DeduperTTL)
		// Changes reach local subscribers through the channel like any other instance's.
		sinks = append(sinks, stream.NewPublisher(s.rc, cfg.UpdatesChannel))
	} else {
		sinks = append(sinks, s.broker)
	}
	if cfg.UseTables() && cfg.EventsQueue != "" {
		q, err := storage.NewEventQueue(cfg.StorageConnStr, cfg.EventsQueue)
		if err != nil {
			return nil, fmt.Errorf("event queue: %w", err)
		}
		sinks = append(sinks, q)
	}

	auth, err := s.newAuth(ctx)
	if err != nil {
		return nil, err
	}

	s.tp = sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(s.tp)

	s.e = echo.New()
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
		ExposeHeaders: []string{"X-Next-Page-Token", "Idempotent-Replayed"},
	}))
	s.e.Use(api.DecompressBodies(0))
	s.flush = api.Register(s.e, api.Deps{
		Store:    store,
		Auth:     auth,
		Deduper:  deduper,
		Sinks:    sinks,
		Broker:   s.broker,
		PageSize: cfg.PageSize,
	}, logger)
	ok = true
	return s, nil
}

func (s *server) newAuth(ctx context.Context) (*api.Auth, error) {
	if s.cfg.LocalSecret != "" {
		s.logger.Warn("using local shared-secret auth")
		return api.NewLocalAuth([]byte(s.cfg.LocalSecret)), nil
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", s.cfg.AuthDomain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			s.logger.WithError(err).Warn("jwks refresh failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	s.jwks = jwks
	return api.NewAuth(jwks, s.cfg.AuthAudience, "https://"+s.cfg.AuthDomain+"/"), nil
}

// applyRemote handles a change published by any instance, this one included.
func (s *server) applyRemote(ctx context.Context, ch domain.TaskChange) {
	if s.cache != nil {
		s.cache.Evict(ctx, ch.TeamID)
	}
	s.broker.Notify(ch)
}

// run serves HTTP and, with Redis configured, relays the change channel
// until ctx is done.
func (s *server) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.WithField("port", s.cfg.Port).Info("task api listening")
		if err := s.e.Start(":" + s.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.e.Shutdown(sctx)
	})
	if s.rc != nil {
		g.Go(func() error {
			stream.SubscribeUpdates(gctx, s.logger, s.rc, s.cfg.UpdatesChannel, func(ch domain.TaskChange) {
				s.applyRemote(gctx, ch)
			})
			return nil
		})
	}
	err := g.Wait()
	s.logger.Info("task api stopped")
	return err
}

func (s *server) close() {
	if s.flush != nil {
		s.flush()
	}
	if s.jwks != nil {
		s.jwks.EndBackground()
	}
	if s.tp != nil {
		if err := s.tp.Shutdown(context.Background()); err != nil {
			s.logger.WithError(err).Warn("tracer shutdown failed")
		}
	}
	if s.rc != nil {
		if err := s.rc.Close(); err != nil {
			s.logger.WithError(err).Warn("redis close failed")
		}
	}
}
