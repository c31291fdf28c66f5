package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flowscope/internal/analysis"
	"flowscope/internal/api"
	"flowscope/internal/assistant"
	"flowscope/internal/cache"
	"flowscope/internal/config"
	"flowscope/internal/logs"
	"flowscope/internal/metrics"
	"flowscope/internal/notify"
	"flowscope/internal/report"
	"flowscope/internal/retention"
	"flowscope/internal/risk"
	"flowscope/internal/seed"
	"flowscope/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, ring, err := logs.New(logs.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "flowscope",
		BufferSize:  cfg.Log.Buffer,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, ring)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.close()

	return a.run(ctx)
}

// app is the wired process: one store, the HTTP server and the background loops.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Registry
	store    store.Store
	handler  http.Handler
	server   *http.Server
	sweeper  *retention.Sweeper
	notifier *notify.Notifier
	prober   *notify.Prober
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, ring *logs.Ring) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.NewRegistry()}
	ready := false
	defer func() {
		if !ready {
			a.close()
		}
	}()

	// Store
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = st

	// Seed data
	if err := a.seed(ctx); err != nil {
		return nil, err
	}

	// Vitals cache
	kv, expirers, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}
	vitalsCache := cache.NewVitalsCache(kv, cfg.Cache.TTL, a.metrics, logger.Named("cache"))

	// Analysis
	agg := risk.NewAggregator(risk.Messages{
		Critical:   cfg.Report.Messages.Critical,
		Concerning: cfg.Report.Messages.Concerning,
		Healthy:    cfg.Report.Messages.Healthy,
		Emergency:  cfg.Report.Messages.Emergency,
	})
	analyzer, err := analysis.NewFromConfig(analysis.Config{
		Mode: analysis.Mode(cfg.Analysis.Mode),
		Seed: cfg.Analysis.Seed,
		Remote: analysis.RemoteConfig{
			URL:     cfg.Analysis.Remote.URL,
			Timeout: cfg.Analysis.Remote.Timeout,
			Retries: cfg.Analysis.Remote.Retries,
			Token:   cfg.Analysis.Remote.Token,
		},
		Metrics: a.metrics,
	}, agg, logger.Named("analysis"))
	if err != nil {
		return nil, err
	}

	// Critical report notifications
	var notifier report.Notifier
	if len(cfg.Notify.Endpoints) > 0 {
		a.notifier = notify.NewNotifier(cfg.Notify.Endpoints, notifyPolicy(cfg.Notify), agg.Messages().Emergency, a.metrics, logger.Named("notify"))
		a.prober = notify.NewProber(a.notifier, notifyPolicy(cfg.Notify).Probe, logger.Named("notify"))
		notifier = a.notifier
	}

	composer := report.NewComposer(a.store, analyzer, agg, notifier, report.Options{
		WindowSamples: cfg.Report.WindowSamples,
		EmptyPolicy:   report.EmptyPolicy(cfg.Report.EmptyPolicy),
	}, logger.Named("report"))

	// Retention
	a.sweeper = retention.NewSweeper(a.store, cfg.Retention.Weeks, cfg.Retention.Interval, a.metrics, logger.Named("retention"), expirers...)
	a.sweeper.InvalidateWith(vitalsCache)

	// API
	h := api.NewHandler(api.Deps{
		Store:      a.store,
		Composer:   composer,
		Analyzer:   analyzer,
		Aggregator: agg,
		Vitals:     vitalsCache,
		Assistant: assistant.New(assistant.Config{
			APIKey:  cfg.Assistant.APIKey,
			Model:   cfg.Assistant.Model,
			BaseURL: cfg.Assistant.BaseURL,
		}, logger.Named("assistant")),
		Metrics:      a.metrics,
		Ring:         ring,
		Logger:       logger.Named("api"),
		RiskWindow:   cfg.Report.WindowSamples,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})
	limiter := api.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	a.handler = api.RegisterRoutes(http.NewServeMux(), h, limiter)
	a.server = api.NewServer(cfg.HTTP.Addr, a.handler, api.ServerConfig{
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, logger)

	ready = true
	return a, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	opts := store.Options{EnforceUniqueUsername: a.cfg.Store.EnforceUniqueUsername}

	switch a.cfg.Store.Driver {
	case "postgres":
		db, err := store.OpenPostgres(ctx, a.cfg.Store.DSN, a.cfg.Store.MaxConns)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresStore(db, opts, a.metrics, a.logger.Named("store"))
		a.closers = append(a.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		a.logger.Info("using postgres store")
		return pg, nil
	default:
		a.logger.Info("using in-memory store")
		return store.NewMemoryStore(opts, a.metrics), nil
	}
}

func (a *app) seed(ctx context.Context) error {
	if a.cfg.Seed.Demo {
		u, created, err := seed.EnsureDemo(ctx, a.store)
		if err != nil {
			return fmt.Errorf("failed to seed demo user: %w", err)
		}
		if created {
			a.logger.Info("demo user created", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
		}
	}

	if a.cfg.Seed.File == "" {
		return nil
	}
	fx, err := seed.LoadFile(a.cfg.Seed.File)
	if err != nil {
		return err
	}
	if _, err := seed.Apply(ctx, a.store, fx, a.logger.Named("seed")); err != nil {
		return err
	}
	return nil
}

func (a *app) openCache(ctx context.Context) (cache.KV, []retention.Expirer, error) {
	switch a.cfg.Cache.Driver {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     a.cfg.Cache.Redis.Addr,
			Password: a.cfg.Cache.Redis.Password,
			DB:       a.cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		kv := cache.NewRedisKV(client)
		a.closers = append(a.closers, kv.Close)
		a.logger.Info("vitals cache backed by redis", zap.String("addr", a.cfg.Cache.Redis.Addr))
		return kv, nil, nil
	case "none":
		return cache.NopKV{}, nil, nil
	default:
		kv := cache.NewMemoryKV()
		return kv, []retention.Expirer{kv}, nil
	}
}

func notifyPolicy(c config.NotifyConfig) notify.Policy {
	p := notify.DefaultPolicy()
	p.Retry.MaxRetries = c.MaxRetries
	p.Retry.BaseBackoff = c.BaseBackoff
	p.Retry.MaxBackoff = c.MaxBackoff
	p.Timeout = c.Timeout
	p.Health.FailureThreshold = c.FailureThreshold
	p.Health.SuccessThreshold = c.SuccessThreshold
	p.Probe.Interval = c.ProbeInterval
	p.Probe.Path = c.ProbePath
	return p
}

// run serves until ctx is cancelled or the listener fails, then shuts the
// server down and drains pending notifications.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server started", zap.String("addr", a.cfg.HTTP.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()

		err := a.server.Shutdown(shutdownCtx)
		if a.notifier != nil {
			err = errors.Join(err, a.notifier.Close(shutdownCtx))
		}
		return err
	})

	g.Go(func() error {
		a.sweeper.Start(gctx)
		return nil
	})

	if a.prober != nil {
		g.Go(func() error {
			a.prober.Start(gctx)
			return nil
		})
	}

	return g.Wait()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
