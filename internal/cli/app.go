package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/persistence"
	"github.com/spec-kit/helpdesk-sla/internal/queue"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	"github.com/spec-kit/helpdesk-sla/internal/worker"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics

	postgres *persistence.Postgres
	sqlite   *persistence.SQLite
	redis    *persistence.Redis

	timers   repository.SLATimerRepository
	queue    queue.Queue
	notifier *notify.QueueDispatcher
	policies *sla.Policies
	checker  *sla.Checker
	worker   *worker.NotificationWorker

	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  observability.NewMetrics(registry),
	}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if err := a.initStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initQueue(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initSLA(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initWorker(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) initStore(ctx context.Context) error {
	switch a.cfg.SLA.StoreDriver {
	case config.StoreDriverSQLite:
		store, err := persistence.NewSQLite(a.cfg.SLA.SQLitePath, a.logger)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.sqlite = store
		a.closers = append(a.closers, func() { _ = store.Close() })
		a.timers = repository.NewSQLiteTimerRepository(store.DB)
		return nil
	default:
		pg, err := persistence.NewPostgres(ctx, a.cfg.Postgres, a.logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if pg.PoolHandle() == nil {
			return errors.New("POSTGRES_DSN is required when SLA_STORE_DRIVER=postgres")
		}
		a.postgres = pg
		a.closers = append(a.closers, pg.Close)
		if a.cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), a.cfg.Postgres.MigrationsDir, a.logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		a.timers = repository.NewSLATimerRepository(pg.PoolHandle())
		return nil
	}
}

func (a *app) initQueue() error {
	switch a.cfg.Queue.Driver {
	case config.QueueDriverMemory:
		a.queue = queue.NewMemoryQueue(a.cfg.Queue.BufferSize, a.cfg.Queue.PopTimeout)
	default:
		a.redis = persistence.NewRedis(a.cfg.Redis, a.logger)
		a.closers = append(a.closers, a.redis.Close)
		a.queue = queue.NewRedisQueue(a.redis.Handle(), a.cfg.Queue.Key, a.cfg.Queue.PopTimeout)
	}
	a.notifier = notify.NewQueueDispatcher(a.queue, a.logger.Named("notify"), a.metrics)
	return nil
}

func (a *app) initSLA() error {
	policies, err := sla.LoadPolicies(a.cfg.SLA.PolicyFile)
	if err != nil {
		return fmt.Errorf("load sla policies: %w", err)
	}
	a.policies = policies

	logger := a.logger.Named("sla")
	evaluator := sla.NewEvaluator(a.timers, a.notifier, logger,
		sla.WithWarningWindow(a.cfg.SLA.WarningWindow),
		sla.WithMetrics(a.metrics),
	)

	// Without Redis there is no shared lease, so only passes inside this process are
	// kept apart.
	var locker sla.Locker = &sla.LocalLocker{}
	if a.redis != nil {
		locker = sla.NewRedisLocker(a.redis.Handle(), a.cfg.SLA.LockKey, a.cfg.SLA.LockTTL, logger)
	}
	a.checker = sla.NewChecker(a.timers, evaluator, locker, sla.SystemClock{}, logger, a.metrics)
	return nil
}

func (a *app) initWorker() error {
	channels, err := notificationChannels(a.cfg.Notification, a.logger.Named("notify"))
	if err != nil {
		return err
	}
	a.worker = worker.NewNotificationWorker(
		a.queue,
		notify.NewRenderer(a.cfg.Notification.SiteURL),
		channels,
		a.logger.Named("worker"),
		a.metrics,
		worker.Options{
			Concurrency: a.cfg.Queue.Concurrency,
			MaxAttempts: a.cfg.Queue.MaxAttempts,
		},
	)
	return nil
}

// notificationChannels returns the configured delivery channels, falling back to the
// log channel when neither SMTP nor a webhook is set up.
func notificationChannels(cfg config.NotificationConfig, logger *zap.Logger) ([]notify.Channel, error) {
	var channels []notify.Channel
	if cfg.SMTPEnabled() {
		email, err := notify.NewEmailChannel(cfg)
		if err != nil {
			return nil, err
		}
		channels = append(channels, email)
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, notify.NewWebhookChannel(cfg.WebhookURL, cfg.WebhookSecret, nil))
	}
	if len(channels) == 0 {
		logger.Warn("no notification channel configured; notifications are only logged")
		channels = append(channels, notify.NewLogChannel(logger))
	}
	return channels, nil
}

// pingers lists the dependencies reported by the readiness probe.
func (a *app) pingers() map[string]handlers.Pinger {
	deps := map[string]handlers.Pinger{}
	if a.postgres != nil {
		deps["postgres"] = a.postgres
	}
	if a.sqlite != nil {
		deps["sqlite"] = a.sqlite
	}
	if a.redis != nil {
		deps["redis"] = a.redis
	}
	return deps
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
