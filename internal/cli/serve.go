package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/helpdesk-sla/internal/api/http"
	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	"github.com/spec-kit/helpdesk-sla/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the SLA scheduler and the notification worker",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("no-worker", false, "Do not run the notification worker in this process")
	serveCmd.Flags().Bool("no-scheduler", false, "Do not run the periodic SLA check in this process")
	serveCmd.Flags().Bool("check-on-start", false, "Run one SLA check immediately on startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	noWorker, _ := cmd.Flags().GetBool("no-worker")
	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")
	checkOnStart, _ := cmd.Flags().GetBool("check-on-start")

	var scheduler *worker.SLAScheduler
	if !noScheduler {
		scheduler, err = worker.NewSLAScheduler(a.checker, a.cfg.SLA.CheckSchedule, a.logger.Named("scheduler"), worker.SchedulerOptions{
			PassTimeout: passTimeout(a.cfg.SLA),
			RunOnStart:  checkOnStart,
		})
		if err != nil {
			return err
		}
	}

	server := fiber.New(fiber.Config{
		AppName:               a.cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(server, a.logger, a.metrics, a.cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(server, a.routes())

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.logger.Info("http server listening", zap.String("addr", a.cfg.App.Addr()))
		return server.Listen(a.cfg.App.Addr())
	})
	group.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down http server")
		return server.ShutdownWithTimeout(shutdownTimeout)
	})

	if scheduler != nil {
		group.Go(func() error {
			scheduler.Run(ctx)
			return nil
		})
	}
	if !noWorker {
		group.Go(func() error {
			a.worker.Run(ctx)
			return nil
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}

// routes builds the HTTP surface. The ticket and SLA API needs PostgreSQL, where staff
// and their roles live; the SQLite store serves only health and metrics.
func (a *app) routes() httptransport.RouteConfig {
	cfg := httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(a.cfg.App.Name, a.cfg.App.Version, a.pingers()),
		Metrics: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}),
	}
	if a.postgres == nil {
		a.logger.Info("ticket API disabled without postgres")
		return cfg
	}

	pool := a.postgres.PoolHandle()
	staffRepo := repository.NewStaffRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(a.logger.Named("events"))
	service.NewNotificationService(dispatcher, a.notifier, a.logger.Named("notifications"),
		service.WithDeveloperOrgEmail(a.cfg.Notification.DeveloperOrgEmail),
	).RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repository.NewTicketRepository(pool),
		StaffRepo:  staffRepo,
		Timers:     sla.NewLifecycle(a.timers, a.policies, a.logger.Named("sla")),
		Dispatcher: dispatcher,
		Clock:      sla.SystemClock{},
		Logger:     a.logger.Named("tickets"),

		DispatcherID: a.cfg.Tickets.DispatcherID,
	})

	tokens := auth.NewTokenManager(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL)
	cfg.AuthMiddleware = auth.NewAuthMiddleware(tokens, staffRepo)
	cfg.Permissions = repository.NewRoleRepository(pool)
	cfg.Tickets = handlers.NewTicketsHandler(ticketService)
	cfg.SLA = handlers.NewSLAHandler(a.timers, a.checker)
	return cfg
}
