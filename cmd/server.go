package cmd

import (
	"context"
	"errors"
	"fmt"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-autotrader/internal/delivery/http"
	"golang-autotrader/internal/delivery/telegram"
	"golang-autotrader/internal/repository"
	"golang-autotrader/internal/service"
	"golang-autotrader/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the auto-trader API, job scheduler and telegram bot",
	RunE:  Start,
}

func Start(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		return fmt.Errorf("create app dependency: %w", err)
	}
	defer func() {
		if err := appDep.Close(); err != nil {
			appDep.log.Error("Failed to close app dependency", logger.ErrorField(err))
		}
	}()

	repo, err := repository.NewRepository(appDep.cfg, appDep.gormDB(), appDep.cache, appDep.log)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}

	services, err := service.NewService(appDep.cfg, appDep.log, repo, appDep.cache, appDep.locker, appDep.sink, appDep.validator)
	if err != nil {
		return fmt.Errorf("create services: %w", err)
	}

	httpHandler := http.NewHttpAPIHandler(ctx, appDep.echo, appDep.validator, services, appDep.healthChecks())
	apiServer := NewHTTPServer(ctx, appDep, httpHandler)

	var telegramHandler *telegram.TelegramBotHandler
	if appDep.telegramBot != nil {
		telegramHandler = telegram.NewTelegramBotHandler(ctx, appDep.cfg, appDep.log, appDep.telegramBot, appDep.echo, services)
		// routes must be registered before echo starts serving
		if err := telegramHandler.Start(); err != nil {
			appDep.log.Error("Failed to start telegram bot", logger.ErrorField(err))
			telegramHandler = nil
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, httpNet.ErrServerClosed) {
			serverErr <- err
		}
	}()

	scheduler, err := startJobTicker(ctx, appDep, services)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		appDep.log.Info("Shutting down gracefully...")
	case err := <-serverErr:
		appDep.log.Error("HTTP server failed", logger.ErrorField(err))
	}

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if services.SchedulerService != nil {
		waitWithTimeout(appDep.log, "scheduled jobs", services.SchedulerService.Wait, appDep.cfg.Scheduler.TimeoutDuration)
	}
	services.OrderReconciler.Shutdown()

	if telegramHandler != nil {
		telegramHandler.Stop()
	}

	return apiServer.Stop()
}

// startJobTicker runs one scheduler pass per tick_spec. Returns nil when the
// job scheduler is disabled or has no store.
func startJobTicker(ctx context.Context, appDep *AppDependency, services *service.Service) (*cron.Cron, error) {
	if !appDep.cfg.Scheduler.Enabled || services.SchedulerService == nil {
		appDep.log.Info("Job scheduler is disabled")
		return nil, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(appDep.cfg.Scheduler.TickSpec, func() {
		if err := services.SchedulerService.Execute(ctx); err != nil {
			appDep.log.ErrorContext(ctx, "Scheduler tick failed", logger.ErrorField(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler.tick_spec %q: %w", appDep.cfg.Scheduler.TickSpec, err)
	}

	appDep.log.Info("Starting job scheduler", logger.StringField("tick_spec", appDep.cfg.Scheduler.TickSpec))
	c.Start()
	return c, nil
}

func waitWithTimeout(log *logger.Logger, what string, wait func(), timeout time.Duration) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn("Timeout while waiting, continuing shutdown", logger.StringField("waiting_for", what))
	}
}
