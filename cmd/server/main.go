package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/bootstrap"
	"github.com/mamadbah2/toolstock/internal/config"
	"github.com/mamadbah2/toolstock/internal/metrics"
	"github.com/mamadbah2/toolstock/internal/scheduler"
	"github.com/mamadbah2/toolstock/internal/server/handlers"
	"github.com/mamadbah2/toolstock/internal/server/router"
	"github.com/mamadbah2/toolstock/internal/service/bot"
	"github.com/mamadbah2/toolstock/internal/service/catalog"
	"github.com/mamadbah2/toolstock/internal/service/session"
	"github.com/mamadbah2/toolstock/internal/service/wizard"
	"github.com/mamadbah2/toolstock/pkg/clients/telegram"
	"github.com/mamadbah2/toolstock/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	stack := bootstrap.Open(ctx, cfg, baseLogger, m)
	defer stack.Close(context.Background())

	if !stack.Store.PullRemote(ctx) && stack.Store.RemoteEnabled() {
		baseLogger.Warn("serving the local inventory copy; remote copy could not be pulled")
	}

	sessions := session.NewStore(cfg.Session.IdleTimeout, baseLogger.Named("svc.session"))
	defer sessions.Close()
	browse := session.NewBrowseStore(cfg.Session.IdleTimeout)
	defer browse.Close()

	tgClient := telegram.NewClient(cfg.Telegram)
	photoSaver := bot.NewPhotoSaver(tgClient, stack.Images, baseLogger.Named("svc.photos"))
	engine := wizard.NewEngine(sessions, stack.Store, photoSaver, m, baseLogger.Named("svc.wizard"))

	botSvc := bot.NewService(bot.Options{
		Messenger: tgClient,
		Engine:    engine,
		Store:     stack.Store,
		Catalog:   catalog.New(stack.Store.Table(), cfg.Inventory.PageSize),
		Browse:    browse,
		Images:    stack.Images,
		Metrics:   m,
		Logger:    baseLogger.Named("svc.bot"),
	})

	webhookHandler := handlers.NewWebhookHandler(botSvc, cfg.Telegram.WebhookSecret, baseLogger.Named("handlers.telegram"))
	httpEngine := router.New(webhookHandler, m, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Sync.RetrySchedule, stack.Store, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	var workers sync.WaitGroup
	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		if err := tgClient.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			baseLogger.Fatal("failed to register webhook", zap.Error(err))
		}
		baseLogger.Info("webhook registered", zap.String("url", cfg.Telegram.WebhookURL))
	default:
		if err := tgClient.DeleteWebhook(ctx); err != nil {
			baseLogger.Warn("failed to remove webhook before polling", zap.Error(err))
		}
		poller := bot.NewPoller(tgClient, botSvc, baseLogger.Named("svc.poller"))
		workers.Add(1)
		go func() {
			defer workers.Done()
			poller.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpEngine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("mode", cfg.Telegram.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	workers.Wait()

	if stack.Store.Pending() {
		if stack.Store.RetryPending(shutdownCtx) {
			baseLogger.Info("pending changes synced before exit")
		} else {
			baseLogger.Warn("exiting with changes not yet synced to the remote copy")
		}
	}
}
