package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/groupmate/groupmate/internal/config"
	"github.com/groupmate/groupmate/internal/db/sqlite"
	"github.com/groupmate/groupmate/internal/ecampus"
	"github.com/groupmate/groupmate/internal/event"
	"github.com/groupmate/groupmate/internal/infra"
	"github.com/groupmate/groupmate/internal/lifecycle"
	"github.com/groupmate/groupmate/internal/observability"
	"github.com/groupmate/groupmate/internal/schedule"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.GmFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
		log.WithError(err).Fatalln("cant initialize observability")
	}
	defer event.RunWorker()()

	client, err := sqlite.NewClient(ctx, infra.GetWorkDir(), cfg.DBFile)
	if err != nil {
		log.WithError(err).Fatalln("cant open db")
	}
	defer client.Close()

	scheduleService := schedule.NewService(client)

	// The conversation layer consumes these off the bus; until then the
	// digests and change notices are surfaced through the structured log.
	event.Subscribe(event.TypeReminderDue, func(e event.Queueable) {
		defer e.Process()
		due, ok := e.(*schedule.ReminderDue)
		if !ok {
			return
		}
		observability.Logger.Info("reminder due",
			zap.Int64("chat_id", due.Digest.ChatID),
			zap.String("language", due.Digest.Language.Code()),
			zap.String("text", due.Digest.Text),
		)
	})
	event.Subscribe(event.TypePointsChanged, func(e event.Queueable) {
		defer e.Process()
		changed, ok := e.(*ecampus.PointsChanged)
		if !ok {
			return
		}
		observability.Logger.Info("ecampus points changed",
			zap.Int64("chat_id", changed.ChatID),
			zap.String("login", changed.Login),
			zap.Int64("points", changed.New),
		)
	})
	event.Subscribe(event.TypeGraduated, func(e event.Queueable) {
		defer e.Process()
		graduated, ok := e.(*schedule.Graduated)
		if !ok {
			return
		}
		observability.Logger.Info("graduated groups purged",
			zap.Int64("year", graduated.Year),
			zap.Int64("groups", graduated.Groups),
			zap.Int64("chats", graduated.Chats),
		)
	})

	runtime := lifecycle.NewRuntime(schedule.NewScheduler(scheduleService, cfg.Schedule))
	if cfg.ECampus.SyncEnabled {
		syncer := ecampus.NewSyncer(ecampus.NewService(client, ecampus.StaticFetcher{}), cfg.ECampus.SyncInterval)
		runtime.Register(syncer)
	}

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// catch up on graduation cleanup that was due while the service was
		// down, then hand over to the daily scheduler
		return scheduleService.PurgeGraduated(runCtx, cfg.Schedule)
	})
	g.Go(func() error {
		if err := runtime.Start(runCtx); err != nil {
			return err
		}
		<-runCtx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return runtime.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatalln("service failed")
	}
	log.Infoln("bye")
}
