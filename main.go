package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/flashdeck/internal/bot"
	"github.com/example/flashdeck/internal/database"
	"github.com/example/flashdeck/internal/scheduler"
	"github.com/example/flashdeck/internal/study"
)

func main() {
	// A missing .env is fine; deployments may configure the environment
	// directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := database.Connect(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	users := database.NewUserRepository()
	cards := database.NewCardRepository()
	decks := database.NewDeckRepository()
	settings := database.NewSettingsRepository()
	logs := database.NewReviewLogRepository()

	svc := study.NewService(study.Config{
		Cards:    cards,
		Decks:    decks,
		Settings: settings,
		Logs:     logs,
		Logger:   logger,
	})

	b, err := bot.New(bot.Deps{
		Study:    svc,
		Users:    users,
		Cards:    cards,
		Decks:    decks,
		Settings: settings,
		Logs:     logs,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	var sched *scheduler.Scheduler
	if os.Getenv("ENABLE_SCHEDULER") != "false" {
		sched = scheduler.New(scheduler.Config{
			Users:       users,
			Cards:       cards,
			Settings:    settings,
			Logs:        logs,
			Notifier:    b,
			Invalidator: svc,
			Logger:      logger,
		})
		if err := sched.Start(); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		logger.Info("background scheduler started")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		if sched != nil {
			sched.Stop()
		}
		b.Stop()
		close(done)
	}()

	logger.Info("bot starting, press Ctrl+C to stop")
	go func() {
		if err := b.Start(); err != nil {
			logger.Error("bot terminated", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutdown complete")
}
