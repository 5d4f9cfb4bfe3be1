package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billing_notifier/internal/app"
	"billing_notifier/internal/domain/receivable"
	"billing_notifier/internal/domain/report"
	"billing_notifier/internal/infra/config"
	idb "billing_notifier/internal/infra/database"
	"billing_notifier/internal/infra/logger"
	"billing_notifier/internal/infra/messaging"
	"billing_notifier/internal/infra/nextfit"
	"billing_notifier/internal/infra/scheduler"
	"billing_notifier/internal/infra/storage"
	"billing_notifier/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("Could not load application configuration")
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"environment":   cfg.Environment,
		"timezone":      cfg.Location.String(),
		"send_messages": cfg.SendMessages,
		"data_dir":      cfg.DataDir,
	}).Info("Billing notifier starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// NextFit API client
	nextfitClient := nextfit.NewClient(nextfit.Options{
		BaseURL:   cfg.NextFitBaseURL,
		APIKey:    cfg.NextFitAPIKey,
		Version:   cfg.NextFitAPIVersion,
		PageSize:  cfg.PageSize,
		PageDelay: cfg.RequestDelay,
		Timeout:   cfg.HTTPTimeout,
		Policy:    nextfit.NewRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff),
	}, logger.Component("nextfit"))

	// Services
	rosterService := app.NewRosterService(nextfitClient, storage.NewRosterStore(cfg.RosterPath()), logger.Component("roster"))
	classifier := app.NewClassifier(nextfitClient, receivable.NewStatusSet(cfg.ValidAccountStatuses...), logger.Component("classifier"))
	builder := app.NewCandidateBuilder(cfg.FieldSlots[:], cfg.FlowIDs, logger.Component("candidates"))
	if cfg.SendMessages && cfg.MessageAPIToken == "" {
		mainLogger.Warn("MESSAGE_API_TOKEN is not set: every send will be skipped")
	}
	dispatcher := messaging.NewClient(messaging.Options{
		URL:     cfg.MessageAPIURL,
		Token:   cfg.MessageAPIToken,
		Timeout: cfg.HTTPTimeout,
	}, logger.Component("messaging"))
	reportStore := storage.NewReportStore(cfg.ReportPath())

	pipeline := app.NewPipelineService(rosterService, classifier, builder, dispatcher, reportStore,
		cfg.SendMessages, cfg.Location, logger.Component("pipeline"))

	// Optional run report archive
	var archive report.Archive
	if cfg.DatabaseURL != "" {
		db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to database")
		}
		defer closeDB(db, mainLogger)

		repo := idb.NewPostgresRunReportRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			mainLogger.WithError(err).Fatal("Could not prepare run report archive")
		}
		archive = repo
		pipeline.WithArchive(repo)
		mainLogger.Info("Run report archive enabled")
	}

	jobScheduler, err := scheduler.NewJobScheduler(rosterService, pipeline, cfg.Location,
		cfg.CronSpecRosterSync, cfg.CronSpecDailyCheck, logger.Component("scheduler"))
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create job scheduler")
	}

	// Optional operator bot
	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		botLogger := logger.Component("telegram")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				entry := botLogger.WithError(err)
				if c != nil && c.Sender() != nil {
					entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "text": c.Text()})
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}

		notifier := telegram.NewOperatorNotifier(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID)
		pipeline.WithNotifier(notifier)
		jobScheduler.WithNotifier(notifier)

		operatorService := app.NewOperatorService(reportStore, archive, jobScheduler, cfg.AdminTelegramID)
		telegram.RegisterOperatorHandlers(ctx, bot, operatorService, botLogger)
		go bot.Start()
		mainLogger.Info("Operator bot started")
	}

	if cfg.RunRosterSyncOnStart {
		mainLogger.Info("Running initial roster sync")
		if _, err := jobScheduler.RunRosterSync(ctx); err != nil {
			mainLogger.WithError(err).Error("Initial roster sync failed; continuing with scheduled jobs")
		}
	}

	jobScheduler.Start()
	mainLogger.Info("Application setup complete. Waiting for scheduled jobs...")

	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	jobScheduler.Stop()
	if bot != nil {
		bot.Stop()
	}
	mainLogger.Info("Application shut down gracefully.")
}

func closeDB(db *sql.DB, log *logrus.Entry) {
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("Error closing database")
	}
}
