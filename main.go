package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"olympiad-engine/collab"
	"olympiad-engine/config"
	"olympiad-engine/controllers"
	"olympiad-engine/driver"
	"olympiad-engine/engine"
	"olympiad-engine/notify"
	"olympiad-engine/store/sqlstore"
	"olympiad-engine/telemetry"
)

func setupLogging(cfg config.Config) {
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Warn("unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func notifier(cfg config.Config) *notify.Dispatcher {
	sinks := []notify.Notifier{notify.LogNotifier{Log: logrus.StandardLogger()}}
	if cfg.Twilio.AccountSID != "" {
		sinks = append(sinks, notify.NewSMSNotifier(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From, cfg.Twilio.AdminPhone))
		logrus.Info("SMS notifications enabled")
	}
	if cfg.S3.Bucket != "" {
		archiver, err := notify.NewS3Archiver(cfg.S3.Region, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.Bucket)
		if err != nil {
			logrus.WithError(err).Fatal("Error creating results archiver")
		}
		sinks = append(sinks, archiver)
		logrus.WithField("bucket", cfg.S3.Bucket).Info("results archive enabled")
	}
	return notify.NewDispatcher(cfg.NotifyQueueSize, logrus.StandardLogger(), sinks...)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Error loading configuration")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		logrus.WithError(err).Fatal("Error setting up tracing")
	}

	db, err := driver.ConnectDB(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Error connecting to database")
	}
	defer db.Close()
	if err := driver.Migrate(db, cfg.Database.Driver); err != nil {
		logrus.WithError(err).Fatal("Error applying migrations")
	}

	dispatcher := notifier(cfg)
	e := engine.New(engine.Deps{
		Store:    sqlstore.New(db),
		Payments: collab.NewSQLPayments(db),
		Profiles: collab.NewSQLProfiles(db),
		Notifier: dispatcher,
		Log:      logrus.StandardLogger(),
	}, cfg.Engine)

	go engine.NewScheduler(e, cfg.Engine.TickInterval).Run(ctx)

	router := mux.NewRouter()
	controllers.Routes(router, e, []byte(cfg.Secret))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Infof("Server started on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Server stopped")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("http shutdown")
	}
	dispatcher.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logrus.WithError(err).Error("tracing shutdown")
	}
}
