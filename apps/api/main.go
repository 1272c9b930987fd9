package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	echoapi "github.com/trezcool/admissions/apps/api/echo"
	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
	"github.com/trezcool/admissions/core/notification"
	emailsvc "github.com/trezcool/admissions/services/email"
	logsvc "github.com/trezcool/admissions/services/logger"
	"github.com/trezcool/admissions/services/metrics"
	"github.com/trezcool/admissions/services/notify"
	"github.com/trezcool/admissions/services/scheduler"
	"github.com/trezcool/admissions/services/slip"
	"github.com/trezcool/admissions/storage/database"
	sqlxrepos "github.com/trezcool/admissions/storage/database/sqlx"
	filestore "github.com/trezcool/admissions/storage/files"
)

const (
	notifyWorkers   = 2
	slipRepairBatch = 100
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	files, err := filestore.NewDisk(conf.Storage.ArtifactDir)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}

	// set up metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mtr := metrics.New(registry)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
	}

	feeSvc := fee.NewService(sqlxrepos.NewFeeRepository(db))
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db))
	dispatcher := notify.NewDispatcher(notify.Deps{
		Conf:     conf,
		Mail:     mailSvc,
		Inbox:    notifSvc,
		Logger:   logger,
		Observer: mtr,
	})
	admissionSvc := admission.NewService(admission.Deps{
		Tx:          database.NewTransactor(db),
		Repo:        sqlxrepos.NewApplicationRepository(db),
		Settings:    sqlxrepos.NewSettingsRepository(db),
		Fees:        feeSvc,
		Slips:       slip.NewGenerator(),
		Files:       files,
		Notifier:    dispatcher,
		Logger:      logger,
		Observer:    mtr,
		BulkWorkers: conf.Admission.BulkWorkers,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	admission.InitValidators(validate, translator)

	dispatcher.Start(notifyWorkers)

	jobs := scheduler.New(logger, mtr)
	if spec := conf.Admission.SlipRepairSpec; spec != "" {
		err = jobs.Add("repair_slips", spec, func(ctx context.Context) error {
			n, err := admissionSvc.RepairSlips(ctx, slipRepairBatch)
			if n > 0 {
				logger.Info(fmt.Sprintf("repaired %d roll slips", n))
			}
			return err
		})
		if err != nil {
			logger.Fatal(fmt.Sprintf("scheduling jobs: %v", err), err)
		}
	}
	jobs.Start()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", metrics.Handler(registry))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(
		conf.Server.Host,
		shutdown,
		&echoapi.Deps{
			Conf:            conf,
			Logger:          logger,
			AdmissionSvc:    admissionSvc,
			FeeSvc:          feeSvc,
			NotificationSvc: notifSvc,
			Validate:        validate,
			Translator:      translator,
			Metrics:         mtr,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}

	// drain background work, within the same deadline
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	if err = jobs.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop jobs: %v", err), err)
	}
	if err = dispatcher.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not drain notifications: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
