package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
	"github.com/trezcool/admissions/core/notification"
	emailsvc "github.com/trezcool/admissions/services/email"
	logsvc "github.com/trezcool/admissions/services/logger"
	"github.com/trezcool/admissions/services/notify"
	"github.com/trezcool/admissions/services/slip"
	"github.com/trezcool/admissions/storage/database"
	sqlxrepos "github.com/trezcool/admissions/storage/database/sqlx"
	filestore "github.com/trezcool/admissions/storage/files"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)

	files, err := filestore.NewDisk(conf.Storage.ArtifactDir)
	errAndDie(err)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
	}

	feeSvc := fee.NewService(sqlxrepos.NewFeeRepository(db))
	dispatcher := notify.NewDispatcher(notify.Deps{
		Conf:   conf,
		Mail:   mailSvc,
		Inbox:  notification.NewService(sqlxrepos.NewNotificationRepository(db)),
		Logger: appLogger,
	})
	dispatcher.Start(1)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	admission.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:     db,
		feeSvc: feeSvc,
		admissionSvc: admission.NewService(admission.Deps{
			Tx:          database.NewTransactor(db),
			Repo:        sqlxrepos.NewApplicationRepository(db),
			Settings:    sqlxrepos.NewSettingsRepository(db),
			Fees:        feeSvc,
			Slips:       slip.NewGenerator(),
			Files:       files,
			Notifier:    dispatcher,
			Logger:      appLogger,
			BulkWorkers: conf.Admission.BulkWorkers,
		}),
		validate: validate,
		baseURL:  conf.Admission.BaseURL,
		out:      os.Stdout,
	}
	runErr := cli.run(os.Args)

	// deliver what the command queued
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	if err = dispatcher.Stop(ctx); err != nil {
		logger.Printf("draining notifications: %s", err)
	}
	cancel()
	_ = db.Close()

	if runErr != nil {
		if runErr != errHelp {
			logger.Printf("\nerror: %s\n", runErr)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
