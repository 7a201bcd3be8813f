package main

import (
	"context"
	_ "expvar"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/shulehub/shule/apps/api/echo"
	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/classroom"
	"github.com/shulehub/shule/core/invitation"
	"github.com/shulehub/shule/core/school"
	"github.com/shulehub/shule/core/user"
	emailsvc "github.com/shulehub/shule/services/email"
	filesvc "github.com/shulehub/shule/services/filestore"
	logsvc "github.com/shulehub/shule/services/logger"
	"github.com/shulehub/shule/storage/database"
	sqlxrepos "github.com/shulehub/shule/storage/database/sqlx"
)

func main() {
	conf := core.Conf

	std := log.New(os.Stdout, conf.AppName+" - ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!(conf.Debug || conf.TestMode))

	if err := run(conf, logger); err != nil {
		logger.Fatal("running server", err)
	}
}

func run(conf *core.Config, logger core.Logger) error {
	// set up DB
	sqlDB, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	db := database.Wrap(sqlDB)

	// set up validation
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	fileStore, err := filesvc.NewS3Store(conf)
	if err != nil {
		return err
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(db, usrRepo, mailSvc, fileStore, conf)
	schSvc := school.NewService(sqlxrepos.NewSchoolRepository(db))
	clsSvc := classroom.NewService(db, sqlxrepos.NewClassroomRepository(db), usrRepo)
	invSvc := invitation.NewService(db, sqlxrepos.NewInvitationRepository(db), clsSvc, mailSvc, conf)

	// start debug server (expvar & pprof)
	go func() {
		logger.Info("debug server listening on " + conf.Server.DebugHost)
		err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux)
		logger.Error("debug server closed", err)
	}()

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Address:    conf.ServerAddress(),
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		UserSvc:    usrSvc,
		SchoolSvc:  schSvc,
		ClassSvc:   clsSvc,
		InviteSvc:  invSvc,
	})
	go app.Start()
	logger.Info("api server listening on " + conf.ServerAddress())

	// graceful shutdown on interrupt or on an unrecoverable storage error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down: " + sig.String())
	case <-app.ShutdownSignal():
		logger.Warn("shutting down: integrity issue")
	}

	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	return app.Stop(ctx)
}
