package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
	"github.com/trezcool/admissions/core/notification"
	"github.com/trezcool/admissions/services/metrics"
)

type (
	Deps struct {
		Conf            *core.Config
		Logger          core.Logger
		AdmissionSvc    *admission.Service
		FeeSvc          *fee.Service
		NotificationSvc *notification.Service
		Validate        *validator.Validate
		Translator      ut.Translator
		Metrics         *metrics.Metrics // optional
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		addr     string
		deps     *Deps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

// NewServer builds the API. shutdown receives OS signals; a nil channel is replaced by a private one.
func NewServer(addr string, shutdown chan os.Signal, deps *Deps) Server {
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
	}
	if deps.Logger == nil {
		deps.Logger = core.NopLogger
	}
	s := &server{
		addr:     addr,
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(metricsMiddleware(s.deps.Metrics))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	limit := newIPRateLimiter(conf.Server.TokenRateLimit, conf.Server.TokenRateBurst).middleware()

	registerFeeAPI(v1, s.deps.FeeSvc)
	appAPI := registerApplicationAPI(v1, jwt, s.deps.AdmissionSvc, s.deps.FeeSvc, s.deps.Validate)
	registerNotificationAPI(v1, jwt, s.deps.NotificationSvc)
	registerSettingsAPI(v1, jwt, s.deps.AdmissionSvc)
	registerAdminAPI(v1, jwt, s.deps.AdmissionSvc, s.deps.FeeSvc, s.deps.Validate, conf.Admission.BaseURL)

	// public slip downloads; the root path is the one mailed to applicants
	v1.GET("/admissions/download-roll-slip/:token", appAPI.downloadRollSlip, limit)
	s.app.GET("/admissions/download-roll-slip/:token", appAPI.downloadRollSlip, limit)
}

func (s *server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
