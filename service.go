// Package voiceverify wires the voice verification endpoint into a long running HTTP service.
package voiceverify

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/voiceverify/config"
	"github.com/pitabwire/voiceverify/telemetry"
)

type contextKey string

func (c contextKey) String() string {
	return "voiceverify/" + string(c)
}

const (
	ctxKeyService = contextKey("serviceKey")

	defaultHealthCheckPath = "/healthz"

	defaultHTTPReadTimeoutSeconds  = 15
	defaultHTTPWriteTimeoutSeconds = 15
	defaultHTTPIdleTimeoutSeconds  = 60
	defaultShutdownTimeoutSeconds  = 10
)

// Service holds together the components of a running voiceverify process.
// It is pushed and pulled from contexts to make it easy to pass around.
type Service struct {
	name        string
	version     string
	environment string

	logger           *util.LogEntry
	configuration    any
	telemetryManager telemetry.Manager

	handler         http.Handler
	healthCheckers  []Checker
	healthCheckPath string
	listener        net.Listener
	driver          server

	cancelFunc context.CancelFunc
	cleanupMu  sync.Mutex
	cleanup    []func(ctx context.Context)
	stopOnce   sync.Once
}

type Option func(ctx context.Context, service *Service)

// NewService creates a new instance of Service with the name and supplied options.
func NewService(name string, opts ...Option) (context.Context, *Service) {
	return NewServiceWithContext(context.Background(), name, opts...)
}

// NewServiceWithContext creates a Service whose context is cancelled on SIGINT, SIGTERM, SIGHUP or SIGQUIT.
func NewServiceWithContext(ctx context.Context, name string, opts ...Option) (context.Context, *Service) {
	ctx, signalCancelFunc := signal.NotifyContext(ctx,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	defaultLogger := util.Log(ctx)
	ctx = util.ContextWithLogger(ctx, defaultLogger)

	service := &Service{
		name:            name,
		logger:          defaultLogger,
		cancelFunc:      signalCancelFunc,
		healthCheckPath: defaultHealthCheckPath,
	}

	service.Init(ctx, opts...)

	ctx = ToContext(ctx, service)
	ctx = config.ToContext(ctx, service.Config())
	ctx = util.ContextWithLogger(ctx, service.logger)
	return ctx, service
}

// ToContext pushes a service instance into the supplied context for easier propagation.
func ToContext(ctx context.Context, service *Service) context.Context {
	return context.WithValue(ctx, ctxKeyService, service)
}

// FromContext obtains a service instance being propagated through the context.
func FromContext(ctx context.Context) *Service {
	service, ok := ctx.Value(ctxKeyService).(*Service)
	if !ok {
		return nil
	}

	return service
}

// Init evaluates the options provided as arguments and supplies them to the service object.
func (s *Service) Init(ctx context.Context, opts ...Option) {
	for _, opt := range opts {
		opt(ctx, s)
	}
}

func (s *Service) Name() string {
	return s.name
}

// WithName specifies the name the service will utilize.
func WithName(name string) Option {
	return func(_ context.Context, s *Service) {
		s.name = name
	}
}

func (s *Service) Version() string {
	return s.version
}

// WithVersion specifies the version the service will utilize.
func WithVersion(version string) Option {
	return func(_ context.Context, s *Service) {
		s.version = version
	}
}

func (s *Service) Environment() string {
	return s.environment
}

// WithEnvironment specifies the environment the service will utilize.
func WithEnvironment(environment string) Option {
	return func(_ context.Context, s *Service) {
		s.environment = environment
	}
}

// WithHTTPHandler sets the application handler served next to the health endpoint.
func WithHTTPHandler(h http.Handler) Option {
	return func(_ context.Context, s *Service) {
		s.handler = h
	}
}

// WithListener serves on an already bound listener instead of the configured address.
func WithListener(listener net.Listener) Option {
	return func(_ context.Context, s *Service) {
		s.listener = listener
	}
}

// AddCleanupMethod registers f to run while the service stops. Methods run in reverse order of registration.
func (s *Service) AddCleanupMethod(f func(ctx context.Context)) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	s.cleanup = append(s.cleanup, f)
}

// Handler returns the full routing tree: health endpoint plus the application handler.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.healthCheckPath, s.HandleHealth)

	if s.handler != nil {
		mux.Handle("/", s.handler)
	}
	return mux
}

// Run serves requests on address until ctx is cancelled or the server fails.
// An empty address falls back to the configured HTTP port.
func (s *Service) Run(ctx context.Context, address string) error {
	address = s.determineHTTPPort(address)

	if s.driver == nil {
		s.driver = &defaultDriver{
			listener: s.listener,
			httpServer: &http.Server{
				BaseContext: func(_ net.Listener) context.Context {
					return ctx
				},
				ReadHeaderTimeout: defaultHTTPReadTimeoutSeconds * time.Second,
				ReadTimeout:       defaultHTTPReadTimeoutSeconds * time.Second,
				WriteTimeout:      defaultHTTPWriteTimeoutSeconds * time.Second,
				IdleTimeout:       defaultHTTPIdleTimeoutSeconds * time.Second,
				ErrorLog:          slog.NewLogLogger(s.SLog(ctx).Handler(), slog.LevelWarn),
			},
		}
	}

	s.Log(ctx).WithField("address", address).Info("service starting")

	err := s.driver.Serve(ctx, address, s.Handler())
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		s.Log(ctx).WithError(err).Error("system exit in error")
	}

	s.Stop(context.WithoutCancel(ctx))
	return err
}

func (s *Service) determineHTTPPort(address string) string {
	if address != "" {
		return address
	}

	cfg, ok := s.Config().(config.ConfigurationPorts)
	if !ok {
		return ":8080"
	}
	return cfg.HTTPPort()
}

// Stop shuts the server down gracefully and runs cleanup methods. Calls after the first are no-ops.
func (s *Service) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		s.Log(ctx).Info("service stopping")

		if s.cancelFunc != nil {
			s.cancelFunc()
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeoutSeconds*time.Second)
		defer cancel()

		if s.driver != nil {
			if err := s.driver.Shutdown(shutdownCtx); err != nil {
				s.Log(ctx).WithError(err).Warn("server shutdown incomplete")
			}
		}

		s.cleanupMu.Lock()
		cleanup := s.cleanup
		s.cleanup = nil
		s.cleanupMu.Unlock()

		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i](shutdownCtx)
		}

		if s.telemetryManager != nil {
			if err := s.telemetryManager.Shutdown(shutdownCtx); err != nil {
				s.Log(ctx).WithError(err).Warn("telemetry shutdown incomplete")
			}
		}
	})
}
