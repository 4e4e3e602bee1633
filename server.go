package voiceverify

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

type server interface {
	Serve(ctx context.Context, addr string, h http.Handler) error
	Shutdown(ctx context.Context) error
}

type noopDriver struct{}

func (t *noopDriver) Serve(ctx context.Context, _ string, _ http.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (t *noopDriver) Shutdown(_ context.Context) error {
	return nil
}

type defaultDriver struct {
	listener   net.Listener
	httpServer *http.Server
}

// Serve runs the http server and a watcher that shuts it down once ctx ends.
func (dd *defaultDriver) Serve(ctx context.Context, addr string, h http.Handler) error {
	dd.httpServer.Addr = addr
	dd.httpServer.Handler = h

	ln := dd.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return err
		}
	}

	errorGroup, gCtx := errgroup.WithContext(ctx)
	errorGroup.Go(func() error {
		return dd.httpServer.Serve(ln)
	})
	errorGroup.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), defaultShutdownTimeoutSeconds*time.Second)
		defer cancel()
		return dd.httpServer.Shutdown(shutdownCtx)
	})

	return errorGroup.Wait()
}

func (dd *defaultDriver) Shutdown(ctx context.Context) error {
	return dd.httpServer.Shutdown(ctx)
}

// WithNoopDriver keeps the service from listening on a port. Mostly useful in tests.
func WithNoopDriver() Option {
	return func(_ context.Context, s *Service) {
		s.driver = &noopDriver{}
	}
}
