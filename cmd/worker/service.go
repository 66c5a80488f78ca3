package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/angelmondragon/flightnotify/pkg/logger"
)

const metricsShutdownTimeout = 5 * time.Second

type runner interface {
	Run(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ServiceParams wires the worker process. Intake and MetricsHandler are
// optional; Dependencies are pinged in order before anything starts.
type ServiceParams struct {
	Logger         *logger.Logger
	Worker         runner
	Intake         runner
	Dependencies   []Dependency
	MetricsHandler http.Handler
	MetricsAddr    string
}

// Dependency is a named readiness check.
type Dependency struct {
	Name string
	Ping pinger
}

type Service struct {
	logg         *logger.Logger
	worker       runner
	intake       runner
	deps         []Dependency
	metrics      http.Handler
	metricsAddr  string
	listenerHook func(net.Listener)
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Worker == nil {
		return nil, errors.New("worker is required")
	}
	for _, dep := range params.Dependencies {
		if dep.Ping == nil {
			return nil, fmt.Errorf("%s dependency is nil", dep.Name)
		}
	}

	return &Service{
		logg:        params.Logger,
		worker:      params.Worker,
		intake:      params.Intake,
		deps:        params.Dependencies,
		metrics:     params.MetricsHandler,
		metricsAddr: params.MetricsAddr,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.deps {
		if err := pingDependency(ctx, s.logg, dep.Name, dep.Ping.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until ctx is canceled or one of the loops stops on its own.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 3)

	if s.metrics != nil && s.metricsAddr != "" {
		srv, err := s.startMetricsServer(errCh)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	go func() {
		errCh <- s.worker.Run(ctx)
	}()
	if s.intake != nil {
		go func() {
			errCh <- s.intake.Run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "worker loop stopped unexpectedly", err)
			return err
		}
		return err
	}
}

func (s *Service) startMetricsServer(errCh chan<- error) (*http.Server, error) {
	ln, err := net.Listen("tcp", s.metricsAddr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	if s.listenerHook != nil {
		s.listenerHook(ln)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	return srv, nil
}
