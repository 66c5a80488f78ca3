package controllers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/flightnotify/api/responses"
	"github.com/angelmondragon/flightnotify/pkg/config"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/logger"
)

const (
	readinessTimeout = 2 * time.Second
	envHeader        = "X-FlightNotify-Env"
)

// Pinger is a dependency that can report its own health.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency concurrently under one deadline and
// fails if any of them is down. Nil pingers are optional backends and are
// skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var (
			mu     sync.Mutex
			down   []string
			causes error
			checks errgroup.Group
		)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			checks.Go(func() error {
				if err := dep.Ping(ctx); err != nil {
					mu.Lock()
					down = append(down, name)
					causes = multierr.Append(causes, err)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = checks.Wait()

		if len(down) > 0 {
			sort.Strings(down)
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, causes, "dependencies unavailable").
				WithDetails(map[string]any{"unavailable": down}))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
