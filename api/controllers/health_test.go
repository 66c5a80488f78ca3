package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/flightnotify/pkg/config"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReadyAllDependenciesUp(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	deps := map[string]Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
		"redis":    nil,
	}
	resp := httptest.NewRecorder()
	HealthReady(cfg, testLogger(), deps)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-FlightNotify-Env") != "dev" {
		t.Fatalf("missing env header")
	}
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	deps := map[string]Pinger{
		"database": pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
	}
	resp := httptest.NewRecorder()
	HealthReady(cfg, testLogger(), deps)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestHealthReadyListsEveryFailingDependency(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	down := pingFunc(func(context.Context) error { return errors.New("timeout") })
	deps := map[string]Pinger{
		"redis":    down,
		"database": down,
		"pubsub":   pingFunc(func(context.Context) error { return nil }),
	}
	resp := httptest.NewRecorder()
	HealthReady(cfg, testLogger(), deps)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if body := resp.Body.String(); !strings.Contains(body, `["database","redis"]`) {
		t.Fatalf("expected both failing dependencies in body, got %s", body)
	}
}
