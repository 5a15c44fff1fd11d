package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReadiness_AllHealthy(t *testing.T) {
	c := New(time.Second)
	c.Register("rules", func(ctx context.Context) error { return nil })
	c.Register("audit", func(ctx context.Context) error { return nil })

	status := c.Readiness(context.Background())
	if status.Status != "ready" {
		t.Errorf("status = %q", status.Status)
	}
	if len(status.Checks) != 2 {
		t.Errorf("checks = %v", status.Checks)
	}
}

func TestReadiness_UnhealthyComponentDegrades(t *testing.T) {
	c := New(time.Second)
	c.Register("rules", func(ctx context.Context) error { return nil })
	c.Register("settings", func(ctx context.Context) error {
		return errors.New("database is locked")
	})

	status := c.Readiness(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q", status.Status)
	}
	if status.Checks["settings"].Message != "database is locked" {
		t.Errorf("settings check = %+v", status.Checks["settings"])
	}
}

func TestReadiness_SlowCheckTimesOut(t *testing.T) {
	c := New(50 * time.Millisecond)
	c.Register("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return ctx.Err()
	})

	status := c.Readiness(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q", status.Status)
	}
}

func TestReadinessHandler_StatusCodes(t *testing.T) {
	c := New(time.Second)

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest("GET", "/ready", nil))
	if rec.Code != 200 {
		t.Errorf("healthy readiness status = %d", rec.Code)
	}

	c.Register("broken", func(ctx context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest("GET", "/ready", nil))
	if rec.Code != 503 {
		t.Errorf("degraded readiness status = %d", rec.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	c := New(time.Second)
	c.Register("broken", func(ctx context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != 200 {
		t.Errorf("liveness status = %d", rec.Code)
	}

	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if status.Status != "ok" || len(status.Checks) != 0 {
		t.Errorf("liveness body = %+v", status)
	}
}

func TestHandlers_RejectNonGET(t *testing.T) {
	c := New(time.Second)
	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest("POST", "/ready", nil))
	if rec.Code != 405 {
		t.Errorf("POST /ready status = %d", rec.Code)
	}
}
