package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BowlPulp/HodlSync/internal/testutil"
)

func TestHealthHandler_Health(t *testing.T) {
	t.Run("all checks healthy", func(t *testing.T) {
		handler := NewHealthHandler(map[string]HealthChecker{
			"database": testutil.NewMockHealthChecker(true),
			"cache":    testutil.NewMockHealthChecker(true),
		})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		handler.Health(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}

		var response HealthResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Status != "healthy" {
			t.Errorf("expected status healthy, got %s", response.Status)
		}
		if response.Services["database"] != "healthy" {
			t.Errorf("expected database healthy, got %s", response.Services["database"])
		}
		if response.Services["cache"] != "healthy" {
			t.Errorf("expected cache healthy, got %s", response.Services["cache"])
		}
		if response.Timestamp == "" {
			t.Error("expected non-empty timestamp")
		}
	})

	t.Run("failing check degrades the status", func(t *testing.T) {
		handler := NewHealthHandler(map[string]HealthChecker{
			"database": testutil.NewMockHealthChecker(false),
			"cache":    testutil.NewMockHealthChecker(true),
		})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		handler.Health(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rec.Code)
		}

		var response HealthResponse
		json.NewDecoder(rec.Body).Decode(&response)
		if response.Status != "degraded" {
			t.Errorf("expected status degraded, got %s", response.Status)
		}
		if response.Services["database"] == "healthy" {
			t.Error("expected database to be reported unhealthy")
		}
		if response.Services["cache"] != "healthy" {
			t.Error("expected cache to stay healthy")
		}
	})

	t.Run("nil checkers are skipped", func(t *testing.T) {
		handler := NewHealthHandler(map[string]HealthChecker{
			"database": testutil.NewMockHealthChecker(true),
			"cache":    nil,
		})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		handler.Health(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}

		var response HealthResponse
		json.NewDecoder(rec.Body).Decode(&response)
		if _, exists := response.Services["cache"]; exists {
			t.Error("nil checker must not appear in services")
		}
	})

	t.Run("responds with json", func(t *testing.T) {
		handler := NewHealthHandler(map[string]HealthChecker{
			"database": testutil.NewMockHealthChecker(true),
		})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		handler.Health(rec, req)

		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}
	})
}

func TestHealthHandler_Ready(t *testing.T) {
	t.Run("ready when all checks pass", func(t *testing.T) {
		handler := NewHealthHandler(map[string]HealthChecker{
			"database": testutil.NewMockHealthChecker(true),
		})

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()
		handler.Ready(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
		if rec.Body.String() != "ready" {
			t.Errorf("expected body 'ready', got '%s'", rec.Body.String())
		}
	})

	t.Run("not ready when a check fails", func(t *testing.T) {
		handler := NewHealthHandler(map[string]HealthChecker{
			"database": testutil.NewMockHealthChecker(false),
		})

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()
		handler.Ready(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rec.Code)
		}
	})
}

func TestHealthHandler_Live(t *testing.T) {
	// Liveness never consults the checks
	handler := NewHealthHandler(map[string]HealthChecker{
		"database": testutil.NewMockHealthChecker(false),
	})

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	handler.Live(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "alive" {
		t.Errorf("expected body 'alive', got '%s'", rec.Body.String())
	}
}
