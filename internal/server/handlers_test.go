package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/kumo2mqtt/internal/coordinator"
	"github.com/joshp123/kumo2mqtt/internal/kumo"
)

type stubCloud struct {
	zonesErr error
}

func (s *stubCloud) Zones(context.Context, string) ([]kumo.Zone, error) {
	return nil, s.zonesErr
}

func (s *stubCloud) DeviceDetails(context.Context, string) (kumo.DeviceDetail, error) {
	return kumo.DeviceDetail{}, nil
}

func (s *stubCloud) DeviceProfiles(context.Context, string) ([]kumo.DeviceProfile, error) {
	return nil, nil
}

func (s *stubCloud) RefreshToken(context.Context) error { return nil }

func (s *stubCloud) SendCommand(context.Context, string, kumo.Command) error { return nil }

func TestHealthHandler(t *testing.T) {
	cloud := &stubCloud{}
	coord := coordinator.New(cloud, coordinator.Options{SiteID: "site-1"})
	handler := HealthHandler(coord)

	probe := func() (int, healthResponse) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		var resp healthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode body %q: %v", rec.Body.String(), err)
		}
		return rec.Code, resp
	}

	code, resp := probe()
	if code != http.StatusOK || resp.Status != "ok" {
		t.Fatalf("before first sync: got %d %+v", code, resp)
	}
	if resp.LastSync != "" {
		t.Fatalf("last_sync should be absent before the first cycle, got %q", resp.LastSync)
	}

	cloud.zonesErr = errors.New("cloud unreachable")
	if err := coord.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh to fail")
	}

	code, resp = probe()
	if code != http.StatusServiceUnavailable || resp.Status != "error" {
		t.Fatalf("after failed sync: got %d %+v", code, resp)
	}
	if !strings.Contains(resp.LastError, "cloud unreachable") {
		t.Fatalf("last_error %q should name the sync error", resp.LastError)
	}

	cloud.zonesErr = nil
	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	code, resp = probe()
	if code != http.StatusOK || resp.Status != "ok" {
		t.Fatalf("after recovery: got %d %+v", code, resp)
	}
	if resp.LastSync == "" {
		t.Fatal("last_sync should be set after a successful cycle")
	}
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "kumo_test_metric"})
	registry.MustRegister(gauge)
	gauge.Set(42)

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "kumo_test_metric 42") {
		t.Fatalf("metrics output missing gauge:\n%s", rec.Body.String())
	}
}

func TestDashboardsHandler(t *testing.T) {
	handler := DashboardsHandler(map[string][]byte{
		"/dashboards/kumo.json": []byte(`{"title":"Kumo"}`),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/kumo.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q, want application/json", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/nope.json", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown dashboard: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
