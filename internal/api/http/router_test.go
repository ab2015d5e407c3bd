package http_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apihttp "github.com/spec-kit/helpdesk-sla/internal/api/http"
	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
)

type staffStore map[string]domain.StaffMember

func (s staffStore) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	staff, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &staff, nil
}

type grants map[string][]string

func (g grants) PermissionsForStaff(_ context.Context, staffID string) ([]string, error) {
	return g[staffID], nil
}

type timerList []domain.SLATimer

func (l timerList) ListByStatus(_ context.Context, status domain.SLAStatus, limit int) ([]domain.SLATimer, error) {
	var out []domain.SLATimer
	for _, timer := range l {
		if timer.Status == status && len(out) < limit {
			out = append(out, timer)
		}
	}
	return out, nil
}

type stubRunner struct {
	summary string
	err     error
	calls   int
}

func (s *stubRunner) CheckAll(context.Context) (string, error) {
	s.calls++
	return s.summary, s.err
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixture struct {
	app    *fiber.App
	runner *stubRunner
	tokens *auth.TokenManager
}

func newFixture(t *testing.T, ready error) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	tokens := auth.NewTokenManager("router-secret", time.Hour)
	runner := &stubRunner{summary: "SLA check completed. Found 1 breaches and sent 0 warnings."}

	app := fiber.New()
	apihttp.RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	apihttp.RegisterRoutes(app, apihttp.RouteConfig{
		Health: handlers.NewHealthHandler("helpdesk-sla", "test", map[string]handlers.Pinger{
			"database": pingFunc(func(context.Context) error { return ready }),
		}),
		SLA: handlers.NewSLAHandler(timerList{
			{ID: "t1", TicketID: "k1", TicketKey: "HD-1", Status: domain.SLAStatusActive, DueDate: time.Unix(0, 0).UTC()},
			{ID: "t2", TicketID: "k2", TicketKey: "HD-2", Status: domain.SLAStatusPaused},
		}, runner),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, staffStore{
			"ops":    {ID: "ops", Active: true},
			"viewer": {ID: "viewer", Active: true},
		}),
		Permissions: grants{
			"ops":    {"sla.view", "sla.create"},
			"viewer": {"sla.view"},
		},
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return &fixture{app: app, runner: runner, tokens: tokens}
}

func (f *fixture) do(t *testing.T, method, path, staffID string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if staffID != "" {
		token, _, err := f.tokens.GenerateToken(staffID, "")
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp, body
}

func TestHealthRoutes(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := f.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", body["status"])

	resp, body = f.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	down := newFixture(t, errors.New("disk I/O error"))
	resp, body = down.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body["error"].(map[string]any)["code"])
}

func TestSLARoutes(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/api/sla/timers", "viewer")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "HD-1", items[0].(map[string]any)["ticket_key"])

	resp, body = f.do(t, http.MethodGet, "/api/sla/timers?status=paused", "viewer")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"].([]any), 1)

	resp, body = f.do(t, http.MethodGet, "/api/sla/timers?status=late", "viewer")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])

	resp, _ = f.do(t, http.MethodPost, "/api/sla/check", "viewer")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, f.runner.calls)

	resp, body = f.do(t, http.MethodPost, "/api/sla/check", "ops")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, f.runner.summary, body["data"].(map[string]any)["summary"])
	assert.Equal(t, 1, f.runner.calls)

	f.runner.err = errors.New("list active sla timers: connection refused")
	resp, _ = f.do(t, http.MethodPost, "/api/sla/check", "ops")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/sla/timers", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/health/live", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "helpdesk_http_requests_total")
}
