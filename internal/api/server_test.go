package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/stockwatcher/internal/stock"
)

type fakeRunner struct {
	mu     sync.Mutex
	result stock.Result
	calls  int
	panics bool
}

func (f *fakeRunner) Run(_ context.Context) stock.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("runner exploded")
	}
	return f.result
}

func TestServer_Check_Notified(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	runner := &fakeRunner{result: stock.Result{
		RunID:     "run-1",
		Outcome:   stock.OutcomeNotified,
		InStock:   map[string]string{"111": "https://shop.test/products/x?variant=111"},
		MessageID: "msg-1",
	}}
	server := NewServer(runner, Config{}, zap.New(core))

	req := httptest.NewRequest(http.MethodPost, "/v1/check",
		bytes.NewBufferString(`{"type":"google.cloud.scheduler.job.v1.executed"}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	var body checkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "run-1", body.RunID)
	require.Equal(t, stock.OutcomeNotified, body.Outcome)
	require.Equal(t, "msg-1", body.MessageID)
	require.Equal(t, 1, runner.calls)

	triggered := logs.FilterMessage("check triggered").All()
	require.Len(t, triggered, 1)
	require.Equal(t, "google.cloud.scheduler.job.v1.executed", triggered[0].ContextMap()["event_type"])
}

func TestServer_Check_EventBridgePayloadAndEmptyBody(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	runner := &fakeRunner{result: stock.Result{Outcome: stock.OutcomeOutOfStock}}
	server := NewServer(runner, Config{}, zap.New(core))

	req := httptest.NewRequest(http.MethodPost, "/v1/check",
		bytes.NewBufferString(`{"detail-type":"Scheduled Event","source":"aws.events"}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/check", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, runner.calls)

	triggered := logs.FilterMessage("check triggered").All()
	require.Len(t, triggered, 2)
	require.Equal(t, "Scheduled Event", triggered[0].ContextMap()["event_type"])
	require.Equal(t, "unknown", triggered[1].ContextMap()["event_type"])
}

func TestServer_Check_FailureReporting(t *testing.T) {
	t.Parallel()

	failed := stock.Result{
		RunID:   "run-2",
		Outcome: stock.OutcomeFailed,
		Err:     fmt.Errorf("%w: connection refused", stock.ErrFetch),
	}

	tests := []struct {
		name   string
		report bool
		want   int
	}{
		{name: "silent by default", report: false, want: http.StatusOK},
		{name: "reported when enabled", report: true, want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := NewServer(&fakeRunner{result: failed}, Config{ReportFailures: tc.report}, nil)
			req := httptest.NewRequest(http.MethodPost, "/v1/check", nil)
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)

			require.Equal(t, tc.want, rec.Code)
			require.Contains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestServer_Check_InvalidJSON(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	server := NewServer(runner, Config{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/check", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, runner.calls)
}

func TestServer_RecoversPanics(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeRunner{panics: true}, Config{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/check", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeRunner{}, Config{}, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestTriggerEventKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a", triggerEvent{Type: "a", DetailType: "b"}.kind())
	require.Equal(t, "b", triggerEvent{DetailType: "b"}.kind())
	require.Equal(t, "unknown", triggerEvent{}.kind())
}
