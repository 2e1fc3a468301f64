package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/stopopioids/internal/assessment"
	"github.com/Skufu/stopopioids/internal/config"
	"github.com/Skufu/stopopioids/internal/observability"
	"github.com/Skufu/stopopioids/internal/upstream"
)

type fakeChecker struct {
	err error
}

func (f fakeChecker) Ping(ctx context.Context) error {
	return f.err
}

func testDeps(t *testing.T, providerURL string) routerDeps {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	metrics := observability.NewMetrics()
	client := upstream.NewClient(config.UpstreamConfig{
		APIKey:  "sk-test",
		BaseURL: providerURL,
		Model:   "test/model",
		Referer: "http://localhost:3000",
		Title:   "StopOpioids",
	}, upstream.WithLogger(logger), upstream.WithRecorder(metrics))

	return routerDeps{
		assessor: client,
		metrics:  metrics,
		logger:   logger,
		mode:     config.ModeBuffered,
	}
}

func TestRouterHealthz(t *testing.T) {
	router := setupRouter(testDeps(t, "http://127.0.0.1:0"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if w.Header().Get(observability.RequestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestRouterReadyz(t *testing.T) {
	tests := []struct {
		name     string
		checker  HealthChecker
		code     int
		upstream string
	}{
		{name: "unchecked", checker: nil, code: http.StatusOK, upstream: "unchecked"},
		{name: "healthy", checker: fakeChecker{}, code: http.StatusOK, upstream: "ok"},
		{name: "unreachable", checker: fakeChecker{err: errors.New("dial tcp: refused")}, code: http.StatusServiceUnavailable, upstream: "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps(t, "http://127.0.0.1:0")
			deps.upstream = tt.checker
			router := setupRouter(deps)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.code, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.upstream, body["upstream"])
			assert.NotContains(t, w.Body.String(), "refused")
		})
	}
}

// The 1MB body limit applies to both assessment routes before the provider is
// contacted; bodies under it reach the relay.
func TestRouterBodySizeLimit(t *testing.T) {
	var calls atomic.Int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"riskScore\": 5, \"summary\": \"ok\"}"}}]}`)
	}))
	defer provider.Close()
	router := setupRouter(testDeps(t, provider.URL))

	tests := []struct {
		name  string
		path  string
		size  int
		code  int
		calls int32
	}{
		{name: "buffered within limit", path: "/api/assess", size: 1024, code: http.StatusOK, calls: 1},
		{name: "buffered over limit", path: "/api/assess", size: 1 << 20, code: http.StatusRequestEntityTooLarge},
		{name: "stream over limit", path: "/api/assess/stream", size: 1 << 20, code: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls.Store(0)
			body := `{"text": "` + strings.Repeat("a", tt.size) + `"}`
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.calls, calls.Load())
		})
	}
}

func fakeProvider(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if stream, _ := req["stream"].(bool); stream {
			for _, word := range strings.SplitAfter(content, " ") {
				b, _ := json.Marshal(map[string]any{
					"choices": []any{map[string]any{"delta": map[string]any{"content": word}}},
				})
				_, _ = io.WriteString(w, "data: "+string(b)+"\n\n")
				w.(http.Flusher).Flush()
			}
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return
		}

		b, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAssessEndToEndBuffered(t *testing.T) {
	provider := fakeProvider(t, "```json\n{\"riskScore\": 12, \"summary\": \"Appropriately managed post-operative course.\", \"protectiveFactors\": [\"Plan to taper to ibuprofen\"], \"confidence\": \"High\"}\n```")
	router := setupRouter(testDeps(t, provider.URL))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/assess", strings.NewReader(`{"text": "Post-surgery day 2, ice therapy"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res assessment.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, assessment.BandLow, res.Band())
	assert.Empty(t, res.RiskFactors)
	assert.Equal(t, []string{"Plan to taper to ibuprofen"}, res.ProtectiveFactors)
	assert.Equal(t, assessment.Disclaimer, res.Warning)

	metrics := httptest.NewRecorder()
	router.ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metrics.Body.String(), `assessments_total{mode="buffered",outcome="ok"} 1`)
	assert.Contains(t, metrics.Body.String(), `upstream_requests_total{kind="complete",status="200"} 1`)
}

func TestAssessEndToEndStream(t *testing.T) {
	provider := fakeProvider(t, "DISCLAIMER: educational only. Summary of Analysis follows.")
	deps := testDeps(t, provider.URL)
	deps.mode = config.ModeStream
	router := setupRouter(deps)

	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/assess", "application/json", strings.NewReader(`{"text": "early refills"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "DISCLAIMER: educational only. Summary of Analysis follows.", string(body))
}

func TestAssessStreamProviderDisconnect(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"delta": map[string]any{"content": "partial"}}},
		})
		_, _ = io.WriteString(w, "data: "+string(b)+"\n\n")
		w.(http.Flusher).Flush()

		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer provider.Close()

	deps := testDeps(t, provider.URL)
	deps.mode = config.ModeStream
	router := setupRouter(deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/assess", "application/json", strings.NewReader(`{"text": "early refills"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "partial", string(body))
	require.Error(t, err, "a truncated relay must not end like a complete body")

	metrics := httptest.NewRecorder()
	router.ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metrics.Body.String(), `assessments_total{mode="stream",outcome="failed"} 1`)
	assert.NotContains(t, metrics.Body.String(), `assessments_total{mode="stream",outcome="ok"}`)
}

func TestAssessUpstreamDown(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key sk-test", http.StatusUnauthorized)
	}))
	defer provider.Close()
	router := setupRouter(testDeps(t, provider.URL))

	for _, path := range []string{"/api/assess", "/api/assess/stream"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"text": "notes"}`)))

		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.NotContains(t, w.Body.String(), "sk-test", path)
	}
}

func TestStaticFrontendServedWhenPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>StopOpioids</h1>"), 0o644))

	deps := testDeps(t, "http://127.0.0.1:0")
	deps.staticRoot = dir
	router := setupRouter(deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "StopOpioids")

	deps.staticRoot = t.TempDir()
	w = httptest.NewRecorder()
	setupRouter(deps).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetectStaticRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "web"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "web", "index.html"), []byte("ok"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	got, err := filepath.EvalSymlinks(detectStaticRoot())
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(filepath.Join(dir, "web"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
