package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/mvc_layer/internal/config"
	"github.com/R3E-Network/mvc_layer/internal/logging"
	"github.com/R3E-Network/mvc_layer/internal/metrics"
	"github.com/R3E-Network/mvc_layer/pkg/filters"
)

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			MaxBodyBytes:   1 << 20,
			MaxModelErrors: 200,
		},
		RateLimit: config.RateLimitConfig{Burst: 1, CleanupSchedule: "@every 5m"},
		CORS:      config.CORSConfig{AllowedOrigins: "*"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*server, *test.Hook) {
	t.Helper()
	l, hook := test.NewNullLogger()
	dir := newDirectory(
		employee{Name: "Ann Lee", Department: "Engineering"},
		employee{Name: "Bo Chen", Department: "Sales"},
	)
	s, err := newServer(cfg, logging.NewFromLogrus(serviceName, l), metrics.New("test"), dir)
	require.NoError(t, err)
	t.Cleanup(s.close)
	return s, hook
}

func do(s *server, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestEmployees(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	t.Run("list", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/employees", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var got []employee
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Len(t, got, 2)
		assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
	})

	t.Run("filter by department", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/employees?department=sales", "")
		assert.JSONEq(t, `[{"id":2,"name":"Bo Chen","department":"Sales"}]`, rec.Body.String())
	})

	t.Run("xml on request", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/employees/1", "", "Accept", "application/xml")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
		assert.Contains(t, rec.Body.String(), "<Name>Ann Lee</Name>")
	})

	t.Run("produces xml", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/employees/2/xml", "")
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
		assert.Contains(t, rec.Body.String(), "<Department>Sales</Department>")
	})

	t.Run("not found", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/employees/99", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("view", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/employees/1/page", "", "X-Trace-ID", "page-trace")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "<h1>Ann Lee</h1>")
		assert.Contains(t, rec.Body.String(), "Trace page-trace")
	})
}

func TestEmployees_Create(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodPost, "/employees", `{"name":`, "Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"employee"`)

	rec = do(s, http.MethodPost, "/employees", `{"department":"Ops"}`, "Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "name is required")
	assert.JSONEq(t, `{"employee.Name":["The Name field is required."]}`, rec.Body.String())
	var list []employee
	require.NoError(t, json.Unmarshal(do(s, http.MethodGet, "/employees", "").Body.Bytes(), &list))
	assert.Len(t, list, 2, "invalid models never reach the action")

	rec = do(s, http.MethodPost, "/employees", `{"name":"Cy Diaz","department":"Ops"}`, "Content-Type", "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":3,"name":"Cy Diaz","department":"Ops"}`, rec.Body.String())

	rec = do(s, http.MethodPost, "/employees", `name=x`, "Content-Type", "text/plain")
	assert.Equal(t, http.StatusNotFound, rec.Code, "consumes constraint rejects the only candidate")
}

func TestEmployees_ExportConstraint(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodGet, "/employees/export", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, http.MethodGet, "/employees/export", "", "X-Export", "allowed")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "1,Ann Lee,Engineering")
}

func TestPairsFilesAndHome(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodPost, "/pairs?Key=bonus&Value=3", "")
	assert.JSONEq(t, `{"Key":"bonus","Value":3}`, rec.Body.String())

	rec = do(s, http.MethodGet, "/files/handbook", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=handbook.txt", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "Employee handbook")

	rec = do(s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/employees", rec.Header().Get("Location"))
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	do(s, http.MethodGet, "/employees", "")
	rec = do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
	assert.Contains(t, rec.Body.String(), `action="Employees.List"`)
}

func TestAuthorization(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = "test-secret"
	s, hook := newTestServer(t, cfg)

	rec := do(s, http.MethodGet, "/employees", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, hook.LastEntry())

	rec = do(s, http.MethodGet, "/files/handbook", "")
	assert.Equal(t, http.StatusOK, rec.Code, "anonymous actions skip authorization")

	claims := &filters.Claims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	rec = do(s, http.MethodGet, "/employees", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerSecond = 1
	s, _ := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/employees", "").Code)
	rec := do(s, http.MethodGet, "/employees", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	s.cleanup()
	assert.Equal(t, 1, s.rateLimit.Len(), "recent limiters survive cleanup")
}

func TestResponseCache(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.TTL = time.Minute
	s, _ := newTestServer(t, cfg)
	require.NotNil(t, s.memCache)

	first := do(s, http.MethodGet, "/employees/1", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get("X-Cache"))

	second := do(s, http.MethodGet, "/employees/1", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	xml := do(s, http.MethodGet, "/employees/1", "", "Accept", "application/xml")
	require.Equal(t, http.StatusOK, xml.Code)
	assert.Empty(t, xml.Header().Get("X-Cache"), "json and xml are cached apart")
	assert.Contains(t, xml.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, xml.Body.String(), "<Name>Ann Lee</Name>")

	xml = do(s, http.MethodGet, "/employees/1", "", "Accept", "application/xml")
	assert.Equal(t, "HIT", xml.Header().Get("X-Cache"))
	assert.Contains(t, xml.Header().Get("Content-Type"), "application/xml")

	again := do(s, http.MethodGet, "/employees/1", "")
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), again.Body.String())

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/employees/42", "").Code)
	assert.Empty(t, do(s, http.MethodGet, "/employees/42", "").Header().Get("X-Cache"), "errors are not cached")
}

func TestNewServer_InvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerSecond = 5
	cfg.RateLimit.CleanupSchedule = "not a schedule"

	_, err := newServer(cfg, logging.Discard(), metrics.New("test"), newDirectory())
	assert.Error(t, err)
}
