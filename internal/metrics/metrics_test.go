package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	m := New("")
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Registry() == nil {
		t.Error("registry should not be nil")
	}
}

func TestRecordInvocation(t *testing.T) {
	m := New("test")

	m.RecordInvocation("Employees.Info", "completed", 10*time.Millisecond)
	m.RecordInvocation("Employees.Info", "completed", 5*time.Millisecond)
	m.RecordInvocation("", "faulted", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.invocations.WithLabelValues("Employees.Info", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("unknown", "faulted")))
}

func TestPipelineRecorders(t *testing.T) {
	m := New("test")

	m.RecordTransition("selected", "binding")
	m.RecordSelectionFailure("not_found")
	m.RecordSelectionFailure("not_found")
	m.RecordShortCircuit("authorization")
	m.RecordModelStateErrors("A.B", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("selected", "binding")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.selectionFailures.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.shortCircuits.WithLabelValues("authorization")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordInvocation("a", "completed", time.Millisecond)
	m.RecordTransition("a", "b")
	m.RecordSelectionFailure("x")
	m.RecordShortCircuit("x")
	m.RecordModelStateErrors("a", 1)
}

func TestHandler(t *testing.T) {
	m := New("test")
	m.IncrementInFlight()
	m.RecordHTTPRequest("svc", "GET", "/x", "200", time.Millisecond)
	m.DecrementInFlight()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}
