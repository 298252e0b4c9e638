package constraints

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/R3E-Network/mvc_layer/pkg/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(method, target string, headers map[string]string) *Context {
	r := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return &Context{Request: r, RouteValues: routing.Values{}}
}

func TestHTTPMethod(t *testing.T) {
	c := Methods("get", "HEAD")

	assert.True(t, c.Accept(newContext(http.MethodGet, "/", nil)))
	assert.True(t, c.Accept(newContext(http.MethodHead, "/", nil)))
	assert.False(t, c.Accept(newContext(http.MethodPost, "/", nil)))
	assert.True(t, HTTPMethod{}.Accept(newContext(http.MethodDelete, "/", nil)))

	preflight := newContext(http.MethodOptions, "/", map[string]string{
		"Origin":                        "https://app.example",
		"Access-Control-Request-Method": "GET",
	})
	assert.True(t, c.Accept(preflight))
	assert.False(t, Methods("POST").Accept(preflight))
	assert.False(t, c.Accept(newContext(http.MethodOptions, "/", nil)), "plain OPTIONS is not a preflight")
}

func TestConsumes(t *testing.T) {
	c := ConsumesTypes("application/json", "text/*")

	tests := []struct {
		contentType string
		want        bool
	}{
		{"", true},
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"text/plain", true},
		{"application/xml", false},
		{"not a media type;;", false},
	}
	for _, tc := range tests {
		ctx := newContext(http.MethodPost, "/", map[string]string{"Content-Type": tc.contentType})
		assert.Equal(t, tc.want, c.Accept(ctx), tc.contentType)
	}
}

func TestMediaTypeMatches(t *testing.T) {
	assert.True(t, MediaTypeMatches("*/*", "image/png"))
	assert.True(t, MediaTypeMatches("application/*", "application/xml"))
	assert.False(t, MediaTypeMatches("application/json", "application/xml"))
	assert.False(t, MediaTypeMatches("bad", "application/xml"))
}

func TestHeader(t *testing.T) {
	presence := Header{Name: "X-Api-Version"}
	exact := Header{Name: "X-Api-Version", Value: "2"}

	v2 := newContext(http.MethodGet, "/", map[string]string{"X-Api-Version": " 2 "})
	v1 := newContext(http.MethodGet, "/", map[string]string{"X-Api-Version": "1"})
	none := newContext(http.MethodGet, "/", nil)

	assert.True(t, presence.Accept(v1))
	assert.False(t, presence.Accept(none))
	assert.True(t, exact.Accept(v2))
	assert.False(t, exact.Accept(v1))
}

type countingConstraint struct {
	order  int
	accept bool
	calls  *int
}

func (c countingConstraint) Order() int { return c.order }
func (c countingConstraint) Accept(*Context) bool {
	*c.calls++
	return c.accept
}

func TestSortAndAcceptAll(t *testing.T) {
	var calls int
	reject := countingConstraint{order: 1, accept: false, calls: &calls}
	accept := countingConstraint{order: 5, accept: true, calls: &calls}

	sorted := Sort([]Constraint{accept, reject})
	assert.Equal(t, 1, sorted[0].Order())

	assert.False(t, AcceptAll(sorted, newContext(http.MethodGet, "/", nil)))
	assert.Equal(t, 1, calls, "evaluation stops at the first rejection")

	a := Func{Ord: 10, Fn: func(*Context) bool { return true }}
	b := Func{Ord: 10, Fn: func(*Context) bool { return false }}
	stable := Sort([]Constraint{a, b})
	assert.True(t, stable[0].Accept(nil), "ties keep registration order")
}

func TestEvaluate(t *testing.T) {
	type cand struct {
		name string
		cs   []Constraint
	}
	ctx := newContext(http.MethodPost, "/", nil)
	cands := []cand{
		{"get", []Constraint{Methods("GET")}},
		{"post", []Constraint{Methods("POST")}},
		{"any", nil},
	}

	got := Evaluate(cands,
		func(c cand) []Constraint { return c.cs },
		func(cand) *Context { return ctx })

	require.Len(t, got, 2)
	assert.Equal(t, "post", got[0].name)
	assert.Equal(t, "any", got[1].name)
}

func TestScript(t *testing.T) {
	s, err := NewScript(`request.headers["x-tenant"] === "acme" && route.id !== "0" && request.method === "GET"`)
	require.NoError(t, err)
	assert.Equal(t, ScriptOrder, s.Order())

	ok := newContext(http.MethodGet, "/e/1?debug=1", map[string]string{"X-Tenant": "acme"})
	ok.RouteValues = routing.Values{"id": "1"}
	assert.True(t, s.Accept(ok))

	zero := newContext(http.MethodGet, "/e/0", map[string]string{"X-Tenant": "acme"})
	zero.RouteValues = routing.Values{"id": "0"}
	assert.False(t, s.Accept(zero))

	q := MustScript(`request.query.debug === "1"`, WithScriptOrder(5))
	assert.True(t, q.Accept(ok))
	assert.Equal(t, 5, q.Order())
}

func TestScript_Errors(t *testing.T) {
	_, err := NewScript(`this is not javascript (`)
	assert.Error(t, err)

	throws := MustScript(`throw new Error("nope")`)
	_, err = throws.Eval(newContext(http.MethodGet, "/", nil))
	assert.Error(t, err)
	assert.False(t, throws.Accept(newContext(http.MethodGet, "/", nil)))
}

func TestScript_Timeout(t *testing.T) {
	s := MustScript(`for (;;) {}`, WithScriptTimeout(20*time.Millisecond))

	start := time.Now()
	ok, err := s.Eval(newContext(http.MethodGet, "/", nil))
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
}
