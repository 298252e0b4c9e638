// Package constraints evaluates the predicates that restrict which actions
// may handle a request.
package constraints

import (
	"mime"
	"net/http"
	"sort"
	"strings"

	"github.com/R3E-Network/mvc_layer/pkg/routing"
)

// Well-known constraint orders. Lower orders run first.
const (
	HTTPMethodOrder = 100
	ConsumesOrder   = 200
	HeaderOrder     = 300
	ScriptOrder     = 1000
)

// Context is the request view a constraint evaluates.
type Context struct {
	Request     *http.Request
	RouteValues routing.Values
}

// Constraint is a predicate over the current request.
type Constraint interface {
	Order() int
	Accept(c *Context) bool
}

// Sort orders cs by Order, keeping registration order for ties. The input
// is not modified.
func Sort(cs []Constraint) []Constraint {
	out := make([]Constraint, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order() < out[j].Order() })
	return out
}

// AcceptAll reports whether every constraint accepts c, stopping at the
// first rejection. cs is expected to be sorted.
func AcceptAll(cs []Constraint, c *Context) bool {
	for _, con := range cs {
		if !con.Accept(c) {
			return false
		}
	}
	return true
}

// Evaluate returns the candidates whose constraints all accept. The
// returned slice keeps candidate order; ambiguity is left to the caller.
func Evaluate[T any](candidates []T, constraintsOf func(T) []Constraint, contextOf func(T) *Context) []T {
	var out []T
	for _, cand := range candidates {
		if AcceptAll(constraintsOf(cand), contextOf(cand)) {
			out = append(out, cand)
		}
	}
	return out
}

// HTTPMethod accepts requests whose method is in Methods. CORS preflight
// requests are matched on the method they ask about.
type HTTPMethod struct {
	Methods []string
}

// Methods creates an HTTPMethod constraint.
func Methods(methods ...string) HTTPMethod {
	up := make([]string, len(methods))
	for i, m := range methods {
		up[i] = strings.ToUpper(m)
	}
	return HTTPMethod{Methods: up}
}

// Order implements Constraint.
func (HTTPMethod) Order() int { return HTTPMethodOrder }

// Accept implements Constraint.
func (h HTTPMethod) Accept(c *Context) bool {
	if len(h.Methods) == 0 {
		return true
	}
	method := c.Request.Method
	if isPreflight(c.Request) {
		method = c.Request.Header.Get("Access-Control-Request-Method")
	}
	for _, m := range h.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}

// Consumes accepts requests whose Content-Type matches one of
// ContentTypes. Requests without a body type are accepted.
type Consumes struct {
	ContentTypes []string
}

// ConsumesTypes creates a Consumes constraint.
func ConsumesTypes(types ...string) Consumes {
	return Consumes{ContentTypes: types}
}

// Order implements Constraint.
func (Consumes) Order() int { return ConsumesOrder }

// Accept implements Constraint.
func (cs Consumes) Accept(c *Context) bool {
	ct := c.Request.Header.Get("Content-Type")
	if ct == "" || len(cs.ContentTypes) == 0 {
		return true
	}
	got, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	for _, want := range cs.ContentTypes {
		if MediaTypeMatches(want, got) {
			return true
		}
	}
	return false
}

// MediaTypeMatches reports whether media type got satisfies pattern, which
// may use "*" for the type or subtype.
func MediaTypeMatches(pattern, got string) bool {
	p, _, err := mime.ParseMediaType(pattern)
	if err != nil {
		return false
	}
	if p == "*/*" {
		return true
	}
	pt, ps, _ := strings.Cut(p, "/")
	gt, gs, _ := strings.Cut(strings.ToLower(got), "/")
	return pt == gt && (ps == "*" || ps == gs)
}

// Header accepts requests carrying Name. When Value is set the header must
// equal it, ignoring case.
type Header struct {
	Name  string
	Value string
}

// Order implements Constraint.
func (Header) Order() int { return HeaderOrder }

// Accept implements Constraint.
func (h Header) Accept(c *Context) bool {
	vals := c.Request.Header.Values(h.Name)
	if len(vals) == 0 {
		return false
	}
	if h.Value == "" {
		return true
	}
	for _, v := range vals {
		if strings.EqualFold(strings.TrimSpace(v), h.Value) {
			return true
		}
	}
	return false
}

// Func adapts a predicate to Constraint.
type Func struct {
	Ord int
	Fn  func(c *Context) bool
}

// Order implements Constraint.
func (f Func) Order() int { return f.Ord }

// Accept implements Constraint.
func (f Func) Accept(c *Context) bool { return f.Fn(c) }
