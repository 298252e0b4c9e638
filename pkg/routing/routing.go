// Package routing compiles action route templates and carries route values.
// Templates use gorilla/mux syntax ("/employees/{id:[0-9]+}").
package routing

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"
)

// Values maps route parameter names to values. Lookups through Get are
// case-insensitive.
type Values map[string]string

// Get returns the value for key, falling back to a case-insensitive match.
func (v Values) Get(key string) (string, bool) {
	if s, ok := v[key]; ok {
		return s, true
	}
	for k, s := range v {
		if strings.EqualFold(k, key) {
			return s, true
		}
	}
	return "", false
}

// Merge returns a copy of v with the entries of other layered on top.
func (v Values) Merge(other Values) Values {
	out := make(Values, len(v)+len(other))
	for k, s := range v {
		out[k] = s
	}
	for k, s := range other {
		out[k] = s
	}
	return out
}

// Keys returns the sorted keys.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Template is a compiled route template. An empty template matches any
// path and contributes no values.
type Template struct {
	text  string
	route *mux.Route
}

// Compile parses tpl.
func Compile(tpl string) (*Template, error) {
	t := &Template{text: tpl}
	if tpl == "" {
		return t, nil
	}
	if !strings.HasPrefix(tpl, "/") {
		return nil, fmt.Errorf("routing: template %q must start with '/'", tpl)
	}
	route := mux.NewRouter().NewRoute().Path(tpl)
	if err := route.GetError(); err != nil {
		return nil, fmt.Errorf("routing: invalid template %q: %w", tpl, err)
	}
	t.route = route
	return t, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(tpl string) *Template {
	t, err := Compile(tpl)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template text.
func (t *Template) String() string { return t.text }

// Match reports whether r's path matches and returns the captured values.
func (t *Template) Match(r *http.Request) (Values, bool) {
	if t == nil || t.route == nil {
		return Values{}, true
	}
	var m mux.RouteMatch
	if !t.route.Match(r, &m) {
		return nil, false
	}
	return Values(m.Vars), true
}

type ambientKey struct{}

// WithAmbientValues attaches route values captured by a host router.
// Values captured by an action's own template take precedence.
func WithAmbientValues(ctx context.Context, v Values) context.Context {
	return context.WithValue(ctx, ambientKey{}, v)
}

// AmbientValues returns the host-supplied route values on ctx.
func AmbientValues(ctx context.Context) Values {
	if v, ok := ctx.Value(ambientKey{}).(Values); ok {
		return v
	}
	return nil
}
