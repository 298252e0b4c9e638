// Package hosting mounts an mvc.App on third-party routers. Route
// parameters captured by the host router are handed to the pipeline as
// ambient route values; values from the action's own template win.
package hosting

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/mux"

	"github.com/R3E-Network/mvc_layer/pkg/mvc"
	"github.com/R3E-Network/mvc_layer/pkg/routing"
)

// Gin returns a gin handler serving app. When catchAll names a wildcard
// parameter (registered as "*name"), its value becomes the request path
// the app routes on, so the app can be mounted below a prefix.
func Gin(app *mvc.App, catchAll string) gin.HandlerFunc {
	return func(c *gin.Context) {
		vals := routing.Values{}
		for _, p := range c.Params {
			if p.Key == catchAll {
				continue
			}
			vals[p.Key] = p.Value
		}
		r := withAmbient(c.Request, vals)
		if catchAll != "" {
			r = withPath(r, c.Param(catchAll))
		}
		app.ServeHTTP(c.Writer, r)
	}
}

// Chi returns a handler for chi routers. Mounted with Router.Mount, the
// remainder captured by chi's "*" parameter becomes the routed path.
func Chi(app *mvc.App) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vals := routing.Values{}
		rest, mounted := "", false
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				if key == "*" {
					rest, mounted = rctx.URLParams.Values[i], true
					continue
				}
				vals[key] = rctx.URLParams.Values[i]
			}
		}
		r = withAmbient(r, vals)
		if mounted {
			r = withPath(r, rest)
		}
		app.ServeHTTP(w, r)
	})
}

// Mux returns a handler for gorilla/mux routers. Variables from the
// matched mux route, including host variables, become ambient values.
func Mux(app *mvc.App) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.ServeHTTP(w, withAmbient(r, routing.Values(mux.Vars(r))))
	})
}

func withAmbient(r *http.Request, vals routing.Values) *http.Request {
	if len(vals) == 0 {
		return r
	}
	return r.WithContext(routing.WithAmbientValues(r.Context(), vals))
}

func withPath(r *http.Request, p string) *http.Request {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	r2 := r.Clone(r.Context())
	r2.URL.Path = p
	r2.URL.RawPath = ""
	return r2
}
