package mvc

import (
	"context"
	"errors"
	"net/http"

	"github.com/R3E-Network/mvc_layer/internal/httputil"
	"github.com/R3E-Network/mvc_layer/internal/logging"
	"github.com/R3E-Network/mvc_layer/internal/metrics"
	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/filters"
	"github.com/R3E-Network/mvc_layer/pkg/invoker"
	"github.com/R3E-Network/mvc_layer/pkg/selection"
	"github.com/R3E-Network/mvc_layer/pkg/services"
)

// ModelBindersService resolves the *modelbinding.Registry.
const ModelBindersService = "mvc.model_binders"

// App selects and invokes actions. It is safe for concurrent use.
type App struct {
	actions  *actions.Collection
	selector *selection.Selector
	factory  *invoker.Factory
	filters  *filters.Provider
	services *services.Registry
	logger   *logging.Logger
	metrics  *metrics.Metrics
	opts     Options
}

// Actions returns the collected descriptors.
func (a *App) Actions() *actions.Collection { return a.actions }

// Services returns the service registry.
func (a *App) Services() *services.Registry { return a.services }

// Options returns the effective options.
func (a *App) Options() Options { return a.opts }

// Filters returns the filter provider holding the global filters.
func (a *App) Filters() *filters.Provider { return a.filters }

// Metrics returns the metrics collector, which may be nil.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Selector returns the action selector.
func (a *App) Selector() *selection.Selector { return a.selector }

// NewActionContext creates the context for a selected action. The trace ID
// is taken from the request, or generated.
func (a *App) NewActionContext(w http.ResponseWriter, r *http.Request, sel *selection.Selection) *actions.ActionContext {
	ac := actions.NewActionContext(w, r, sel.Descriptor, sel.RouteValues, a.services)
	ac.TraceID = logging.GetTraceID(r.Context())
	if ac.TraceID == "" {
		ac.TraceID = logging.NewTraceID()
		ac.WithContext(logging.WithTraceID(ac.Context(), ac.TraceID))
	}
	ac.Logger = a.logger.WithContext(ac.Context())
	return ac
}

// Invoke runs the pipeline for an already selected action. The returned
// error is one no filter handled.
func (a *App) Invoke(ac *actions.ActionContext) error {
	inv, err := a.factory.CreateInvoker(ac)
	if err != nil {
		return err
	}
	return inv.Invoke()
}

// ServeHTTP selects the action for r and invokes it. Selection failures
// and unhandled errors are written as the JSON error envelope; server
// errors are opaque.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sel, err := a.selector.Select(r)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	ac := a.NewActionContext(w, r, sel)
	err = a.Invoke(ac)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if ac.Response.HasStarted() {
		ac.Logger.WithError(err).Warn("Action failed after the response started")
		return
	}
	httputil.WriteServiceError(ac.Response, ac.Request, err)
}
