// Package filters defines the filter stages that wrap an action invocation
// and the built-in filters shipped with the pipeline.
//
// Stages run in a fixed order: authorization, resource, (model binding),
// action, exception and result. Resource, action and result filters receive
// a next delegate; returning without calling it short-circuits the stage
// with the Result set on the executing context.
package filters

import (
	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/results"
)

// Stage names a filter stage. Used in metrics labels and logs.
type Stage string

const (
	StageAuthorization Stage = "authorization"
	StageResource      Stage = "resource"
	StageAction        Stage = "action"
	StageException     Stage = "exception"
	StageResult        Stage = "result"
)

// AuthorizationContext is passed to authorization filters. Setting Result
// short-circuits the pipeline; the result is executed directly.
type AuthorizationContext struct {
	*actions.ActionContext
	Result results.Result
}

// ResourceExecutingContext is passed to resource filters before the rest
// of the pipeline runs.
type ResourceExecutingContext struct {
	*actions.ActionContext
	Result results.Result
}

// ResourceExecutedContext describes the outcome of everything inside the
// resource stage.
type ResourceExecutedContext struct {
	*actions.ActionContext
	Result           results.Result
	Err              error
	ExceptionHandled bool
	// Canceled is true when an inner resource filter short-circuited.
	Canceled bool
}

// ActionExecutingContext is passed to action filters with the bound
// arguments. Filters may replace arguments before calling next.
type ActionExecutingContext struct {
	*actions.ActionContext
	Arguments actions.Arguments
	Result    results.Result
}

// ActionExecutedContext describes the outcome of the handler and the inner
// action filters. Setting ExceptionHandled, or clearing Err, swallows the
// error.
type ActionExecutedContext struct {
	*actions.ActionContext
	Result           results.Result
	Err              error
	ExceptionHandled bool
	Canceled         bool
}

// ExceptionContext is passed to exception filters when binding, an action
// filter or the handler fails.
type ExceptionContext struct {
	*actions.ActionContext
	Err              error
	Result           results.Result
	ExceptionHandled bool
}

// Handled reports whether a filter dealt with the error.
func (c *ExceptionContext) Handled() bool {
	return c.ExceptionHandled || c.Result != nil
}

// ResultExecutingContext is passed to result filters before the result is
// executed. Filters may replace Result.
type ResultExecutingContext struct {
	*actions.ActionContext
	Result results.Result
}

// ResultExecutedContext describes the outcome of result execution.
type ResultExecutedContext struct {
	*actions.ActionContext
	Result           results.Result
	Err              error
	ExceptionHandled bool
	Canceled         bool
}

type (
	// ResourceNext runs the rest of the pipeline inside a resource filter.
	ResourceNext func() *ResourceExecutedContext
	// ActionNext runs the inner action filters and the handler.
	ActionNext func() *ActionExecutedContext
	// ResultNext runs the inner result filters and the result.
	ResultNext func() *ResultExecutedContext
)

// AuthorizationFilter runs first, sequentially. A returned error faults the
// invocation.
type AuthorizationFilter interface {
	OnAuthorization(c *AuthorizationContext) error
}

// ResourceFilter wraps binding, action filters, the handler and the result.
type ResourceFilter interface {
	OnResourceExecution(c *ResourceExecutingContext, next ResourceNext) error
}

// ActionFilter wraps the handler call.
type ActionFilter interface {
	OnActionExecution(c *ActionExecutingContext, next ActionNext) error
}

// ExceptionFilter observes errors from binding, action filters and the
// handler. Filters run innermost first.
type ExceptionFilter interface {
	OnException(c *ExceptionContext) error
}

// ResultFilter wraps result execution.
type ResultFilter interface {
	OnResultExecution(c *ResultExecutingContext, next ResultNext) error
}

// AuthorizationFunc adapts a function to AuthorizationFilter.
type AuthorizationFunc func(c *AuthorizationContext) error

// OnAuthorization implements AuthorizationFilter.
func (f AuthorizationFunc) OnAuthorization(c *AuthorizationContext) error { return f(c) }

// ResourceFunc adapts a function to ResourceFilter.
type ResourceFunc func(c *ResourceExecutingContext, next ResourceNext) error

// OnResourceExecution implements ResourceFilter.
func (f ResourceFunc) OnResourceExecution(c *ResourceExecutingContext, next ResourceNext) error {
	return f(c, next)
}

// ActionFunc adapts a function to ActionFilter.
type ActionFunc func(c *ActionExecutingContext, next ActionNext) error

// OnActionExecution implements ActionFilter.
func (f ActionFunc) OnActionExecution(c *ActionExecutingContext, next ActionNext) error {
	return f(c, next)
}

// ExceptionFunc adapts a function to ExceptionFilter.
type ExceptionFunc func(c *ExceptionContext) error

// OnException implements ExceptionFilter.
func (f ExceptionFunc) OnException(c *ExceptionContext) error { return f(c) }

// ResultFunc adapts a function to ResultFilter.
type ResultFunc func(c *ResultExecutingContext, next ResultNext) error

// OnResultExecution implements ResultFilter.
func (f ResultFunc) OnResultExecution(c *ResultExecutingContext, next ResultNext) error {
	return f(c, next)
}
