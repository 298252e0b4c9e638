package filters

import (
	"github.com/R3E-Network/mvc_layer/internal/errors"
	"github.com/R3E-Network/mvc_layer/internal/logging"
	"github.com/R3E-Network/mvc_layer/pkg/results"
)

// ValidateModelState short-circuits actions whose model state is invalid
// with a 400 carrying the errors.
type ValidateModelState struct{}

// OnActionExecution implements ActionFilter.
func (ValidateModelState) OnActionExecution(c *ActionExecutingContext, next ActionNext) error {
	if !c.ModelState.IsValid() {
		c.Result = results.BadRequestModelState(c.ModelState)
		return nil
	}
	next()
	return nil
}

// ServiceErrorFilter renders ServiceErrors as the JSON error envelope with
// their status. Other errors are left to propagate unless HandleAll is set,
// in which case they are logged and rendered as an opaque 500. Errors of a
// canceled request always propagate.
type ServiceErrorFilter struct {
	Logger    *logging.Logger
	HandleAll bool
}

// OnException implements ExceptionFilter.
func (f ServiceErrorFilter) OnException(c *ExceptionContext) error {
	if c.Context().Err() != nil {
		return nil
	}
	se := errors.GetServiceError(c.Err)
	if se == nil && !f.HandleAll {
		return nil
	}
	if f.Logger != nil {
		entry := f.Logger.WithContext(c.Context()).WithError(c.Err).WithField("action", c.Descriptor.DisplayName())
		if se != nil && se.IsClientError() {
			entry.Debug("Action failed with client error")
		} else {
			entry.Error("Action failed")
		}
	}
	c.Result = results.ErrorResult{Err: c.Err}
	c.ExceptionHandled = true
	return nil
}

// Produces restricts object results to the given content types.
type Produces struct {
	ContentTypes []string
}

// NewProduces creates a Produces filter.
func NewProduces(contentTypes ...string) Produces {
	return Produces{ContentTypes: contentTypes}
}

// OnResultExecution implements ResultFilter. Object results that already
// name content types are left alone.
func (p Produces) OnResultExecution(c *ResultExecutingContext, next ResultNext) error {
	if obj, ok := c.Result.(*results.ObjectResult); ok && len(obj.ContentTypes) == 0 {
		restricted := *obj
		restricted.ContentTypes = p.ContentTypes
		c.Result = &restricted
	}
	next()
	return nil
}
