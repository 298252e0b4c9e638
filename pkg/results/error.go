package results

import (
	"github.com/R3E-Network/mvc_layer/internal/errors"
	"github.com/R3E-Network/mvc_layer/internal/httputil"
	"github.com/R3E-Network/mvc_layer/pkg/actions"
)

// ErrorResult renders Err as the JSON error envelope. Errors that are not
// client errors are rendered as an opaque 500.
type ErrorResult struct {
	Err error
}

// ExecuteResult implements Result.
func (e ErrorResult) ExecuteResult(ac *actions.ActionContext) error {
	se := errors.GetServiceError(e.Err)
	if se == nil || !se.IsClientError() {
		se = errors.Internal("Internal server error", e.Err)
	}
	httputil.WriteJSON(ac.Response, se.HTTPStatus, httputil.NewErrorResponse(se, ac.TraceID))
	return nil
}
