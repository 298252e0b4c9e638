// Package results holds the action results the invoker executes against
// the response.
package results

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/R3E-Network/mvc_layer/pkg/actions"
)

// Capabilities resolved from the services registry.
const (
	FormatterOptionsService = "mvc.formatter_options"
	URLHelperService        = "mvc.url_helper"
	ViewEngineService       = "mvc.view_engine"
)

// Result writes an action's outcome to the response.
type Result interface {
	ExecuteResult(ac *actions.ActionContext) error
}

// Func adapts a function to Result.
type Func func(ac *actions.ActionContext) error

// ExecuteResult implements Result.
func (f Func) ExecuteResult(ac *actions.ActionContext) error { return f(ac) }

// Normalize turns a handler return value into a Result: results pass
// through, nil becomes Empty, strings become text/plain content and
// anything else is negotiated as an ObjectResult.
func Normalize(v any) Result {
	switch r := v.(type) {
	case Result:
		return r
	case nil:
		return Empty{}
	case string:
		return Content{Content: r, ContentType: "text/plain; charset=utf-8"}
	default:
		return &ObjectResult{Value: v}
	}
}

// Empty writes nothing; the host sends 200 with an empty body.
type Empty struct{}

// ExecuteResult implements Result.
func (Empty) ExecuteResult(*actions.ActionContext) error { return nil }

// StatusCode writes only a status code.
type StatusCode int

// ExecuteResult implements Result.
func (s StatusCode) ExecuteResult(ac *actions.ActionContext) error {
	ac.Response.WriteHeader(int(s))
	return nil
}

// Convenience status results.
const (
	OK           = StatusCode(http.StatusOK)
	NoContent    = StatusCode(http.StatusNoContent)
	NotFound     = StatusCode(http.StatusNotFound)
	Unauthorized = StatusCode(http.StatusUnauthorized)
	Forbidden    = StatusCode(http.StatusForbidden)
)

// Content writes a string body.
type Content struct {
	Content     string
	ContentType string
	StatusCode  int
}

// ExecuteResult implements Result.
func (c Content) ExecuteResult(ac *actions.ActionContext) error {
	ct := c.ContentType
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	ac.Response.Header().Set("Content-Type", ct)
	if c.StatusCode != 0 {
		ac.Response.WriteHeader(c.StatusCode)
	}
	_, err := ac.Response.Write([]byte(c.Content))
	return err
}

// JSON writes Value as JSON without negotiation.
type JSON struct {
	Value      any
	StatusCode int
}

// ExecuteResult implements Result.
func (j JSON) ExecuteResult(ac *actions.ActionContext) error {
	b, err := json.Marshal(j.Value)
	if err != nil {
		return fmt.Errorf("encode json result: %w", err)
	}
	status := j.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	ac.Response.Header().Set("Content-Type", "application/json; charset=utf-8")
	ac.Response.WriteHeader(status)
	_, err = ac.Response.Write(b)
	return err
}
