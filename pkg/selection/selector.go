// Package selection resolves the single action that handles a request.
package selection

import (
	"net/http"

	"github.com/R3E-Network/mvc_layer/internal/errors"
	"github.com/R3E-Network/mvc_layer/internal/logging"
	"github.com/R3E-Network/mvc_layer/internal/metrics"
	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/constraints"
	"github.com/R3E-Network/mvc_layer/pkg/routing"
)

// Selection is a selected action with the route values it matched.
type Selection struct {
	Descriptor  *actions.ActionDescriptor
	RouteValues routing.Values
}

// Selector filters the action collection by route template and then by
// constraints. It never breaks ties.
type Selector struct {
	actions *actions.Collection
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewSelector creates a selector over c. logger and m may be nil.
func NewSelector(c *actions.Collection, logger *logging.Logger, m *metrics.Metrics) *Selector {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Selector{actions: c, logger: logger, metrics: m}
}

// Candidates returns the actions whose templates match r, with their
// route values. Host-supplied ambient values are merged underneath.
func (s *Selector) Candidates(r *http.Request) []Selection {
	ambient := routing.AmbientValues(r.Context())
	var out []Selection
	for _, d := range s.actions.Items() {
		vals, ok := d.Template().Match(r)
		if !ok {
			continue
		}
		out = append(out, Selection{Descriptor: d, RouteValues: ambient.Merge(vals)})
	}
	return out
}

// Select returns the one action for r. No match yields an ActionNotFound
// error and several matches an AmbiguousAction error.
func (s *Selector) Select(r *http.Request) (*Selection, error) {
	matched := constraints.Evaluate(s.Candidates(r),
		func(c Selection) []constraints.Constraint { return c.Descriptor.Constraints },
		func(c Selection) *constraints.Context {
			return &constraints.Context{Request: r, RouteValues: c.RouteValues}
		})

	switch len(matched) {
	case 1:
		return &matched[0], nil
	case 0:
		s.metrics.RecordSelectionFailure("not_found")
		return nil, errors.ActionNotFound(r.Method, r.URL.Path)
	default:
		names := make([]string, len(matched))
		for i, m := range matched {
			names[i] = m.Descriptor.DisplayName()
		}
		s.metrics.RecordSelectionFailure("ambiguous")
		s.logger.WithContext(r.Context()).
			WithField("candidates", names).
			WithField("path", r.URL.Path).
			Error("Multiple actions matched the request")
		return nil, errors.AmbiguousAction(names)
	}
}
