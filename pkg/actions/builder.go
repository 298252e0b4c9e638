package actions

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/R3E-Network/mvc_layer/pkg/constraints"
	"github.com/R3E-Network/mvc_layer/pkg/routing"
	"github.com/google/uuid"
)

// DescriptorProvider contributes action descriptors at startup.
type DescriptorProvider interface {
	ActionDescriptors() ([]*ActionDescriptor, error)
}

// Builder declares one action.
type Builder struct {
	d ActionDescriptor
}

// Action starts a descriptor for handler h.
func Action(name string, h HandlerFunc) *Builder {
	return &Builder{d: ActionDescriptor{Name: name, Handler: h, Properties: map[string]any{}}}
}

// Controller sets the controller name.
func (b *Builder) Controller(name string) *Builder {
	b.d.Controller = name
	return b
}

// Route sets the route template.
func (b *Builder) Route(tpl string) *Builder {
	b.d.RouteTemplate = tpl
	return b
}

// Methods adds an HTTP method constraint.
func (b *Builder) Methods(methods ...string) *Builder {
	return b.Constraint(constraints.Methods(methods...))
}

// Get sets the route template and restricts the action to GET.
func (b *Builder) Get(tpl string) *Builder { return b.Route(tpl).Methods(http.MethodGet) }

// Post sets the route template and restricts the action to POST.
func (b *Builder) Post(tpl string) *Builder { return b.Route(tpl).Methods(http.MethodPost) }

// Put sets the route template and restricts the action to PUT.
func (b *Builder) Put(tpl string) *Builder { return b.Route(tpl).Methods(http.MethodPut) }

// Delete sets the route template and restricts the action to DELETE.
func (b *Builder) Delete(tpl string) *Builder { return b.Route(tpl).Methods(http.MethodDelete) }

// Consumes adds a request content type constraint.
func (b *Builder) Consumes(types ...string) *Builder {
	return b.Constraint(constraints.ConsumesTypes(types...))
}

// Constraint adds c.
func (b *Builder) Constraint(c constraints.Constraint) *Builder {
	b.d.Constraints = append(b.d.Constraints, c)
	return b
}

// Params appends parameter declarations.
func (b *Builder) Params(ps ...ParameterDescriptor) *Builder {
	b.d.Parameters = append(b.d.Parameters, ps...)
	return b
}

// Filter attaches an action-scoped filter.
func (b *Builder) Filter(f any, order int) *Builder {
	b.d.Filters = append(b.d.Filters, FilterDescriptor{Filter: f, Order: order, Scope: ScopeAction})
	return b
}

// Property sets a descriptor property.
func (b *Builder) Property(key string, v any) *Builder {
	b.d.Properties[key] = v
	return b
}

// Build returns a copy of the declared descriptor. It is not yet compiled;
// NewCollection does that.
func (b *Builder) Build() *ActionDescriptor {
	d := b.d
	d.Parameters = append([]ParameterDescriptor(nil), b.d.Parameters...)
	d.Constraints = append([]constraints.Constraint(nil), b.d.Constraints...)
	d.Filters = append([]FilterDescriptor(nil), b.d.Filters...)
	d.Properties = make(map[string]any, len(b.d.Properties))
	for k, v := range b.d.Properties {
		d.Properties[k] = v
	}
	return &d
}

// ActionDescriptors implements DescriptorProvider.
func (b *Builder) ActionDescriptors() ([]*ActionDescriptor, error) {
	return []*ActionDescriptor{b.Build()}, nil
}

// Group declares actions sharing a controller name, route prefix,
// constraints and controller-scoped filters.
type Group struct {
	controller  string
	prefix      string
	filters     []FilterDescriptor
	constraints []constraints.Constraint
	actions     []*Builder
}

// NewGroup creates a group. prefix is prepended to every action route.
func NewGroup(controller, prefix string) *Group {
	return &Group{controller: controller, prefix: strings.TrimSuffix(prefix, "/")}
}

// Filter attaches a controller-scoped filter.
func (g *Group) Filter(f any, order int) *Group {
	g.filters = append(g.filters, FilterDescriptor{Filter: f, Order: order, Scope: ScopeController})
	return g
}

// Constraint adds c to every action in the group.
func (g *Group) Constraint(c constraints.Constraint) *Group {
	g.constraints = append(g.constraints, c)
	return g
}

// Action declares an action in the group.
func (g *Group) Action(name string, h HandlerFunc) *Builder {
	b := Action(name, h).Controller(g.controller)
	g.actions = append(g.actions, b)
	return b
}

// ActionDescriptors implements DescriptorProvider.
func (g *Group) ActionDescriptors() ([]*ActionDescriptor, error) {
	out := make([]*ActionDescriptor, 0, len(g.actions))
	for _, b := range g.actions {
		d := b.Build()
		if g.prefix != "" {
			d.RouteTemplate = g.prefix + d.RouteTemplate
		}
		d.Constraints = append(append([]constraints.Constraint(nil), g.constraints...), d.Constraints...)
		d.Filters = append(append([]FilterDescriptor(nil), g.filters...), d.Filters...)
		out = append(out, d)
	}
	return out, nil
}

// Collection is the process-wide, read-only set of compiled descriptors.
type Collection struct {
	items []*ActionDescriptor
	byID  map[string]*ActionDescriptor
}

// NewCollection gathers descriptors from providers, assigns IDs, compiles
// route templates and sorts constraints.
func NewCollection(providers ...DescriptorProvider) (*Collection, error) {
	c := &Collection{byID: make(map[string]*ActionDescriptor)}
	var errs []error
	for _, p := range providers {
		ds, err := p.ActionDescriptors()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, d := range ds {
			if err := compile(d); err != nil {
				errs = append(errs, err)
				continue
			}
			c.items = append(c.items, d)
			c.byID[d.ID] = d
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

func compile(d *ActionDescriptor) error {
	if d.Handler == nil {
		return fmt.Errorf("action %s: handler is required", d.DisplayName())
	}
	seen := make(map[string]bool, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Name == "" || p.Type == nil {
			return fmt.Errorf("action %s: parameters need a name and a type", d.DisplayName())
		}
		if seen[p.Name] {
			return fmt.Errorf("action %s: duplicate parameter %q", d.DisplayName(), p.Name)
		}
		seen[p.Name] = true
	}
	tpl, err := routing.Compile(d.RouteTemplate)
	if err != nil {
		return fmt.Errorf("action %s: %w", d.DisplayName(), err)
	}
	d.template = tpl
	d.Constraints = constraints.Sort(d.Constraints)
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Properties == nil {
		d.Properties = map[string]any{}
	}
	return nil
}

// Items returns the descriptors in registration order.
func (c *Collection) Items() []*ActionDescriptor { return c.items }

// Len returns the number of descriptors.
func (c *Collection) Len() int { return len(c.items) }

// Get returns the descriptor with id.
func (c *Collection) Get(id string) (*ActionDescriptor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Find returns the first descriptor with the given display name.
func (c *Collection) Find(displayName string) (*ActionDescriptor, bool) {
	for _, d := range c.items {
		if d.DisplayName() == displayName {
			return d, true
		}
	}
	return nil, false
}
