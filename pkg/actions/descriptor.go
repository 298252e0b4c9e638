// Package actions describes the handlers an application exposes and the
// per-request state an invocation works on.
package actions

import (
	"fmt"
	"reflect"

	"github.com/R3E-Network/mvc_layer/pkg/constraints"
	"github.com/R3E-Network/mvc_layer/pkg/modelbinding"
	"github.com/R3E-Network/mvc_layer/pkg/routing"
)

// FilterScope tells where a filter was registered. Within one order value,
// lower scopes run outside higher ones.
type FilterScope int

const (
	ScopeGlobal     FilterScope = 10
	ScopeController FilterScope = 20
	ScopeAction     FilterScope = 30
)

func (s FilterScope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeController:
		return "controller"
	case ScopeAction:
		return "action"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// FilterDescriptor is one registered filter instance with its priority.
// Filter holds any value implementing one or more of the filter interfaces.
type FilterDescriptor struct {
	Filter any
	Order  int
	Scope  FilterScope
}

// HandlerFunc is the user code behind an action. Its return value is
// normalized into a result by the invoker.
type HandlerFunc func(ac *ActionContext, args Arguments) (any, error)

// ParameterDescriptor declares one handler argument.
type ParameterDescriptor struct {
	Name            string
	Type            reflect.Type
	Source          modelbinding.BindingSource
	Required        bool
	BinderModelName string
}

// Binding returns the parameter in the form the model binder consumes.
func (p ParameterDescriptor) Binding() modelbinding.Parameter {
	return modelbinding.Parameter{
		Name:            p.Name,
		Type:            p.Type,
		Source:          p.Source,
		Required:        p.Required,
		BinderModelName: p.BinderModelName,
	}
}

// ParamOption configures a ParameterDescriptor.
type ParamOption func(*ParameterDescriptor)

// Param declares a parameter of type T.
func Param[T any](name string, opts ...ParamOption) ParameterDescriptor {
	p := ParameterDescriptor{Name: name, Type: reflect.TypeOf((*T)(nil)).Elem()}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func fromSource(s modelbinding.BindingSource) ParamOption {
	return func(p *ParameterDescriptor) { p.Source = s }
}

var (
	FromRoute  = fromSource(modelbinding.SourceRoute)
	FromQuery  = fromSource(modelbinding.SourceQuery)
	FromForm   = fromSource(modelbinding.SourceForm)
	FromHeader = fromSource(modelbinding.SourceHeader)
	FromBody   = fromSource(modelbinding.SourceBody)
)

// Required marks the parameter as required; a missing value fails binding.
func Required(p *ParameterDescriptor) { p.Required = true }

// ModelName binds the parameter from name instead of the parameter name.
func ModelName(name string) ParamOption {
	return func(p *ParameterDescriptor) { p.BinderModelName = name }
}

// ActionDescriptor is the immutable description of one action. It is built
// at startup and shared by every request.
type ActionDescriptor struct {
	ID            string
	Name          string
	Controller    string
	RouteTemplate string
	Parameters    []ParameterDescriptor
	// Constraints are sorted by order once the descriptor is collected.
	Constraints []constraints.Constraint
	Filters     []FilterDescriptor
	Properties  map[string]any
	Handler     HandlerFunc

	template *routing.Template
}

// DisplayName returns Controller.Name, or Name for actions without a
// controller.
func (d *ActionDescriptor) DisplayName() string {
	if d.Controller == "" {
		return d.Name
	}
	return d.Controller + "." + d.Name
}

// Template returns the compiled route template.
func (d *ActionDescriptor) Template() *routing.Template { return d.template }

// Property returns a descriptor property.
func (d *ActionDescriptor) Property(key string) (any, bool) {
	v, ok := d.Properties[key]
	return v, ok
}

// Parameter returns the parameter named name.
func (d *ActionDescriptor) Parameter(name string) (ParameterDescriptor, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterDescriptor{}, false
}

// Arguments holds the bound handler arguments by parameter name.
type Arguments map[string]any

// Get returns the argument named name.
func (a Arguments) Get(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

// Arg returns the argument named name as T, or the zero value when it is
// missing or of another type.
func Arg[T any](a Arguments, name string) T {
	if v, ok := a[name].(T); ok {
		return v
	}
	var zero T
	return zero
}
