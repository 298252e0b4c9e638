// Package modelbinding converts raw request values into typed action
// arguments. Binders are chosen per declared type by a Registry and record
// per-field problems into a ModelStateDictionary instead of returning them.
package modelbinding

import (
	"context"
	"reflect"

	"github.com/sirupsen/logrus"
)

// BindResult is the outcome of a bind. IsModelSet is true when a value (or,
// for compound models, part of one) was bound.
type BindResult struct {
	Model      any
	IsModelSet bool
}

// Success returns a result carrying model.
func Success(model any) BindResult {
	return BindResult{Model: model, IsModelSet: true}
}

// Failed returns a result with no model.
func Failed() BindResult {
	return BindResult{}
}

// ModelBinder binds the model described by a BindingContext. The returned
// error is reserved for failures that must abort the request, such as
// cancellation; field problems go to bc.ModelState.
type ModelBinder interface {
	BindModel(bc *BindingContext) (BindResult, error)
}

// BinderFunc adapts a function to ModelBinder.
type BinderFunc func(bc *BindingContext) (BindResult, error)

// BindModel implements ModelBinder.
func (f BinderFunc) BindModel(bc *BindingContext) (BindResult, error) { return f(bc) }

// Operation holds the state shared by every binding context of one request.
type Operation struct {
	Binder           ModelBinder
	MetadataProvider *MetadataProvider
	InputFormatters  []InputFormatter
	// Body is the buffered request body; nil when the request has none.
	Body        []byte
	ContentType string
	Logger      *logrus.Entry
}

// BindingContext is the state of one binder call. Child contexts form a
// tree that mirrors the nested model.
type BindingContext struct {
	Ctx           context.Context
	ModelName     string
	FieldName     string
	Metadata      *ModelMetadata
	ValueProvider ValueProvider
	ModelState    *ModelStateDictionary
	Operation     *Operation
	BindingSource BindingSource
	IsTopLevel    bool

	parent *BindingContext
}

// Parent returns the enclosing context, or nil for the top-level one.
func (bc *BindingContext) Parent() *BindingContext { return bc.parent }

// ModelType returns the type being bound.
func (bc *BindingContext) ModelType() reflect.Type { return bc.Metadata.Type }

// Context returns the request context, never nil.
func (bc *BindingContext) Context() context.Context {
	if bc.Ctx == nil {
		return context.Background()
	}
	return bc.Ctx
}

// CreateChild returns a context for a nested model named modelName.
func (bc *BindingContext) CreateChild(meta *ModelMetadata, fieldName, modelName string) *BindingContext {
	return &BindingContext{
		Ctx:           bc.Ctx,
		ModelName:     modelName,
		FieldName:     fieldName,
		Metadata:      meta,
		ValueProvider: bc.ValueProvider,
		ModelState:    bc.ModelState,
		Operation:     bc.Operation,
		BindingSource: bc.BindingSource,
		parent:        bc,
	}
}

// BindChild binds a nested model through the operation's root binder.
func (bc *BindingContext) BindChild(meta *ModelMetadata, fieldName, modelName string) (BindResult, error) {
	if err := bc.Context().Err(); err != nil {
		return Failed(), err
	}
	return bc.Operation.Binder.BindModel(bc.CreateChild(meta, fieldName, modelName))
}

// BindProperty binds the property described by meta and returns the
// child's model name alongside the result.
func (bc *BindingContext) BindProperty(meta *ModelMetadata) (BindResult, string, error) {
	modelName := CreatePropertyModelName(bc.ModelName, meta.Name)
	res, err := bc.BindChild(meta, meta.Name, modelName)
	return res, modelName, err
}

func (bc *BindingContext) metadataFor(t reflect.Type) *ModelMetadata {
	return bc.Operation.MetadataProvider.GetMetadataForType(t)
}

// assign stores model into dst, converting where the types allow it. It
// returns false when model cannot be stored.
func assign(dst reflect.Value, model any) bool {
	if model == nil {
		return false
	}
	v := reflect.ValueOf(model)
	switch {
	case v.Type().AssignableTo(dst.Type()):
		dst.Set(v)
	case v.Type().ConvertibleTo(dst.Type()):
		dst.Set(v.Convert(dst.Type()))
	default:
		return false
	}
	return true
}
