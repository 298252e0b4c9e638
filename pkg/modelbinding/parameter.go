package modelbinding

import (
	"context"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Parameter is the binding view of one declared action parameter.
type Parameter struct {
	Name            string
	Type            reflect.Type
	Source          BindingSource
	Required        bool
	BinderModelName string
}

// ParameterResult is the outcome of binding one parameter.
type ParameterResult struct {
	BindResult
	// Key is the model state key errors for the parameter were recorded at.
	Key string
	// MissingRequired is set when a required parameter did not bind.
	MissingRequired bool
}

// ParameterBinder binds action parameters. It is built once and shared.
type ParameterBinder struct {
	registry   *Registry
	metadata   *MetadataProvider
	root       ModelBinder
	formatters []InputFormatter
	validate   *validator.Validate
}

// NewParameterBinder creates a binder over registry. A nil provider or
// empty formatter list selects the defaults.
func NewParameterBinder(registry *Registry, metadata *MetadataProvider, formatters []InputFormatter) *ParameterBinder {
	if registry == nil {
		registry = NewRegistry()
	}
	if metadata == nil {
		metadata = NewMetadataProvider()
	}
	if len(formatters) == 0 {
		formatters = DefaultInputFormatters()
	}
	return &ParameterBinder{
		registry:   registry,
		metadata:   metadata,
		root:       NewCompositeBinder(registry),
		formatters: formatters,
		validate:   NewValidator(),
	}
}

// Registry returns the binder registry.
func (pb *ParameterBinder) Registry() *Registry { return pb.registry }

// MetadataProvider returns the metadata cache.
func (pb *ParameterBinder) MetadataProvider() *MetadataProvider { return pb.metadata }

// Validator returns the validator applied to bound models.
func (pb *ParameterBinder) Validator() *validator.Validate { return pb.validate }

// NewOperation creates the per-request binding state.
func (pb *ParameterBinder) NewOperation(body []byte, contentType string, logger *logrus.Entry) *Operation {
	return &Operation{
		Binder:           pb.root,
		MetadataProvider: pb.metadata,
		InputFormatters:  pb.formatters,
		Body:             body,
		ContentType:      contentType,
		Logger:           logger,
	}
}

// Bind binds p from vp (restricted to p.Source) or, for body parameters,
// from the operation's buffered body.
//
// Complex and collection parameters without an explicit model name fall
// back to the empty prefix when no value starts with the parameter name,
// so {"Key":"a"} binds a parameter named pair.
//
// Bound structs, body models included, are then checked against their
// binding tag rules and violations are recorded at prefix.Field.
func (pb *ParameterBinder) Bind(ctx context.Context, op *Operation, vp CompositeValueProvider, ms *ModelStateDictionary, p Parameter) (ParameterResult, error) {
	if err := ctx.Err(); err != nil {
		return ParameterResult{}, err
	}

	meta := pb.metadata.GetMetadataForType(p.Type)
	modelName := p.BinderModelName
	if modelName == "" {
		modelName = p.Name
	}

	bc := &BindingContext{
		Ctx:           ctx,
		FieldName:     p.Name,
		Metadata:      meta,
		ModelState:    ms,
		Operation:     op,
		BindingSource: p.Source,
		IsTopLevel:    true,
	}

	var binder ModelBinder = op.Binder
	if p.Source == SourceBody {
		binder = BodyBinder{}
		bc.ValueProvider = CompositeValueProvider{}
	} else {
		provider := vp.Filter(p.Source)
		if p.BinderModelName == "" && (meta.IsComplexType() || meta.IsCollectionType()) && !provider.ContainsPrefix(modelName) {
			modelName = ""
		}
		bc.ValueProvider = provider
	}
	bc.ModelName = modelName

	res, err := binder.BindModel(bc)
	if err != nil {
		return ParameterResult{}, err
	}

	out := ParameterResult{BindResult: res, Key: modelName}
	if out.Key == "" {
		out.Key = p.Name
	}
	if res.IsModelSet {
		ValidateModel(pb.validate, modelName, res.Model, ms)
	}
	if !res.IsModelSet && p.Required {
		out.MissingRequired = true
		if len(ms.Errors(out.Key)) == 0 {
			ms.TryAddModelError(out.Key, RequiredMessage(p.Name))
		}
	}
	return out, nil
}
