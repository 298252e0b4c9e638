package modelbinding

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// SimpleTypeBinder converts a single raw value into a string, bool, number,
// or any type whose pointer implements encoding.TextUnmarshaler.
type SimpleTypeBinder struct{}

// BindModel implements ModelBinder.
func (SimpleTypeBinder) BindModel(bc *BindingContext) (BindResult, error) {
	vr := bc.ValueProvider.GetValue(bc.ModelName)
	if vr.Length() == 0 {
		return Failed(), nil
	}

	raw := vr.FirstValue()
	bc.ModelState.SetModelValue(bc.ModelName, vr.Values, vr.String())

	t := bc.ModelType()
	if strings.TrimSpace(raw) == "" && t.Kind() != reflect.String {
		bc.ModelState.TryAddModelError(bc.ModelName, fmt.Sprintf("The value '%s' is invalid.", raw))
		return Failed(), nil
	}

	model, err := ConvertTo(raw, t)
	if err != nil {
		bc.ModelState.TryAddModelError(bc.ModelName,
			fmt.Sprintf("The value '%s' is not valid for %s.", raw, bc.Metadata.DisplayName()))
		return Failed(), nil
	}
	return Success(model), nil
}

// ConvertTo converts raw into a value of type t.
func ConvertTo(raw string, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	if tu, ok := ptr.Interface().(encoding.TextUnmarshaler); ok {
		if err := tu.UnmarshalText([]byte(raw)); err != nil {
			return nil, err
		}
		return ptr.Elem().Interface(), nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           ptr.Interface(),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// PointerBinder binds the element type of a pointer and returns its address.
type PointerBinder struct{}

// BindModel implements ModelBinder.
func (PointerBinder) BindModel(bc *BindingContext) (BindResult, error) {
	elem := bc.metadataFor(bc.ModelType().Elem())
	child := bc.CreateChild(elem, bc.FieldName, bc.ModelName)
	child.IsTopLevel = bc.IsTopLevel
	res, err := bc.Operation.Binder.BindModel(child)
	if err != nil || !res.IsModelSet {
		return res, err
	}
	ptr := reflect.New(elem.Type)
	if !assign(ptr.Elem(), res.Model) {
		return Failed(), nil
	}
	return Success(ptr.Interface()), nil
}
