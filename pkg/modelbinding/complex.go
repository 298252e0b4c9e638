package modelbinding

import (
	"fmt"
	"reflect"
	"strconv"
)

// ComplexTypeBinder binds a struct one exported field at a time through
// child contexts named prefix.Field.
type ComplexTypeBinder struct{}

// BindModel implements ModelBinder. Nested structs with no matching values
// are not created; the top-level model always is.
func (ComplexTypeBinder) BindModel(bc *BindingContext) (BindResult, error) {
	if !bc.IsTopLevel && !bc.ValueProvider.ContainsPrefix(bc.ModelName) {
		return Failed(), nil
	}

	model := reflect.New(bc.ModelType()).Elem()
	for _, prop := range bc.Metadata.Properties() {
		res, key, err := bc.BindProperty(prop)
		if err != nil {
			return Failed(), err
		}
		if res.IsModelSet {
			if !assign(model.FieldByIndex(prop.FieldIndex), res.Model) && res.Model != nil {
				bc.ModelState.TryAddModelError(key,
					fmt.Sprintf("The value is not valid for %s.", prop.DisplayName()))
			}
		}
	}
	return Success(model.Interface()), nil
}

// RequiredMessage is the error recorded for a missing required value.
func RequiredMessage(name string) string {
	return fmt.Sprintf("The %s field is required.", name)
}

// SliceBinder binds slices either from a multi-valued key (ids=1&ids=2) or
// from zero-based indexed names (items[0].Name, items[1].Name, ...).
type SliceBinder struct{}

// BindModel implements ModelBinder.
func (SliceBinder) BindModel(bc *BindingContext) (BindResult, error) {
	sliceType := bc.ModelType()
	elem := bc.metadataFor(sliceType.Elem())
	out := reflect.MakeSlice(sliceType, 0, 0)

	if vr := bc.ValueProvider.GetValue(bc.ModelName); vr.Length() > 0 && !elem.IsComplexType() {
		bc.ModelState.SetModelValue(bc.ModelName, vr.Values, vr.String())
		for _, raw := range vr.Values {
			child := bc.CreateChild(elem, bc.FieldName, bc.ModelName)
			child.ValueProvider = singleValueProvider{key: bc.ModelName, value: raw}
			res, err := bc.Operation.Binder.BindModel(child)
			if err != nil {
				return Failed(), err
			}
			if res.IsModelSet {
				v := reflect.New(elem.Type).Elem()
				if assign(v, res.Model) {
					out = reflect.Append(out, v)
				}
			}
		}
		return Success(out.Interface()), nil
	}

	bound := false
	for i := 0; ; i++ {
		name := CreateIndexModelName(bc.ModelName, strconv.Itoa(i))
		if !bc.ValueProvider.ContainsPrefix(name) {
			break
		}
		res, err := bc.BindChild(elem, bc.FieldName, name)
		if err != nil {
			return Failed(), err
		}
		v := reflect.New(elem.Type).Elem()
		if res.IsModelSet {
			assign(v, res.Model)
		}
		out = reflect.Append(out, v)
		bound = true
	}

	if !bound && !bc.IsTopLevel {
		return Failed(), nil
	}
	return Success(out.Interface()), nil
}
