package modelbinding

import "reflect"

// BothKeyAndValueMustBePresent is recorded when only one part of a
// KeyValuePair binds.
const BothKeyAndValueMustBePresent = "both key and value must be present"

// KeyValuePair is a bindable key/value model. It selects
// KeyValuePairBinder through BinderSource.
type KeyValuePair[K any, V any] struct {
	Key   K
	Value V
}

// ModelBinder implements BinderSource.
func (KeyValuePair[K, V]) ModelBinder() ModelBinder {
	return KeyValuePairBinder[K, V]{}
}

// KeyValuePairBinder binds Key and Value through child contexts named
// prefix.Key and prefix.Value.
//
// When exactly one part binds, an error is recorded at the missing part's
// key but the result still reports IsModelSet with the bound part filled
// in, so callers can see what did bind. When neither part binds the result
// is a plain failure with no error; ASP.NET Core MVC records
// "both key and value must be present" at prefix.Value in that case.
type KeyValuePairBinder[K any, V any] struct{}

// BindModel implements ModelBinder.
func (KeyValuePairBinder[K, V]) BindModel(bc *BindingContext) (BindResult, error) {
	key, keyName, err := bindPart[K](bc, "Key")
	if err != nil {
		return Failed(), err
	}
	value, valueName, err := bindPart[V](bc, "Value")
	if err != nil {
		return Failed(), err
	}

	switch {
	case key.IsModelSet && value.IsModelSet:
		// both bound
	case key.IsModelSet:
		bc.ModelState.TryAddModelError(valueName, BothKeyAndValueMustBePresent)
	case value.IsModelSet:
		bc.ModelState.TryAddModelError(keyName, BothKeyAndValueMustBePresent)
	default:
		return Failed(), nil
	}

	return Success(KeyValuePair[K, V]{
		Key:   castOrZero[K](key.Model),
		Value: castOrZero[V](value.Model),
	}), nil
}

func bindPart[T any](bc *BindingContext, property string) (BindResult, string, error) {
	meta := bc.metadataFor(reflect.TypeOf((*T)(nil)).Elem())
	name := CreatePropertyModelName(bc.ModelName, property)
	res, err := bc.BindChild(meta, property, name)
	return res, name, err
}

func castOrZero[T any](model any) T {
	var zero T
	if model == nil {
		return zero
	}
	if v, ok := model.(T); ok {
		return v
	}
	out := reflect.New(reflect.TypeOf((*T)(nil)).Elem()).Elem()
	if assign(out, model) {
		return out.Interface().(T)
	}
	return zero
}
