package modelbinding

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator reading rules from the binding tag and
// reporting fields under their bind names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, ok := f.Tag.Lookup("bind")
		if !ok || name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateModel runs the binding rules of a bound struct and records each
// violation at prefix.Field. Keys that already carry a binding error are
// left alone. Models that are not structs are ignored.
func ValidateModel(v *validator.Validate, prefix string, model any, ms *ModelStateDictionary) {
	rv := reflect.ValueOf(model)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}

	err := v.Struct(rv.Interface())
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return
	}
	for _, fe := range fieldErrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		key := CreatePropertyModelName(prefix, path)
		if len(ms.Errors(key)) > 0 {
			continue
		}
		ms.TryAddModelError(key, validationMessage(fe))
	}
}

func validationMessage(fe validator.FieldError) string {
	if fe.Tag() == "required" {
		return RequiredMessage(fe.Field())
	}
	if fe.Param() != "" {
		return fmt.Sprintf("The %s field failed the '%s=%s' rule.", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("The %s field failed the '%s' rule.", fe.Field(), fe.Tag())
}
