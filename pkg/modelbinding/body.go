package modelbinding

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"mime"
	"reflect"
	"strings"
)

// InputFormatter decodes a request body into a model.
type InputFormatter interface {
	CanRead(mediaType string) bool
	Read(body []byte, t reflect.Type) (any, error)
}

// JSONInputFormatter reads application/json and +json bodies.
type JSONInputFormatter struct{}

// CanRead implements InputFormatter.
func (JSONInputFormatter) CanRead(mediaType string) bool {
	return mediaType == "application/json" || mediaType == "text/json" || strings.HasSuffix(mediaType, "+json")
}

// Read implements InputFormatter.
func (JSONInputFormatter) Read(body []byte, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// XMLInputFormatter reads application/xml and text/xml bodies.
type XMLInputFormatter struct{}

// CanRead implements InputFormatter.
func (XMLInputFormatter) CanRead(mediaType string) bool {
	return mediaType == "application/xml" || mediaType == "text/xml" || strings.HasSuffix(mediaType, "+xml")
}

// Read implements InputFormatter.
func (XMLInputFormatter) Read(body []byte, t reflect.Type) (any, error) {
	ptr := reflect.New(t)
	if err := xml.Unmarshal(body, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// DefaultInputFormatters returns the JSON and XML formatters.
func DefaultInputFormatters() []InputFormatter {
	return []InputFormatter{JSONInputFormatter{}, XMLInputFormatter{}}
}

// BodyBinder decodes the buffered request body with the first input
// formatter that accepts the request content type.
type BodyBinder struct{}

// BindModel implements ModelBinder.
func (BodyBinder) BindModel(bc *BindingContext) (BindResult, error) {
	op := bc.Operation
	if len(bytes.TrimSpace(op.Body)) == 0 {
		return Failed(), nil
	}

	mediaType, _, err := mime.ParseMediaType(op.ContentType)
	if err != nil {
		bc.ModelState.TryAddModelError(bc.ModelName, fmt.Sprintf("Unsupported content type '%s'.", op.ContentType))
		return Failed(), nil
	}

	for _, f := range op.InputFormatters {
		if !f.CanRead(mediaType) {
			continue
		}
		model, err := f.Read(op.Body, bc.ModelType())
		if err != nil {
			if op.Logger != nil {
				op.Logger.WithError(err).WithField("model", bc.ModelName).Debug("Failed to decode request body")
			}
			bc.ModelState.TryAddModelException(bc.ModelName, err)
			return Failed(), nil
		}
		return Success(model), nil
	}

	bc.ModelState.TryAddModelError(bc.ModelName, fmt.Sprintf("Unsupported content type '%s'.", mediaType))
	return Failed(), nil
}
