package results

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/R3E-Network/mvc_layer/internal/errors"
	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/constraints"
	"github.com/R3E-Network/mvc_layer/pkg/modelbinding"
	"github.com/R3E-Network/mvc_layer/pkg/services"
	"github.com/munnerz/goautoneg"
)

// OutputFormatter serializes a value for one or more media types.
type OutputFormatter interface {
	SupportedMediaTypes() []string
	CanWrite(v any) bool
	Write(w io.Writer, v any) error
}

// JSONOutputFormatter writes JSON.
type JSONOutputFormatter struct{}

// SupportedMediaTypes implements OutputFormatter.
func (JSONOutputFormatter) SupportedMediaTypes() []string {
	return []string{"application/json", "text/json"}
}

// CanWrite implements OutputFormatter.
func (JSONOutputFormatter) CanWrite(any) bool { return true }

// Write implements OutputFormatter.
func (JSONOutputFormatter) Write(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// XMLOutputFormatter writes XML. Maps are only written when they implement
// xml.Marshaler.
type XMLOutputFormatter struct{}

// SupportedMediaTypes implements OutputFormatter.
func (XMLOutputFormatter) SupportedMediaTypes() []string {
	return []string{"application/xml", "text/xml"}
}

// CanWrite implements OutputFormatter.
func (XMLOutputFormatter) CanWrite(v any) bool {
	if _, ok := v.(xml.Marshaler); ok {
		return true
	}
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return false
	}
	return true
}

// Write implements OutputFormatter.
func (XMLOutputFormatter) Write(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(v)
}

// TextOutputFormatter writes strings as text/plain.
type TextOutputFormatter struct{}

// SupportedMediaTypes implements OutputFormatter.
func (TextOutputFormatter) SupportedMediaTypes() []string { return []string{"text/plain"} }

// CanWrite implements OutputFormatter.
func (TextOutputFormatter) CanWrite(v any) bool {
	_, ok := v.(string)
	return ok
}

// Write implements OutputFormatter.
func (TextOutputFormatter) Write(w io.Writer, v any) error {
	_, err := fmt.Fprint(w, v)
	return err
}

// DefaultOutputFormatters returns text, JSON and XML formatters.
func DefaultOutputFormatters() []OutputFormatter {
	return []OutputFormatter{TextOutputFormatter{}, JSONOutputFormatter{}, XMLOutputFormatter{}}
}

// FormatterOptions control content negotiation. Registered in the services
// registry under FormatterOptionsService.
type FormatterOptions struct {
	// RespectBrowserAcceptHeader honours Accept headers containing */*.
	// Browsers send those, so by default they are treated as absent.
	RespectBrowserAcceptHeader bool
	// ReturnHTTPNotAcceptable answers 406 when no formatter matches Accept
	// instead of falling back to the first formatter that can write.
	ReturnHTTPNotAcceptable bool
	Formatters              []OutputFormatter
}

func formatterOptions(ac *actions.ActionContext) FormatterOptions {
	opts, ok := services.Get[FormatterOptions](ac.Services, FormatterOptionsService)
	if !ok {
		if p, pok := services.Get[*FormatterOptions](ac.Services, FormatterOptionsService); pok && p != nil {
			opts = *p
		}
	}
	if len(opts.Formatters) == 0 {
		opts.Formatters = DefaultOutputFormatters()
	}
	return opts
}

// ObjectResult negotiates a formatter for Value from the request's Accept
// header, restricted to ContentTypes when set.
type ObjectResult struct {
	Value        any
	StatusCode   int
	ContentTypes []string
	Formatters   []OutputFormatter
}

// NewObjectResult creates an ObjectResult for v.
func NewObjectResult(v any) *ObjectResult {
	return &ObjectResult{Value: v}
}

// BadRequest returns a 400 ObjectResult carrying v.
func BadRequest(v any) *ObjectResult {
	return &ObjectResult{Value: v, StatusCode: http.StatusBadRequest}
}

// BadRequestModelState returns a 400 ObjectResult carrying the field →
// messages view of ms.
func BadRequestModelState(ms *modelbinding.ModelStateDictionary) *ObjectResult {
	return BadRequest(modelbinding.NewSerializableError(ms))
}

// ExecuteResult implements Result.
func (o *ObjectResult) ExecuteResult(ac *actions.ActionContext) error {
	if o.Value == nil {
		ac.Response.WriteHeader(http.StatusNoContent)
		return nil
	}

	opts := formatterOptions(ac)
	if len(o.Formatters) > 0 {
		opts.Formatters = o.Formatters
	}

	f, mediaType, err := o.selectFormatter(ac.Request, opts)
	if err != nil {
		return err
	}
	if f == nil {
		ac.Logger.WithField("accept", ac.Request.Header.Get("Accept")).Debug("No output formatter matched the request")
		ac.Response.WriteHeader(http.StatusNotAcceptable)
		return nil
	}

	ac.Response.Header().Set("Content-Type", mime.FormatMediaType(mediaType, map[string]string{"charset": "utf-8"}))
	status := o.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	ac.Response.WriteHeader(status)
	return f.Write(ac.Response, o.Value)
}

type candidate struct {
	formatter OutputFormatter
	mediaType string
}

func (o *ObjectResult) candidates(formatters []OutputFormatter) []candidate {
	var out []candidate
	for _, f := range formatters {
		if !f.CanWrite(o.Value) {
			continue
		}
		for _, mt := range f.SupportedMediaTypes() {
			if len(o.ContentTypes) > 0 && !allowed(mt, o.ContentTypes) {
				continue
			}
			out = append(out, candidate{formatter: f, mediaType: mt})
		}
	}
	return out
}

func allowed(mediaType string, contentTypes []string) bool {
	for _, ct := range contentTypes {
		if constraints.MediaTypeMatches(ct, mediaType) {
			return true
		}
	}
	return false
}

// selectFormatter returns a nil formatter when 406 should be sent. An
// error is returned when nothing at all can write the value.
func (o *ObjectResult) selectFormatter(r *http.Request, opts FormatterOptions) (OutputFormatter, string, error) {
	cands := o.candidates(opts.Formatters)
	if len(cands) == 0 {
		return nil, "", errors.Internal(fmt.Sprintf("no output formatter can write %T", o.Value), nil)
	}

	accept := strings.TrimSpace(r.Header.Get("Accept"))
	if !opts.RespectBrowserAcceptHeader && strings.Contains(accept, "*/*") {
		accept = ""
	}
	if accept == "" {
		return cands[0].formatter, cands[0].mediaType, nil
	}

	alternatives := make([]string, len(cands))
	for i, c := range cands {
		alternatives[i] = c.mediaType
	}
	if best := goautoneg.Negotiate(accept, alternatives); best != "" {
		for _, c := range cands {
			if c.mediaType == best {
				return c.formatter, c.mediaType, nil
			}
		}
	}
	if opts.ReturnHTTPNotAcceptable {
		return nil, "", nil
	}
	return cands[0].formatter, cands[0].mediaType, nil
}
