package modelbinding

import (
	"net/http"
	"net/url"
	"strings"
)

// BindingSource names where a parameter's value comes from.
type BindingSource string

const (
	SourceAny    BindingSource = ""
	SourceRoute  BindingSource = "route"
	SourceQuery  BindingSource = "query"
	SourceForm   BindingSource = "form"
	SourceHeader BindingSource = "header"
	SourceBody   BindingSource = "body"
)

// ValueProviderResult holds the raw values found for a key.
type ValueProviderResult struct {
	Values []string
}

// NoValue is the result for a key with no values.
var NoValue = ValueProviderResult{}

// Length returns the number of values.
func (r ValueProviderResult) Length() int { return len(r.Values) }

// FirstValue returns the first value or "".
func (r ValueProviderResult) FirstValue() string {
	if len(r.Values) == 0 {
		return ""
	}
	return r.Values[0]
}

func (r ValueProviderResult) String() string {
	return strings.Join(r.Values, ",")
}

// ValueProvider supplies raw string values by model name.
type ValueProvider interface {
	// ContainsPrefix reports whether any key equals prefix or starts with
	// prefix followed by '.' or '['. The empty prefix matches any data.
	ContainsPrefix(prefix string) bool
	GetValue(key string) ValueProviderResult
}

// SourcedProvider is implemented by providers that belong to one source.
type SourcedProvider interface {
	Source() BindingSource
}

// NameValuesProvider serves a flat name → values collection, such as route
// values, the query string, a urlencoded form or headers.
type NameValuesProvider struct {
	source BindingSource
	values map[string][]string
}

// NewNameValuesProvider copies values under case-insensitive keys.
func NewNameValuesProvider(source BindingSource, values map[string][]string) *NameValuesProvider {
	p := &NameValuesProvider{source: source, values: make(map[string][]string, len(values))}
	for k, v := range values {
		lk := strings.ToLower(k)
		p.values[lk] = append(p.values[lk], v...)
	}
	return p
}

// NewRouteValueProvider serves route values.
func NewRouteValueProvider(values map[string]string) *NameValuesProvider {
	m := make(map[string][]string, len(values))
	for k, v := range values {
		m[k] = []string{v}
	}
	return NewNameValuesProvider(SourceRoute, m)
}

// NewQueryValueProvider serves query string values.
func NewQueryValueProvider(q url.Values) *NameValuesProvider {
	return NewNameValuesProvider(SourceQuery, q)
}

// NewFormValueProvider serves urlencoded form values.
func NewFormValueProvider(form url.Values) *NameValuesProvider {
	return NewNameValuesProvider(SourceForm, form)
}

// NewHeaderValueProvider serves request headers.
func NewHeaderValueProvider(h http.Header) *NameValuesProvider {
	return NewNameValuesProvider(SourceHeader, h)
}

// Source returns the provider's binding source.
func (p *NameValuesProvider) Source() BindingSource { return p.source }

// ContainsPrefix implements ValueProvider.
func (p *NameValuesProvider) ContainsPrefix(prefix string) bool {
	if prefix == "" {
		return len(p.values) > 0
	}
	lp := strings.ToLower(prefix)
	for k := range p.values {
		if keyHasPrefix(k, lp) {
			return true
		}
	}
	return false
}

// GetValue implements ValueProvider.
func (p *NameValuesProvider) GetValue(key string) ValueProviderResult {
	if v, ok := p.values[strings.ToLower(key)]; ok && len(v) > 0 {
		return ValueProviderResult{Values: v}
	}
	return NoValue
}

func keyHasPrefix(key, prefix string) bool {
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	if len(key) == len(prefix) {
		return true
	}
	c := key[len(prefix)]
	return c == '.' || c == '['
}

// CompositeValueProvider asks each provider in order and returns the first
// value found.
type CompositeValueProvider []ValueProvider

// ContainsPrefix implements ValueProvider.
func (c CompositeValueProvider) ContainsPrefix(prefix string) bool {
	for _, p := range c {
		if p.ContainsPrefix(prefix) {
			return true
		}
	}
	return false
}

// GetValue implements ValueProvider.
func (c CompositeValueProvider) GetValue(key string) ValueProviderResult {
	for _, p := range c {
		if r := p.GetValue(key); r.Length() > 0 {
			return r
		}
	}
	return NoValue
}

// Filter returns the providers belonging to source. SourceAny returns every
// provider except header values, which only bind FromHeader parameters.
func (c CompositeValueProvider) Filter(source BindingSource) ValueProvider {
	out := CompositeValueProvider{}
	for _, p := range c {
		sp, sourced := p.(SourcedProvider)
		switch {
		case source == SourceAny:
			if !sourced || !sp.Source().explicitOnly() {
				out = append(out, p)
			}
		case sourced && sp.Source() == source:
			out = append(out, p)
		}
	}
	return out
}

// explicitOnly reports whether values from s bind only parameters that name
// s as their source.
func (s BindingSource) explicitOnly() bool {
	return s == SourceHeader
}

// singleValueProvider serves one value under one key; the slice binder uses
// it to bind each element of a multi-valued key.
type singleValueProvider struct {
	key   string
	value string
}

func (s singleValueProvider) ContainsPrefix(prefix string) bool {
	return prefix == "" || keyHasPrefix(strings.ToLower(s.key), strings.ToLower(prefix))
}

func (s singleValueProvider) GetValue(key string) ValueProviderResult {
	if strings.EqualFold(key, s.key) {
		return ValueProviderResult{Values: []string{s.value}}
	}
	return NoValue
}
