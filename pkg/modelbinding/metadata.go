package modelbinding

import (
	"encoding"
	"reflect"
	"strings"
	"sync"
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// ModelMetadata describes a bindable type, or a property of a containing
// struct. Instances are cached by MetadataProvider and read-only after
// construction.
type ModelMetadata struct {
	Type reflect.Type
	// Name is the binding name of a property; empty for type metadata.
	Name string
	// FieldIndex locates the property within ContainerType.
	FieldIndex    []int
	ContainerType reflect.Type
	// BinderModelName overrides the prefix used to look up values.
	BinderModelName string

	provider  *MetadataProvider
	propsOnce sync.Once
	props     []*ModelMetadata
}

// DisplayName is the name used in error messages.
func (m *ModelMetadata) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Type.Name()
}

// IsTextUnmarshaler reports whether a pointer to the type implements
// encoding.TextUnmarshaler.
func (m *ModelMetadata) IsTextUnmarshaler() bool {
	return reflect.PointerTo(m.Type).Implements(textUnmarshalerType)
}

// IsComplexType reports whether the type is bound property by property.
func (m *ModelMetadata) IsComplexType() bool {
	t := m.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return false
	}
	return t.Kind() == reflect.Struct
}

// IsCollectionType reports whether the type is a slice other than []byte.
func (m *ModelMetadata) IsCollectionType() bool {
	return m.Type.Kind() == reflect.Slice && m.Type.Elem().Kind() != reflect.Uint8
}

// Properties returns metadata for the exported fields of a struct type in
// declaration order. Fields tagged bind:"-" are skipped.
func (m *ModelMetadata) Properties() []*ModelMetadata {
	m.propsOnce.Do(func() {
		t := m.Type
		if t.Kind() != reflect.Struct {
			return
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Anonymous {
				continue
			}
			name := f.Name
			if tag, ok := f.Tag.Lookup("bind"); ok {
				if tag == "-" {
					continue
				}
				if tag != "" {
					name = tag
				}
			}
			m.props = append(m.props, &ModelMetadata{
				Type:          f.Type,
				Name:          name,
				FieldIndex:    f.Index,
				ContainerType: t,
				provider:      m.provider,
			})
		}
	})
	return m.props
}

// Property returns the property with the given binding name, compared
// case-insensitively.
func (m *ModelMetadata) Property(name string) *ModelMetadata {
	for _, p := range m.Properties() {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// MetadataProvider caches type metadata process-wide.
type MetadataProvider struct {
	cache sync.Map // reflect.Type -> *ModelMetadata
}

// NewMetadataProvider creates an empty provider.
func NewMetadataProvider() *MetadataProvider {
	return &MetadataProvider{}
}

// GetMetadataForType returns the cached metadata for t.
func (p *MetadataProvider) GetMetadataForType(t reflect.Type) *ModelMetadata {
	if v, ok := p.cache.Load(t); ok {
		return v.(*ModelMetadata)
	}
	v, _ := p.cache.LoadOrStore(t, &ModelMetadata{Type: t, provider: p})
	return v.(*ModelMetadata)
}

// MetadataFor is the generic form of GetMetadataForType.
func MetadataFor[T any](p *MetadataProvider) *ModelMetadata {
	return p.GetMetadataForType(reflect.TypeOf((*T)(nil)).Elem())
}

// CreatePropertyModelName joins a prefix and a property name with a dot.
func CreatePropertyModelName(prefix, property string) string {
	if prefix == "" {
		return property
	}
	if property == "" {
		return prefix
	}
	return prefix + "." + property
}

// CreateIndexModelName appends an index segment to prefix.
func CreateIndexModelName(prefix, index string) string {
	return prefix + "[" + index + "]"
}
