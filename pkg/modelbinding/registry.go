package modelbinding

import (
	"fmt"
	"reflect"
	"sync"
)

// BinderProvider returns a binder for meta, or nil when it does not handle
// the type.
type BinderProvider interface {
	GetBinder(meta *ModelMetadata) ModelBinder
}

// BinderProviderFunc adapts a function to BinderProvider.
type BinderProviderFunc func(meta *ModelMetadata) ModelBinder

// GetBinder implements BinderProvider.
func (f BinderProviderFunc) GetBinder(meta *ModelMetadata) ModelBinder { return f(meta) }

// BinderSource is implemented by types that describe their own binder,
// such as KeyValuePair. The method is called on the zero value.
type BinderSource interface {
	ModelBinder() ModelBinder
}

var binderSourceType = reflect.TypeOf((*BinderSource)(nil)).Elem()

// Registry selects binders by declared type. Registration happens at
// startup; lookups are cached per type and safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	exact     map[reflect.Type]ModelBinder
	providers []BinderProvider
	cache     sync.Map // reflect.Type -> ModelBinder
}

// NewRegistry creates a registry with only the built-in binders.
func NewRegistry() *Registry {
	return &Registry{exact: make(map[reflect.Type]ModelBinder)}
}

// Register binds t with b, ahead of providers and built-ins.
func (r *Registry) Register(t reflect.Type, b ModelBinder) {
	r.mu.Lock()
	r.exact[t] = b
	r.mu.Unlock()
	r.reset()
}

// RegisterType is the generic form of Register.
func RegisterType[T any](r *Registry, b ModelBinder) {
	r.Register(reflect.TypeOf((*T)(nil)).Elem(), b)
}

// AddProvider appends p. Providers are consulted in registration order.
func (r *Registry) AddProvider(p BinderProvider) {
	r.mu.Lock()
	r.providers = append(r.providers, p)
	r.mu.Unlock()
	r.reset()
}

func (r *Registry) reset() {
	r.cache.Range(func(k, _ any) bool {
		r.cache.Delete(k)
		return true
	})
}

// BinderFor returns the binder for meta.Type.
func (r *Registry) BinderFor(meta *ModelMetadata) (ModelBinder, error) {
	if b, ok := r.cache.Load(meta.Type); ok {
		return b.(ModelBinder), nil
	}
	b, err := r.resolve(meta)
	if err != nil {
		return nil, err
	}
	actual, _ := r.cache.LoadOrStore(meta.Type, b)
	return actual.(ModelBinder), nil
}

func (r *Registry) resolve(meta *ModelMetadata) (ModelBinder, error) {
	t := meta.Type

	r.mu.RLock()
	b, ok := r.exact[t]
	providers := r.providers
	r.mu.RUnlock()
	if ok {
		return b, nil
	}
	for _, p := range providers {
		if b := p.GetBinder(meta); b != nil {
			return b, nil
		}
	}

	if t.Kind() != reflect.Pointer && t.Implements(binderSourceType) {
		return reflect.Zero(t).Interface().(BinderSource).ModelBinder(), nil
	}
	if meta.IsTextUnmarshaler() || isSimpleKind(t.Kind()) {
		return SimpleTypeBinder{}, nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		return PointerBinder{}, nil
	case reflect.Slice:
		return SliceBinder{}, nil
	case reflect.Struct:
		return ComplexTypeBinder{}, nil
	}
	return nil, fmt.Errorf("modelbinding: no binder for type %s", t)
}

func isSimpleKind(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// CompositeBinder delegates to the binder the registry selects for the
// context's model type. It is the root binder of an Operation.
type CompositeBinder struct {
	Registry *Registry
}

// NewCompositeBinder creates a composite binder over r.
func NewCompositeBinder(r *Registry) *CompositeBinder {
	return &CompositeBinder{Registry: r}
}

// BindModel implements ModelBinder.
func (c *CompositeBinder) BindModel(bc *BindingContext) (BindResult, error) {
	b, err := c.Registry.BinderFor(bc.Metadata)
	if err != nil {
		return Failed(), err
	}
	return b.BindModel(bc)
}
