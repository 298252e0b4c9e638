package invoker

import (
	"sort"

	"github.com/R3E-Network/mvc_layer/internal/errors"
	"github.com/R3E-Network/mvc_layer/pkg/actions"
)

// Provider creates invokers for the descriptors it understands. A nil
// Invoker with a nil error passes the descriptor to the next provider.
type Provider interface {
	Order() int
	CreateInvoker(ac *actions.ActionContext) (Invoker, error)
}

// HandlerProviderOrder is the order of the default provider.
const HandlerProviderOrder = -1000

// HandlerProvider creates ActionInvokers for descriptors with a handler.
type HandlerProvider struct {
	deps Dependencies
}

// NewHandlerProvider creates the default provider.
func NewHandlerProvider(deps Dependencies) *HandlerProvider {
	return &HandlerProvider{deps: deps}
}

// Order implements Provider.
func (p *HandlerProvider) Order() int { return HandlerProviderOrder }

// CreateInvoker implements Provider.
func (p *HandlerProvider) CreateInvoker(ac *actions.ActionContext) (Invoker, error) {
	if ac.Descriptor == nil || ac.Descriptor.Handler == nil {
		return nil, nil
	}
	if p.deps.Filters == nil {
		return New(ac, nil, p.deps), nil
	}
	pl, err := p.deps.Filters.PipelineFor(ac.Descriptor)
	if err != nil {
		return nil, errors.Internal("build filter pipeline", err)
	}
	return New(ac, pl, p.deps), nil
}

// Factory asks providers in ascending order for an invoker.
type Factory struct {
	providers []Provider
}

// NewFactory creates a factory over providers. Providers with equal order
// keep their registration order.
func NewFactory(providers ...Provider) *Factory {
	ps := make([]Provider, len(providers))
	copy(ps, providers)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Order() < ps[j].Order() })
	return &Factory{providers: ps}
}

// CreateInvoker returns the first invoker a provider creates.
func (f *Factory) CreateInvoker(ac *actions.ActionContext) (Invoker, error) {
	for _, p := range f.providers {
		inv, err := p.CreateInvoker(ac)
		if err != nil {
			return nil, err
		}
		if inv != nil {
			return inv, nil
		}
	}
	return nil, errors.Internal("no invoker for action "+ac.Descriptor.DisplayName(), nil)
}
