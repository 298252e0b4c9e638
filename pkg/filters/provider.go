package filters

import (
	"fmt"
	"sort"
	"sync"

	"github.com/R3E-Network/mvc_layer/pkg/actions"
)

// Pipeline holds the filters for one action split by stage, each slice in
// execution order.
type Pipeline struct {
	Authorization []AuthorizationFilter
	Resource      []ResourceFilter
	Action        []ActionFilter
	Exception     []ExceptionFilter
	Result        []ResultFilter
}

// Len returns the number of stage entries. A filter implementing several
// stages counts once per stage.
func (p *Pipeline) Len() int {
	return len(p.Authorization) + len(p.Resource) + len(p.Action) + len(p.Exception) + len(p.Result)
}

// Provider builds and caches the per-action pipelines. Global filters are
// fixed at construction.
type Provider struct {
	global []actions.FilterDescriptor
	cache  sync.Map // descriptor ID -> *Pipeline
}

// NewProvider creates a provider with the given global filters.
func NewProvider(global ...actions.FilterDescriptor) *Provider {
	g := make([]actions.FilterDescriptor, len(global))
	for i, fd := range global {
		fd.Scope = actions.ScopeGlobal
		g[i] = fd
	}
	return &Provider{global: g}
}

// Global returns the global filters.
func (p *Provider) Global() []actions.FilterDescriptor {
	out := make([]actions.FilterDescriptor, len(p.global))
	copy(out, p.global)
	return out
}

// PipelineFor returns the pipeline for d, building it on first use.
func (p *Provider) PipelineFor(d *actions.ActionDescriptor) (*Pipeline, error) {
	if d.ID != "" {
		if cached, ok := p.cache.Load(d.ID); ok {
			return cached.(*Pipeline), nil
		}
	}
	pl, err := Build(Ordered(p.global, d.Filters))
	if err != nil {
		return nil, fmt.Errorf("filters for %s: %w", d.DisplayName(), err)
	}
	if d.ID != "" {
		actual, _ := p.cache.LoadOrStore(d.ID, pl)
		pl = actual.(*Pipeline)
	}
	return pl, nil
}

// Ordered merges global and action filters and sorts them by Order, then
// Scope. Ties keep registration order.
func Ordered(global, local []actions.FilterDescriptor) []actions.FilterDescriptor {
	all := make([]actions.FilterDescriptor, 0, len(global)+len(local))
	all = append(all, global...)
	all = append(all, local...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Order != all[j].Order {
			return all[i].Order < all[j].Order
		}
		return all[i].Scope < all[j].Scope
	})
	return all
}

// Build splits ordered filters into stages. A filter that implements no
// stage interface is an error.
func Build(ordered []actions.FilterDescriptor) (*Pipeline, error) {
	pl := &Pipeline{}
	for _, fd := range ordered {
		matched := false
		if f, ok := fd.Filter.(AuthorizationFilter); ok {
			pl.Authorization = append(pl.Authorization, f)
			matched = true
		}
		if f, ok := fd.Filter.(ResourceFilter); ok {
			pl.Resource = append(pl.Resource, f)
			matched = true
		}
		if f, ok := fd.Filter.(ActionFilter); ok {
			pl.Action = append(pl.Action, f)
			matched = true
		}
		if f, ok := fd.Filter.(ExceptionFilter); ok {
			pl.Exception = append(pl.Exception, f)
			matched = true
		}
		if f, ok := fd.Filter.(ResultFilter); ok {
			pl.Result = append(pl.Result, f)
			matched = true
		}
		if !matched {
			return nil, fmt.Errorf("%T is not a filter", fd.Filter)
		}
	}
	return pl, nil
}
