// Package mvc assembles the action pipeline: descriptor collection,
// selection, model binding, filters and invokers.
package mvc

import (
	"fmt"

	"github.com/R3E-Network/mvc_layer/internal/config"
	"github.com/R3E-Network/mvc_layer/internal/logging"
	"github.com/R3E-Network/mvc_layer/internal/metrics"
	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/filters"
	"github.com/R3E-Network/mvc_layer/pkg/invoker"
	"github.com/R3E-Network/mvc_layer/pkg/modelbinding"
	"github.com/R3E-Network/mvc_layer/pkg/results"
	"github.com/R3E-Network/mvc_layer/pkg/selection"
	"github.com/R3E-Network/mvc_layer/pkg/services"
)

// Options configure the pipeline.
type Options struct {
	MaxBodyBytes               int64
	MaxModelErrors             int
	RespectBrowserAcceptHeader bool
	ReturnHTTPNotAcceptable    bool
	// PathBase is the application root "~/" URLs resolve against.
	PathBase string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxBodyBytes:   4 << 20,
		MaxModelErrors: modelbinding.DefaultMaxAllowedErrors,
	}
}

// OptionsFromConfig maps the pipeline section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	o := DefaultOptions()
	if cfg == nil {
		return o
	}
	p := cfg.Pipeline
	if p.MaxBodyBytes > 0 {
		o.MaxBodyBytes = p.MaxBodyBytes
	}
	if p.MaxModelErrors > 0 {
		o.MaxModelErrors = p.MaxModelErrors
	}
	o.RespectBrowserAcceptHeader = p.RespectBrowserAcceptHeader
	o.ReturnHTTPNotAcceptable = p.ReturnHTTPNotAcceptable
	return o
}

// Builder collects registrations. Build validates them once and produces
// an immutable App.
type Builder struct {
	opts       Options
	configure  []func(*Options)
	providers  []actions.DescriptorProvider
	global     []actions.FilterDescriptor
	invokers   []invoker.Provider
	binders    *modelbinding.Registry
	metadata   *modelbinding.MetadataProvider
	formatters []modelbinding.InputFormatter
	services   *services.Registry
	logger     *logging.Logger
	metrics    *metrics.Metrics

	invalidModelState func(*actions.ActionContext) results.Result
}

// NewBuilder creates a builder with default options.
func NewBuilder() *Builder {
	return &Builder{
		opts:     DefaultOptions(),
		binders:  modelbinding.NewRegistry(),
		metadata: modelbinding.NewMetadataProvider(),
		services: services.NewRegistry(),
	}
}

// WithOptions replaces the options.
func (b *Builder) WithOptions(o Options) *Builder {
	b.opts = o
	return b
}

// Configure registers a callback applied to the options during Build,
// after the defaults services have been registered.
func (b *Builder) Configure(fn func(*Options)) *Builder {
	b.configure = append(b.configure, fn)
	return b
}

// WithLogger sets the pipeline logger.
func (b *Builder) WithLogger(l *logging.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetrics sets the metrics collector.
func (b *Builder) WithMetrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// AddActions registers descriptor providers.
func (b *Builder) AddActions(ps ...actions.DescriptorProvider) *Builder {
	b.providers = append(b.providers, ps...)
	return b
}

// AddFilter registers a global filter.
func (b *Builder) AddFilter(f any, order int) *Builder {
	b.global = append(b.global, actions.FilterDescriptor{Filter: f, Order: order, Scope: actions.ScopeGlobal})
	return b
}

// AddInvokerProvider registers an invoker provider alongside the default
// handler provider.
func (b *Builder) AddInvokerProvider(p invoker.Provider) *Builder {
	b.invokers = append(b.invokers, p)
	return b
}

// AddInputFormatter registers a body formatter ahead of the defaults.
func (b *Builder) AddInputFormatter(f modelbinding.InputFormatter) *Builder {
	b.formatters = append(b.formatters, f)
	return b
}

// InvalidModelStateResult overrides the result sent when a required
// parameter is missing.
func (b *Builder) InvalidModelStateResult(fn func(*actions.ActionContext) results.Result) *Builder {
	b.invalidModelState = fn
	return b
}

// ModelBinders returns the binder registry for custom registrations.
func (b *Builder) ModelBinders() *modelbinding.Registry { return b.binders }

// Services returns the service registry. Services registered here take
// precedence over the defaults.
func (b *Builder) Services() *services.Registry { return b.services }

// Build validates every registration and creates the App.
func (b *Builder) Build() (*App, error) {
	opts := b.opts
	for _, fn := range b.configure {
		fn(&opts)
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Discard()
	}

	collection, err := actions.NewCollection(b.providers...)
	if err != nil {
		return nil, fmt.Errorf("collect actions: %w", err)
	}

	b.services.TryRegisterSingleton(results.FormatterOptionsService, &results.FormatterOptions{
		RespectBrowserAcceptHeader: opts.RespectBrowserAcceptHeader,
		ReturnHTTPNotAcceptable:    opts.ReturnHTTPNotAcceptable,
		Formatters:                 results.DefaultOutputFormatters(),
	})
	b.services.TryRegisterSingleton(results.URLHelperService, results.PathBaseURLHelper{PathBase: opts.PathBase})
	b.services.TryRegisterSingleton(ModelBindersService, b.binders)

	var formatters []modelbinding.InputFormatter
	if len(b.formatters) > 0 {
		formatters = append(append(formatters, b.formatters...), modelbinding.DefaultInputFormatters()...)
	}
	binder := modelbinding.NewParameterBinder(b.binders, b.metadata, formatters)

	filterProvider := filters.NewProvider(b.global...)
	for _, d := range collection.Items() {
		if _, err := filterProvider.PipelineFor(d); err != nil {
			return nil, err
		}
	}

	deps := invoker.Dependencies{
		Filters: filterProvider,
		Binder:  binder,
		Logger:  logger,
		Metrics: b.metrics,
		Options: invoker.Options{
			MaxBodyBytes:            opts.MaxBodyBytes,
			MaxModelErrors:          opts.MaxModelErrors,
			InvalidModelStateResult: b.invalidModelState,
		},
	}
	providers := append([]invoker.Provider{invoker.NewHandlerProvider(deps)}, b.invokers...)

	logger.WithField("actions", collection.Len()).Info("Action pipeline built")

	return &App{
		actions:  collection,
		selector: selection.NewSelector(collection, logger, b.metrics),
		factory:  invoker.NewFactory(providers...),
		filters:  filterProvider,
		services: b.services,
		logger:   logger,
		metrics:  b.metrics,
		opts:     opts,
	}, nil
}
