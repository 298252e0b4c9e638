package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/R3E-Network/mvc_layer/pkg/modelbinding"
	"github.com/R3E-Network/mvc_layer/pkg/routing"
	"github.com/R3E-Network/mvc_layer/pkg/services"
	"github.com/sirupsen/logrus"
)

// ErrBodyTooLarge is returned by Body when the request exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// ActionContext is the per-request state of one invocation. It belongs to
// exactly one invoker and must not be shared across requests.
type ActionContext struct {
	Request     *http.Request
	Response    *Response
	Descriptor  *ActionDescriptor
	RouteValues routing.Values
	ModelState  *modelbinding.ModelStateDictionary
	Services    *services.Registry
	TraceID     string
	Logger      *logrus.Entry

	ctx      context.Context
	items    map[string]any
	body     []byte
	bodyRead bool
	bodyErr  error
}

// NewActionContext creates the context for descriptor d.
func NewActionContext(w http.ResponseWriter, r *http.Request, d *ActionDescriptor, rv routing.Values, svc *services.Registry) *ActionContext {
	if rv == nil {
		rv = routing.Values{}
	}
	resp, ok := w.(*Response)
	if !ok {
		resp = NewResponse(w)
	}
	return &ActionContext{
		Request:     r,
		Response:    resp,
		Descriptor:  d,
		RouteValues: rv,
		ModelState:  modelbinding.NewModelStateDictionary(),
		Services:    svc,
		Logger:      logrus.NewEntry(logrus.StandardLogger()),
		ctx:         r.Context(),
	}
}

// Context returns the request context; its cancellation aborts the pipeline.
func (ac *ActionContext) Context() context.Context {
	if ac.ctx == nil {
		return context.Background()
	}
	return ac.ctx
}

// WithContext replaces the request context.
func (ac *ActionContext) WithContext(ctx context.Context) {
	ac.ctx = ctx
	ac.Request = ac.Request.WithContext(ctx)
}

// Set stores a request-scoped item.
func (ac *ActionContext) Set(key string, v any) {
	if ac.items == nil {
		ac.items = make(map[string]any)
	}
	ac.items[key] = v
}

// Get returns a request-scoped item.
func (ac *ActionContext) Get(key string) (any, bool) {
	v, ok := ac.items[key]
	return v, ok
}

// Body reads and buffers the request body once. Bodies over max bytes
// return ErrBodyTooLarge; max <= 0 disables the limit.
func (ac *ActionContext) Body(max int64) ([]byte, error) {
	if ac.bodyRead {
		return ac.body, ac.bodyErr
	}
	ac.bodyRead = true
	if err := ac.Context().Err(); err != nil {
		ac.bodyErr = err
		return nil, err
	}
	if ac.Request.Body == nil || ac.Request.Body == http.NoBody {
		return nil, nil
	}
	defer ac.Request.Body.Close()

	reader := io.Reader(ac.Request.Body)
	if max > 0 {
		reader = io.LimitReader(ac.Request.Body, max+1)
	}
	b, err := io.ReadAll(reader)
	if err != nil {
		ac.bodyErr = fmt.Errorf("read request body: %w", err)
		return nil, ac.bodyErr
	}
	if max > 0 && int64(len(b)) > max {
		ac.bodyErr = ErrBodyTooLarge
		return nil, ac.bodyErr
	}
	ac.body = b
	return b, nil
}

// MediaType returns the request's media type without parameters.
func (ac *ActionContext) MediaType() string {
	mt, _, err := mime.ParseMediaType(ac.Request.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// ValueProviders builds the providers for this request in lookup order:
// route, query, form, JSON body, headers. body is the buffered request body.
func (ac *ActionContext) ValueProviders(body []byte) modelbinding.CompositeValueProvider {
	vps := modelbinding.CompositeValueProvider{
		modelbinding.NewRouteValueProvider(ac.RouteValues),
		modelbinding.NewQueryValueProvider(ac.Request.URL.Query()),
	}
	switch mt := ac.MediaType(); {
	case mt == "application/x-www-form-urlencoded":
		if form, err := url.ParseQuery(string(body)); err == nil {
			vps = append(vps, modelbinding.NewFormValueProvider(form))
		}
	case (modelbinding.JSONInputFormatter{}).CanRead(mt) && len(body) > 0:
		vps = append(vps, modelbinding.NewJSONValueProvider(body))
	}
	return append(vps, modelbinding.NewHeaderValueProvider(ac.Request.Header))
}
