package constraints

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// DefaultScriptTimeout bounds a single script evaluation.
const DefaultScriptTimeout = 50 * time.Millisecond

// Script is a JavaScript predicate compiled once at startup. The program
// sees a `request` object (method, path, host, headers, query) and a
// `route` object with the route values, and its completion value decides
// acceptance. Errors and timeouts reject.
//
//	request.headers["x-tenant"] === "acme" && route.id !== "0"
type Script struct {
	source  string
	program *goja.Program
	order   int
	timeout time.Duration
}

// ScriptOption configures a Script.
type ScriptOption func(*Script)

// WithScriptOrder overrides ScriptOrder.
func WithScriptOrder(order int) ScriptOption {
	return func(s *Script) { s.order = order }
}

// WithScriptTimeout overrides DefaultScriptTimeout.
func WithScriptTimeout(d time.Duration) ScriptOption {
	return func(s *Script) { s.timeout = d }
}

// NewScript compiles src in strict mode.
func NewScript(src string, opts ...ScriptOption) (*Script, error) {
	p, err := goja.Compile("constraint", src, true)
	if err != nil {
		return nil, fmt.Errorf("constraints: compile script: %w", err)
	}
	s := &Script{source: src, program: p, order: ScriptOrder, timeout: DefaultScriptTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustScript is like NewScript but panics on error.
func MustScript(src string, opts ...ScriptOption) *Script {
	s, err := NewScript(src, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Source returns the script text.
func (s *Script) Source() string { return s.source }

// Order implements Constraint.
func (s *Script) Order() int { return s.order }

// Accept implements Constraint.
func (s *Script) Accept(c *Context) bool {
	ok, err := s.Eval(c)
	return err == nil && ok
}

// Eval runs the program against c. A fresh runtime is used per call since
// goja runtimes are not safe for concurrent use.
func (s *Script) Eval(c *Context) (bool, error) {
	vm := goja.New()
	if err := vm.Set("request", requestObject(c)); err != nil {
		return false, err
	}
	route := map[string]interface{}{}
	for k, v := range c.RouteValues {
		route[k] = v
	}
	if err := vm.Set("route", route); err != nil {
		return false, err
	}

	parent := context.Background()
	if c.Request != nil {
		parent = c.Request.Context()
	}
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt("constraint script interrupted")
		case <-done:
		}
	}()

	v, err := runProgram(vm, s.program)
	close(done)
	cancel()
	if err != nil {
		return false, err
	}
	return v.ToBoolean(), nil
}

func requestObject(c *Context) map[string]interface{} {
	obj := map[string]interface{}{}
	r := c.Request
	if r == nil {
		return obj
	}
	headers := map[string]interface{}{}
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}
	query := map[string]interface{}{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	obj["method"] = r.Method
	obj["path"] = r.URL.Path
	obj["host"] = r.Host
	obj["headers"] = headers
	obj["query"] = query
	return obj
}

func runProgram(vm *goja.Runtime, p *goja.Program) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return vm.RunProgram(p)
}
