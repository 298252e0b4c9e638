// Package invoker runs one selected action through its filter pipeline:
// authorization, resource filters, model binding, action filters, the
// handler, exception filters and finally result filters around result
// execution.
package invoker

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/mvc_layer/internal/errors"
	"github.com/R3E-Network/mvc_layer/internal/logging"
	"github.com/R3E-Network/mvc_layer/internal/metrics"
	"github.com/R3E-Network/mvc_layer/internal/state"
	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/filters"
	"github.com/R3E-Network/mvc_layer/pkg/modelbinding"
	"github.com/R3E-Network/mvc_layer/pkg/results"
)

// Outcome labels recorded for each invocation.
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomeShortCircuit = "short_circuit"
	OutcomeInvalidModel = "invalid_model"
	OutcomeCanceled     = "canceled"
)

// Options tune a single invocation.
type Options struct {
	// MaxBodyBytes limits the buffered request body. Zero disables the limit.
	MaxBodyBytes int64
	// MaxModelErrors caps the errors recorded in ModelState.
	MaxModelErrors int
	// InvalidModelStateResult builds the result sent when a required
	// parameter could not be bound. Defaults to results.BadRequestModelState.
	InvalidModelStateResult func(ac *actions.ActionContext) results.Result
}

// Dependencies are the shared collaborators every invoker uses.
type Dependencies struct {
	Filters *filters.Provider
	Binder  *modelbinding.ParameterBinder
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Options Options
}

// Invoker executes one action invocation.
type Invoker interface {
	Invoke() error
}

// ActionInvoker is the default Invoker. It is created per request and is
// not safe for concurrent use.
type ActionInvoker struct {
	ac       *actions.ActionContext
	pipeline *filters.Pipeline
	binder   *modelbinding.ParameterBinder
	opts     Options
	log      *logrus.Entry
	metrics  *metrics.Metrics
	machine  *state.Machine
	args     actions.Arguments
	outcome  string
}

// New creates an invoker for ac using pipeline.
func New(ac *actions.ActionContext, pipeline *filters.Pipeline, deps Dependencies) *ActionInvoker {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	binder := deps.Binder
	if binder == nil {
		binder = modelbinding.NewParameterBinder(nil, nil, nil)
	}
	if pipeline == nil {
		pipeline = &filters.Pipeline{}
	}
	if deps.Options.MaxModelErrors > 0 {
		ac.ModelState.MaxAllowedErrors = deps.Options.MaxModelErrors
	}

	inv := &ActionInvoker{
		ac:       ac,
		pipeline: pipeline,
		binder:   binder,
		opts:     deps.Options,
		log: logger.WithContext(ac.Context()).WithFields(logrus.Fields{
			"action": ac.Descriptor.DisplayName(),
		}),
		metrics: deps.Metrics,
		outcome: OutcomeOK,
	}
	inv.machine = state.NewMachine(func(from, to state.Status) {
		inv.metrics.RecordTransition(from.String(), to.String())
	})
	ac.Logger = inv.log
	return inv
}

// State returns the current lifecycle state.
func (i *ActionInvoker) State() state.Status { return i.machine.Current() }

// History returns every state the invocation entered.
func (i *ActionInvoker) History() []state.Status { return i.machine.History() }

// Arguments returns the bound arguments once binding has run.
func (i *ActionInvoker) Arguments() actions.Arguments { return i.args }

// Invoke implements Invoker. The returned error is one no filter handled;
// the host decides how to render it.
func (i *ActionInvoker) Invoke() (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(r, debug.Stack())
		}
		if err != nil {
			i.machine.Fault()
			if i.outcome == OutcomeOK {
				i.outcome = OutcomeError
			}
			if isCanceled(err) {
				i.outcome = OutcomeCanceled
				i.log.WithError(err).Debug("Action canceled")
			} else {
				i.log.WithError(err).Error("Action failed")
			}
		} else {
			// A resource filter may have handled an inner error before the
			// result stage was reached.
			if !state.CanTransition(i.machine.Current(), state.StatusCompleted) {
				i.transition(state.StatusResultExecuting)
			}
			i.transition(state.StatusCompleted)
			i.log.WithFields(logrus.Fields{
				"status":      i.ac.Response.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("Action executed")
		}
		i.metrics.RecordInvocation(i.ac.Descriptor.DisplayName(), i.outcome, time.Since(start))
	}()

	i.transition(state.StatusSelected)

	for _, f := range i.pipeline.Authorization {
		c := &filters.AuthorizationContext{ActionContext: i.ac}
		if err := guard(func() error { return f.OnAuthorization(c) }); err != nil {
			return err
		}
		if c.Result != nil {
			i.shortCircuit(filters.StageAuthorization)
			return i.executeDirect(c.Result)
		}
	}

	executed := i.resourceStep(0)()
	if executed.Err != nil && !executed.ExceptionHandled {
		return executed.Err
	}
	return nil
}

func (i *ActionInvoker) transition(to state.Status) {
	if err := i.machine.Transition(to); err != nil {
		panic(err)
	}
}

func (i *ActionInvoker) shortCircuit(stage filters.Stage) {
	i.outcome = OutcomeShortCircuit
	i.metrics.RecordShortCircuit(string(stage))
	i.log.WithField("stage", string(stage)).Debug("Filter short-circuited the pipeline")
}

// executeDirect runs a short-circuit result without result filters.
func (i *ActionInvoker) executeDirect(r results.Result) error {
	if err := i.ac.Context().Err(); err != nil {
		return err
	}
	i.transition(state.StatusResultExecuting)
	return guard(func() error { return r.ExecuteResult(i.ac) })
}

func (i *ActionInvoker) resourceStep(idx int) filters.ResourceNext {
	if idx == len(i.pipeline.Resource) {
		return func() *filters.ResourceExecutedContext {
			result, err := i.invokeInner()
			return &filters.ResourceExecutedContext{ActionContext: i.ac, Result: result, Err: err}
		}
	}
	return func() *filters.ResourceExecutedContext {
		c := &filters.ResourceExecutingContext{ActionContext: i.ac}
		var executed *filters.ResourceExecutedContext
		next := func() *filters.ResourceExecutedContext {
			executed = i.resourceStep(idx + 1)()
			return executed
		}
		if err := guard(func() error { return i.pipeline.Resource[idx].OnResourceExecution(c, next) }); err != nil {
			return &filters.ResourceExecutedContext{ActionContext: i.ac, Err: err}
		}
		if executed != nil {
			return executed
		}

		i.shortCircuit(filters.StageResource)
		out := &filters.ResourceExecutedContext{ActionContext: i.ac, Result: c.Result, Canceled: true}
		if c.Result != nil {
			out.Err = i.executeDirect(c.Result)
		}
		return out
	}
}

// invokeInner runs the exception-guarded action scope, then the result stage.
func (i *ActionInvoker) invokeInner() (results.Result, error) {
	result, err := i.invokeActionScope()
	if err != nil {
		return nil, err
	}
	if err := i.ac.Context().Err(); err != nil {
		return result, err
	}
	return result, i.invokeResult(result)
}

// invokeActionScope binds and runs the action. Errors are offered to the
// exception filters, innermost first.
func (i *ActionInvoker) invokeActionScope() (results.Result, error) {
	result, err := i.bindAndInvoke()
	if err == nil {
		return result, nil
	}

	ec := &filters.ExceptionContext{ActionContext: i.ac, Err: err}
	for j := len(i.pipeline.Exception) - 1; j >= 0; j-- {
		f := i.pipeline.Exception[j]
		if ferr := guard(func() error { return f.OnException(ec) }); ferr != nil {
			return nil, ferr
		}
	}
	if !ec.Handled() {
		return nil, ec.Err
	}
	i.log.WithError(err).Debug("Exception handled by filter")
	if ec.Result == nil {
		return results.Empty{}, nil
	}
	return ec.Result, nil
}

func (i *ActionInvoker) bindAndInvoke() (results.Result, error) {
	if err := i.ac.Context().Err(); err != nil {
		return nil, err
	}
	i.transition(state.StatusBinding)

	ok, err := i.bindArguments()
	if err != nil {
		return nil, err
	}
	if n := i.ac.ModelState.ErrorCount(); n > 0 {
		i.metrics.RecordModelStateErrors(i.ac.Descriptor.DisplayName(), n)
	}
	if !ok {
		i.outcome = OutcomeInvalidModel
		i.log.WithField("errors", i.ac.ModelState.String()).Debug("Required parameter missing")
		if i.opts.InvalidModelStateResult != nil {
			return i.opts.InvalidModelStateResult(i.ac), nil
		}
		return results.BadRequestModelState(i.ac.ModelState), nil
	}

	if err := i.ac.Context().Err(); err != nil {
		return nil, err
	}
	i.transition(state.StatusInvoking)

	executed := i.actionStep(0, i.args)()
	if executed.Err != nil && !executed.ExceptionHandled {
		return nil, executed.Err
	}
	if executed.Result == nil {
		return results.Empty{}, nil
	}
	return executed.Result, nil
}

// bindArguments binds every declared parameter. It returns false when a
// required parameter is missing.
func (i *ActionInvoker) bindArguments() (bool, error) {
	d := i.ac.Descriptor
	i.args = make(actions.Arguments, len(d.Parameters))
	if len(d.Parameters) == 0 {
		return true, nil
	}

	body, err := i.ac.Body(i.opts.MaxBodyBytes)
	if err != nil {
		if stderrors.Is(err, actions.ErrBodyTooLarge) {
			return false, errors.New(errors.CodeBadRequest,
				fmt.Sprintf("Request body exceeds %d bytes", i.opts.MaxBodyBytes),
				http.StatusRequestEntityTooLarge)
		}
		return false, err
	}

	op := i.binder.NewOperation(body, i.ac.Request.Header.Get("Content-Type"), i.ac.Logger)
	vp := i.ac.ValueProviders(body)
	ok := true
	for _, p := range d.Parameters {
		res, err := i.binder.Bind(i.ac.Context(), op, vp, i.ac.ModelState, p.Binding())
		if err != nil {
			return false, err
		}
		if res.MissingRequired {
			ok = false
		}
		if res.IsModelSet {
			i.args[p.Name] = res.Model
		}
	}
	return ok, nil
}

func (i *ActionInvoker) actionStep(idx int, args actions.Arguments) filters.ActionNext {
	if idx == len(i.pipeline.Action) {
		return func() *filters.ActionExecutedContext {
			out := &filters.ActionExecutedContext{ActionContext: i.ac}
			if err := i.ac.Context().Err(); err != nil {
				out.Err = err
				return out
			}
			v, err := i.callHandler(args)
			if err != nil {
				out.Err = err
				return out
			}
			out.Result = results.Normalize(v)
			return out
		}
	}
	return func() *filters.ActionExecutedContext {
		c := &filters.ActionExecutingContext{ActionContext: i.ac, Arguments: args}
		var executed *filters.ActionExecutedContext
		next := func() *filters.ActionExecutedContext {
			executed = i.actionStep(idx+1, c.Arguments)()
			return executed
		}
		if err := guard(func() error { return i.pipeline.Action[idx].OnActionExecution(c, next) }); err != nil {
			return &filters.ActionExecutedContext{ActionContext: i.ac, Err: err}
		}
		if executed != nil {
			return executed
		}
		i.shortCircuit(filters.StageAction)
		return &filters.ActionExecutedContext{ActionContext: i.ac, Result: c.Result, Canceled: true}
	}
}

func (i *ActionInvoker) callHandler(args actions.Arguments) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(r, debug.Stack())
		}
	}()
	return i.ac.Descriptor.Handler(i.ac, args)
}

func (i *ActionInvoker) invokeResult(result results.Result) error {
	i.transition(state.StatusResultExecuting)
	executed := i.resultStep(0, result)()
	if executed.Err != nil && !executed.ExceptionHandled {
		return executed.Err
	}
	return nil
}

func (i *ActionInvoker) resultStep(idx int, result results.Result) filters.ResultNext {
	if idx == len(i.pipeline.Result) {
		return func() *filters.ResultExecutedContext {
			out := &filters.ResultExecutedContext{ActionContext: i.ac, Result: result}
			if err := i.ac.Context().Err(); err != nil {
				out.Err = err
				return out
			}
			out.Err = guard(func() error { return result.ExecuteResult(i.ac) })
			return out
		}
	}
	return func() *filters.ResultExecutedContext {
		c := &filters.ResultExecutingContext{ActionContext: i.ac, Result: result}
		var executed *filters.ResultExecutedContext
		next := func() *filters.ResultExecutedContext {
			executed = i.resultStep(idx+1, c.Result)()
			return executed
		}
		if err := guard(func() error { return i.pipeline.Result[idx].OnResultExecution(c, next) }); err != nil {
			return &filters.ResultExecutedContext{ActionContext: i.ac, Result: c.Result, Err: err}
		}
		if executed != nil {
			return executed
		}
		i.shortCircuit(filters.StageResult)
		return &filters.ResultExecutedContext{ActionContext: i.ac, Result: c.Result, Canceled: true}
	}
}

// guard runs fn, turning a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(r, debug.Stack())
		}
	}()
	return fn()
}

func isCanceled(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
