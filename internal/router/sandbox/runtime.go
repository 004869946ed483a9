package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

type job struct {
	ctx  context.Context
	fn   func(vm *goja.Runtime) error
	done chan error
}

// Runtime owns one goja VM. The VM is only ever touched by a single
// goroutine, the lane; every evaluation and call is queued onto it.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan job
	exited chan struct{}
}

// New creates a runtime and starts its lane. Callers must Close it.
func New(config Config, logger *zap.Logger) (*Runtime, error) {
	r := &Runtime{
		vm:     goja.New(),
		config: config,
		logger: logger,
		jobs:   make(chan job),
		exited: make(chan struct{}),
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}

	go r.lane()
	return r, nil
}

// With acquires a fresh runtime, runs fn and releases the runtime on every
// exit path.
func With(ctx context.Context, config Config, logger *zap.Logger, fn func(*Runtime) error) error {
	r, err := New(config, logger)
	if err != nil {
		return fmt.Errorf("create sandbox: %w", err)
	}
	defer r.Close()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(r)
}

func (r *Runtime) lane() {
	defer close(r.exited)
	for j := range r.jobs {
		j.done <- r.run(j)
	}
}

// run executes one job with timeout and cancellation support
func (r *Runtime) run(j job) error {
	stop := make(chan struct{})
	watching := make(chan struct{})

	var timeout <-chan time.Time
	if r.config.Timeout > 0 {
		timer := time.NewTimer(r.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	// Setup interrupt handler
	go func() {
		defer close(watching)
		select {
		case <-timeout:
			r.vm.Interrupt("execution timeout exceeded")
		case <-j.ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-stop:
		}
	}()

	err := j.fn(r.vm)

	// The watcher must be gone before clearing, or a late interrupt would
	// hit the next job.
	close(stop)
	<-watching
	r.vm.ClearInterrupt()
	return err
}

// Do runs fn on the lane and waits for it. fn must not retain vm or any
// goja.Value beyond its own return.
func (r *Runtime) Do(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case r.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-j.done
}

// Evaluate runs scripts in order in the shared global scope.
func (r *Runtime) Evaluate(ctx context.Context, scripts ...Script) error {
	return r.Do(ctx, func(vm *goja.Runtime) error {
		for _, s := range scripts {
			if _, err := vm.RunScript(s.Name, s.Source); err != nil {
				return fmt.Errorf("evaluate %s: %w", s.Name, err)
			}
		}
		return nil
	})
}

// Call invokes the global function name with string arguments and returns
// the exported result.
func (r *Runtime) Call(ctx context.Context, name string, args ...string) (interface{}, error) {
	var out interface{}
	err := r.Do(ctx, func(vm *goja.Runtime) error {
		v, err := call(vm, name, args...)
		if err != nil {
			return err
		}
		out = exportValue(v)
		return nil
	})
	return out, err
}

// Missing returns the names among names that are undefined in the scope.
func (r *Runtime) Missing(ctx context.Context, names ...string) ([]string, error) {
	var missing []string
	err := r.Do(ctx, func(vm *goja.Runtime) error {
		for _, name := range names {
			// typeof also sees let/const bindings, which are not
			// properties of the global object.
			v, err := vm.RunString("typeof " + name)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", name, err)
			}
			if v.String() == "undefined" {
				missing = append(missing, name)
			}
		}
		return nil
	})
	return missing, err
}

func call(vm *goja.Runtime, name string, args ...string) (goja.Value, error) {
	fn, ok := goja.AssertFunction(vm.Get(name))
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFunction)
	}

	values := make([]goja.Value, len(args))
	for i, a := range args {
		values[i] = vm.ToValue(a)
	}

	v, err := fn(goja.Undefined(), values...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	return v, nil
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	// Remove dangerous globals
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	console := r.vm.NewObject()
	for _, level := range []string{"log", "warn", "error", "info"} {
		if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}

	// Timers never fire; the router scripts only use them for UI work.
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	if err := r.vm.Set("setTimeout", noop); err != nil {
		return err
	}
	return r.vm.Set("setInterval", noop)
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !r.config.EnableConsole {
			return goja.Undefined()
		}

		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		r.logger.Debug("Script console output",
			zap.String("level", level),
			zap.String("message", strings.Join(parts, " ")))

		return goja.Undefined()
	}
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Close stops the lane and releases the VM. It is safe to call twice.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	close(r.jobs)
	<-r.exited

	r.vm = nil
	return nil
}
