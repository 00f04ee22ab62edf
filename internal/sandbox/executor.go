// Package sandbox runs generated JavaScript in an embedded goja runtime.
//
// Each execution gets a fresh runtime holding only the allow-listed
// bindings (df, JSON, print, set_result, http_get, build_url, and no-op
// exit/quit). Scripts are compiled before anything runs, interrupted by a
// wall-clock watchdog, and their answer is recovered through an ordered
// strategy chain.
//
// The runtime has no module loader or host I/O, but it is still an
// in-process interpreter: a script can burn CPU until the watchdog fires
// and allocate memory without limit.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"telemetry-chatbot/internal/metrics"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

const (
	defaultTimeout      = 20 * time.Second
	maxCallStackSize    = 512
	defaultMaxOutput    = 64 * 1024
	interruptTimeoutMsg = "execution timeout"
)

// Diagnostics describe one execution. They are returned to callers as the
// response debug payload.
type Diagnostics struct {
	SanitizedLength int    `json:"sanitized_length"`
	StdoutLength    int    `json:"stdout_length"`
	StderrLength    int    `json:"stderr_length"`
	DurationMs      int64  `json:"duration_ms"`
	FallbackSource  string `json:"fallback_source,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Result is a successful execution.
type Result struct {
	Text        string
	Stderr      string
	Diagnostics Diagnostics
}

// Executor runs scripts. It is safe for concurrent use; nothing is shared
// between executions.
type Executor struct {
	logger     *zap.Logger
	fetcher    Fetcher
	timeout    time.Duration
	maxOutput  int
	strategies []Strategy

	// armed is called right after the watchdog is installed.
	armed func()
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets the wall-clock budget per script.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxOutput caps the bytes kept from each of stdout and stderr.
func WithMaxOutput(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxOutput = n
		}
	}
}

// WithStrategies replaces the result extraction chain.
func WithStrategies(chain ...Strategy) Option {
	return func(e *Executor) {
		e.strategies = chain
	}
}

// New creates an Executor. fetcher backs build_url and http_get.
func New(fetcher Fetcher, logger *zap.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		logger:     logger.Named("sandbox"),
		fetcher:    fetcher,
		timeout:    defaultTimeout,
		maxOutput:  defaultMaxOutput,
		strategies: DefaultStrategies(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute compiles and runs code. On failure the error is a *ScriptError
// and the returned Result still carries diagnostics.
func (e *Executor) Execute(ctx context.Context, code string) (*Result, error) {
	start := time.Now()
	res := &Result{Diagnostics: Diagnostics{SanitizedLength: len(code)}}

	finish := func(outcome string) {
		elapsed := time.Since(start)
		res.Diagnostics.DurationMs = elapsed.Milliseconds()
		metrics.ScriptExecutionsTotal.WithLabelValues(outcome).Inc()
		metrics.ScriptDurationSeconds.Observe(elapsed.Seconds())
	}

	prog, err := goja.Compile("script.js", code, false)
	if err != nil {
		finish(string(KindCompile))
		return res, e.fail(KindCompile, err, code)
	}

	// Client disconnects must not cut a script short; only the budget does.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)
	disableDynamicCode(vm)

	r := &run{
		ctx:     runCtx,
		vm:      vm,
		fetcher: e.fetcher,
		logger:  e.logger,
		stdout:  &limitedBuffer{max: e.maxOutput},
		stderr:  &limitedBuffer{max: e.maxOutput},
	}
	if err := r.bind(); err != nil {
		finish(string(KindRuntime))
		return res, e.fail(KindRuntime, err, code)
	}

	wd := armWatchdog(vm, e.timeout)
	defer wd.disarm()
	if e.armed != nil {
		e.armed()
	}

	runErr := runProgram(vm, prog)
	wd.disarm()

	stdout, stderr := r.stdout.String(), r.stderr.String()
	res.Stderr = stderr
	res.Diagnostics.StdoutLength = len(stdout)
	res.Diagnostics.StderrLength = len(stderr)

	if runErr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(runErr, &interrupted) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			finish(string(KindTimeout))
			return res, e.fail(KindTimeout, runErr, code)
		}
		finish(string(KindRuntime))
		return res, e.fail(KindRuntime, runErr, code)
	}

	text, source, reason := extract(e.strategies, &state{
		vm:       vm,
		stdout:   stdout,
		captured: r.captured,
	})
	res.Text = text
	res.Diagnostics.FallbackSource = source
	res.Diagnostics.Reason = reason
	finish("ok")

	e.logger.Debug("script finished",
		zap.Int("stdout_length", res.Diagnostics.StdoutLength),
		zap.Int("stderr_length", res.Diagnostics.StderrLength),
		zap.String("fallback_source", source),
		zap.Int64("duration_ms", res.Diagnostics.DurationMs),
	)
	return res, nil
}

// watchdog interrupts vm once its budget elapses. After disarm returns, no
// interrupt is pending and none can arrive, so the VM is safe to call into.
type watchdog struct {
	vm    *goja.Runtime
	timer *time.Timer

	mu       sync.Mutex
	disarmed bool
}

func armWatchdog(vm *goja.Runtime, d time.Duration) *watchdog {
	wd := &watchdog{vm: vm}
	wd.timer = time.AfterFunc(d, wd.fire)
	return wd
}

func (wd *watchdog) fire() {
	wd.mu.Lock()
	defer wd.mu.Unlock()
	if !wd.disarmed {
		wd.vm.Interrupt(interruptTimeoutMsg)
	}
}

func (wd *watchdog) disarm() {
	wd.mu.Lock()
	defer wd.mu.Unlock()
	if wd.disarmed {
		return
	}
	wd.disarmed = true
	if wd.timer != nil {
		wd.timer.Stop()
	}
	wd.vm.ClearInterrupt()
}

// runProgram executes prog, turning Go panics from bindings into errors.
func runProgram(vm *goja.Runtime, prog *goja.Program) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in script helper: %v", p)
		}
	}()
	_, err = vm.RunProgram(prog)
	return err
}

func (e *Executor) fail(kind Kind, err error, code string) *ScriptError {
	e.logger.Error("script execution failed",
		zap.String("kind", string(kind)),
		zap.Error(err),
		zap.String("script", code),
	)
	return &ScriptError{Kind: kind, Err: err, Script: code}
}

// disableDynamicCode removes eval and the Function constructor, including
// the copies reachable through function prototypes.
func disableDynamicCode(vm *goja.Runtime) {
	vm.Set("eval", goja.Undefined())

	_, _ = vm.RunString(`(function(global) {
		var blocked = function() { throw new TypeError('Function constructor is disabled'); };
		try {
			Object.defineProperty(Function.prototype, 'constructor', {
				value: blocked,
				writable: false,
				configurable: false
			});
		} catch(e) {}
		try {
			Object.defineProperty(global, 'Function', {
				value: blocked,
				writable: false,
				configurable: false
			});
		} catch(e) {}
	})(this);`)

	for _, src := range []string{
		`Object.getPrototypeOf(function*(){})`,
		`Object.getPrototypeOf(async function(){})`,
	} {
		_, _ = vm.RunString(`(function() {
			try {
				Object.defineProperty(` + src + `, 'constructor', {
					value: function() { throw new TypeError('Function constructor is disabled'); },
					writable: false,
					configurable: false
				});
			} catch(e) {}
		})();`)
	}
}
