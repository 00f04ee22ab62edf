package sandbox

import (
	"context"
	"fmt"
	"strings"

	"telemetry-chatbot/internal/telemetry"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Fetcher is the network surface scripts reach through build_url/http_get.
// *telemetry.Client implements it.
type Fetcher interface {
	BuildURL(signals []string) string
	Get(ctx context.Context, rawURL string) (*telemetry.Response, error)
}

// run is the per-execution state behind the bindings.
type run struct {
	ctx      context.Context
	vm       *goja.Runtime
	fetcher  Fetcher
	logger   *zap.Logger
	stdout   *limitedBuffer
	stderr   *limitedBuffer
	captured goja.Value // last set_result argument; nil if never called
}

// bind installs exactly the allow-listed globals.
func (r *run) bind() error {
	vm := r.vm

	bindings := map[string]any{
		"df":         newDF(vm),
		"print":      r.print,
		"set_result": r.setResult,
		"http_get":   r.httpGet,
		"build_url":  r.buildURL,
		"exit":       noop,
		"quit":       noop,
	}
	for name, v := range bindings {
		if err := vm.Set(name, v); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return nil
}

func noop(goja.FunctionCall) goja.Value { return goja.Undefined() }

func (r *run) print(call goja.FunctionCall) goja.Value {
	_, _ = r.stdout.Write([]byte(joinArgs(r.vm, call.Arguments) + "\n"))
	return goja.Undefined()
}

func (r *run) setResult(call goja.FunctionCall) goja.Value {
	r.captured = call.Argument(0)
	return goja.Undefined()
}

func (r *run) buildURL(call goja.FunctionCall) goja.Value {
	var signals []string
	switch v := call.Argument(0).Export().(type) {
	case []any:
		for _, s := range v {
			if str, ok := s.(string); ok {
				signals = append(signals, str)
			}
		}
	case string:
		signals = strings.Split(v, ",")
	}
	return r.vm.ToValue(r.fetcher.BuildURL(signals))
}

func (r *run) httpGet(call goja.FunctionCall) goja.Value {
	url := call.Argument(0).String()

	resp, err := r.fetcher.Get(r.ctx, url)
	if err != nil {
		fmt.Fprintf(r.stderr, "http_get failed: %v\n", err)
		r.throw("http_get failed: " + err.Error())
	}
	if !resp.OK() {
		fmt.Fprintf(r.stderr, "http_get: upstream returned status %d\n", resp.StatusCode)
		r.logger.Warn("script http_get non-2xx", zap.Int("status", resp.StatusCode))
	}

	text := string(resp.Body)
	obj := r.vm.NewObject()
	_ = obj.Set("status", resp.StatusCode)
	_ = obj.Set("ok", resp.OK())
	_ = obj.Set("text", text)
	_ = obj.Set("json", func(goja.FunctionCall) goja.Value {
		parse, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("parse"))
		if !ok {
			panic(r.vm.NewTypeError("JSON.parse is unavailable"))
		}
		v, err := parse(goja.Undefined(), r.vm.ToValue(text))
		if ex, ok := err.(*goja.Exception); ok {
			panic(ex)
		} else if err != nil {
			r.throw("json() failed: " + err.Error())
		}
		return v
	})
	return obj
}

// throw raises a plain JS Error carrying msg. Go error wrappers stay out of
// script-visible values.
func (r *run) throw(msg string) {
	ctor, ok := goja.AssertConstructor(r.vm.Get("Error"))
	if !ok {
		panic(r.vm.NewTypeError(msg))
	}
	obj, err := ctor(nil, r.vm.ToValue(msg))
	if err != nil {
		panic(r.vm.NewTypeError(msg))
	}
	panic(obj)
}
