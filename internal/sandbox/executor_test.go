package sandbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"telemetry-chatbot/internal/telemetry"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeFetcher struct {
	mu     sync.Mutex
	status int
	body   string
	err    error
	block  bool
	urls   []string
}

func (f *fakeFetcher) BuildURL(signals []string) string {
	return "http://telemetry.test/signals?signals=" + strings.Join(signals, ",")
}

func (f *fakeFetcher) Get(ctx context.Context, url string) (*telemetry.Response, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = 200
	}
	return &telemetry.Response{StatusCode: status, Body: []byte(f.body)}, nil
}

func newTestExecutor(t *testing.T, f Fetcher, opts ...Option) *Executor {
	t.Helper()
	if f == nil {
		f = &fakeFetcher{}
	}
	return New(f, zaptest.NewLogger(t), opts...)
}

func requireKind(t *testing.T, err error, kind Kind) *ScriptError {
	t.Helper()
	var se *ScriptError
	require.True(t, errors.As(err, &se), "expected *ScriptError, got %v", err)
	require.Equal(t, kind, se.Kind, "unexpected kind: %v", se)
	return se
}

func TestExecutePrintedOutput(t *testing.T) {
	e := newTestExecutor(t, nil)

	code := `print("Average mobile_speed: 42.0")`
	res, err := e.Execute(context.Background(), code)
	require.NoError(t, err)

	assert.Equal(t, "Average mobile_speed: 42.0", res.Text)
	assert.Empty(t, res.Diagnostics.FallbackSource)
	assert.Empty(t, res.Diagnostics.Reason)
	assert.Equal(t, len(code), res.Diagnostics.SanitizedLength)
	assert.Equal(t, len("Average mobile_speed: 42.0\n"), res.Diagnostics.StdoutLength)
}

func TestExecuteSetResultFallback(t *testing.T) {
	res, err := newTestExecutor(t, nil).Execute(context.Background(), `set_result("X")`)
	require.NoError(t, err)

	assert.Equal(t, "X", res.Text)
	assert.Equal(t, CapturedSource, res.Diagnostics.FallbackSource)
}

func TestExecuteVariableFallbackOrder(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		wantText   string
		wantSource string
	}{
		{"result first", `var output = "o"; var answer = "a"; var result = "r";`, "r", "result"},
		{"answer before output", `var output = "o"; var answer = "a";`, "a", "answer"},
		{"output last", `var output = 7;`, "7", "output"},
		{"null skipped", `var result = null; var answer = "a";`, "a", "answer"},
		{"let binding", `let result = "lexical";`, "lexical", "result"},
		{"object stringified", `var result = {avg: 1.5};`, `{"avg":1.5}`, "result"},
		{"variable beats set_result", `var result = "v"; set_result("c");`, "v", "result"},
	}

	e := newTestExecutor(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Execute(context.Background(), tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, res.Text)
			assert.Equal(t, tt.wantSource, res.Diagnostics.FallbackSource)
		})
	}
}

func TestExecuteNoOutputSentinel(t *testing.T) {
	res, err := newTestExecutor(t, nil).Execute(context.Background(), `var x = 1 + 1;`)
	require.NoError(t, err)

	assert.Equal(t, NoOutput, res.Text)
	assert.Equal(t, "no stdout and no fallback variable", res.Diagnostics.Reason)
	assert.Empty(t, res.Diagnostics.FallbackSource)
}

func TestExecuteCompileErrorBeforeWatchdog(t *testing.T) {
	e := newTestExecutor(t, nil)
	armed := false
	e.armed = func() { armed = true }

	_, err := e.Execute(context.Background(), `print("unterminated`)
	se := requireKind(t, err, KindCompile)

	assert.False(t, armed, "watchdog must not be armed for a syntax error")
	assert.Equal(t, `print("unterminated`, se.Script)
}

func TestExecuteTimeout(t *testing.T) {
	budget := 100 * time.Millisecond
	e := newTestExecutor(t, nil, WithTimeout(budget))

	start := time.Now()
	res, err := e.Execute(context.Background(), `while (true) {}`)
	elapsed := time.Since(start)

	se := requireKind(t, err, KindTimeout)
	assert.Equal(t, "script execution timed out", se.Error())
	assert.Less(t, elapsed, budget+2*time.Second)
	assert.GreaterOrEqual(t, res.Diagnostics.DurationMs, budget.Milliseconds())
}

func TestExecuteTimeoutDuringFetch(t *testing.T) {
	f := &fakeFetcher{block: true}
	e := newTestExecutor(t, f, WithTimeout(100*time.Millisecond))

	start := time.Now()
	_, err := e.Execute(context.Background(), `var r = http_get(build_url(["rpm"])); print(r.status);`)

	requireKind(t, err, KindTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecuteIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestExecutor(t, &fakeFetcher{body: `{}`}).Execute(ctx, `print(http_get("http://telemetry.test/x").status)`)
	require.NoError(t, err)
	assert.Equal(t, "200", res.Text)
}

func TestExecuteRuntimeError(t *testing.T) {
	_, err := newTestExecutor(t, nil).Execute(context.Background(), `throw new Error("boom")`)
	se := requireKind(t, err, KindRuntime)
	assert.Contains(t, se.Error(), "boom")
	assert.Equal(t, "Error: boom", se.Detail())
}

func TestExecuteExitIsNoop(t *testing.T) {
	res, err := newTestExecutor(t, nil).Execute(context.Background(), `exit(1); quit(); print("still here")`)
	require.NoError(t, err)
	assert.Equal(t, "still here", res.Text)
}

func TestExecuteDynamicCodeDisabled(t *testing.T) {
	e := newTestExecutor(t, nil)

	for _, code := range []string{
		`eval("1 + 1")`,
		`Function("return 1")()`,
		`(function(){}).constructor("return 1")()`,
	} {
		_, err := e.Execute(context.Background(), code)
		requireKind(t, err, KindRuntime)
	}
}

func TestExecuteNoHostGlobals(t *testing.T) {
	res, err := newTestExecutor(t, nil).Execute(context.Background(), `
		var names = ["require", "process", "fetch", "XMLHttpRequest", "console"];
		var found = [];
		for (var i = 0; i < names.length; i++) {
			if (typeof this[names[i]] !== "undefined") found.push(names[i]);
		}
		print(found.length === 0 ? "clean" : found.join(","));
	`)
	require.NoError(t, err)
	assert.Equal(t, "clean", res.Text)
}

func TestExecuteFreshRuntimePerCall(t *testing.T) {
	e := newTestExecutor(t, nil)

	_, err := e.Execute(context.Background(), `var leaked = "yes";`)
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), `print(typeof leaked)`)
	require.NoError(t, err)
	assert.Equal(t, "undefined", res.Text)
}

func TestExecuteFetchAndAggregate(t *testing.T) {
	f := &fakeFetcher{body: `{"signals":{"mobile_speed":[40,"44",null,"x",{"value":42}]}}`}
	e := newTestExecutor(t, f)

	res, err := e.Execute(context.Background(), `
		var url = build_url(["mobile_speed"]);
		var resp = http_get(url);
		var data = resp.json();
		var xs = df.numeric(data.signals.mobile_speed);
		var result = "Average mobile_speed: " + df.mean(xs).toFixed(1);
		print(result);
		set_result(result);
	`)
	require.NoError(t, err)

	assert.Equal(t, "Average mobile_speed: 42.0", res.Text)
	require.Len(t, f.urls, 1)
	assert.Equal(t, "http://telemetry.test/signals?signals=mobile_speed", f.urls[0])
}

func TestExecuteNon2xxWarnsOnStderr(t *testing.T) {
	f := &fakeFetcher{status: 503, body: "down"}
	res, err := newTestExecutor(t, f).Execute(context.Background(), `
		var r = http_get(build_url("rpm"));
		print(r.ok ? "ok" : "failed " + r.status);
	`)
	require.NoError(t, err)

	assert.Equal(t, "failed 503", res.Text)
	assert.Contains(t, res.Stderr, "status 503")
	assert.Positive(t, res.Diagnostics.StderrLength)
}

func TestExecuteFetchErrorIsCatchable(t *testing.T) {
	f := &fakeFetcher{err: telemetry.ErrForbiddenURL}
	e := newTestExecutor(t, f)

	res, err := e.Execute(context.Background(), `
		try { http_get("http://elsewhere/"); } catch (e) { print("caught"); }
	`)
	require.NoError(t, err)
	assert.Equal(t, "caught", res.Text)

	_, err = e.Execute(context.Background(), `http_get("http://elsewhere/")`)
	requireKind(t, err, KindRuntime)
}

func TestExecuteFetchErrorIsPlainError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("telemetry: fetch: connection refused")}
	e := newTestExecutor(t, f)

	res, err := e.Execute(context.Background(), `
		try { http_get(build_url(["rpm"])); } catch (e) { print(e instanceof Error, e.message); }
	`)
	require.NoError(t, err)
	assert.Equal(t, "true http_get failed: telemetry: fetch: connection refused", res.Text)

	_, err = e.Execute(context.Background(), `http_get(build_url(["rpm"]))`)
	se := requireKind(t, err, KindRuntime)
	assert.Equal(t, "Error: http_get failed: telemetry: fetch: connection refused", se.Detail())
	assert.NotContains(t, se.Detail(), "GoError")
	assert.NotContains(t, se.Detail(), "native")
}

func TestExecuteOutputIsCapped(t *testing.T) {
	res, err := newTestExecutor(t, nil, WithMaxOutput(8)).Execute(context.Background(), `print("0123456789abcdef")`)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Text, "01234567"))
	assert.True(t, strings.HasSuffix(res.Text, "[output truncated]"))
}

func TestExecuteDeepRecursion(t *testing.T) {
	_, err := newTestExecutor(t, nil).Execute(context.Background(), `function f(n) { return f(n + 1); } f(0);`)
	requireKind(t, err, KindRuntime)
}

func TestExecuteCustomStrategies(t *testing.T) {
	e := newTestExecutor(t, nil, WithStrategies(CapturedStrategy{}))

	res, err := e.Execute(context.Background(), `print("ignored"); set_result(3)`)
	require.NoError(t, err)
	assert.Equal(t, "3", res.Text)
	assert.Equal(t, CapturedSource, res.Diagnostics.FallbackSource)
}

func TestWatchdogLateFireAfterDisarm(t *testing.T) {
	vm := goja.New()
	wd := armWatchdog(vm, time.Hour)

	wd.disarm()
	// a timer callback that was already running when disarm stopped it
	wd.fire()

	v, err := vm.RunString(`JSON.stringify({a: 1})`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v.String())
}

func TestWatchdogInterruptsBeforeDisarm(t *testing.T) {
	vm := goja.New()
	wd := armWatchdog(vm, 20*time.Millisecond)
	defer wd.disarm()

	_, err := vm.RunString(`while (true) {}`)
	var interrupted *goja.InterruptedError
	assert.ErrorAs(t, err, &interrupted)
}
