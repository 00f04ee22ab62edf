package sandbox

import (
	"strings"

	"github.com/dop251/goja"
)

const (
	// NoOutput is returned when no strategy finds a value.
	NoOutput = "No output generated"

	noOutputReason = "no stdout and no fallback variable"

	// CapturedSource marks a result recovered from set_result.
	CapturedSource = "__captured_result"
)

// state is what strategies may inspect after a script finished.
type state struct {
	vm       *goja.Runtime
	stdout   string
	captured goja.Value
}

// Strategy recovers the script's answer. source is reported as
// fallback_source when non-empty.
type Strategy interface {
	Extract(s *state) (text, source string, ok bool)
}

// StdoutStrategy uses whatever the script printed.
type StdoutStrategy struct{}

func (StdoutStrategy) Extract(s *state) (string, string, bool) {
	out := strings.TrimSpace(s.stdout)
	return out, "", out != ""
}

// VariableStrategy reads the first defined global among Names.
type VariableStrategy struct {
	Names []string
}

func (v VariableStrategy) Extract(s *state) (string, string, bool) {
	for _, name := range v.Names {
		if val := s.vm.Get(name); present(val) {
			return stringify(s.vm, val), name, true
		}
	}
	return "", "", false
}

// CapturedStrategy uses the last value passed to set_result.
type CapturedStrategy struct{}

func (CapturedStrategy) Extract(s *state) (string, string, bool) {
	if !present(s.captured) {
		return "", "", false
	}
	return stringify(s.vm, s.captured), CapturedSource, true
}

// DefaultStrategies is the extraction order: stdout, then result / answer /
// output, then set_result.
func DefaultStrategies() []Strategy {
	return []Strategy{
		StdoutStrategy{},
		VariableStrategy{Names: []string{"result", "answer", "output"}},
		CapturedStrategy{},
	}
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

// extract runs the chain; the first match wins. With no match it returns
// the sentinel and a reason.
func extract(chain []Strategy, s *state) (text, source, reason string) {
	for _, strategy := range chain {
		if text, source, ok := strategy.Extract(s); ok {
			return text, source, ""
		}
	}
	return NoOutput, "", noOutputReason
}
