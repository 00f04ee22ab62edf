package sandbox

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// Kind classifies a failed execution.
type Kind string

const (
	KindCompile Kind = "compile"
	KindTimeout Kind = "timeout"
	KindRuntime Kind = "runtime"
)

// ScriptError is returned by Execute for every script failure. Script holds
// the offending text for server-side diagnosis.
type ScriptError struct {
	Kind   Kind
	Err    error
	Script string
}

func (e *ScriptError) Error() string {
	if e.Kind == KindTimeout {
		return "script execution timed out"
	}
	return fmt.Sprintf("script %s error: %v", e.Kind, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// Detail is the caller-facing description of the failure. For thrown script
// values it is the value itself, without the interpreter's frame suffix.
func (e *ScriptError) Detail() string {
	if e.Kind == KindTimeout {
		return "script execution timed out"
	}
	var ex *goja.Exception
	if errors.As(e.Err, &ex) && ex.Value() != nil {
		return ex.Value().String()
	}
	return e.Err.Error()
}
