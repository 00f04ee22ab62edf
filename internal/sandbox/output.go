package sandbox

import (
	"bytes"
	"strings"

	"github.com/dop251/goja"
)

const truncatedMarker = "\n...[output truncated]"

// limitedBuffer keeps at most max bytes; later writes are dropped.
type limitedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room < len(p) {
		if room > 0 {
			b.buf.Write(p[:room])
		}
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncatedMarker
	}
	return b.buf.String()
}

// stringify renders a script value for output. Objects go through
// JSON.stringify; primitives use their JS string form.
func stringify(vm *goja.Runtime, v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if obj, ok := v.(*goja.Object); ok {
		if _, isFunc := goja.AssertFunction(obj); !isFunc {
			if s, ok := jsonStringify(vm, obj); ok {
				return s
			}
		}
	}
	return v.String()
}

func jsonStringify(vm *goja.Runtime, v goja.Value) (s string, ok bool) {
	defer func() {
		// cyclic structures throw; fall back to String()
		if recover() != nil {
			s, ok = "", false
		}
	}()

	jsonObj := vm.Get("JSON")
	if jsonObj == nil {
		return "", false
	}
	fn, isFunc := goja.AssertFunction(jsonObj.ToObject(vm).Get("stringify"))
	if !isFunc {
		return "", false
	}
	out, err := fn(goja.Undefined(), v)
	if err != nil || out == nil || goja.IsUndefined(out) {
		return "", false
	}
	return out.String(), true
}

// joinArgs formats print(...) arguments like a console: space separated.
func joinArgs(vm *goja.Runtime, args []goja.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = stringify(vm, a)
	}
	return strings.Join(parts, " ")
}
