package sandbox

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// newDF builds the df helper object. Every statistic coerces its input with
// the same rules as df.numeric, so scripts may pass raw series.
func newDF(vm *goja.Runtime) *goja.Object {
	df := vm.NewObject()

	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		_ = df.Set(name, fn)
	}

	set("numeric", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(numeric(call.Argument(0).Export()))
	})

	set("column", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(column(call.Argument(0).Export(), call.Argument(1).String()))
	})

	unary := func(name string, fn func([]float64) float64) {
		set(name, func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(fn(numeric(call.Argument(0).Export())))
		})
	}
	unary("mean", mean)
	unary("median", median)
	unary("min", minOf)
	unary("max", maxOf)
	unary("sum", floats.Sum)
	unary("std", stdDev)
	unary("count", func(xs []float64) float64 { return float64(len(xs)) })

	set("top", func(call goja.FunctionCall) goja.Value {
		n := 10
		if arg := call.Argument(1); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
			n = int(arg.ToInteger())
		}
		return vm.ToValue(top(numeric(call.Argument(0).Export()), n))
	})

	set("corr", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(corr(
			numeric(call.Argument(0).Export()),
			numeric(call.Argument(1).Export()),
		))
	})

	return df
}

// numeric flattens v into finite float64s, dropping null, NaN, Inf and
// anything that doesn't parse. Objects contribute their "value" field.
func numeric(v any) []float64 {
	out := []float64{}
	var walk func(any)
	walk = func(v any) {
		switch x := v.(type) {
		case []any:
			for _, item := range x {
				walk(item)
			}
		case []float64:
			for _, f := range x {
				walk(f)
			}
		case map[string]any:
			if inner, ok := x["value"]; ok {
				walk(inner)
			}
		default:
			if f, ok := toFloat(x); ok {
				out = append(out, f)
			}
		}
	}
	walk(v)
	return out
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// column plucks field from each object in rows; non-objects yield nil.
func column(rows any, field string) []any {
	list, ok := rows.([]any)
	if !ok {
		return []any{}
	}
	out := make([]any, 0, len(list))
	for _, row := range list {
		if m, ok := row.(map[string]any); ok {
			out = append(out, m[field])
		} else {
			out = append(out, nil)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

func median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return floats.Min(xs)
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return floats.Max(xs)
}

// stdDev is the sample standard deviation (n-1).
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

// top returns the n largest values in descending order.
func top(xs []float64, n int) []float64 {
	if n < 0 {
		n = 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// corr is the Pearson correlation of two equal-length series.
func corr(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}
