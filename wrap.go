package contract

import (
	"context"
	"fmt"
	"reflect"
	"runtime"

	"github.com/aretw0/contract/pkg/schema"
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// Wrap returns a function with the same signature as fn that checks its
// arguments against sig before calling fn and its results afterwards.
//
// Annotations map positionally onto fn's parameters, skipping a leading
// context.Context, which is passed to the hooks instead. A variadic
// parameter is checked as a whole slice. Several results are checked as a
// schema.Tuple; a trailing error result is excluded from that tuple and a
// non-nil error skips the result check.
//
// Violations are delivered through the trailing error result when fn has
// one. Otherwise the wrapper panics with the violation. On an argument
// violation fn is never called; on a result violation fn has already run
// and its other results are returned alongside the error.
func Wrap[F any](g *Guard, fn F, sig Signature) (F, error) {
	var zero F
	if g == nil {
		g = Default()
	}

	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return zero, fmt.Errorf("%w: wrap needs a non-nil func, got %T", ErrSignature, fn)
	}
	ft := fv.Type()
	if sig.Name == "" {
		sig.Name = funcName(fv)
	}

	w := &wrapper{fn: fv, ft: ft}
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		w.offset = 1
	}
	if n := ft.NumIn() - w.offset; len(sig.Params) > n {
		return zero, fmt.Errorf("%w: %s declares %d parameters, the function takes %d", ErrSignature, sig.Name, len(sig.Params), n)
	}
	w.returnsError = ft.NumOut() > 0 && ft.Out(ft.NumOut()-1) == errorType
	results := ft.NumOut()
	if w.returnsError {
		results--
	}
	if sig.Return != nil && results == 0 {
		return zero, fmt.Errorf("%w: %s declares a result, the function returns none", ErrSignature, sig.Name)
	}

	c, err := g.Compile(sig)
	if err != nil {
		return zero, err
	}
	w.contract = c
	return reflect.MakeFunc(ft, w.call).Interface().(F), nil
}

// MustWrap is Wrap with the default guard. It panics when sig cannot be
// compiled or does not fit fn, which makes it suitable for package-level
// variables.
func MustWrap[F any](fn F, sig Signature) F {
	wrapped, err := Wrap(Default(), fn, sig)
	if err != nil {
		panic(err)
	}
	return wrapped
}

type wrapper struct {
	contract     *Contract
	fn           reflect.Value
	ft           reflect.Type
	offset       int
	returnsError bool
}

func (w *wrapper) call(in []reflect.Value) []reflect.Value {
	ctx := context.Background()
	if w.offset == 1 {
		if c, ok := in[0].Interface().(context.Context); ok && c != nil {
			ctx = c
		}
	}
	ctx = ensureCallID(ctx)

	args := make([]any, 0, len(in)-w.offset)
	for _, v := range in[w.offset:] {
		args = append(args, v.Interface())
	}
	if err := w.contract.CheckArgs(ctx, args...); err != nil {
		return w.fail(nil, err)
	}

	var out []reflect.Value
	if w.ft.IsVariadic() {
		out = w.fn.CallSlice(in)
	} else {
		out = w.fn.Call(in)
	}
	if w.contract.ret == nil {
		return out
	}

	results := out
	if w.returnsError {
		if !out[len(out)-1].IsNil() {
			return out
		}
		results = out[:len(out)-1]
	}

	var value any
	if len(results) == 1 {
		value = results[0].Interface()
	} else {
		tuple := make(schema.Tuple, len(results))
		for i, r := range results {
			tuple[i] = r.Interface()
		}
		value = tuple
	}
	if err := w.contract.CheckReturn(ctx, value); err != nil {
		return w.fail(out, err)
	}
	return out
}

// fail delivers err through the trailing error result, or panics when
// there is none. out is nil when fn was never called.
func (w *wrapper) fail(out []reflect.Value, err error) []reflect.Value {
	if !w.returnsError {
		panic(err)
	}
	results := make([]reflect.Value, w.ft.NumOut())
	for i := range results {
		if out != nil {
			results[i] = out[i]
		} else {
			results[i] = reflect.Zero(w.ft.Out(i))
		}
	}
	results[len(results)-1] = reflect.ValueOf(&err).Elem()
	return results
}

func funcName(fv reflect.Value) string {
	if f := runtime.FuncForPC(fv.Pointer()); f != nil {
		return f.Name()
	}
	return ""
}
