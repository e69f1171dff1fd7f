// Package natives provides the default native-function table for the wollok
// core modules. Each native follows the VM contract: receive (self, args),
// leave exactly one value on the current operand stack, or raise.
package natives

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/uqbar-project/wollok-go/model"
	"github.com/uqbar-project/wollok-go/vm"
)

const assertionExceptionFqn = "wollok.lib.AssertionException"

// Table returns the native table covering the stdlib package tree. The map
// is fresh on every call so embedders can override entries.
func Table() map[string]vm.Native {
	t := map[string]vm.Native{}

	// --- Object -----------------------------------------------------------
	t[model.ObjectFqn+".=="] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		return e.PushOperand(e.Boolean(self == args[0]))
	}
	t[model.ObjectFqn+".!="] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		return e.PushOperand(e.Boolean(self != args[0]))
	}
	t[model.ObjectFqn+".identity"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		return e.PushOperand(e.String(string(self)))
	}
	t[model.ObjectFqn+".toString"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		return e.PushOperand(e.String(Render(e, self)))
	}

	// --- Boolean ----------------------------------------------------------
	t[model.BooleanFqn+".&&"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		return e.PushOperand(e.Boolean(self == vm.TrueRef && args[0] == vm.TrueRef))
	}
	t[model.BooleanFqn+".||"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		return e.PushOperand(e.Boolean(self == vm.TrueRef || args[0] == vm.TrueRef))
	}
	t[model.BooleanFqn+".negate"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		return e.PushOperand(e.Boolean(self == vm.FalseRef))
	}
	t[model.BooleanFqn+".toString"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		return e.PushOperand(e.String(string(self)))
	}

	// --- Number -----------------------------------------------------------
	arith := func(name string, op func(a, b float64) (float64, error)) {
		t[model.NumberFqn+"."+name] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
			a, b, err := numberOperands(e, self, args[0], name)
			if err != nil {
				return err
			}
			result, err := op(a, b)
			if err != nil {
				return err
			}
			return e.PushOperand(e.Number(result))
		}
	}
	arith("+", func(a, b float64) (float64, error) { return a + b, nil })
	arith("-", func(a, b float64) (float64, error) { return a - b, nil })
	arith("*", func(a, b float64) (float64, error) { return a * b, nil })
	t[model.NumberFqn+"./"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		a, b, err := numberOperands(e, self, args[0], "/")
		if err != nil {
			return err
		}
		if b == 0 {
			return e.ThrowError(model.EvaluationErrorFqn, "division by zero")
		}
		return e.PushOperand(e.Number(a / b))
	}
	compare := func(name string, op func(a, b float64) bool) {
		t[model.NumberFqn+"."+name] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
			a, b, err := numberOperands(e, self, args[0], name)
			if err != nil {
				return err
			}
			return e.PushOperand(e.Boolean(op(a, b)))
		}
	}
	compare(">", func(a, b float64) bool { return a > b })
	compare("<", func(a, b float64) bool { return a < b })
	compare(">=", func(a, b float64) bool { return a >= b })
	compare("<=", func(a, b float64) bool { return a <= b })
	t[model.NumberFqn+".toString"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		return e.PushOperand(e.String(Render(e, self)))
	}

	// --- String -----------------------------------------------------------
	t[model.StringFqn+".+"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		s, ok := e.Instance(self).InnerString()
		if !ok {
			return fmt.Errorf("String.+ on non-string receiver")
		}
		return e.PushOperand(e.String(s + Render(e, args[0])))
	}
	t[model.StringFqn+".length"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		s, _ := e.Instance(self).InnerString()
		return e.PushOperand(e.Number(float64(len(s))))
	}
	t[model.StringFqn+".toString"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		return e.PushOperand(self)
	}

	// --- List -------------------------------------------------------------
	t[model.ListFqn+".add"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		obj := e.Instance(self)
		elements, _ := obj.InnerElements()
		obj.Inner = append(elements, args[0])
		return e.PushOperand(vm.NullRef)
	}
	t[model.ListFqn+".size"] = collectionSize
	t[model.ListFqn+".contains"] = collectionContains
	t[model.ListFqn+".get"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		elements, _ := e.Instance(self).InnerElements()
		index, ok := e.Instance(args[0]).InnerNumber()
		if !ok {
			return e.ThrowError(model.EvaluationErrorFqn, "List.get expects a numeric index")
		}
		i := int(index)
		if i < 0 || i >= len(elements) {
			return e.ThrowError(model.EvaluationErrorFqn, "index %d out of bounds (size %d)", i, len(elements))
		}
		return e.PushOperand(elements[i])
	}
	t[model.ListFqn+".forEach"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		elements, _ := e.Instance(self).InnerElements()
		for _, el := range elements {
			if _, err := e.SendMessage(model.ClosureApplyMethod, args[0], el); err != nil {
				return err
			}
		}
		return e.PushOperand(vm.NullRef)
	}

	// --- Set --------------------------------------------------------------
	t[model.SetFqn+".add"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		obj := e.Instance(self)
		elements, _ := obj.InnerElements()
		for _, el := range elements {
			if el == args[0] {
				return e.PushOperand(vm.NullRef)
			}
		}
		obj.Inner = append(elements, args[0])
		return e.PushOperand(vm.NullRef)
	}
	t[model.SetFqn+".size"] = collectionSize
	t[model.SetFqn+".contains"] = collectionContains

	// --- Closure ----------------------------------------------------------
	t[model.ClosureFqn+".toString"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		return e.PushOperand(e.String("a Closure"))
	}

	// --- console ----------------------------------------------------------
	t["wollok.lib.console.println"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		fmt.Println(Render(e, args[0]))
		return e.PushOperand(vm.NullRef)
	}

	// --- assert -----------------------------------------------------------
	t["wollok.lib.assert.that"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		if args[0] != vm.TrueRef {
			return e.ThrowError(assertionExceptionFqn, "expected true but got %s", Render(e, args[0]))
		}
		return e.PushOperand(vm.NullRef)
	}
	t["wollok.lib.assert.notThat"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		if args[0] != vm.FalseRef {
			return e.ThrowError(assertionExceptionFqn, "expected false but got %s", Render(e, args[0]))
		}
		return e.PushOperand(vm.NullRef)
	}
	t["wollok.lib.assert.equals"] = func(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
		if args[0] != args[1] {
			return e.ThrowError(assertionExceptionFqn, "expected %s but got %s", Render(e, args[0]), Render(e, args[1]))
		}
		return e.PushOperand(vm.NullRef)
	}

	return t
}

func collectionSize(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
	elements, _ := e.Instance(self).InnerElements()
	return e.PushOperand(e.Number(float64(len(elements))))
}

func collectionContains(e *vm.Evaluation, self vm.Ref, args []vm.Ref) error {
	elements, _ := e.Instance(self).InnerElements()
	for _, el := range elements {
		if el == args[0] {
			return e.PushOperand(vm.TrueRef)
		}
	}
	return e.PushOperand(vm.FalseRef)
}

func numberOperands(e *vm.Evaluation, self, other vm.Ref, op string) (float64, float64, error) {
	a, ok := e.Instance(self).InnerNumber()
	if !ok {
		return 0, 0, fmt.Errorf("Number.%s on non-numeric receiver", op)
	}
	otherObj := e.Instance(other)
	if otherObj == nil {
		return 0, 0, e.ThrowError(model.EvaluationErrorFqn, "Number.%s expects a number", op)
	}
	b, ok := otherObj.InnerNumber()
	if !ok {
		return 0, 0, e.ThrowError(model.EvaluationErrorFqn, "Number.%s expects a number, got %s", op, otherObj.ModuleFqn)
	}
	return a, b, nil
}

// Render formats an instance for messages and console output.
func Render(e *vm.Evaluation, ref vm.Ref) string {
	if ref == vm.Undefined {
		return "undefined"
	}
	obj := e.Instance(ref)
	if obj == nil {
		return string(ref)
	}
	switch inner := obj.Inner.(type) {
	case string:
		return inner
	case float64:
		return strconv.FormatFloat(inner, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(inner)
	case []vm.Ref:
		parts := make([]string, len(inner))
		for i, el := range inner {
			parts[i] = Render(e, el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if ref == vm.NullRef {
		return "null"
	}
	fqn := obj.ModuleFqn
	if dot := strings.LastIndex(fqn, "."); dot >= 0 {
		fqn = fqn[dot+1:]
	}
	return "a " + fqn
}
