package vm

import (
	"math"
	"strconv"

	"github.com/uqbar-project/wollok-go/model"
)

// ---------------------------------------------------------------------------
// Instance references
// ---------------------------------------------------------------------------

// Ref identifies a runtime instance in the evaluation's instance table. The
// empty Ref is "undefined": the absence of a value, distinct from null.
type Ref string

// Interned primitives use fixed ids.
const (
	Undefined Ref = ""
	NullRef   Ref = "null"
	TrueRef   Ref = "true"
	FalseRef  Ref = "false"
)

// numberRef derives the interned id of a number from its string form rounded
// to the evaluation's decimal precision. Negative zero normalizes to zero.
func numberRef(value float64, precision int) Ref {
	shift := math.Pow(10, float64(precision))
	rounded := math.Round(value*shift) / shift
	if rounded == 0 {
		rounded = 0 // drops -0
	}
	return Ref("N!" + strconv.FormatFloat(rounded, 'f', -1, 64))
}

// stringRef derives the interned id of a string from its value.
func stringRef(value string) Ref {
	return Ref("S!" + value)
}

// ---------------------------------------------------------------------------
// RuntimeObject
// ---------------------------------------------------------------------------

// Object is a runtime instance: a context (its fields, chained to the context
// it was created in) plus its module and an optional inner value. List and
// set instances hold element Refs in Inner; numbers and strings hold their
// Go value; native handles are opaque to the VM.
type Object struct {
	Id        Ref
	ModuleFqn string
	Ctx       *Context
	Inner     any

	// lazy, when set, makes the instance a self-replacing initializer thunk:
	// LOAD evaluates the expression and stores the result back.
	lazy *lazyInitializer
}

type lazyInitializer struct {
	expr    model.Node
	context *Context
}

// IsLazy reports whether the instance is an unevaluated initializer thunk.
func (o *Object) IsLazy() bool { return o.lazy != nil }

// InnerNumber returns the numeric inner value.
func (o *Object) InnerNumber() (float64, bool) {
	v, ok := o.Inner.(float64)
	return v, ok
}

// InnerString returns the string inner value.
func (o *Object) InnerString() (string, bool) {
	v, ok := o.Inner.(string)
	return v, ok
}

// InnerElements returns the element list of a list/set instance.
func (o *Object) InnerElements() ([]Ref, bool) {
	v, ok := o.Inner.([]Ref)
	return v, ok
}
