// Package stdlib builds the wollok core package tree every Environment must
// contain. The full standard-library source is out of scope; this is the
// bootstrap hierarchy (wollok.lang, wollok.lib), built programmatically the
// way the rest of the system builds parse-shaped trees.
package stdlib

import (
	"github.com/uqbar-project/wollok-go/model"
)

// Base returns a fresh environment holding the wollok root package, suitable
// as the base of a link.
func Base() *model.Environment {
	return model.NewEnvironment(&model.Package{Members: []model.Node{Root()}})
}

// Root builds the wollok package tree. Every call returns a fresh tree, so
// callers may link it repeatedly.
func Root() *model.Package {
	return &model.Package{
		Name:    "wollok",
		Members: []model.Node{langPackage(), libPackage()},
	}
}

func langPackage() *model.Package {
	return &model.Package{
		Name: "lang",
		Members: []model.Node{
			&model.Class{
				Name: "Object",
				Members: []model.Node{
					nativeMethod("==", "other"),
					nativeMethod("!=", "other"),
					nativeMethod("identity"),
					nativeMethod("toString"),
				},
			},
			class("Exception",
				field("message", nil),
				&model.Constructor{
					Parameters: params("m"),
					Body: body(
						&model.Assignment{Variable: ref("message"), Value: ref("m")},
					),
				},
				expressionMethod("getMessage", nil, ref("message")),
			),
			classExtending("EvaluationError", "Exception"),
			classExtending("StackOverflowException", "Exception"),
			class("Boolean",
				nativeMethod("&&", "other"),
				nativeMethod("||", "other"),
				nativeMethod("negate"),
				nativeMethod("toString"),
			),
			class("Number",
				nativeMethod("+", "other"),
				nativeMethod("-", "other"),
				nativeMethod("*", "other"),
				nativeMethod("/", "other"),
				nativeMethod(">", "other"),
				nativeMethod("<", "other"),
				nativeMethod(">=", "other"),
				nativeMethod("<=", "other"),
				nativeMethod("toString"),
			),
			class("String",
				nativeMethod("+", "other"),
				nativeMethod("length"),
				nativeMethod("toString"),
			),
			class("List",
				nativeMethod("add", "element"),
				nativeMethod("size"),
				nativeMethod("get", "index"),
				nativeMethod("contains", "element"),
				nativeMethod("forEach", "action"),
			),
			class("Set",
				nativeMethod("add", "element"),
				nativeMethod("size"),
				nativeMethod("contains", "element"),
			),
			class("Closure",
				nativeMethod("toString"),
			),
		},
	}
}

func libPackage() *model.Package {
	return &model.Package{
		Name: "lib",
		Members: []model.Node{
			classExtending("AssertionException", "Exception"),
			&model.Singleton{
				Name: "console",
				Members: []model.Node{
					nativeMethod("println", "obj"),
				},
			},
			&model.Singleton{
				Name: "assert",
				Members: []model.Node{
					nativeMethod("that", "value"),
					nativeMethod("notThat", "value"),
					nativeMethod("equals", "expected", "actual"),
					throwsExceptionMethod(),
				},
			},
		},
	}
}

// throwsExceptionMethod asserts that applying a closure raises. It is wollok
// code rather than a native so the raise unwinds through the regular handler
// machinery.
//
//	method throwsException(block) {
//	  var raised = false
//	  try { block.apply() } catch e { raised = true }
//	  if (raised.negate()) throw new AssertionException(...)
//	}
func throwsExceptionMethod() *model.Method {
	return &model.Method{
		Name:       "throwsException",
		Parameters: params("block"),
		Body: body(
			&model.Variable{Name: "raised", Value: &model.Literal{Value: false}},
			&model.Try{
				Body: body(&model.Send{Receiver: ref("block"), Message: model.ClosureApplyMethod}),
				Catches: []*model.Catch{{
					Parameter: &model.Parameter{Name: "e"},
					Body:      body(&model.Assignment{Variable: ref("raised"), Value: &model.Literal{Value: true}}),
				}},
			},
			&model.If{
				Condition: &model.Send{Receiver: ref("raised"), Message: "negate"},
				Then: body(&model.Throw{Exception: &model.New{
					Instantiated: ref("AssertionException"),
					NamedArgs: []*model.NamedArgument{{
						Name:  "message",
						Value: &model.Literal{Value: "expected an exception but none was raised"},
					}},
				}}),
			},
		),
	}
}

// ---------------------------------------------------------------------------
// Tree-building helpers
// ---------------------------------------------------------------------------

func class(name string, members ...model.Node) *model.Class {
	return classExtending(name, "Object", members...)
}

func classExtending(name, super string, members ...model.Node) *model.Class {
	return &model.Class{
		Name:    name,
		Supers:  []*model.ParameterizedType{{Ref: ref(super)}},
		Members: members,
	}
}

func field(name string, value model.Node) *model.Field {
	return &model.Field{Name: name, Value: value}
}

func nativeMethod(name string, paramNames ...string) *model.Method {
	return &model.Method{Name: name, Parameters: params(paramNames...), IsNative: true}
}

func expressionMethod(name string, paramNames []string, expr model.Node) *model.Method {
	return &model.Method{
		Name:         name,
		Parameters:   params(paramNames...),
		Body:         body(expr),
		IsExpression: true,
	}
}

func params(names ...string) []*model.Parameter {
	out := make([]*model.Parameter, len(names))
	for i, n := range names {
		out[i] = &model.Parameter{Name: n}
	}
	return out
}

func body(sentences ...model.Node) *model.Body {
	return &model.Body{Sentences: sentences}
}

func ref(name string) *model.Reference {
	return &model.Reference{Name: name}
}
