package vm_test

import (
	"testing"

	"github.com/uqbar-project/wollok-go/model"
	"github.com/uqbar-project/wollok-go/vm"
)

// ---------------------------------------------------------------------------
// Closures
// ---------------------------------------------------------------------------

func TestClosureCapturesCreationContext(t *testing.T) {
	adder := model.NewClosure(
		[]*model.Parameter{{Name: "x"}},
		&model.Body{Sentences: []model.Node{send(ref("n"), "+", ref("x"))}},
	)
	e := newEvaluation(t, pkg("p",
		object("o",
			&model.Method{Name: "makeAdder", Parameters: []*model.Parameter{{Name: "n"}},
				Body: &model.Body{Sentences: []model.Node{adder}}, IsExpression: true},
		),
	))
	o := singletonRef(t, e, "p.o")

	closure, err := e.SendMessage("makeAdder", o, e.Number(10))
	if err != nil {
		t.Fatal(err)
	}
	result, err := e.SendMessage(model.ClosureApplyMethod, closure, e.Number(5))
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 15)

	// a second closure captures its own n
	other, err := e.SendMessage("makeAdder", o, e.Number(100))
	if err != nil {
		t.Fatal(err)
	}
	result, err = e.SendMessage(model.ClosureApplyMethod, other, e.Number(5))
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 105)
}

func TestClosureSeesMutatedLocal(t *testing.T) {
	// capture is by reference to the enclosing context, not a snapshot
	reader := model.NewClosure(nil, &model.Body{Sentences: []model.Node{ref("v")}})
	e := newEvaluation(t, pkg("p",
		object("o",
			method("run",
				&model.Variable{Name: "v", Value: num(1)},
				&model.Variable{Name: "c", Value: reader},
				assign("v", num(2)),
				&model.Return{Value: send(ref("c"), model.ClosureApplyMethod)},
			),
		),
	))
	o := singletonRef(t, e, "p.o")
	result, err := e.SendMessage("run", o)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 2)
}

// ---------------------------------------------------------------------------
// Lazy globals
// ---------------------------------------------------------------------------

func TestLazyGlobalInitialization(t *testing.T) {
	p := pkg("p",
		&model.Variable{Name: "g", Value: num(42)},
		&model.Variable{Name: "h", Value: send(ref("g"), "+", num(1))},
		object("o", exprMethod("val", ref("h"))),
	)
	e := newEvaluation(t, p)
	o := singletonRef(t, e, "p.o")

	result, err := e.SendMessage("val", o)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 43)

	// the thunk is self-replacing: the global now holds the resolved value
	ref, ok := e.RootContext().Get("p.h")
	if !ok {
		t.Fatal("global p.h should stay bound")
	}
	wantNumber(t, e, ref, 43)
}

// ---------------------------------------------------------------------------
// Collections
// ---------------------------------------------------------------------------

func TestListLiteral(t *testing.T) {
	list := &model.Literal{Value: &model.CollectionLiteral{
		Fqn:      model.ListFqn,
		Elements: []model.Node{num(1), num(2), num(3)},
	}}
	e := newEvaluation(t, pkg("p",
		object("o",
			exprMethod("nums", list),
			exprMethod("total", send(send(&model.Self{}, "nums"), "size")),
		),
	))
	o := singletonRef(t, e, "p.o")

	result, err := e.SendMessage("total", o)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 3)

	nums, err := e.SendMessage("nums", o)
	if err != nil {
		t.Fatal(err)
	}
	contains, err := e.SendMessage("contains", nums, e.Number(2))
	if err != nil {
		t.Fatal(err)
	}
	if contains != vm.TrueRef {
		t.Error("list should contain 2")
	}
}

func TestSetLiteralDeduplicates(t *testing.T) {
	set := &model.Literal{Value: &model.CollectionLiteral{
		Fqn:      model.SetFqn,
		Elements: []model.Node{num(1), num(1), num(2)},
	}}
	e := newEvaluation(t, pkg("p", object("o", exprMethod("uniq", send(set, "size")))))
	o := singletonRef(t, e, "p.o")

	result, err := e.SendMessage("uniq", o)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 2)
}

func TestListForEach(t *testing.T) {
	list := &model.Literal{Value: &model.CollectionLiteral{
		Fqn:      model.ListFqn,
		Elements: []model.Node{num(1), num(2), num(3)},
	}}
	accumulate := model.NewClosure(
		[]*model.Parameter{{Name: "x"}},
		&model.Body{Sentences: []model.Node{assign("total", send(ref("total"), "+", ref("x")))}},
	)
	e := newEvaluation(t, pkg("p",
		object("o",
			field("total", num(0)),
			method("sumAll", send(list, "forEach", accumulate)),
			exprMethod("total", ref("total")),
		),
	))
	o := singletonRef(t, e, "p.o")

	if _, err := e.SendMessage("sumAll", o); err != nil {
		t.Fatal(err)
	}
	result, err := e.SendMessage("total", o)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 6)
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNamedInitialization(t *testing.T) {
	point := &model.Class{Name: "Point", Members: []model.Node{
		field("x", num(0)),
		field("y", num(0)),
		exprMethod("sum", send(ref("x"), "+", ref("y"))),
	}}
	e := newEvaluation(t, pkg("p",
		point,
		object("factory",
			exprMethod("full", send(&model.New{
				Instantiated: ref("Point"),
				NamedArgs: []*model.NamedArgument{
					{Name: "x", Value: num(1)},
					{Name: "y", Value: num(2)},
				},
			}, "sum")),
			exprMethod("partial", send(&model.New{
				Instantiated: ref("Point"),
				NamedArgs:    []*model.NamedArgument{{Name: "x", Value: num(7)}},
			}, "sum")),
		),
	))
	factory := singletonRef(t, e, "p.factory")

	result, err := e.SendMessage("full", factory)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 3)

	// y falls back to its field initializer
	result, err = e.SendMessage("partial", factory)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 7)
}

func TestFieldInitializersRunAncestorsFirst(t *testing.T) {
	// B's initializer reads A's field, so A's must already have run
	base := &model.Class{Name: "A", Members: []model.Node{
		field("base", num(10)),
	}}
	derived := &model.Class{Name: "B",
		Supers: []*model.ParameterizedType{{Ref: ref("A")}},
		Members: []model.Node{
			field("derived", send(ref("base"), "+", num(1))),
			exprMethod("derived", ref("derived")),
		}}
	e := newEvaluation(t, pkg("p",
		base,
		derived,
		object("factory",
			exprMethod("make", send(&model.New{Instantiated: ref("B")}, "derived")),
		),
	))
	factory := singletonRef(t, e, "p.factory")

	result, err := e.SendMessage("make", factory)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 11)
}

func TestConstructorRuns(t *testing.T) {
	cls := &model.Class{Name: "P", Members: []model.Node{
		field("v", num(0)),
		&model.Constructor{
			Parameters: []*model.Parameter{{Name: "a"}},
			Body:       &model.Body{Sentences: []model.Node{assign("v", ref("a"))}},
		},
		exprMethod("val", ref("v")),
	}}
	e := newEvaluation(t, pkg("p",
		cls,
		object("factory",
			exprMethod("make", send(&model.New{
				Instantiated: ref("P"),
				Args:         []model.Node{num(5)},
			}, "val")),
		),
	))
	factory := singletonRef(t, e, "p.factory")

	result, err := e.SendMessage("make", factory)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 5)
}

func TestMissingConstructorRaises(t *testing.T) {
	e := newEvaluation(t, pkg("p",
		&model.Class{Name: "P"},
		object("factory",
			exprMethod("make", &model.New{Instantiated: ref("P"), Args: []model.Node{num(1), num(2)}}),
		),
	))
	factory := singletonRef(t, e, "p.factory")

	_, err := e.SendMessage("make", factory)
	if err == nil {
		t.Fatal("instantiating with a missing constructor arity should fail")
	}
}

func TestSingletonSelfInitializesOnBootstrap(t *testing.T) {
	e := newEvaluation(t, pkg("p",
		object("config",
			field("level", send(num(2), "+", num(3))),
			exprMethod("level", ref("level")),
		),
	))
	config := singletonRef(t, e, "p.config")
	result, err := e.SendMessage("level", config)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 5)
}

func TestSingletonSupercallArguments(t *testing.T) {
	base := &model.Class{Name: "Named", Members: []model.Node{
		field("name", &model.Literal{}),
		&model.Constructor{
			Parameters: []*model.Parameter{{Name: "n"}},
			Body:       &model.Body{Sentences: []model.Node{assign("name", ref("n"))}},
		},
		exprMethod("name", ref("name")),
	}}
	e := newEvaluation(t, pkg("p",
		base,
		&model.Singleton{Name: "thing", Supers: []*model.ParameterizedType{{
			Ref:  ref("Named"),
			Args: []model.Node{str("thing one")},
		}}},
	))
	thing := singletonRef(t, e, "p.thing")
	result, err := e.SendMessage("name", thing)
	if err != nil {
		t.Fatal(err)
	}
	wantString(t, e, result, "thing one")
}

// ---------------------------------------------------------------------------
// Copy
// ---------------------------------------------------------------------------

func TestCopyIsolatesState(t *testing.T) {
	e := newEvaluation(t, pkg("p",
		object("counter",
			field("count", num(0)),
			method("inc", assign("count", send(ref("count"), "+", num(1)))),
			exprMethod("current", ref("count")),
		),
	))
	counter := singletonRef(t, e, "p.counter")

	snapshot := e.Copy()
	if _, err := e.SendMessage("inc", counter); err != nil {
		t.Fatal(err)
	}

	original, err := e.SendMessage("current", counter)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, original, 1)

	copied, err := snapshot.SendMessage("current", counter)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, snapshot, copied, 0)
}
