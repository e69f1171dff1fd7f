package vm_test

import (
	"testing"

	"github.com/uqbar-project/wollok-go/model"
	"github.com/uqbar-project/wollok-go/vm"
)

// ---------------------------------------------------------------------------
// Garbage collection
// ---------------------------------------------------------------------------

func gcFixture() *model.Package {
	items := &model.Literal{Value: &model.CollectionLiteral{
		Fqn:      model.ListFqn,
		Elements: []model.Node{num(10), num(20)},
	}}
	scratch := &model.Literal{Value: &model.CollectionLiteral{
		Fqn:      model.ListFqn,
		Elements: []model.Node{num(1), num(2), num(3)},
	}}
	return pkg("p",
		object("keeper",
			field("items", items),
			exprMethod("items", ref("items")),
			exprMethod("scratch", scratch),
		),
	)
}

func TestGarbageCollectKeepsReachableInstances(t *testing.T) {
	e := newEvaluation(t, gcFixture())
	keeper := singletonRef(t, e, "p.keeper")

	e.GarbageCollect()

	if e.Instance(vm.NullRef) == nil || e.Instance(vm.TrueRef) == nil || e.Instance(vm.FalseRef) == nil {
		t.Error("interned primitives bound in the root context must survive")
	}
	if e.Instance(keeper) == nil {
		t.Error("named singletons must survive")
	}
	// the field list and its elements are reachable through the singleton
	items, err := e.SendMessage("items", keeper)
	if err != nil {
		t.Fatal(err)
	}
	elements, ok := e.Instance(items).InnerElements()
	if !ok || len(elements) != 2 {
		t.Fatalf("field list should survive with its elements, got %v", elements)
	}
	for _, el := range elements {
		if e.Instance(el) == nil {
			t.Error("list elements must be traced through the inner value")
		}
	}
}

func TestGarbageCollectSweepsUnreachableInstances(t *testing.T) {
	e := newEvaluation(t, gcFixture())
	keeper := singletonRef(t, e, "p.keeper")

	scratch, err := e.SendMessage("scratch", keeper)
	if err != nil {
		t.Fatal(err)
	}
	if e.Instance(scratch) == nil {
		t.Fatal("the scratch list should exist right after the send")
	}

	collected := e.GarbageCollect()
	if collected == 0 {
		t.Error("the scratch list should have been collected")
	}
	if e.Instance(scratch) != nil {
		t.Error("a list no frame or context references must be swept")
	}
}

func TestInterningStableAcrossCollection(t *testing.T) {
	e := newEvaluation(t, gcFixture())

	before := e.Number(3.5)
	e.GarbageCollect()
	after := e.Number(3.5)
	if before != after {
		t.Error("interning must assign the same id before and after a collection")
	}
	if e.Instance(after) == nil {
		t.Error("re-interned number should be back in the instance table")
	}
}
