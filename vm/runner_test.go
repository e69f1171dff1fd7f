package vm_test

import (
	"testing"

	"github.com/uqbar-project/wollok-go/model"
)

// ---------------------------------------------------------------------------
// Programs and tests
// ---------------------------------------------------------------------------

func TestRunProgram(t *testing.T) {
	e := newEvaluation(t, pkg("p",
		object("state",
			field("done", &model.Literal{Value: false}),
			method("finish", assign("done", &model.Literal{Value: true})),
			exprMethod("done", ref("done")),
		),
		&model.Program{Name: "main", Body: &model.Body{Sentences: []model.Node{
			send(ref("state"), "finish"),
		}}},
	))

	if err := e.RunProgram("p.main"); err != nil {
		t.Fatalf("program failed: %v", err)
	}
	done, err := e.SendMessage("done", singletonRef(t, e, "p.state"))
	if err != nil {
		t.Fatal(err)
	}
	if string(done) != "true" {
		t.Error("the program should have flipped the flag")
	}
}

func TestRunProgramMissing(t *testing.T) {
	e := newEvaluation(t)
	if err := e.RunProgram("p.absent"); err == nil {
		t.Error("running an unknown program should fail")
	}
}

func TestRunTestsReportsResults(t *testing.T) {
	e := newEvaluation(t, pkg("p",
		&model.Test{Name: "passes", Body: &model.Body{Sentences: []model.Node{
			send(ref("assert"), "equals", num(2), send(num(1), "+", num(1))),
		}}},
		&model.Test{Name: "fails", Body: &model.Body{Sentences: []model.Node{
			send(ref("assert"), "that", &model.Literal{Value: false}),
		}}},
	))

	results := e.RunTests()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Passed {
		t.Errorf("first test should pass, got %v", results[0].Err)
	}
	if results[1].Passed {
		t.Error("second test should fail")
	}
}

func TestRunTestsIsolation(t *testing.T) {
	// both tests mutate the same singleton; isolation means both observe the
	// pristine bootstrap state
	check := func(name string) *model.Test {
		return &model.Test{Name: name, Body: &model.Body{Sentences: []model.Node{
			send(ref("assert"), "equals", num(0), send(ref("counter"), "current")),
			send(ref("counter"), "inc"),
			send(ref("assert"), "equals", num(1), send(ref("counter"), "current")),
		}}}
	}
	e := newEvaluation(t, pkg("p",
		object("counter",
			field("count", num(0)),
			method("inc", assign("count", send(ref("count"), "+", num(1)))),
			exprMethod("current", ref("count")),
		),
		&model.Describe{Name: "counting", Members: []model.Node{
			check("first"), check("second"),
		}},
	))

	for _, result := range e.RunTests() {
		if !result.Passed {
			t.Errorf("%s should pass in isolation, got %v", result.Fqn, result.Err)
		}
	}
}

func TestAssertThrowsException(t *testing.T) {
	boom := model.NewClosure(nil, &model.Body{Sentences: []model.Node{
		&model.Throw{Exception: &model.New{
			Instantiated: ref("Exception"),
			Args:         []model.Node{str("boom")},
		}},
	}})
	calm := model.NewClosure(nil, &model.Body{Sentences: []model.Node{num(1)}})

	e := newEvaluation(t, pkg("p",
		&model.Test{Name: "raises", Body: &model.Body{Sentences: []model.Node{
			send(ref("assert"), "throwsException", boom),
		}}},
		&model.Test{Name: "does not raise", Body: &model.Body{Sentences: []model.Node{
			send(ref("assert"), "throwsException", calm),
		}}},
	))

	results := e.RunTests()
	if !results[0].Passed {
		t.Errorf("throwsException over a throwing closure should pass: %v", results[0].Err)
	}
	if results[1].Passed {
		t.Error("throwsException over a quiet closure should fail")
	}
}
