package vm_test

import (
	"errors"
	"testing"

	"github.com/uqbar-project/wollok-go/model"
	"github.com/uqbar-project/wollok-go/vm"
)

// ---------------------------------------------------------------------------
// Try / catch / always
// ---------------------------------------------------------------------------

// exceptionFixture: a user exception hierarchy and a singleton exercising the
// unwinding paths.
func exceptionFixture() *model.Package {
	tryCatch := func(body model.Node, catchType string) *model.Try {
		return &model.Try{
			Body: &model.Body{Sentences: []model.Node{body}},
			Catches: []*model.Catch{{
				Parameter:     &model.Parameter{Name: "e"},
				ParameterType: ref(catchType),
				Body:          &model.Body{Sentences: []model.Node{num(1)}},
			}},
			Always: &model.Body{Sentences: []model.Node{assign("alwaysRan", &model.Literal{Value: true})}},
		}
	}
	throwE := &model.Throw{Exception: &model.New{Instantiated: ref("E")}}

	return pkg("p",
		&model.Class{Name: "E", Supers: []*model.ParameterizedType{{Ref: ref("Exception")}}},
		&model.Class{Name: "E2", Supers: []*model.ParameterizedType{{Ref: ref("E")}}},
		object("o",
			field("alwaysRan", &model.Literal{Value: false}),
			exprMethod("alwaysRan", ref("alwaysRan")),
			exprMethod("caught", tryCatch(throwE, "E")),
			exprMethod("noThrow", tryCatch(num(42), "E")),
			exprMethod("subtypeCaught", tryCatch(&model.Throw{Exception: &model.New{Instantiated: ref("E2")}}, "E")),
			exprMethod("uncaughtType", tryCatch(&model.Throw{Exception: &model.New{
				Instantiated: ref("Exception"),
				Args:         []model.Node{str("boom")},
			}}, "E2")),
			method("raw", throwE),
			exprMethod("nested", tryCatch(send(&model.Self{}, "raw"), "E")),
		),
	)
}

func TestTryCatchAlways(t *testing.T) {
	e := newEvaluation(t, exceptionFixture())
	o := singletonRef(t, e, "p.o")

	result, err := e.SendMessage("caught", o)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 1)

	ran, err := e.SendMessage("alwaysRan", o)
	if err != nil {
		t.Fatal(err)
	}
	if ran != vm.TrueRef {
		t.Error("the always clause should have run")
	}
}

func TestTryWithoutThrowSkipsCatch(t *testing.T) {
	e := newEvaluation(t, exceptionFixture())
	o := singletonRef(t, e, "p.o")

	result, err := e.SendMessage("noThrow", o)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 42)

	ran, err := e.SendMessage("alwaysRan", o)
	if err != nil {
		t.Fatal(err)
	}
	if ran != vm.TrueRef {
		t.Error("the always clause runs even without an exception")
	}
}

func TestCatchMatchesSubtypes(t *testing.T) {
	e := newEvaluation(t, exceptionFixture())
	o := singletonRef(t, e, "p.o")

	result, err := e.SendMessage("subtypeCaught", o)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 1)
}

func TestUnmatchedCatchReRaisesAfterAlways(t *testing.T) {
	e := newEvaluation(t, exceptionFixture())
	o := singletonRef(t, e, "p.o")

	_, err := e.SendMessage("uncaughtType", o)
	var werr *vm.WollokError
	if !errors.As(err, &werr) {
		t.Fatalf("expected the exception to propagate, got %v", err)
	}
	if werr.ModuleFqn != model.ExceptionFqn {
		t.Errorf("propagated exception should be the thrown one, got %s", werr.ModuleFqn)
	}
	if werr.Message != "boom" {
		t.Errorf("exception message should survive unwinding, got %q", werr.Message)
	}
}

func TestUnwindingCrossesFrames(t *testing.T) {
	e := newEvaluation(t, exceptionFixture())
	o := singletonRef(t, e, "p.o")

	// raw throws in a callee frame; nested catches it one frame up
	result, err := e.SendMessage("nested", o)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, e, result, 1)
}

func TestUncaughtExceptionPropagatesOutOfSendMessage(t *testing.T) {
	e := newEvaluation(t, exceptionFixture())
	o := singletonRef(t, e, "p.o")

	_, err := e.SendMessage("raw", o)
	var werr *vm.WollokError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *WollokError, got %v", err)
	}
	if werr.ModuleFqn != "p.E" {
		t.Errorf("uncaught exception should carry its module, got %s", werr.ModuleFqn)
	}
	if e.FrameDepth() != 0 {
		t.Errorf("frames should be fully unwound, depth is %d", e.FrameDepth())
	}
}

// ---------------------------------------------------------------------------
// Stack bounds
// ---------------------------------------------------------------------------

func stackFixture() *model.Package {
	return pkg("p",
		object("o",
			exprMethod("loop", send(&model.Self{}, "loop")),
			exprMethod("safe", &model.Try{
				Body: &model.Body{Sentences: []model.Node{send(&model.Self{}, "loop")}},
				Catches: []*model.Catch{{
					Parameter:     &model.Parameter{Name: "e"},
					ParameterType: ref("StackOverflowException"),
					Body:          &model.Body{Sentences: []model.Node{str("caught")}},
				}},
			}),
		),
	)
}

func TestStackOverflowIsFatalWhenUncaught(t *testing.T) {
	cfg := vm.DefaultConfig()
	cfg.MaxFrameStackSize = 64
	e := newEvaluationWith(t, cfg, stackFixture())
	o := singletonRef(t, e, "p.o")

	_, err := e.SendMessage("loop", o)
	var werr *vm.WollokError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *WollokError, got %v", err)
	}
	if werr.ModuleFqn != model.StackOverflowExceptionFqn {
		t.Errorf("expected StackOverflowException, got %s", werr.ModuleFqn)
	}
}

func TestStackOverflowIsCatchable(t *testing.T) {
	cfg := vm.DefaultConfig()
	cfg.MaxFrameStackSize = 64
	e := newEvaluationWith(t, cfg, stackFixture())
	o := singletonRef(t, e, "p.o")

	result, err := e.SendMessage("safe", o)
	if err != nil {
		t.Fatal(err)
	}
	wantString(t, e, result, "caught")
}
