package vm

import (
	"testing"

	"github.com/uqbar-project/wollok-go/linker"
	"github.com/uqbar-project/wollok-go/model"
)

// ---------------------------------------------------------------------------
// Lowering tests
// ---------------------------------------------------------------------------

// compileMethod links package p (class C holding the method, plus an empty
// class E) and compiles the method.
func compileMethod(t *testing.T, m *model.Method, extra ...model.Node) []Instruction {
	t.Helper()
	members := append([]model.Node{m}, extra...)
	env, err := linker.Link(nil, &model.Package{Name: "p", Members: []model.Node{
		&model.Class{Name: "C", Members: members},
		&model.Class{Name: "E"},
	}})
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	linked, _ := env.ByFqn("p.C")
	for _, member := range linked.(*model.Class).Members {
		if method, ok := member.(*model.Method); ok && method.Name == m.Name {
			return NewCompiler(env).Compile(method)
		}
	}
	t.Fatal("method not found after link")
	return nil
}

func ops(code []Instruction) []Opcode {
	out := make([]Opcode, len(code))
	for i, ins := range code {
		out[i] = ins.Op
	}
	return out
}

func expectOps(t *testing.T, code []Instruction, want ...Opcode) {
	t.Helper()
	got := ops(code)
	if len(got) != len(want) {
		t.Fatalf("opcode sequence mismatch:\nwant %v\ngot  %v\n%s", want, got, Disassemble(code))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("opcode %d should be %s, got %s:\n%s", i, want[i], got[i], Disassemble(code))
		}
	}
}

func TestCompileVariableDeclaration(t *testing.T) {
	m := &model.Method{Name: "m", Body: &model.Body{Sentences: []model.Node{
		&model.Variable{Name: "v", Value: &model.Literal{Value: 1.0}},
	}}}
	code := compileMethod(t, m)
	// var v = 1; then implicit undefined return
	expectOps(t, code, OpInstantiate, OpStore, OpPush, OpPop, OpPush, OpReturn)
	if code[1].Name != "v" || code[1].Lookup {
		t.Error("variable declaration should STORE v without lookup")
	}
}

func TestCompileAssignmentUsesLookup(t *testing.T) {
	m := &model.Method{Name: "m", Body: &model.Body{Sentences: []model.Node{
		&model.Assignment{Variable: &model.Reference{Name: "f"}, Value: &model.Literal{Value: 2.0}},
	}}}
	code := compileMethod(t, m, &model.Field{Name: "f"})
	expectOps(t, code, OpInstantiate, OpStore, OpPush, OpPop, OpPush, OpReturn)
	if !code[1].Lookup {
		t.Error("assignment should STORE with lookup")
	}
}

func TestCompileSelfAndSend(t *testing.T) {
	m := &model.Method{Name: "m", IsExpression: true, Body: &model.Body{Sentences: []model.Node{
		&model.Send{Receiver: &model.Self{}, Message: "other", Args: []model.Node{&model.Literal{Value: 1.0}}},
	}}}
	code := compileMethod(t, m, &model.Method{Name: "other", Parameters: []*model.Parameter{{Name: "a"}}, Body: &model.Body{}})
	expectOps(t, code, OpLoad, OpInstantiate, OpCall, OpReturn)
	if code[0].Name != "self" {
		t.Error("self should LOAD the self binding")
	}
	if code[2].Name != "other" || code[2].Arity != 1 {
		t.Error("send should CALL other/1")
	}
}

func TestCompileSuperStartsLookupPastModule(t *testing.T) {
	m := &model.Method{Name: "m", IsExpression: true, Body: &model.Body{Sentences: []model.Node{
		&model.Super{},
	}}}
	code := compileMethod(t, m)
	expectOps(t, code, OpLoad, OpCall, OpReturn)
	if code[1].Name != "m" || code[1].LookupStart != "p.C" {
		t.Errorf("super should CALL m with lookup start p.C, got %s start=%s", code[1].Name, code[1].LookupStart)
	}
}

func TestCompileIfShape(t *testing.T) {
	m := &model.Method{Name: "m", IsExpression: true, Body: &model.Body{Sentences: []model.Node{
		&model.If{
			Condition: &model.Literal{Value: true},
			Then:      &model.Body{Sentences: []model.Node{&model.Literal{Value: 1.0}}},
			Else:      &model.Body{Sentences: []model.Node{&model.Literal{Value: 2.0}}},
		},
	}}}
	code := compileMethod(t, m)
	expectOps(t, code,
		OpPush,        // true
		OpPushContext, // branch context
		OpCondJump,    // over the else clause
		OpInstantiate, // else: 2
		OpJump,        // over the then clause
		OpInstantiate, // then: 1
		OpPopContext,
		OpReturn,
	)
	// the conditional jump lands on the then clause
	if target := 3 + code[2].Offset; target != 5 {
		t.Errorf("conditional jump should land on the then clause at 5, got %d", target)
	}
	// the unconditional jump lands past the then clause
	if target := 5 + code[4].Offset; target != 6 {
		t.Errorf("jump should land past the then clause at 6, got %d", target)
	}
}

func TestCompileThrow(t *testing.T) {
	m := &model.Method{Name: "m", Body: &model.Body{Sentences: []model.Node{
		&model.Throw{Exception: &model.New{Instantiated: &model.Reference{Name: "E"}}},
	}}}
	code := compileMethod(t, m)
	found := false
	for _, ins := range code {
		if ins.Op == OpInterrupt {
			found = true
		}
	}
	if !found {
		t.Errorf("throw should lower to INTERRUPT:\n%s", Disassemble(code))
	}
}

func TestCompileTryHandlerLandsOnCatchChain(t *testing.T) {
	m := &model.Method{Name: "m", IsExpression: true, Body: &model.Body{Sentences: []model.Node{
		&model.Try{
			Body: &model.Body{Sentences: []model.Node{&model.Literal{Value: 1.0}}},
			Catches: []*model.Catch{{
				Parameter:     &model.Parameter{Name: "e"},
				ParameterType: &model.Reference{Name: "E"},
				Body:          &model.Body{Sentences: []model.Node{&model.Literal{Value: 2.0}}},
			}},
			Always: &model.Body{Sentences: []model.Node{&model.Literal{Value: 3.0}}},
		},
	}}}
	code := compileMethod(t, m)

	// find the body context push (the second PUSH_CONTEXT) and check its
	// handler lands on the catch chain's first LOAD <exception>
	contexts := 0
	for i, ins := range code {
		if ins.Op != OpPushContext {
			continue
		}
		contexts++
		if contexts == 1 {
			if ins.Handler != NoHandler {
				t.Error("the try-outer context should have no handler")
			}
			continue
		}
		if contexts == 2 {
			if ins.Handler == NoHandler {
				t.Fatal("the protected-body context should carry a handler")
			}
			target := i + 1 + ins.Handler
			if code[target].Op != OpLoad || code[target].Name != "<exception>" {
				t.Errorf("handler should land on the catch chain, landed on %s", code[target])
			}
			return
		}
	}
	t.Fatalf("expected two context pushes before the catch bodies:\n%s", Disassemble(code))
}

func TestCompileSingletonLiteral(t *testing.T) {
	closure := model.NewClosure(nil, &model.Body{Sentences: []model.Node{&model.Literal{Value: 1.0}}})
	m := &model.Method{Name: "m", IsExpression: true, Body: &model.Body{Sentences: []model.Node{closure}}}

	env, err := linker.Link(nil,
		&model.Package{Name: "wollok", Members: []model.Node{
			&model.Package{Name: "lang", Members: []model.Node{&model.Class{Name: "Closure"}}},
		}},
		&model.Package{Name: "p", Members: []model.Node{&model.Class{Name: "C", Members: []model.Node{m}}}},
	)
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	linked, _ := env.ByFqn("p.C")
	method := linked.(*model.Class).Members[0].(*model.Method)
	code := NewCompiler(env).Compile(method)
	expectOps(t, code, OpInstantiate, OpInitNamed, OpInit, OpReturn)
	if code[2].Optional != true {
		t.Error("a literal singleton's INIT should be optional")
	}
}

func TestCompileUnhandledKindPanics(t *testing.T) {
	env, err := linker.Link(nil, &model.Package{Name: "p"})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("compiling a package should panic (compiler assertion)")
		}
	}()
	NewCompiler(env).Compile(&model.Package{Name: "x"})
}

func TestCompileMemoization(t *testing.T) {
	env, err := linker.Link(nil, &model.Package{Name: "p", Members: []model.Node{
		&model.Class{Name: "C", Members: []model.Node{
			&model.Method{Name: "m", Body: &model.Body{}},
		}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	e := &Evaluation{env: env, compiler: NewCompiler(env), code: map[model.Id][]Instruction{}, instances: map[Ref]*Object{}}
	linked, _ := env.ByFqn("p.C")
	method := linked.(*model.Class).Members[0].(*model.Method)
	first := e.codeFor(method)
	second := e.codeFor(method)
	if &first[0] != &second[0] {
		t.Error("compile should be memoized per node")
	}
}
