package vm

import (
	"fmt"

	"github.com/uqbar-project/wollok-go/model"
)

// Reserved local names used by the try/catch lowering. Angle brackets keep
// them out of the user namespace.
const (
	exceptionLocal = "<exception>"
	resultLocal    = "<result>"
	selfLocal      = "self"
)

// ---------------------------------------------------------------------------
// Compiler: node → instruction lowering
// ---------------------------------------------------------------------------

// Compiler lowers linked nodes into instruction sequences. It is stateless
// between calls; memoization lives in the Evaluation's code cache. Asking it
// to compile a node kind it does not handle is a bug and panics; the dispatch
// loop converts such panics into EvaluationError instances.
type Compiler struct {
	env *model.Environment
}

// NewCompiler creates a compiler over a linked environment.
func NewCompiler(env *model.Environment) *Compiler {
	return &Compiler{env: env}
}

// Compile lowers a callable node (method, constructor, program or test) to
// its instruction sequence. Native methods yield nil; every other sequence
// ends in RETURN.
func (c *Compiler) Compile(node model.Node) []Instruction {
	b := NewBuilder()
	switch n := node.(type) {
	case *model.Method:
		if n.IsNative {
			return nil
		}
		if n.IsExpression {
			c.expressionClause(b, n.Body)
			b.Emit(Instruction{Op: OpReturn})
			break
		}
		c.statementClause(b, n.Body)
		b.EmitPush("")
		b.Emit(Instruction{Op: OpReturn})
	case *model.Constructor:
		c.compileConstructor(b, n)
	case *model.Program:
		c.statementClause(b, n.Body)
		b.EmitPush("")
		b.Emit(Instruction{Op: OpReturn})
	case *model.Test:
		c.statementClause(b, n.Body)
		b.EmitPush("")
		b.Emit(Instruction{Op: OpReturn})
	default:
		panic(fmt.Sprintf("vm: compiler: cannot compile %s node", node.Kind()))
	}
	return b.Code()
}

// CompileExpression lowers a single expression, leaving its value on the
// stack. Used for field and lazy-global initializers.
func (c *Compiler) CompileExpression(node model.Node) []Instruction {
	b := NewBuilder()
	c.compileExpr(b, node)
	return b.Code()
}

func (c *Compiler) compileConstructor(b *Builder, ctor *model.Constructor) {
	module := enclosingModule(ctor)
	moduleFqn := model.FullyQualifiedName(module)
	if ctor.HasBaseCall {
		for _, arg := range ctor.BaseCallArgs {
			c.compileExpr(b, arg)
		}
		b.EmitLoad(selfLocal)
		lookupStart := ""
		if ctor.BaseCallsSuper {
			lookupStart = moduleFqn
		}
		b.Emit(Instruction{Op: OpInit, Arity: len(ctor.BaseCallArgs), LookupStart: lookupStart})
		b.Emit(Instruction{Op: OpPop})
	} else if c.env.Superclass(module) != nil {
		// implicit zero-argument super delegation
		b.EmitLoad(selfLocal)
		b.Emit(Instruction{Op: OpInit, Arity: 0, LookupStart: moduleFqn, Optional: true})
		b.Emit(Instruction{Op: OpPop})
	}
	c.statementClause(b, ctor.Body)
	b.EmitLoad(selfLocal)
	b.Emit(Instruction{Op: OpReturn})
}

// ---------------------------------------------------------------------------
// Bodies
// ---------------------------------------------------------------------------

// checkLocals forbids redeclaring a local within the same body. The source
// language leaves this ambiguous; here it is an explicit failure.
func checkLocals(body *model.Body) {
	seen := make(map[string]bool)
	for _, sentence := range body.Sentences {
		if v, ok := sentence.(*model.Variable); ok {
			if seen[v.Name] {
				panic(fmt.Sprintf("vm: compiler: local %q redeclared in the same body", v.Name))
			}
			seen[v.Name] = true
		}
	}
}

// expressionClause compiles a body whose last sentence leaves its value on
// the stack; an empty body pushes undefined.
func (c *Compiler) expressionClause(b *Builder, body *model.Body) {
	if body == nil || len(body.Sentences) == 0 {
		b.EmitPush("")
		return
	}
	checkLocals(body)
	for i, sentence := range body.Sentences {
		c.compileSentence(b, sentence)
		if i < len(body.Sentences)-1 {
			b.Emit(Instruction{Op: OpPop})
		}
	}
}

// statementClause compiles a body discarding every sentence value.
func (c *Compiler) statementClause(b *Builder, body *model.Body) {
	if body == nil {
		return
	}
	checkLocals(body)
	for _, sentence := range body.Sentences {
		c.compileSentence(b, sentence)
		b.Emit(Instruction{Op: OpPop})
	}
}

// compileSentence compiles one sentence, leaving exactly one value on the
// stack.
func (c *Compiler) compileSentence(b *Builder, node model.Node) {
	switch n := node.(type) {
	case *model.Variable:
		if n.Value != nil {
			c.compileExpr(b, n.Value)
		} else {
			b.EmitPush(string(NullRef))
		}
		b.EmitStore(n.Name, false)
		b.EmitPush("")
	case *model.Return:
		if n.Value != nil {
			c.compileExpr(b, n.Value)
		} else {
			b.EmitPush("")
		}
		b.Emit(Instruction{Op: OpReturn})
		// unreachable; keeps the clause one-value shaped
		b.EmitPush("")
	default:
		c.compileExpr(b, node)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) compileExpr(b *Builder, node model.Node) {
	switch n := node.(type) {
	case *model.Self:
		b.EmitLoad(selfLocal)

	case *model.Reference:
		b.EmitLoad(c.referenceName(n))

	case *model.Assignment:
		c.compileExpr(b, n.Value)
		b.EmitStore(c.referenceName(n.Variable), true)
		b.EmitPush("")

	case *model.Literal:
		c.compileLiteral(b, n)

	case *model.Send:
		c.compileExpr(b, n.Receiver)
		for _, arg := range n.Args {
			c.compileExpr(b, arg)
		}
		b.Emit(Instruction{Op: OpCall, Name: n.Message, Arity: len(n.Args)})

	case *model.Super:
		method := enclosingMethod(n)
		module := enclosingModule(n)
		b.EmitLoad(selfLocal)
		for _, arg := range n.Args {
			c.compileExpr(b, arg)
		}
		b.Emit(Instruction{
			Op:          OpCall,
			Name:        method.Name,
			Arity:       len(n.Args),
			LookupStart: model.FullyQualifiedName(module),
		})

	case *model.New:
		target := c.env.Node(n.Instantiated.TargetId)
		fqn := model.FullyQualifiedName(target)
		for _, arg := range n.Args {
			c.compileExpr(b, arg)
		}
		names := make([]string, 0, len(n.NamedArgs))
		for _, named := range n.NamedArgs {
			c.compileExpr(b, named.Value)
			names = append(names, named.Name)
		}
		b.Emit(Instruction{Op: OpInstantiate, Name: fqn})
		b.Emit(Instruction{Op: OpInitNamed, ArgNames: names})
		b.Emit(Instruction{Op: OpInit, Arity: len(n.Args), LookupStart: "", Optional: len(n.Args) == 0})

	case *model.If:
		c.compileExpr(b, n.Condition)
		b.EmitPushContext(nil)
		thenLabel := b.NewLabel()
		endLabel := b.NewLabel()
		b.EmitJump(OpCondJump, thenLabel)
		c.expressionClause(b, n.Else)
		b.EmitJump(OpJump, endLabel)
		b.Mark(thenLabel)
		c.expressionClause(b, n.Then)
		b.Mark(endLabel)
		b.Emit(Instruction{Op: OpPopContext})

	case *model.Throw:
		c.compileExpr(b, n.Exception)
		b.Emit(Instruction{Op: OpInterrupt})
		b.EmitPush("") // unreachable; keeps the clause stack-balanced

	case *model.Try:
		c.compileTry(b, n)

	case *model.Variable:
		// a local declared in expression position (e.g. last sentence of an
		// expression clause) goes through compileSentence
		c.compileSentence(b, n)

	default:
		panic(fmt.Sprintf("vm: compiler: cannot compile %s expression", node.Kind()))
	}
}

// referenceName returns the name LOAD/STORE uses for a reference: the
// fully-qualified name when the target is a module or a package-level
// variable (globals bind by fqn in the root context), the simple name
// otherwise.
func (c *Compiler) referenceName(ref *model.Reference) string {
	target := c.env.Node(ref.TargetId)
	if target == nil {
		return ref.Name
	}
	switch target.(type) {
	case *model.Class, *model.Mixin, *model.Singleton:
		return model.FullyQualifiedName(target)
	case *model.Variable:
		if _, ok := target.Parent().(*model.Package); ok {
			return model.FullyQualifiedName(target)
		}
	}
	return ref.Name
}

func (c *Compiler) compileLiteral(b *Builder, lit *model.Literal) {
	switch v := lit.Value.(type) {
	case nil:
		b.EmitPush(string(NullRef))
	case bool:
		if v {
			b.EmitPush(string(TrueRef))
		} else {
			b.EmitPush(string(FalseRef))
		}
	case float64:
		b.Emit(Instruction{Op: OpInstantiate, Name: model.NumberFqn, Inner: v})
	case int:
		b.Emit(Instruction{Op: OpInstantiate, Name: model.NumberFqn, Inner: float64(v)})
	case string:
		b.Emit(Instruction{Op: OpInstantiate, Name: model.StringFqn, Inner: v})
	case *model.CollectionLiteral:
		b.Emit(Instruction{Op: OpInstantiate, Name: v.Fqn})
		for _, el := range v.Elements {
			b.Emit(Instruction{Op: OpDup})
			c.compileExpr(b, el)
			b.Emit(Instruction{Op: OpCall, Name: "add", Arity: 1})
			b.Emit(Instruction{Op: OpPop})
		}
	case *model.Singleton:
		c.compileSingleton(b, v)
	default:
		panic(fmt.Sprintf("vm: compiler: unsupported literal %T", lit.Value))
	}
}

// compileSingleton lowers an object literal: supercall arguments, then
// INSTANTIATE / INIT_NAMED / INIT. The instance captures the current lexical
// context at INSTANTIATE time.
func (c *Compiler) compileSingleton(b *Builder, sing *model.Singleton) {
	var names []string
	argc := 0
	for _, sup := range sing.Supers {
		for _, arg := range sup.Args {
			c.compileExpr(b, arg)
			argc++
		}
	}
	for _, sup := range sing.Supers {
		for _, named := range sup.NamedArgs {
			c.compileExpr(b, named.Value)
			names = append(names, named.Name)
		}
	}
	fqn := model.FullyQualifiedName(sing)
	b.Emit(Instruction{Op: OpInstantiate, Name: fqn})
	b.Emit(Instruction{Op: OpInitNamed, ArgNames: names})
	b.Emit(Instruction{Op: OpInit, Arity: argc, Optional: true})
}

// ---------------------------------------------------------------------------
// Try / catch / always
// ---------------------------------------------------------------------------

// compileTry lowers a try expression. The prelude binds <exception> = false
// and <result> = undefined in a dedicated context; the protected body runs in
// a nested context whose handler PC lands on the catch chain; the always
// block runs unconditionally; an unhandled throwable re-raises after it.
func (c *Compiler) compileTry(b *Builder, try *model.Try) {
	catches := b.NewLabel()
	always := b.NewLabel()
	reraise := b.NewLabel()
	done := b.NewLabel()

	b.EmitPushContext(nil)
	b.EmitPush(string(FalseRef))
	b.EmitStore(exceptionLocal, false)
	b.EmitPush("")
	b.EmitStore(resultLocal, false)

	b.EmitPushContext(catches)
	c.expressionClause(b, try.Body)
	b.EmitStore(resultLocal, true)
	b.Emit(Instruction{Op: OpPopContext})
	b.EmitJump(OpJump, always)

	// The unwinder lands here with the body context popped and <exception>
	// bound in the current context.
	b.Mark(catches)
	bodies := make([]*Label, len(try.Catches))
	for i, cat := range try.Catches {
		bodies[i] = b.NewLabel()
		b.EmitLoad(exceptionLocal)
		b.Emit(Instruction{Op: OpInherits, Name: c.catchTypeFqn(cat)})
		b.EmitJump(OpCondJump, bodies[i])
	}
	b.EmitJump(OpJump, always)

	for i, cat := range try.Catches {
		b.Mark(bodies[i])
		b.EmitPushContext(nil)
		b.EmitLoad(exceptionLocal)
		b.EmitStore(cat.Parameter.Name, false)
		c.expressionClause(b, cat.Body)
		b.EmitStore(resultLocal, true)
		b.EmitPush(string(FalseRef))
		b.EmitStore(exceptionLocal, true)
		b.Emit(Instruction{Op: OpPopContext})
		b.EmitJump(OpJump, always)
	}

	b.Mark(always)
	if try.Always != nil {
		c.statementClause(b, try.Always)
	}
	b.EmitLoad(exceptionLocal)
	b.Emit(Instruction{Op: OpInherits, Name: model.ExceptionFqn})
	b.EmitJump(OpCondJump, reraise)
	b.EmitJump(OpJump, done)
	b.Mark(reraise)
	b.EmitLoad(exceptionLocal)
	b.Emit(Instruction{Op: OpInterrupt})
	b.Mark(done)
	b.EmitLoad(resultLocal)
	b.Emit(Instruction{Op: OpPopContext})
}

func (c *Compiler) catchTypeFqn(cat *model.Catch) string {
	if cat.ParameterType == nil {
		return model.ExceptionFqn
	}
	target := c.env.Node(cat.ParameterType.TargetId)
	if target == nil {
		return model.ExceptionFqn
	}
	return model.FullyQualifiedName(target)
}

// ---------------------------------------------------------------------------
// Tree navigation helpers
// ---------------------------------------------------------------------------

func enclosingMethod(n model.Node) *model.Method {
	for cur := n; cur != nil; cur = cur.Parent() {
		if m, ok := cur.(*model.Method); ok {
			return m
		}
	}
	panic("vm: compiler: super outside a method")
}

func enclosingModule(n model.Node) model.Module {
	for cur := n; cur != nil; cur = cur.Parent() {
		if m, ok := cur.(model.Module); ok {
			return m
		}
	}
	panic("vm: compiler: node outside a module")
}
