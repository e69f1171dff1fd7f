package vm

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tliron/commonlog"

	"github.com/uqbar-project/wollok-go/model"
)

var log = commonlog.GetLogger("wollok.vm")

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Native is a host function bound to a native method. It receives the
// evaluation, the receiver and the argument refs, and must leave exactly one
// value on the current frame's operand stack (or raise via Interrupt).
type Native func(e *Evaluation, self Ref, args []Ref) error

// Config tunes an Evaluation.
type Config struct {
	DecimalPrecision    int
	MaxFrameStackSize   int
	MaxOperandStackSize int
	Natives             map[string]Native
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() Config {
	return Config{
		DecimalPrecision:    5,
		MaxFrameStackSize:   1000,
		MaxOperandStackSize: 10000,
	}
}

// WollokError is the fatal signal surfaced to the embedder when an exception
// unwinds past every frame. The Evaluation must be discarded afterwards.
type WollokError struct {
	Instance  Ref
	ModuleFqn string
	Message   string
}

func (e *WollokError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("wollok: uncaught %s: %s", e.ModuleFqn, e.Message)
	}
	return fmt.Sprintf("wollok: uncaught %s", e.ModuleFqn)
}

// interruptError signals a raise out of a native function.
type interruptError struct {
	exception Ref
}

func (i *interruptError) Error() string { return "vm: interrupt " + string(i.exception) }

// Interrupt wraps an exception instance so a native can raise it.
func Interrupt(exception Ref) error { return &interruptError{exception: exception} }

// ErrAborted reports that a nested SendMessage was cut short because an
// exception unwound past its entry frame into an outer handler. Control has
// already been transferred; callers (natives, embedders) must propagate it
// without touching the evaluation further.
var ErrAborted = errors.New("vm: send aborted by unwinding")

// ---------------------------------------------------------------------------
// Evaluation: the VM state
// ---------------------------------------------------------------------------

// Evaluation is a complete VM state: environment, root context (globals),
// frame stack, instance table and per-node code cache. It is single-threaded;
// embedders wanting isolation create separate Evaluations or use Copy.
type Evaluation struct {
	env      *model.Environment
	cfg      Config
	compiler *Compiler

	root      *Context
	frames    []*Frame
	instances map[Ref]*Object
	code      map[model.Id][]Instruction

	nextInstance int
	result       Ref
	completed    bool
}

// Of constructs a ready Evaluation: primes the root context with the
// interned primitives, every named singleton and every package-level
// constant (as a lazy-initializer instance), then runs the bootstrap frame
// that self-initializes the singletons.
func Of(env *model.Environment, cfg Config) (*Evaluation, error) {
	e := &Evaluation{
		env:       env,
		cfg:       cfg,
		compiler:  NewCompiler(env),
		instances: make(map[Ref]*Object),
		code:      make(map[model.Id][]Instruction),
	}
	e.root = NewContext(nil)

	e.addInstance(&Object{Id: NullRef, ModuleFqn: model.ObjectFqn, Ctx: NewContext(e.root)})
	e.addInstance(&Object{Id: TrueRef, ModuleFqn: model.BooleanFqn, Ctx: NewContext(e.root), Inner: true})
	e.addInstance(&Object{Id: FalseRef, ModuleFqn: model.BooleanFqn, Ctx: NewContext(e.root), Inner: false})
	e.root.Set("null", NullRef)
	e.root.Set("true", TrueRef)
	e.root.Set("false", FalseRef)

	singletons := env.NamedSingletons()
	for _, sing := range singletons {
		fqn := model.FullyQualifiedName(sing)
		ref := Ref(sing.NodeId())
		obj := &Object{Id: ref, ModuleFqn: fqn, Ctx: NewContext(e.root)}
		obj.Ctx.Set(selfLocal, ref)
		e.addInstance(obj)
		e.root.Set(fqn, ref)
	}
	for _, v := range env.PackageVariables() {
		fqn := model.FullyQualifiedName(v)
		ref := e.freshRef()
		e.addInstance(&Object{
			Id:        ref,
			ModuleFqn: model.ObjectFqn,
			Ctx:       NewContext(e.root),
			lazy:      &lazyInitializer{expr: v.Value, context: e.root},
		})
		e.root.Set(fqn, ref)
	}

	// Bootstrap frame: INIT sequence for every named singleton.
	b := NewBuilder()
	for _, sing := range singletons {
		argc := 0
		var names []string
		for _, sup := range sing.Supers {
			for _, arg := range sup.Args {
				e.compiler.compileExpr(b, arg)
				argc++
			}
		}
		for _, sup := range sing.Supers {
			for _, named := range sup.NamedArgs {
				e.compiler.compileExpr(b, named.Value)
				names = append(names, named.Name)
			}
		}
		b.EmitPushNode(sing.NodeId())
		b.Emit(Instruction{Op: OpInitNamed, ArgNames: names})
		b.Emit(Instruction{Op: OpInit, Arity: argc, Optional: true})
		b.Emit(Instruction{Op: OpPop})
	}
	b.EmitPush("")
	b.Emit(Instruction{Op: OpReturn})

	bootstrap := NewFrame(b.Code(), NewContext(e.root), cfg.MaxOperandStackSize, "<bootstrap>")
	bootstrap.sink = true
	if err := e.pushFrame(bootstrap); err != nil {
		return nil, err
	}
	if err := e.stepUntil(0); err != nil {
		return nil, fmt.Errorf("vm: bootstrap failed: %w", err)
	}
	return e, nil
}

// Environment returns the linked environment under evaluation.
func (e *Evaluation) Environment() *model.Environment { return e.env }

// RootContext returns the context holding the globals.
func (e *Evaluation) RootContext() *Context { return e.root }

// Instance returns the runtime object for a ref, or nil.
func (e *Evaluation) Instance(ref Ref) *Object { return e.instances[ref] }

// FrameDepth returns the current frame-stack depth.
func (e *Evaluation) FrameDepth() int { return len(e.frames) }

func (e *Evaluation) addInstance(obj *Object) {
	e.instances[obj.Id] = obj
}

func (e *Evaluation) freshRef() Ref {
	e.nextInstance++
	return Ref("#" + strconv.Itoa(e.nextInstance))
}

// currentFrame returns the top frame, or nil.
func (e *Evaluation) currentFrame() *Frame {
	if len(e.frames) == 0 {
		return nil
	}
	return e.frames[len(e.frames)-1]
}

func (e *Evaluation) pushFrame(f *Frame) error {
	if len(e.frames) >= e.cfg.MaxFrameStackSize {
		return e.raiseWellKnown(model.StackOverflowExceptionFqn, "frame stack depth exceeded")
	}
	e.frames = append(e.frames, f)
	return nil
}

func (e *Evaluation) popFrame() *Frame {
	top := e.frames[len(e.frames)-1]
	e.frames = e.frames[:len(e.frames)-1]
	return top
}

// ---------------------------------------------------------------------------
// Interning and instantiation
// ---------------------------------------------------------------------------

// Number returns the interned instance for a numeric value.
func (e *Evaluation) Number(value float64) Ref {
	ref := numberRef(value, e.cfg.DecimalPrecision)
	if _, ok := e.instances[ref]; !ok {
		rounded, _ := strconv.ParseFloat(string(ref[2:]), 64)
		e.addInstance(&Object{Id: ref, ModuleFqn: model.NumberFqn, Ctx: NewContext(e.root), Inner: rounded})
	}
	return ref
}

// String returns the interned instance for a string value.
func (e *Evaluation) String(value string) Ref {
	ref := stringRef(value)
	if _, ok := e.instances[ref]; !ok {
		e.addInstance(&Object{Id: ref, ModuleFqn: model.StringFqn, Ctx: NewContext(e.root), Inner: value})
	}
	return ref
}

// Boolean returns the interned instance for a boolean value.
func (e *Evaluation) Boolean(value bool) Ref {
	if value {
		return TrueRef
	}
	return FalseRef
}

// NewList creates a fresh list instance holding the given elements.
func (e *Evaluation) NewList(elements ...Ref) Ref {
	return e.newCollection(model.ListFqn, elements)
}

// NewSet creates a fresh set instance holding the given elements.
func (e *Evaluation) NewSet(elements ...Ref) Ref {
	return e.newCollection(model.SetFqn, elements)
}

func (e *Evaluation) newCollection(fqn string, elements []Ref) Ref {
	ref := e.freshRef()
	inner := make([]Ref, len(elements))
	copy(inner, elements)
	e.addInstance(&Object{Id: ref, ModuleFqn: fqn, Ctx: NewContext(e.root), Inner: inner})
	return ref
}

// instantiate implements INSTANTIATE: primitives intern, everything else gets
// a fresh instance whose context captures parent.
func (e *Evaluation) instantiate(fqn string, inner any, parent *Context) (Ref, error) {
	switch fqn {
	case model.NumberFqn:
		v, ok := inner.(float64)
		if !ok {
			return Undefined, fmt.Errorf("vm: INSTANTIATE %s without numeric inner value", fqn)
		}
		return e.Number(v), nil
	case model.StringFqn:
		v, ok := inner.(string)
		if !ok {
			return Undefined, fmt.Errorf("vm: INSTANTIATE %s without string inner value", fqn)
		}
		return e.String(v), nil
	case model.BooleanFqn:
		v, ok := inner.(bool)
		if !ok {
			return Undefined, fmt.Errorf("vm: INSTANTIATE %s without boolean inner value", fqn)
		}
		return e.Boolean(v), nil
	}
	if _, ok := e.env.ModuleByFqn(fqn); !ok {
		return Undefined, fmt.Errorf("vm: INSTANTIATE of unknown module %s", fqn)
	}
	ref := e.freshRef()
	obj := &Object{Id: ref, ModuleFqn: fqn, Ctx: NewContext(parent)}
	obj.Ctx.Set(selfLocal, ref)
	switch fqn {
	case model.ListFqn, model.SetFqn:
		obj.Inner = []Ref{}
	}
	if inner != nil {
		obj.Inner = inner
	}
	e.addInstance(obj)
	return ref, nil
}

// PushOperand pushes a value on the current frame's operand stack. Natives
// use it to deliver their result.
func (e *Evaluation) PushOperand(ref Ref) error {
	f := e.currentFrame()
	if f == nil {
		return fmt.Errorf("vm: no active frame")
	}
	return f.push(ref)
}

// ---------------------------------------------------------------------------
// Stepping
// ---------------------------------------------------------------------------

// Step executes one instruction of the top frame. User-expressible failures
// raise exceptions through the standard unwinding; only uncaught exceptions
// and structural invariants return a Go error, after which the Evaluation
// must be discarded.
func (e *Evaluation) Step() (err error) {
	f := e.currentFrame()
	if f == nil {
		return fmt.Errorf("vm: evaluation has no active frame")
	}
	if f.Finished() {
		e.popFrame()
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = e.raiseEvaluationError("%v", r)
		}
	}()

	ins := f.code[f.pc]
	f.pc++
	if stepErr := e.exec(f, ins); stepErr != nil {
		if stepErr == ErrAborted {
			// the unwinding already re-routed control
			return nil
		}
		if interrupt, ok := stepErr.(*interruptError); ok {
			return e.raise(interrupt.exception)
		}
		if _, ok := stepErr.(*WollokError); ok {
			return stepErr
		}
		return e.raiseEvaluationError("%v", stepErr)
	}
	return nil
}

// StepAll steps until the frame stack drains.
func (e *Evaluation) StepAll() error { return e.stepUntil(0) }

func (e *Evaluation) stepUntil(depth int) error {
	for len(e.frames) > depth {
		if err := e.Step(); err != nil {
			return err
		}
	}
	return nil
}

// SendMessage synthesizes a message send and runs it to completion,
// returning the result. An uncaught exception surfaces as *WollokError.
func (e *Evaluation) SendMessage(message string, receiver Ref, args ...Ref) (Ref, error) {
	depth := len(e.frames)
	b := NewBuilder()
	b.EmitPush(string(receiver))
	for _, arg := range args {
		b.EmitPush(string(arg))
	}
	b.Emit(Instruction{Op: OpCall, Name: message, Arity: len(args)})
	b.Emit(Instruction{Op: OpReturn})
	frame := NewFrame(b.Code(), NewContext(e.root), e.cfg.MaxOperandStackSize, "<send "+message+">")
	frame.sink = true
	if err := e.pushFrame(frame); err != nil {
		return Undefined, err
	}
	e.completed = false
	if err := e.stepUntil(depth); err != nil {
		return Undefined, err
	}
	if !e.completed {
		// an exception unwound past this send into an outer handler
		return Undefined, ErrAborted
	}
	e.completed = false
	return e.result, nil
}

// ---------------------------------------------------------------------------
// Opcode dispatch
// ---------------------------------------------------------------------------

func (e *Evaluation) exec(f *Frame, ins Instruction) error {
	switch ins.Op {
	case OpLoad:
		ref, ok := f.ctx.Get(ins.Name)
		if !ok {
			return f.push(Undefined)
		}
		if obj := e.instances[ref]; obj != nil && obj.IsLazy() {
			return e.forceLazy(ins.Name, obj)
		}
		return f.push(ref)

	case OpStore:
		value, err := f.pop()
		if err != nil {
			return err
		}
		if !ins.Lookup || !f.ctx.Update(ins.Name, value) {
			f.ctx.Set(ins.Name, value)
		}
		return nil

	case OpPush:
		return f.push(Ref(ins.PushId))

	case OpPop:
		_, err := f.pop()
		return err

	case OpPushContext:
		if ins.Handler == NoHandler {
			f.pushContext(NoHandler)
		} else {
			f.pushContext(f.pc + ins.Handler)
		}
		return nil

	case OpPopContext:
		return f.popContext()

	case OpSwap:
		depth := ins.Depth + 1
		top := len(f.operands) - 1
		if top-depth < 0 {
			return errOperandUnderflow
		}
		f.operands[top], f.operands[top-depth] = f.operands[top-depth], f.operands[top]
		return nil

	case OpDup:
		top, err := f.pop()
		if err != nil {
			return err
		}
		if err := f.push(top); err != nil {
			return err
		}
		return f.push(top)

	case OpInstantiate:
		ref, err := e.instantiate(ins.Name, ins.Inner, f.ctx)
		if err != nil {
			return err
		}
		return f.push(ref)

	case OpInherits:
		ref, err := f.pop()
		if err != nil {
			return err
		}
		obj := e.instances[ref]
		if obj == nil {
			return fmt.Errorf("INHERITS on undefined value")
		}
		module, ok := e.env.ModuleByFqn(obj.ModuleFqn)
		if !ok {
			return fmt.Errorf("INHERITS: unknown module %s", obj.ModuleFqn)
		}
		return f.push(e.Boolean(e.env.Inherits(module, ins.Name)))

	case OpJump:
		f.pc += ins.Offset
		return nil

	case OpCondJump:
		cond, err := f.pop()
		if err != nil {
			return err
		}
		switch cond {
		case TrueRef:
			f.pc += ins.Offset
			return nil
		case FalseRef:
			return nil
		}
		return fmt.Errorf("CONDITIONAL_JUMP on non-boolean value")

	case OpCall:
		return e.call(f, ins)

	case OpInit:
		return e.init(f, ins)

	case OpInitNamed:
		return e.initNamed(f, ins)

	case OpInterrupt:
		exception, err := f.pop()
		if err != nil {
			return err
		}
		return e.raise(exception)

	case OpReturn:
		value, err := f.pop()
		if err != nil {
			return err
		}
		popped := e.popFrame()
		caller := e.currentFrame()
		if popped.sink || caller == nil {
			e.result = value
			e.completed = true
			return nil
		}
		return caller.push(value)
	}
	panic(fmt.Sprintf("vm: invalid opcode %02X", byte(ins.Op)))
}

// forceLazy pushes a frame that evaluates a lazy initializer and stores the
// result back under name. The thunk is self-replacing: the STORE rebinds the
// name, so later LOADs see the resolved value.
func (e *Evaluation) forceLazy(name string, obj *Object) error {
	var code []Instruction
	if obj.lazy.expr != nil {
		code = e.compiler.CompileExpression(obj.lazy.expr)
	} else {
		code = []Instruction{{Op: OpPush, PushId: string(NullRef)}}
	}
	b := NewBuilder()
	for _, ins := range code {
		b.Emit(ins)
	}
	b.Emit(Instruction{Op: OpDup})
	b.EmitStore(name, true)
	b.Emit(Instruction{Op: OpReturn})
	frame := NewFrame(b.Code(), NewContext(obj.lazy.context), e.cfg.MaxOperandStackSize, "<init "+name+">")
	return e.pushFrame(frame)
}

// ---------------------------------------------------------------------------
// Message dispatch
// ---------------------------------------------------------------------------

func (e *Evaluation) call(f *Frame, ins Instruction) error {
	args, err := f.popN(ins.Arity)
	if err != nil {
		return err
	}
	receiver, err := f.pop()
	if err != nil {
		return err
	}
	if receiver == Undefined {
		return fmt.Errorf("message %s/%d sent to an uninitialized value", ins.Name, ins.Arity)
	}
	obj := e.instances[receiver]
	if obj == nil {
		return fmt.Errorf("message %s/%d sent to a stale reference", ins.Name, ins.Arity)
	}
	module, ok := e.env.ModuleByFqn(obj.ModuleFqn)
	if !ok {
		return fmt.Errorf("receiver module %s missing from environment", obj.ModuleFqn)
	}

	method := e.env.LookupMethod(module, ins.Name, len(args), ins.LookupStart)
	if method == nil {
		return e.messageNotUnderstood(obj, module, ins.Name, args)
	}
	return e.invoke(method, obj, receiver, args, ins.SkipReceiver)
}

// invoke runs a resolved method: native methods dispatch through the native
// table, everything else pushes a frame.
func (e *Evaluation) invoke(method *model.Method, obj *Object, receiver Ref, args []Ref, skipReceiver bool) error {
	declaring := enclosingModule(method)
	if method.IsNative {
		key := model.FullyQualifiedName(declaring) + "." + method.Name
		native, ok := e.cfg.Natives[key]
		if !ok {
			return fmt.Errorf("missing native %s", key)
		}
		return native(e, receiver, args)
	}

	parent := obj.Ctx
	if skipReceiver {
		parent = e.root
	}
	base := NewContext(parent)
	e.bindParameters(base, method.Parameters, args)
	label := model.FullyQualifiedName(declaring) + "." + method.Name
	return e.pushFrame(NewFrame(e.codeFor(method), base, e.cfg.MaxOperandStackSize, label))
}

// bindParameters binds fixed parameters positionally; a trailing variadic
// parameter bundles the remaining arguments into a list.
func (e *Evaluation) bindParameters(ctx *Context, params []*model.Parameter, args []Ref) {
	for i, p := range params {
		if p.IsVarArg && i == len(params)-1 {
			rest := args[min(i, len(args)):]
			ctx.Set(p.Name, e.NewList(rest...))
			return
		}
		if i < len(args) {
			ctx.Set(p.Name, args[i])
		} else {
			ctx.Set(p.Name, Undefined)
		}
	}
}

// messageNotUnderstood dispatches the reflective hook when the receiver's
// hierarchy defines it, and raises an EvaluationError otherwise.
func (e *Evaluation) messageNotUnderstood(obj *Object, module model.Module, message string, args []Ref) error {
	hook := e.env.LookupMethod(module, "messageNotUnderstood", 2, "")
	if hook != nil {
		hookArgs := []Ref{e.String(message), e.NewList(args...)}
		return e.invoke(hook, obj, obj.Id, hookArgs, false)
	}
	return fmt.Errorf("%s does not understand %s/%d", obj.ModuleFqn, message, len(args))
}

// ---------------------------------------------------------------------------
// Initialization
// ---------------------------------------------------------------------------

func (e *Evaluation) init(f *Frame, ins Instruction) error {
	self, err := f.pop()
	if err != nil {
		return err
	}
	args, err := f.popN(ins.Arity)
	if err != nil {
		return err
	}
	obj := e.instances[self]
	if obj == nil {
		return fmt.Errorf("INIT on undefined value")
	}
	module, ok := e.env.ModuleByFqn(obj.ModuleFqn)
	if !ok {
		return fmt.Errorf("INIT: unknown module %s", obj.ModuleFqn)
	}
	ctor, _ := e.env.LookupConstructor(module, len(args), ins.LookupStart)
	if ctor == nil {
		if ins.Optional {
			return f.push(self)
		}
		return fmt.Errorf("%s does not have a constructor of arity %d", obj.ModuleFqn, len(args))
	}
	base := NewContext(obj.Ctx)
	e.bindParameters(base, ctor.Parameters, args)
	return e.pushFrame(NewFrame(e.codeFor(ctor), base, e.cfg.MaxOperandStackSize, obj.ModuleFqn+".<init>"))
}

// initNamed implements INIT_NAMED: zero every field of the full hierarchy,
// assign the named arguments, then run the remaining field initializers in a
// synthesized frame that finally returns self.
func (e *Evaluation) initNamed(f *Frame, ins Instruction) error {
	self, err := f.pop()
	if err != nil {
		return err
	}
	obj := e.instances[self]
	if obj == nil {
		return fmt.Errorf("INIT_NAMED on undefined value")
	}
	module, ok := e.env.ModuleByFqn(obj.ModuleFqn)
	if !ok {
		return fmt.Errorf("INIT_NAMED: unknown module %s", obj.ModuleFqn)
	}

	fields := e.env.AllFields(module)
	for _, field := range fields {
		obj.Ctx.Set(field.Name, NullRef)
	}

	named := make(map[string]bool, len(ins.ArgNames))
	for i := len(ins.ArgNames) - 1; i >= 0; i-- {
		value, err := f.pop()
		if err != nil {
			return err
		}
		obj.Ctx.Set(ins.ArgNames[i], value)
		named[ins.ArgNames[i]] = true
	}

	b := NewBuilder()
	// Initializers run least-specific first so a subclass initializer can
	// read inherited fields that are already set.
	for i := len(fields) - 1; i >= 0; i-- {
		field := fields[i]
		if named[field.Name] || field.Value == nil {
			continue
		}
		for _, code := range e.codeForExpression(field) {
			b.Emit(code)
		}
		b.EmitStore(field.Name, true)
	}
	b.EmitPush(string(self))
	b.Emit(Instruction{Op: OpReturn})
	base := NewContext(obj.Ctx)
	return e.pushFrame(NewFrame(b.Code(), base, e.cfg.MaxOperandStackSize, obj.ModuleFqn+".<fields>"))
}

// ---------------------------------------------------------------------------
// Code cache
// ---------------------------------------------------------------------------

// codeFor compiles a callable node, memoized per node id.
func (e *Evaluation) codeFor(node model.Node) []Instruction {
	if cached, ok := e.code[node.NodeId()]; ok {
		return cached
	}
	code := e.compiler.Compile(node)
	e.code[node.NodeId()] = code
	return code
}

// codeForExpression compiles an initializer expression, memoized per node id.
func (e *Evaluation) codeForExpression(node model.Node) []Instruction {
	if cached, ok := e.code[node.NodeId()]; ok {
		return cached
	}
	var code []Instruction
	if field, ok := node.(*model.Field); ok && field.Value != nil {
		code = e.compiler.CompileExpression(field.Value)
	} else {
		code = e.compiler.CompileExpression(node)
	}
	e.code[node.NodeId()] = code
	return code
}

// ---------------------------------------------------------------------------
// Exception raising and unwinding
// ---------------------------------------------------------------------------

// Raise unwinds the frame stack with the given exception instance. It
// returns a *WollokError when no handler exists.
func (e *Evaluation) Raise(exception Ref) error { return e.raise(exception) }

func (e *Evaluation) raise(exception Ref) error {
	for len(e.frames) > 0 {
		f := e.currentFrame()
		for ctx := f.ctx; ctx != nil; ctx = ctx.Parent() {
			if ctx.Handler() != NoHandler {
				f.pc = ctx.Handler()
				f.ctx = ctx.Parent()
				f.ctx.Set(exceptionLocal, exception)
				return nil
			}
			if ctx == f.base {
				break
			}
		}
		e.popFrame()
	}
	return e.fatal(exception)
}

// fatal renders an uncaught exception into the embedder-facing error.
func (e *Evaluation) fatal(exception Ref) error {
	werr := &WollokError{Instance: exception}
	if obj := e.instances[exception]; obj != nil {
		werr.ModuleFqn = obj.ModuleFqn
		if msgRef, ok := obj.Ctx.Get("message"); ok {
			if msgObj := e.instances[msgRef]; msgObj != nil {
				if s, ok := msgObj.InnerString(); ok {
					werr.Message = s
				}
			}
		}
	}
	log.Errorf("uncaught exception: %s", werr.Error())
	return werr
}

// raiseWellKnown instantiates one of the well-known exception modules with a
// message and raises it.
func (e *Evaluation) raiseWellKnown(fqn string, message string) error {
	ref, err := e.instantiate(fqn, nil, e.root)
	if err != nil {
		// The well-known hierarchy is a structural requirement.
		return &WollokError{ModuleFqn: fqn, Message: message}
	}
	obj := e.instances[ref]
	obj.Ctx.Set("message", e.String(message))
	return e.raise(ref)
}

// raiseEvaluationError wraps a dispatch-loop failure into a user-catchable
// EvaluationError instance.
func (e *Evaluation) raiseEvaluationError(format string, args ...any) error {
	return e.raiseWellKnown(model.EvaluationErrorFqn, fmt.Sprintf(format, args...))
}

// ThrowError builds an exception instance of the given module with a message
// and returns the interrupt a native should propagate.
func (e *Evaluation) ThrowError(fqn string, format string, args ...any) error {
	ref, err := e.instantiate(fqn, nil, e.root)
	if err != nil {
		return err
	}
	e.instances[ref].Ctx.Set("message", e.String(fmt.Sprintf(format, args...)))
	return Interrupt(ref)
}
