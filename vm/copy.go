package vm

// ---------------------------------------------------------------------------
// Evaluation snapshots
// ---------------------------------------------------------------------------

// Copy produces an independent snapshot of the evaluation: instances,
// contexts and frames are deep-copied (cycle-safe via a per-copy cache); the
// environment, compiled code and native table are shared, being immutable.
func (e *Evaluation) Copy() *Evaluation {
	out := &Evaluation{
		env:          e.env,
		cfg:          e.cfg,
		compiler:     e.compiler,
		code:         e.code,
		instances:    make(map[Ref]*Object, len(e.instances)),
		nextInstance: e.nextInstance,
		result:       e.result,
	}

	contexts := make(map[*Context]*Context)
	var copyContext func(*Context) *Context
	copyContext = func(ctx *Context) *Context {
		if ctx == nil {
			return nil
		}
		if copied, ok := contexts[ctx]; ok {
			return copied
		}
		copied := &Context{
			locals:  make(map[string]Ref, len(ctx.locals)),
			handler: ctx.handler,
		}
		contexts[ctx] = copied
		copied.parent = copyContext(ctx.parent)
		for name, ref := range ctx.locals {
			copied.locals[name] = ref
		}
		return copied
	}

	out.root = copyContext(e.root)
	for id, obj := range e.instances {
		copied := &Object{
			Id:        obj.Id,
			ModuleFqn: obj.ModuleFqn,
			Ctx:       copyContext(obj.Ctx),
			Inner:     obj.Inner,
		}
		if elements, ok := obj.InnerElements(); ok {
			inner := make([]Ref, len(elements))
			copy(inner, elements)
			copied.Inner = inner
		}
		if obj.lazy != nil {
			copied.lazy = &lazyInitializer{expr: obj.lazy.expr, context: copyContext(obj.lazy.context)}
		}
		out.instances[id] = copied
	}
	for _, f := range e.frames {
		copied := &Frame{
			code:     f.code,
			pc:       f.pc,
			operands: append([]Ref{}, f.operands...),
			maxStack: f.maxStack,
			base:     copyContext(f.base),
			ctx:      copyContext(f.ctx),
			sink:     f.sink,
			label:    f.label,
		}
		out.frames = append(out.frames, copied)
	}
	return out
}
