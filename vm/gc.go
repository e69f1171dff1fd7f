package vm

// ---------------------------------------------------------------------------
// Garbage collection: mark-from-roots sweep over the instance table
// ---------------------------------------------------------------------------

// GarbageCollect removes every instance unreachable from the roots: the root
// context, each frame's current context, operand stack contents and PUSH
// operands. Only safe to run between instructions.
func (e *Evaluation) GarbageCollect() int {
	marked := make(map[Ref]bool)
	visited := make(map[*Context]bool)

	var markRef func(Ref)
	var markContext func(*Context)

	markRef = func(ref Ref) {
		if ref == Undefined || marked[ref] {
			return
		}
		marked[ref] = true
		obj := e.instances[ref]
		if obj == nil {
			return
		}
		markContext(obj.Ctx)
		if elements, ok := obj.InnerElements(); ok {
			for _, el := range elements {
				markRef(el)
			}
		}
		if obj.lazy != nil {
			markContext(obj.lazy.context)
		}
	}
	markContext = func(ctx *Context) {
		for cur := ctx; cur != nil && !visited[cur]; cur = cur.Parent() {
			visited[cur] = true
			for _, name := range cur.Names() {
				if ref, ok := cur.Get(name); ok {
					markRef(ref)
				}
			}
		}
	}

	markContext(e.root)
	for _, f := range e.frames {
		markContext(f.ctx)
		for _, ref := range f.operands {
			markRef(ref)
		}
		for _, ins := range f.code {
			if ins.Op == OpPush && ins.PushId != "" {
				markRef(Ref(ins.PushId))
			}
		}
	}

	collected := 0
	for id := range e.instances {
		if !marked[id] {
			delete(e.instances, id)
			collected++
		}
	}
	return collected
}
