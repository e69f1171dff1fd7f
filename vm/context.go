package vm

// ---------------------------------------------------------------------------
// Context: nested lexical environment
// ---------------------------------------------------------------------------

// Context is a lexical scope frame: local bindings over an optional parent,
// with an optional exception-handler PC. Contexts form a DAG rooted at the
// evaluation's root context; a context's parent never becomes nil after
// construction.
type Context struct {
	parent  *Context
	locals  map[string]Ref
	handler int // absolute PC of the exception handler, or NoHandler
}

// NewContext creates a context extending parent.
func NewContext(parent *Context) *Context {
	return &Context{parent: parent, locals: make(map[string]Ref), handler: NoHandler}
}

// Parent returns the enclosing context.
func (c *Context) Parent() *Context { return c.parent }

// Handler returns the exception-handler PC, or NoHandler.
func (c *Context) Handler() int { return c.handler }

// SetHandler records the exception-handler PC for this context.
func (c *Context) SetHandler(pc int) { c.handler = pc }

// Get resolves a name along the context chain.
func (c *Context) Get(name string) (Ref, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if ref, ok := cur.locals[name]; ok {
			return ref, true
		}
	}
	return Undefined, false
}

// GetContext returns the context in the chain that binds name.
func (c *Context) GetContext(name string) (*Context, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if _, ok := cur.locals[name]; ok {
			return cur, true
		}
	}
	return nil, false
}

// Set binds a name in this context.
func (c *Context) Set(name string, ref Ref) {
	c.locals[name] = ref
}

// Update rebinds a name in the nearest context that already holds it.
// Reports whether a binding was found.
func (c *Context) Update(name string, ref Ref) bool {
	for cur := c; cur != nil; cur = cur.parent {
		if _, ok := cur.locals[name]; ok {
			cur.locals[name] = ref
			return true
		}
	}
	return false
}

// Names returns the locally-bound names (for tracing and copying).
func (c *Context) Names() []string {
	out := make([]string, 0, len(c.locals))
	for name := range c.locals {
		out = append(out, name)
	}
	return out
}
