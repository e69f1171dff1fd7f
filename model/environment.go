package model

import "strings"

// ---------------------------------------------------------------------------
// Well-known module FQNs
// ---------------------------------------------------------------------------

// Module names the VM depends on. Every linked Environment contains them.
const (
	ObjectFqn                 = "wollok.lang.Object"
	BooleanFqn                = "wollok.lang.Boolean"
	NumberFqn                 = "wollok.lang.Number"
	StringFqn                 = "wollok.lang.String"
	ListFqn                   = "wollok.lang.List"
	SetFqn                    = "wollok.lang.Set"
	ClosureFqn                = "wollok.lang.Closure"
	ExceptionFqn              = "wollok.lang.Exception"
	EvaluationErrorFqn        = "wollok.lang.EvaluationError"
	StackOverflowExceptionFqn = "wollok.lang.StackOverflowException"
)

// ---------------------------------------------------------------------------
// Environment: the root linked tree
// ---------------------------------------------------------------------------

// Environment is the root Package holding every user package plus the wollok
// standard-library root. It owns the id → node index; everything else refers
// to nodes by id.
type Environment struct {
	Root  *Package // unnamed container of top-level packages
	nodes map[Id]Node
}

// NewEnvironment wraps a root package. The linker registers nodes as it
// assigns ids.
func NewEnvironment(root *Package) *Environment {
	return &Environment{Root: root, nodes: make(map[Id]Node)}
}

// Register indexes a node under its id.
func (e *Environment) Register(n Node) {
	e.nodes[n.NodeId()] = n
}

// Node returns the node with the given id, or nil.
func (e *Environment) Node(id Id) Node {
	return e.nodes[id]
}

// Ids returns every registered id. The iteration order is unspecified.
func (e *Environment) Ids() []Id {
	out := make([]Id, 0, len(e.nodes))
	for id := range e.nodes {
		out = append(out, id)
	}
	return out
}

// FullyQualifiedName returns the dotted package path of a node. Anonymous
// singletons are named by their container plus their id.
func FullyQualifiedName(n Node) string {
	name := nodeName(n)
	parent := n.Parent()
	if parent == nil {
		return name
	}
	prefix := FullyQualifiedName(parent)
	if name == "" {
		return prefix + "#" + string(n.NodeId())
	}
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func nodeName(n Node) string {
	switch v := n.(type) {
	case *Package:
		return v.Name
	case *Class:
		return v.Name
	case *Mixin:
		return v.Name
	case *Singleton:
		return v.Name
	case *Variable:
		return v.Name
	case *Field:
		return v.Name
	case *Method:
		return v.Name
	case *Program:
		return v.Name
	case *Test:
		return v.Name
	case *Describe:
		return v.Name
	}
	return ""
}

// ByFqn resolves a dotted fully-qualified name to a node. Anonymous module
// names (`pkg#id`) resolve through the id index.
func (e *Environment) ByFqn(fqn string) (Node, bool) {
	if hash := strings.LastIndex(fqn, "#"); hash >= 0 {
		n := e.nodes[Id(fqn[hash+1:])]
		return n, n != nil
	}
	var current Node = e.Root
	for _, step := range strings.Split(fqn, ".") {
		next := memberNamed(current, step)
		if next == nil {
			return nil, false
		}
		current = next
	}
	return current, true
}

// ModuleByFqn resolves a fully-qualified name to a Module.
func (e *Environment) ModuleByFqn(fqn string) (Module, bool) {
	n, ok := e.ByFqn(fqn)
	if !ok {
		return nil, false
	}
	m, ok := n.(Module)
	return m, ok
}

func memberNamed(container Node, name string) Node {
	var members []Node
	switch v := container.(type) {
	case *Package:
		members = v.Members
	case *Describe:
		members = v.Members
	default:
		return nil
	}
	for _, m := range members {
		if nodeName(m) == name {
			return m
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Linearization
// ---------------------------------------------------------------------------

// Hierarchy returns the module linearization: the module itself, then its
// supertypes depth-first in declaration order (mixins before the superclass),
// duplicates removed keeping the leftmost occurrence. Inheritance and mixin
// cycles are tolerated: the seen-set guarantees termination.
func (e *Environment) Hierarchy(m Module) []Module {
	var out []Module
	seen := make(map[Id]bool)
	var visit func(Module)
	visit = func(mod Module) {
		if seen[mod.NodeId()] {
			return
		}
		seen[mod.NodeId()] = true
		out = append(out, mod)
		for _, sup := range mod.Supertypes() {
			if sup.Ref == nil {
				continue
			}
			target, ok := e.Node(sup.Ref.TargetId).(Module)
			if !ok {
				continue
			}
			visit(target)
		}
	}
	visit(m)
	return out
}

// Inherits reports whether module is, or transitively extends, the module
// named by fqn.
func (e *Environment) Inherits(m Module, fqn string) bool {
	for _, mod := range e.Hierarchy(m) {
		if FullyQualifiedName(mod) == fqn {
			return true
		}
	}
	return false
}

// LookupMethod resolves a message against a module's linearization. When
// lookupStartFqn is non-empty the search starts after that module, which is
// how super sends skip the enclosing module's own definition.
func (e *Environment) LookupMethod(m Module, message string, argc int, lookupStartFqn string) *Method {
	startReached := lookupStartFqn == ""
	for _, mod := range e.Hierarchy(m) {
		if startReached {
			for _, member := range mod.ModuleMembers() {
				if method, ok := member.(*Method); ok && method.Name == message && method.Matches(argc) {
					if method.Body != nil || method.IsNative {
						return method
					}
				}
			}
		}
		if FullyQualifiedName(mod) == lookupStartFqn {
			startReached = true
		}
	}
	return nil
}

// LookupConstructor resolves a constructor by arity along the linearization.
func (e *Environment) LookupConstructor(m Module, argc int, lookupStartFqn string) (*Constructor, Module) {
	startReached := lookupStartFqn == ""
	for _, mod := range e.Hierarchy(m) {
		if startReached {
			for _, member := range mod.ModuleMembers() {
				if ctor, ok := member.(*Constructor); ok && ctor.Matches(argc) {
					return ctor, mod
				}
			}
		}
		if FullyQualifiedName(mod) == lookupStartFqn {
			startReached = true
		}
	}
	return nil, nil
}

// AllFields returns the fields of a module's full hierarchy, duplicates
// removed keeping the most specific declaration.
func (e *Environment) AllFields(m Module) []*Field {
	var out []*Field
	seen := make(map[string]bool)
	for _, mod := range e.Hierarchy(m) {
		for _, member := range mod.ModuleMembers() {
			if f, ok := member.(*Field); ok && !seen[f.Name] {
				seen[f.Name] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// Superclass returns the first supertype that resolves to a Class, or nil.
func (e *Environment) Superclass(m Module) Module {
	for _, sup := range m.Supertypes() {
		if sup.Ref == nil {
			continue
		}
		if target, ok := e.Node(sup.Ref.TargetId).(*Class); ok {
			return target
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tree walks
// ---------------------------------------------------------------------------

// Walk visits node and all its descendants in tree order.
func Walk(n Node, visit func(Node)) {
	visit(n)
	for _, child := range n.Children() {
		if child != nil {
			Walk(child, visit)
		}
	}
}

// NamedSingletons returns every named singleton in tree order. The bootstrap
// frame initializes them in this order.
func (e *Environment) NamedSingletons() []*Singleton {
	var out []*Singleton
	Walk(e.Root, func(n Node) {
		if s, ok := n.(*Singleton); ok && s.Name != "" {
			out = append(out, s)
		}
	})
	return out
}

// PackageVariables returns every package-level variable in tree order. They
// become lazily-initialized globals.
func (e *Environment) PackageVariables() []*Variable {
	var out []*Variable
	Walk(e.Root, func(n Node) {
		if p, ok := n.(*Package); ok {
			for _, m := range p.Members {
				if v, ok := m.(*Variable); ok {
					out = append(out, v)
				}
			}
		}
	})
	return out
}

// Programs returns every program in tree order.
func (e *Environment) Programs() []*Program {
	var out []*Program
	Walk(e.Root, func(n Node) {
		if p, ok := n.(*Program); ok {
			out = append(out, p)
		}
	})
	return out
}

// Tests returns every test in tree order, including tests nested in describes.
func (e *Environment) Tests() []*Test {
	var out []*Test
	Walk(e.Root, func(n Node) {
		if t, ok := n.(*Test); ok {
			out = append(out, t)
		}
	})
	return out
}
