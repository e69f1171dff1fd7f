// Package model defines the node tree shared by the linker, the compiler and
// the virtual machine. The parser (an external collaborator) produces trees of
// these variants; the linker decorates them with ids, parents and scopes.
package model

import "github.com/google/uuid"

// ---------------------------------------------------------------------------
// Ids and source maps
// ---------------------------------------------------------------------------

// Id is an opaque node identifier, assigned by the linker. Uniqueness within a
// single linked Environment is the only guarantee.
type Id string

// NewId returns a fresh node id.
func NewId() Id {
	return Id(uuid.NewString())
}

// Position is an opaque source location. The core carries it through but never
// inspects it.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Span is an opaque source range attached to nodes by the parser.
type Span struct {
	Start Position
	End   Position
}

// ---------------------------------------------------------------------------
// Node: tagged-variant tree
// ---------------------------------------------------------------------------

// Kind discriminates node variants.
type Kind string

const (
	KindPackage           Kind = "Package"
	KindClass             Kind = "Class"
	KindMixin             Kind = "Mixin"
	KindSingleton         Kind = "Singleton"
	KindMethod            Kind = "Method"
	KindConstructor       Kind = "Constructor"
	KindField             Kind = "Field"
	KindVariable          Kind = "Variable"
	KindParameter         Kind = "Parameter"
	KindBody              Kind = "Body"
	KindReference         Kind = "Reference"
	KindLiteral           Kind = "Literal"
	KindSend              Kind = "Send"
	KindSuper             Kind = "Super"
	KindSelf              Kind = "Self"
	KindNew               Kind = "New"
	KindAssignment        Kind = "Assignment"
	KindReturn            Kind = "Return"
	KindIf                Kind = "If"
	KindTry               Kind = "Try"
	KindCatch             Kind = "Catch"
	KindThrow             Kind = "Throw"
	KindProgram           Kind = "Program"
	KindTest              Kind = "Test"
	KindDescribe          Kind = "Describe"
	KindImport            Kind = "Import"
	KindParameterizedType Kind = "ParameterizedType"
	KindNamedArgument     Kind = "NamedArgument"
)

// Node is the interface implemented by all tree variants.
type Node interface {
	Kind() Kind
	NodeId() Id
	SetNodeId(Id)
	Parent() Node
	SetParent(Node)
	NodeScope() *Scope
	SetNodeScope(*Scope)
	Source() *Span
	Children() []Node
	node() // marker method
}

// base carries the decoration every node shares. The parent back-reference is
// resolved post-link and never implies ownership.
type base struct {
	id     Id
	parent Node
	scope  *Scope
	src    *Span
}

func (b *base) NodeId() Id             { return b.id }
func (b *base) SetNodeId(id Id)        { b.id = id }
func (b *base) Parent() Node           { return b.parent }
func (b *base) SetParent(p Node)       { b.parent = p }
func (b *base) NodeScope() *Scope      { return b.scope }
func (b *base) SetNodeScope(s *Scope)  { b.scope = s }
func (b *base) Source() *Span          { return b.src }
func (b *base) SetSource(s *Span)      { b.src = s }
func (b *base) node()                  {}

// ---------------------------------------------------------------------------
// Containers
// ---------------------------------------------------------------------------

// Package is a namespace node. Packages nest and merge by name.
type Package struct {
	base
	Name    string
	Imports []*Import
	Members []Node
}

func (n *Package) Kind() Kind { return KindPackage }
func (n *Package) Children() []Node {
	out := make([]Node, 0, len(n.Imports)+len(n.Members))
	for _, i := range n.Imports {
		out = append(out, i)
	}
	return append(out, n.Members...)
}

// Import brings members of another package into scope. A generic import
// (`import pkg.*`) brings every member; a specific one brings a single entity.
type Import struct {
	base
	Entity    *Reference
	IsGeneric bool
}

func (n *Import) Kind() Kind { return KindImport }
func (n *Import) Children() []Node {
	if n.Entity == nil {
		return nil
	}
	return []Node{n.Entity}
}

// ---------------------------------------------------------------------------
// Modules
// ---------------------------------------------------------------------------

// Module is implemented by Class, Mixin and Singleton: the nodes that own
// fields and methods and participate in linearization.
type Module interface {
	Node
	ModuleName() string
	ModuleMembers() []Node
	Supertypes() []*ParameterizedType
}

// ParameterizedType is a supertype clause: a reference to a module plus the
// arguments handed to its initialization.
type ParameterizedType struct {
	base
	Ref  *Reference
	Args []Node // positional arguments
	// NamedArgs are the named initialization arguments (`new C(x = 1)` style
	// supercall). Evaluation order follows source order.
	NamedArgs []*NamedArgument
}

func (n *ParameterizedType) Kind() Kind { return KindParameterizedType }
func (n *ParameterizedType) Children() []Node {
	var out []Node
	if n.Ref != nil {
		out = append(out, n.Ref)
	}
	out = append(out, n.Args...)
	for _, a := range n.NamedArgs {
		out = append(out, a)
	}
	return out
}

// Class declares a user class: single superclass, any number of mixins.
// The first supertype entry naming a class is the superclass; entries naming
// mixins compose left-to-right.
type Class struct {
	base
	Name       string
	Supers     []*ParameterizedType
	Members    []Node
}

func (n *Class) Kind() Kind                       { return KindClass }
func (n *Class) ModuleName() string               { return n.Name }
func (n *Class) ModuleMembers() []Node            { return n.Members }
func (n *Class) Supertypes() []*ParameterizedType { return n.Supers }
func (n *Class) Children() []Node {
	out := make([]Node, 0, len(n.Supers)+len(n.Members))
	for _, s := range n.Supers {
		out = append(out, s)
	}
	return append(out, n.Members...)
}

// Mixin is a module composable into classes and singletons.
type Mixin struct {
	base
	Name    string
	Supers  []*ParameterizedType
	Members []Node
}

func (n *Mixin) Kind() Kind                       { return KindMixin }
func (n *Mixin) ModuleName() string               { return n.Name }
func (n *Mixin) ModuleMembers() []Node            { return n.Members }
func (n *Mixin) Supertypes() []*ParameterizedType { return n.Supers }
func (n *Mixin) Children() []Node {
	out := make([]Node, 0, len(n.Supers)+len(n.Members))
	for _, s := range n.Supers {
		out = append(out, s)
	}
	return append(out, n.Members...)
}

// Singleton is a named or anonymous object. Named singletons are pre-created
// and self-initialize when an Evaluation is constructed; anonymous ones appear
// as Literal values (object literals and closures).
type Singleton struct {
	base
	Name    string // empty for anonymous singletons
	Supers  []*ParameterizedType
	Members []Node
}

func (n *Singleton) Kind() Kind                       { return KindSingleton }
func (n *Singleton) ModuleName() string               { return n.Name }
func (n *Singleton) ModuleMembers() []Node            { return n.Members }
func (n *Singleton) Supertypes() []*ParameterizedType { return n.Supers }
func (n *Singleton) Children() []Node {
	out := make([]Node, 0, len(n.Supers)+len(n.Members))
	for _, s := range n.Supers {
		out = append(out, s)
	}
	return append(out, n.Members...)
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// Method declares a method. A method with IsNative set has no body; its
// implementation is looked up in the evaluation's native table under
// `<moduleFqn>.<name>`. A method with IsExpression set returns its body's
// last sentence value implicitly.
type Method struct {
	base
	Name         string
	Parameters   []*Parameter
	Body         *Body
	IsNative     bool
	IsOverride   bool
	IsExpression bool
}

func (n *Method) Kind() Kind { return KindMethod }
func (n *Method) Children() []Node {
	out := make([]Node, 0, len(n.Parameters)+1)
	for _, p := range n.Parameters {
		out = append(out, p)
	}
	if n.Body != nil {
		out = append(out, n.Body)
	}
	return out
}

// Arity returns the number of fixed parameters.
func (n *Method) Arity() int { return len(n.Parameters) }

// HasVarArg reports whether the last parameter is variadic.
func (n *Method) HasVarArg() bool {
	return len(n.Parameters) > 0 && n.Parameters[len(n.Parameters)-1].IsVarArg
}

// Matches reports whether the method accepts a call with the given number of
// arguments: exact fixed arity, or at least arity-1 when variadic.
func (n *Method) Matches(argc int) bool {
	if n.HasVarArg() {
		return argc >= len(n.Parameters)-1
	}
	return argc == len(n.Parameters)
}

// Constructor declares a constructor. BaseCallArgs/BaseCallsSuper describe the
// optional delegation clause; when absent, a zero-argument super delegation is
// implied.
type Constructor struct {
	base
	Parameters    []*Parameter
	Body          *Body
	BaseCallArgs  []Node
	BaseCallsSuper bool // true: delegate to super; false with args: delegate to self
	HasBaseCall   bool
}

func (n *Constructor) Kind() Kind { return KindConstructor }
func (n *Constructor) Children() []Node {
	out := make([]Node, 0, len(n.Parameters)+len(n.BaseCallArgs)+1)
	for _, p := range n.Parameters {
		out = append(out, p)
	}
	out = append(out, n.BaseCallArgs...)
	if n.Body != nil {
		out = append(out, n.Body)
	}
	return out
}

// Matches mirrors Method.Matches for constructor lookup.
func (n *Constructor) Matches(argc int) bool {
	if len(n.Parameters) > 0 && n.Parameters[len(n.Parameters)-1].IsVarArg {
		return argc >= len(n.Parameters)-1
	}
	return argc == len(n.Parameters)
}

// Field declares module state, initialized by Value on instantiation.
type Field struct {
	base
	Name       string
	IsConstant bool
	IsProperty bool
	Value      Node // nil means initialized to null
}

func (n *Field) Kind() Kind { return KindField }
func (n *Field) Children() []Node {
	if n.Value == nil {
		return nil
	}
	return []Node{n.Value}
}

// Variable declares a local or package-level variable. Package-level variables
// become lazily-initialized globals.
type Variable struct {
	base
	Name       string
	IsConstant bool
	Value      Node // nil means initialized to null
}

func (n *Variable) Kind() Kind { return KindVariable }
func (n *Variable) Children() []Node {
	if n.Value == nil {
		return nil
	}
	return []Node{n.Value}
}

// Parameter declares a method, constructor or catch parameter.
type Parameter struct {
	base
	Name     string
	IsVarArg bool
}

func (n *Parameter) Kind() Kind       { return KindParameter }
func (n *Parameter) Children() []Node { return nil }

// Body is a sentence sequence.
type Body struct {
	base
	Sentences []Node
}

func (n *Body) Kind() Kind       { return KindBody }
func (n *Body) Children() []Node { return n.Sentences }

// ---------------------------------------------------------------------------
// Expressions and sentences
// ---------------------------------------------------------------------------

// Reference is a symbolic name use. After linking, TargetId identifies the
// referenced node.
type Reference struct {
	base
	Name     string
	TargetId Id
}

func (n *Reference) Kind() Kind       { return KindReference }
func (n *Reference) Children() []Node { return nil }

// CollectionLiteral is the payload of a list or set literal.
type CollectionLiteral struct {
	Fqn      string // "wollok.lang.List" or "wollok.lang.Set"
	Elements []Node
}

// Literal is a constant. Value is one of: nil (null), bool, float64, string,
// *Singleton (object literal / closure) or *CollectionLiteral.
type Literal struct {
	base
	Value any
}

func (n *Literal) Kind() Kind { return KindLiteral }
func (n *Literal) Children() []Node {
	switch v := n.Value.(type) {
	case *Singleton:
		return []Node{v}
	case *CollectionLiteral:
		return v.Elements
	}
	return nil
}

// Send is a message send: receiver.message(args).
type Send struct {
	base
	Receiver Node
	Message  string
	Args     []Node
}

func (n *Send) Kind() Kind { return KindSend }
func (n *Send) Children() []Node {
	out := make([]Node, 0, len(n.Args)+1)
	if n.Receiver != nil {
		out = append(out, n.Receiver)
	}
	return append(out, n.Args...)
}

// Super re-sends the enclosing method's message starting the lookup past the
// enclosing module.
type Super struct {
	base
	Args []Node
}

func (n *Super) Kind() Kind       { return KindSuper }
func (n *Super) Children() []Node { return n.Args }

// Self references the current receiver.
type Self struct {
	base
}

func (n *Self) Kind() Kind       { return KindSelf }
func (n *Self) Children() []Node { return nil }

// NamedArgument pairs an initialization name with its value.
type NamedArgument struct {
	base
	Name  string
	Value Node
}

func (n *NamedArgument) Kind() Kind       { return KindNamedArgument }
func (n *NamedArgument) Children() []Node { return []Node{n.Value} }

// New instantiates a class.
type New struct {
	base
	Instantiated *Reference
	Args         []Node
	NamedArgs    []*NamedArgument
}

func (n *New) Kind() Kind { return KindNew }
func (n *New) Children() []Node {
	var out []Node
	if n.Instantiated != nil {
		out = append(out, n.Instantiated)
	}
	out = append(out, n.Args...)
	for _, a := range n.NamedArgs {
		out = append(out, a)
	}
	return out
}

// Assignment writes a variable or field.
type Assignment struct {
	base
	Variable *Reference
	Value    Node
}

func (n *Assignment) Kind() Kind { return KindAssignment }
func (n *Assignment) Children() []Node {
	var out []Node
	if n.Variable != nil {
		out = append(out, n.Variable)
	}
	if n.Value != nil {
		out = append(out, n.Value)
	}
	return out
}

// Return exits the enclosing method with an optional value.
type Return struct {
	base
	Value Node // nil returns undefined
}

func (n *Return) Kind() Kind { return KindReturn }
func (n *Return) Children() []Node {
	if n.Value == nil {
		return nil
	}
	return []Node{n.Value}
}

// If is a conditional expression. Both branches are expression-clauses.
type If struct {
	base
	Condition Node
	Then      *Body
	Else      *Body // nil means empty else
}

func (n *If) Kind() Kind { return KindIf }
func (n *If) Children() []Node {
	var out []Node
	if n.Condition != nil {
		out = append(out, n.Condition)
	}
	if n.Then != nil {
		out = append(out, n.Then)
	}
	if n.Else != nil {
		out = append(out, n.Else)
	}
	return out
}

// Try runs Body with Catches installed; Always runs unconditionally after.
type Try struct {
	base
	Body    *Body
	Catches []*Catch
	Always  *Body // nil means no always clause
}

func (n *Try) Kind() Kind { return KindTry }
func (n *Try) Children() []Node {
	var out []Node
	if n.Body != nil {
		out = append(out, n.Body)
	}
	for _, c := range n.Catches {
		out = append(out, c)
	}
	if n.Always != nil {
		out = append(out, n.Always)
	}
	return out
}

// Catch handles exceptions inheriting from ParameterType (or any throwable
// when ParameterType is nil), binding the instance to Parameter.
type Catch struct {
	base
	Parameter     *Parameter
	ParameterType *Reference
	Body          *Body
}

func (n *Catch) Kind() Kind { return KindCatch }
func (n *Catch) Children() []Node {
	var out []Node
	if n.Parameter != nil {
		out = append(out, n.Parameter)
	}
	if n.ParameterType != nil {
		out = append(out, n.ParameterType)
	}
	if n.Body != nil {
		out = append(out, n.Body)
	}
	return out
}

// Throw raises an exception instance.
type Throw struct {
	base
	Exception Node
}

func (n *Throw) Kind() Kind { return KindThrow }
func (n *Throw) Children() []Node {
	if n.Exception == nil {
		return nil
	}
	return []Node{n.Exception}
}

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// Program is a runnable entry point.
type Program struct {
	base
	Name string
	Body *Body
}

func (n *Program) Kind() Kind { return KindProgram }
func (n *Program) Children() []Node {
	if n.Body == nil {
		return nil
	}
	return []Node{n.Body}
}

// Test is a runnable assertion body.
type Test struct {
	base
	Name string
	Body *Body
}

func (n *Test) Kind() Kind { return KindTest }
func (n *Test) Children() []Node {
	if n.Body == nil {
		return nil
	}
	return []Node{n.Body}
}

// Describe groups tests and shared fixture members.
type Describe struct {
	base
	Name    string
	Members []Node
}

func (n *Describe) Kind() Kind       { return KindDescribe }
func (n *Describe) Children() []Node { return n.Members }

// ---------------------------------------------------------------------------
// Closure sugar
// ---------------------------------------------------------------------------

// ClosureApplyMethod is the message a closure literal responds to.
const ClosureApplyMethod = "apply"

// NewClosure desugars a closure literal into an anonymous singleton extending
// wollok.lang.Closure with a single apply method. The enclosing lexical
// context is captured when the literal is instantiated, not when applied.
func NewClosure(parameters []*Parameter, body *Body) *Literal {
	return &Literal{Value: &Singleton{
		Supers: []*ParameterizedType{{Ref: &Reference{Name: "wollok.lang.Closure"}}},
		Members: []Node{&Method{
			Name:         ClosureApplyMethod,
			Parameters:   parameters,
			Body:         body,
			IsExpression: true,
		}},
	}}
}
