// Package linker merges parsed package trees into a single Environment,
// assigns ids, wires parents and resolves every symbolic reference.
package linker

import (
	"strings"

	"github.com/tliron/commonlog"

	"github.com/uqbar-project/wollok-go/model"
)

var log = commonlog.GetLogger("wollok.linker")

// Link merges the given packages over the base environment and produces a
// fully linked Environment. The base (usually the wollok standard library) is
// copied, never mutated, so it can be linked against repeatedly. Inheritance
// and mixin cycles in the input are tolerated; diagnosing them is the
// validator's job.
func Link(base *model.Environment, packages ...*model.Package) (*model.Environment, error) {
	inputs := make([]*model.Package, 0, len(packages)+4)
	if base != nil {
		for _, member := range base.Root.Members {
			if pkg, ok := member.(*model.Package); ok {
				inputs = append(inputs, model.Copy(pkg).(*model.Package))
			}
		}
	}
	for _, pkg := range packages {
		if pkg == nil {
			return nil, &MalformedTreeError{Reason: "nil package"}
		}
		inputs = append(inputs, model.Copy(pkg).(*model.Package))
	}

	merged, err := mergePackages(inputs)
	if err != nil {
		return nil, err
	}
	root := &model.Package{}
	for _, pkg := range merged {
		root.Members = append(root.Members, pkg)
	}

	env := model.NewEnvironment(root)
	lk := &linking{env: env}
	lk.assign(root, nil)
	if err := lk.resolveAll(); err != nil {
		return nil, err
	}
	lk.warnCycles()
	return env, nil
}

// linking holds the per-run state of a link.
type linking struct {
	env *model.Environment
	err error
}

// fail records the first resolution error; later ones are dropped.
func (lk *linking) fail(err error) {
	if lk.err == nil {
		lk.err = err
	}
}

// unresolved records an UnresolvedReference failure for a reference site.
func (lk *linking) unresolved(ref *model.Reference) {
	lk.fail(&UnresolvedReferenceError{Name: ref.Name, Site: ref.NodeId()})
}

// ---------------------------------------------------------------------------
// Id assignment and parent wiring
// ---------------------------------------------------------------------------

// assign gives every node a fresh id, registers it and wires its parent.
func (lk *linking) assign(n model.Node, parent model.Node) {
	n.SetNodeId(model.NewId())
	n.SetParent(parent)
	lk.env.Register(n)
	for _, child := range n.Children() {
		if child != nil {
			lk.assign(child, n)
		}
	}
}

// ---------------------------------------------------------------------------
// Scope construction and reference resolution
// ---------------------------------------------------------------------------

// resolveAll builds the scope chain and resolves every reference. Stages:
// root scope, package scopes (with imports), supertype references, module
// scopes (hierarchy contributions) and finally member bodies.
func (lk *linking) resolveAll() error {
	rootScope := model.NewScope(nil)
	lk.env.Root.SetNodeScope(rootScope)
	for _, member := range lk.env.Root.Members {
		if pkg, ok := member.(*model.Package); ok {
			rootScope.Bind(pkg.Name, pkg.NodeId())
		}
	}
	// wollok.lang and wollok.lib are implicitly imported everywhere.
	for _, autoImport := range []string{"wollok.lang", "wollok.lib"} {
		if n, ok := lk.env.ByFqn(autoImport); ok {
			if pkg, ok := n.(*model.Package); ok {
				for _, member := range pkg.Members {
					if name := memberName(member); name != "" {
						rootScope.BindIfAbsent(name, member.NodeId())
					}
				}
			}
		}
	}

	var pkgScopes []*model.Package
	var walkPackages func(pkg *model.Package, outer *model.Scope)
	walkPackages = func(pkg *model.Package, outer *model.Scope) {
		importScope := model.NewScope(outer)
		lk.bindImports(pkg, importScope, rootScope)
		scope := model.NewScope(importScope)
		for _, member := range pkg.Members {
			if name := memberName(member); name != "" {
				scope.Bind(name, member.NodeId())
			}
		}
		pkg.SetNodeScope(scope)
		pkgScopes = append(pkgScopes, pkg)
		for _, member := range pkg.Members {
			if nested, ok := member.(*model.Package); ok {
				walkPackages(nested, scope)
			}
		}
	}
	for _, member := range lk.env.Root.Members {
		if pkg, ok := member.(*model.Package); ok {
			walkPackages(pkg, rootScope)
		}
	}

	// Supertype references resolve in package scope, before module scopes
	// exist: the hierarchy is needed to build them. Nested packages resolve
	// against their own scope in their own iteration.
	for _, pkg := range pkgScopes {
		for _, member := range pkg.Members {
			if _, nested := member.(*model.Package); nested {
				continue
			}
			lk.resolveSupertypeRefs(member, pkg.NodeScope())
		}
	}

	// Member bodies.
	for _, pkg := range pkgScopes {
		for _, member := range pkg.Members {
			lk.resolveMember(member, pkg.NodeScope())
		}
	}
	return lk.err
}

// bindImports resolves a package's import clauses against the root scope and
// binds the imported names. Imports sit between the enclosing scope and the
// package's own members, so local names shadow them.
func (lk *linking) bindImports(pkg *model.Package, into *model.Scope, rootScope *model.Scope) {
	for _, imp := range pkg.Imports {
		if imp.Entity == nil {
			lk.fail(&MalformedTreeError{Reason: "import without entity"})
			continue
		}
		target, ok := lk.resolveQualified(rootScope, imp.Entity.Name)
		if !ok {
			lk.unresolved(imp.Entity)
			continue
		}
		imp.Entity.TargetId = target.NodeId()
		if imp.IsGeneric {
			imported, ok := target.(*model.Package)
			if !ok {
				lk.fail(&MalformedTreeError{Reason: "generic import of non-package " + imp.Entity.Name})
				continue
			}
			for _, member := range imported.Members {
				if name := memberName(member); name != "" {
					into.Bind(name, member.NodeId())
				}
			}
		} else {
			segments := strings.Split(imp.Entity.Name, ".")
			into.Bind(segments[len(segments)-1], target.NodeId())
		}
	}
}

// resolveQualified resolves a possibly-dotted name: the head against the
// scope chain, the rest navigating container members.
func (lk *linking) resolveQualified(scope *model.Scope, name string) (model.Node, bool) {
	segments := strings.Split(name, ".")
	id, ok := scope.Resolve(segments[0])
	if !ok {
		return nil, false
	}
	current := lk.env.Node(id)
	for _, segment := range segments[1:] {
		if current == nil {
			return nil, false
		}
		current = packageMember(current, segment)
	}
	return current, current != nil
}

func packageMember(container model.Node, name string) model.Node {
	var members []model.Node
	switch v := container.(type) {
	case *model.Package:
		members = v.Members
	case *model.Describe:
		members = v.Members
	default:
		return nil
	}
	for _, m := range members {
		if memberName(m) == name {
			return m
		}
	}
	return nil
}

// resolveSupertypeRefs resolves the type references of every module reachable
// from a package member, including modules in describes and singleton
// literals nested in bodies (those re-resolve later with their lexical scope;
// the type refs themselves are package-scoped either way).
func (lk *linking) resolveSupertypeRefs(n model.Node, scope *model.Scope) {
	model.Walk(n, func(child model.Node) {
		mod, ok := child.(model.Module)
		if !ok {
			return
		}
		for _, sup := range mod.Supertypes() {
			if sup.Ref == nil || sup.Ref.TargetId != "" {
				continue
			}
			target, ok := lk.resolveQualified(scope, sup.Ref.Name)
			if !ok {
				lk.unresolved(sup.Ref)
				continue
			}
			sup.Ref.TargetId = target.NodeId()
		}
	})
}

// moduleScope extends the enclosing scope with the module's hierarchy
// contributions: fields and methods of the linearization, first occurrence
// winning.
func (lk *linking) moduleScope(mod model.Module, outer *model.Scope) *model.Scope {
	scope := model.NewScope(outer)
	for _, m := range lk.env.Hierarchy(mod) {
		for _, member := range m.ModuleMembers() {
			switch v := member.(type) {
			case *model.Field:
				scope.BindIfAbsent(v.Name, v.NodeId())
			case *model.Method:
				scope.BindIfAbsent(v.Name, v.NodeId())
			}
		}
	}
	mod.SetNodeScope(scope)
	return scope
}

// resolveMember resolves a package-level member.
func (lk *linking) resolveMember(member model.Node, pkgScope *model.Scope) {
	switch v := member.(type) {
	case *model.Package:
		// handled by the package walk
	case *model.Class, *model.Mixin, *model.Singleton:
		lk.resolveModule(member.(model.Module), pkgScope)
	case *model.Variable:
		scope := model.NewScope(pkgScope)
		scope.Bind(v.Name, v.NodeId())
		v.SetNodeScope(scope)
		if v.Value != nil {
			lk.resolveExpr(v.Value, scope)
		}
	case *model.Program:
		v.SetNodeScope(pkgScope)
		lk.resolveBody(v.Body, model.NewScope(pkgScope))
	case *model.Test:
		v.SetNodeScope(pkgScope)
		lk.resolveBody(v.Body, model.NewScope(pkgScope))
	case *model.Describe:
		scope := model.NewScope(pkgScope)
		for _, m := range v.Members {
			if name := memberName(m); name != "" {
				scope.Bind(name, m.NodeId())
			}
		}
		v.SetNodeScope(scope)
		for _, m := range v.Members {
			lk.resolveMember(m, scope)
		}
	}
}

// resolveModule resolves a module's supercall arguments, field initializers
// and member bodies. Supercall arguments and field initializers see the
// module's fields (that is what `super`-position references resolve against);
// parameters shadow fields inside methods.
func (lk *linking) resolveModule(mod model.Module, outer *model.Scope) {
	scope := lk.moduleScope(mod, outer)
	for _, sup := range mod.Supertypes() {
		sup.SetNodeScope(scope)
		for _, arg := range sup.Args {
			lk.resolveExpr(arg, scope)
		}
		for _, named := range sup.NamedArgs {
			named.SetNodeScope(scope)
			lk.resolveExpr(named.Value, scope)
		}
	}
	for _, member := range mod.ModuleMembers() {
		switch v := member.(type) {
		case *model.Field:
			v.SetNodeScope(scope)
			if v.Value != nil {
				lk.resolveExpr(v.Value, scope)
			}
		case *model.Method:
			methodScope := model.NewScope(scope)
			for _, p := range v.Parameters {
				methodScope.Bind(p.Name, p.NodeId())
				p.SetNodeScope(methodScope)
			}
			v.SetNodeScope(methodScope)
			if v.Body != nil {
				lk.resolveBody(v.Body, model.NewScope(methodScope))
			}
		case *model.Constructor:
			ctorScope := model.NewScope(scope)
			for _, p := range v.Parameters {
				ctorScope.Bind(p.Name, p.NodeId())
				p.SetNodeScope(ctorScope)
			}
			v.SetNodeScope(ctorScope)
			for _, arg := range v.BaseCallArgs {
				lk.resolveExpr(arg, ctorScope)
			}
			if v.Body != nil {
				lk.resolveBody(v.Body, model.NewScope(ctorScope))
			}
		}
	}
}

// resolveBody resolves sentences in order. A variable binds from its point of
// declaration, visible to its own initializer.
func (lk *linking) resolveBody(body *model.Body, scope *model.Scope) {
	if body == nil {
		return
	}
	body.SetNodeScope(scope)
	for _, sentence := range body.Sentences {
		if v, ok := sentence.(*model.Variable); ok {
			scope.Bind(v.Name, v.NodeId())
			v.SetNodeScope(scope)
			if v.Value != nil {
				lk.resolveExpr(v.Value, scope)
			}
			continue
		}
		lk.resolveExpr(sentence, scope)
	}
}

// resolveExpr resolves an expression tree against the current lexical scope.
func (lk *linking) resolveExpr(n model.Node, scope *model.Scope) {
	if n == nil {
		return
	}
	n.SetNodeScope(scope)
	switch v := n.(type) {
	case *model.Reference:
		if v.TargetId != "" {
			return
		}
		target, ok := lk.resolveQualified(scope, v.Name)
		if !ok {
			lk.unresolved(v)
			return
		}
		v.TargetId = target.NodeId()
	case *model.Literal:
		switch lit := v.Value.(type) {
		case *model.Singleton:
			// An anonymous singleton captures the surrounding lexical scope:
			// closure parameters of enclosing methods stay visible inside.
			lk.resolveSupertypeRefs(lit, scope)
			lk.resolveModule(lit, scope)
		case *model.CollectionLiteral:
			for _, el := range lit.Elements {
				lk.resolveExpr(el, scope)
			}
		}
	case *model.Send:
		lk.resolveExpr(v.Receiver, scope)
		for _, arg := range v.Args {
			lk.resolveExpr(arg, scope)
		}
	case *model.Super:
		for _, arg := range v.Args {
			lk.resolveExpr(arg, scope)
		}
	case *model.Self:
		// nothing to resolve
	case *model.New:
		if v.Instantiated != nil {
			lk.resolveExpr(v.Instantiated, scope)
		}
		for _, arg := range v.Args {
			lk.resolveExpr(arg, scope)
		}
		for _, named := range v.NamedArgs {
			named.SetNodeScope(scope)
			lk.resolveExpr(named.Value, scope)
		}
	case *model.Assignment:
		lk.resolveExpr(v.Variable, scope)
		lk.resolveExpr(v.Value, scope)
	case *model.Return:
		lk.resolveExpr(v.Value, scope)
	case *model.If:
		lk.resolveExpr(v.Condition, scope)
		lk.resolveBody(v.Then, model.NewScope(scope))
		if v.Else != nil {
			lk.resolveBody(v.Else, model.NewScope(scope))
		}
	case *model.Try:
		lk.resolveBody(v.Body, model.NewScope(scope))
		for _, c := range v.Catches {
			catchScope := model.NewScope(scope)
			if c.ParameterType != nil {
				lk.resolveExpr(c.ParameterType, catchScope)
			}
			if c.Parameter != nil {
				catchScope.Bind(c.Parameter.Name, c.Parameter.NodeId())
				c.Parameter.SetNodeScope(catchScope)
			}
			c.SetNodeScope(catchScope)
			lk.resolveBody(c.Body, catchScope)
		}
		if v.Always != nil {
			lk.resolveBody(v.Always, model.NewScope(scope))
		}
	case *model.Throw:
		lk.resolveExpr(v.Exception, scope)
	case *model.Variable:
		// local variable outside a body walk (already handled in resolveBody)
		if v.Value != nil {
			lk.resolveExpr(v.Value, scope)
		}
	}
}

// ---------------------------------------------------------------------------
// Cycle diagnostics
// ---------------------------------------------------------------------------

// warnCycles logs a warning for modules that appear in their own ancestry.
// Linking tolerates them; the validator reports them as errors.
func (lk *linking) warnCycles() {
	model.Walk(lk.env.Root, func(n model.Node) {
		mod, ok := n.(model.Module)
		if !ok {
			return
		}
		for _, sup := range mod.Supertypes() {
			if sup.Ref == nil {
				continue
			}
			parent, ok := lk.env.Node(sup.Ref.TargetId).(model.Module)
			if !ok || parent == mod {
				if parent == mod {
					log.Warningf("inheritance cycle at %s", model.FullyQualifiedName(mod))
				}
				continue
			}
			for _, ancestor := range lk.env.Hierarchy(parent) {
				if ancestor == mod {
					log.Warningf("inheritance cycle at %s", model.FullyQualifiedName(mod))
					return
				}
			}
		}
	})
}
