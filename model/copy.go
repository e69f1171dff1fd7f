package model

// ---------------------------------------------------------------------------
// Structural copy
// ---------------------------------------------------------------------------

// Copy returns a deep structural copy of a node tree. Link decorations (ids,
// parents, scopes, reference targets) are not carried over: the copy is a
// fresh parse-shaped tree ready to be linked. Source spans are preserved.
func Copy(n Node) Node {
	if n == nil {
		return nil
	}
	switch v := n.(type) {
	case *Package:
		out := &Package{Name: v.Name}
		out.src = v.src
		for _, i := range v.Imports {
			out.Imports = append(out.Imports, Copy(i).(*Import))
		}
		out.Members = copyAll(v.Members)
		return out
	case *Import:
		out := &Import{IsGeneric: v.IsGeneric}
		out.src = v.src
		if v.Entity != nil {
			out.Entity = Copy(v.Entity).(*Reference)
		}
		return out
	case *Class:
		out := &Class{Name: v.Name, Supers: copySupers(v.Supers), Members: copyAll(v.Members)}
		out.src = v.src
		return out
	case *Mixin:
		out := &Mixin{Name: v.Name, Supers: copySupers(v.Supers), Members: copyAll(v.Members)}
		out.src = v.src
		return out
	case *Singleton:
		out := &Singleton{Name: v.Name, Supers: copySupers(v.Supers), Members: copyAll(v.Members)}
		out.src = v.src
		return out
	case *ParameterizedType:
		out := &ParameterizedType{Args: copyAll(v.Args)}
		out.src = v.src
		if v.Ref != nil {
			out.Ref = Copy(v.Ref).(*Reference)
		}
		for _, a := range v.NamedArgs {
			out.NamedArgs = append(out.NamedArgs, Copy(a).(*NamedArgument))
		}
		return out
	case *Method:
		out := &Method{
			Name:         v.Name,
			IsNative:     v.IsNative,
			IsOverride:   v.IsOverride,
			IsExpression: v.IsExpression,
		}
		out.src = v.src
		for _, p := range v.Parameters {
			out.Parameters = append(out.Parameters, Copy(p).(*Parameter))
		}
		if v.Body != nil {
			out.Body = Copy(v.Body).(*Body)
		}
		return out
	case *Constructor:
		out := &Constructor{
			BaseCallArgs:   copyAll(v.BaseCallArgs),
			BaseCallsSuper: v.BaseCallsSuper,
			HasBaseCall:    v.HasBaseCall,
		}
		out.src = v.src
		for _, p := range v.Parameters {
			out.Parameters = append(out.Parameters, Copy(p).(*Parameter))
		}
		if v.Body != nil {
			out.Body = Copy(v.Body).(*Body)
		}
		return out
	case *Field:
		out := &Field{Name: v.Name, IsConstant: v.IsConstant, IsProperty: v.IsProperty, Value: Copy(v.Value)}
		out.src = v.src
		return out
	case *Variable:
		out := &Variable{Name: v.Name, IsConstant: v.IsConstant, Value: Copy(v.Value)}
		out.src = v.src
		return out
	case *Parameter:
		out := &Parameter{Name: v.Name, IsVarArg: v.IsVarArg}
		out.src = v.src
		return out
	case *Body:
		out := &Body{Sentences: copyAll(v.Sentences)}
		out.src = v.src
		return out
	case *Reference:
		out := &Reference{Name: v.Name}
		out.src = v.src
		return out
	case *Literal:
		out := &Literal{}
		out.src = v.src
		switch lit := v.Value.(type) {
		case *Singleton:
			out.Value = Copy(lit).(*Singleton)
		case *CollectionLiteral:
			out.Value = &CollectionLiteral{Fqn: lit.Fqn, Elements: copyAll(lit.Elements)}
		default:
			out.Value = lit
		}
		return out
	case *Send:
		out := &Send{Receiver: Copy(v.Receiver), Message: v.Message, Args: copyAll(v.Args)}
		out.src = v.src
		return out
	case *Super:
		out := &Super{Args: copyAll(v.Args)}
		out.src = v.src
		return out
	case *Self:
		out := &Self{}
		out.src = v.src
		return out
	case *NamedArgument:
		out := &NamedArgument{Name: v.Name, Value: Copy(v.Value)}
		out.src = v.src
		return out
	case *New:
		out := &New{Args: copyAll(v.Args)}
		out.src = v.src
		if v.Instantiated != nil {
			out.Instantiated = Copy(v.Instantiated).(*Reference)
		}
		for _, a := range v.NamedArgs {
			out.NamedArgs = append(out.NamedArgs, Copy(a).(*NamedArgument))
		}
		return out
	case *Assignment:
		out := &Assignment{Value: Copy(v.Value)}
		out.src = v.src
		if v.Variable != nil {
			out.Variable = Copy(v.Variable).(*Reference)
		}
		return out
	case *Return:
		out := &Return{Value: Copy(v.Value)}
		out.src = v.src
		return out
	case *If:
		out := &If{Condition: Copy(v.Condition)}
		out.src = v.src
		if v.Then != nil {
			out.Then = Copy(v.Then).(*Body)
		}
		if v.Else != nil {
			out.Else = Copy(v.Else).(*Body)
		}
		return out
	case *Try:
		out := &Try{}
		out.src = v.src
		if v.Body != nil {
			out.Body = Copy(v.Body).(*Body)
		}
		for _, c := range v.Catches {
			out.Catches = append(out.Catches, Copy(c).(*Catch))
		}
		if v.Always != nil {
			out.Always = Copy(v.Always).(*Body)
		}
		return out
	case *Catch:
		out := &Catch{}
		out.src = v.src
		if v.Parameter != nil {
			out.Parameter = Copy(v.Parameter).(*Parameter)
		}
		if v.ParameterType != nil {
			out.ParameterType = Copy(v.ParameterType).(*Reference)
		}
		if v.Body != nil {
			out.Body = Copy(v.Body).(*Body)
		}
		return out
	case *Throw:
		out := &Throw{Exception: Copy(v.Exception)}
		out.src = v.src
		return out
	case *Program:
		out := &Program{Name: v.Name}
		out.src = v.src
		if v.Body != nil {
			out.Body = Copy(v.Body).(*Body)
		}
		return out
	case *Test:
		out := &Test{Name: v.Name}
		out.src = v.src
		if v.Body != nil {
			out.Body = Copy(v.Body).(*Body)
		}
		return out
	case *Describe:
		out := &Describe{Name: v.Name, Members: copyAll(v.Members)}
		out.src = v.src
		return out
	}
	panic("model: Copy: unhandled node kind " + string(n.Kind()))
}

func copyAll(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = Copy(n)
	}
	return out
}

func copySupers(supers []*ParameterizedType) []*ParameterizedType {
	if supers == nil {
		return nil
	}
	out := make([]*ParameterizedType, len(supers))
	for i, s := range supers {
		out[i] = Copy(s).(*ParameterizedType)
	}
	return out
}
