// Package image serializes package trees to a canonical-CBOR snapshot. A
// snapshot round-trips through Read into parse-shaped packages; relinking
// restores ids, parents and scopes. The core itself keeps no persisted state;
// images are embedder tooling for shipping pre-merged trees.
package image

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/uqbar-project/wollok-go/model"
)

// Version identifies the snapshot layout.
const Version = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Image is the top-level snapshot envelope.
type Image struct {
	Version  int       `cbor:"version"`
	Packages []*Record `cbor:"packages"`
}

// Record is the wire form of a node. A single record type covers every
// variant; canonical encoding drops the unused fields.
type Record struct {
	Kind    string    `cbor:"kind"`
	Name    string    `cbor:"name,omitempty"`
	Text    string    `cbor:"text,omitempty"` // message, entity, type name, literal string, collection fqn
	Num     float64   `cbor:"num,omitempty"`
	Truth   bool      `cbor:"truth,omitempty"`
	LitKind string    `cbor:"lit,omitempty"` // null | bool | num | str | collection | singleton
	Flags   []string  `cbor:"flags,omitempty"`
	Imports []*Record `cbor:"imports,omitempty"`
	Supers  []*Record `cbor:"supers,omitempty"`
	Params  []*Record `cbor:"params,omitempty"`
	Members []*Record `cbor:"members,omitempty"`
	Body    []*Record `cbor:"body,omitempty"`
	Named   []*Record `cbor:"named,omitempty"`
	Value   *Record   `cbor:"value,omitempty"`
	Args    []*Record `cbor:"args,omitempty"`
	Catches []*Record `cbor:"catches,omitempty"`
	Always  []*Record `cbor:"always,omitempty"`
	Else    []*Record `cbor:"else,omitempty"`
}

// Write serializes package trees to snapshot bytes.
func Write(packages []*model.Package) ([]byte, error) {
	img := &Image{Version: Version}
	for _, pkg := range packages {
		img.Packages = append(img.Packages, encode(pkg))
	}
	return cborEncMode.Marshal(img)
}

// Read deserializes a snapshot back into parse-shaped packages.
func Read(data []byte) ([]*model.Package, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if img.Version != Version {
		return nil, fmt.Errorf("image: unsupported version %d", img.Version)
	}
	out := make([]*model.Package, 0, len(img.Packages))
	for _, rec := range img.Packages {
		node, err := decode(rec)
		if err != nil {
			return nil, err
		}
		pkg, ok := node.(*model.Package)
		if !ok {
			return nil, fmt.Errorf("image: top-level record is a %s, not a package", rec.Kind)
		}
		out = append(out, pkg)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func encode(n model.Node) *Record {
	if n == nil {
		return nil
	}
	rec := &Record{Kind: string(n.Kind())}
	switch v := n.(type) {
	case *model.Package:
		rec.Name = v.Name
		for _, imp := range v.Imports {
			impRec := &Record{Kind: string(model.KindImport), Text: imp.Entity.Name}
			if imp.IsGeneric {
				impRec.Flags = []string{"generic"}
			}
			rec.Imports = append(rec.Imports, impRec)
		}
		rec.Members = encodeAll(v.Members)
	case *model.Class:
		rec.Name = v.Name
		rec.Supers = encodeSupers(v.Supers)
		rec.Members = encodeAll(v.Members)
	case *model.Mixin:
		rec.Name = v.Name
		rec.Supers = encodeSupers(v.Supers)
		rec.Members = encodeAll(v.Members)
	case *model.Singleton:
		rec.Name = v.Name
		rec.Supers = encodeSupers(v.Supers)
		rec.Members = encodeAll(v.Members)
	case *model.Method:
		rec.Name = v.Name
		rec.Params = encodeParams(v.Parameters)
		rec.Flags = flags(map[string]bool{
			"native":     v.IsNative,
			"override":   v.IsOverride,
			"expression": v.IsExpression,
		})
		if v.Body != nil {
			rec.Body = encodeAll(v.Body.Sentences)
		}
	case *model.Constructor:
		rec.Params = encodeParams(v.Parameters)
		rec.Args = encodeAll(v.BaseCallArgs)
		rec.Flags = flags(map[string]bool{
			"baseCall":  v.HasBaseCall,
			"baseSuper": v.BaseCallsSuper,
		})
		if v.Body != nil {
			rec.Body = encodeAll(v.Body.Sentences)
		}
	case *model.Field:
		rec.Name = v.Name
		rec.Flags = flags(map[string]bool{"constant": v.IsConstant, "property": v.IsProperty})
		rec.Value = encode(v.Value)
	case *model.Variable:
		rec.Name = v.Name
		rec.Flags = flags(map[string]bool{"constant": v.IsConstant})
		rec.Value = encode(v.Value)
	case *model.Parameter:
		rec.Name = v.Name
		rec.Flags = flags(map[string]bool{"vararg": v.IsVarArg})
	case *model.Reference:
		rec.Name = v.Name
	case *model.Literal:
		encodeLiteral(rec, v)
	case *model.Send:
		rec.Text = v.Message
		rec.Value = encode(v.Receiver)
		rec.Args = encodeAll(v.Args)
	case *model.Super:
		rec.Args = encodeAll(v.Args)
	case *model.Self:
		// kind alone suffices
	case *model.New:
		rec.Text = v.Instantiated.Name
		rec.Args = encodeAll(v.Args)
		rec.Named = encodeNamed(v.NamedArgs)
	case *model.NamedArgument:
		rec.Name = v.Name
		rec.Value = encode(v.Value)
	case *model.Assignment:
		rec.Name = v.Variable.Name
		rec.Value = encode(v.Value)
	case *model.Return:
		rec.Value = encode(v.Value)
	case *model.If:
		rec.Value = encode(v.Condition)
		rec.Body = encodeAll(v.Then.Sentences)
		if v.Else != nil {
			rec.Else = encodeAll(v.Else.Sentences)
		}
	case *model.Try:
		rec.Body = encodeAll(v.Body.Sentences)
		for _, c := range v.Catches {
			catchRec := &Record{Kind: string(model.KindCatch), Name: c.Parameter.Name}
			if c.ParameterType != nil {
				catchRec.Text = c.ParameterType.Name
			}
			catchRec.Body = encodeAll(c.Body.Sentences)
			rec.Catches = append(rec.Catches, catchRec)
		}
		if v.Always != nil {
			rec.Always = encodeAll(v.Always.Sentences)
		}
	case *model.Throw:
		rec.Value = encode(v.Exception)
	case *model.Program:
		rec.Name = v.Name
		rec.Body = encodeAll(v.Body.Sentences)
	case *model.Test:
		rec.Name = v.Name
		rec.Body = encodeAll(v.Body.Sentences)
	case *model.Describe:
		rec.Name = v.Name
		rec.Members = encodeAll(v.Members)
	default:
		panic(fmt.Sprintf("image: cannot encode %s node", n.Kind()))
	}
	return rec
}

func encodeLiteral(rec *Record, lit *model.Literal) {
	switch v := lit.Value.(type) {
	case nil:
		rec.LitKind = "null"
	case bool:
		rec.LitKind = "bool"
		rec.Truth = v
	case float64:
		rec.LitKind = "num"
		rec.Num = v
	case int:
		rec.LitKind = "num"
		rec.Num = float64(v)
	case string:
		rec.LitKind = "str"
		rec.Text = v
	case *model.Singleton:
		rec.LitKind = "singleton"
		rec.Value = encode(v)
	case *model.CollectionLiteral:
		rec.LitKind = "collection"
		rec.Text = v.Fqn
		rec.Args = encodeAll(v.Elements)
	default:
		panic(fmt.Sprintf("image: cannot encode literal %T", lit.Value))
	}
}

func encodeAll(nodes []model.Node) []*Record {
	out := make([]*Record, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, encode(n))
	}
	return out
}

func encodeSupers(supers []*model.ParameterizedType) []*Record {
	out := make([]*Record, 0, len(supers))
	for _, s := range supers {
		rec := &Record{Kind: string(model.KindParameterizedType), Text: s.Ref.Name}
		rec.Args = encodeAll(s.Args)
		rec.Named = encodeNamed(s.NamedArgs)
		out = append(out, rec)
	}
	return out
}

func encodeParams(params []*model.Parameter) []*Record {
	out := make([]*Record, 0, len(params))
	for _, p := range params {
		out = append(out, encode(p))
	}
	return out
}

func encodeNamed(named []*model.NamedArgument) []*Record {
	out := make([]*Record, 0, len(named))
	for _, n := range named {
		out = append(out, encode(n))
	}
	return out
}

func flags(set map[string]bool) []string {
	var out []string
	for _, name := range []string{"native", "override", "expression", "constant", "property", "vararg", "generic", "baseCall", "baseSuper"} {
		if set[name] {
			out = append(out, name)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func decode(rec *Record) (model.Node, error) {
	if rec == nil {
		return nil, nil
	}
	hasFlag := func(name string) bool {
		for _, f := range rec.Flags {
			if f == name {
				return true
			}
		}
		return false
	}
	switch model.Kind(rec.Kind) {
	case model.KindPackage:
		out := &model.Package{Name: rec.Name}
		for _, impRec := range rec.Imports {
			generic := false
			for _, f := range impRec.Flags {
				if f == "generic" {
					generic = true
				}
			}
			out.Imports = append(out.Imports, &model.Import{
				Entity:    &model.Reference{Name: impRec.Text},
				IsGeneric: generic,
			})
		}
		members, err := decodeAll(rec.Members)
		if err != nil {
			return nil, err
		}
		out.Members = members
		return out, nil
	case model.KindClass:
		supers, err := decodeSupers(rec.Supers)
		if err != nil {
			return nil, err
		}
		members, err := decodeAll(rec.Members)
		if err != nil {
			return nil, err
		}
		return &model.Class{Name: rec.Name, Supers: supers, Members: members}, nil
	case model.KindMixin:
		supers, err := decodeSupers(rec.Supers)
		if err != nil {
			return nil, err
		}
		members, err := decodeAll(rec.Members)
		if err != nil {
			return nil, err
		}
		return &model.Mixin{Name: rec.Name, Supers: supers, Members: members}, nil
	case model.KindSingleton:
		supers, err := decodeSupers(rec.Supers)
		if err != nil {
			return nil, err
		}
		members, err := decodeAll(rec.Members)
		if err != nil {
			return nil, err
		}
		return &model.Singleton{Name: rec.Name, Supers: supers, Members: members}, nil
	case model.KindMethod:
		out := &model.Method{
			Name:         rec.Name,
			Parameters:   decodeParams(rec.Params),
			IsNative:     hasFlag("native"),
			IsOverride:   hasFlag("override"),
			IsExpression: hasFlag("expression"),
		}
		if !out.IsNative {
			sentences, err := decodeAll(rec.Body)
			if err != nil {
				return nil, err
			}
			out.Body = &model.Body{Sentences: sentences}
		}
		return out, nil
	case model.KindConstructor:
		args, err := decodeAll(rec.Args)
		if err != nil {
			return nil, err
		}
		sentences, err := decodeAll(rec.Body)
		if err != nil {
			return nil, err
		}
		return &model.Constructor{
			Parameters:     decodeParams(rec.Params),
			BaseCallArgs:   args,
			HasBaseCall:    hasFlag("baseCall"),
			BaseCallsSuper: hasFlag("baseSuper"),
			Body:           &model.Body{Sentences: sentences},
		}, nil
	case model.KindField:
		value, err := decode(rec.Value)
		if err != nil {
			return nil, err
		}
		return &model.Field{Name: rec.Name, IsConstant: hasFlag("constant"), IsProperty: hasFlag("property"), Value: value}, nil
	case model.KindVariable:
		value, err := decode(rec.Value)
		if err != nil {
			return nil, err
		}
		return &model.Variable{Name: rec.Name, IsConstant: hasFlag("constant"), Value: value}, nil
	case model.KindParameter:
		return &model.Parameter{Name: rec.Name, IsVarArg: hasFlag("vararg")}, nil
	case model.KindReference:
		return &model.Reference{Name: rec.Name}, nil
	case model.KindLiteral:
		return decodeLiteral(rec)
	case model.KindSend:
		receiver, err := decode(rec.Value)
		if err != nil {
			return nil, err
		}
		args, err := decodeAll(rec.Args)
		if err != nil {
			return nil, err
		}
		return &model.Send{Receiver: receiver, Message: rec.Text, Args: args}, nil
	case model.KindSuper:
		args, err := decodeAll(rec.Args)
		if err != nil {
			return nil, err
		}
		return &model.Super{Args: args}, nil
	case model.KindSelf:
		return &model.Self{}, nil
	case model.KindNew:
		args, err := decodeAll(rec.Args)
		if err != nil {
			return nil, err
		}
		named, err := decodeNamed(rec.Named)
		if err != nil {
			return nil, err
		}
		return &model.New{Instantiated: &model.Reference{Name: rec.Text}, Args: args, NamedArgs: named}, nil
	case model.KindNamedArgument:
		value, err := decode(rec.Value)
		if err != nil {
			return nil, err
		}
		return &model.NamedArgument{Name: rec.Name, Value: value}, nil
	case model.KindAssignment:
		value, err := decode(rec.Value)
		if err != nil {
			return nil, err
		}
		return &model.Assignment{Variable: &model.Reference{Name: rec.Name}, Value: value}, nil
	case model.KindReturn:
		value, err := decode(rec.Value)
		if err != nil {
			return nil, err
		}
		return &model.Return{Value: value}, nil
	case model.KindIf:
		condition, err := decode(rec.Value)
		if err != nil {
			return nil, err
		}
		thenSentences, err := decodeAll(rec.Body)
		if err != nil {
			return nil, err
		}
		out := &model.If{Condition: condition, Then: &model.Body{Sentences: thenSentences}}
		if rec.Else != nil {
			elseSentences, err := decodeAll(rec.Else)
			if err != nil {
				return nil, err
			}
			out.Else = &model.Body{Sentences: elseSentences}
		}
		return out, nil
	case model.KindTry:
		sentences, err := decodeAll(rec.Body)
		if err != nil {
			return nil, err
		}
		out := &model.Try{Body: &model.Body{Sentences: sentences}}
		for _, catchRec := range rec.Catches {
			catchSentences, err := decodeAll(catchRec.Body)
			if err != nil {
				return nil, err
			}
			c := &model.Catch{
				Parameter: &model.Parameter{Name: catchRec.Name},
				Body:      &model.Body{Sentences: catchSentences},
			}
			if catchRec.Text != "" {
				c.ParameterType = &model.Reference{Name: catchRec.Text}
			}
			out.Catches = append(out.Catches, c)
		}
		if rec.Always != nil {
			alwaysSentences, err := decodeAll(rec.Always)
			if err != nil {
				return nil, err
			}
			out.Always = &model.Body{Sentences: alwaysSentences}
		}
		return out, nil
	case model.KindThrow:
		exception, err := decode(rec.Value)
		if err != nil {
			return nil, err
		}
		return &model.Throw{Exception: exception}, nil
	case model.KindProgram:
		sentences, err := decodeAll(rec.Body)
		if err != nil {
			return nil, err
		}
		return &model.Program{Name: rec.Name, Body: &model.Body{Sentences: sentences}}, nil
	case model.KindTest:
		sentences, err := decodeAll(rec.Body)
		if err != nil {
			return nil, err
		}
		return &model.Test{Name: rec.Name, Body: &model.Body{Sentences: sentences}}, nil
	case model.KindDescribe:
		members, err := decodeAll(rec.Members)
		if err != nil {
			return nil, err
		}
		return &model.Describe{Name: rec.Name, Members: members}, nil
	}
	return nil, fmt.Errorf("image: unknown record kind %q", rec.Kind)
}

func decodeLiteral(rec *Record) (model.Node, error) {
	switch rec.LitKind {
	case "null":
		return &model.Literal{}, nil
	case "bool":
		return &model.Literal{Value: rec.Truth}, nil
	case "num":
		return &model.Literal{Value: rec.Num}, nil
	case "str":
		return &model.Literal{Value: rec.Text}, nil
	case "singleton":
		node, err := decode(rec.Value)
		if err != nil {
			return nil, err
		}
		sing, ok := node.(*model.Singleton)
		if !ok {
			return nil, fmt.Errorf("image: singleton literal holds a %s", rec.Value.Kind)
		}
		return &model.Literal{Value: sing}, nil
	case "collection":
		elements, err := decodeAll(rec.Args)
		if err != nil {
			return nil, err
		}
		return &model.Literal{Value: &model.CollectionLiteral{Fqn: rec.Text, Elements: elements}}, nil
	}
	return nil, fmt.Errorf("image: unknown literal kind %q", rec.LitKind)
}

func decodeAll(recs []*Record) ([]model.Node, error) {
	out := make([]model.Node, 0, len(recs))
	for _, rec := range recs {
		node, err := decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

func decodeSupers(recs []*Record) ([]*model.ParameterizedType, error) {
	out := make([]*model.ParameterizedType, 0, len(recs))
	for _, rec := range recs {
		args, err := decodeAll(rec.Args)
		if err != nil {
			return nil, err
		}
		named, err := decodeNamed(rec.Named)
		if err != nil {
			return nil, err
		}
		out = append(out, &model.ParameterizedType{Ref: &model.Reference{Name: rec.Text}, Args: args, NamedArgs: named})
	}
	return out, nil
}

func decodeParams(recs []*Record) []*model.Parameter {
	out := make([]*model.Parameter, 0, len(recs))
	for _, rec := range recs {
		vararg := false
		for _, f := range rec.Flags {
			if f == "vararg" {
				vararg = true
			}
		}
		out = append(out, &model.Parameter{Name: rec.Name, IsVarArg: vararg})
	}
	return out
}

func decodeNamed(recs []*Record) ([]*model.NamedArgument, error) {
	var out []*model.NamedArgument
	for _, rec := range recs {
		node, err := decode(rec)
		if err != nil {
			return nil, err
		}
		named, ok := node.(*model.NamedArgument)
		if !ok {
			return nil, fmt.Errorf("image: named argument record is a %s", rec.Kind)
		}
		out = append(out, named)
	}
	return out, nil
}
