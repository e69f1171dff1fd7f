package linker

import (
	"github.com/uqbar-project/wollok-go/model"
)

// ---------------------------------------------------------------------------
// Package merging
// ---------------------------------------------------------------------------

// mergePackages folds a package list left to right: same-named packages merge
// recursively, everything else appends in order. Nested packages merge before
// their containers (normalization happens bottom-up).
func mergePackages(packages []*model.Package) ([]*model.Package, error) {
	var out []*model.Package
	for _, pkg := range packages {
		normalized, err := normalizePackage(pkg)
		if err != nil {
			return nil, err
		}
		merged := false
		for i, existing := range out {
			if existing.Name == normalized.Name {
				combined, err := mergeTwo(existing, normalized)
				if err != nil {
					return nil, err
				}
				out[i] = combined
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, normalized)
		}
	}
	return out, nil
}

// normalizePackage merges duplicate members within a single package,
// recursing into nested packages first.
func normalizePackage(pkg *model.Package) (*model.Package, error) {
	out := &model.Package{Name: pkg.Name, Imports: pkg.Imports}
	for _, member := range pkg.Members {
		if nested, ok := member.(*model.Package); ok {
			normalized, err := normalizePackage(nested)
			if err != nil {
				return nil, err
			}
			member = normalized
		}
		var err error
		out.Members, err = mergeMember(out.Members, member)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// mergeTwo combines two same-named packages: imports concatenate, members of
// the right-hand package merge over the left-hand ones.
func mergeTwo(left, right *model.Package) (*model.Package, error) {
	out := &model.Package{
		Name:    left.Name,
		Imports: append(append([]*model.Import{}, left.Imports...), right.Imports...),
		Members: append([]model.Node{}, left.Members...),
	}
	for _, member := range right.Members {
		var err error
		out.Members, err = mergeMember(out.Members, member)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// mergeMember installs a member into a member list. Same-named packages merge
// recursively; a member sharing kind and name with an existing one replaces
// it (last writer wins); a package colliding with a non-package is a conflict.
func mergeMember(members []model.Node, member model.Node) ([]model.Node, error) {
	name := memberName(member)
	if name == "" {
		return append(members, member), nil
	}
	for i, existing := range members {
		if memberName(existing) != name {
			continue
		}
		leftPkg, leftIsPkg := existing.(*model.Package)
		rightPkg, rightIsPkg := member.(*model.Package)
		switch {
		case leftIsPkg && rightIsPkg:
			combined, err := mergeTwo(leftPkg, rightPkg)
			if err != nil {
				return nil, err
			}
			members[i] = combined
			return members, nil
		case leftIsPkg != rightIsPkg:
			return nil, &MergeConflictError{Name: name, Left: existing.Kind(), Right: member.Kind()}
		case existing.Kind() == member.Kind():
			members[i] = member
			return members, nil
		}
	}
	return append(members, member), nil
}

func memberName(n model.Node) string {
	switch v := n.(type) {
	case *model.Package:
		return v.Name
	case *model.Class:
		return v.Name
	case *model.Mixin:
		return v.Name
	case *model.Singleton:
		return v.Name
	case *model.Variable:
		return v.Name
	case *model.Program:
		return v.Name
	case *model.Test:
		return v.Name
	case *model.Describe:
		return v.Name
	}
	return ""
}
