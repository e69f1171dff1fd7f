package linker

import (
	"fmt"

	"github.com/uqbar-project/wollok-go/model"
)

// ---------------------------------------------------------------------------
// Linker error taxonomy
// ---------------------------------------------------------------------------

// UnresolvedReferenceError reports a reference whose name resolves to nothing
// along the lexical, inheritance and import scopes.
type UnresolvedReferenceError struct {
	Name string
	Site model.Id
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("linker: unresolved reference %q at node %s", e.Name, e.Site)
}

// MergeConflictError reports two same-named members that cannot be merged,
// such as a package colliding with a module.
type MergeConflictError struct {
	Name  string
	Left  model.Kind
	Right model.Kind
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("linker: cannot merge %s %q with %s %q", e.Left, e.Name, e.Right, e.Name)
}

// MalformedTreeError reports a structurally broken input tree.
type MalformedTreeError struct {
	Reason string
}

func (e *MalformedTreeError) Error() string {
	return "linker: malformed tree: " + e.Reason
}
