// Package registry implements the test tree: nested suite/case
// declaration, inheritable before/after hooks, focus-mode and
// tag/pattern filtering, and the depth-first scheduler that runs the
// tree and aggregates results.
//
// Grounded on the teacher's internal/testing.testRunner (sequential vs.
// parallel branching, per-item result aggregation into a
// TestSuiteResult) and internal/testing.types.go (TestConfiguration's
// category/concept/tag filters, the model for only_tags/filter here),
// generalized from a flat scenario list into a nested suite/case tree
// with inherited lifecycle hooks.
package registry

import (
	"strings"

	"bddhost/internal/errs"
)

// Kind distinguishes a suite (a grouping node) from a case (a leaf
// with an executable body).
type Kind int

const (
	KindSuite Kind = iota
	KindCase
)

// Node is either a suite or a case. A suite has Children and hooks but
// no Body; a case has a Body but no Children.
type Node struct {
	Name     string
	Kind     Kind
	Parent   *Node
	Children []*Node

	Body        func()
	Tags        map[string]bool
	Focused     bool
	Excluded    bool
	ExpectError bool

	// PendingReason is set by Pending() on a case: non-empty means the
	// case is always reported skipped with this reason, regardless of
	// filters.
	PendingReason string

	// BeforeHooks/AfterHooks apply only at this suite's own level; the
	// scheduler walks ancestors to build the full inherited sequence.
	BeforeHooks []func()
	AfterHooks  []func()
}

// FullName joins this node's name with every ancestor's, root first,
// the "fully-qualified name" spec.md's filter() matches against.
func (n *Node) FullName() string {
	if n.Parent == nil || n.Parent.Name == "" {
		return n.Name
	}
	return n.Parent.FullName() + " " + n.Name
}

// Ancestors returns the chain from the root suite down to and
// including n, root first.
func (n *Node) Ancestors() []*Node {
	var chain []*Node
	for cur := n; cur != nil; cur = cur.Parent {
		chain = append([]*Node{cur}, chain...)
	}
	return chain
}

// EffectiveExcluded reports whether n or any ancestor is excluded.
func (n *Node) EffectiveExcluded() bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Excluded {
			return true
		}
	}
	return false
}

// EffectiveFocused reports whether n or any ancestor is focused —
// fdescribe's focus cascades to every descendant case.
func (n *Node) EffectiveFocused() bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Focused {
			return true
		}
	}
	return false
}

// Cases returns every KindCase leaf under n, in declaration order.
func (n *Node) Cases() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(node *Node) {
		if node.Kind == KindCase {
			out = append(out, node)
			return
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// AnyFocused reports whether n or any descendant sets Focused — the
// signal that flips the registry's global focus mode.
func (n *Node) AnyFocused() bool {
	if n.Focused {
		return true
	}
	for _, c := range n.Children {
		if c.AnyFocused() {
			return true
		}
	}
	return false
}

func validateName(name string) *errs.Error {
	if strings.TrimSpace(name) == "" {
		return errs.Validationf("node name must not be empty")
	}
	return nil
}
