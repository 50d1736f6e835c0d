package registry

import (
	"sync"

	"bddhost/internal/errs"
)

// Options configures an individual describe/it declaration beyond its
// name and body: extra tags, or marking the case as expecting an error
// somewhere in its hook/body execution.
type Options struct {
	Tags        []string
	ExpectError bool
}

// Registry is the declaration-time tree builder: describe/it push and
// pop a declaration stack, tags() stages tags for the next
// declaration, and focus/exclusion are set by the F*/X* declaration
// variants. One Registry is built per loaded test file; Reset clears it
// between files without touching any other subsystem's state.
type Registry struct {
	mu          sync.Mutex
	root        *Node
	stack       []*Node
	pendingTags []string
	active      *Node // the case currently executing its body, if any
}

// New creates a Registry with an empty, anonymous root suite.
func New() *Registry {
	root := &Node{Kind: KindSuite}
	return &Registry{root: root, stack: []*Node{root}}
}

// SetActiveCase records which case's body is currently executing, so
// Pending (and anything else that needs "the current case") can reach
// it without the caller threading a handle through every user closure.
// The scheduler serializes body execution, so a single field is safe.
func (r *Registry) SetActiveCase(n *Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = n
}

// ActiveCase returns the case currently executing, or nil outside of
// case-body execution.
func (r *Registry) ActiveCase() *Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Root returns the anonymous root suite built up by this Registry's
// declarations so far.
func (r *Registry) Root() *Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

// Reset clears the declared tree, stack, and staged tags — called
// between test files. It does not touch the assertion path registry,
// coverage data, or mocking state, all of which are independent
// singletons per spec.md §4.H "Reset".
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.root = &Node{Kind: KindSuite}
	r.stack = []*Node{r.root}
	r.pendingTags = nil
}

func (r *Registry) current() *Node {
	return r.stack[len(r.stack)-1]
}

func (r *Registry) takeTags() map[string]bool {
	parent := r.current()
	tags := map[string]bool{}
	for t := range parent.Tags {
		tags[t] = true
	}
	for _, t := range r.pendingTags {
		tags[t] = true
	}
	r.pendingTags = nil
	return tags
}

func mergeOptionTags(tags map[string]bool, opts []Options) (extra map[string]bool, expectError bool) {
	for _, o := range opts {
		for _, t := range o.Tags {
			tags[t] = true
		}
		if o.ExpectError {
			expectError = true
		}
	}
	return tags, expectError
}

// describe is the shared implementation behind Describe/FDescribe/XDescribe.
func (r *Registry) describe(name string, fn func(), focused, excluded bool, opts ...Options) *Node {
	if err := validateName(name); err != nil {
		panic(err)
	}
	r.mu.Lock()
	parent := r.current()
	tags := r.takeTags()
	tags, expectError := mergeOptionTags(tags, opts)
	node := &Node{
		Name:        name,
		Kind:        KindSuite,
		Parent:      parent,
		Tags:        tags,
		Focused:     focused,
		Excluded:    excluded,
		ExpectError: expectError,
	}
	parent.Children = append(parent.Children, node)
	r.stack = append(r.stack, node)
	r.mu.Unlock()

	if fn != nil {
		fn()
	}

	r.mu.Lock()
	r.stack = r.stack[:len(r.stack)-1]
	r.mu.Unlock()
	return node
}

// Describe declares a suite, invoking fn to collect its children.
func (r *Registry) Describe(name string, fn func(), opts ...Options) *Node {
	return r.describe(name, fn, false, false, opts...)
}

// FDescribe declares a focused suite: focus mode cascades to every
// case beneath it (see Node.EffectiveFocused).
func (r *Registry) FDescribe(name string, fn func(), opts ...Options) *Node {
	return r.describe(name, fn, true, false, opts...)
}

// XDescribe declares an excluded suite. Its fn still runs so the tree
// (and reporting) can see the full structure, but every descendant
// case is skipped: exclusion cascades down (Node.EffectiveExcluded).
func (r *Registry) XDescribe(name string, fn func(), opts ...Options) *Node {
	return r.describe(name, fn, false, true, opts...)
}

// it is the shared implementation behind It/FIt/XIt.
func (r *Registry) it(name string, body func(), focused, excluded bool, opts ...Options) *Node {
	if err := validateName(name); err != nil {
		panic(err)
	}
	if focused && excluded {
		panic(errs.Validationf("a case cannot be both focused and excluded: %s", name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	parent := r.current()
	tags := r.takeTags()
	tags, expectError := mergeOptionTags(tags, opts)

	if excluded {
		body = func() {}
	}

	node := &Node{
		Name:        name,
		Kind:        KindCase,
		Parent:      parent,
		Body:        body,
		Tags:        tags,
		Focused:     focused,
		Excluded:    excluded,
		ExpectError: expectError,
	}
	parent.Children = append(parent.Children, node)
	return node
}

// It declares a case.
func (r *Registry) It(name string, body func(), opts ...Options) *Node {
	return r.it(name, body, false, false, opts...)
}

// FIt declares a focused case.
func (r *Registry) FIt(name string, body func(), opts ...Options) *Node {
	return r.it(name, body, true, false, opts...)
}

// XIt declares an excluded case; its body is replaced with a no-op.
func (r *Registry) XIt(name string, body func(), opts ...Options) *Node {
	return r.it(name, body, false, true, opts...)
}

// Before registers a before-hook at the current suite depth.
func (r *Registry) Before(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.current()
	cur.BeforeHooks = append(cur.BeforeHooks, fn)
}

// After registers an after-hook at the current suite depth.
func (r *Registry) After(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.current()
	cur.AfterHooks = append(cur.AfterHooks, fn)
}

// Tags stages tags to be attached to the very next Describe/It
// declaration at this depth (and inherited by its descendants).
func (r *Registry) Tags(tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingTags = append(r.pendingTags, tags...)
}

// PendingSignal is panicked by Pending to unwind the running case body
// immediately; the scheduler recognizes it distinctly from an
// assertion.Failure or an arbitrary panic and records a skip rather
// than a failure or error.
type PendingSignal struct{ Reason string }

func (p *PendingSignal) Error() string { return "pending: " + p.Reason }

// Pending marks the currently-executing case as skipped with the
// given reason (defaulting to "pending") and immediately unwinds its
// body. When this Registry has no active case, no case is marked, but
// the *PendingSignal panic is still raised; the scheduler's body
// runner turns it into a skip with that reason either way.
func (r *Registry) Pending(message ...string) {
	cur := r.ActiveCase()
	reason := "pending"
	if len(message) > 0 && message[0] != "" {
		reason = message[0]
	}
	if cur != nil {
		cur.PendingReason = reason
	}
	panic(&PendingSignal{Reason: reason})
}

var (
	defaultMu  sync.Mutex
	defaultReg = New()
)

// Default returns the process-wide Registry used by the bdd façade
// for file-by-file loading and execution.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultReg
}
