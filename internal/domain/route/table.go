// Package route resolves request paths to views and layout shells.
//
// Entries are held in a segment tree. At each depth static segments are tried
// before parameter segments, and parameter siblings are tried in registration
// order, so "/services/new" is never swallowed by "/services/:id".
package route

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/decorhub/storefront/internal/domain/access"
)

// Shell identifies the layout a view renders inside.
type Shell string

const (
	ShellPublic    Shell = "public"
	ShellAuth      Shell = "auth"
	ShellDashboard Shell = "dashboard"
)

// Valid reports whether s is a known shell.
func (s Shell) Valid() bool {
	switch s {
	case ShellPublic, ShellAuth, ShellDashboard:
		return true
	default:
		return false
	}
}

// NotFoundView is the view rendered for unmatched paths.
const NotFoundView = "not-found"

var (
	ErrInvalidPattern = errors.New("invalid route pattern")
	ErrDuplicateRoute = errors.New("duplicate route")
)

// Entry binds a path pattern to a view and an access policy.
// An empty Shell inherits the innermost enclosing scope's shell.
type Entry struct {
	Pattern string
	View    string
	Shell   Shell
	Policy  access.Policy
}

// Scope applies a shell and a policy to every path under Prefix.
type Scope struct {
	Prefix string
	Shell  Shell
	Policy access.Policy
}

// Match is the result of resolving a path.
type Match struct {
	Found  bool
	View   string
	Shell  Shell
	Params map[string]string
	// Pattern is empty when nothing matched.
	Pattern string
	// Policy is the effective policy: enclosing scopes folded with the entry's own.
	Policy access.Policy
}

type node struct {
	static map[string]*node
	params []*node
	name   string // parameter name when this node is a parameter segment
	entry  *Entry
}

func newNode() *node { return &node{static: map[string]*node{}} }

// Table is an ordered route table. It is not safe for concurrent mutation;
// build it once and share it read-only.
type Table struct {
	root    *node
	entries []Entry
	scopes  []Scope
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{root: newNode()}
}

// Split returns the non-empty segments of a path.
func Split(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AddScope registers a scope. Scopes may nest; their policies fold outer to inner.
func (t *Table) AddScope(s Scope) error {
	if !strings.HasPrefix(s.Prefix, "/") {
		return fmt.Errorf("%w: scope prefix %q must start with /", ErrInvalidPattern, s.Prefix)
	}
	if s.Shell != "" && !s.Shell.Valid() {
		return fmt.Errorf("%w: unknown shell %q", ErrInvalidPattern, s.Shell)
	}
	for _, seg := range Split(s.Prefix) {
		if strings.HasPrefix(seg, ":") {
			return fmt.Errorf("%w: scope prefix %q cannot contain parameters", ErrInvalidPattern, s.Prefix)
		}
	}
	t.scopes = append(t.scopes, s)
	sort.SliceStable(t.scopes, func(i, j int) bool {
		return len(Split(t.scopes[i].Prefix)) < len(Split(t.scopes[j].Prefix))
	})
	return nil
}

// Add registers an entry. Registering the same pattern twice is an error.
func (t *Table) Add(e Entry) error {
	if !strings.HasPrefix(e.Pattern, "/") {
		return fmt.Errorf("%w: %q must start with /", ErrInvalidPattern, e.Pattern)
	}
	if e.View == "" {
		return fmt.Errorf("%w: %q has no view", ErrInvalidPattern, e.Pattern)
	}
	if e.Shell != "" && !e.Shell.Valid() {
		return fmt.Errorf("%w: unknown shell %q", ErrInvalidPattern, e.Shell)
	}

	n := t.root
	for _, seg := range Split(e.Pattern) {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			if name == "" {
				return fmt.Errorf("%w: %q has an unnamed parameter", ErrInvalidPattern, e.Pattern)
			}
			n = n.paramChild(name)
			continue
		}
		child, ok := n.static[seg]
		if !ok {
			child = newNode()
			n.static[seg] = child
		}
		n = child
	}
	if n.entry != nil {
		return fmt.Errorf("%w: %q already bound to %q", ErrDuplicateRoute, e.Pattern, n.entry.View)
	}
	stored := e
	n.entry = &stored
	t.entries = append(t.entries, e)
	return nil
}

func (n *node) paramChild(name string) *node {
	for _, p := range n.params {
		if p.name == name {
			return p
		}
	}
	child := newNode()
	child.name = name
	n.params = append(n.params, child)
	return child
}

// Entries returns the registered entries in registration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Scopes returns the registered scopes, outermost first.
func (t *Table) Scopes() []Scope {
	out := make([]Scope, len(t.scopes))
	copy(out, t.scopes)
	return out
}

// Resolve maps a path to a view. Unmatched paths resolve to the not-found
// view inside the innermost enclosing scope, carrying that scope's policy.
func (t *Table) Resolve(path string) Match {
	segs := Split(path)
	scopePolicy, scopeShell := t.scopeFor(segs)

	params := map[string]string{}
	e := t.root.match(segs, params)
	if e == nil {
		return Match{
			View:   NotFoundView,
			Shell:  scopeShell,
			Policy: scopePolicy,
			Params: map[string]string{},
		}
	}

	shell := e.Shell
	if shell == "" {
		shell = scopeShell
	}
	return Match{
		Found:   true,
		View:    e.View,
		Shell:   shell,
		Params:  params,
		Pattern: e.Pattern,
		Policy:  scopePolicy.Merge(e.Policy),
	}
}

func (n *node) match(segs []string, params map[string]string) *Entry {
	if len(segs) == 0 {
		return n.entry
	}
	seg, rest := segs[0], segs[1:]
	if child, ok := n.static[seg]; ok {
		if e := child.match(rest, params); e != nil {
			return e
		}
	}
	for _, p := range n.params {
		if e := p.match(rest, params); e != nil {
			params[p.name] = seg
			return e
		}
	}
	return nil
}

func (t *Table) scopeFor(segs []string) (access.Policy, Shell) {
	policy := access.Public
	shell := ShellPublic
	for _, s := range t.scopes {
		if !hasSegmentPrefix(segs, Split(s.Prefix)) {
			continue
		}
		policy = policy.Merge(s.Policy)
		if s.Shell != "" {
			shell = s.Shell
		}
	}
	return policy, shell
}

func hasSegmentPrefix(segs, prefix []string) bool {
	if len(prefix) > len(segs) {
		return false
	}
	for i := range prefix {
		if segs[i] != prefix[i] {
			return false
		}
	}
	return true
}
