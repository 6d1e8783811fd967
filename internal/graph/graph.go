// Package graph runs agent pipelines as task graphs over a typed state.
// Nodes receive the merged state so far and return a partial update; the
// engine merges partials, fans out parallel groups onto state clones, and
// follows conditional branches. A failing node never fails the run: its
// declared fallback (or nothing) is merged and execution continues.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrDefinition marks a structurally invalid graph. It is returned at
	// Compile time and is fatal; callers must not retry.
	ErrDefinition = errors.New("invalid graph definition")

	// ErrNoProgress is returned by Run when a routing function re-enters a
	// node past its declared revisit budget.
	ErrNoProgress = errors.New("routing exceeded revisit budget")
)

// State is implemented by each pipeline's state struct. Merge folds a
// partial update into the receiver (set fields win) and Clone produces an
// independent copy for parallel members.
type State[S any] interface {
	Merge(partial S) S
	Clone() S
}

// NodeFunc executes one node. It receives the full merged state and
// returns a partial update containing only the fields it computed.
type NodeFunc[S State[S]] func(ctx context.Context, state S) (S, error)

// RouteFunc picks the label of the branch target to follow next.
type RouteFunc[S State[S]] func(state S) string

type node[S State[S]] struct {
	name     string
	fn       NodeFunc[S]
	fallback *S
	timeout  time.Duration
}

type group struct {
	members []string
	join    string
}

type branch[S State[S]] struct {
	route       RouteFunc[S]
	targets     map[string]string
	maxRevisits int
}

// NodeOption configures a registered node.
type NodeOption[S State[S]] func(*node[S])

// WithFallback declares the partial update merged in place of the node's
// result when it fails. Without a fallback a failed node contributes
// nothing.
func WithFallback[S State[S]](partial S) NodeOption[S] {
	return func(n *node[S]) { n.fallback = &partial }
}

// WithTimeout bounds a single node execution.
func WithTimeout[S State[S]](d time.Duration) NodeOption[S] {
	return func(n *node[S]) { n.timeout = d }
}

// BranchOption configures a conditional branch.
type BranchOption func(*branchConfig)

type branchConfig struct {
	maxRevisits int
}

// WithMaxRevisits allows a branch target that closes a cycle to be
// re-entered at most n times. Required for any cycle-closing branch;
// Compile rejects unbounded cycles.
func WithMaxRevisits(n int) BranchOption {
	return func(c *branchConfig) { c.maxRevisits = n }
}

// Builder assembles a graph. All structural mistakes accumulate and are
// reported by Compile.
type Builder[S State[S]] struct {
	name     string
	logger   *zap.Logger
	nodes    map[string]*node[S]
	edges    map[string]string
	groups   map[string]*group
	branches map[string]*branch[S]
	outgoing map[string]string
	errs     []error
}

// New starts a graph definition.
func New[S State[S]](name string, logger *zap.Logger) *Builder[S] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder[S]{
		name:     name,
		logger:   logger.Named("graph").With(zap.String("graph", name)),
		nodes:    make(map[string]*node[S]),
		edges:    make(map[string]string),
		groups:   make(map[string]*group),
		branches: make(map[string]*branch[S]),
		outgoing: make(map[string]string),
	}
}

// Node registers a named node.
func (b *Builder[S]) Node(name string, fn NodeFunc[S], opts ...NodeOption[S]) *Builder[S] {
	if _, dup := b.nodes[name]; dup {
		b.errs = append(b.errs, fmt.Errorf("%w: duplicate node %q", ErrDefinition, name))
		return b
	}
	if fn == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: node %q has no function", ErrDefinition, name))
		return b
	}
	n := &node[S]{name: name, fn: fn}
	for _, opt := range opts {
		opt(n)
	}
	b.nodes[name] = n
	return b
}

// Edge declares a static transition from one node to the next.
func (b *Builder[S]) Edge(from, to string) *Builder[S] {
	if !b.claimOutgoing(from, "edge") {
		return b
	}
	b.edges[from] = to
	return b
}

// Parallel declares a fan-out: after the named node completes, the members
// run concurrently on clones of the state; their partial updates merge in
// declaration order (later members win on overlap) and join runs next.
func (b *Builder[S]) Parallel(after string, members []string, join string) *Builder[S] {
	if !b.claimOutgoing(after, "parallel group") {
		return b
	}
	if len(members) == 0 {
		b.errs = append(b.errs, fmt.Errorf("%w: parallel group after %q has no members", ErrDefinition, after))
		return b
	}
	b.groups[after] = &group{members: append([]string(nil), members...), join: join}
	return b
}

// Branch declares a conditional transition: after the named node completes,
// route picks a label and execution continues at targets[label].
func (b *Builder[S]) Branch(after string, route RouteFunc[S], targets map[string]string, opts ...BranchOption) *Builder[S] {
	if !b.claimOutgoing(after, "branch") {
		return b
	}
	if route == nil || len(targets) == 0 {
		b.errs = append(b.errs, fmt.Errorf("%w: branch after %q needs a route and targets", ErrDefinition, after))
		return b
	}
	cfg := branchConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	cp := make(map[string]string, len(targets))
	for k, v := range targets {
		cp[k] = v
	}
	b.branches[after] = &branch[S]{route: route, targets: cp, maxRevisits: cfg.maxRevisits}
	return b
}

func (b *Builder[S]) claimOutgoing(from, kind string) bool {
	if prev, ok := b.outgoing[from]; ok {
		b.errs = append(b.errs, fmt.Errorf("%w: node %q already has an outgoing %s", ErrDefinition, from, prev))
		return false
	}
	b.outgoing[from] = kind
	return true
}

// Graph is a compiled, immutable pipeline definition.
type Graph[S State[S]] struct {
	name     string
	logger   *zap.Logger
	nodes    map[string]*node[S]
	edges    map[string]string
	groups   map[string]*group
	branches map[string]*branch[S]
}

// Compile validates the definition and returns the runnable graph. Unknown
// node references, conflicting outgoing constructs, static cycles, and
// cycle-closing branches without a revisit budget all fail with
// ErrDefinition.
func (b *Builder[S]) Compile() (*Graph[S], error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	known := func(name, context string) error {
		if _, ok := b.nodes[name]; !ok {
			return fmt.Errorf("%w: %s references unknown node %q", ErrDefinition, context, name)
		}
		return nil
	}
	for from, to := range b.edges {
		if err := errors.Join(known(from, "edge"), known(to, "edge")); err != nil {
			return nil, err
		}
	}
	members := make(map[string]string)
	for from, grp := range b.groups {
		if err := errors.Join(known(from, "parallel group"), known(grp.join, "parallel group")); err != nil {
			return nil, err
		}
		for _, m := range grp.members {
			if err := known(m, "parallel group"); err != nil {
				return nil, err
			}
			members[m] = from
		}
	}
	for from, br := range b.branches {
		if err := known(from, "branch"); err != nil {
			return nil, err
		}
		for label, target := range br.targets {
			if err := known(target, fmt.Sprintf("branch label %q", label)); err != nil {
				return nil, err
			}
		}
	}
	// Parallel members flow to the group's join; they cannot also have
	// their own outgoing construct.
	for m, owner := range members {
		if _, ok := b.outgoing[m]; ok {
			return nil, fmt.Errorf("%w: node %q is a member of the parallel group after %q and cannot have an outgoing construct", ErrDefinition, m, owner)
		}
	}

	static := b.staticAdjacency()
	if cycle := findCycle(static); cycle != nil {
		return nil, fmt.Errorf("%w: static cycle %s", ErrDefinition, strings.Join(cycle, " -> "))
	}

	full := b.staticAdjacency()
	for from, br := range b.branches {
		for _, target := range br.targets {
			full[from] = append(full[from], target)
		}
	}
	for from, br := range b.branches {
		for label, target := range br.targets {
			if reaches(full, target, from) && br.maxRevisits < 1 {
				return nil, fmt.Errorf("%w: branch after %q label %q closes a cycle without a revisit budget", ErrDefinition, from, label)
			}
		}
	}

	return &Graph[S]{
		name:     b.name,
		logger:   b.logger,
		nodes:    b.nodes,
		edges:    b.edges,
		groups:   b.groups,
		branches: b.branches,
	}, nil
}

func (b *Builder[S]) staticAdjacency() map[string][]string {
	adj := make(map[string][]string)
	for from, to := range b.edges {
		adj[from] = append(adj[from], to)
	}
	for from, grp := range b.groups {
		for _, m := range grp.members {
			adj[from] = append(adj[from], m)
			adj[m] = append(adj[m], grp.join)
		}
	}
	return adj
}

// findCycle runs DFS with a recursion stack and returns the first cycle
// path found, or nil.
func findCycle(adj map[string][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var path []string
	var cycle []string

	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = gray
		path = append(path, n)
		for _, next := range adj[n] {
			switch color[next] {
			case gray:
				for i, p := range path {
					if p == next {
						cycle = append(append([]string(nil), path[i:]...), next)
						return true
					}
				}
			case white:
				if visit(next) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return false
	}

	for n := range adj {
		if color[n] == white && visit(n) {
			return cycle
		}
	}
	return nil
}

func reaches(adj map[string][]string, from, to string) bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		for _, next := range adj[n] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}
