package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("discoveryd/graph")

// Run walks the graph from entry until a node with no outgoing construct
// completes, and returns the final merged state. Node failures are
// contained; only context cancellation, an unknown entry, an unknown branch
// label, or a blown revisit budget abort the run.
func (g *Graph[S]) Run(ctx context.Context, entry string, initial S) (S, error) {
	ctx, span := tracer.Start(ctx, "graph.run")
	span.SetAttributes(attribute.String("graph.name", g.name), attribute.String("graph.entry", entry))
	defer span.End()

	state := initial
	if _, ok := g.nodes[entry]; !ok {
		err := fmt.Errorf("%w: entry node %q not registered", ErrDefinition, entry)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}

	runsTotal.WithLabelValues(g.name).Inc()
	visits := make(map[string]int)
	current := entry

	for current != "" {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return state, err
		}

		visits[current]++
		if partial, ok := g.invoke(ctx, current, state); ok {
			state = state.Merge(partial)
		}

		if grp, ok := g.groups[current]; ok {
			state = g.fanOut(ctx, grp, state)
			current = grp.join
			continue
		}
		if br, ok := g.branches[current]; ok {
			label := br.route(state)
			target, ok := br.targets[label]
			if !ok {
				err := fmt.Errorf("%w: branch after %q returned unknown label %q", ErrDefinition, current, label)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return state, err
			}
			if visits[target] > br.maxRevisits {
				err := fmt.Errorf("%w: node %q already ran %d times", ErrNoProgress, target, visits[target])
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return state, err
			}
			current = target
			continue
		}
		next, ok := g.edges[current]
		if !ok {
			break // terminal node
		}
		current = next
	}

	return state, nil
}

// fanOut runs the group members concurrently, each on its own clone of the
// state, and merges their partial updates in declaration order so that
// later members win on overlapping fields.
func (g *Graph[S]) fanOut(ctx context.Context, grp *group, state S) S {
	partials := make([]S, len(grp.members))
	merge := make([]bool, len(grp.members))

	var wg sync.WaitGroup
	for i, m := range grp.members {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			partials[i], merge[i] = g.invoke(ctx, name, state.Clone())
		}(i, m)
	}
	wg.Wait()

	for i := range partials {
		if merge[i] {
			state = state.Merge(partials[i])
		}
	}
	return state
}

// invoke runs one node and reports its partial update. On failure it logs,
// counts, and substitutes the node's fallback; the second return is false
// when there is nothing to merge.
func (g *Graph[S]) invoke(ctx context.Context, name string, state S) (S, bool) {
	n := g.nodes[name]

	nctx := ctx
	if n.timeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	nctx, span := tracer.Start(nctx, "graph.node")
	span.SetAttributes(attribute.String("graph.name", g.name), attribute.String("node.name", name))
	defer span.End()

	start := time.Now()
	partial, err := n.fn(nctx, state)
	nodeDuration.WithLabelValues(g.name, name).Observe(time.Since(start).Seconds())

	if err != nil {
		nodeFailures.WithLabelValues(g.name, name).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("node failed, continuing",
			zap.String("node", name),
			zap.Bool("has_fallback", n.fallback != nil),
			zap.Error(err),
		)
		if n.fallback != nil {
			return *n.fallback, true
		}
		var zero S
		return zero, false
	}
	return partial, true
}
