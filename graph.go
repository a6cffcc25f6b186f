package gcov

import (
	"context"
	"fmt"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"
)

// TaskFunc computes a task's value. deps holds the values of the task's
// dependencies in the order they were declared.
type TaskFunc func(ctx context.Context, deps []interface{}) (interface{}, error)

// Task is a node of the deferred computation graph: a function plus the keys
// of the tasks whose values it consumes.
type Task struct {
	Key  string
	Deps []string
	Fn   TaskFunc
}

// Graph holds deferred tasks. Building a graph never runs anything; an
// Executor runs the tasks behind a set of keys.
//
// A Graph is not safe for concurrent mutation, but executors may read it
// concurrently once construction is done.
type Graph struct {
	tasks map[string]*Task
	seq   int
}

func NewGraph() *Graph {
	return &Graph{tasks: map[string]*Task{}}
}

// Add registers t. Its dependencies must already be in the graph, which
// keeps the graph acyclic.
func (g *Graph) Add(t *Task) error {
	if t.Key == "" {
		return fmt.Errorf("task key cannot be empty")
	}
	if t.Fn == nil {
		return fmt.Errorf("task %q has no function", t.Key)
	}
	if _, ok := g.tasks[t.Key]; ok {
		return fmt.Errorf("task %q already in graph", t.Key)
	}
	for _, dep := range t.Deps {
		if _, ok := g.tasks[dep]; !ok {
			return fmt.Errorf("task %q depends on unknown task %q", t.Key, dep)
		}
	}

	g.tasks[t.Key] = t
	return nil
}

// Token returns a key prefix not handed out before by this graph.
func (g *Graph) Token(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

// Has reports whether key names a task.
func (g *Graph) Has(key string) bool {
	_, ok := g.tasks[key]
	return ok
}

// Len is the number of tasks.
func (g *Graph) Len() int { return len(g.tasks) }

// Plan returns every task needed to compute keys, dependencies first. Only
// the ancestors of keys are sorted, however large the graph is.
func (g *Graph) Plan(ctx context.Context, keys ...string) ([]*Task, error) {
	needed, err := g.ancestors(keys)
	if err != nil {
		return nil, err
	}
	dag, err := g.subgraph(needed)
	if err != nil {
		return nil, err
	}
	order, err := dfs.TopologicalSort(dag, dfs.WithCancelContext(ctx))
	if err != nil {
		return nil, err
	}

	plan := make([]*Task, len(order))
	for i, k := range order {
		plan[i] = g.tasks[k]
	}
	return plan, nil
}

// ancestors returns keys and every task they depend on, in discovery order.
func (g *Graph) ancestors(keys []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	stack := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := g.tasks[k]; !ok {
			return nil, fmt.Errorf("%w: task %q", ErrNotFound, k)
		}
		stack = append(stack, k)
	}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
		stack = append(stack, g.tasks[k].Deps...)
	}
	return out, nil
}

// subgraph builds the dependency DAG over keys, which must be closed under
// dependencies.
func (g *Graph) subgraph(keys []string) (*core.Graph, error) {
	dag := core.NewGraph(core.WithDirected(true))
	for _, k := range keys {
		if err := dag.AddVertex(k); err != nil {
			return nil, err
		}
	}
	for _, k := range keys {
		linked := map[string]bool{}
		for _, dep := range g.tasks[k].Deps {
			if linked[dep] {
				continue
			}
			linked[dep] = true
			if _, err := dag.AddEdge(dep, k, 0); err != nil {
				return nil, fmt.Errorf("linking %q -> %q: %w", dep, k, err)
			}
		}
	}
	return dag, nil
}

// levels groups a plan into dependency levels: every task of a level only
// depends on tasks of earlier levels.
func levels(plan []*Task) [][]*Task {
	depth := make(map[string]int, len(plan))
	var out [][]*Task
	for _, t := range plan {
		d := 0
		for _, dep := range t.Deps {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[t.Key] = d
		for len(out) <= d {
			out = append(out, nil)
		}
		out[d] = append(out[d], t)
	}
	return out
}

func (t *Task) run(ctx context.Context, results map[string]interface{}) (interface{}, error) {
	deps := make([]interface{}, len(t.Deps))
	for i, dep := range t.Deps {
		deps[i] = results[dep]
	}
	return t.Fn(ctx, deps)
}
