package gcov

import (
	"context"
	"runtime"
	"sync"
)

// Executor runs the tasks behind keys and returns their values keyed by
// task key.
type Executor interface {
	Execute(ctx context.Context, g *Graph, keys ...string) (map[string]interface{}, error)
}

// Synchronous runs tasks one after another in dependency order.
type Synchronous struct{}

var _ Executor = Synchronous{}

func (Synchronous) Execute(ctx context.Context, g *Graph, keys ...string) (map[string]interface{}, error) {
	plan, err := g.Plan(ctx, keys...)
	if err != nil {
		return nil, err
	}

	results := make(map[string]interface{}, len(plan))
	for _, t := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := t.run(ctx, results)
		if err != nil {
			return nil, err
		}
		results[t.Key] = v
	}
	return pick(results, keys), nil
}

// Pool runs independent tasks on up to Workers goroutines. Zero Workers
// means runtime.GOMAXPROCS(0). The first failing task cancels the rest.
type Pool struct {
	Workers int
}

var _ Executor = Pool{}

func (p Pool) Execute(ctx context.Context, g *Graph, keys ...string) (map[string]interface{}, error) {
	plan, err := g.Plan(ctx, keys...)
	if err != nil {
		return nil, err
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]interface{}, len(plan))
		once    sync.Once
		first   error
	)
	fail := func(err error) {
		once.Do(func() {
			first = err
			cancel()
		})
	}

	sem := make(chan struct{}, workers)
	for _, level := range levels(plan) {
		var wg sync.WaitGroup
		for _, t := range level {
			if ctx.Err() != nil {
				break
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(t *Task) {
				defer wg.Done()
				defer func() { <-sem }()
				if ctx.Err() != nil {
					return
				}

				mu.Lock()
				deps := make([]interface{}, len(t.Deps))
				for i, dep := range t.Deps {
					deps[i] = results[dep]
				}
				mu.Unlock()

				v, err := t.Fn(ctx, deps)
				if err != nil {
					fail(err)
					return
				}
				mu.Lock()
				results[t.Key] = v
				mu.Unlock()
			}(t)
		}
		wg.Wait()

		if first != nil {
			return nil, first
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return pick(results, keys), nil
}

func pick(results map[string]interface{}, keys []string) map[string]interface{} {
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		out[k] = results[k]
	}
	return out
}
