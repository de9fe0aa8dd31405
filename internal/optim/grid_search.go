// Package optim searches controller gains by running independent simulated
// rigs over a parameter grid.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
)

var ErrNoTrials = errors.New("optim: empty parameter grid")

// Trial runs one candidate and returns its metrics. Trials run
// concurrently, so each must build its own rig.
type Trial func(ctx context.Context, params map[string]float64) (map[string]float64, error)

type Result struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// Goal is the direction a metric is ranked in.
type Goal int

const (
	// Minimize ranks the smallest absolute value first.
	Minimize Goal = iota
	// Maximize ranks the largest value first.
	Maximize
)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
	goal       Goal
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, workers: runtime.GOMAXPROCS(0)}
}

// WithWorkers bounds how many trials run at once.
func (g *GridSearch) WithWorkers(n int) *GridSearch {
	if n > 0 {
		g.workers = n
	}
	return g
}

func (g *GridSearch) WithGoal(goal Goal) *GridSearch {
	g.goal = goal
	return g
}

// Points enumerates the grid in lexical order of the parameter ranges.
func (g *GridSearch) Points() []map[string]float64 {
	if len(g.paramNames) == 0 || len(g.paramNames) != len(g.ranges) {
		return nil
	}
	var out []map[string]float64
	g.collect(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) collect(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.collect(depth+1, newParams, out)
	}
}

// Search runs every grid point and ranks them by metricName in the
// direction of the search goal. Failed trials sort last. The first result
// is the best one.
func (g *GridSearch) Search(ctx context.Context, trial Trial, metricName string) ([]Result, error) {
	points := g.Points()
	if len(points) == 0 {
		return nil, ErrNoTrials
	}

	results := make([]Result, len(points))
	sem := make(chan struct{}, g.workers)

	var wg sync.WaitGroup
	for i, p := range points {
		wg.Add(1)
		go func(idx int, params map[string]float64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := Result{Params: params, Value: g.worst()}
			if err := ctx.Err(); err != nil {
				res.Err = err
				results[idx] = res
				return
			}
			m, err := trial(ctx, params)
			switch {
			case err != nil:
				res.Err = err
			default:
				v, ok := m[metricName]
				if !ok {
					res.Err = fmt.Errorf("optim: trial produced no %q metric", metricName)
				} else {
					res.Value = math.Abs(v)
				}
			}
			results[idx] = res
		}(i, p)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		if (results[i].Err == nil) != (results[j].Err == nil) {
			return results[i].Err == nil
		}
		if g.goal == Maximize {
			return results[i].Value > results[j].Value
		}
		return results[i].Value < results[j].Value
	})
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (g *GridSearch) worst() float64 {
	if g.goal == Maximize {
		return math.Inf(-1)
	}
	return math.Inf(1)
}
