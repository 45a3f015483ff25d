// Package gridsearch tunes PELT hyperparameters by exhaustively scoring a
// grid of penalty, minimum segment length and jump combinations.
package gridsearch

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/changepoint/pkg/changepoint"
)

// Grid lists the values tried for each hyperparameter. Combinations are
// ordered by MinSizes, then Jumps, then Penalties.
type Grid struct {
	Penalties []float64
	MinSizes  []int
	Jumps     []int
}

// Size is the number of combinations in the grid.
func (g Grid) Size() int {
	return len(g.Penalties) * len(g.MinSizes) * len(g.Jumps)
}

// Evaluation is the outcome of one combination. Cost is the summed segment
// cost of the partition, without penalties.
type Evaluation struct {
	Penalty     float64 `json:"penalty"`
	MinSize     int     `json:"min_size"`
	Jump        int     `json:"jump"`
	Breakpoints []int   `json:"breakpoints"`
	Cost        float64 `json:"cost"`
	Score       float64 `json:"score"`
}

// Objective scores an evaluation. Lower is better.
type Objective func(Evaluation) float64

// ElbowObjective scores a partition by its cost plus weight per breakpoint.
func ElbowObjective(weight float64) Objective {
	return func(e Evaluation) float64 {
		return e.Cost + weight*float64(len(e.Breakpoints))
	}
}

// CostFactory returns a fresh, unfitted cost. Each worker fits its own.
type CostFactory func() (changepoint.Cost, error)

// Result holds the winning combination and every evaluation in grid order.
type Result struct {
	Best        Evaluation   `json:"best"`
	Evaluations []Evaluation `json:"evaluations"`
}

// Search fits one engine per (MinSize, Jump) pair, predicts every penalty on
// it and returns the lowest scoring combination. Ties go to the combination
// that comes first in grid order. NaN scores never win.
func Search(ctx context.Context, signal *changepoint.Signal, newCost CostFactory, grid Grid, objective Objective) (*Result, error) {
	if signal == nil || newCost == nil || objective == nil {
		return nil, fmt.Errorf("grid search: %w", changepoint.ErrUninitialized)
	}
	if grid.Size() == 0 {
		return nil, fmt.Errorf("grid search needs at least one value per parameter: %w", changepoint.ErrArgumentRange)
	}

	evaluations := make([]Evaluation, grid.Size())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for mi, minSize := range grid.MinSizes {
		minSize := minSize
		for ji, jump := range grid.Jumps {
			jump := jump
			offset := (mi*len(grid.Jumps) + ji) * len(grid.Penalties)
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				return evaluate(signal, newCost, minSize, jump, grid.Penalties, objective, evaluations[offset:offset+len(grid.Penalties)])
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := -1
	bestScore := math.Inf(1)
	for i, e := range evaluations {
		if e.Score < bestScore {
			best, bestScore = i, e.Score
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("grid search found no finite score: %w", changepoint.ErrArgumentRange)
	}
	return &Result{Best: evaluations[best], Evaluations: evaluations}, nil
}

func evaluate(signal *changepoint.Signal, newCost CostFactory, minSize, jump int, penalties []float64, objective Objective, out []Evaluation) error {
	cost, err := newCost()
	if err != nil {
		return fmt.Errorf("grid search cost: %w", err)
	}
	engine := changepoint.NewPelt(
		changepoint.WithCost(cost),
		changepoint.WithMinSize(minSize),
		changepoint.WithJump(jump),
	)
	if err := engine.Fit(signal); err != nil {
		return err
	}

	for i, pen := range penalties {
		bkps, err := engine.Predict(pen)
		if err != nil {
			return fmt.Errorf("grid search min_size=%d jump=%d penalty=%v: %w", minSize, jump, pen, err)
		}
		total, err := partitionCost(cost, bkps, signal.Len())
		if err != nil {
			return err
		}

		e := Evaluation{
			Penalty:     pen,
			MinSize:     minSize,
			Jump:        jump,
			Breakpoints: bkps,
			Cost:        total,
		}
		e.Score = objective(e)
		out[i] = e
	}
	return nil
}

func partitionCost(cost changepoint.Cost, bkps []int, n int) (float64, error) {
	if n == 0 {
		return 0, nil
	}
	var total float64
	start := 0
	for _, end := range append(bkps[:len(bkps):len(bkps)], n) {
		c, err := cost.ComputeCost(start, end)
		if err != nil {
			return 0, err
		}
		total += c
		start = end
	}
	return total, nil
}
