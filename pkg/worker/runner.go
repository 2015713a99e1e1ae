package worker

import (
	"context"
	"log/slog"
)

// Job processes one input. A non-nil error counts the job as failed; its output is still kept.
type Job[In, Out any] func(ctx context.Context, index int, in In) (Out, error)

// Result is the outcome of one job
type Result[In, Out any] struct {
	Index  int
	Input  In
	Output Out
	Err    error
}

// Tally counts job outcomes
type Tally struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// Runner feeds inputs to a single worker, one job in flight at a time, in input order
type Runner[In, Out any] struct {
	name          string
	job           Job[In, Out]
	progressEvery int
}

// NewRunner creates a runner. Progress is logged every progressEvery finished jobs (0 disables it).
func NewRunner[In, Out any](name string, job Job[In, Out], progressEvery int) *Runner[In, Out] {
	return &Runner[In, Out]{name: name, job: job, progressEvery: progressEvery}
}

// Run processes inputs in order. On cancellation the remaining inputs are skipped and
// the context error is returned along with the results gathered so far.
func (r *Runner[In, Out]) Run(ctx context.Context, inputs []In) ([]Result[In, Out], Tally, error) {
	type job struct {
		index int
		input In
	}
	jobChan := make(chan job)
	resultsChan := make(chan Result[In, Out])

	// feeder: stops handing out work once ctx is done
	go func() {
		defer close(jobChan)
		for i, in := range inputs {
			select {
			case <-ctx.Done():
				return
			case jobChan <- job{index: i, input: in}:
			}
		}
	}()

	// the single worker
	go func() {
		defer close(resultsChan)
		for j := range jobChan {
			if ctx.Err() != nil {
				return
			}
			out, err := r.job(ctx, j.index, j.input)
			resultsChan <- Result[In, Out]{Index: j.index, Input: j.input, Output: out, Err: err}
		}
	}()

	var (
		tally   Tally
		results = make([]Result[In, Out], 0, len(inputs))
	)
	for res := range resultsChan {
		results = append(results, res)
		if res.Err == nil {
			tally.Succeeded++
		} else {
			tally.Failed++
			slog.Debug("Runner: job failed", "runner", r.name, "index", res.Index, "error", res.Err)
		}

		done := tally.Succeeded + tally.Failed
		if r.progressEvery > 0 && done%r.progressEvery == 0 {
			slog.Info("Runner: progress", "runner", r.name, "done", done, "total", len(inputs), "succeeded", tally.Succeeded, "failed", tally.Failed)
		}
	}
	tally.Skipped = len(inputs) - len(results)

	slog.Info("Runner: completed", "runner", r.name, "succeeded", tally.Succeeded, "failed", tally.Failed, "skipped", tally.Skipped, "total", len(inputs))

	if err := ctx.Err(); err != nil && tally.Skipped > 0 {
		return results, tally, err
	}
	return results, tally, nil
}
