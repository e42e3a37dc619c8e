package batch

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ryabkov82/sheetmerge/internal/apperror"
	"github.com/ryabkov82/sheetmerge/internal/config"
	"github.com/ryabkov82/sheetmerge/internal/logging"
	"github.com/ryabkov82/sheetmerge/internal/pipeline"
	"github.com/ryabkov82/sheetmerge/internal/validate"
)

// Result is the outcome of one job.
type Result struct {
	Job     Job
	RunID   string
	Outcome pipeline.Outcome
}

// Runner executes manifest jobs, each on its own orchestrator.
type Runner struct {
	cfg        *config.Config
	parallel   int
	onProgress func(Job, pipeline.Event)
}

// NewRunner returns a Runner. parallel overrides the manifest setting when
// positive. onProgress is called from job goroutines and may be nil.
func NewRunner(cfg *config.Config, parallel int, onProgress func(Job, pipeline.Event)) *Runner {
	return &Runner{cfg: cfg, parallel: parallel, onProgress: onProgress}
}

// Run executes every job and returns one Result per job, in manifest order.
// A failing job does not stop the others; cancelling ctx stops them all at
// their next file or phase boundary.
func (r *Runner) Run(ctx context.Context, m *Manifest) []Result {
	results := make([]Result, len(m.Jobs))

	var g errgroup.Group
	g.SetLimit(r.limit(m))
	for i, job := range m.Jobs {
		g.Go(func() error {
			results[i] = r.runJob(ctx, job, r.cfg.Metadata, m.Metadata)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) limit(m *Manifest) int {
	switch {
	case r.parallel > 0:
		return r.parallel
	case m.Parallel > 0:
		return m.Parallel
	default:
		return runtime.GOMAXPROCS(0)
	}
}

// runJob layers metadata as configuration, then manifest, then job.
func (r *Runner) runJob(ctx context.Context, job Job, defaults ...map[string]string) Result {
	log := logging.WithFields(ctx, "job", job.Name)

	inputs, err := r.inputs(job)
	if err != nil {
		log.Error("cannot collect job inputs", "error", err)
		return Result{Job: job, Outcome: pipeline.Outcome{
			Kind:    apperror.KindOf(err),
			Message: apperror.Message(err),
			Err:     err,
		}}
	}

	run, err := pipeline.NewFromConfig(r.cfg).Start(ctx, pipeline.Request{
		Inputs:   inputs,
		Metadata: job.Record(defaults...),
		Output:   job.Output,
	})
	if err != nil {
		// each job owns its orchestrator, so this is unexpected
		return Result{Job: job, Outcome: pipeline.Outcome{Message: err.Error(), Err: err}}
	}
	log.Debug("job started", "run_id", run.ID(), "inputs", len(inputs))

	for ev := range run.Events() {
		if r.onProgress != nil {
			r.onProgress(job, ev)
		}
	}
	return Result{Job: job, RunID: run.ID(), Outcome: run.Wait()}
}

// inputs returns the job's explicit inputs followed by the spreadsheets
// found under its directory. A previous output inside that directory is
// not an input.
func (r *Runner) inputs(job Job) ([]string, error) {
	inputs := append([]string(nil), job.Inputs...)
	if job.Dir == "" {
		return inputs, nil
	}
	found, err := validate.New(r.cfg.Validation).FindSpreadsheets(job.Dir)
	if err != nil {
		return nil, apperror.NewValidation(fmt.Sprintf("cannot list input directory for %s", job.Name), err)
	}
	return append(inputs, validate.Exclude(found, job.Output)...), nil
}

// Failed counts results that did not succeed.
func Failed(results []Result) int {
	n := 0
	for _, res := range results {
		if !res.Outcome.Success {
			n++
		}
	}
	return n
}
