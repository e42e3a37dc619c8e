// Package pipeline drives one merge run through its phases on a background
// goroutine and reports phase-weighted progress and a single outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ryabkov82/sheetmerge/internal/apperror"
	"github.com/ryabkov82/sheetmerge/internal/config"
	"github.com/ryabkov82/sheetmerge/internal/logging"
	"github.com/ryabkov82/sheetmerge/internal/merger"
	"github.com/ryabkov82/sheetmerge/internal/metadata"
	"github.com/ryabkov82/sheetmerge/internal/table"
	"github.com/ryabkov82/sheetmerge/internal/validate"
	"github.com/ryabkov82/sheetmerge/internal/workbook"
)

// ErrRunInProgress is returned by Start while another run is active.
var ErrRunInProgress = errors.New("a merge run is already in progress")

// InputValidator checks paths and metadata before any data is read.
type InputValidator interface {
	CheckInput(path string) error
	CheckOutput(path string) error
	ValidateMetadata(rec metadata.Record) []validate.FieldError
}

// WorkbookReader loads one input file.
type WorkbookReader interface {
	Load(path string) (*table.Table, error)
}

// MergeEngine combines the loaded tables with the metadata record.
type MergeEngine interface {
	Merge(tables []*table.Table, meta metadata.Record) (*merger.Result, error)
}

// WorkbookWriter saves the merged table.
type WorkbookWriter interface {
	Save(t *table.Table, path string) error
}

// Request describes one run.
type Request struct {
	Inputs   []string
	Metadata metadata.Record
	Output   string
}

// InputFile is an input that passed validation.
type InputFile struct {
	Path string // absolute
	Name string
}

// Orchestrator runs merges. At most one run is active at a time.
type Orchestrator struct {
	validator InputValidator
	reader    WorkbookReader
	engine    MergeEngine
	writer    WorkbookWriter

	active atomic.Bool
}

// New returns an Orchestrator over the given components.
func New(v InputValidator, r WorkbookReader, m MergeEngine, w WorkbookWriter) *Orchestrator {
	return &Orchestrator{validator: v, reader: r, engine: m, writer: w}
}

// NewFromConfig wires the default components from cfg.
func NewFromConfig(cfg *config.Config) *Orchestrator {
	return New(
		validate.New(cfg.Validation),
		workbook.NewReader(cfg.Reader),
		merger.New(cfg.Merge),
		workbook.NewWriter(cfg.Writer),
	)
}

// Busy reports whether a run is active.
func (o *Orchestrator) Busy() bool {
	return o.active.Load()
}

// Start launches a run and returns immediately. The run stops at the next
// file or phase boundary once ctx is done.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Run, error) {
	if !o.active.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}

	run := newRun(uuid.NewString(), len(req.Inputs))
	ctx = logging.WithRunID(ctx, run.id)
	go func() {
		out := o.execute(ctx, run, req)
		o.active.Store(false)
		run.finish(out)
	}()
	return run, nil
}

// Process runs req to completion and returns its outcome.
func (o *Orchestrator) Process(ctx context.Context, req Request) (Outcome, error) {
	run, err := o.Start(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	return run.Wait(), nil
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, req Request) (out Outcome) {
	started := time.Now()
	log := logging.WithFields(ctx, "output", filepath.Base(req.Output), "files", len(req.Inputs))

	defer func() {
		if rec := recover(); rec != nil {
			out = failure(apperror.NewUnknown("internal error",
				fmt.Errorf("panic while %s: %v\n%s", run.State(), rec, debug.Stack())))
		}
		out.Duration = time.Since(started)
		if out.Success {
			log.Info("run completed", "rows", out.Rows, "duration", out.Duration)
		} else {
			log.Error("run failed", "state", run.State(), "kind", out.Kind, "error", out.Err)
		}
	}()

	log.Info("run started")
	res, err := o.process(ctx, run, req, log)
	if err != nil {
		return failure(err)
	}

	name := filepath.Base(req.Output)
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Successfully processed %d files and saved to %s", len(req.Inputs), name),
		Files:   len(req.Inputs),
		Rows:    res.Table.Len(),
		Output:  req.Output,
		Coerced: res.Coerced,
	}
}

func (o *Orchestrator) process(ctx context.Context, run *Run, req Request, log *slog.Logger) (*merger.Result, error) {
	if err := o.preflight(req); err != nil {
		return nil, err
	}
	n := len(req.Inputs)

	run.enter(StateValidating)
	files := make([]InputFile, 0, n)
	for i, path := range req.Inputs {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}
		if err := o.validator.CheckInput(path); err != nil {
			return nil, classify(err, func(err error) error {
				return apperror.NewValidation(fmt.Sprintf("%s is not a valid spreadsheet", filepath.Base(path)), err)
			})
		}
		f, err := newInputFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
		log.Debug("input validated", "file", f.Path)
		run.progress(bandPercent(0, validateEnd, i, n), "validated "+f.Name)
	}

	run.enter(StateLoading)
	tables := make([]*table.Table, 0, n)
	for i, f := range files {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}
		t, err := o.reader.Load(f.Path)
		if err != nil {
			return nil, classify(err, func(err error) error {
				return apperror.NewRead(fmt.Sprintf("cannot read %s", f.Name), err)
			})
		}
		tables = append(tables, t)
		log.Debug("input loaded", "file", f.Path, "rows", t.Len(), "columns", len(t.Columns))
		run.progress(bandPercent(validateEnd, loadEnd, i, n), fmt.Sprintf("loaded %s (%d rows)", f.Name, t.Len()))
	}

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}
	run.enter(StateMerging)
	run.progress(mergeStart, fmt.Sprintf("merging %d tables", len(tables)))
	res, err := o.engine.Merge(tables, req.Metadata)
	if err != nil {
		return nil, classify(err, func(err error) error {
			return apperror.NewUnknown("merge failed", err)
		})
	}
	for _, p := range res.Similar {
		log.Warn("similar column names kept apart", "existing", p.Existing, "added", p.Added, "distance", p.Distance)
	}
	if len(res.Coerced) > 0 {
		log.Info("columns unified as text", "columns", res.Coerced)
	}
	run.progress(mergeEnd, fmt.Sprintf("merged %d rows", res.Table.Len()))

	if err := checkCancel(ctx); err != nil {
		return nil, err
	}
	run.enter(StateSaving)
	name := filepath.Base(req.Output)
	if err := o.writer.Save(res.Table, req.Output); err != nil {
		return nil, classify(err, func(err error) error {
			return apperror.NewWrite("cannot write "+name, err)
		})
	}
	run.progress(saveEnd, "saved "+name)
	return res, nil
}

// preflight rejects requests that cannot start. It emits no progress.
func (o *Orchestrator) preflight(req Request) error {
	if len(req.Inputs) == 0 {
		return apperror.NewValidation("nothing to merge: no input files given", nil)
	}
	if err := o.validator.CheckOutput(req.Output); err != nil {
		return classify(err, func(err error) error {
			return apperror.NewValidation("invalid output path", err)
		})
	}
	if errs := o.validator.ValidateMetadata(req.Metadata); len(errs) > 0 {
		fields := make([]string, len(errs))
		for i, e := range errs {
			fields[i] = e.Error()
		}
		return apperror.NewFieldValidation("invalid metadata: "+strings.Join(fields, ", "), fields)
	}
	return nil
}

func newInputFile(path string) (InputFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return InputFile{}, apperror.NewUnknown("cannot resolve input path", err)
	}
	return InputFile{Path: abs, Name: filepath.Base(abs)}, nil
}

// classify keeps errors that already carry a kind and wraps the rest.
func classify(err error, wrap func(error) error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	return wrap(err)
}

func checkCancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperror.NewCancelled(err)
	}
	return nil
}

func failure(err error) Outcome {
	out := Outcome{Kind: apperror.KindOf(err), Message: apperror.Message(err), Err: err}
	if e, ok := apperror.As(err); ok {
		out.Fields = e.Fields()
	}
	return out
}
