// Package pipeline runs the medallion stages in dependency order, checking
// each stage's inputs before it starts and recording every run in the audit
// ledger.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/crimeloom/internal/audit"
	"github.com/KaramelBytes/crimeloom/internal/config"
)

// Result is the row accounting of one stage.
type Result struct {
	RowsIn  int
	RowsOut int
}

// Stage is one step of the pipeline.
type Stage struct {
	Name   string
	Short  string
	Inputs func(Paths, *config.Pipeline) []Input
	exec   func(context.Context, *env) (Result, error)
}

// Stages lists every stage in dependency order.
var Stages = []Stage{
	{Name: "silver", Short: "Read the bronze sources into the silver tier", Inputs: bronzeInputs, exec: silverStage},
	{Name: "clean", Short: "Clean the silver tables into the gold base tier", Inputs: cleanInputs, exec: cleanStage},
	{Name: "merge", Short: "Backfill primary crime gaps from the secondary source", Inputs: mergeInputs, exec: mergeStage},
	{Name: "gold", Short: "Integrate the gold base tables", Inputs: goldInputs, exec: goldStage},
	{Name: "analytics", Short: "Add rates and time-series features", Inputs: analyticsInputs, exec: analyticsStage},
	{Name: "model", Short: "Project the model datasets", Inputs: modelInputs, exec: modelStage},
}

// Lookup returns the stage with the given name.
func Lookup(name string) (Stage, bool) {
	for _, s := range Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// Runner executes stages against one data directory.
type Runner struct {
	cfg    *config.Pipeline
	paths  Paths
	log    *zap.Logger
	ledger *audit.Ledger
}

// New returns a runner. ledger may be nil, in which case nothing is recorded.
func New(cfg *config.Pipeline, log *zap.Logger, ledger *audit.Ledger) *Runner {
	return &Runner{cfg: cfg, paths: Paths{Root: cfg.DataDir}, log: log, ledger: ledger}
}

// Paths returns the layout the runner reads and writes.
func (r *Runner) Paths() Paths { return r.paths }

// Run executes the named stages in the order given, or every stage when
// none is named. It stops at the first failure. The returned id is the
// ledger run id, empty without a ledger.
func (r *Runner) Run(ctx context.Context, names ...string) (string, error) {
	stages := Stages
	if len(names) > 0 {
		stages = make([]Stage, 0, len(names))
		for _, n := range names {
			s, ok := Lookup(n)
			if !ok {
				return "", fmt.Errorf("unknown stage %q", n)
			}
			stages = append(stages, s)
		}
	}

	e := &env{cfg: r.cfg, paths: r.paths, log: r.log}
	if r.ledger != nil {
		run, err := r.ledger.Begin(ctx)
		if err != nil {
			return "", err
		}
		e.run = run
	}
	err := r.runStages(ctx, e, stages)
	if e.run == nil {
		return "", err
	}
	if ferr := e.run.Finish(ctx, err); ferr != nil && err == nil {
		err = ferr
	}
	return e.run.ID, err
}

func (r *Runner) runStages(ctx context.Context, e *env, stages []Stage) error {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, in := range s.Inputs(r.paths, r.cfg) {
			if err := in.check(); err != nil {
				return fmt.Errorf("%s: %w", s.Name, err)
			}
		}
		log := r.log.With(zap.String("stage", s.Name))
		e.log = log
		started := time.Now()
		res, err := s.exec(ctx, e)
		if err != nil {
			log.Error("stage failed", zap.Error(err))
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		finished := time.Now()
		log.Info("stage done",
			zap.Int("rows_in", res.RowsIn),
			zap.Int("rows_out", res.RowsOut),
			zap.Duration("elapsed", finished.Sub(started)))
		if e.run != nil {
			rec := audit.StageRecord{Stage: s.Name, RowsIn: res.RowsIn, RowsOut: res.RowsOut, Started: started, Finished: finished}
			if err := e.run.Stage(ctx, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// env is what a stage sees.
type env struct {
	cfg   *config.Pipeline
	paths Paths
	log   *zap.Logger
	run   *audit.Run
}

func (e *env) dedup(ctx context.Context, dataset string, before, after int) error {
	if e.run == nil {
		return nil
	}
	return e.run.Dedup(ctx, dataset, before, after)
}

func (e *env) gapFill(ctx context.Context, category string, year, rows int, status string) error {
	if e.run == nil {
		return nil
	}
	return e.run.GapFill(ctx, category, year, rows, status)
}
