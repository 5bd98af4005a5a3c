package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/sparkify/internal/metrics"
	"github.com/BartekS5/sparkify/pkg/logger"
	"github.com/google/uuid"
)

// Pipeline runs its phases strictly in order and stops at the first
// failing phase.
type Pipeline struct {
	Name     string
	Phases   []Phase
	DryRun   bool
	Recorder Recorder
	Logger   *logger.Logger
}

// NewPipeline creates a pipeline that records nothing and logs through the
// package-level logger.
func NewPipeline(name string, phases ...Phase) *Pipeline {
	return &Pipeline{
		Name:     name,
		Phases:   phases,
		Recorder: NopRecorder{},
		Logger:   logger.Default(),
	}
}

// Summary describes a finished (or aborted) pipeline run.
type Summary struct {
	RunID    string
	Runs     []Run
	Duration time.Duration
}

// Rows sums the rows reported by the phases that reported a count.
func (s *Summary) Rows() int64 {
	var total int64
	for _, r := range s.Runs {
		if r.Rows > 0 {
			total += r.Rows
		}
	}
	return total
}

func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	log := p.Logger
	if log == nil {
		log = logger.Default()
	}
	recorder := p.Recorder
	if recorder == nil {
		recorder = NopRecorder{}
	}

	summary := &Summary{RunID: uuid.NewString()}
	log = log.With("pipeline", p.Name, "run_id", summary.RunID)
	log.Info("Starting pipeline", "phases", len(p.Phases), "dry_run", p.DryRun)
	startTime := time.Now()

	for _, ph := range p.Phases {
		run := Run{
			RunID:     summary.RunID,
			Pipeline:  p.Name,
			Phase:     ph.Name(),
			StartedAt: time.Now().UTC(),
		}

		if p.DryRun {
			log.Info("[DRY RUN] Would run phase", "phase", ph.Name())
			run.Status = StatusSkipped
			run.FinishedAt = run.StartedAt
			summary.Runs = append(summary.Runs, run)
			continue
		}

		if err := ctx.Err(); err != nil {
			return summary, err
		}

		log.Info("Starting phase", "phase", ph.Name())
		rows, err := ph.Run(ctx)
		run.FinishedAt = time.Now().UTC()
		run.Rows = rows
		d := run.FinishedAt.Sub(run.StartedAt)
		metrics.RecordStep(p.Name, ph.Name(), err, d)

		if err != nil {
			run.Status = StatusFailed
			run.Error = err.Error()
			summary.Runs = append(summary.Runs, run)
			p.record(ctx, recorder, log, run)
			log.Error("Phase failed", "phase", ph.Name(), "error", err)
			return summary, fmt.Errorf("%s: phase %s: %w", p.Name, ph.Name(), err)
		}

		run.Status = StatusSucceeded
		summary.Runs = append(summary.Runs, run)
		p.record(ctx, recorder, log, run)
		log.Info("Phase completed", "phase", ph.Name(), "rows", rows, "duration", d.String())
	}

	summary.Duration = time.Since(startTime)
	log.Info("Pipeline finished successfully.", "duration", summary.Duration.String())
	return summary, nil
}

// record never fails the pipeline; history is best effort.
func (p *Pipeline) record(ctx context.Context, r Recorder, log *logger.Logger, run Run) {
	if err := r.Record(ctx, run); err != nil {
		log.Warn("Failed to record run history", "phase", run.Phase, "error", err)
	}
}
