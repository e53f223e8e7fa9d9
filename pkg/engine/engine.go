// Package engine implements the accounting pipeline: it turns raw SLURM
// accounting records into per-job energy, emissions and cost figures and
// aggregates them into daily and whole-range datasets.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gracehpc/gracehpc/pkg/config"
	"github.com/gracehpc/gracehpc/pkg/intensity"
	"github.com/gracehpc/gracehpc/pkg/sacct"
)

// JobFetcher fetches raw accounting records for a period.
type JobFetcher interface {
	FetchJobs(ctx context.Context, start, end time.Time) ([]sacct.RawJob, error)
}

// IntensityResolver resolves the grid carbon intensity in effect at each of
// the given times. The returned slice is index-aligned with times.
type IntensityResolver interface {
	Intensities(ctx context.Context, times []time.Time) []intensity.Value
}

// Options are the arguments of one accounting run.
type Options struct {
	Start time.Time
	End   time.Time
	// JobIDs restricts the run to the given main job IDs. Empty means all
	// jobs in the period.
	JobIDs []string
	Scope  ScopeFactors
}

// Validate checks the options for inconsistencies before the pipeline runs.
func (o Options) Validate() error {
	if o.Start.IsZero() || o.End.IsZero() {
		return fmt.Errorf("%w: start and end times are required", ErrValidation)
	}

	if o.End.Before(o.Start) {
		return fmt.Errorf(
			"%w: end time %s is before start time %s",
			ErrValidation, o.End.Format(sacct.DatetimeLayout), o.Start.Format(sacct.DatetimeLayout),
		)
	}

	return nil
}

// Datasets is the complete output of one run.
type Datasets struct {
	// System is the configured HPC system name
	System string
	// Scope3 tells whether embodied emissions were included
	Scope3 bool

	Jobs  []JobResult
	Daily []Aggregate
	Total Total
}

// Engine runs the accounting pipeline.
type Engine struct {
	logger      *slog.Logger
	config      *config.Config
	jobs        JobFetcher
	intensities IntensityResolver
}

// New returns an Engine wired to the given accounting source and intensity
// resolver.
func New(
	logger *slog.Logger, cfg *config.Config, jobs JobFetcher, intensities IntensityResolver,
) *Engine {
	return &Engine{logger: logger, config: cfg, jobs: jobs, intensities: intensities}
}

// Run executes one accounting run. An empty period yields empty datasets, not
// an error. A job on a partition absent from the cluster configuration aborts
// the run before any figures are computed.
func (e *Engine) Run(ctx context.Context, opts Options) (*Datasets, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	raw, err := e.jobs.FetchJobs(ctx, opts.Start, opts.End)
	if err != nil {
		return nil, err
	}

	records, err := sacct.Normalize(e.logger, raw, sacct.NormalizeOptions{JobIDs: opts.JobIDs})
	if err != nil {
		return nil, err
	}

	datasets := &Datasets{System: e.config.SystemName, Scope3: opts.Scope.Enabled()}

	if len(records) == 0 {
		e.logger.Info(
			"No finished jobs found in period", "start", opts.Start.Format(sacct.DatetimeLayout),
			"end", opts.End.Format(sacct.DatetimeLayout),
		)

		return datasets, nil
	}

	// Resolve all hardware profiles up front so a misconfigured partition
	// aborts before any remote intensity calls are made
	profiles := make([]config.HardwareProfile, len(records))

	for i, rec := range records {
		if profiles[i], err = e.config.Profile(rec.Partition); err != nil {
			return nil, fmt.Errorf("job %s: %w", rec.JobID, err)
		}
	}

	times := make([]time.Time, len(records))
	for i, rec := range records {
		times[i] = rec.SubmittedAt
	}

	values := e.intensities.Intensities(ctx, times)

	datasets.Jobs = make([]JobResult, len(records))

	for i, rec := range records {
		energy := Estimate(rec, profiles[i])
		emissions := ComputeEmissions(rec, profiles[i], energy, values[i], opts.Scope)

		datasets.Jobs[i] = JobResult{
			Record:      rec,
			Profile:     profiles[i],
			Energy:      energy,
			Emissions:   emissions,
			Equivalents: EquivalentsFor(emissions.TotalGms),
		}
	}

	datasets.Daily = AggregateDaily(datasets.Jobs)
	datasets.Total = AggregateTotal(datasets.Jobs)

	e.logger.Info(
		"Accounting run finished", "njobs", len(datasets.Jobs), "ndays", len(datasets.Daily),
		"energy_kwh", datasets.Total.TotalKWh, "emissions_gms", datasets.Total.TotalGms,
	)

	return datasets, nil
}
