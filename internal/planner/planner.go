// Package planner runs the batch pipeline: load the snapshot, generate the
// candidate configs, solve the coverage stage and then the cost stage, and
// persist the results. Nothing is written for a stage pair that fails.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/amsen20/lotos/alg"
	"github.com/amsen20/lotos/internal/config"
	"github.com/amsen20/lotos/internal/connector"
	"github.com/amsen20/lotos/internal/ilp"
	"github.com/amsen20/lotos/internal/model"
	"github.com/amsen20/lotos/logging"
	"github.com/amsen20/lotos/statistics"
	"gopkg.in/yaml.v3"
)

var log = logging.Get()

// Time log records.
const (
	CREATE_CONFIG_RECORD = "create_config="
	COVERAGE_RECORD      = "F1="
	COST_RECORD          = "F2="
)

type Options struct {
	Generate alg.GenerateOptions
	// Bounds each stage separately, zero means no bound.
	SolverTimeLimit time.Duration
}

func OptionsFromConfig(cfg config.GeneralConfig) Options {
	return Options{
		Generate:        alg.OptionsFromConfig(cfg),
		SolverTimeLimit: time.Duration(cfg.SolverTimeLimit) * time.Millisecond,
	}
}

func NewSolver(cfg config.GeneralConfig) (ilp.Solver, error) {
	switch cfg.Solver {
	case config.SolverBranchBound:
		return ilp.NewBranchBound(cfg.LPBoundMaxVars), nil
	}

	return nil, fmt.Errorf("solver %q is not recognized", cfg.Solver)
}

// Report sums up one run. Utilization is the peak cpu or ram share of
// every VM the cost stage uses.
type Report struct {
	Instance    string             `yaml:"instance"`
	Tasks       int                `yaml:"tasks"`
	VMs         int                `yaml:"vms"`
	Candidates  int                `yaml:"candidates"`
	Coverage    *alg.StageResult   `yaml:"coverage,omitempty"`
	Cost        *alg.StageResult   `yaml:"cost,omitempty"`
	Unserved    []int              `yaml:"unserved,omitempty"`
	Utilization map[int]float64    `yaml:"utilization,omitempty"`
	Elapsed     map[string]float64 `yaml:"elapsed"`
}

func (r *Report) String() string {
	bytes, _ := yaml.Marshal(r)
	return string(bytes)
}

type Planner struct {
	connector connector.Connector
	solver    ilp.Solver
	options   Options
}

func New(c connector.Connector, solver ilp.Solver, options Options) *Planner {
	return &Planner{
		connector: c,
		solver:    solver,
		options:   options,
	}
}

func (p *Planner) record(instance, record string, report *Report, elapsed time.Duration) error {
	report.Elapsed[record] = elapsed.Seconds()
	if err := p.connector.RecordElapsed(instance, record, elapsed.Seconds()); err != nil {
		log.Err(err).Send()

		return fmt.Errorf("could not record elapsed time of %s: %w", record, err)
	}

	return nil
}

// Generate builds the candidate catalog and exclusion index of the snapshot
// and saves both.
func (p *Planner) Generate(ctx context.Context, instance string) (*Report, error) {
	start := time.Now()
	report := &Report{Instance: instance, Elapsed: make(map[string]float64)}

	snapshot, err := p.connector.LoadSnapshot()
	if err != nil {
		return nil, err
	}
	report.Tasks = len(snapshot.Tasks)
	report.VMs = len(snapshot.VMs)

	catalog, exclusion, err := alg.GenerateCandidates(ctx, snapshot, p.options.Generate)
	if err != nil {
		return nil, err
	}
	report.Candidates = catalog.Len()

	if err := p.connector.SaveCandidates(catalog, exclusion); err != nil {
		log.Err(err).Send()

		return nil, fmt.Errorf("could not save candidates: %w", err)
	}

	if err := p.record(instance, CREATE_CONFIG_RECORD, report, time.Since(start)); err != nil {
		return nil, err
	}

	return report, nil
}

func (p *Planner) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.options.SolverTimeLimit > 0 {
		return context.WithTimeout(ctx, p.options.SolverTimeLimit)
	}

	return context.WithCancel(ctx)
}

func (p *Planner) solve(ctx context.Context, instance string) (*Report, error) {
	report := &Report{Instance: instance, Elapsed: make(map[string]float64)}

	snapshot, err := p.connector.LoadSnapshot()
	if err != nil {
		return nil, err
	}
	catalog, exclusion, err := p.connector.LoadCandidates()
	if err != nil {
		return nil, err
	}
	report.Tasks = len(snapshot.Tasks)
	report.VMs = len(snapshot.VMs)
	report.Candidates = catalog.Len()

	problem := alg.Problem{Snapshot: snapshot, Catalog: catalog, Exclusion: exclusion}

	startCoverage := time.Now()
	coverageCtx, cancel := p.stageContext(ctx)
	coverage, err := alg.SolveCoverage(coverageCtx, p.solver, problem)
	cancel()
	if err != nil {
		return nil, err
	}

	startCost := time.Now()
	costCtx, cancel := p.stageContext(ctx)
	cost, err := alg.SolveCost(costCtx, p.solver, problem, coverage)
	cancel()
	if err != nil {
		return nil, err
	}
	end := time.Now()

	solutions := make(map[string]model.Assignment, 2)
	for _, stage := range []*alg.StageResult{coverage, cost} {
		if err := p.connector.SaveModel(stage.Tag, stage.Model.String()); err != nil {
			log.Err(err).Send()

			return nil, fmt.Errorf("could not save model of stage %s: %w", stage.Tag, err)
		}
		solutions[stage.Tag] = stage.Assignment
	}
	if err := p.connector.SaveSolutions(solutions); err != nil {
		log.Err(err).Send()

		return nil, fmt.Errorf("could not save solutions: %w", err)
	}

	if err := p.record(instance, COVERAGE_RECORD, report, startCost.Sub(startCoverage)); err != nil {
		return nil, err
	}
	if err := p.record(instance, COST_RECORD, report, end.Sub(startCost)); err != nil {
		return nil, err
	}

	report.Coverage = coverage
	report.Cost = cost
	report.Unserved = alg.Unserved(snapshot, cost.Assignment)
	report.Utilization = alg.Utilization(snapshot, catalog, cost.Selected)

	return report, nil
}

func count(err error) {
	if err != nil {
		statistics.Change(statistics.FAILED_PLANS, 1)
		return
	}
	statistics.Change(statistics.PLANS, 1)
}

// Solve runs both stages over the saved candidates.
func (p *Planner) Solve(ctx context.Context, instance string) (*Report, error) {
	report, err := p.solve(ctx, instance)
	count(err)

	return report, err
}

// Run generates the candidates and then solves both stages.
func (p *Planner) Run(ctx context.Context, instance string) (*Report, error) {
	generated, err := p.Generate(ctx, instance)
	if err != nil {
		count(err)
		return nil, err
	}

	report, err := p.solve(ctx, instance)
	count(err)
	if err != nil {
		return nil, err
	}

	for record, seconds := range generated.Elapsed {
		report.Elapsed[record] = seconds
	}
	log.Info().Str("instance", instance).Int("served", report.Cost.Coverage).Int("unserved", len(report.Unserved)).Msg("plan ready")

	return report, nil
}
