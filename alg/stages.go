package alg

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/amsen20/lotos/internal/ilp"
	"github.com/amsen20/lotos/internal/model"
	"gopkg.in/yaml.v3"
)

var ErrPlanningFailed = errors.New("planning failed")

// Stage tags, also used to name the solution documents.
const (
	COVERAGE_STAGE = "S1"
	COST_STAGE     = "S2"
)

// Problem is what both stages are formulated over.
type Problem struct {
	Snapshot  *model.Snapshot
	Catalog   *model.Catalog
	Exclusion model.ExclusionIndex
}

type StageResult struct {
	Tag        string           `yaml:"tag"`
	Status     string           `yaml:"status"`
	Objective  float64          `yaml:"objective"`
	Coverage   int              `yaml:"coverage"`
	Selected   []int            `yaml:"selected"`
	Assignment model.Assignment `yaml:"assignment"`
	Nodes      int              `yaml:"nodes"`

	Model *ilp.Model `yaml:"-"`
}

func (r *StageResult) String() string {
	bytes, _ := yaml.Marshal(r)
	return string(bytes)
}

// BuildModel declares one binary variable per catalog config, in catalog
// order, and the constraints shared by both stages.
func BuildModel(name string, problem Problem) *ilp.Model {
	m := ilp.NewModel(name)
	configs := problem.Catalog.Configs()

	varOf := make(map[int]int, len(configs))
	for _, config := range configs {
		varOf[config.Id] = m.AddBinary(fmt.Sprintf("c%d", config.Id))
	}

	addConstraint := func(name string, terms []ilp.Term, relation ilp.Relation, rhs float64) {
		if len(terms) > 0 {
			m.AddConstraint(name, terms, relation, rhs)
		}
	}

	for _, vm := range problem.Snapshot.SortedVMs() {
		var cpu, ram, consistency []ilp.Term
		for _, config := range configs {
			if config.Vm != vm.Id {
				continue
			}
			v := varOf[config.Id]
			cpu = append(cpu, ilp.Term{Var: v, Coef: config.Cpu})
			ram = append(ram, ilp.Term{Var: v, Coef: config.Ram})
			consistency = append(consistency, ilp.Term{Var: v, Coef: 1})
		}
		addConstraint("processing_capacity", cpu, ilp.LessEqual, vm.CpuCapacity)
		addConstraint("ram_capacity", ram, ilp.LessEqual, vm.RamCapacity)
		addConstraint("consistency", consistency, ilp.LessEqual, 1)
	}

	for _, ap := range problem.Snapshot.SortedAccessPoints() {
		var wlan, wan []ilp.Term
		for _, config := range configs {
			if users, ok := config.Wlan[ap.Id]; ok {
				wlan = append(wlan, ilp.Term{Var: varOf[config.Id], Coef: float64(users)})
			}
			if users, ok := config.Wan[ap.Id]; ok {
				wan = append(wan, ilp.Term{Var: varOf[config.Id], Coef: float64(users)})
			}
		}
		addConstraint("wlan_capacity", wlan, ilp.LessEqual, ap.WlanCapacity)
		addConstraint("wan_capacity", wan, ilp.LessEqual, ap.WanCapacity)
	}

	var man []ilp.Term
	for _, config := range configs {
		man = append(man, ilp.Term{Var: varOf[config.Id], Coef: float64(config.Man)})
	}
	addConstraint("man_capacity", man, ilp.LessEqual, problem.Snapshot.ManCapacity)

	tasks := problem.Snapshot.TaskById()
	for _, taskId := range problem.Exclusion.TaskIds() {
		var delay, exclusion []ilp.Term
		for _, configId := range problem.Exclusion[taskId] {
			config, ok := problem.Catalog.Get(configId)
			if !ok {
				continue
			}
			v := varOf[configId]
			delay = append(delay, ilp.Term{Var: v, Coef: config.TotalDelay(taskId)})
			exclusion = append(exclusion, ilp.Term{Var: v, Coef: 1})
		}
		if task, ok := tasks[taskId]; ok {
			addConstraint("delay_limit", delay, ilp.LessEqual, task.DelayLimit)
		}
		addConstraint("exclusion", exclusion, ilp.LessEqual, 1)
	}

	return m
}

func coverageTerms(configs []*model.CandidateConfig) []ilp.Term {
	ret := make([]ilp.Term, 0, len(configs))
	for v, config := range configs {
		ret = append(ret, ilp.Term{Var: v, Coef: float64(config.Weight)})
	}

	return ret
}

// SolveCoverage maximizes the number of served tasks.
func SolveCoverage(ctx context.Context, solver ilp.Solver, problem Problem) (*StageResult, error) {
	m := BuildModel("task_orchestration", problem)
	m.SetObjective(ilp.Maximize, coverageTerms(problem.Catalog.Configs()))

	return solveStage(ctx, COVERAGE_STAGE, solver, m, problem)
}

// SolveCost minimizes the cost among the plans serving as many tasks as
// coverage did, starting from coverage's selection.
func SolveCost(ctx context.Context, solver ilp.Solver, problem Problem, coverage *StageResult) (*StageResult, error) {
	configs := problem.Catalog.Configs()

	m := BuildModel("minimize_cost", problem)
	m.AddConstraint("stage_1_solution", coverageTerms(configs), ilp.Equal, float64(coverage.Coverage))

	cost := make([]ilp.Term, 0, len(configs))
	varOf := make(map[int]int, len(configs))
	for v, config := range configs {
		cost = append(cost, ilp.Term{Var: v, Coef: config.Cost()})
		varOf[config.Id] = v
	}
	m.SetObjective(ilp.Minimize, cost)

	start := make([]int, 0, len(coverage.Selected))
	for _, configId := range coverage.Selected {
		if v, ok := varOf[configId]; ok {
			start = append(start, v)
		}
	}
	if len(start) > 0 {
		m.SetStart(start)
	}

	result, err := solveStage(ctx, COST_STAGE, solver, m, problem)
	if err != nil {
		return nil, err
	}
	if result.Coverage != coverage.Coverage {
		return nil, fmt.Errorf("%w: stage %s serves %d tasks instead of %d", ErrPlanningFailed, COST_STAGE, result.Coverage, coverage.Coverage)
	}

	return result, nil
}

func solveStage(ctx context.Context, tag string, solver ilp.Solver, m *ilp.Model, problem Problem) (*StageResult, error) {
	solution, err := solver.Solve(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%w: stage %s: %w", ErrPlanningFailed, tag, err)
	}
	if err := solution.Status.Err(); err != nil {
		return nil, fmt.Errorf("%w: stage %s: %w", ErrPlanningFailed, tag, err)
	}

	configs := problem.Catalog.Configs()
	selected := make([]int, 0)
	for _, v := range solution.Selected() {
		selected = append(selected, configs[v].Id)
	}

	assignment, err := CheckAssignment(problem.Catalog, selected)
	if err != nil {
		return nil, fmt.Errorf("%w: stage %s: %w", ErrPlanningFailed, tag, err)
	}

	result := &StageResult{
		Tag:        tag,
		Status:     solution.Status.String(),
		Objective:  solution.Objective,
		Coverage:   Coverage(problem.Catalog, selected),
		Selected:   selected,
		Assignment: assignment,
		Nodes:      solution.Nodes,
		Model:      m,
	}
	if tag == COVERAGE_STAGE {
		result.Objective = math.Round(solution.Objective)
	}

	log.Info().Str("stage", tag).Str("status", result.Status).Float64("objective", result.Objective).
		Int("coverage", result.Coverage).Int("nodes", result.Nodes).Msg("stage solved")

	return result, nil
}
