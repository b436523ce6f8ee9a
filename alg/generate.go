package alg

import (
	"context"
	"errors"
	"fmt"

	"github.com/amsen20/lotos/internal/config"
	"github.com/amsen20/lotos/internal/model"
	"github.com/amsen20/lotos/internal/network"
	"github.com/amsen20/lotos/internal/utils"
	"github.com/amsen20/lotos/logging"
	"github.com/amsen20/lotos/sim"
	"github.com/amsen20/lotos/statistics"
	"golang.org/x/sync/errgroup"
)

var log = logging.Get()

var ErrBatchTooLarge = errors.New("task batch is too large to enumerate")

type GenerateOptions struct {
	Workers        int
	MaxBatchSize   int
	EnforceHorizon bool
}

func OptionsFromConfig(cfg config.GeneralConfig) GenerateOptions {
	return GenerateOptions{
		Workers:        cfg.Workers,
		MaxBatchSize:   cfg.MaxBatchSize,
		EnforceHorizon: cfg.EnforceHorizon,
	}
}

type outcome int

const (
	FEASIBLE outcome = iota
	OVER_CAPACITY
	MISSED_DEADLINE
	PAST_HORIZON
	SATURATED
	STALLED
)

var outcomeStatistic = map[outcome]string{
	FEASIBLE:        statistics.FEASIBLE_CANDIDATES,
	OVER_CAPACITY:   statistics.DROPPED_CAPACITY,
	MISSED_DEADLINE: statistics.DROPPED_DEADLINE,
	PAST_HORIZON:    statistics.DROPPED_HORIZON,
	SATURATED:       statistics.DROPPED_NETWORK,
	STALLED:         statistics.DROPPED_STALLED,
}

type evaluation struct {
	outcome outcome
	config  *model.CandidateConfig
}

// Combinations lists every non empty subset of n items by size, each size in
// lexicographic order.
func Combinations(n int) [][]int {
	ret := make([][]int, 0, (1<<n)-1)

	var choose func(cnt, start int, cur []int)
	choose = func(cnt, start int, cur []int) {
		if cnt == 0 {
			ret = append(ret, append([]int(nil), cur...))
			return
		}
		for it := start; it < n-cnt+1; it++ {
			choose(cnt-1, it+1, append(cur, it))
		}
	}

	for size := 1; size <= n; size++ {
		choose(size, 0, make([]int, 0, size))
	}

	return ret
}

// ConfigId numbers the subsets of every VM consecutively from one.
func ConfigId(vmIndex, subsetIndex, numberOfTasks int) int {
	return vmIndex*((1<<numberOfTasks)-1) + subsetIndex + 1
}

// GenerateCandidates checks every (VM, task subset) pairing and keeps the
// feasible ones. Every generated id, kept or not, is put in the exclusion
// index. The result does not depend on the number of workers.
func GenerateCandidates(ctx context.Context, snapshot *model.Snapshot, opts GenerateOptions) (*model.Catalog, model.ExclusionIndex, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, nil, err
	}

	tasks := snapshot.SortedTasks()
	vms := snapshot.SortedVMs()

	limit := opts.MaxBatchSize
	if limit <= 0 || limit > config.MaxEnumerableTasks {
		limit = config.MaxEnumerableTasks
	}
	if len(tasks) > limit {
		return nil, nil, fmt.Errorf("%w: %d tasks, at most %d", ErrBatchTooLarge, len(tasks), limit)
	}

	catalog := model.NewCatalog()
	exclusion := make(model.ExclusionIndex, len(tasks))
	for _, task := range tasks {
		exclusion[task.Id] = make([]int, 0)
	}
	if len(tasks) == 0 || len(vms) == 0 {
		return catalog, exclusion, nil
	}

	subsets := Combinations(len(tasks))
	evaluations := make([]evaluation, len(vms)*len(subsets))

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for vmIndex := range vms {
		for subsetIndex := range subsets {
			vm := vms[vmIndex]
			subset := subsets[subsetIndex]
			at := vmIndex*len(subsets) + subsetIndex
			id := ConfigId(vmIndex, subsetIndex, len(tasks))

			group.Go(func() error {
				if err := groupCtx.Err(); err != nil {
					return err
				}

				chosen := make([]*model.Task, len(subset))
				for i, taskIndex := range subset {
					chosen[i] = tasks[taskIndex]
				}
				evaluations[at] = evaluate(id, vm, chosen, snapshot, opts)

				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	counts := make(map[outcome]int)
	for vmIndex := range vms {
		for subsetIndex, subset := range subsets {
			id := ConfigId(vmIndex, subsetIndex, len(tasks))
			for _, taskIndex := range subset {
				exclusion.Add(tasks[taskIndex].Id, id)
			}

			current := evaluations[vmIndex*len(subsets)+subsetIndex]
			counts[current.outcome]++
			if current.outcome != FEASIBLE {
				continue
			}
			if err := catalog.Add(current.config); err != nil {
				return nil, nil, err
			}
		}
	}

	statistics.Change(statistics.CANDIDATES, len(evaluations))
	for current, count := range counts {
		statistics.Change(outcomeStatistic[current], count)
	}
	log.Info().Int("generated", len(evaluations)).Int("feasible", catalog.Len()).Msg("candidates generated")

	return catalog, exclusion, nil
}

// evaluate only reads its inputs, so any number of them may run at once.
func evaluate(id int, vm *model.VM, tasks []*model.Task, snapshot *model.Snapshot, opts GenerateOptions) evaluation {
	result, err := sim.Run(vm, tasks)
	if err != nil {
		log.Debug().Err(err).Int("config", id).Msg("dropping candidate")
		return evaluation{outcome: STALLED}
	}

	if !utils.LEThan(utils.Resources(result.PeakCpu, result.PeakRam), utils.Resources(vm.CpuCapacity, vm.RamCapacity)) {
		return evaluation{outcome: OVER_CAPACITY}
	}

	candidate := &model.CandidateConfig{
		Id:                id,
		Weight:            len(tasks),
		Vm:                vm.Id,
		Tasks:             make([]int, 0, len(tasks)),
		Cpu:               result.PeakCpu,
		Ram:               result.PeakRam,
		Wlan:              make(map[int]int),
		Wan:               make(map[int]int),
		ProcessingTime:    make(map[int]float64, len(tasks)),
		CommunicationTime: make(map[int]float64, len(tasks)),
		WaitingTime:       make(map[int]float64, len(tasks)),
		CostInitialize:    vm.CostInitialize,
		CostPerTime:       vm.CostPerTime,
	}

	usersOfAp := make(map[int]map[int]bool)
	for _, task := range tasks {
		candidate.Tasks = append(candidate.Tasks, task.Id)
		if usersOfAp[task.Ap] == nil {
			usersOfAp[task.Ap] = make(map[int]bool)
		}
		if !usersOfAp[task.Ap][task.UserId] {
			usersOfAp[task.Ap][task.UserId] = true
			candidate.Wlan[task.Ap]++
		}
		if task.Ap != vm.Ap {
			candidate.Man++
		}
	}
	if vm.Type == model.CLOUD {
		for ap, users := range candidate.Wlan {
			candidate.Wan[ap] = users
		}
	}

	for _, task := range tasks {
		communication, err := network.CommunicationTime(vm, task, candidate.Wlan, candidate.Wan, snapshot.MAN)
		if err != nil {
			return evaluation{outcome: SATURATED}
		}

		candidate.ProcessingTime[task.Id] = result.ProcessingTime(task.Id)
		candidate.CommunicationTime[task.Id] = communication
		candidate.WaitingTime[task.Id] = task.WaitingTime

		if opts.EnforceHorizon && snapshot.SimulationTime > 0 &&
			task.ArrivalOffset+candidate.TotalDelay(task.Id) >= snapshot.SimulationTime {
			return evaluation{outcome: PAST_HORIZON}
		}
		if candidate.TotalDelay(task.Id) > task.DelayLimit {
			return evaluation{outcome: MISSED_DEADLINE}
		}
	}

	return evaluation{outcome: FEASIBLE, config: candidate}
}
