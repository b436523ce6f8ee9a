// Package sim replays a batch of tasks on one VM under processor sharing:
// every resident task gets an equal share of the VM's cores (legacy tasks
// included), capped by what the task can use, and the shares are recomputed
// whenever a task arrives or completes.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/amsen20/lotos/internal/config"
	"github.com/amsen20/lotos/internal/model"
	"github.com/amsen20/lotos/internal/utils"
	"github.com/emirpasic/gods/trees/binaryheap"
)

// ErrStalled is returned when the VM cannot make progress on a task.
var ErrStalled = errors.New("vm makes no progress")

// Remaining workloads below this fraction of the initial one are done.
const tolerance = 1e-9

type Result struct {
	Completion map[int]float64
	Arrival    map[int]float64
	PeakCpu    float64
	PeakRam    float64
}

func (r Result) ProcessingTime(taskId int) float64 {
	return r.Completion[taskId] - r.Arrival[taskId]
}

type running struct {
	task     *model.Task
	workload float64
	rate     float64
}

func (r *running) finishIn() float64 {
	return r.task.MillionsOfInstructions / r.rate
}

type state struct {
	vm     *model.VM
	clock  float64
	active []*running
	result Result
}

// Run works on clones; the given tasks are never modified.
func Run(vm *model.VM, tasks []*model.Task) (Result, error) {
	s := &state{
		vm: vm,
		result: Result{
			Completion: make(map[int]float64, len(tasks)),
			Arrival:    make(map[int]float64, len(tasks)),
		},
	}
	if len(tasks) == 0 {
		return s.result, nil
	}

	pending := model.CloneTasks(tasks)
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].ArrivalOffset != pending[j].ArrivalOffset {
			return pending[i].ArrivalOffset < pending[j].ArrivalOffset
		}
		return pending[i].Id < pending[j].Id
	})
	for _, task := range pending {
		s.result.Arrival[task.Id] = task.ArrivalOffset
	}

	s.clock = pending[0].ArrivalOffset
	next := 0
	for next < len(pending) || len(s.active) > 0 {
		for next < len(pending) && pending[next].ArrivalOffset <= s.clock {
			s.active = append(s.active, &running{
				task:     pending[next],
				workload: pending[next].MillionsOfInstructions,
			})
			next++
		}

		if len(s.active) == 0 {
			s.clock = pending[next].ArrivalOffset
			continue
		}

		s.observePeaks()

		first, err := s.earliestFinish()
		if err != nil {
			return Result{}, err
		}
		dt := first.finishIn()

		if next < len(pending) && s.clock+dt >= pending[next].ArrivalOffset {
			s.advance(pending[next].ArrivalOffset - s.clock)
			s.clock = pending[next].ArrivalOffset
			s.completeFinished()
			continue
		}

		s.advance(dt)
		s.clock += dt
		first.task.MillionsOfInstructions = 0
		s.completeFinished()
	}

	if vm.LegacyTasks == 0 {
		s.result.PeakRam += config.RAMBaseline
	}

	return s.result, nil
}

func (s *state) observePeaks() {
	usage := utils.Resources(0, 0)
	for _, r := range s.active {
		utils.SAddVec(usage, utils.Resources(r.task.ProcessingDemand(s.vm.Type), r.task.RamDemand))
	}

	s.result.PeakCpu = math.Max(s.result.PeakCpu, usage.AtVec(0))
	s.result.PeakRam = math.Max(s.result.PeakRam, usage.AtVec(1))
}

// earliestFinish recomputes every rate for the current active set and
// returns the task that completes first at those rates.
func (s *state) earliestFinish() (*running, error) {
	fairShare := s.vm.Cores / float64(len(s.active)+s.vm.LegacyTasks)
	if fairShare <= 0 || math.IsNaN(fairShare) {
		return nil, fmt.Errorf("%s has no cores to share: %w", s.vm, ErrStalled)
	}

	heap := binaryheap.NewWith(func(a, b interface{}) int {
		ra := a.(*running)
		rb := b.(*running)

		fa, fb := ra.finishIn(), rb.finishIn()
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return ra.task.Id - rb.task.Id
	})

	for _, r := range s.active {
		share := 1.0
		if r.task.CoresDemand > 0 {
			share = math.Min(1, fairShare/r.task.CoresDemand)
		}
		r.rate = share * s.vm.MillionsOfInstructions
		if r.rate <= 0 || math.IsNaN(r.rate) {
			return nil, fmt.Errorf("task %d on %s: %w", r.task.Id, s.vm, ErrStalled)
		}

		heap.Push(r)
	}

	first, _ := heap.Pop()
	return first.(*running), nil
}

func (s *state) advance(dt float64) {
	if dt <= 0 {
		return
	}

	for _, r := range s.active {
		r.task.MillionsOfInstructions -= r.rate * dt
		if r.task.MillionsOfInstructions <= tolerance*math.Max(1, r.workload) {
			r.task.MillionsOfInstructions = 0
		}
	}
}

func (s *state) completeFinished() {
	remaining := s.active[:0]
	for _, r := range s.active {
		if r.task.MillionsOfInstructions <= 0 {
			s.result.Completion[r.task.Id] = s.clock
			continue
		}
		remaining = append(remaining, r)
	}

	s.active = remaining
}
