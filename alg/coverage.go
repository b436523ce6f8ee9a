package alg

import (
	"fmt"

	"github.com/amsen20/lotos/internal/model"
	"github.com/amsen20/lotos/internal/utils"
)

// CheckAssignment derives the task to VM assignment of the selected configs.
// A task served by two selected configs, two configs on one VM or an id
// missing from the catalog is an error.
// This function has no effect on the input.
func CheckAssignment(catalog *model.Catalog, selected []int) (model.Assignment, error) {
	assignment := make(model.Assignment)
	servedBy := make(map[int]int)
	vmUsedBy := make(map[int]int)

	for _, configId := range selected {
		config, ok := catalog.Get(configId)
		if !ok {
			return nil, fmt.Errorf("selected config %d is not in the catalog", configId)
		}

		if previous, ok := vmUsedBy[config.Vm]; ok {
			return nil, fmt.Errorf("vm %d runs both config %d and config %d", config.Vm, previous, configId)
		}
		vmUsedBy[config.Vm] = configId

		for _, taskId := range config.Tasks {
			if previous, ok := servedBy[taskId]; ok {
				return nil, fmt.Errorf("task %d is in both config %d and config %d", taskId, previous, configId)
			}
			servedBy[taskId] = configId
			assignment[taskId] = config.Vm
		}
	}

	return assignment, nil
}

// Coverage is the number of tasks the selected configs serve.
func Coverage(catalog *model.Catalog, selected []int) int {
	ret := 0
	for _, configId := range selected {
		if config, ok := catalog.Get(configId); ok {
			ret += config.Weight
		}
	}

	return ret
}

// Unserved lists the snapshot tasks left out of the assignment.
func Unserved(snapshot *model.Snapshot, assignment model.Assignment) []int {
	served := utils.SliceToMap(assignment.TaskIds(), func(taskId int) int { return taskId })

	ret := make([]int, 0)
	for _, task := range snapshot.SortedTasks() {
		if !served[task.Id] {
			ret = append(ret, task.Id)
		}
	}

	return ret
}

// Utilization maps every VM a selected config runs on to the largest share
// of its cpu or ram that the config peaks at.
func Utilization(snapshot *model.Snapshot, catalog *model.Catalog, selected []int) map[int]float64 {
	vms := snapshot.VMById()

	ret := make(map[int]float64)
	for _, configId := range selected {
		config, ok := catalog.Get(configId)
		if !ok {
			continue
		}
		vm, ok := vms[config.Vm]
		if !ok {
			continue
		}
		ret[vm.Id] = utils.Utilization(utils.Resources(config.Cpu, config.Ram), utils.Resources(vm.CpuCapacity, vm.RamCapacity))
	}

	return ret
}
