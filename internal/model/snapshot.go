package model

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Snapshot is everything the external simulator hands over for one run.
// Maps are keyed by the document keys ("t3", "v1", ...); identity is the
// Id field of each entry.
type Snapshot struct {
	VMs            map[string]*VM          `json:"vms"`
	AccessPoints   map[string]*AccessPoint `json:"aps"`
	ManCapacity    float64                 `json:"man_capacity"`
	MAN            MANParams               `json:"man"`
	Tasks          map[string]*Task        `json:"tasks"`
	SimulationTime float64                 `json:"simulation_time"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		VMs:          make(map[string]*VM),
		AccessPoints: make(map[string]*AccessPoint),
		Tasks:        make(map[string]*Task),
	}
}

func TaskKey(id int) string { return fmt.Sprintf("t%d", id) }

func VMKey(id int) string { return fmt.Sprintf("v%d", id) }

func APKey(id int) string { return fmt.Sprintf("%d", id) }

func (s *Snapshot) AddTask(task *Task) { s.Tasks[TaskKey(task.Id)] = task }

func (s *Snapshot) AddVM(vm *VM) { s.VMs[VMKey(vm.Id)] = vm }

func (s *Snapshot) AddAccessPoint(ap *AccessPoint) { s.AccessPoints[APKey(ap.Id)] = ap }

func (s *Snapshot) SortedTasks() []*Task {
	ret := make([]*Task, 0, len(s.Tasks))
	for _, task := range s.Tasks {
		ret = append(ret, task)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Id < ret[j].Id })

	return ret
}

func (s *Snapshot) SortedVMs() []*VM {
	ret := make([]*VM, 0, len(s.VMs))
	for _, vm := range s.VMs {
		ret = append(ret, vm)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Id < ret[j].Id })

	return ret
}

func (s *Snapshot) SortedAccessPoints() []*AccessPoint {
	ret := make([]*AccessPoint, 0, len(s.AccessPoints))
	for _, ap := range s.AccessPoints {
		ret = append(ret, ap)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Id < ret[j].Id })

	return ret
}

func (s *Snapshot) TaskById() map[int]*Task {
	ret := make(map[int]*Task, len(s.Tasks))
	for _, task := range s.Tasks {
		ret[task.Id] = task
	}

	return ret
}

func (s *Snapshot) VMById() map[int]*VM {
	ret := make(map[int]*VM, len(s.VMs))
	for _, vm := range s.VMs {
		ret[vm.Id] = vm
	}

	return ret
}

// Validate reports every problem in the snapshot at once.
func (s *Snapshot) Validate() error {
	var result *multierror.Error

	apIds := make(map[int]bool)
	for key, ap := range s.AccessPoints {
		if ap == nil {
			result = multierror.Append(result, fmt.Errorf("access point %s is empty", key))
			continue
		}
		if apIds[ap.Id] {
			result = multierror.Append(result, fmt.Errorf("access point id %d is duplicated", ap.Id))
		}
		apIds[ap.Id] = true

		if ap.WlanCapacity < 0 || ap.WanCapacity < 0 {
			result = multierror.Append(result, fmt.Errorf("access point %d has a negative capacity", ap.Id))
		}
	}
	if s.ManCapacity < 0 {
		result = multierror.Append(result, fmt.Errorf("man capacity is negative"))
	}

	vmIds := make(map[int]bool)
	for key, vm := range s.VMs {
		if vm == nil {
			result = multierror.Append(result, fmt.Errorf("vm %s is empty", key))
			continue
		}
		if vmIds[vm.Id] {
			result = multierror.Append(result, fmt.Errorf("vm id %d is duplicated", vm.Id))
		}
		vmIds[vm.Id] = true

		if !vm.Type.Valid() {
			result = multierror.Append(result, fmt.Errorf("vm %d has unknown type %q", vm.Id, vm.Type))
		}
		if vm.CpuCapacity < 0 || vm.RamCapacity < 0 || vm.Cores < 0 || vm.MillionsOfInstructions < 0 {
			result = multierror.Append(result, fmt.Errorf("vm %d has a negative capacity", vm.Id))
		}
		if vm.LegacyTasks < 0 {
			result = multierror.Append(result, fmt.Errorf("vm %d has a negative legacy task count", vm.Id))
		}
		// Cloud VMs are not attached to an access point (usually -1).
		if vm.Type == EDGE && !apIds[vm.Ap] {
			result = multierror.Append(result, fmt.Errorf("vm %d refers to unknown access point %d", vm.Id, vm.Ap))
		}
	}

	taskIds := make(map[int]bool)
	for key, task := range s.Tasks {
		if task == nil {
			result = multierror.Append(result, fmt.Errorf("task %s is empty", key))
			continue
		}
		if taskIds[task.Id] {
			result = multierror.Append(result, fmt.Errorf("task id %d is duplicated", task.Id))
		}
		taskIds[task.Id] = true

		if task.MillionsOfInstructions <= 0 {
			result = multierror.Append(result, fmt.Errorf("task %d has no remaining workload", task.Id))
		}
		if task.UploadSize < 0 || task.DownloadSize < 0 || task.RamDemand < 0 || task.CoresDemand < 0 {
			result = multierror.Append(result, fmt.Errorf("task %d has a negative demand", task.Id))
		}
		if !apIds[task.Ap] {
			result = multierror.Append(result, fmt.Errorf("task %d refers to unknown access point %d", task.Id, task.Ap))
		}
	}

	return result.ErrorOrNil()
}
