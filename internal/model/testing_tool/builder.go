// Because it is a testing package, no errors are returned,
// all problems cause a panic.

package testing_tool

import (
	"fmt"
	"sort"

	"github.com/amsen20/lotos/internal/model"
)

// Used when a TaskDesc leaves Delay at zero.
const DefaultDelay = 1e6

type TaskDesc struct {
	User     int
	Ap       int
	Cpu      float64 // processing demand on edge and cloud
	Ram      float64
	Cores    float64
	Workload float64
	Arrival  float64
	Delay    float64
	Upload   float64
	Download float64
	Wait     float64
}

type VMDesc struct {
	Type     model.VMType
	Ap       int
	Cpu      float64
	Ram      float64
	Cores    float64
	Mips     float64
	CostInit float64
	CostTime float64
	Legacy   int
}

type APDesc struct {
	Wlan float64
	Wan  float64
}

type Builder struct {
	lastTaskId int
	lastVMId   int
}

func New() *Builder {
	return &Builder{}
}

// StableMAN is a metro network that is far from saturation.
func StableMAN() model.MANParams {
	return model.MANParams{
		DevCount:    10,
		AvgDownload: 100,
		PoissonDl:   1,
		PoissonUl:   1,
		AvgUpload:   100,
		Bandwidth:   1300 * 1024,
	}
}

// GetTasks assigns ids 1, 2, ... in the order of the descriptions.
func (builder *Builder) GetTasks(tasksDesc ...TaskDesc) []*model.Task {
	tasks := make([]*model.Task, 0, len(tasksDesc))
	for _, desc := range tasksDesc {
		builder.lastTaskId += 1

		delay := desc.Delay
		if delay == 0 {
			delay = DefaultDelay
		}
		user := desc.User
		if user == 0 {
			user = builder.lastTaskId
		}

		tasks = append(tasks, &model.Task{
			Id:                     builder.lastTaskId,
			UserId:                 user,
			ProcessingDemandEdge:   desc.Cpu,
			ProcessingDemandCloud:  desc.Cpu,
			RamDemand:              desc.Ram,
			UploadSize:             desc.Upload,
			DownloadSize:           desc.Download,
			CoresDemand:            desc.Cores,
			MillionsOfInstructions: desc.Workload,
			Ap:                     desc.Ap,
			DelayLimit:             delay,
			ArrivalOffset:          desc.Arrival,
			WaitingTime:            desc.Wait,
		})
	}

	return tasks
}

func (builder *Builder) GetVM(desc VMDesc) *model.VM {
	builder.lastVMId += 1

	vmType := desc.Type
	if vmType == "" {
		vmType = model.EDGE
	}

	return &model.VM{
		Id:                     builder.lastVMId,
		CpuCapacity:            desc.Cpu,
		RamCapacity:            desc.Ram,
		Cores:                  desc.Cores,
		MillionsOfInstructions: desc.Mips,
		Ap:                     desc.Ap,
		Type:                   vmType,
		CostInitialize:         desc.CostInit,
		CostPerTime:            desc.CostTime,
		LegacyTasks:            desc.Legacy,
	}
}

// GetSnapshot builds a validated snapshot with a stable MAN and room for
// 100 MAN users.
func (builder *Builder) GetSnapshot(aps map[int]APDesc, vmsDesc []VMDesc, tasksDesc []TaskDesc) *model.Snapshot {
	snapshot := model.NewSnapshot()
	snapshot.MAN = StableMAN()
	snapshot.ManCapacity = 100

	for id, desc := range aps {
		snapshot.AddAccessPoint(&model.AccessPoint{
			Id:           id,
			WlanCapacity: desc.Wlan,
			WanCapacity:  desc.Wan,
		})
	}
	for _, desc := range vmsDesc {
		snapshot.AddVM(builder.GetVM(desc))
	}
	for _, task := range builder.GetTasks(tasksDesc...) {
		snapshot.AddTask(task)
	}

	if err := snapshot.Validate(); err != nil {
		panic(err)
	}

	return snapshot
}

// Expect panics unless got holds exactly the wanted task to vm pairs.
func (builder *Builder) Expect(got model.Assignment, want map[int]int) {
	if len(got) != len(want) {
		panic(fmt.Errorf("got %d assigned tasks, wanted %d (%v vs %v)", len(got), len(want), got, want))
	}

	taskIds := make([]int, 0, len(want))
	for taskId := range want {
		taskIds = append(taskIds, taskId)
	}
	sort.Ints(taskIds)

	for _, taskId := range taskIds {
		vmId, ok := got[taskId]
		if !ok {
			panic(fmt.Errorf("expected task %d to be assigned, but it wasn't", taskId))
		}
		if vmId != want[taskId] {
			panic(fmt.Errorf("task %d: got vm %d, wanted vm %d", taskId, vmId, want[taskId]))
		}
	}
}
