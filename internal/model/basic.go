package model

import "fmt"

type VMType string

const (
	EDGE  VMType = "Edge"
	CLOUD VMType = "Cloud"
)

func (t VMType) Valid() bool {
	return t == EDGE || t == CLOUD
}

// Task is one offloaded request. MillionsOfInstructions is the remaining
// workload; only the simulator's private clones ever decrease it.
type Task struct {
	Id                     int     `json:"id"`
	UserId                 int     `json:"user_id"`
	ProcessingDemandEdge   float64 `json:"processing_demand_edge"`
	ProcessingDemandCloud  float64 `json:"processing_demand_cloud"`
	RamDemand              float64 `json:"ram_demand"`
	UploadSize             float64 `json:"upload_size"`
	DownloadSize           float64 `json:"download_size"`
	CoresDemand            float64 `json:"cores_demand"`
	MillionsOfInstructions float64 `json:"millions_of_instructions"`
	Ap                     int     `json:"ap"`
	DelayLimit             float64 `json:"delay_limit"`
	ArrivalOffset          float64 `json:"delta_inicial"`
	WaitingTime            float64 `json:"waiting_time"`
}

// ProcessingDemand is the CPU the task asks for on a VM of the given type.
func (t *Task) ProcessingDemand(vmType VMType) float64 {
	if vmType == CLOUD {
		return t.ProcessingDemandCloud
	}

	return t.ProcessingDemandEdge
}

func (t *Task) Clone() *Task {
	clone := *t
	return &clone
}

func CloneTasks(tasks []*Task) []*Task {
	ret := make([]*Task, len(tasks))
	for i, task := range tasks {
		ret[i] = task.Clone()
	}

	return ret
}

type VM struct {
	Id                     int     `json:"id"`
	CpuCapacity            float64 `json:"cpu_capacity"`
	RamCapacity            float64 `json:"ram_capacity"`
	Cores                  float64 `json:"cores"`
	MillionsOfInstructions float64 `json:"millions_of_instructions"`
	Ap                     int     `json:"ap"`
	Type                   VMType  `json:"type"`
	CostInitialize         float64 `json:"cost_initialize"`
	CostPerTime            float64 `json:"cost_per_time"`
	LegacyTasks            int     `json:"legacy_tasks"`
}

func (vm *VM) String() string {
	return fmt.Sprintf("vm %d (%s, ap %d)", vm.Id, vm.Type, vm.Ap)
}

type AccessPoint struct {
	Id           int     `json:"id"`
	WlanCapacity float64 `json:"wlan_capacity"`
	WanCapacity  float64 `json:"wan_capacity"`
}

// MANParams describes the metro network shared by every edge VM.
type MANParams struct {
	DevCount    float64 `json:"dev_count"`
	AvgDownload float64 `json:"avg_download"`
	PoissonDl   float64 `json:"poisson_dl"`
	PoissonUl   float64 `json:"poisson_ul"`
	AvgUpload   float64 `json:"avg_upload"`
	Bandwidth   float64 `json:"man_bandwidth"`
}
