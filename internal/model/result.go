package model

import (
	"fmt"
	"sort"
)

// CandidateConfig is one feasible (VM, task subset) execution plan.
// Maps are keyed by task id, except Wlan/Wan which are keyed by access point id.
type CandidateConfig struct {
	Id                int             `json:"id"`
	Weight            int             `json:"cost"`
	Vm                int             `json:"vm"`
	Tasks             []int           `json:"tasks"`
	Cpu               float64         `json:"cpu"`
	Ram               float64         `json:"ram"`
	Wlan              map[int]int     `json:"wlan"`
	Wan               map[int]int     `json:"wan"`
	Man               int             `json:"man"`
	ProcessingTime    map[int]float64 `json:"processing_time"`
	CommunicationTime map[int]float64 `json:"comunication_time"`
	WaitingTime       map[int]float64 `json:"waiting_time"`
	CostInitialize    float64         `json:"cost_initialize"`
	CostPerTime       float64         `json:"cost_per_time"`
}

func (c *CandidateConfig) TotalDelay(taskId int) float64 {
	return c.ProcessingTime[taskId] + c.CommunicationTime[taskId] + c.WaitingTime[taskId]
}

// Cost is what selecting the config adds to the cost objective.
func (c *CandidateConfig) Cost() float64 {
	cost := c.CostInitialize
	for _, taskId := range c.Tasks {
		cost += c.CostPerTime * (c.ProcessingTime[taskId] + c.CommunicationTime[taskId])
	}

	return cost
}

// Catalog is append only and ordered by config id.
type Catalog struct {
	configs []*CandidateConfig
	byId    map[int]*CandidateConfig
}

func NewCatalog() *Catalog {
	return &Catalog{
		byId: make(map[int]*CandidateConfig),
	}
}

func (c *Catalog) Add(config *CandidateConfig) error {
	if n := len(c.configs); n > 0 && c.configs[n-1].Id >= config.Id {
		return fmt.Errorf("config %d added after config %d", config.Id, c.configs[n-1].Id)
	}

	c.configs = append(c.configs, config)
	c.byId[config.Id] = config

	return nil
}

func (c *Catalog) Get(id int) (*CandidateConfig, bool) {
	config, ok := c.byId[id]
	return config, ok
}

func (c *Catalog) Configs() []*CandidateConfig {
	return c.configs
}

func (c *Catalog) Len() int {
	return len(c.configs)
}

// ExclusionIndex maps a task id to every generated config id that contains
// it, discarded configs included.
type ExclusionIndex map[int][]int

func (e ExclusionIndex) Add(taskId, configId int) {
	e[taskId] = append(e[taskId], configId)
}

func (e ExclusionIndex) TaskIds() []int {
	ret := make([]int, 0, len(e))
	for taskId := range e {
		ret = append(ret, taskId)
	}
	sort.Ints(ret)

	return ret
}

// Assignment maps a task id to the VM id serving it.
type Assignment map[int]int

func (a Assignment) TaskIds() []int {
	ret := make([]int, 0, len(a))
	for taskId := range a {
		ret = append(ret, taskId)
	}
	sort.Ints(ret)

	return ret
}
