package statistics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Keys used by the planner.
const (
	CANDIDATES          = "generated candidates"
	FEASIBLE_CANDIDATES = "feasible candidates"
	DROPPED_CAPACITY    = "candidates over vm capacity"
	DROPPED_DEADLINE    = "candidates missing a deadline"
	DROPPED_HORIZON     = "candidates past the simulation horizon"
	DROPPED_NETWORK     = "candidates on a saturated link"
	DROPPED_STALLED     = "candidates on a stalled vm"
	SOLVER_NODES        = "branch and bound nodes"
	PLANS               = "plans"
	FAILED_PLANS        = "failed plans"
)

type statisticsData struct {
	dataMap map[string]int

	mutex sync.Mutex
}

var stats = &statisticsData{
	dataMap: make(map[string]int),
}

// Init forgets every value.
func Init() {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	stats.dataMap = make(map[string]int)
}

func Set(key string, value int) {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	stats.dataMap[key] = value
}

func Change(key string, value int) {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	stats.dataMap[key] += value
}

func Get(key string) int {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	return stats.dataMap[key]
}

func snapshot() ([]string, map[string]int) {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	keys := make([]string, 0, len(stats.dataMap))
	values := make(map[string]int, len(stats.dataMap))
	for key, value := range stats.dataMap {
		keys = append(keys, key)
		values[key] = value
	}
	sort.Strings(keys)

	return keys, values
}

func Display() string {
	keys, values := snapshot()

	result := "Statistics results are:\n"
	for _, key := range keys {
		result += fmt.Sprintf("Number of %s is %d\n", key, values[key])
	}

	return result
}

var statDesc = prometheus.NewDesc(
	"lotos_planner_statistic",
	"Planner counters, labelled by name.",
	[]string{"name"},
	nil,
)

type collector struct{}

// Collector exports every counter as a gauge labelled by its key.
func Collector() prometheus.Collector {
	return collector{}
}

func (collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- statDesc
}

func (collector) Collect(ch chan<- prometheus.Metric) {
	keys, values := snapshot()
	for _, key := range keys {
		ch <- prometheus.MustNewConstMetric(statDesc, prometheus.GaugeValue, float64(values[key]), key)
	}
}
