package statistics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeIsSafeForWorkers(t *testing.T) {
	Init()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Change(CANDIDATES, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, Get(CANDIDATES))
	assert.True(t, strings.Contains(Display(), "Number of generated candidates is 800"))
}

func TestCollector(t *testing.T) {
	Init()
	Set(PLANS, 3)
	Set(FAILED_PLANS, 1)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(Collector()))

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)

	got := make(map[string]float64)
	for _, metric := range families[0].GetMetric() {
		got[metric.GetLabel()[0].GetValue()] = metric.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{PLANS: 3, FAILED_PLANS: 1}, got)
}
