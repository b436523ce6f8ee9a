package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amsen20/lotos/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documents = map[string]string{
	config.VMsFile: `{"vms": {"v1": {"id": 1, "cpu_capacity": 4, "ram_capacity": 8000, "cores": 2,
		"millions_of_instructions": 1000, "ap": 1, "type": "Edge", "cost_initialize": 1.5,
		"cost_per_time": 0, "legacy_tasks": 0}}}`,
	config.APsFile: `{"aps": {"1": {"id": 1, "wlan_capacity": 10, "wan_capacity": 5}}, "man_capacity": 20}`,
	config.MANFile: `{"man": {"dev_count": 10, "avg_download": 100, "poisson_dl": 1, "poisson_ul": 1,
		"avg_upload": 100, "man_bandwidth": 1331200}}`,
	config.TasksFile: `{"simulation_time": 0, "tasks": {"t7": {"id": 7, "user_id": 3, "processing_demand_edge": 1,
		"processing_demand_cloud": 0.5, "ram_demand": 100, "upload_size": 1000, "download_size": 10,
		"cores_demand": 1, "millions_of_instructions": 500, "ap": 1, "delay_limit": 1000,
		"delta_inicial": 0, "waiting_time": 0}}}`,
}

func TestPlanCommand(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()
	for name, content := range documents {
		require.NoError(t, os.WriteFile(filepath.Join(input, name), []byte(content), 0o644))
	}

	stdout := &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetArgs([]string{"plan", "cli-run", "--input_dir", input, "--output_dir", output})
	require.NoError(t, rootCmd.Execute())

	assert.True(t, strings.Contains(stdout.String(), "instance: cli-run"), stdout.String())

	solution, err := os.ReadFile(filepath.Join(output, "S2"+config.SolutionSuffix))
	require.NoError(t, err)
	assert.JSONEq(t, `{"solution": {"7": "1"}}`, string(solution))
	assert.FileExists(t, filepath.Join(output, "cli-run"+config.TimeLogSuffix))
	assert.FileExists(t, filepath.Join(input, config.CandidatesFile))
}

func TestInstanceDefaultsToUUID(t *testing.T) {
	assert.Equal(t, "given", instanceOf([]string{"given"}))
	assert.Len(t, instanceOf(nil), 36)
	assert.NotEqual(t, instanceOf(nil), instanceOf(nil))
}
