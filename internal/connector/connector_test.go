package connector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/amsen20/lotos/internal/config"
	"github.com/amsen20/lotos/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	vmsJSON = `{"vms": {"v1": {"id": 1, "cpu_capacity": 4, "ram_capacity": 8000, "cores": 2,
		"millions_of_instructions": 1000, "ap": 1, "type": "Edge", "cost_initialize": 1.5,
		"cost_per_time": 0.1, "legacy_tasks": 0}}}`
	apsJSON   = `{"aps": {"1": {"id": 1, "wlan_capacity": 10, "wan_capacity": 5}}, "man_capacity": 20}`
	manJSON   = `{"man": {"dev_count": 10, "avg_download": 100, "poisson_dl": 1, "poisson_ul": 1, "avg_upload": 100, "man_bandwidth": 1331200}}`
	tasksJSON = `{"simulation_time": 300, "tasks": {"t7": {"id": 7, "user_id": 3, "processing_demand_edge": 1,
		"processing_demand_cloud": 0.5, "ram_demand": 100, "upload_size": 1000, "download_size": 10,
		"cores_demand": 1, "millions_of_instructions": 500, "ap": 1, "delay_limit": 2,
		"delta_inicial": 0.25, "waiting_time": 0.1}}}`
)

func writeInputs(t *testing.T, dir string, documents map[string]string) {
	t.Helper()
	for name, content := range documents {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func allInputs() map[string]string {
	return map[string]string{
		config.VMsFile:   vmsJSON,
		config.APsFile:   apsJSON,
		config.MANFile:   manJSON,
		config.TasksFile: tasksJSON,
	}
}

func TestLoadSnapshot(t *testing.T) {
	input := t.TempDir()
	writeInputs(t, input, allInputs())

	fc, err := NewFileConnector(input, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	snapshot, err := fc.LoadSnapshot()
	require.NoError(t, err)

	assert.Equal(t, 300.0, snapshot.SimulationTime)
	assert.Equal(t, 20.0, snapshot.ManCapacity)
	assert.Equal(t, 1331200.0, snapshot.MAN.Bandwidth)

	task := snapshot.TaskById()[7]
	require.NotNil(t, task)
	assert.Equal(t, 3, task.UserId)
	assert.Equal(t, 0.25, task.ArrivalOffset)
	assert.Equal(t, 0.5, task.ProcessingDemand(model.CLOUD))

	vm := snapshot.VMById()[1]
	require.NotNil(t, vm)
	assert.Equal(t, model.EDGE, vm.Type)
}

func TestLoadSnapshotWithDetachedCloudVM(t *testing.T) {
	input := t.TempDir()
	documents := allInputs()
	documents[config.VMsFile] = `{"vms": {"v2": {"id": 2, "cpu_capacity": 100, "ram_capacity": 64000, "cores": 8,
		"millions_of_instructions": 10000, "ap": -1, "type": "Cloud", "cost_initialize": 3,
		"cost_per_time": 0.5, "legacy_tasks": 0}}}`
	writeInputs(t, input, documents)

	fc, err := NewFileConnector(input, t.TempDir())
	require.NoError(t, err)

	snapshot, err := fc.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, -1, snapshot.VMById()[2].Ap)
}

func TestLoadSnapshotNamesTheDocument(t *testing.T) {
	for _, test := range []struct {
		name     string
		replace  map[string]string
		remove   string
		document string
	}{
		{name: "missing file", remove: config.MANFile, document: config.MANFile},
		{name: "malformed", replace: map[string]string{config.VMsFile: `{"vms": [`}, document: config.VMsFile},
		{name: "missing key", replace: map[string]string{config.APsFile: `{"aps": {}}`}, document: config.APsFile},
		{name: "missing horizon", replace: map[string]string{config.TasksFile: `{"tasks": {}}`}, document: config.TasksFile},
		{name: "invalid content", replace: map[string]string{config.VMsFile: `{"vms": {"v1": {"id": 1, "ap": 9, "type": "Fog"}}}`}, document: "snapshot"},
	} {
		t.Run(test.name, func(t *testing.T) {
			input := t.TempDir()
			documents := allInputs()
			for name, content := range test.replace {
				documents[name] = content
			}
			delete(documents, test.remove)
			writeInputs(t, input, documents)

			fc, err := NewFileConnector(input, t.TempDir())
			require.NoError(t, err)

			_, err = fc.LoadSnapshot()
			var inputError *InputError
			require.True(t, errors.As(err, &inputError), "%v", err)
			assert.Equal(t, test.document, inputError.Document)
		})
	}
}

func TestCandidatesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fc, err := NewFileConnector(dir, dir)
	require.NoError(t, err)

	catalog := model.NewCatalog()
	for _, id := range []int{2, 10} {
		require.NoError(t, catalog.Add(&model.CandidateConfig{
			Id:                id,
			Weight:            1,
			Vm:                1,
			Tasks:             []int{id},
			Wlan:              map[int]int{1: 1},
			Wan:               map[int]int{},
			ProcessingTime:    map[int]float64{id: 0.5},
			CommunicationTime: map[int]float64{id: 0.25},
			WaitingTime:       map[int]float64{id: 0},
		}))
	}
	exclusion := model.ExclusionIndex{2: {2, 5}, 10: {10}}

	require.NoError(t, fc.SaveCandidates(catalog, exclusion))

	loaded, loadedExclusion, err := fc.LoadCandidates()
	require.NoError(t, err)
	assert.Equal(t, catalog.Configs(), loaded.Configs(), "ids are ordered numerically")
	assert.Equal(t, exclusion, loadedExclusion)

	first, err := os.ReadFile(filepath.Join(dir, config.CandidatesFile))
	require.NoError(t, err)
	require.NoError(t, fc.SaveCandidates(loaded, loadedExclusion))
	second, err := os.ReadFile(filepath.Join(dir, config.CandidatesFile))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestOutputs(t *testing.T) {
	output := t.TempDir()
	fc, err := NewFileConnector(t.TempDir(), output)
	require.NoError(t, err)

	t.Run("solution", func(t *testing.T) {
		require.NoError(t, fc.SaveSolutions(map[string]model.Assignment{"S2": {3: 1, 12: 2}}))

		content, err := os.ReadFile(filepath.Join(output, "S2"+config.SolutionSuffix))
		require.NoError(t, err)
		assert.JSONEq(t, `{"solution": {"3": "1", "12": "2"}}`, string(content))
	})

	t.Run("time log", func(t *testing.T) {
		require.NoError(t, fc.RecordElapsed("run", "F1=", 1.5))
		require.NoError(t, fc.RecordElapsed("run", "F2=", 0.25))

		content, err := os.ReadFile(filepath.Join(output, "run"+config.TimeLogSuffix))
		require.NoError(t, err)
		assert.Equal(t, "F1=1.5\nF2=0.25\n", string(content))
	})

	t.Run("model", func(t *testing.T) {
		require.NoError(t, fc.SaveModel("S1", "Maximize\n"))

		content, err := os.ReadFile(filepath.Join(output, "model_s1.lp"))
		require.NoError(t, err)
		assert.Equal(t, "Maximize\n", string(content))
	})

	t.Run("no temporary files are left", func(t *testing.T) {
		entries, err := os.ReadDir(output)
		require.NoError(t, err)
		for _, entry := range entries {
			assert.NotEqual(t, '.', rune(entry.Name()[0]), entry.Name())
		}
	})
}

func TestSaveSolutionsIsAllOrNothing(t *testing.T) {
	output := t.TempDir()
	fc, err := NewFileConnector(t.TempDir(), output)
	require.NoError(t, err)

	// A directory in the way of the second document makes its move fail.
	require.NoError(t, os.Mkdir(filepath.Join(output, "S2"+config.SolutionSuffix), 0o755))

	err = fc.SaveSolutions(map[string]model.Assignment{
		"S1": {1: 1},
		"S2": {1: 2},
	})
	require.Error(t, err)

	assert.NoFileExists(t, filepath.Join(output, "S1"+config.SolutionSuffix))
	entries, err := os.ReadDir(output)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir())
}

func TestConstantConnector(t *testing.T) {
	c := NewConstantConnector(nil)
	_, err := c.LoadSnapshot()
	assert.Error(t, err)

	_, _, err = c.LoadCandidates()
	assert.Error(t, err)

	catalog := model.NewCatalog()
	require.NoError(t, c.SaveCandidates(catalog, model.ExclusionIndex{}))
	loaded, _, err := c.LoadCandidates()
	require.NoError(t, err)
	assert.Same(t, catalog, loaded)

	require.NoError(t, c.RecordElapsed("run", "F1=", 2))
	assert.Equal(t, []string{"F1=2"}, c.Elapsed["run"])
}
