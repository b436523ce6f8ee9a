package sim

import (
	"testing"

	"github.com/amsen20/lotos/internal/config"
	"github.com/amsen20/lotos/internal/model"
	"github.com/amsen20/lotos/internal/model/testing_tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSharesCoreEqually(t *testing.T) {
	builder := testing_tool.New()
	vm := builder.GetVM(testing_tool.VMDesc{Cores: 1, Mips: 100, Cpu: 10, Ram: 5000})
	tasks := builder.GetTasks(
		testing_tool.TaskDesc{Ap: 1, Cpu: 2, Ram: 10, Cores: 1, Workload: 100},
		testing_tool.TaskDesc{Ap: 1, Cpu: 2, Ram: 10, Cores: 1, Workload: 100},
	)

	result, err := Run(vm, tasks)
	require.NoError(t, err)

	// Half a core each for the whole run: 100 MI at 50 MIPS.
	assert.InDelta(t, 2.0, result.Completion[1], 1e-9)
	assert.Equal(t, result.Completion[1], result.Completion[2])
	assert.InDelta(t, 2.0, result.ProcessingTime(2), 1e-9)
	assert.Equal(t, 4.0, result.PeakCpu)
	assert.Equal(t, 20.0+config.RAMBaseline, result.PeakRam)
}

func TestRunRecomputesSharesOnArrivalAndCompletion(t *testing.T) {
	builder := testing_tool.New()
	vm := builder.GetVM(testing_tool.VMDesc{Cores: 1, Mips: 100, Legacy: 0})
	tasks := builder.GetTasks(
		testing_tool.TaskDesc{Cpu: 1, Ram: 10, Cores: 1, Workload: 100, Arrival: 0},
		testing_tool.TaskDesc{Cpu: 3, Ram: 30, Cores: 1, Workload: 25, Arrival: 0.5},
	)

	result, err := Run(vm, tasks)
	require.NoError(t, err)

	// Task 1 runs alone at 100 MIPS until 0.5, both run at 50 MIPS until
	// task 2 is done at 1.0, then task 1 finishes its last 25 MI alone.
	assert.InDelta(t, 1.25, result.Completion[1], 1e-9)
	assert.InDelta(t, 1.0, result.Completion[2], 1e-9)
	assert.InDelta(t, 0.5, result.ProcessingTime(2), 1e-9)
	assert.Equal(t, 0.5, result.Arrival[2])
	assert.Equal(t, 4.0, result.PeakCpu)
	assert.Equal(t, 40.0+config.RAMBaseline, result.PeakRam)
}

func TestRunIdleGap(t *testing.T) {
	builder := testing_tool.New()
	vm := builder.GetVM(testing_tool.VMDesc{Cores: 2, Mips: 100})
	tasks := builder.GetTasks(
		testing_tool.TaskDesc{Cpu: 1, Ram: 10, Cores: 1, Workload: 10, Arrival: 5},
		testing_tool.TaskDesc{Cpu: 1, Ram: 10, Cores: 1, Workload: 10, Arrival: 0},
	)

	result, err := Run(vm, tasks)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, result.Completion[2], 1e-9)
	assert.InDelta(t, 5.1, result.Completion[1], 1e-9)
	assert.Equal(t, 1.0, result.PeakCpu, "the tasks never overlap")
}

func TestRunLegacyTasks(t *testing.T) {
	builder := testing_tool.New()

	t.Run("legacy tasks take a share", func(t *testing.T) {
		vm := builder.GetVM(testing_tool.VMDesc{Cores: 2, Mips: 90, Legacy: 2})
		tasks := builder.GetTasks(testing_tool.TaskDesc{Ram: 10, Cores: 1, Workload: 60})

		result, err := Run(vm, tasks)
		require.NoError(t, err)

		// 2/3 of a core at 90 MIPS.
		assert.InDelta(t, 1.0, result.Completion[tasks[0].Id], 1e-9)
		assert.Equal(t, 10.0, result.PeakRam, "no baseline with legacy tasks")
	})

	t.Run("demand caps the share", func(t *testing.T) {
		vm := builder.GetVM(testing_tool.VMDesc{Cores: 4, Mips: 50})
		tasks := builder.GetTasks(
			testing_tool.TaskDesc{Cores: 1, Workload: 100},
			testing_tool.TaskDesc{Cores: 1, Workload: 100},
		)

		result, err := Run(vm, tasks)
		require.NoError(t, err)

		for _, task := range tasks {
			assert.InDelta(t, 2.0, result.Completion[task.Id], 1e-9)
		}
	})
}

func TestRunDoesNotMutateTasks(t *testing.T) {
	builder := testing_tool.New()
	vm := builder.GetVM(testing_tool.VMDesc{Cores: 1, Mips: 10})
	tasks := builder.GetTasks(
		testing_tool.TaskDesc{Cores: 1, Workload: 30, Arrival: 1},
		testing_tool.TaskDesc{Cores: 0.5, Workload: 15},
	)

	_, err := Run(vm, tasks)
	require.NoError(t, err)

	assert.Equal(t, 30.0, tasks[0].MillionsOfInstructions)
	assert.Equal(t, 15.0, tasks[1].MillionsOfInstructions)
	assert.Equal(t, 1, tasks[0].Id, "input order is kept")
}

func TestRunStalled(t *testing.T) {
	builder := testing_tool.New()
	vm := builder.GetVM(testing_tool.VMDesc{Cores: 1, Mips: 0})
	tasks := builder.GetTasks(testing_tool.TaskDesc{Cores: 1, Workload: 10})

	_, err := Run(vm, tasks)
	assert.ErrorIs(t, err, ErrStalled)
}

func TestRunWithoutCores(t *testing.T) {
	builder := testing_tool.New()
	vm := builder.GetVM(testing_tool.VMDesc{Cores: 0, Mips: 100})
	tasks := builder.GetTasks(testing_tool.TaskDesc{Cores: 0, Workload: 10})

	_, err := Run(vm, tasks)
	assert.ErrorIs(t, err, ErrStalled)
}

func TestRunEmpty(t *testing.T) {
	result, err := Run(&model.VM{Id: 1, Cores: 1, MillionsOfInstructions: 1}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Completion)
	assert.Zero(t, result.PeakRam)
}
