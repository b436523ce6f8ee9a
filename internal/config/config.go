package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v2"
)

type GeneralConfig struct {
	Name            string `yaml:"name"`
	InputDir        string `yaml:"input_dir"`
	OutputDir       string `yaml:"output_dir"`
	Workers         int    `yaml:"workers"`
	MaxBatchSize    int    `yaml:"max_batch_size"`
	Solver          string `yaml:"solver"`
	SolverTimeLimit int    `yaml:"solver_time_limit"` // ms, 0 means no limit
	LPBoundMaxVars  int    `yaml:"lp_bound_max_vars"`
	EnforceHorizon  bool   `yaml:"enforce_horizon"`
	ListenAddress   string `yaml:"listen_address"`
}

var PlannerGeneralConfig = Default()

func Default() GeneralConfig {
	return GeneralConfig{
		Name:            "lotos",
		InputDir:        "./solver_configs",
		OutputDir:       "./solver_solutions",
		Workers:         runtime.NumCPU(),
		MaxBatchSize:    12,
		Solver:          SolverBranchBound,
		SolverTimeLimit: DefaultSolverTimeLimit,
		LPBoundMaxVars:  256,
		EnforceHorizon:  true,
		ListenAddress:   ":8080",
	}
}

// Load reads a yaml file on top of the defaults. Unknown keys are an error.
func Load(path string) (GeneralConfig, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config %s: %w", path, err)
	}

	if err := yaml.UnmarshalStrict(content, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config %s: %w", path, err)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxBatchSize <= 0 || cfg.MaxBatchSize > MaxEnumerableTasks {
		return cfg, fmt.Errorf("max_batch_size must be in [1, %d]", MaxEnumerableTasks)
	}
	if cfg.SolverTimeLimit < 0 {
		return cfg, fmt.Errorf("solver_time_limit must not be negative")
	}
	if cfg.Solver != SolverBranchBound {
		return cfg, fmt.Errorf("unknown solver %q", cfg.Solver)
	}

	return cfg, nil
}

const (
	SolverBranchBound = "branch_bound"

	// Per stage, in milliseconds.
	DefaultSolverTimeLimit = 60000

	// Subsets are indexed with an int bitmask per VM.
	MaxEnumerableTasks = 30
)

// Domain constants:

// Added to the peak RAM of a VM that has no legacy tasks.
const RAMBaseline = 1300

// Input and output documents.
const (
	VMsFile        = "_vms.json"
	APsFile        = "_aps.json"
	MANFile        = "_man.json"
	TasksFile      = "_tasks.json"
	CandidatesFile = "_conf.json"
	ExclusionFile  = "_exclusion.json"
	SolutionSuffix = "_sol.json"
	TimeLogSuffix  = "_time"
)
