package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/amsen20/lotos/internal/api"
	"github.com/amsen20/lotos/internal/config"
	"github.com/amsen20/lotos/internal/connector"
	"github.com/amsen20/lotos/internal/planner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	configFilePath string
	inputDir       string
	outputDir      string
)

var rootCmd = &cobra.Command{
	Use:   "lotos",
	Short: "Offline task offloading planner",
	Long: `Plans which VM serves each task of a snapshot: every feasible
(VM, task subset) config is enumerated, then the number of served tasks
is maximized and, keeping that number, the cost is minimized.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFilePath != "" {
			cfg, err := config.Load(configFilePath)
			if err != nil {
				return err
			}
			config.PlannerGeneralConfig = cfg
		}
		if inputDir != "" {
			config.PlannerGeneralConfig.InputDir = inputDir
		}
		if outputDir != "" {
			config.PlannerGeneralConfig.OutputDir = outputDir
		}

		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate [instance]",
	Short: "Enumerate the candidate configs of the snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlanner(cmd, args, (*planner.Planner).Generate)
	},
}

var solveCmd = &cobra.Command{
	Use:   "solve [instance]",
	Short: "Solve both stages over the saved candidate configs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlanner(cmd, args, (*planner.Planner).Solve)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan [instance]",
	Short: "Generate the candidate configs and solve both stages",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlanner(cmd, args, (*planner.Planner).Run)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve plans over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.PlannerGeneralConfig
		solver, err := planner.NewSolver(cfg)
		if err != nil {
			return err
		}

		return api.New(solver, planner.OptionsFromConfig(cfg)).Run(cfg.ListenAddress)
	},
}

type step func(p *planner.Planner, ctx context.Context, instance string) (*planner.Report, error)

func instanceOf(args []string) string {
	if len(args) == 1 {
		return args[0]
	}

	return uuid.New().String()
}

func runPlanner(cmd *cobra.Command, args []string, run step) error {
	cfg := config.PlannerGeneralConfig

	c, err := connector.NewFileConnector(cfg.InputDir, cfg.OutputDir)
	if err != nil {
		return err
	}
	solver, err := planner.NewSolver(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, err := run(planner.New(c, solver, planner.OptionsFromConfig(cfg)), ctx, instanceOf(args))
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), report.String())

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config_file", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&inputDir, "input_dir", "", "Directory of the input documents, overrides the config")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output_dir", "", "Directory of the solutions, overrides the config")

	rootCmd.AddCommand(generateCmd, solveCmd, planCmd, serveCmd)
}
