package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskforge/benchkeep/internal/plan"
	"github.com/taskforge/benchkeep/internal/sandbox"
)

// newGenCmd exposes input generation on its own, without building or
// judging any solution — useful for authoring a generator or validator in
// isolation, grounded on the teacher's internal/cli/generate.go (same
// "resolve, then report what landed on disk" shape, minus the ingest
// pipeline that package also drives).
func newGenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen",
		Short: "Generate and validate every test input without building or judging solutions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(cmd)
		},
	}
}

func runGen(cmd *cobra.Command) error {
	taskRootAbs, m, cfg, settings, err := loadHarness(taskRoot)
	if err != nil {
		return err
	}

	runner := sandbox.New()
	registry := newRegistry()
	ambient, err := buildAmbientPrograms(cmd.Context(), m, cfg, settings, taskRootAbs, registry, runner)
	if err != nil {
		return err
	}

	resolver := &plan.Resolver{
		TaskRoot:        taskRootAbs,
		Config:          cfg,
		Gen:             ambient.gen,
		GenLimits:       ambient.genLimits,
		Runner:          runner,
		ValidatorExe:    ambient.validatorExe,
		ValidatorLimits: ambient.validatorLims,
	}
	testPlan, err := resolver.Resolve(cmd.Context())
	if err != nil {
		return fmt.Errorf("resolve test plan: %w", err)
	}

	total := 0
	for idx, refs := range testPlan {
		for _, tc := range refs {
			total++
			fmt.Fprintf(cmd.OutOrStdout(), "test %d: %s -> %s\n", idx, tc.Name, tc.InputPath)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d input(s) ready under tests/_inputs\n", total)
	return nil
}
