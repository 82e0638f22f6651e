package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/taskforge/benchkeep/internal/buildjob"
	"github.com/taskforge/benchkeep/internal/buildjob/strategy"
	"github.com/taskforge/benchkeep/internal/config"
	"github.com/taskforge/benchkeep/internal/generator"
	"github.com/taskforge/benchkeep/internal/judge"
	"github.com/taskforge/benchkeep/internal/manifest"
	"github.com/taskforge/benchkeep/internal/pathmodel"
	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/solmgr"
	"github.com/taskforge/benchkeep/internal/taskconfig"
	"github.com/taskforge/benchkeep/internal/verdict"
)

const manifestFileName = "task.yaml"

// newRegistry builds the strategy registry shared by every build performed
// during a run, grounded on the teacher's pattern of constructing its
// runner registry once per invocation (internal/cli/run.go's
// buildRunnerRegistry).
func newRegistry() *strategy.Registry {
	return strategy.NewRegistry(strategy.C(), strategy.Cpp(), strategy.Pascal(), strategy.Python(), strategy.Shell())
}

// loadHarness resolves taskRoot to an absolute path and loads both the
// on-disk manifest and the harness's own settings file.
func loadHarness(taskRootRel string) (taskRootAbs string, m *manifest.Manifest, cfg *taskconfig.TaskConfig, settings *config.Settings, err error) {
	taskRootAbs, err = filepath.Abs(taskRootRel)
	if err != nil {
		return "", nil, nil, nil, fmt.Errorf("resolve task root: %w", err)
	}

	m, err = manifest.Load(filepath.Join(taskRootAbs, manifestFileName))
	if err != nil {
		return "", nil, nil, nil, err
	}
	cfg, err = m.ToTaskConfig()
	if err != nil {
		return "", nil, nil, nil, fmt.Errorf("build task config: %w", err)
	}

	settings, err = config.LoadSettings(filepath.Join(taskRootAbs, configFile))
	if err != nil {
		return "", nil, nil, nil, err
	}
	return taskRootAbs, m, cfg, settings, nil
}

// buildProgramSync compiles one ambient program (generator, validator,
// judge) synchronously, outside the pipeline's job graph — the same
// deliberate simplification internal/plan applies to input generation
// (see its package doc): there is exactly one of each per run, so the
// cost of skipping caching here is negligible next to a per-testcase job.
func buildProgramSync(ctx context.Context, name string, spec manifest.ProgramSpec, taskRootAbs string, reg *strategy.Registry) (string, error) {
	j := buildjob.New(name+":build", spec.BuildConfig(name), taskRootAbs, reg, nil)
	result, err := j.Run(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("build %s: %w", name, err)
	}
	br, _ := result.(buildjob.Result)
	return buildjob.ExecutablePath(taskRootAbs, name, br), nil
}

// resolveBundledTool locates a tool shipped alongside the benchkeep binary
// itself (judge-token), checking next to the running executable before
// falling back to PATH — a contest task's manifest never builds these,
// it only configures the flags they're invoked with.
func resolveBundledTool(name string) (string, error) {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), name)
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("bundled tool %q not found next to the binary or on PATH: %w", name, err)
	}
	return path, nil
}

// buildAmbientPrograms compiles the generator, validator, and judge
// programs the manifest declares, once per run.
type ambientPrograms struct {
	gen           *generator.Generator
	genLimits     sandbox.Limits
	validatorExe  string
	validatorLims sandbox.Limits
	judgeExe      string
}

func buildAmbientPrograms(ctx context.Context, m *manifest.Manifest, cfg *taskconfig.TaskConfig, settings *config.Settings, taskRootAbs string, reg *strategy.Registry, runner *sandbox.Runner) (*ambientPrograms, error) {
	out := &ambientPrograms{}

	if len(m.Generator.Program.SourceGlobs) > 0 {
		genExe, err := buildProgramSync(ctx, "generator", m.Generator.Program, taskRootAbs, reg)
		if err != nil {
			return nil, err
		}
		out.genLimits = settings.ResolveLimits("generator", cfg.Limits["generator"]).ToSandbox()
		gen, err := generator.New(m.Generator.Protocol, genExe, taskRootAbs, runner, out.genLimits)
		if err != nil {
			return nil, err
		}
		out.gen = gen
	}

	if m.Validator != nil && len(m.Validator.SourceGlobs) > 0 {
		valExe, err := buildProgramSync(ctx, "validator", *m.Validator, taskRootAbs, reg)
		if err != nil {
			return nil, err
		}
		out.validatorExe = valExe
		out.validatorLims = settings.ResolveLimits("validator", cfg.Limits["validator"]).ToSandbox()
	}

	if cfg.OutCheck == taskconfig.CheckJudge || cfg.Type == taskconfig.Interactive {
		judgeExe, err := buildProgramSync(ctx, "judge", m.Judge.Program, taskRootAbs, reg)
		if err != nil {
			return nil, err
		}
		out.judgeExe = judgeExe
	}

	return out, nil
}

// configAccessor snapshots every configuration field a job's outcome can
// depend on — out-check mode, judge kind, resolved per-kind limits — and
// routes one read of each through the returned accessor. The pipeline
// folds the accessor's recorded reads into every job signature, so
// changing any of these fields between runs invalidates the cached
// results they influenced (a looser time limit must re-run a previously
// timed-out solution). The accessor is locked before the pipeline starts;
// no further snapshots can be forked from it.
func configAccessor(cfg *taskconfig.TaskConfig, m *manifest.Manifest, settings *config.Settings) *taskconfig.Accessor {
	flat := map[string]string{
		"out_check":  m.OutCheck,
		"judge_kind": m.Judge.Kind,
	}
	for _, kind := range []string{"solution", "generator", "validator", "judge"} {
		lims := settings.ResolveLimits(kind, cfg.Limits[kind])
		flat["limits."+kind] = fmt.Sprintf("time=%v clock_mul=%v clock_floor=%v mem_kb=%d procs=%d",
			lims.TimeSeconds, lims.ClockMultiplier, lims.ClockFloorSeconds, lims.MemoryKB, lims.MaxProcesses)
	}

	acc := taskconfig.NewAccessor(flat)
	for name := range flat {
		acc.Get(name)
	}
	acc.Lock()
	return acc
}

// testIdxByName maps a testcase's name to the index of the test it was
// generated under, so an opendata-v1 judge can be handed the argv it
// expects (argv=[test_index, seed]) even though solmgr.TestcaseRef itself
// only carries the testcase name.
func testIdxByName(plan solmgr.TestPlan) map[string]int {
	out := make(map[string]int)
	for idx, refs := range plan {
		for _, ref := range refs {
			out[ref.Name] = idx
		}
	}
	return out
}

// buildJudgeFactory returns the solmgr.JudgeFactory for one solution,
// dispatching on the task's declared out-check mode. CheckShuffle routes
// through the same bundled token judge as CheckTokens; there is no
// dedicated shuffle judge type.
func buildJudgeFactory(cfg *taskconfig.TaskConfig, m *manifest.Manifest, settings *config.Settings, runner *sandbox.Runner, taskRootAbs, solutionLabel string, ambient *ambientPrograms, idxByName map[string]int) solmgr.JudgeFactory {
	judgeLimits := settings.ResolveLimits("judge", cfg.Limits["judge"]).ToSandbox()

	if cfg.Type == taskconfig.Interactive {
		solLimits := settings.ResolveLimits("solution", cfg.Limits["solution"]).ToSandbox()
		return func(solutionExecutable string, tc solmgr.TestcaseRef) (judge.Judge, error) {
			if solutionExecutable == "" {
				return nil, fmt.Errorf("interactive judging for %s needs the built solution executable", solutionLabel)
			}
			pointsPath := pathmodel.PointsFile(solutionLabel, tc.Name).Abs(taskRootAbs)
			logPath := pathmodel.JudgeLogFile(solutionLabel, tc.Name).Abs(taskRootAbs)
			return judge.CMSCommunication{
				Runner: runner,
				SolutionSpec: sandbox.Spec{
					Executable: solutionExecutable,
					Dir:        taskRootAbs,
					Limits:     solLimits,
				},
				// Checker contract: argv = [input, points_file]; points file
				// first line is a decimal in [0,1], stderr first line is
				// the message — the cms-batch conventions carried over to
				// the fifo-connected shape.
				CheckerSpec: sandbox.Spec{
					Executable: ambient.judgeExe,
					Argv:       []string{tc.InputPath, pointsPath},
					Dir:        taskRootAbs,
					Limits:     judgeLimits,
				},
				FifoDir:    pathmodel.New("tests", solutionLabel, tc.Name+".fifo").Abs(taskRootAbs),
				PointsPath: pointsPath,
				LogPath:    logPath,
			}, nil
		}
	}

	return func(_ string, tc solmgr.TestcaseRef) (judge.Judge, error) {
		switch cfg.OutCheck {
		case taskconfig.CheckDiff:
			return judge.Diff{}, nil

		case taskconfig.CheckTokens, taskconfig.CheckShuffle:
			tokenExe, err := resolveBundledTool("judge-token")
			if err != nil {
				return nil, err
			}
			return judge.Tokens{
				Runner:         runner,
				Executable:     tokenExe,
				WorkDir:        taskRootAbs,
				Limits:         judgeLimits,
				IgnoreNewlines: m.Judge.IgnoreNewlines,
				IgnoreCase:     m.Judge.IgnoreCase,
				FloatRelError:  m.Judge.FloatRelError,
				FloatAbsError:  m.Judge.FloatAbsError,
			}, nil

		case taskconfig.CheckJudge:
			if m.Judge.Kind == "cms-batch" {
				return judge.CMSBatch{
					Runner:     runner,
					Executable: ambient.judgeExe,
					WorkDir:    taskRootAbs,
					Limits:     judgeLimits,
					PointsPath: pathmodel.PointsFile(solutionLabel, tc.Name).Abs(taskRootAbs),
					LogPath:    pathmodel.JudgeLogFile(solutionLabel, tc.Name).Abs(taskRootAbs),
				}, nil
			}
			return judge.OpendataV1{
				Runner:        runner,
				Executable:    ambient.judgeExe,
				WorkDir:       taskRootAbs,
				Limits:        judgeLimits,
				TestIdx:       idxByName[tc.Name],
				Seed:          tc.Seed,
				JudgeNeedsIn:  m.Judge.JudgeNeedsIn,
				JudgeNeedsOut: m.Judge.JudgeNeedsOut,
			}, nil

		default:
			return nil, fmt.Errorf("unsupported out-check mode for solution %s", solutionLabel)
		}
	}
}

// orderedSolutions places the primary solution first — its run is the one
// that produces the reference outputs every other solution is judged
// against when out_check is diff/tokens/shuffle, so it must finish before
// any other solution manager starts.
func orderedSolutions(cfg *taskconfig.TaskConfig) []taskconfig.Solution {
	out := make([]taskconfig.Solution, len(cfg.Solutions))
	copy(out, cfg.Solutions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Primary && !out[j].Primary
	})
	return out
}

// selfReferencingPlan returns a copy of plan with every TestcaseRef whose
// CorrectOutputPath is still the not-yet-materialized reference output
// (internal/plan.Resolve leaves it there for any testcase with no shipped
// static answer) repointed at the primary solution's own per-testcase
// output file: the primary IS the reference for those testcases, so its
// own judge jobs must compare its output against itself rather than
// against a file that only exists once its pipeline run has already
// finished. Testcases with a shipped static answer (see
// internal/plan.Resolve) are left untouched — the primary is judged
// against that independent ground truth like any other solution, which is
// what lets an incorrect primary fail on those inputs (see
// materializeReferenceOutputs for how every other solution's
// CorrectOutputPath is populated once this run completes).
func selfReferencingPlan(plan solmgr.TestPlan, primaryLabel, taskRootAbs string) solmgr.TestPlan {
	out := make(solmgr.TestPlan, len(plan))
	for idx, refs := range plan {
		selfRefs := make([]solmgr.TestcaseRef, len(refs))
		for i, tc := range refs {
			if tc.CorrectOutputPath == pathmodel.ReferenceOutputFile(tc.Name).Abs(taskRootAbs) {
				tc.CorrectOutputPath = pathmodel.OutputFile(primaryLabel, tc.Name).Abs(taskRootAbs)
			}
			selfRefs[i] = tc
		}
		out[idx] = selfRefs
	}
	return out
}

// linkedPlan returns one solution's own view of plan, realizing spec.md
// §4.8's input-reuse rule: the first solution manager to visit a testcase
// claims its on-disk input file as the canonical copy, and every later
// manager is handed a symlink under its own tests/{label}/ directory
// instead of a second reference to the shared file.
func linkedPlan(plan solmgr.TestPlan, reg *solmgr.InputRegistry, label, taskRootAbs string) (solmgr.TestPlan, error) {
	out := make(solmgr.TestPlan, len(plan))
	for idx, refs := range plan {
		linked := make([]solmgr.TestcaseRef, len(refs))
		for i, tc := range refs {
			if !reg.Claim(tc.Name, tc.InputPath) {
				linkPath := pathmodel.SolutionInputFile(label, tc.Name).Abs(taskRootAbs)
				if err := reg.LinkInto(tc.Name, linkPath); err != nil {
					return nil, fmt.Errorf("link input %s for %s: %w", tc.Name, label, err)
				}
				tc.InputPath = linkPath
			}
			linked[i] = tc
		}
		out[idx] = linked
	}
	return out, nil
}

// sampleExpectations pins the primary solution's sample verdicts: every
// test-0 input shipped with its own static answer must judge OK for the
// primary, turning those judge jobs into a sanity check of the judge
// itself (a disagreement fails the job rather than merely failing the
// mask evaluation later).
func sampleExpectations(plan solmgr.TestPlan, taskRootAbs string) map[string]verdict.Verdict {
	expected := make(map[string]verdict.Verdict)
	for _, tc := range plan[0] {
		if tc.CorrectOutputPath == pathmodel.StaticAnswerFile(tc.Name).Abs(taskRootAbs) {
			expected[tc.Name] = verdict.OK
		}
	}
	return expected
}

// materializeReferenceOutputs copies the primary solution's per-testcase
// output into data/outputs for every testcase whose CorrectOutputPath is
// still the not-yet-materialized reference output — the location every
// subsequent solution's TestcaseRef.CorrectOutputPath points at. Testcases
// with a shipped static answer already have a CorrectOutputPath outside
// data/outputs and are skipped; the primary solution's mask is all-1s
// (taskconfig.Validate enforces it), so by the time its pipeline run
// finishes every remaining testcase in plan has a file at
// OutputFile(label, name) to copy from.
func materializeReferenceOutputs(taskRootAbs, primaryLabel string, plan solmgr.TestPlan) error {
	for _, refs := range plan {
		for _, tc := range refs {
			dst := tc.CorrectOutputPath
			if dst != pathmodel.ReferenceOutputFile(tc.Name).Abs(taskRootAbs) {
				continue
			}
			src := pathmodel.OutputFile(primaryLabel, tc.Name).Abs(taskRootAbs)
			if err := copyFile(src, dst); err != nil {
				return fmt.Errorf("materialize reference output for %s: %w", tc.Name, err)
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// isTerminal reports whether stdout is attached to a terminal.
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
