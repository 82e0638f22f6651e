package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taskforge/benchkeep/internal/cache"
	"github.com/taskforge/benchkeep/internal/complete"
	"github.com/taskforge/benchkeep/internal/pathmodel"
	"github.com/taskforge/benchkeep/internal/pipeline"
	"github.com/taskforge/benchkeep/internal/pipelinelock"
	"github.com/taskforge/benchkeep/internal/plan"
	"github.com/taskforge/benchkeep/internal/reporter"
	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/solmgr"
	"github.com/taskforge/benchkeep/internal/taskconfig"
	"github.com/taskforge/benchkeep/internal/verdict"
)

// LockError wraps a failure to acquire the task-root lock. Callers map it
// to exit code 2, per spec.md §6.
type LockError struct{ Err error }

func (e *LockError) Error() string { return e.Err.Error() }
func (e *LockError) Unwrap() error { return e.Err }

// mismatchError reports a strict-mode completeness failure: a warning
// escalated to a hard error after every solution manager finished.
type mismatchError struct{ msg string }

func (e *mismatchError) Error() string { return e.msg }

func newRunCmd() *cobra.Command {
	var (
		strict     bool
		failFast   bool
		tui        bool
		workers    int
		testingLog bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build, run, and judge every solution against every test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), runOpts{
				strictSet:     cmd.Flags().Changed("strict"),
				strict:        strict,
				failFastSet:   cmd.Flags().Changed("fail-fast"),
				failFast:      failFast,
				tui:           tui,
				workersSet:    cmd.Flags().Changed("workers"),
				workers:       workers,
				testingLogSet: cmd.Flags().Changed("testing-log"),
				testingLog:    testingLog,
			})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "escalate completeness warnings to a hard error")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop a solution's pipeline on its first job failure")
	cmd.Flags().BoolVar(&tui, "tui", false, "use the interactive progress display instead of plain log lines")
	cmd.Flags().IntVar(&workers, "workers", 0, "max solutions judged concurrently after the primary (0 = use config)")
	cmd.Flags().BoolVar(&testingLog, "testing-log", false, "write testing_log.json with per-input results")

	return cmd
}

type runOpts struct {
	strictSet     bool
	strict        bool
	failFastSet   bool
	failFast      bool
	tui           bool
	workersSet    bool
	workers       int
	testingLogSet bool
	testingLog    bool
}

// RunRequest is the exported shape of one pipeline invocation, used by
// cmd/benchkeepd to drive a run over HTTP without going through cobra.
type RunRequest struct {
	Strict     bool
	FailFast   bool
	Workers    int
	TestingLog bool
}

// Invoke runs one full build/run/judge pipeline for the task at
// taskRootAbs, reusing the exact flow `benchkeep run` drives. It
// temporarily repoints this package's taskRoot/configFile globals —
// callers (internal/rund) must serialize invocations with their own
// mutex, the same single-writer assumption pipelinelock already enforces
// at the task-root level.
func Invoke(ctx context.Context, taskRootAbs, cfgFile string, req RunRequest) error {
	prevRoot, prevCfg := taskRoot, configFile
	taskRoot, configFile = taskRootAbs, cfgFile
	defer func() { taskRoot, configFile = prevRoot, prevCfg }()

	return runPipeline(ctx, runOpts{
		strictSet:     true,
		strict:        req.Strict,
		failFastSet:   true,
		failFast:      req.FailFast,
		workersSet:    req.Workers > 0,
		workers:       req.Workers,
		testingLogSet: true,
		testingLog:    req.TestingLog,
	})
}

// syncSink wraps a reporter.Sink so concurrently-running solution
// pipelines can share one status surface without interleaving output.
type syncSink struct {
	mu   sync.Mutex
	sink reporter.Sink
}

func (s *syncSink) Update(ev pipeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.Update(ev)
}

func (s *syncSink) Finish(sum reporter.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.Finish(sum)
}

func runPipeline(ctx context.Context, opts runOpts) error {
	start := time.Now()

	taskRootAbs, m, cfg, settings, err := loadHarness(taskRoot)
	if err != nil {
		return err
	}
	if opts.strictSet {
		settings.Strict = opts.strict
	}
	if opts.failFastSet {
		settings.FailFast = opts.failFast
	}
	if opts.testingLogSet {
		settings.TestingLog = opts.testingLog
	}
	workers := settings.Workers
	if opts.workersSet && opts.workers > 0 {
		workers = opts.workers
	}
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupted — waiting for running jobs to finish...")
		cancel()
	}()

	runID := uuid.NewString()
	if err := pipelinelock.Acquire(taskRootAbs, runID); err != nil {
		return &LockError{Err: err}
	}
	defer pipelinelock.Release(taskRootAbs, runID)

	cachePath := settings.CachePath
	if !filepath.IsAbs(cachePath) {
		cachePath = filepath.Join(taskRootAbs, cachePath)
	}
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	store, err := cache.Open(cachePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := sandbox.New()
	registry := newRegistry()

	ambient, err := buildAmbientPrograms(ctx, m, cfg, settings, taskRootAbs, registry, runner)
	if err != nil {
		return err
	}

	resolver := &plan.Resolver{
		TaskRoot:          taskRootAbs,
		Config:            cfg,
		Gen:               ambient.gen,
		GenLimits:         ambient.genLimits,
		Runner:            runner,
		ValidatorExe:      ambient.validatorExe,
		ValidatorLimits:   ambient.validatorLims,
		CheckSeedVariance: settings.Strict,
	}
	testPlan, err := resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve test plan: %w", err)
	}
	idxByName := testIdxByName(testPlan)

	var rawSink reporter.Sink
	isTTY := isTerminal() && !noColor
	if opts.tui && isTTY {
		tp := reporter.NewTUIProgram()
		go func() {
			if err := tp.Run(); err != nil {
				slog.Warn("tui exited", "error", err)
			}
		}()
		rawSink = tp
	} else {
		rawSink = reporter.NewTextReporter(os.Stdout, isTTY)
	}
	sink := &syncSink{sink: rawSink}

	if tr, ok := rawSink.(*reporter.TextReporter); ok && verbose {
		resolved := make(map[string]taskconfig.Limits)
		for _, kind := range []string{"solution", "generator", "validator", "judge"} {
			resolved[kind] = settings.ResolveLimits(kind, cfg.Limits[kind])
		}
		tr.PrintLimits(resolved)
	}

	solutions := orderedSolutions(cfg)
	if len(solutions) == 0 {
		return fmt.Errorf("task %q declares no solutions", cfg.TaskName)
	}

	testingLog := reporter.NewTestingLog()
	var reports []solmgr.Report
	var reportsMu sync.Mutex
	inputs := solmgr.NewInputRegistry()

	pipelineEnv := &pipeline.Env{
		TaskRoot: taskRootAbs,
		Accessor: configAccessor(cfg, m, settings),
		Color:    isTTY,
		Strict:   settings.Strict,
	}

	runOne := func(ctx context.Context, sol taskconfig.Solution, planForSol solmgr.TestPlan, expected map[string]verdict.Verdict) (solmgr.Report, error) {
		solSpec, ok := m.Solution(sol.Label)
		if !ok {
			return solmgr.Report{}, fmt.Errorf("solution %q: no program declared in manifest", sol.Label)
		}
		factory := buildJudgeFactory(cfg, m, settings, runner, taskRootAbs, sol.Label, ambient, idxByName)

		mgr := solmgr.NewManager(solmgr.Config{
			Label:            sol.Label,
			Solution:         sol,
			Tests:            cfg.Tests,
			Plan:             planForSol,
			BuildConfig:      solSpec.Program.BuildConfig(sol.Label),
			TaskRoot:         taskRootAbs,
			Registry:         registry,
			JudgeFactory:     factory,
			Runner:           runner,
			Limits:           settings.ResolveLimits("solution", cfg.Limits["solution"]).ToSandbox(),
			ExpectedVerdicts: expected,
			Interactive:      cfg.Type == taskconfig.Interactive,
		})

		pl := pipeline.New(settings.FailFast, store)
		pl.UseEnv(pipelineEnv)
		if err := pl.AddManager(mgr); err != nil {
			return solmgr.Report{}, err
		}
		pl.OnUpdate(sink.Update)
		if err := pl.Run(ctx); err != nil {
			return solmgr.Report{}, fmt.Errorf("solution %s: %w", sol.Label, err)
		}
		result, ok := pl.Result(mgr.Name())
		if !ok {
			return solmgr.Report{}, fmt.Errorf("solution %s: produced no summary", sol.Label)
		}
		report, _ := result.(solmgr.Report)
		return report, nil
	}

	primary := solutions[0]
	primaryPlan, err := linkedPlan(selfReferencingPlan(testPlan, primary.Label, taskRootAbs), inputs, primary.Label, taskRootAbs)
	if err != nil {
		return err
	}
	primaryReport, err := runOne(ctx, primary, primaryPlan, sampleExpectations(primaryPlan, taskRootAbs))
	if err != nil {
		return err
	}
	reports = append(reports, primaryReport)

	if err := materializeReferenceOutputs(taskRootAbs, primary.Label, testPlan); err != nil {
		return err
	}

	if len(solutions) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, sol := range solutions[1:] {
			sol := sol
			g.Go(func() error {
				planForSol, err := linkedPlan(testPlan, inputs, sol.Label, taskRootAbs)
				if err != nil {
					return err
				}
				report, err := runOne(gctx, sol, planForSol, nil)
				if err != nil {
					return err
				}
				reportsMu.Lock()
				reports = append(reports, report)
				reportsMu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	numTests := len(cfg.Tests)
	predecessors := make([][]int, numTests)
	for i := range cfg.Tests {
		predecessors[i] = cfg.AllPredecessors(i)
	}

	// Judge stderr logs only exist when a CMS-style external judge ran;
	// diff/tokens/opendata judging writes none, and handing nonexistent
	// paths to the hygiene check would manufacture spurious warnings.
	var sampleLogPaths []string
	if cfg.OutCheck == taskconfig.CheckJudge && m.Judge.Kind == "cms-batch" {
		for _, tc := range testPlan[0] {
			sampleLogPaths = append(sampleLogPaths, pathmodel.JudgeLogFile(primary.Label, tc.Name).Abs(taskRootAbs))
		}
	}
	warnings := complete.Check(reports, numTests, predecessors, sampleLogPaths)

	unused, err := plan.UnusedStaticInputs(taskRootAbs, cfg)
	if err != nil {
		return err
	}
	for _, name := range unused {
		warnings = append(warnings, &complete.Warning{
			Msg: fmt.Sprintf("static input %s is matched by no test's input globs", name),
		})
	}

	if settings.TestingLog {
		for _, rep := range reports {
			for _, g := range rep.Groups {
				for _, in := range g.Agg.Inputs {
					testingLog.Record(rep.Label, in.Name, reporter.InputResult{
						Time:           in.CPUSeconds,
						WallClockTime:  in.WallSeconds,
						Result:         in.Verdict.String(),
						AbsolutePoints: reporter.FormatPoints(in.Points),
					})
				}
			}
		}
		logPath := filepath.Join(taskRootAbs, "testing_log.json")
		if err := reporter.WriteTestingLog(logPath, testingLog); err != nil {
			return fmt.Errorf("write testing log: %w", err)
		}
	}

	sink.Finish(reporter.Summary{
		Reports:  reports,
		Warnings: warnings,
		Duration: time.Since(start),
	})

	if settings.PostRun != "" {
		post := exec.CommandContext(ctx, "sh", "-c", settings.PostRun)
		post.Dir = taskRootAbs
		post.Stdout = os.Stdout
		post.Stderr = os.Stderr
		if err := post.Run(); err != nil {
			slog.Warn("post_run command failed", "command", settings.PostRun, "error", err)
		}
	}

	if err := complete.Escalate(warnings, settings.Strict); err != nil {
		return &mismatchError{msg: err.Error()}
	}

	return nil
}
