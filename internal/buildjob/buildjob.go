// Package buildjob implements spec.md §4.5: turning a BuildConfig (source
// globs, extra data files, a build strategy tag) into an executable
// artifact under build/{program_name}, as a pipeline.Job.
package buildjob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/taskforge/benchkeep/internal/buildjob/strategy"
	"github.com/taskforge/benchkeep/internal/cache"
	"github.com/taskforge/benchkeep/internal/pipeline"
)

// Config is the static description of one build, grounded on spec.md
// §4.5's BuildConfig.
type Config struct {
	ProgramName string
	SourceGlobs []string
	Extras      []string
	Strategy    string // auto, python, shell, c, cpp, pascal
	Entrypoint  string
	CompArgs    []string
}

// Result is a build job's published result.
type Result struct {
	Artifact string // path, relative to the build workspace, of the produced artifact ("." when the whole workspace is installed)
	Strategy string // resolved strategy name
}

// ExecutablePath resolves the program actually meant to be invoked for a
// build result: build/{programName} itself for single-file artifacts, or
// build/{programName}/run for the multi-file strategies that stage a "run"
// symlink into a whole copied workspace (Artifact == ".").
func ExecutablePath(taskRoot, programName string, res Result) string {
	dest := filepath.Join(taskRoot, "build", programName)
	if res.Artifact == "." {
		return filepath.Join(dest, "run")
	}
	return dest
}

// Job builds one program. It implements pipeline.Job.
type Job struct {
	pipeline.GobCodec[Result]

	name      string
	cfg       Config
	taskRoot  string
	buildRoot string // directory containing build/ subdirectories, usually taskRoot
	registry  *strategy.Registry
	prereqs   []pipeline.Prerequisite
}

// New constructs a build job named name for cfg, rooted at taskRoot, using
// reg to resolve the build strategy.
func New(name string, cfg Config, taskRoot string, reg *strategy.Registry, prereqs []pipeline.Prerequisite) *Job {
	return &Job{
		name:      name,
		cfg:       cfg,
		taskRoot:  taskRoot,
		buildRoot: taskRoot,
		registry:  reg,
		prereqs:   prereqs,
	}
}

func (j *Job) Name() string                        { return j.name }
func (j *Job) Prerequisites() []pipeline.Prerequisite { return j.prereqs }

func (j *Job) CacheInput() cache.Input {
	sources, _ := j.resolveSources()
	files := append([]string(nil), sources...)
	files = append(files, j.cfg.Extras...)
	sort.Strings(files)
	return cache.Input{
		Args: []string{j.cfg.ProgramName, j.cfg.Strategy, j.cfg.Entrypoint},
		Kwargs: map[string]string{
			"comp_args": fmt.Sprint(j.cfg.CompArgs),
		},
		Files: files,
	}
}

// resolveSources expands every glob in j.cfg.SourceGlobs relative to
// j.taskRoot, failing if any glob matches nothing, per spec.md §4.5 step 1.
func (j *Job) resolveSources() ([]string, error) {
	var out []string
	for _, pattern := range j.cfg.SourceGlobs {
		matches, err := filepath.Glob(filepath.Join(j.taskRoot, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid source glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("source glob %q matched no files", pattern)
		}
		for _, m := range matches {
			rel, err := filepath.Rel(j.taskRoot, m)
			if err != nil {
				return nil, err
			}
			out = append(out, rel)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Run executes spec.md §4.5's six-step algorithm.
func (j *Job) Run(_ context.Context, _ map[string]any) (any, error) {
	sources, err := j.resolveSources()
	if err != nil {
		return nil, err
	}

	if err := rejectMixedFileAndDirSources(j.taskRoot, sources); err != nil {
		return nil, err
	}

	strat, err := j.registry.Resolve(j.cfg.Strategy, sources)
	if err != nil {
		return nil, err
	}

	workspace, err := os.MkdirTemp(j.buildRoot, ".build-"+j.cfg.ProgramName+"-")
	if err != nil {
		return nil, fmt.Errorf("create build workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := stageInto(workspace, j.taskRoot, sources, j.cfg.Extras); err != nil {
		return nil, err
	}

	artifact, err := strat.Build(workspace, sources, j.cfg.Extras, j.cfg.Entrypoint, j.cfg.CompArgs)
	if err != nil {
		return nil, fmt.Errorf("build %s with strategy %s: %w", j.cfg.ProgramName, strat.Name(), err)
	}

	dest := filepath.Join(j.buildRoot, "build", j.cfg.ProgramName)
	if err := replaceAtomically(dest, filepath.Join(workspace, artifact)); err != nil {
		return nil, fmt.Errorf("install build artifact for %s: %w", j.cfg.ProgramName, err)
	}

	return Result{Artifact: artifact, Strategy: strat.Name()}, nil
}

// rejectMixedFileAndDirSources enforces spec.md §4.5 step 2.
func rejectMixedFileAndDirSources(root string, sources []string) error {
	var sawFile, sawDir bool
	for _, s := range sources {
		info, err := os.Stat(filepath.Join(root, s))
		if err != nil {
			return fmt.Errorf("stat source %s: %w", s, err)
		}
		if info.IsDir() {
			sawDir = true
		} else {
			sawFile = true
		}
	}
	if sawFile && sawDir {
		return fmt.Errorf("sources mix files and directories: %v", sources)
	}
	return nil
}

// stageInto copies every source and extra from root into workspace,
// preserving their relative paths and the executable bit.
func stageInto(workspace, root string, sources, extras []string) error {
	for _, rel := range append(append([]string(nil), sources...), extras...) {
		if err := copyTree(filepath.Join(root, rel), filepath.Join(workspace, rel)); err != nil {
			return fmt.Errorf("stage %s: %w", rel, err)
		}
	}
	return nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return err
		}
		for _, e := range entries {
			if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	return copyFile(src, dst, info)
}

func copyFile(src, dst string, info os.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// replaceAtomically installs src (file or directory) as dest, replacing
// whatever was there before via rename-into-place, per spec.md §4.5 step 6.
func replaceAtomically(dest, src string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	staging := dest + ".new"
	if err := os.RemoveAll(staging); err != nil {
		return err
	}
	if err := copyTree(src, staging); err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		os.RemoveAll(staging)
		return err
	}
	return os.Rename(staging, dest)
}
