// Package pathmodel implements a typed, task-root-relative path value used
// throughout the pipeline so that no component can accidentally leak an
// absolute path into a cache signature or a generated artifact name.
package pathmodel

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Directory layout under the task root, mirroring the conventional pisek
// task directory structure.
const (
	BuildDir      = "build"
	DataDir       = "data"
	GeneratedDir  = "generated"
	InputsDir     = "inputs"
	OutputsDir    = "outputs"
	SanitizedDir  = "sanitized"
	LogDir        = "log"
	SolutionsDir  = "solutions"
	StaticDir     = "tests/_inputs"
	CacheFileName = ".benchkeep/cache.db"
	LockFileName  = ".benchkeep.lock"
)

// Path is an immutable, normalized, task-root-relative path. Two Paths are
// equal iff their normalized string representations are equal.
type Path struct {
	p string
}

// New joins and normalizes path segments relative to the task root. It never
// produces an absolute path: a leading "/" or ".." escaping the root is
// stripped to the nearest safe relative form.
func New(elem ...string) Path {
	joined := filepath.ToSlash(filepath.Join(elem...))
	joined = strings.TrimPrefix(joined, "/")
	for strings.HasPrefix(joined, "../") {
		joined = strings.TrimPrefix(joined, "../")
	}
	if joined == "" {
		joined = "."
	}
	return Path{p: joined}
}

// FromAbs builds a Path from an absolute filesystem path and a task root,
// storing only the root-relative portion.
func FromAbs(root, abs string) Path {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		rel = abs
	}
	return New(rel)
}

// String returns the normalized relative path.
func (p Path) String() string { return p.p }

// Name returns the final path component.
func (p Path) Name() string { return filepath.Base(p.p) }

// Format implements fmt.Formatter: %n renders the final path component and
// %s/%v the full path. fmt formats %p (and %T) itself without calling
// Format, so %p does not render the path.
func (p Path) Format(f fmt.State, verb rune) {
	switch verb {
	case 'p', 'v', 's':
		_, _ = f.Write([]byte(p.p))
	case 'n':
		_, _ = f.Write([]byte(p.Name()))
	default:
		_, _ = f.Write([]byte(p.p))
	}
}

// Join appends further segments to the path.
func (p Path) Join(elem ...string) Path {
	return New(append([]string{p.p}, elem...)...)
}

// ReplaceSuffix returns a Path with the file extension replaced.
func (p Path) ReplaceSuffix(suffix string) Path {
	ext := filepath.Ext(p.p)
	base := strings.TrimSuffix(p.p, ext)
	return New(base + suffix)
}

// TrimSuffix removes the file extension entirely.
func (p Path) TrimSuffix() Path {
	return p.ReplaceSuffix("")
}

// IsZero reports whether p is the zero value.
func (p Path) IsZero() bool { return p.p == "" }

// Abs resolves p to an absolute path rooted at root.
func (p Path) Abs(root string) string {
	return filepath.Join(root, filepath.FromSlash(p.p))
}

// --- Derived constructors, grounded on original_source/pisek/paths.py ---

// ExecutablePath returns the build artifact path for a program name.
func ExecutablePath(program string) Path {
	name := strings.TrimSuffix(filepath.Base(program), filepath.Ext(program))
	return New(BuildDir, name)
}

// DataPath returns a path under the task's data directory.
func DataPath(elem ...string) Path {
	return New(append([]string{DataDir}, elem...)...)
}

// GeneratedInputFile returns the path of a seeded generated input.
func GeneratedInputFile(testName string, seed uint64) Path {
	return DataPath(GeneratedDir, testName+"_"+hex(seed)+".in")
}

// GeneratedInputFileUnseeded returns the path of a static generated input.
func GeneratedInputFileUnseeded(testName string) Path {
	return DataPath(GeneratedDir, testName+".in")
}

// StaticInputFile returns the path of a static sample input under
// tests/_inputs.
func StaticInputFile(name string) Path {
	return New(StaticDir, name)
}

// StaticAnswerFile returns the path of a static sample's shipped-with-the-
// task answer, if any: tests/_inputs/{base}.out alongside the sample's
// .in file. When present, it is ground truth independent of any
// solution's own run — the only case where the primary solution's own
// output is not the reference.
func StaticAnswerFile(inputName string) Path {
	base := strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	return New(StaticDir, base+".out")
}

// SolutionInputFile returns the symlinked per-solution copy of an input.
func SolutionInputFile(solutionLabel, inputName string) Path {
	return New("tests", solutionLabel, inputName)
}

// OutputFile returns a solution's output path for a given input.
func OutputFile(solutionLabel string, inputName string) Path {
	base := strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	return New("tests", solutionLabel, base+".out")
}

// ReferenceOutputFile returns the canonical reference output path for an
// input, produced by the primary solution.
func ReferenceOutputFile(inputName string) Path {
	base := strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	return DataPath(OutputsDir, base+".out")
}

// SanitizedFile returns the sanitized-text variant of a file.
func SanitizedFile(name string) Path {
	return DataPath(SanitizedDir, filepath.Base(name)+".clean")
}

// LogFile returns the stderr log path for (input, program).
func LogFile(inputName, program string) Path {
	base := strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	return DataPath(LogDir, base+"."+filepath.Base(program)+".log")
}

// SolutionLogFile returns the per-solution stderr capture for one
// (input, program) pair: tests/{label}/{base}.{program}.log.
func SolutionLogFile(solutionLabel, inputName, program string) Path {
	base := strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	return New("tests", solutionLabel, base+"."+filepath.Base(program)+".log")
}

// JudgeLogFile returns the judge's stderr log for a given input.
func JudgeLogFile(solutionLabel, inputName string) Path {
	base := strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	return New("tests", solutionLabel, base+".judge.log")
}

// PointsFile returns the CMS-style points file for (solution, input).
func PointsFile(solutionLabel, inputName string) Path {
	base := strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	return New("tests", solutionLabel, base+".points")
}

func hex(seed uint64) string {
	return strconv.FormatUint(seed, 16)
}
