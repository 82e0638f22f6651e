package strategy

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// compilerStrategy shells out to a system compiler with a fixed flag set,
// grounded on the teacher's verifier.runMake — same "invoke a subprocess,
// capture stderr, quote it in the failure" shape, repointed from
// `make test`/`make lint` to a single compiler invocation.
type compilerStrategy struct {
	name       string
	extensions []string
	compiler   string
	fixedFlags []string
	outputFlag string // e.g. "-o"
}

// C is the "c" build strategy: gcc/cc with -std=c17 -O2 -Wall -lm -Wshadow.
func C() Strategy {
	return &compilerStrategy{
		name:       "c",
		extensions: []string{".c"},
		compiler:   "cc",
		fixedFlags: []string{"-std=c17", "-O2", "-Wall", "-lm", "-Wshadow"},
		outputFlag: "-o",
	}
}

// Cpp is the "cpp" build strategy: c++ with -std=c++20.
func Cpp() Strategy {
	return &compilerStrategy{
		name:       "cpp",
		extensions: []string{".cc", ".cpp", ".cxx"},
		compiler:   "c++",
		fixedFlags: []string{"-std=c++20"},
		outputFlag: "-o",
	}
}

// Pascal is the "pascal" build strategy: fpc with -gl -O3 -Sg.
func Pascal() Strategy {
	return &compilerStrategy{
		name:       "pascal",
		extensions: []string{".pas", ".dpr"},
		compiler:   "fpc",
		fixedFlags: []string{"-gl", "-O3", "-Sg"},
		outputFlag: "-o",
	}
}

func (s *compilerStrategy) Name() string { return s.name }

func (s *compilerStrategy) Applicable(sources []string) bool {
	for _, src := range sources {
		ext := filepath.Ext(src)
		for _, want := range s.extensions {
			if ext == want {
				return true
			}
		}
	}
	return false
}

func (s *compilerStrategy) Build(workspace string, sources, _ []string, _ string, compArgs []string) (string, error) {
	artifact := "program"
	if s.name == "pascal" {
		artifact = strings.TrimSuffix(filepath.Base(sources[0]), filepath.Ext(sources[0]))
	}

	args := append([]string(nil), s.fixedFlags...)
	args = append(args, compArgs...)
	if s.outputFlag != "" && s.name != "pascal" {
		args = append(args, s.outputFlag, artifact)
	}
	args = append(args, sources...)

	cmd := exec.Command(s.compiler, args...)
	cmd.Dir = workspace
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w: %s", s.compiler, strings.Join(args, " "), err, stderr.String())
	}
	return artifact, nil
}
