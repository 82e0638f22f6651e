// Package generator implements spec.md §4.6: listing and producing
// testcases from a generator executable under one of three protocols
// (opendata-v1, cms-old, pisek-v1), plus seed derivation and the
// determinism/respects-seed checks. Grounded on the teacher's Runner
// interface shape (internal/runner/runner.go) — one protocol per type
// behind a small interface — and on original_source/pisek's ListInputs
// resolution order.
package generator

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/taskforge/benchkeep/internal/sandbox"
	"golang.org/x/crypto/blake2b"
)

// Protocol names.
const (
	OpendataV1 = "opendata-v1"
	CMSOld     = "cms-old"
	PisekV1    = "pisek-v1"
)

// TestcaseInfo describes one testcase a generator can produce.
type TestcaseInfo struct {
	Name    string
	TestIdx int  // for opendata-v1: the test/subtask this testcase belongs to
	Repeat  int  // pisek-v1: number of distinct seeded instances to generate, >=1
	Seeded  bool
}

// Generator drives one generator executable under a fixed protocol.
type Generator struct {
	Protocol   string
	Executable string
	WorkDir    string
	Runner     *sandbox.Runner
	Limits     sandbox.Limits
}

// New constructs a Generator for the given protocol.
func New(protocol, executable, workDir string, runner *sandbox.Runner, limits sandbox.Limits) (*Generator, error) {
	switch protocol {
	case OpendataV1, CMSOld, PisekV1:
	default:
		return nil, fmt.Errorf("unknown generator protocol %q", protocol)
	}
	return &Generator{Protocol: protocol, Executable: executable, WorkDir: workDir, Runner: runner, Limits: limits}, nil
}

// ListInputs enumerates testcases per the generator's protocol.
func (g *Generator) ListInputs(ctx context.Context, numTests int, destDir string) ([]TestcaseInfo, error) {
	switch g.Protocol {
	case OpendataV1:
		return g.listOpendataV1(numTests), nil
	case CMSOld:
		return g.listCMSOld(ctx, destDir)
	case PisekV1:
		return g.listPisekV1(ctx)
	default:
		return nil, fmt.Errorf("unknown generator protocol %q", g.Protocol)
	}
}

func (g *Generator) listOpendataV1(numTests int) []TestcaseInfo {
	var out []TestcaseInfo
	for idx := 1; idx < numTests; idx++ {
		out = append(out, TestcaseInfo{Name: fmt.Sprintf("%02d", idx), TestIdx: idx, Repeat: 1, Seeded: true})
	}
	return out
}

func (g *Generator) listCMSOld(ctx context.Context, destDir string) ([]TestcaseInfo, error) {
	res, err := g.Runner.Run(ctx, sandbox.Spec{
		Executable: g.Executable,
		Argv:       []string{destDir},
		Dir:        g.WorkDir,
		Limits:     g.Limits,
	})
	if err != nil {
		return nil, fmt.Errorf("run cms-old generator: %w", err)
	}
	if res.Kind != sandbox.OK {
		return nil, fmt.Errorf("cms-old generator failed: %s (%s)", res.Status, res.Kind)
	}

	matches, err := filepath.Glob(filepath.Join(destDir, "*.in"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	var out []TestcaseInfo
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), ".in")
		out = append(out, TestcaseInfo{Name: name, Repeat: 1, Seeded: false})
	}
	return out, nil
}

func (g *Generator) listPisekV1(ctx context.Context) ([]TestcaseInfo, error) {
	stdoutPath, err := tempSinkPath("pisek-generator-stdout-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(stdoutPath)

	res, err := g.Runner.Run(ctx, sandbox.Spec{
		Executable: g.Executable,
		Dir:        g.WorkDir,
		Limits:     g.Limits,
		Stdout:     sandbox.Stdio{Path: stdoutPath},
	})
	if err != nil {
		return nil, fmt.Errorf("run pisek-v1 generator: %w", err)
	}
	if res.Kind != sandbox.OK {
		return nil, fmt.Errorf("pisek-v1 generator failed: %s (%s)", res.Status, res.Kind)
	}

	data, err := os.ReadFile(res.StdoutPath)
	if err != nil {
		return nil, fmt.Errorf("read pisek-v1 generator stdout: %w", err)
	}

	seen := make(map[string]bool)
	var out []TestcaseInfo
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tc, err := parsePisekLine(line)
		if err != nil {
			return nil, err
		}
		if seen[tc.Name] {
			return nil, fmt.Errorf("duplicate testcase name %q in pisek-v1 generator output", tc.Name)
		}
		seen[tc.Name] = true
		out = append(out, tc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parsePisekLine parses "name [repeat=N] [seeded=true|false]".
func parsePisekLine(line string) (TestcaseInfo, error) {
	fields := strings.Fields(line)
	tc := TestcaseInfo{Name: fields[0], Repeat: 1, Seeded: true}
	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return TestcaseInfo{}, fmt.Errorf("malformed pisek-v1 generator output field %q", f)
		}
		switch kv[0] {
		case "repeat":
			n, err := strconv.Atoi(kv[1])
			if err != nil {
				return TestcaseInfo{}, fmt.Errorf("bad repeat value in %q: %w", line, err)
			}
			tc.Repeat = n
		case "seeded":
			tc.Seeded = kv[1] == "true"
		default:
			return TestcaseInfo{}, fmt.Errorf("unknown field %q in pisek-v1 generator output", kv[0])
		}
	}
	if !tc.Seeded && tc.Repeat != 1 {
		return TestcaseInfo{}, fmt.Errorf("unseeded testcase %q must have repeat=1, got %d", tc.Name, tc.Repeat)
	}
	return tc, nil
}

// Generate invokes the generator once for the named testcase and writes its
// stdout to destPath.
func (g *Generator) Generate(ctx context.Context, tc TestcaseInfo, seed uint64, destPath string) error {
	var argv []string
	switch g.Protocol {
	case OpendataV1:
		argv = []string{strconv.Itoa(tc.TestIdx), fmt.Sprintf("%x", seed)}
	case PisekV1:
		argv = []string{tc.Name}
		if tc.Seeded {
			argv = append(argv, fmt.Sprintf("%x", seed))
		}
	case CMSOld:
		return fmt.Errorf("cms-old testcases are static; Generate should not be called for protocol %q", g.Protocol)
	default:
		return fmt.Errorf("unknown generator protocol %q", g.Protocol)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	res, err := g.Runner.Run(ctx, sandbox.Spec{
		Executable: g.Executable,
		Argv:       argv,
		Dir:        g.WorkDir,
		Limits:     g.Limits,
		Stdout:     sandbox.Stdio{Path: destPath},
	})
	if err != nil {
		return fmt.Errorf("generate %s: %w", tc.Name, err)
	}
	if res.Kind != sandbox.OK {
		return fmt.Errorf("generate %s failed: %s (%s)", tc.Name, res.Status, res.Kind)
	}
	return nil
}

// DeriveSeed computes the 64-bit non-negative seed for (iteration, i,
// testcaseName) per spec.md §4.6: BLAKE2b("{iteration} {i} {name}")
// truncated to 8 bytes.
func DeriveSeed(iteration, i int, testcaseName string) (uint64, error) {
	h, err := blake2b.New(8, nil)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(h, "%d %d %s", iteration, i, testcaseName)
	sum := h.Sum(nil)
	seed := binary.BigEndian.Uint64(sum)
	return seed &^ (1 << 63), nil // non-negative: clear the sign bit
}

// CheckDeterminism runs Generate twice with the same seed and reports
// whether the two outputs are byte-identical.
func CheckDeterminism(ctx context.Context, g *Generator, tc TestcaseInfo, seed uint64, workDir string) (bool, error) {
	pathA := filepath.Join(workDir, tc.Name+".determinism-a")
	pathB := filepath.Join(workDir, tc.Name+".determinism-b")
	defer os.Remove(pathA)
	defer os.Remove(pathB)

	if err := g.Generate(ctx, tc, seed, pathA); err != nil {
		return false, err
	}
	if err := g.Generate(ctx, tc, seed, pathB); err != nil {
		return false, err
	}
	a, err := os.ReadFile(pathA)
	if err != nil {
		return false, err
	}
	b, err := os.ReadFile(pathB)
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}

// CheckRespectsSeed runs Generate with two distinct seeds (synthesizing a
// second if only one was scheduled) and reports whether the outputs
// differ.
func CheckRespectsSeed(ctx context.Context, g *Generator, tc TestcaseInfo, seedA uint64, workDir string) (bool, error) {
	seedB, err := synthesizeDistinctSeed(seedA)
	if err != nil {
		return false, err
	}

	pathA := filepath.Join(workDir, tc.Name+".seedcheck-a")
	pathB := filepath.Join(workDir, tc.Name+".seedcheck-b")
	defer os.Remove(pathA)
	defer os.Remove(pathB)

	if err := g.Generate(ctx, tc, seedA, pathA); err != nil {
		return false, err
	}
	if err := g.Generate(ctx, tc, seedB, pathB); err != nil {
		return false, err
	}
	a, err := os.ReadFile(pathA)
	if err != nil {
		return false, err
	}
	b, err := os.ReadFile(pathB)
	if err != nil {
		return false, err
	}
	return !bytes.Equal(a, b), nil
}

func synthesizeDistinctSeed(seedA uint64) (uint64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return 0, err
	}
	candidate := n.Uint64()
	if candidate == seedA {
		candidate++
	}
	return candidate, nil
}

func tempSinkPath(pattern string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()
	return path, nil
}
