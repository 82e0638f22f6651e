// Command judge-token is the bundled out_check=tokens/shuffle judge:
// it compares two files token by token (whitespace-delimited), optionally
// ignoring newline structure or case, and optionally treating tokens as
// floating-point numbers within a relative/absolute error tolerance.
// Invocation contract (spec.md §4.7 / §6): argv is
// "-t [-n] [-i] [-r -e REL -E ABS] solution_output correct_output";
// exit 42 means the outputs are judged equivalent, 43 means they differ.
// Grounded on original_source/pisek/task_jobs/judge.go's RunTokenJudge
// call site, which documents this exact flag set and exit-code contract
// for the external binary it shells out to.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	exitOK   = 42
	exitDiff = 43
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("judge-token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tokenMode := fs.Bool("t", true, "token mode (always on; kept for invocation-contract compatibility)")
	ignoreNewlines := fs.Bool("n", false, "ignore newline structure; compare the full token stream")
	ignoreCase := fs.Bool("i", false, "case-insensitive token comparison")
	floatMode := fs.Bool("r", false, "compare tokens as floating-point numbers within tolerance")
	relErr := fs.Float64("e", 0, "relative error tolerance (with -r)")
	absErr := fs.Float64("E", 0, "absolute error tolerance (with -r)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(stderr, err)
		return exitDiff
	}
	_ = tokenMode

	rest := fs.Args()
	if len(rest) != 2 {
		fmt.Fprintln(stderr, "usage: judge-token [-t] [-n] [-i] [-r -e REL -E ABS] solution_output correct_output")
		return exitDiff
	}
	solutionPath, correctPath := rest[0], rest[1]

	solTokens, err := readLines(solutionPath, *ignoreNewlines)
	if err != nil {
		fmt.Fprintf(stderr, "read %s: %v\n", solutionPath, err)
		return exitDiff
	}
	corTokens, err := readLines(correctPath, *ignoreNewlines)
	if err != nil {
		fmt.Fprintf(stderr, "read %s: %v\n", correctPath, err)
		return exitDiff
	}

	ok, msg := compare(solTokens, corTokens, *ignoreCase, *floatMode, *relErr, *absErr)
	if msg != "" {
		fmt.Fprintln(stderr, msg)
	} else {
		fmt.Fprintln(stderr, "Files are equivalent")
	}
	if ok {
		return exitOK
	}
	return exitDiff
}

// readLines tokenizes a file into lines of whitespace-delimited tokens.
// When ignoreNewlines is set, every token in the file is flattened into a
// single line, matching tokens_ignore_newlines's "newline structure
// doesn't matter, only the token stream does" semantics.
func readLines(path string, ignoreNewlines bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]string
	var flat []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		toks := strings.Fields(sc.Text())
		if ignoreNewlines {
			flat = append(flat, toks...)
			continue
		}
		if len(toks) > 0 {
			lines = append(lines, toks)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if ignoreNewlines {
		if len(flat) > 0 {
			return [][]string{flat}, nil
		}
		return nil, nil
	}
	return lines, nil
}

func compare(sol, cor [][]string, ignoreCase, floatMode bool, relErr, absErr float64) (bool, string) {
	if len(sol) != len(cor) {
		return false, fmt.Sprintf("line count mismatch: solution has %d, correct has %d", len(sol), len(cor))
	}
	for li := range cor {
		if len(sol[li]) != len(cor[li]) {
			return false, fmt.Sprintf("line %d: token count mismatch: got %d, expected %d", li+1, len(sol[li]), len(cor[li]))
		}
		for ti := range cor[li] {
			a, b := sol[li][ti], cor[li][ti]
			if ok, msg := tokensEqual(a, b, ignoreCase, floatMode, relErr, absErr); !ok {
				return false, fmt.Sprintf("line %d, token %d: %s", li+1, ti+1, msg)
			}
		}
	}
	return true, ""
}

func tokensEqual(a, b string, ignoreCase, floatMode bool, relErr, absErr float64) (bool, string) {
	if floatMode {
		af, aerr := strconv.ParseFloat(a, 64)
		bf, berr := strconv.ParseFloat(b, 64)
		if aerr != nil || berr != nil {
			if a == b {
				return true, ""
			}
			return false, fmt.Sprintf("not parseable as numbers: %q vs %q", a, b)
		}
		diff := math.Abs(af - bf)
		tolerance := math.Max(absErr, relErr*math.Abs(bf))
		if diff <= tolerance {
			return true, ""
		}
		return false, fmt.Sprintf("%q and %q differ by %g, exceeding tolerance %g", a, b, diff, tolerance)
	}

	sa, sb := a, b
	if ignoreCase {
		sa, sb = strings.ToLower(sa), strings.ToLower(sb)
	}
	if sa == sb {
		return true, ""
	}
	return false, fmt.Sprintf("%q != %q", a, b)
}
