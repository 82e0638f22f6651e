package strategy

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// scriptStrategy handles interpreted single-file or multi-file programs
// that declare their interpreter via a shebang line (python, shell).
type scriptStrategy struct {
	name        string
	shebangHint string // substring expected in the shebang, e.g. "python" or "sh"
}

// Python is the "python" build strategy.
func Python() Strategy { return &scriptStrategy{name: "python", shebangHint: "python"} }

// Shell is the "shell" build strategy.
func Shell() Strategy { return &scriptStrategy{name: "shell", shebangHint: "sh"} }

func (s *scriptStrategy) Name() string { return s.name }

func (s *scriptStrategy) Applicable(sources []string) bool {
	for _, src := range sources {
		ext := filepath.Ext(src)
		if s.shebangHint == "python" && ext == ".py" {
			return true
		}
		if s.shebangHint == "sh" && ext == ".sh" {
			return true
		}
	}
	return false
}

func (s *scriptStrategy) Build(workspace string, sources, extras []string, entrypoint string, _ []string) (string, error) {
	if len(sources) == 1 {
		return s.buildSingleFile(workspace, sources[0])
	}
	return s.buildMultiFile(workspace, sources, entrypoint)
}

func (s *scriptStrategy) buildSingleFile(workspace, source string) (string, error) {
	if err := checkShebang(filepath.Join(workspace, source)); err != nil {
		return "", err
	}
	path := filepath.Join(workspace, source)
	if err := os.Chmod(path, 0o755); err != nil {
		return "", fmt.Errorf("set executable bit on %s: %w", source, err)
	}
	return source, nil
}

func (s *scriptStrategy) buildMultiFile(workspace string, sources []string, entrypoint string) (string, error) {
	if entrypoint != "" {
		found := false
		for _, src := range sources {
			if src == entrypoint || filepath.Base(src) == entrypoint {
				entrypoint = src
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("declared entrypoint %q is not among the staged sources %v", entrypoint, sources)
		}
	} else {
		for _, src := range sources {
			base := filepath.Base(src)
			if base == "main.py" || base == "run.py" || base == "main.sh" || base == "run.sh" {
				entrypoint = src
				break
			}
		}
	}
	if entrypoint == "" {
		return "", fmt.Errorf("multi-file %s source with no entrypoint declared and none discoverable (expected main.py/run.py or main.sh/run.sh)", s.name)
	}

	if err := checkShebang(filepath.Join(workspace, entrypoint)); err != nil {
		return "", err
	}
	if err := os.Chmod(filepath.Join(workspace, entrypoint), 0o755); err != nil {
		return "", fmt.Errorf("set executable bit on entrypoint %s: %w", entrypoint, err)
	}

	linkPath := filepath.Join(workspace, "run")
	if err := os.Symlink(filepath.Base(entrypoint), linkPath); err != nil {
		return "", fmt.Errorf("link entrypoint: %w", err)
	}
	return ".", nil
}

func checkShebang(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	// Read the raw first line: bufio.Scanner's default split strips a
	// trailing \r, which would make the CRLF check below unreachable.
	line, err := bufio.NewReader(f).ReadString('\n')
	if line == "" {
		if err != nil && err != io.EOF {
			return fmt.Errorf("read %s: %w", path, err)
		}
		return fmt.Errorf("%s: empty file, expected a shebang line", path)
	}
	if !strings.HasPrefix(line, "#!") {
		return fmt.Errorf("%s: missing shebang on the first line", path)
	}
	if strings.HasSuffix(strings.TrimSuffix(line, "\n"), "\r") {
		return fmt.Errorf("%s: shebang line terminates in CRLF", path)
	}
	line = strings.TrimRight(line, "\n")

	interpreter := strings.Fields(strings.TrimPrefix(line, "#!"))
	if len(interpreter) == 0 {
		return fmt.Errorf("%s: empty shebang", path)
	}
	if _, err := lookInterpreter(interpreter[0]); err != nil {
		return fmt.Errorf("%s: interpreter %q not found: %w", path, interpreter[0], err)
	}
	return nil
}

func lookInterpreter(path string) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return execLookPath(path)
}
