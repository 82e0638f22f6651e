package reporter

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/taskforge/benchkeep/internal/pipeline"
	"github.com/taskforge/benchkeep/internal/solmgr"
	"github.com/taskforge/benchkeep/internal/taskconfig"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// Sink is the pipeline's status surface: it is handed a pipeline.Event
// after every job/manager state transition, and a final Summary once the
// run completes. The pipeline only ever calls these two methods — it
// knows nothing about how (or whether) progress is rendered.
type Sink interface {
	Update(pipeline.Event)
	Finish(Summary)
}

// Summary is what a run hands its Sink once every solution manager and
// the completeness check have finished.
type Summary struct {
	Reports  []solmgr.Report
	Warnings []error
	Duration time.Duration
}

// TextReporter renders job events as plain log lines and prints a final
// per-solution summary table, grounded on the teacher's
// internal/reporter/text.go (same ANSI color constants, same "c" guard
// for --no-color).
type TextReporter struct {
	w     io.Writer
	color bool
	start time.Time
}

// NewTextReporter creates a text reporter. If w is nil, defaults to
// os.Stdout. color enables ANSI codes.
func NewTextReporter(w io.Writer, color bool) *TextReporter {
	if w == nil {
		w = os.Stdout
	}
	return &TextReporter{w: w, color: color, start: time.Now()}
}

func (r *TextReporter) c(code string) string {
	if !r.color {
		return ""
	}
	return code
}

// Update prints one line per job/manager state transition.
func (r *TextReporter) Update(ev pipeline.Event) {
	switch ev.State {
	case pipeline.Running:
		fmt.Fprintf(r.w, "%s...%s %s\n", r.c(colorCyan), r.c(colorReset), ev.Name)
	case pipeline.Succeeded:
		fmt.Fprintf(r.w, "%s✓%s   %s\n", r.c(colorGreen), r.c(colorReset), ev.Name)
	case pipeline.Failed:
		fmt.Fprintf(r.w, "%s✗%s   %s: %v\n", r.c(colorRed), r.c(colorReset), ev.Name, ev.Err)
	case pipeline.Cancelled:
		fmt.Fprintf(r.w, "%s-%s   %s (cancelled)\n", r.c(colorDim), r.c(colorReset), ev.Name)
	}
}

// Finish prints the final per-solution summary table and warning list.
func (r *TextReporter) Finish(s Summary) {
	fmt.Fprintf(r.w, "\n%s--- Results ---%s\n", r.c(colorCyan), r.c(colorReset))

	reports := append([]solmgr.Report(nil), s.Reports...)
	sort.Slice(reports, func(i, j int) bool { return reports[i].Label < reports[j].Label })

	for _, rep := range reports {
		fmt.Fprintf(r.w, "  %-20s %s%.0f pts%s\n", rep.Label, r.c(colorGreen), rep.TotalPoints, r.c(colorReset))
		groups := sortedGroupIndices(rep.Groups)
		for _, idx := range groups {
			g := rep.Groups[idx]
			color := colorGreen
			if !g.Satisfied {
				color = colorRed
			}
			fmt.Fprintf(r.w, "    test %-3d %s%-12s%s %.0f pts\n", idx, r.c(color), g.Verdict, r.c(colorReset), g.Points)
		}
	}

	if len(s.Warnings) > 0 {
		fmt.Fprintf(r.w, "\n%sWarnings:%s\n", r.c(colorYellow), r.c(colorReset))
		for _, w := range s.Warnings {
			fmt.Fprintf(r.w, "  %s⚠%s %v\n", r.c(colorYellow), r.c(colorReset), w)
		}
	}

	fmt.Fprintf(r.w, "\nDuration: %s\n", s.Duration.Truncate(time.Millisecond))
}

// PrintLimits prints the per-program-kind resource limits a run will
// enforce, using go-humanize for the memory figure the way the teacher's
// text reporter humanizes byte counts.
func (r *TextReporter) PrintLimits(limits map[string]taskconfig.Limits) {
	kinds := make([]string, 0, len(limits))
	for k := range limits {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	fmt.Fprintf(r.w, "%sLimits:%s\n", r.c(colorDim), r.c(colorReset))
	for _, kind := range kinds {
		l := limits[kind]
		mem := "unlimited"
		if l.MemoryKB > 0 {
			mem = humanize.IBytes(uint64(l.MemoryKB) * 1024)
		}
		fmt.Fprintf(r.w, "  %-10s time=%.1fs mem=%s procs=%d\n", kind, l.TimeSeconds, mem, l.MaxProcesses)
	}
}

func sortedGroupIndices(groups map[int]solmgr.TestGroupResult) []int {
	out := make([]int, 0, len(groups))
	for idx := range groups {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
