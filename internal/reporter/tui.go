package reporter

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskforge/benchkeep/internal/pipeline"
)

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	runStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type tickMsg time.Time

type itemState struct {
	name  string
	state pipeline.State
	err   error
}

// TUIProgram is a Sink that feeds a live Bubble Tea job-progress tree,
// grounded on the teacher's internal/reporter/tui.go and
// internal/sentinel/tui.go (same spinner/style/scroll shape, repointed
// from per-repo task rows to per-job pipeline rows).
type TUIProgram struct {
	mu    sync.Mutex
	items map[string]*itemState
	order []string

	program *tea.Program
	done    chan Summary
}

// NewTUIProgram creates a TUI sink without starting it: the caller runs
// its Bubble Tea program with Run on a goroutine of its own, and Finish
// makes that program exit.
func NewTUIProgram() *TUIProgram {
	t := &TUIProgram{items: make(map[string]*itemState), done: make(chan Summary, 1)}
	model := tuiModel{source: t}
	t.program = tea.NewProgram(model)
	return t
}

// Run starts the Bubble Tea event loop; call it on its own goroutine.
func (t *TUIProgram) Run() error {
	_, err := t.program.Run()
	return err
}

func (t *TUIProgram) Update(ev pipeline.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[ev.Name]; !ok {
		t.order = append(t.order, ev.Name)
	}
	t.items[ev.Name] = &itemState{name: ev.Name, state: ev.State, err: ev.Err}
}

func (t *TUIProgram) Finish(s Summary) {
	t.done <- s
	t.program.Send(tea.Quit())
}

func (t *TUIProgram) snapshot() ([]*itemState, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*itemState, len(t.order))
	for i, name := range t.order {
		out[i] = t.items[name]
	}
	return out, t.order
}

type tuiModel struct {
	source *TUIProgram
	frame  int
	width  int
	height int
}

func (m tuiModel) Init() tea.Cmd { return tickCmd() }

func tickCmd() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tickMsg:
		m.frame++
		return m, tickCmd()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 {
		m.width = 80
	}

	items, _ := m.source.snapshot()
	var running, succeeded, failed, cancelled, pending int
	for _, it := range items {
		switch it.state {
		case pipeline.Running:
			running++
		case pipeline.Succeeded:
			succeeded++
		case pipeline.Failed:
			failed++
		case pipeline.Cancelled:
			cancelled++
		default:
			pending++
		}
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("benchkeep — %d jobs", len(items))))
	b.WriteString("\n")
	b.WriteString(m.progressLine(succeeded, running, failed, cancelled))
	b.WriteString("\n")

	spinner := spinnerChars[m.frame%len(spinnerChars)]
	sort.Slice(items, func(i, j int) bool {
		return rank(items[i].state) < rank(items[j].state)
	})
	for _, it := range items {
		b.WriteString(m.line(it, spinner))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("  q: quit"))
	return b.String()
}

func rank(s pipeline.State) int {
	switch s {
	case pipeline.Failed:
		return 0
	case pipeline.Running:
		return 1
	case pipeline.Succeeded:
		return 2
	case pipeline.Cancelled:
		return 3
	default:
		return 4
	}
}

func (m tuiModel) line(it *itemState, spinner string) string {
	switch it.state {
	case pipeline.Failed:
		return failedStyle.Render(fmt.Sprintf("  ✗ %-40s %v", it.name, it.err))
	case pipeline.Running:
		return runStyle.Render(fmt.Sprintf("  %s %-40s running", spinner, it.name))
	case pipeline.Succeeded:
		return doneStyle.Render(fmt.Sprintf("  ✓ %-40s done", it.name))
	case pipeline.Cancelled:
		return dimStyle.Render(fmt.Sprintf("  - %-40s cancelled", it.name))
	default:
		return dimStyle.Render(fmt.Sprintf("  ─ %-40s queued", it.name))
	}
}

func (m tuiModel) progressLine(done, running, failed, cancelled int) string {
	var parts []string
	if done > 0 {
		parts = append(parts, doneStyle.Render(fmt.Sprintf("%d done", done)))
	}
	if running > 0 {
		parts = append(parts, runStyle.Render(fmt.Sprintf("%d running", running)))
	}
	if failed > 0 {
		parts = append(parts, failedStyle.Render(fmt.Sprintf("%d failed", failed)))
	}
	if cancelled > 0 {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("%d cancelled", cancelled)))
	}
	return "  " + strings.Join(parts, "  ")
}
