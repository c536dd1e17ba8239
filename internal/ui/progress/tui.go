// File: internal/ui/progress/tui.go
package progress

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type (
	startMsg   struct{ total int }
	advanceMsg struct{ n int }
	finishMsg  struct{}
)

type model struct {
	bar     progress.Model
	title   string
	total   int
	done    int
	started time.Time
	now     func() time.Time
}

func newModel(title string, now func() time.Time) model {
	return model{
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		title: title,
		now:   now,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startMsg:
		m.total = msg.total
		m.done = 0
		m.started = m.now()
	case advanceMsg:
		m.done += msg.n
	case finishMsg:
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-40, 10), 60)
	}
	return m, nil
}

func (m model) snapshot() Snapshot {
	var elapsed time.Duration
	if !m.started.IsZero() {
		elapsed = m.now().Sub(m.started)
	}
	return Snapshot{Done: m.done, Total: m.total, Elapsed: elapsed}
}

func (m model) View() string {
	s := m.snapshot()
	return titleStyle.Render(m.title) + " " + m.bar.ViewAs(s.Percent()) + "\n" + infoStyle.Render(s.String()) + "\n"
}

// TUIReporter renders a live progress bar with bubbletea
type TUIReporter struct {
	program *tea.Program
	once    sync.Once
	done    chan struct{}
}

// NewTUIReporter starts rendering to out. Input is not read, so the run remains interruptible with Ctrl-C through the signal handler
func NewTUIReporter(title string, out io.Writer) *TUIReporter {
	r := &TUIReporter{
		program: tea.NewProgram(newModel(title, time.Now), tea.WithOutput(out), tea.WithInput(nil), tea.WithoutSignalHandler()),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return r
}

func (r *TUIReporter) Start(total int) {
	r.program.Send(startMsg{total: total})
}

func (r *TUIReporter) Advance(n int) {
	r.program.Send(advanceMsg{n: n})
}

// Finish renders the final state and waits for the program to exit
func (r *TUIReporter) Finish() {
	r.once.Do(func() {
		r.program.Send(finishMsg{})
		<-r.done
	})
}
