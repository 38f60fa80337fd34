package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/recollect/internal/batch"
)

const uiPollInterval = time.Second

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// trackedClient wraps a batch client and remembers the most recently
// created batch id so the progress UI can poll it.
type trackedClient struct {
	batch.Client

	mu sync.Mutex
	id string
}

func newTrackedClient(c batch.Client) *trackedClient {
	return &trackedClient{Client: c}
}

func (t *trackedClient) CreateBatch(ctx context.Context, sub batch.Submission) (string, error) {
	id, err := t.Client.CreateBatch(ctx, sub)
	if err == nil {
		t.mu.Lock()
		t.id = id
		t.mu.Unlock()
	}
	return id, err
}

// Current returns the last created batch id, or "".
func (t *trackedClient) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// tickMsg triggers polling the batch status.
type tickMsg time.Time

// batchUpdateMsg carries the polled batch state.
type batchUpdateMsg struct {
	rec *batch.Record
}

// doneMsg signals that the wrapped operation finished.
type doneMsg struct{}

// progressModel is the bubbletea model for batch progress.
type progressModel struct {
	tracked  *trackedClient
	done     <-chan struct{}
	rec      *batch.Record
	progress progress.Model
	theme    Theme
	finished bool
	quitting bool
}

func newProgressModel(tracked *trackedClient, done <-chan struct{}) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		tracked:  tracked,
		done:     done,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.waitForDone(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchBatch()

	case batchUpdateMsg:
		if msg.rec != nil {
			m.rec = msg.rec
		}
		return m, tickCmd()

	case doneMsg:
		m.finished = true
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.finished {
		return m.theme.completedStyle().Render("✓ Done") + "\n"
	}
	if m.quitting {
		return m.theme.hintStyle().Render("\nCancelled.\n")
	}

	if m.rec == nil {
		return "Submitting batch...\n"
	}

	var pct float64
	if m.rec.TotalRequests > 0 {
		pct = float64(m.rec.CompletedRequests) / float64(m.rec.TotalRequests)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.rec.Status))
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d clusters", m.rec.CompletedRequests, m.rec.TotalRequests)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// fetchBatch polls the tracked batch, if one exists yet.
// Runs as a command to avoid blocking Update().
func (m progressModel) fetchBatch() tea.Cmd {
	return func() tea.Msg {
		id := m.tracked.Current()
		if id == "" {
			return batchUpdateMsg{}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rec, err := m.tracked.GetBatch(ctx, id)
		if err != nil {
			return batchUpdateMsg{}
		}
		return batchUpdateMsg{rec: rec}
	}
}

// waitForDone quits the UI once the wrapped operation returns.
func (m progressModel) waitForDone() tea.Cmd {
	return func() tea.Msg {
		<-m.done
		return doneMsg{}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(uiPollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runWithProgress runs fn in the background while showing batch progress
// for the batches it creates through the tracked client. Ctrl+C cancels
// the operation's context.
func runWithProgress(ctx context.Context, tracked *trackedClient, fn func(context.Context)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(ctx)
	}()

	p := tea.NewProgram(newProgressModel(tracked, done))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok && m.quitting {
		cancel()
		<-done
		return fmt.Errorf("cancelled")
	}

	<-done
	return nil
}
