package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/treewatch/internal/watcher"
)

const recentRows = 8

// TUIRenderer shows a live dashboard using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *watchModel
	tracker *ActivityTracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails on non-TTY output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	tracker := NewActivityTracker()
	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   newWatchModel(tracker, cfg.Title, ThemeStyles(cfg.Theme, cfg.NoColor)),
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer. The program quits on its own when ctx ends.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Done is closed when the dashboard exits, including when the user quits.
func (r *TUIRenderer) Done() <-chan struct{} { return r.done }

// Watching implements Renderer.
func (r *TUIRenderer) Watching(root string) {
	r.tracker.AddRoot(root)
	r.send(refreshMsg{})
}

// Notify implements Renderer.
func (r *TUIRenderer) Notify(n watcher.Notification) {
	r.tracker.Record(n)
	r.send(refreshMsg{})
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()

	if p == nil {
		return nil
	}
	p.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		// An unresponsive program must not hang Ctrl+C.
	}
	return nil
}

type refreshMsg struct{}
type tickMsg time.Time

// watchModel is the bubbletea model for the dashboard.
type watchModel struct {
	tracker  *ActivityTracker
	title    string
	styles   Styles
	spinner  spinner.Model
	width    int
	quitting bool
}

func newWatchModel(tracker *ActivityTracker, title string, styles Styles) *watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Active
	return &watchModel{
		tracker: tracker,
		title:   title,
		styles:  styles,
		spinner: s,
		width:   80,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Update implements tea.Model.
func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		m.tracker.Tick()
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *watchModel) View() string {
	if m.quitting {
		return "Stopping watches...\n"
	}

	width := max(m.width-4, 40)
	divider := m.styles.Border.Render(strings.Repeat("─", width))

	sections := []string{
		m.renderRoots(width),
		divider,
		m.renderSparkline(width),
		divider,
		m.renderRecent(width),
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	header := m.styles.Header.Render(m.title) + " " + m.spinner.View()
	return lipgloss.JoinVertical(lipgloss.Left, header, panel.Render(strings.Join(sections, "\n"))) +
		"\n" + m.renderStatusBar()
}

func (m *watchModel) renderRoots(width int) string {
	roots := m.tracker.Roots()
	if len(roots) == 0 {
		return m.styles.Dim.Render("no watches")
	}
	var lines []string
	for _, rs := range roots {
		var state string
		switch {
		case rs.Failed:
			state = m.styles.Error.Render("✗ " + rs.Reason)
		case rs.LastChange.IsZero():
			state = m.styles.Label.Render("watching")
		default:
			state = m.styles.Success.Render(fmt.Sprintf("%s, last %s", plural(rs.Files, "file"), FormatAge(rs.LastChange)))
		}
		lines = append(lines, fmt.Sprintf("%s  %s", m.styles.Path.Render(TruncatePath(rs.Root, width/2)), state))
	}
	return strings.Join(lines, "\n")
}

func (m *watchModel) renderSparkline(width int) string {
	spark := m.tracker.RenderSparkline(max(width-12, 10))
	return m.styles.Sparkline.Render(spark) + " " + m.styles.Dim.Render("files/s")
}

func (m *watchModel) renderRecent(width int) string {
	recent := m.tracker.Recent(recentRows)
	if len(recent) == 0 {
		return m.styles.Dim.Render("waiting for changes...")
	}
	var lines []string
	for _, c := range recent {
		rel, err := filepath.Rel(c.Root, c.Path)
		if err != nil {
			rel = c.Path
		}
		lines = append(lines, fmt.Sprintf("%s  %s",
			m.styles.Label.Render(c.Time.Format("15:04:05")),
			TruncatePath(filepath.ToSlash(rel), width-10)))
	}
	return strings.Join(lines, "\n")
}

func (m *watchModel) renderStatusBar() string {
	flushes, files, failed := m.tracker.Totals()
	parts := []string{
		m.styles.Label.Render(fmt.Sprintf("%s, %s", plural(flushes, "flush"), plural(files, "file"))),
		m.styles.Label.Render("up " + formatDuration(m.tracker.Elapsed())),
	}
	if failed > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d failed", failed)))
	}
	parts = append(parts, m.styles.Dim.Render("q to quit"))
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// TruncatePath shortens path to maxLen, keeping the file name.
func TruncatePath(path string, maxLen int) string {
	if len(path) <= maxLen || maxLen < 4 {
		return path
	}
	parts := strings.Split(path, "/")
	filename := parts[len(parts)-1]
	if len(filename)+4 > maxLen || len(parts) == 1 {
		return "..." + path[len(path)-maxLen+3:]
	}
	prefix := strings.Join(parts[:len(parts)-1], "/")
	remaining := maxLen - len(filename) - 4
	if remaining <= 0 {
		return ".../" + filename
	}
	return "..." + prefix[len(prefix)-remaining:] + "/" + filename
}

var _ Renderer = (*TUIRenderer)(nil)
