package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Aman-CERP/treewatch/internal/telemetry"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// hotPathsShown caps the hot path list in text output.
const hotPathsShown = 5

// StatusInfo contains daemon health information.
type StatusInfo struct {
	Running    bool   `json:"running"`
	PID        int    `json:"pid,omitempty"`
	Uptime     string `json:"uptime,omitempty"`
	SocketPath string `json:"socket_path"`

	// Bus counters
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`

	JournalPath string `json:"journal_path,omitempty"`
	JournalSize int64  `json:"journal_size,omitempty"`

	Metrics *telemetry.Snapshot `json:"metrics,omitempty"`

	Watches []watcher.WatchInfo `json:"watches"`
}

// StatusRenderer displays daemon status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	if !info.Running {
		_, _ = fmt.Fprintf(r.out, "%s %s\n", r.styles.Header.Render("Daemon:"), r.renderStatus("stopped"))
		_, _ = fmt.Fprintf(r.out, "  Socket: %s\n", info.SocketPath)
		return nil
	}

	_, _ = fmt.Fprintf(r.out, "%s %s\n\n", r.styles.Header.Render("Daemon:"), r.renderStatus("running"))
	_, _ = fmt.Fprintf(r.out, "  PID:     %d\n", info.PID)
	_, _ = fmt.Fprintf(r.out, "  Uptime:  %s\n", info.Uptime)
	_, _ = fmt.Fprintf(r.out, "  Socket:  %s\n", info.SocketPath)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Bus:")
	_, _ = fmt.Fprintf(r.out, "    Subscribers: %d\n", info.Subscribers)
	_, _ = fmt.Fprintf(r.out, "    Published:   %d\n", info.Published)
	dropped := fmt.Sprintf("%d", info.Dropped)
	if info.Dropped > 0 {
		dropped = r.styles.Warning.Render(dropped)
	}
	_, _ = fmt.Fprintf(r.out, "    Dropped:     %s\n", dropped)
	_, _ = fmt.Fprintln(r.out)

	if info.JournalPath != "" {
		_, _ = fmt.Fprintf(r.out, "  Journal: %s (%s)\n\n", info.JournalPath, FormatBytes(info.JournalSize))
	}

	if info.Metrics != nil {
		r.renderMetrics(*info.Metrics)
	}

	if len(info.Watches) == 0 {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Dim.Render("No active watches"))
		return nil
	}
	_, _ = fmt.Fprintf(r.out, "  Watches (%d):\n", len(info.Watches))
	for _, w := range info.Watches {
		_, _ = fmt.Fprintf(r.out, "    %s  %s\n", r.styles.Path.Render(w.Root),
			r.styles.Label.Render(fmt.Sprintf("[%s] %s, %d delivered, since %s",
				w.Backend, plural(int(w.Flushes), "flush"), w.Delivered, formatTime(w.StartedAt))))
	}
	return nil
}

func (r *StatusRenderer) renderMetrics(m telemetry.Snapshot) {
	_, _ = fmt.Fprintln(r.out, "  Deliveries:")
	_, _ = fmt.Fprintf(r.out, "    Changed:     %d (avg %.1f paths)\n", m.Changed, m.AvgBatch())
	failed := fmt.Sprintf("%d", m.Failed)
	if m.Failed > 0 {
		failed = r.styles.Error.Render(failed)
	}
	_, _ = fmt.Fprintf(r.out, "    Failed:      %s\n", failed)
	if !m.LastDelivery.IsZero() {
		_, _ = fmt.Fprintf(r.out, "    Last:        %s\n", formatTime(m.LastDelivery))
	}

	if len(m.HotPaths) > 0 {
		_, _ = fmt.Fprintln(r.out, "    Most changed:")
		for i, p := range m.HotPaths {
			if i == hotPathsShown {
				break
			}
			_, _ = fmt.Fprintf(r.out, "      %4d  %s\n", p.Count, r.styles.Path.Render(p.Path))
		}
	}
	for _, f := range m.RecentFailures {
		_, _ = fmt.Fprintf(r.out, "    %s %s %s\n", r.styles.Error.Render("!"), f.Root,
			r.styles.Dim.Render(fmt.Sprintf("%s: %s (%s)", f.Code, f.Reason, formatTime(f.Time))))
	}
	_, _ = fmt.Fprintln(r.out)
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "running":
		return r.styles.Success.Render(status)
	case "stopped":
		return r.styles.Warning.Render(status)
	default:
		return status
	}
}

// FormatAge is formatTime for callers outside the package.
func FormatAge(t time.Time) string { return formatTime(t) }

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
