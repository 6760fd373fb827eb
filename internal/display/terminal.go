// Package display provides terminal output formatting for storyarchive.
package display

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gauthierbraillon/storyarchive/internal/archive"
	"github.com/gauthierbraillon/storyarchive/internal/delivery"
	"github.com/gauthierbraillon/storyarchive/internal/history"
	"github.com/gauthierbraillon/storyarchive/internal/scheduler"
)

const (
	separator   = " • "
	maxErrorLen = 80
)

// TerminalFormatter formats archive results for terminal display.
type TerminalFormatter struct {
	now func() time.Time
}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{now: time.Now}
}

// FormatBatch formats one target's batch and, when it was delivered, the
// delivery outcome.
func (f *TerminalFormatter) FormatBatch(batch archive.Batch, report *delivery.Report) string {
	var lines []string

	header := fmt.Sprintf("[%s] %s", strings.ToUpper(batch.SourceName), countNoun(len(batch.Items), "new story", "new stories"))
	lines = append(lines, header)

	if batch.FetchErr != nil {
		lines = append(lines, "  could not list stories: "+f.TruncateText(batch.FetchErr.Error(), maxErrorLen))
	}

	for _, item := range batch.Items {
		lines = append(lines, fmt.Sprintf("  %-5s %s", item.Kind(), filepath.Base(item.LocalPath)))
	}

	if len(batch.FailedIDs) > 0 {
		lines = append(lines, fmt.Sprintf("  download failed: %s", strings.Join(batch.FailedIDs, ", ")))
	}

	if report != nil {
		status := fmt.Sprintf("  delivered %d", report.Sent())
		if failed := report.Failed(); failed > 0 {
			status += fmt.Sprintf("%s%d failed", separator, failed)
		}
		lines = append(lines, status)
	}

	return strings.Join(lines, "\n") + "\n"
}

// FormatSummary formats every batch of a cycle followed by its totals.
func (f *TerminalFormatter) FormatSummary(s scheduler.Summary) string {
	if len(s.Batches) == 0 {
		return "No targets checked.\n"
	}

	var blocks []string
	for i, batch := range s.Batches {
		var report *delivery.Report
		if i < len(s.Reports) {
			report = &s.Reports[i]
		}
		blocks = append(blocks, f.FormatBatch(batch, report))
	}

	totals := []string{countNoun(s.Downloaded(), "download", "downloads")}
	if n := s.DownloadFailed(); n > 0 {
		totals = append(totals, fmt.Sprintf("%d failed", n))
	}
	if len(s.Reports) > 0 {
		totals = append(totals, countNoun(s.Delivered(), "message sent", "messages sent"))
		if n := s.DeliveryFailed(); n > 0 {
			totals = append(totals, fmt.Sprintf("%d not delivered", n))
		}
	}

	return strings.Join(blocks, "\n") + "\n" + strings.Join(totals, separator) + "\n"
}

// FormatSeen lists the identifiers already archived.
func (f *TerminalFormatter) FormatSeen(seen archive.SeenSet) string {
	if seen.Len() == 0 {
		return "No stories archived yet.\n"
	}
	ids := seen.Sorted()
	return strings.Join(ids, "\n") + "\n\n" + countNoun(len(ids), "story archived", "stories archived") + "\n"
}

// FormatHistory formats recorded cycles, newest first.
func (f *TerminalFormatter) FormatHistory(cycles []history.Cycle) string {
	if len(cycles) == 0 {
		return "No cycles recorded.\n"
	}

	var lines []string
	for _, c := range cycles {
		line := fmt.Sprintf("%s%s%s%stook %s", c.StartedAt.Local().Format("2006-01-02 15:04"), separator,
			f.FormatTimestamp(c.StartedAt), separator, c.Duration().Round(time.Second))
		lines = append(lines, line)

		if c.Error != "" {
			lines = append(lines, "  failed: "+f.TruncateText(c.Error, maxErrorLen))
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s%s%d downloaded%s%d sent",
			countNoun(c.Targets, "target", "targets"), separator, c.Downloaded, separator, c.Delivered))
		if c.DownloadFailed > 0 || c.DeliveryFailed > 0 {
			lines = append(lines, fmt.Sprintf("  %d downloads failed%s%d sends failed", c.DownloadFailed, separator, c.DeliveryFailed))
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

// FormatTimestamp formats a timestamp as relative time.
func (f *TerminalFormatter) FormatTimestamp(t time.Time) string {
	diff := f.now().Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return pluralize(int(diff.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// pluralize returns "N unit ago" or "N units ago" based on count.
func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

func countNoun(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return fmt.Sprintf("%d %s", n, plural)
}

// TruncateText truncates text to maxLen, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return text[:maxLen-3] + "..."
}
