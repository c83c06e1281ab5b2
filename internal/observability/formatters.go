// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jonathan/rojgar-pipeline/internal/archive"
	"github.com/jonathan/rojgar-pipeline/internal/pipeline"
	"github.com/jonathan/rojgar-pipeline/internal/store"
	"github.com/jonathan/rojgar-pipeline/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content. Widths are
// measured in terminal cells so Devanagari titles line up.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", fit(title, inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", fit(line, inner))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// fit truncates s to width cells and pads it on the right.
func fit(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "...")
	}
	return runewidth.FillRight(s, width)
}

// PrintCycleReport outputs the tallies of a finished cycle.
func (p *Printer) PrintCycleReport(report *pipeline.Report) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:        %s\n", report.RunID))
	sb.WriteString(fmt.Sprintf("Duration:   %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Archived:   %d\n", report.Archived))
	sb.WriteString(fmt.Sprintf("Discovered: %d\n", report.Discovered))
	sb.WriteString(fmt.Sprintf("Too short:  %d\n", report.ShortDiscarded))
	sb.WriteString(fmt.Sprintf("Fetch err:  %d\n", report.FetchFailed))
	sb.WriteString(fmt.Sprintf("Clusters:   %d\n", report.Clusters))
	sb.WriteString(fmt.Sprintf("Inserted:   %d\n", report.Inserted))
	sb.WriteString(fmt.Sprintf("Duplicates: %d\n", report.Duplicates))
	sb.WriteString(fmt.Sprintf("Failed:     %d", report.Failed))

	failures := 0
	for _, o := range report.Outcomes {
		if o.Reason == "" {
			continue
		}
		if failures == 0 {
			sb.WriteString("\n\nFailures:\n")
		}
		failures++
		if failures > maxItemsToShow {
			continue
		}
		target := o.RecordID
		if target == "" && len(o.URLs) > 0 {
			target = o.URLs[0]
		}
		sb.WriteString(fmt.Sprintf("  ⚠ %s\n    %s\n", target, o.Reason))
	}
	if failures > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", failures-maxItemsToShow))
	}

	p.printBox("CYCLE REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintClusters outputs the clusters formed in a cycle.
func (p *Printer) PrintClusters(clusters []types.Cluster) {
	if len(clusters) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Formed %d clusters:\n\n", len(clusters)))

	count := min(len(clusters), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := clusters[i]
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, c.Lead().Title))
		if len(c.Articles) > 1 {
			sb.WriteString(fmt.Sprintf("    %d sources merged\n", len(c.Articles)))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(clusters) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more clusters", len(clusters)-maxItemsToShow))
	}

	p.printBox("ANNOUNCEMENT CLUSTERS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintArchiveReport outputs how many records each partition archived.
func (p *Printer) PrintArchiveReport(report archive.Report) {
	if report.Total == 0 {
		p.printBox("ARCHIVAL", "Nothing to archive")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Archived %d records:\n", report.Total))
	for _, c := range types.Categories() {
		if n := report.PerCategory[c]; n > 0 {
			sb.WriteString(fmt.Sprintf("  • %-20s %d\n", c, n))
		}
	}

	p.printBox("ARCHIVAL", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStoreSummary outputs partition sizes and the newest records.
func (p *Printer) PrintStoreSummary(state *store.State) {
	if state == nil {
		return
	}

	active := state.Counts()
	archived := state.ArchivedCounts()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-20s %7s %9s\n", "Partition", "Active", "Archived"))
	totalActive, totalArchived := 0, 0
	for _, c := range types.Categories() {
		sb.WriteString(fmt.Sprintf("%-20s %7d %9d\n", c, active[c], archived[c]))
		totalActive += active[c]
		totalArchived += archived[c]
	}
	sb.WriteString(fmt.Sprintf("%-20s %7d %9d\n", "total", totalActive, totalArchived))

	latest := state.Active[types.CategoryLatestJobs]
	if len(latest) > 0 {
		sb.WriteString("\nNewest jobs:\n")
		count := min(len(latest), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", latest[i].Title))
		}
	}

	p.printBox("CATEGORY STORE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProgress writes a one-line progress message, and a box for steps that
// carry printable content.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(event pipeline.ProgressEvent) {
	fmt.Fprintf(p.out, "[%s] %s\n", event.Step, event.Message)
	switch content := event.Content.(type) {
	case []types.Cluster:
		p.PrintClusters(content)
	case archive.Report:
		if content.Total > 0 {
			p.PrintArchiveReport(content)
		}
	case *pipeline.Report:
		p.PrintCycleReport(content)
	}
}
