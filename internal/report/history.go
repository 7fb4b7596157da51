package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/storage"
)

// History is the archive view printed by the history command.
type History struct {
	Runs       []storage.RunSummary `json:"runs"`
	Statistics storage.Statistics   `json:"statistics"`
}

// WriteHistory renders archived runs, newest first, with aggregate stats.
func WriteHistory(w io.Writer, h History, format Format) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(h); err != nil {
			return fmt.Errorf("encoding history: %w", err)
		}
		return nil
	}

	b := &strings.Builder{}
	p := message.NewPrinter(language.English)

	b.WriteString(rule + "\nSCREENING HISTORY\n" + rule + "\n")
	if len(h.Runs) == 0 {
		b.WriteString("No archived runs.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{"Saved", "Run", "VIX", "Underlyings", "Considered", "Passed", "Trades", "Top Score"})
	for _, r := range h.Runs {
		top := "-"
		if r.Recommendations > 0 {
			top = p.Sprintf("%.1f", r.TopScore)
		}
		table.Append([]string{
			r.SavedAt.Format("2006-01-02 15:04"),
			shortID(r.ID),
			p.Sprintf("%.2f", r.VIX),
			strings.Join(r.Underlyings, ","),
			p.Sprintf("%d", r.Considered),
			p.Sprintf("%d", r.Passed),
			p.Sprintf("%d", r.Recommendations),
			top,
		})
	}
	table.Render()

	s := h.Statistics
	b.WriteString("\n" + thinRule + "\n")
	p.Fprintf(b, "Runs:           %d (%d with trades)\n", s.TotalRuns, s.RunsWithTrades)
	p.Fprintf(b, "Candidates:     %d considered, %d passed (%.1f%%)\n", s.TotalConsidered, s.TotalPassed, s.PassRate)
	if s.TopRejection != "" {
		p.Fprintf(b, "Top rejection:  %s (%d)\n", s.TopRejection.Description(), s.Rejections[s.TopRejection])
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// shortID trims a UUID to its first group for table display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
