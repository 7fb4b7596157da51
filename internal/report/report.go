// Package report renders screening results for people and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/ranking"
)

// Format selects the output encoding.
type Format string

const (
	// FormatTable renders text tables and narrative
	FormatTable Format = "table"
	// FormatJSON renders the result as indented JSON
	FormatJSON Format = "json"
)

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table or json)", s)
	}
}

// Options controls rendering.
type Options struct {
	Format         Format
	SortBy         ranking.Metric
	HideRejections bool
}

var (
	rule     = strings.Repeat("=", 70)
	thinRule = strings.Repeat("-", 70)
)

// NoTradesMessage is printed when nothing survives screening.
const NoTradesMessage = "NO CANDIDATES PASSED ALL FILTERS. No trades today: better to wait than force bad trades."

// Write renders m to w.
func Write(w io.Writer, m models.MultiResult, opts Options) error {
	if opts.SortBy == "" {
		opts.SortBy = ranking.ByScore
	}
	if opts.SortBy != ranking.ByScore {
		m.Recommendations = ranking.RecommendationsBy(m.Recommendations, opts.SortBy)
	}
	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		return nil
	case FormatTable, "":
		return writeTable(w, m, opts)
	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
}

func writeTable(w io.Writer, m models.MultiResult, opts Options) error {
	b := &strings.Builder{}
	p := message.NewPrinter(language.English)

	b.WriteString(rule + "\nCREDIT SPREAD SCREENER\n" + rule + "\n")
	p.Fprintf(b, "Run:          %s\n", m.RunID)
	p.Fprintf(b, "Current VIX:  %.2f\n", m.VIX)
	p.Fprintf(b, "Underlyings:  %s\n", strings.Join(m.Underlyings, ", "))
	p.Fprintf(b, "Candidates:   %d considered, %d passed (%.1f%%)\n", m.Considered, m.Passed, m.PassRate())
	p.Fprintf(b, "Elapsed:      %s\n\n", m.Elapsed.Round(time.Millisecond))

	writeSummary(b, p, m)
	writeProviderErrors(b, m.ProviderErrors)
	if !opts.HideRejections {
		writeRejections(b, p, m.Rejections)
	}
	writeNearMisses(b, p, m)

	if m.Empty() {
		b.WriteString("\n" + NoTradesMessage + "\n")
		b.WriteString("Discipline means saying NO to most opportunities.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("\n" + rule + "\n")
	p.Fprintf(b, "TOP %d RECOMMENDATIONS (sorted by %s)\n", len(m.Recommendations), opts.SortBy)
	b.WriteString(rule + "\n")
	if line := scoreDistribution(m.Recommendations); line != "" {
		b.WriteString(line + "\n")
	}
	writeWidthComparison(b, p, m.Recommendations)
	for _, rec := range m.Recommendations {
		writeRecommendation(b, p, rec)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeSummary(b *strings.Builder, p *message.Printer, m models.MultiResult) {
	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{"Underlying", "Considered", "Passed", "Pass Rate", "Top Score"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, sym := range m.Underlyings {
		r := m.Results[sym]
		top := "-"
		if !r.Empty() {
			top = p.Sprintf("%.1f", r.Recommendations[0].Score)
		}
		table.Append([]string{
			sym,
			p.Sprintf("%d", r.Considered),
			p.Sprintf("%d", r.Passed),
			p.Sprintf("%.1f%%", r.PassRate()),
			top,
		})
	}
	table.Render()
}

// writeProviderErrors lists underlyings skipped because their quotes could
// not be fetched.
func writeProviderErrors(b *strings.Builder, failed map[string]string) {
	if len(failed) == 0 {
		return
	}
	symbols := make([]string, 0, len(failed))
	for sym := range failed {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	b.WriteString("\nSKIPPED UNDERLYINGS (market data unavailable)\n")
	for _, sym := range symbols {
		fmt.Fprintf(b, "  %-6s %s\n", sym, failed[sym])
	}
}

func writeRejections(b *strings.Builder, p *message.Printer, rc models.RejectionCounts) {
	b.WriteString("\nFILTER REJECTION STATS\n")
	total := rc.Total()
	if total == 0 {
		b.WriteString("No candidates rejected.\n")
		return
	}
	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{"Reason", "Description", "Count", "Share"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})
	for _, rcnt := range rc.Sorted() {
		table.Append([]string{
			string(rcnt.Reason),
			rcnt.Reason.Description(),
			p.Sprintf("%d", rcnt.Count),
			p.Sprintf("%.1f%%", float64(rcnt.Count)/float64(total)*100),
		})
	}
	table.SetFooter([]string{"", "Total", p.Sprintf("%d", total), "100.0%"})
	table.Render()
}

// writeNearMisses lists rejected candidates that failed a single filter.
func writeNearMisses(b *strings.Builder, p *message.Printer, m models.MultiResult) {
	var rows [][]string
	for _, sym := range m.Underlyings {
		for _, nm := range m.Results[sym].NearMisses {
			rows = append(rows, []string{nm.Candidate, nm.Gate, nm.Reason.Description(), p.Sprintf("%.1f", nm.Score)})
		}
	}
	if len(rows) == 0 {
		return
	}
	b.WriteString("\nNEAR MISSES (failed exactly one filter)\n")
	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{"Candidate", "Gate", "Failed Because", "Score"})
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

// scoreDistribution summarizes the composite scores of the shown trades.
func scoreDistribution(recs []models.TradeRecommendation) string {
	if len(recs) < 2 {
		return ""
	}
	scores := make(stats.Float64Data, len(recs))
	for i, r := range recs {
		scores[i] = r.Score
	}
	mean, err := stats.Mean(scores)
	if err != nil {
		return ""
	}
	median, _ := stats.Median(scores)
	lo, _ := stats.Min(scores)
	hi, _ := stats.Max(scores)
	return fmt.Sprintf("Scores: mean %.1f, median %.1f, range %.1f-%.1f", mean, median, lo, hi)
}

func writeRecommendation(b *strings.Builder, p *message.Printer, rec models.TradeRecommendation) {
	c := rec.Candidate
	b.WriteString("\n" + thinRule + "\n")
	p.Fprintf(b, "#%d - %s\n", rec.Rank, c)
	b.WriteString(thinRule + "\n")
	p.Fprintf(b, "Score:            %.1f/100\n\n", rec.Score)

	table := tablewriter.NewWriter(b)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	rr := "-"
	if rec.MaxProfit > 0 {
		rr = p.Sprintf("%.2f:1", rec.MaxLoss/rec.MaxProfit)
	}
	rows := [][]string{
		{"Max Profit", "$" + p.Sprintf("%.2f", rec.MaxProfit), "P(Profit)", p.Sprintf("%.1f%%", rec.ProbabilityOfProfit*100)},
		{"Max Loss", "$" + p.Sprintf("%.2f", rec.MaxLoss), "Expected Value", "$" + p.Sprintf("%.2f", c.ExpectedValue)},
		{"Breakeven", "$" + p.Sprintf("%.2f", rec.Breakeven), "ROC (monthly)", p.Sprintf("%.1f%%", c.ReturnOnCapital)},
		{"Risk/Reward", rr, "Theta/Day", "$" + p.Sprintf("%.2f", rec.ThetaPerDay)},
		{"Delta", p.Sprintf("%.3f", c.Delta), "Gamma", p.Sprintf("%.4f", c.Gamma)},
		{"IV Percentile", p.Sprintf("%.0f", c.IVPercentile), "IV Rank", p.Sprintf("%.0f", rec.IVRank)},
		{"Margin", "$" + p.Sprintf("%.2f", rec.Margin), "Theta (annual)", p.Sprintf("%.1f%%", rec.AnnualizedTheta)},
	}
	table.AppendBulk(rows)
	table.Render()

	b.WriteString("\nRISK MANAGEMENT:\n")
	p.Fprintf(b, "  Worst Case:     %s\n", rec.WorstCase)
	p.Fprintf(b, "  Exit Plan:      %s\n", rec.ExitPlan)
	b.WriteString("\nRATIONALE:\n")
	p.Fprintf(b, "  %s\n", rec.Rationale)
}
