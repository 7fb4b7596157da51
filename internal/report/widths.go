package report

import (
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/message"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
)

// widthGroup averages the recommendations that share a strike width.
type widthGroup struct {
	Width   float64
	Trades  int
	Credit  float64
	MaxLoss float64
	POP     float64
	ROC     float64
	Score   float64
}

// compareWidths groups recommendations by strike width, narrowest first.
func compareWidths(recs []models.TradeRecommendation) []widthGroup {
	type series struct{ credit, maxLoss, pop, roc, score stats.Float64Data }
	byWidth := map[float64]*series{}
	for _, r := range recs {
		w := r.Candidate.Width()
		s, ok := byWidth[w]
		if !ok {
			s = &series{}
			byWidth[w] = s
		}
		s.credit = append(s.credit, r.Candidate.Credit)
		s.maxLoss = append(s.maxLoss, r.MaxLoss)
		s.pop = append(s.pop, r.ProbabilityOfProfit)
		s.roc = append(s.roc, r.Candidate.ReturnOnCapital)
		s.score = append(s.score, r.Score)
	}

	out := make([]widthGroup, 0, len(byWidth))
	for w, s := range byWidth {
		g := widthGroup{Width: w, Trades: len(s.score)}
		g.Credit, _ = s.credit.Mean()
		g.MaxLoss, _ = s.maxLoss.Mean()
		g.POP, _ = s.pop.Mean()
		g.ROC, _ = s.roc.Mean()
		g.Score, _ = s.score.Mean()
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Width < out[j].Width })
	return out
}

// writeWidthComparison shows the narrow versus wide trade-off when the
// recommendations span more than one width.
func writeWidthComparison(b *strings.Builder, p *message.Printer, recs []models.TradeRecommendation) {
	groups := compareWidths(recs)
	if len(groups) < 2 {
		return
	}

	b.WriteString("\nWIDTH COMPARISON\n")
	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{"Width", "Trades", "Avg Credit", "Avg Max Loss", "Avg P(Profit)", "Avg ROC", "Avg Score"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, g := range groups {
		table.Append([]string{
			"$" + p.Sprintf("%.2f", g.Width),
			p.Sprintf("%d", g.Trades),
			"$" + p.Sprintf("%.2f", g.Credit),
			"$" + p.Sprintf("%.2f", g.MaxLoss),
			p.Sprintf("%.1f%%", g.POP*100),
			p.Sprintf("%.1f%%", g.ROC),
			p.Sprintf("%.1f", g.Score),
		})
	}
	table.Render()

	narrow, wide := groups[0], groups[len(groups)-1]
	if narrow.Credit > 0 && narrow.MaxLoss > 0 {
		p.Fprintf(b, "Widest vs narrowest: %.2fx credit, %.2fx risk, %+.1f pts probability of profit\n",
			wide.Credit/narrow.Credit, wide.MaxLoss/narrow.MaxLoss, (wide.POP-narrow.POP)*100)
	}
}
