package models

import "strings"

// SpreadQuality is a discrete execution-quality rating for a spread's bid-ask.
type SpreadQuality string

const (
	// QualityUnknown means no rating is available
	QualityUnknown SpreadQuality = ""
	// QualityExcellent is the tightest market
	QualityExcellent SpreadQuality = "excellent"
	// QualityGood is a tight market
	QualityGood SpreadQuality = "good"
	// QualityAcceptable is tradable with some slippage
	QualityAcceptable SpreadQuality = "acceptable"
	// QualityPoor is expensive to cross
	QualityPoor SpreadQuality = "poor"
	// QualityAvoid should not be traded
	QualityAvoid SpreadQuality = "avoid"
)

// Valid returns true if the SpreadQuality is one of the defined constants
func (q SpreadQuality) Valid() bool {
	switch q {
	case QualityUnknown, QualityExcellent, QualityGood, QualityAcceptable, QualityPoor, QualityAvoid:
		return true
	default:
		return false
	}
}

// Rank returns the ordinal of the rating: higher is better, 0 for avoid and
// -1 for unknown.
func (q SpreadQuality) Rank() int {
	switch q {
	case QualityExcellent:
		return 4
	case QualityGood:
		return 3
	case QualityAcceptable:
		return 2
	case QualityPoor:
		return 1
	case QualityAvoid:
		return 0
	default:
		return -1
	}
}

// ParseSpreadQuality converts free-form text into a SpreadQuality.
// Unrecognized values map to QualityUnknown.
func ParseSpreadQuality(s string) SpreadQuality {
	q := SpreadQuality(strings.ToLower(strings.TrimSpace(s)))
	if !q.Valid() {
		return QualityUnknown
	}
	return q
}

// QualityFromCostPct rates a spread from its bid-ask cost as a percentage of
// credit.
func QualityFromCostPct(pct float64) SpreadQuality {
	switch {
	case pct != pct || pct < 0:
		return QualityUnknown
	case pct <= 2:
		return QualityExcellent
	case pct <= 5:
		return QualityGood
	case pct <= 10:
		return QualityAcceptable
	case pct <= 20:
		return QualityPoor
	default:
		return QualityAvoid
	}
}
