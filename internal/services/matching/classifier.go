package matching

import "sort"

// Classification kinds. Ambiguous is not a terminal outcome; it routes the
// transaction to the agent orchestrator.
type classificationKind int

const (
	kindNoMatch classificationKind = iota
	kindAutoApply
	kindReview
	kindAmbiguous
)

const reasonNoOutstandingInvoices = "No outstanding invoices found"
const reasonBelowReviewFloor = "No candidates above review threshold"

type classification struct {
	kind       classificationKind
	best       *MatchCandidate
	candidates []MatchCandidate
	reason     string
}

// classify applies the threshold policy to a scored candidate set:
// a lone strong candidate auto-applies, a tie of strong candidates goes to
// the agent, anything above the review floor is surfaced for a human, and
// the rest is no-match.
func classify(candidates []MatchCandidate, t Thresholds) classification {
	if len(candidates) == 0 {
		return classification{kind: kindNoMatch, reason: reasonNoOutstandingInvoices}
	}

	ranked := make([]MatchCandidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].InvoiceID.String() < ranked[j].InvoiceID.String()
	})

	strong := 0
	aboveAutoApply := 0
	for _, c := range ranked {
		if c.Score >= t.AmbiguityBand {
			strong++
		}
		if c.Score >= t.AutoApply {
			aboveAutoApply++
		}
	}
	if strong >= 2 {
		// A genuine tie among strong matches; a wrong automatic pick is
		// materially costly.
		return classification{kind: kindAmbiguous, best: &ranked[0], candidates: ranked[:strong]}
	}

	// Auto-apply needs a single candidate above the bar with no runner-up
	// near it; a second candidate above the bar always means review, even
	// outside the close margin.
	top := ranked[0]
	if top.Score >= t.AutoApply && aboveAutoApply == 1 {
		runnerUpClose := len(ranked) > 1 && top.Score-ranked[1].Score <= t.CloseMargin
		if !runnerUpClose {
			return classification{kind: kindAutoApply, best: &ranked[0], candidates: ranked}
		}
	}

	reviewable := ranked[:0:0]
	for _, c := range ranked {
		if c.Score >= t.ReviewFloor {
			reviewable = append(reviewable, c)
		}
	}
	if len(reviewable) > 0 {
		return classification{kind: kindReview, best: &reviewable[0], candidates: reviewable}
	}

	return classification{kind: kindNoMatch, reason: reasonBelowReviewFloor}
}
