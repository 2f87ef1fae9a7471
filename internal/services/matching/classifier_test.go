package matching

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(score int) MatchCandidate {
	return MatchCandidate{InvoiceID: uuid.New(), Score: score}
}

func TestClassifyEmptyCandidateSet(t *testing.T) {
	c := classify(nil, DefaultThresholds())

	assert.Equal(t, kindNoMatch, c.kind)
	assert.Equal(t, reasonNoOutstandingInvoices, c.reason)
	assert.Nil(t, c.best)
}

func TestClassifyLoneStrongCandidateAutoApplies(t *testing.T) {
	top := candidate(95)
	c := classify([]MatchCandidate{candidate(40), top}, DefaultThresholds())

	require.Equal(t, kindAutoApply, c.kind)
	assert.Equal(t, top.InvoiceID, c.best.InvoiceID)
	assert.Equal(t, 95, c.best.Score)
}

func TestClassifyCloseRunnerUpDemotesToReview(t *testing.T) {
	// 90 clears the auto-apply bar, but 82 is within the close margin.
	c := classify([]MatchCandidate{candidate(82), candidate(90)}, DefaultThresholds())

	require.Equal(t, kindReview, c.kind)
	assert.Equal(t, 90, c.best.Score)
	assert.Len(t, c.candidates, 2)
}

func TestClassifySecondCandidateAboveBarForcesReview(t *testing.T) {
	// 95 and 82 are both above the auto-apply bar and outside the close
	// margin, with only one inside the ambiguity band. Money must not be
	// bound while a competing strong candidate exists.
	c := classify([]MatchCandidate{candidate(82), candidate(95)}, DefaultThresholds())

	require.Equal(t, kindReview, c.kind)
	assert.Equal(t, 95, c.best.Score)
	assert.Len(t, c.candidates, 2)
}

func TestClassifyTwoStrongCandidatesAreAmbiguous(t *testing.T) {
	a := candidate(100)
	b := candidate(92)
	c := classify([]MatchCandidate{b, a, candidate(50)}, DefaultThresholds())

	require.Equal(t, kindAmbiguous, c.kind)
	assert.Equal(t, a.InvoiceID, c.best.InvoiceID)
	require.Len(t, c.candidates, 2)
	assert.Equal(t, 100, c.candidates[0].Score)
	assert.Equal(t, 92, c.candidates[1].Score)
}

func TestClassifyModerateTieGoesToReview(t *testing.T) {
	c := classify([]MatchCandidate{candidate(60), candidate(60), candidate(15)}, DefaultThresholds())

	require.Equal(t, kindReview, c.kind)
	assert.Len(t, c.candidates, 2)
	assert.Equal(t, 60, c.best.Score)
}

func TestClassifyAllBelowReviewFloor(t *testing.T) {
	c := classify([]MatchCandidate{candidate(10), candidate(15)}, DefaultThresholds())

	assert.Equal(t, kindNoMatch, c.kind)
	assert.Equal(t, reasonBelowReviewFloor, c.reason)
}

func TestClassifyTieBreaksByInvoiceID(t *testing.T) {
	a := candidate(60)
	b := candidate(60)
	lowest := a
	if b.InvoiceID.String() < a.InvoiceID.String() {
		lowest = b
	}

	first := classify([]MatchCandidate{a, b}, DefaultThresholds())
	second := classify([]MatchCandidate{b, a}, DefaultThresholds())

	assert.Equal(t, lowest.InvoiceID, first.best.InvoiceID)
	assert.Equal(t, lowest.InvoiceID, second.best.InvoiceID)
}
