package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectBestCandidatePicksMaxScore(t *testing.T) {
	candidates := []OutfitCandidate{
		{Title: "A", Score: 0.42},
		{Title: "B", Score: 0.81},
		{Title: "C", Score: 0.81},
		{Title: "D", Score: 0.30},
	}

	best, err := SelectBestCandidate(candidates)
	assert.NoError(t, err)
	// ties resolve to the earliest candidate
	assert.Equal(t, "B", best.Title)
}

func TestSelectBestCandidateEmpty(t *testing.T) {
	_, err := SelectBestCandidate(nil)
	assert.Error(t, err)
	perr := AsPipelineError(err)
	assert.Equal(t, CodeAIParseError, perr.Code)
}

func TestValidatePinnedItemsAllPresent(t *testing.T) {
	candidate := &OutfitCandidate{Items: []CandidateItem{{ItemID: 1}, {ItemID: 2}}}
	assert.NoError(t, ValidatePinnedItems(candidate, map[uint]bool{1: true, 2: true}))
}

func TestValidatePinnedItemsMissing(t *testing.T) {
	candidate := &OutfitCandidate{Items: []CandidateItem{{ItemID: 1}}}
	err := ValidatePinnedItems(candidate, map[uint]bool{7: true})
	assert.Error(t, err)
	perr := AsPipelineError(err)
	assert.Equal(t, CodePinnedItemsMissing, perr.Code)
	assert.Contains(t, perr.Message, "7")
}

func TestValidatePinnedItemsNoPins(t *testing.T) {
	candidate := &OutfitCandidate{}
	assert.NoError(t, ValidatePinnedItems(candidate, nil))
}
