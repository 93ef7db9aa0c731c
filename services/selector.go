package services

import "fmt"

// SelectBestCandidate picks the maximum-score candidate. Ties go to the
// earliest candidate so selection stays stable across runs.
func SelectBestCandidate(candidates []OutfitCandidate) (*OutfitCandidate, error) {
	if len(candidates) == 0 {
		return nil, NewPipelineError(CodeAIParseError, "AI returned no outfit candidates", nil)
	}
	best := &candidates[0]
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score > best.Score {
			best = &candidates[i]
		}
	}
	return best, nil
}

// ValidatePinnedItems rejects the winning candidate when it silently dropped
// an item the user explicitly required.
func ValidatePinnedItems(candidate *OutfitCandidate, pinnedIDs map[uint]bool) error {
	if len(pinnedIDs) == 0 {
		return nil
	}
	present := map[uint]bool{}
	for _, item := range candidate.Items {
		present[item.ItemID] = true
	}
	for id := range pinnedIDs {
		if !present[id] {
			return NewPipelineError(
				CodePinnedItemsMissing,
				fmt.Sprintf("The generated outfit does not include your selected item (id %d)", id),
				nil,
			)
		}
	}
	return nil
}
