package services

import (
	"fmt"
	"strings"

	"ootdapi/models"
)

// Canonical wardrobe taxonomy.
const (
	CategoryTop         = "top"
	CategoryBottom      = "bottom"
	CategoryDress       = "dress"
	CategoryOuterwear   = "outerwear"
	CategoryFootwear    = "footwear"
	CategoryAccessories = "accessories"
	CategoryOther       = "other"
)

var MainCategories = []string{
	CategoryTop, CategoryBottom, CategoryDress,
	CategoryOuterwear, CategoryFootwear, CategoryAccessories,
}

type categoryKeywords struct {
	category string
	keywords []string
}

// Order matters, first match wins. "dress shirt" must land in top before the
// dress bucket sees it, and "blazer" has no top keyword so it falls through
// to outerwear.
var categoryTable = []categoryKeywords{
	{CategoryTop, []string{"shirt", "blouse", "t-shirt", "tee", "sweater", "hoodie", "turtleneck", "polo", "tank", "camisole", "pullover"}},
	{CategoryBottom, []string{"pants", "trousers", "jeans", "shorts", "skirt", "legging", "chinos", "slacks", "joggers", "sweatpants", "cargo"}},
	{CategoryDress, []string{"dress", "gown", "jumpsuit", "romper", "sundress"}},
	{CategoryOuterwear, []string{"blazer", "jacket", "coat", "parka", "cardigan", "bomber", "trench", "windbreaker", "vest"}},
	{CategoryFootwear, []string{"shoe", "sneaker", "boot", "heel", "sandal", "loafer", "oxford", "derby", "pump", "flat", "flip flop", "trainer"}},
	{CategoryAccessories, []string{"bag", "belt", "hat", "cap", "scarf", "watch", "necklace", "bracelet", "earring", "sunglasses", "tie", "clutch", "beanie", "glove", "cufflink"}},
}

// ClassifyMainCategory maps a raw free-text category onto the canonical
// taxonomy, defaulting to "other".
func ClassifyMainCategory(rawCategory string) string {
	lowered := strings.ToLower(rawCategory)
	for _, entry := range categoryTable {
		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				return entry.category
			}
		}
	}
	return CategoryOther
}

// ItemAnalysis is the resolved view of one wardrobe item: AI-detected
// metadata wins over raw fields, raw fields win over defaults.
type ItemAnalysis struct {
	Category     string  `json:"category"`
	MainCategory string  `json:"main_category"`
	Color        string  `json:"color"`
	Style        string  `json:"style"`
	Formality    string  `json:"formality"`
	Season       string  `json:"season"`
	Versatility  float64 `json:"versatility"`
	StyleScore   float64 `json:"style_score"`
}

type NormalizedClothingItem struct {
	Item         models.Clothing `json:"item"`
	MainCategory string          `json:"main_category"`
	Analysis     ItemAnalysis    `json:"analysis"`
	Pinned       bool            `json:"pinned"`
}

// FilterDecision records what the heuristic filter did with one item, so the
// trace stays auditable instead of silently mutating the inventory.
type FilterDecision struct {
	ItemID     uint   `json:"item_id"`
	Category   string `json:"category"`
	Kept       bool   `json:"kept"`
	Reason     string `json:"reason,omitempty"`
	Overridden bool   `json:"overridden,omitempty"`
}

func defaultFormality(style string) string {
	lowered := strings.ToLower(style)
	switch {
	case strings.Contains(lowered, "formal"):
		return "formal"
	case strings.Contains(lowered, "business"):
		return "semi-formal"
	default:
		return "casual"
	}
}

func analyzeItem(item models.Clothing) ItemAnalysis {
	analysis := ItemAnalysis{
		Category:     strings.ToLower(item.Category),
		MainCategory: ClassifyMainCategory(item.Category),
		Versatility:  0.5,
		Season:       "all",
	}
	if item.Color != nil {
		analysis.Color = strings.ToLower(*item.Color)
	}
	if item.Style != nil {
		analysis.Style = strings.ToLower(*item.Style)
	}
	if meta := item.ParsedAIMetadata(); meta != nil {
		if meta.Category != "" {
			analysis.Category = strings.ToLower(meta.Category)
		}
		if meta.Color != "" {
			analysis.Color = strings.ToLower(meta.Color)
		}
		if meta.Style != "" {
			analysis.Style = strings.ToLower(meta.Style)
		}
		if meta.Formality != "" {
			analysis.Formality = strings.ToLower(meta.Formality)
		}
		if meta.Season != "" {
			analysis.Season = strings.ToLower(meta.Season)
		}
		if meta.Versatility > 0 {
			analysis.Versatility = meta.Versatility
		}
	}
	if analysis.Formality == "" {
		analysis.Formality = defaultFormality(analysis.Style)
	}
	analysis.StyleScore = analysis.Versatility
	return analysis
}

func matchesExcluded(analysis ItemAnalysis, excluded []string) (string, bool) {
	for _, word := range excluded {
		if strings.Contains(analysis.Category, word) || strings.Contains(analysis.Style, word) {
			return word, true
		}
	}
	return "", false
}

// NormalizeInventory runs the two-phase filter: a heuristic keep/drop pass
// against the active context's excluded vocabulary, then a pin-override pass
// re-including anything the user explicitly asked for.
func NormalizeInventory(items []models.Clothing, styleCtx StyleContext, pinnedIDs map[uint]bool) ([]NormalizedClothingItem, []FilterDecision) {
	var kept []NormalizedClothingItem
	decisions := make([]FilterDecision, 0, len(items))

	for _, item := range items {
		analysis := analyzeItem(item)
		decision := FilterDecision{ItemID: item.ID, Category: analysis.Category, Kept: true}

		if word, excluded := matchesExcluded(analysis, styleCtx.Excluded); excluded {
			if pinnedIDs[item.ID] {
				decision.Reason = fmt.Sprintf("excluded by %s context (%q), kept because pinned", styleCtx.Name, word)
				decision.Overridden = true
			} else {
				decision.Kept = false
				decision.Reason = fmt.Sprintf("excluded by %s context (%q)", styleCtx.Name, word)
				decisions = append(decisions, decision)
				continue
			}
		}

		kept = append(kept, NormalizedClothingItem{
			Item:         item,
			MainCategory: analysis.MainCategory,
			Analysis:     analysis,
			Pinned:       pinnedIDs[item.ID],
		})
		decisions = append(decisions, decision)
	}

	return kept, decisions
}

// GroupByMainCategory buckets normalized items into the six canonical
// categories plus "other".
func GroupByMainCategory(items []NormalizedClothingItem) map[string][]NormalizedClothingItem {
	grouped := map[string][]NormalizedClothingItem{}
	for _, category := range MainCategories {
		grouped[category] = nil
	}
	for _, item := range items {
		grouped[item.MainCategory] = append(grouped[item.MainCategory], item)
	}
	return grouped
}

// SuggestCategories names item kinds worth adding when the wardrobe came up
// short, drawn from the active context's allowed vocabulary.
func SuggestCategories(styleCtx StyleContext, limit int) []string {
	if limit > len(styleCtx.Allowed) {
		limit = len(styleCtx.Allowed)
	}
	return styleCtx.Allowed[:limit]
}
