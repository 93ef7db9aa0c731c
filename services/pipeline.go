package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ootdapi/models"

	"github.com/getsentry/sentry-go"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// recentOutfitLookback bounds how many past outfits feed the soft
// "avoid recently used items" instruction.
const recentOutfitLookback = 5

type GenerationRequest struct {
	User          models.UserAccount
	Prompt        string
	Mood          *string
	IsPublic      bool
	PinnedItems   []models.SelectedItem
	PurchaseLinks []models.PurchaseLink
	Weather       *models.WeatherData
	Preferences   *models.UserPreferences
	TrendContext  *string
	TrendPins     []models.PinterestPin
	GenerateImage bool
}

func (r *GenerationRequest) pinnedIDSet() map[uint]bool {
	pinned := map[uint]bool{}
	for _, item := range r.PinnedItems {
		pinned[item.Id] = true
	}
	return pinned
}

type CandidateSummary struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// AIAnalysis is the full pipeline trace persisted with the outfit, kept for
// auditability and future personalization.
type AIAnalysis struct {
	Classification  *OutfitClassification `json:"classification"`
	Requirements    *OutfitRequirements   `json:"requirements"`
	Reasoning       string                `json:"reasoning"`
	Score           float64               `json:"score"`
	ScoreBreakdown  ScoreBreakdown        `json:"score_breakdown"`
	StyleContext    string                `json:"style_context"`
	UsedTrends      bool                  `json:"used_pinterest_trends"`
	FilterDecisions []FilterDecision      `json:"filter_decisions"`
}

// GenerationData is the `data` document of a successful response. The same
// JSON is what lands in the cache payload.
type GenerationData struct {
	Outfit         *models.Outfit        `json:"outfit"`
	Candidate      *OutfitCandidate      `json:"selected_candidate"`
	Reasoning      string                `json:"reasoning"`
	Score          float64               `json:"score"`
	ScoreBreakdown ScoreBreakdown        `json:"score_breakdown"`
	Classification *OutfitClassification `json:"classification"`
	Requirements   *OutfitRequirements   `json:"requirements"`
	Candidates     []CandidateSummary    `json:"candidates_considered"`
}

type GenerationResult struct {
	Data           *GenerationData
	Outfit         *models.Outfit
	StyleContext   string
	UsedTrends     bool
	ItemsAnalyzed  int
	CandidateCount int
	StepsCompleted int
	FromCache      bool
	CacheAgeMs     int64
	CachedPayload  string
}

// OutfitCacheStore abstracts the generation cache so failure paths can be
// exercised in tests. OutfitCacheService is the production implementation.
type OutfitCacheStore interface {
	Lookup(db *gorm.DB, key string) (*models.OutfitCache, error)
	Store(db *gorm.DB, userID uint, key, prompt string, mood *string, payload string) error
}

// OutfitPipeline wires the generation stages together. All stages run
// sequentially, each one's output feeds the next.
type OutfitPipeline struct {
	LLM   OutfitLLMProvider
	Cache OutfitCacheStore
}

func NewOutfitPipeline(llm OutfitLLMProvider) *OutfitPipeline {
	return &OutfitPipeline{LLM: llm, Cache: OutfitCacheService{}}
}

// Generate runs cache lookup, inventory filtering, the three AI stages,
// selection, persistence and the cache write. Rate limiting and auth happen
// in the HTTP layer before this is called.
func (p *OutfitPipeline) Generate(ctx context.Context, db *gorm.DB, req GenerationRequest) (*GenerationResult, error) {
	userID := req.User.ID
	pinnedIDs := req.pinnedIDSet()
	cacheKey := DeriveCacheKey(req.Prompt, userID, req.Mood)

	// Pinned requests are request-specific, caching them would poison later
	// unpinned lookups under the same key.
	if len(pinnedIDs) == 0 {
		entry, err := p.Cache.Lookup(db, cacheKey)
		if err != nil {
			fmt.Printf("[Generate: %v] Cache lookup failed: %v\n", userID, err)
			sentry.CaptureException(fmt.Errorf("[Generate: %v] cache lookup failed: %w", userID, err))
		}
		if entry != nil {
			fmt.Printf("[Generate: %v] Cache hit %s (hits: %d)\n", userID, cacheKey, entry.HitCount)
			return &GenerationResult{
				FromCache:     true,
				CacheAgeMs:    time.Since(entry.CreatedAt).Milliseconds(),
				CachedPayload: entry.ResponsePayload,
			}, nil
		}
	}

	var inventory []models.Clothing
	if err := db.Where("owner_id = ?", userID).Find(&inventory).Error; err != nil {
		return nil, NewPipelineError(CodePipelineFailed, "Failed to load wardrobe", err)
	}

	styleCtx := DetectStyleContext(req.Prompt)
	fmt.Printf("[Generate: %v] Style context: %s, wardrobe size: %d\n", userID, styleCtx.Name, len(inventory))

	normalized, decisions := NormalizeInventory(inventory, styleCtx, pinnedIDs)
	if len(normalized) < 2 {
		suggestions := SuggestCategories(styleCtx, 5)
		return nil, &PipelineError{
			Code:    CodeInsufficientItems,
			Message: "Not enough suitable wardrobe items for this occasion",
			Details: fmt.Sprintf("Try adding items like: %s", strings.Join(suggestions, ", ")),
		}
	}

	preferences := models.UserPreferences{
		BodyType:         req.User.BodyType,
		StylePreferences: req.User.StylePreferences,
		FavoriteColors:   req.User.FavoriteColors,
	}
	if req.Preferences != nil {
		preferences = *req.Preferences
	}

	inputs := GenerationInputs{
		Prompt:              req.Prompt,
		Mood:                req.Mood,
		Weather:             req.Weather,
		Preferences:         preferences,
		LikedHistory:        p.likedHistory(db, userID),
		PinnedItems:         req.PinnedItems,
		TrendContext:        req.TrendContext,
		TrendPins:           req.TrendPins,
		RecentItemIDs:       p.recentItemIDs(db, userID),
		InventoryByCategory: GroupByMainCategory(normalized),
	}

	steps := 0
	classification, err := p.LLM.ClassifyRequest(ctx, inputs)
	if err != nil {
		return nil, err
	}
	steps++
	requirements, err := p.LLM.SynthesizeRequirements(ctx, inputs, classification)
	if err != nil {
		return nil, err
	}
	steps++
	candidates, err := p.LLM.GenerateCandidates(ctx, inputs, classification, requirements)
	if err != nil {
		return nil, err
	}
	steps++

	best, err := SelectBestCandidate(candidates)
	if err != nil {
		return nil, err
	}
	if err := ValidatePinnedItems(best, pinnedIDs); err != nil {
		return nil, err
	}

	usedTrends := (req.TrendContext != nil && *req.TrendContext != "") || len(req.TrendPins) > 0
	analysis := AIAnalysis{
		Classification:  classification,
		Requirements:    requirements,
		Reasoning:       best.Reasoning,
		Score:           best.Score,
		ScoreBreakdown:  best.ScoreBreakdown,
		StyleContext:    styleCtx.Name,
		UsedTrends:      usedTrends,
		FilterDecisions: decisions,
	}
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, NewPipelineError(CodePipelineFailed, "Failed to serialize outfit analysis", err)
	}

	itemIDs := make(pq.Int64Array, 0, len(best.Items))
	for _, item := range best.Items {
		itemIDs = append(itemIDs, int64(item.ItemID))
	}

	outfit := models.Outfit{
		OwnerID:         userID,
		Title:           best.Title,
		Prompt:          req.Prompt,
		Mood:            req.Mood,
		Description:     StrPointer(best.Description),
		IsPublic:        req.IsPublic,
		ClothingItemIDs: itemIDs,
		AIAnalysis:      StrPointer(string(analysisJSON)),
		ImageStatus:     "draft",
	}
	if len(req.PurchaseLinks) > 0 {
		linksJSON, linksErr := json.Marshal(req.PurchaseLinks)
		if linksErr == nil {
			outfit.PurchaseLinks = StrPointer(string(linksJSON))
		}
	}
	if err := db.Create(&outfit).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Generate: %v] error saving outfit: %w", userID, err))
		return nil, NewPipelineError(CodeOutfitSaveFailed, "Your outfit could not be saved, please try again", err)
	}

	summaries := make([]CandidateSummary, 0, len(candidates))
	for _, candidate := range candidates {
		summaries = append(summaries, CandidateSummary{Title: candidate.Title, Score: candidate.Score})
	}
	data := &GenerationData{
		Outfit:         &outfit,
		Candidate:      best,
		Reasoning:      best.Reasoning,
		Score:          best.Score,
		ScoreBreakdown: best.ScoreBreakdown,
		Classification: classification,
		Requirements:   requirements,
		Candidates:     summaries,
	}

	// Cache write comes after the save so a cache entry never points at an
	// outfit that was not persisted. Failures are swallowed.
	if len(pinnedIDs) == 0 {
		payload, payloadErr := json.Marshal(data)
		if payloadErr != nil {
			sentry.CaptureException(fmt.Errorf("[Generate: %v] error serializing cache payload: %w", userID, payloadErr))
		} else if storeErr := p.Cache.Store(db, userID, cacheKey, req.Prompt, req.Mood, string(payload)); storeErr != nil {
			fmt.Printf("[Generate: %v] Cache write failed: %v\n", userID, storeErr)
			sentry.CaptureException(fmt.Errorf("[Generate: %v] cache write failed: %w", userID, storeErr))
		}
	}

	return &GenerationResult{
		Data:           data,
		Outfit:         &outfit,
		StyleContext:   styleCtx.Name,
		UsedTrends:     usedTrends,
		ItemsAnalyzed:  len(inventory),
		CandidateCount: len(candidates),
		StepsCompleted: steps,
	}, nil
}

// recentItemIDs collects item ids from the user's latest outfits for the
// soft freshness preference. Lookup failures just mean no avoidance hint.
func (p *OutfitPipeline) recentItemIDs(db *gorm.DB, userID uint) []uint {
	var outfits []models.Outfit
	if err := db.Where("owner_id = ?", userID).Order("created_at desc").Limit(recentOutfitLookback).Find(&outfits).Error; err != nil {
		fmt.Printf("[Generate: %v] Error loading recent outfits: %v\n", userID, err)
		return nil
	}
	seen := map[uint]bool{}
	var ids []uint
	for _, outfit := range outfits {
		for _, id := range outfit.ClothingItemIDs {
			if !seen[uint(id)] {
				seen[uint(id)] = true
				ids = append(ids, uint(id))
			}
		}
	}
	return ids
}

// likedHistory summarizes outfits the user liked, fed into classification as
// style history.
func (p *OutfitPipeline) likedHistory(db *gorm.DB, userID uint) []string {
	var outfits []models.Outfit
	err := db.Joins("JOIN outfit_likes ON outfit_likes.outfit_id = outfits.id").
		Where("outfit_likes.user_account_id = ?", userID).
		Order("outfit_likes.created_at desc").Limit(10).Find(&outfits).Error
	if err != nil {
		fmt.Printf("[Generate: %v] Error loading liked outfits: %v\n", userID, err)
		return nil
	}
	var history []string
	for _, outfit := range outfits {
		history = append(history, outfit.Title)
	}
	return history
}
