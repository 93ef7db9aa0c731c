package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"ootdapi/models"

	"google.golang.org/genai"
)

// LLMModelName is the GenAI model to use for a call.
type LLMModelName int32

const (
	Pro25 LLMModelName = iota
	Flash25
	FlashLite25
	Flash20
	Flash25Image
)

func (t LLMModelName) String() string {
	switch t {
	case Pro25:
		return "gemini-2.5-pro"
	case Flash25:
		return "gemini-2.5-flash"
	case FlashLite25:
		return "gemini-2.5-flash-lite-preview-06-17"
	case Flash25Image:
		return "gemini-2.5-flash-image-preview"
	case Flash20:
		return "gemini-2.0-flash"
	default:
		return "gemini-2.0-flash"
	}
}

func floatPointer(f float32) *float32 {
	return &f
}

func Int32Pointer(i int32) *int32 {
	return &i
}

type LLMResponse struct {
	Response         string   `json:"response"`
	Images           [][]byte `json:"images,omitempty"`
	InputTokenCount  int32    `json:"input_token_count"`
	OutputTokenCount int32    `json:"output_token_count"`
	TotalTokenCount  int32    `json:"total_token_count"`
}

// OutfitClassification is AI output 1: what kind of request this is.
// Free-form model output, trusted as-is after JSON parse.
type OutfitClassification struct {
	Occasion             string   `json:"occasion"`
	Style                string   `json:"style"`
	Season               string   `json:"season"`
	FormalityLevel       string   `json:"formality_level"`
	ColorPreference      []string `json:"color_preference"`
	WeatherConsideration string   `json:"weather_consideration"`
	PersonalizationNotes string   `json:"personalization_notes"`
}

type ColorPalette struct {
	Primary       []string `json:"primary"`
	Accent        []string `json:"accent"`
	Avoid         []string `json:"avoid"`
	SkinToneNotes string   `json:"skin_tone_notes"`
}

type FormalityConstraints struct {
	MustInclude []string `json:"must_include"`
	MustAvoid   []string `json:"must_avoid"`
}

// OutfitRequirements is AI output 2: a structured requirements spec derived
// from the classification.
type OutfitRequirements struct {
	RequiredCategories   []string             `json:"required_categories"`
	OptionalCategories   []string             `json:"optional_categories"`
	ColorPalette         ColorPalette         `json:"color_palette"`
	MaterialPreferences  []string             `json:"material_preferences"`
	MaterialsToAvoid     []string             `json:"materials_to_avoid"`
	StyleRules           []string             `json:"style_rules"`
	LayeringStrategy     string               `json:"layering_strategy"`
	FormalityConstraints FormalityConstraints `json:"formality_constraints"`
	PersonalizationNotes string               `json:"personalization_notes"`
}

type CandidateItem struct {
	ItemID   uint   `json:"item_id"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Style    string `json:"style"`
}

type ScoreBreakdown struct {
	StyleMatch              float64 `json:"style_match"`
	WeatherAppropriateness  float64 `json:"weather_appropriateness"`
	ColorHarmony            float64 `json:"color_harmony"`
	RequirementsFulfillment float64 `json:"requirements_fulfillment"`
}

// OutfitCandidate is one complete proposed outfit from AI output 3. Several
// are produced per request, only the winner is persisted.
type OutfitCandidate struct {
	Title            string          `json:"title"`
	Items            []CandidateItem `json:"items"`
	Description      string          `json:"description"`
	ColorHarmonyText string          `json:"color_harmony"`
	StylingTips      []string        `json:"styling_tips"`
	Reasoning        string          `json:"reasoning"`
	Score            float64         `json:"score"`
	ScoreBreakdown   ScoreBreakdown  `json:"score_breakdown"`
}

// GenerationInputs carries everything the three AI stages consume.
type GenerationInputs struct {
	Prompt              string
	Mood                *string
	Weather             *models.WeatherData
	Preferences         models.UserPreferences
	LikedHistory        []string
	PinnedItems         []models.SelectedItem
	TrendContext        *string
	TrendPins           []models.PinterestPin
	RecentItemIDs       []uint
	InventoryByCategory map[string][]NormalizedClothingItem
}

type OutfitLLMProvider interface {
	ClassifyRequest(ctx context.Context, in GenerationInputs) (*OutfitClassification, error)
	SynthesizeRequirements(ctx context.Context, in GenerationInputs, classification *OutfitClassification) (*OutfitRequirements, error)
	GenerateCandidates(ctx context.Context, in GenerationInputs, classification *OutfitClassification, requirements *OutfitRequirements) ([]OutfitCandidate, error)
	GenerateOutfitImage(ctx context.Context, description string, modelName LLMModelName) (*LLMResponse, error)
}

// Backoff knobs for the shared retry loop. Package vars so tests can shrink
// the delays.
var (
	llmMaxAttempts  = 3
	llmInitialDelay = 1 * time.Second
	llmMaxDelay     = 10 * time.Second
)

// generateWithRetry retries the call on upstream throttling and 5xx only.
// Credit exhaustion (402), other 4xx and parse failures are terminal.
func generateWithRetry(ctx context.Context, tag string, call func() (string, error)) (string, error) {
	delay := llmInitialDelay
	var lastErr error
	for attempt := 1; attempt <= llmMaxAttempts; attempt++ {
		text, err := call()
		if err == nil {
			return text, nil
		}
		lastErr = err
		var upErr *upstreamError
		if !errors.As(err, &upErr) || !upErr.Retryable() || attempt == llmMaxAttempts {
			break
		}
		fmt.Printf("[LLM: %s] Attempt %d failed with status %d, retrying in %v\n", tag, attempt, upErr.StatusCode, delay)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > llmMaxDelay {
			delay = llmMaxDelay
		}
	}
	return "", lastErr
}

// mapUpstreamError converts a failed AI call into the client-facing taxonomy.
// Upstream bodies are logged here and never reach the response.
func mapUpstreamError(tag string, err error) *PipelineError {
	var upErr *upstreamError
	if errors.As(err, &upErr) {
		fmt.Printf("[LLM: %s] Upstream failure %d: %s\n", tag, upErr.StatusCode, upErr.Body)
		switch {
		case upErr.StatusCode == http.StatusTooManyRequests:
			return NewPipelineError(CodeAIRateLimited, "AI service is busy, please try again shortly", err)
		case upErr.StatusCode == http.StatusPaymentRequired:
			return NewPipelineError(CodeAICreditsExhausted, "AI service is temporarily unavailable", err)
		}
	}
	return NewPipelineError(CodePipelineFailed, "Outfit generation failed", err)
}

func toUpstreamError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &upstreamError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return &upstreamError{StatusCode: http.StatusInternalServerError, Body: err.Error()}
}

// CleanAIResponseText strips markdown code fences the model wraps around
// JSON despite instructions.
func CleanAIResponseText(text string) string {
	cleanContent := strings.ReplaceAll(text, "```json", "")
	cleanContent = strings.ReplaceAll(cleanContent, "```", "")
	return strings.TrimSpace(cleanContent)
}

// GoogleOutfitLLM talks to Gemini with a JSON-over-text contract.
type GoogleOutfitLLM struct {
	TextModel  LLMModelName
	ImageModel LLMModelName
}

func NewGoogleOutfitLLM() *GoogleOutfitLLM {
	return &GoogleOutfitLLM{TextModel: Flash25, ImageModel: Flash25Image}
}

func newGenAIClient(ctx context.Context) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GOOGLE_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
}

func (g *GoogleOutfitLLM) generateJSON(ctx context.Context, tag, instruction, systemPrompt string) (string, error) {
	return generateWithRetry(ctx, tag, func() (string, error) {
		client, err := newGenAIClient(ctx)
		if err != nil {
			return "", toUpstreamError(err)
		}
		result, err := client.Models.GenerateContent(ctx, g.TextModel.String(), []*genai.Content{
			{Parts: []*genai.Part{{Text: instruction}}},
		}, &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			CandidateCount:   1,
			MaxOutputTokens:  20000,
			Temperature:      floatPointer(0.8),
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemPrompt}},
			},
		})
		if err != nil {
			return "", toUpstreamError(err)
		}
		if result.UsageMetadata != nil {
			fmt.Printf("[LLM: %s] IT: %d, OT: %d, TOT: %d\n", tag,
				result.UsageMetadata.PromptTokenCount,
				result.UsageMetadata.CandidatesTokenCount,
				result.UsageMetadata.TotalTokenCount)
		}
		return result.Text(), nil
	})
}

func describeWeather(weather *models.WeatherData) string {
	if weather == nil {
		return "no weather data available"
	}
	return fmt.Sprintf("%.1f degrees, %s (%s)", weather.Temperature, weather.Condition, weather.Description)
}

func describeProfile(prefs models.UserPreferences) string {
	var parts []string
	if prefs.BodyType != nil && *prefs.BodyType != "" {
		parts = append(parts, "body type: "+*prefs.BodyType)
	}
	if len(prefs.StylePreferences) > 0 {
		parts = append(parts, "preferred styles: "+strings.Join(prefs.StylePreferences, ", "))
	}
	if len(prefs.FavoriteColors) > 0 {
		parts = append(parts, "favorite colors: "+strings.Join(prefs.FavoriteColors, ", "))
	}
	if len(parts) == 0 {
		return "no profile preferences set"
	}
	return strings.Join(parts, "; ")
}

func describeMood(mood *string) string {
	if mood == nil || *mood == "" {
		return "not specified"
	}
	return *mood
}

func (g *GoogleOutfitLLM) ClassifyRequest(ctx context.Context, in GenerationInputs) (*OutfitClassification, error) {
	instruction := fmt.Sprintf(`Classify this outfit request.
Request: %q
Mood: %s
Weather: %s
User profile: %s
Previously liked outfits: %s

Return JSON with fields: occasion, style, season, formality_level, color_preference (array of strings), weather_consideration (one of: none, low, medium, high), personalization_notes.`,
		in.Prompt, describeMood(in.Mood), describeWeather(in.Weather), describeProfile(in.Preferences), strings.Join(in.LikedHistory, "; "))

	text, err := g.generateJSON(ctx, "classify", instruction, "You are a fashion stylist assistant. Respond with strict JSON only, no prose.")
	if err != nil {
		return nil, mapUpstreamError("classify", err)
	}
	var classification OutfitClassification
	if err := json.Unmarshal([]byte(CleanAIResponseText(text)), &classification); err != nil {
		fmt.Printf("[LLM: classify] Error parsing AI json: %v %s\n", err, text)
		return nil, NewPipelineError(CodeAIParseError, "AI returned an unreadable classification", err)
	}
	return &classification, nil
}

func (g *GoogleOutfitLLM) SynthesizeRequirements(ctx context.Context, in GenerationInputs, classification *OutfitClassification) (*OutfitRequirements, error) {
	classificationJSON, _ := json.Marshal(classification)
	instruction := fmt.Sprintf(`Derive a structured outfit requirements spec.
Original request: %q
Classification: %s
Weather: %s
User profile: %s
Previously liked outfits: %s

Return JSON with fields: required_categories, optional_categories, color_palette {primary, accent, avoid, skin_tone_notes}, material_preferences, materials_to_avoid, style_rules, layering_strategy, formality_constraints {must_include, must_avoid}, personalization_notes.`,
		in.Prompt, classificationJSON, describeWeather(in.Weather), describeProfile(in.Preferences), strings.Join(in.LikedHistory, "; "))

	text, err := g.generateJSON(ctx, "requirements", instruction, "You are a fashion stylist assistant. Respond with strict JSON only, no prose.")
	if err != nil {
		return nil, mapUpstreamError("requirements", err)
	}
	var requirements OutfitRequirements
	if err := json.Unmarshal([]byte(CleanAIResponseText(text)), &requirements); err != nil {
		fmt.Printf("[LLM: requirements] Error parsing AI json: %v %s\n", err, text)
		return nil, NewPipelineError(CodeAIParseError, "AI returned an unreadable requirements spec", err)
	}
	return &requirements, nil
}

func describeInventory(inventory map[string][]NormalizedClothingItem) string {
	var sb strings.Builder
	for _, category := range append(MainCategories, CategoryOther) {
		items := inventory[category]
		if len(items) == 0 {
			continue
		}
		sb.WriteString(category + ":\n")
		for _, item := range items {
			sb.WriteString(fmt.Sprintf("  - id=%d name=%q category=%q color=%q style=%q formality=%q\n",
				item.Item.ID, item.Item.Name, item.Analysis.Category, item.Analysis.Color, item.Analysis.Style, item.Analysis.Formality))
		}
	}
	return sb.String()
}

func describePinned(pinned []models.SelectedItem) string {
	if len(pinned) == 0 {
		return "none"
	}
	var parts []string
	for _, item := range pinned {
		parts = append(parts, fmt.Sprintf("id=%d category=%q", item.Id, item.Category))
	}
	return strings.Join(parts, ", ")
}

func describeTrends(trendContext *string, pins []models.PinterestPin) string {
	var parts []string
	if trendContext != nil && *trendContext != "" {
		parts = append(parts, *trendContext)
	}
	// a few snippets are plenty, the trend context is inspiration not inventory
	for i, pin := range pins {
		if i >= 3 {
			break
		}
		snippet := ""
		if pin.Title != nil {
			snippet = *pin.Title
		}
		if pin.Description != nil {
			snippet = strings.TrimSpace(snippet + " " + *pin.Description)
		}
		if snippet != "" {
			parts = append(parts, snippet)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " | ")
}

func describeRecentIDs(ids []uint) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprint(id))
	}
	return strings.Join(parts, ", ")
}

func (g *GoogleOutfitLLM) GenerateCandidates(ctx context.Context, in GenerationInputs, classification *OutfitClassification, requirements *OutfitRequirements) ([]OutfitCandidate, error) {
	classificationJSON, _ := json.Marshal(classification)
	requirementsJSON, _ := json.Marshal(requirements)
	instruction := fmt.Sprintf(`Create 2-3 structurally distinct outfit candidates from this wardrobe.
Original request: %q
Mood: %s
Classification: %s
Requirements: %s
Weather: %s
User profile: %s
Trend inspiration: %s
Pinned items that MUST be included verbatim: %s
Recently used item ids to avoid where possible (soft preference, reuse only if the wardrobe is scarce): %s

Wardrobe inventory (use ONLY these item ids, never invent items):
%s

Return a JSON array of candidates. Each candidate: title, items (array of {item_id, category, name, color, style}), description, color_harmony, styling_tips (array of strings), reasoning, score (0.0-1.0), score_breakdown {style_match, weather_appropriateness, color_harmony, requirements_fulfillment}.`,
		in.Prompt, describeMood(in.Mood), classificationJSON, requirementsJSON,
		describeWeather(in.Weather), describeProfile(in.Preferences),
		describeTrends(in.TrendContext, in.TrendPins), describePinned(in.PinnedItems),
		describeRecentIDs(in.RecentItemIDs), describeInventory(in.InventoryByCategory))

	text, err := g.generateJSON(ctx, "candidates", instruction, "You are a fashion stylist assistant. Respond with a strict JSON array only, no prose.")
	if err != nil {
		return nil, mapUpstreamError("candidates", err)
	}
	var candidates []OutfitCandidate
	if err := json.Unmarshal([]byte(CleanAIResponseText(text)), &candidates); err != nil {
		fmt.Printf("[LLM: candidates] Error parsing AI json: %v %s\n", err, text)
		return nil, NewPipelineError(CodeAIParseError, "AI returned unreadable outfit candidates", err)
	}
	if len(candidates) == 0 {
		return nil, NewPipelineError(CodeAIParseError, "AI returned no outfit candidates", nil)
	}
	return candidates, nil
}

// GenerateOutfitImage renders a flat-lay hero image for a saved outfit. Only
// the enrichment worker calls this, never the request path.
func (g *GoogleOutfitLLM) GenerateOutfitImage(ctx context.Context, description string, modelName LLMModelName) (*LLMResponse, error) {
	client, err := newGenAIClient(ctx)
	if err != nil {
		return nil, err
	}
	result, err := client.Models.GenerateContent(ctx, modelName.String(), []*genai.Content{
		{Parts: []*genai.Part{{
			Text: fmt.Sprintf("Generate a clean flat-lay fashion photograph of this outfit on a plain white background, professional soft lighting, all items arranged neatly, no people, no text, no watermarks. Outfit: %s", description),
		}}},
	}, &genai.GenerateContentConfig{
		MaxOutputTokens: 20000,
		Temperature:     floatPointer(1),
	})
	if err != nil {
		return nil, err
	}
	if result.PromptFeedback != nil {
		fmt.Println(result.PromptFeedback.BlockReason)
		fmt.Println(result.PromptFeedback.BlockReasonMessage)
		return nil, fmt.Errorf("content violation: %s", result.PromptFeedback.BlockReasonMessage)
	}
	images, err := getAllInlineImages(result)
	if err != nil {
		return nil, err
	}
	response := &LLMResponse{Response: result.Text(), Images: images}
	if result.UsageMetadata != nil {
		response.InputTokenCount = result.UsageMetadata.PromptTokenCount
		response.OutputTokenCount = result.UsageMetadata.CandidatesTokenCount
		response.TotalTokenCount = result.UsageMetadata.TotalTokenCount
	}
	return response, nil
}

func getAllInlineImages(result *genai.GenerateContentResponse) ([][]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("nil response")
	}
	var allImageData [][]byte
	for _, cand := range result.Candidates {
		for _, rating := range cand.SafetyRatings {
			if rating.Blocked {
				return nil, fmt.Errorf("content blocked by safety setting: %s", rating.Category)
			}
		}
		if cand.Content == nil || len(cand.Content.Parts) == 0 {
			continue
		}
		for _, part := range cand.Content.Parts {
			inlineData := part.InlineData
			if inlineData == nil {
				continue
			}
			if strings.HasPrefix(inlineData.MIMEType, "image/") && len(inlineData.Data) > 0 {
				allImageData = append(allImageData, inlineData.Data)
			}
		}
	}
	return allImageData, nil
}
