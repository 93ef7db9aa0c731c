package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"ootdapi/dbhelper"
	"ootdapi/models"
	"ootdapi/services"
	"ootdapi/test"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupGenerateServer(db *gorm.DB, llm services.OutfitLLMProvider, limiter *services.RateLimiter) *echo.Echo {
	if limiter == nil {
		limiter = services.NewRateLimiter(time.Minute, 1000)
	}
	return SetupServer(
		db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, nil, nil,
		test.URLCacheMock{MockUrl: "https://fakecdn.com/item.png"}, llm, limiter,
	)
}

func seedBusinessWardrobe(db *gorm.DB, userID uint) map[string]*models.Clothing {
	items := map[string]*models.Clothing{}
	items["shirt"] = test.FakeWardrobeItem(db, userID, "White dress shirt", "dress shirt", test.NewRefString("white"), test.NewRefString("business"))
	items["blazer"] = test.FakeWardrobeItem(db, userID, "Navy blazer", "blazer", test.NewRefString("navy"), test.NewRefString("business"))
	items["trousers"] = test.FakeWardrobeItem(db, userID, "Grey trousers", "trousers", test.NewRefString("grey"), test.NewRefString("business"))
	items["oxfords"] = test.FakeWardrobeItem(db, userID, "Black oxfords", "oxford shoes", test.NewRefString("black"), test.NewRefString("formal"))
	items["sneakers"] = test.FakeWardrobeItem(db, userID, "Running sneakers", "running sneakers", test.NewRefString("white"), test.NewRefString("athletic"))
	items["hoodie"] = test.FakeWardrobeItem(db, userID, "Grey hoodie", "hoodie", test.NewRefString("grey"), test.NewRefString("casual"))
	return items
}

func postGenerate(e *echo.Echo, userID uint, body map[string]interface{}) *httptest.ResponseRecorder {
	if _, ok := body["userId"]; !ok {
		body["userId"] = userID
	}
	req := test.NewJSONAuthRequest("POST", "/api/outfits/generate", strconv.FormatUint(uint64(userID), 10), body)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func parseEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	payload := map[string]interface{}{}
	err := json.Unmarshal(rec.Body.Bytes(), &payload)
	assert.NoError(t, err)
	return payload
}

func errorCode(payload map[string]interface{}) string {
	errBody, ok := payload["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errBody["code"].(string)
	return code
}

func TestGenerateBusinessOutfitEndToEnd(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)
	items := seedBusinessWardrobe(db, user.ID)

	rec := postGenerate(e, user.ID, map[string]interface{}{
		"prompt": "Business meeting with investors tomorrow",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	payload := parseEnvelope(t, rec)
	assert.Equal(t, true, payload["success"])

	meta := payload["meta"].(map[string]interface{})
	assert.Equal(t, "miss", meta["cache"])
	assert.Equal(t, "business", meta["style_context"])
	assert.Equal(t, float64(3), meta["pipeline_steps"])
	assert.Equal(t, float64(6), meta["items_analyzed"])
	assert.Equal(t, false, meta["image_generation_queued"])

	data := payload["data"].(map[string]interface{})
	outfit := data["outfit"].(map[string]interface{})
	itemIDs := outfit["clothing_item_ids"].([]interface{})

	// sneakers and hoodie are excluded by the business context so the fake
	// model never saw them
	for _, raw := range itemIDs {
		id := uint(raw.(float64))
		assert.NotEqual(t, items["sneakers"].ID, id)
		assert.NotEqual(t, items["hoodie"].ID, id)
	}
	assert.Len(t, itemIDs, 4)

	// outfit persisted before the response went out
	var saved models.Outfit
	assert.NoError(t, db.First(&saved, uint(outfit["id"].(float64))).Error)
	assert.Equal(t, "draft", saved.ImageStatus)
	assert.NotNil(t, saved.AIAnalysis)
	assert.Contains(t, *saved.AIAnalysis, `"style_context":"business"`)

	assert.Equal(t, int64(1), llm.ClassifyCalls)
	assert.Equal(t, int64(1), llm.RequirementsCalls)
	assert.Equal(t, int64(1), llm.CandidateCalls)
}

func TestGenerateSecondIdenticalRequestHitsCache(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)
	seedBusinessWardrobe(db, user.ID)

	body := map[string]interface{}{"prompt": "Business meeting tomorrow", "mood": "confident"}

	first := postGenerate(e, user.ID, body)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, int64(3), llm.TotalCalls())

	second := postGenerate(e, user.ID, body)
	assert.Equal(t, http.StatusOK, second.Code)
	payload := parseEnvelope(t, second)
	meta := payload["meta"].(map[string]interface{})
	assert.Equal(t, "hit", meta["cache"])
	assert.Equal(t, true, meta["fromCache"])

	// no additional AI calls and the cached payload matches the original data
	assert.Equal(t, int64(3), llm.TotalCalls())
	firstData := parseEnvelope(t, first)["data"]
	assert.Equal(t, firstData, payload["data"])

	var entry models.OutfitCache
	assert.NoError(t, db.First(&entry).Error)
	assert.Equal(t, int64(1), entry.HitCount)
}

func TestGenerateCacheKeyIgnoresPromptCase(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)
	seedBusinessWardrobe(db, user.ID)

	postGenerate(e, user.ID, map[string]interface{}{"prompt": "Casual brunch outfit"})
	assert.Equal(t, int64(3), llm.TotalCalls())

	rec := postGenerate(e, user.ID, map[string]interface{}{"prompt": "  casual BRUNCH outfit "})
	meta := parseEnvelope(t, rec)["meta"].(map[string]interface{})
	assert.Equal(t, "hit", meta["cache"])
	assert.Equal(t, int64(3), llm.TotalCalls())

	// a different mood is a different key
	postGenerate(e, user.ID, map[string]interface{}{"prompt": "Casual brunch outfit", "mood": "bold"})
	assert.Equal(t, int64(6), llm.TotalCalls())
}

func TestGeneratePinnedRequestBypassesCache(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)
	items := seedBusinessWardrobe(db, user.ID)

	body := map[string]interface{}{
		"prompt": "Business meeting tomorrow",
		"selectedItem": map[string]interface{}{
			"id":       items["sneakers"].ID,
			"category": "running sneakers",
		},
	}

	first := postGenerate(e, user.ID, body)
	assert.Equal(t, http.StatusOK, first.Code)
	second := postGenerate(e, user.ID, body)
	assert.Equal(t, http.StatusOK, second.Code)

	// both requests went through the full pipeline and nothing was cached
	assert.Equal(t, int64(6), llm.TotalCalls())
	var count int64
	db.Model(&models.OutfitCache{}).Count(&count)
	assert.Equal(t, int64(0), count)

	// the pinned sneakers survived the business exclusion
	data := parseEnvelope(t, first)["data"].(map[string]interface{})
	outfit := data["outfit"].(map[string]interface{})
	found := false
	for _, raw := range outfit["clothing_item_ids"].([]interface{}) {
		if uint(raw.(float64)) == items["sneakers"].ID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGenerateInsufficientWardrobeAbortsBeforeAI(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)
	test.FakeWardrobeItem(db, user.ID, "White dress shirt", "dress shirt", nil, nil)

	rec := postGenerate(e, user.ID, map[string]interface{}{"prompt": "Business meeting tomorrow"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := parseEnvelope(t, rec)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, services.CodeInsufficientItems, errorCode(payload))
	errBody := payload["error"].(map[string]interface{})
	assert.Contains(t, errBody["details"], "Try adding items like")
	assert.Equal(t, int64(0), llm.TotalCalls())
}

func TestGeneratePinnedItemMissingFromCandidate(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{
		Candidates: []services.OutfitCandidate{
			{Title: "Without pins", Items: []services.CandidateItem{{ItemID: 999999}}, Score: 0.8},
		},
	}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)
	items := seedBusinessWardrobe(db, user.ID)

	rec := postGenerate(e, user.ID, map[string]interface{}{
		"prompt": "Business meeting tomorrow",
		"selectedItem": []map[string]interface{}{
			{"id": items["shirt"].ID, "category": "dress shirt"},
		},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := parseEnvelope(t, rec)
	assert.Equal(t, services.CodePinnedItemsMissing, errorCode(payload))
	errBody := payload["error"].(map[string]interface{})
	assert.Contains(t, errBody["message"], fmt.Sprint(items["shirt"].ID))
}

func TestGenerateRateLimited(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{}
	e := setupGenerateServer(db, llm, services.NewRateLimiter(time.Minute, 5))
	user := test.FakeUser(db)
	seedBusinessWardrobe(db, user.ID)

	body := map[string]interface{}{"prompt": "Business meeting tomorrow"}
	for i := 0; i < 5; i++ {
		rec := postGenerate(e, user.ID, body)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := postGenerate(e, user.ID, body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, services.CodeRateLimited, errorCode(parseEnvelope(t, rec)))
}

func TestGenerateDailyQuotaEnforced(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)
	limit := int32(1)
	user.EnforcedDailyGenerationLimit = &limit
	db.Save(user)
	seedBusinessWardrobe(db, user.ID)

	first := postGenerate(e, user.ID, map[string]interface{}{"prompt": "Business meeting tomorrow"})
	assert.Equal(t, http.StatusOK, first.Code)

	second := postGenerate(e, user.ID, map[string]interface{}{"prompt": "Dinner date tonight"})
	assert.Equal(t, http.StatusForbidden, second.Code)
	assert.Equal(t, services.CodeForbidden, errorCode(parseEnvelope(t, second)))
}

func TestGenerateForbiddenForOtherUser(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)
	other := test.FakeUser(db)

	rec := postGenerate(e, user.ID, map[string]interface{}{
		"prompt": "Business meeting tomorrow",
		"userId": other.ID,
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, services.CodeForbidden, errorCode(parseEnvelope(t, rec)))
	assert.Equal(t, int64(0), llm.TotalCalls())
}

func TestGenerateValidation(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)

	rec := postGenerate(e, user.ID, map[string]interface{}{"prompt": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.CodeValidation, errorCode(parseEnvelope(t, rec)))

	rec = postGenerate(e, user.ID, map[string]interface{}{"prompt": strings.Repeat("x", 1001)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.CodeValidation, errorCode(parseEnvelope(t, rec)))

	// the prompt limit counts characters, not bytes
	rec = postGenerate(e, user.ID, map[string]interface{}{"prompt": strings.Repeat("é", 1001)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.CodeValidation, errorCode(parseEnvelope(t, rec)))

	assert.Equal(t, int64(0), llm.TotalCalls())
}

func TestGenerateAcceptsMultibytePromptAtLimit(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)
	seedBusinessWardrobe(db, user.ID)

	// 1000 two-byte runes, 2000 bytes, still within the character limit
	rec := postGenerate(e, user.ID, map[string]interface{}{"prompt": strings.Repeat("é", 1000)})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateRequiresUserID(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)
	seedBusinessWardrobe(db, user.ID)

	req := test.NewJSONAuthRequest("POST", "/api/outfits/generate",
		strconv.FormatUint(uint64(user.ID), 10), map[string]interface{}{"prompt": "Business meeting tomorrow"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.CodeValidation, errorCode(parseEnvelope(t, rec)))
	assert.Equal(t, int64(0), llm.TotalCalls())
}

func TestGenerateRequiresAuth(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := setupGenerateServer(db, &test.FakeOutfitLLM{}, nil)

	req := test.NewJSONRequest("POST", "/api/outfits/generate", map[string]interface{}{"prompt": "anything"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGenerateAIFailureMapsToTaxonomy(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	llm := &test.FakeOutfitLLM{Err: services.NewPipelineError(services.CodeAIRateLimited, "AI service is busy, please try again shortly", nil)}
	e := setupGenerateServer(db, llm, nil)
	user := test.FakeUser(db)
	seedBusinessWardrobe(db, user.ID)

	rec := postGenerate(e, user.ID, map[string]interface{}{"prompt": "Business meeting tomorrow"})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, services.CodeAIRateLimited, errorCode(parseEnvelope(t, rec)))
}
