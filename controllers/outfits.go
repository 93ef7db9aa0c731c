package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"ootdapi/models"
	"ootdapi/services"
	"ootdapi/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const freePlanDailyGenerationLimit = 5

// GenerateOutfitIn mirrors the mobile client contract. SelectedItem arrives
// either as a single object or as an array, hence the RawMessage.
type GenerateOutfitIn struct {
	Prompt           string                  `json:"prompt"`
	Mood             *string                 `json:"mood"`
	UserID           *uint                   `json:"userId"`
	IsPublic         *bool                   `json:"isPublic"`
	SelectedItem     json.RawMessage         `json:"selectedItem"`
	PurchaseLinks    []models.PurchaseLink   `json:"purchaseLinks"`
	WeatherData      *models.WeatherData     `json:"weatherData"`
	UserPreferences  *models.UserPreferences `json:"userPreferences"`
	PinterestContext *string                 `json:"pinterestContext"`
	PinterestPins    []models.PinterestPin   `json:"pinterestPins"`
	GenerateImage    bool                    `json:"generateImage"`
}

type OutfitResponse struct {
	ID              uint    `json:"id"`
	Title           string  `json:"title"`
	Prompt          string  `json:"prompt"`
	Mood            *string `json:"mood"`
	Description     *string `json:"description"`
	IsPublic        bool    `json:"is_public"`
	ClothingItemIDs []int64 `json:"clothing_item_ids"`
	ImageStatus     string  `json:"image_status"`
	ImageURL        *string `json:"image_url"`
	LikesCount      int     `json:"likes_count"`
	CreatedAt       string  `json:"created_at"`
}

type OutfitsController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
	Pipeline   *services.OutfitPipeline
	Limiter    *services.RateLimiter
}

func (controller *OutfitsController) OutfitRoutes(g *echo.Group) {
	g.POST("/generate", controller.GenerateOutfit)
	g.GET("/list", controller.ListOutfits)
	g.GET("/feed", controller.Feed)
	g.GET("/:outfitId", controller.GetOutfit)
	g.DELETE("/:outfitId", controller.DeleteOutfit)
	g.POST("/:outfitId/like", controller.LikeOutfit)
	g.DELETE("/:outfitId/like", controller.UnlikeOutfit)
}

// parseSelectedItems accepts both `{"id": 1, ...}` and `[{"id": 1, ...}]`.
func parseSelectedItems(raw json.RawMessage) ([]models.SelectedItem, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var many []models.SelectedItem
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one models.SelectedItem
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []models.SelectedItem{one}, nil
}

func (controller *OutfitsController) GenerateOutfit(c echo.Context) error {
	started := time.Now()

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return RespondError(c, http.StatusUnauthorized, services.CodeUnauthenticated, "Unauthorized", "")
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return RespondError(c, http.StatusInternalServerError, services.CodePipelineFailed, "Database connection error", "")
	}
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return RespondError(c, http.StatusInternalServerError, services.CodePipelineFailed, "Service is not available, please try again a bit later", "")
	}

	var req GenerateOutfitIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return RespondError(c, http.StatusBadRequest, services.CodeValidation, "Invalid request body", "")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return RespondError(c, http.StatusBadRequest, services.CodeValidation, "Prompt is required", "")
	}
	if utf8.RuneCountInString(req.Prompt) > 1000 {
		return RespondError(c, http.StatusBadRequest, services.CodeValidation, "Prompt must be at most 1000 characters", "")
	}
	if req.UserID == nil {
		return RespondError(c, http.StatusBadRequest, services.CodeValidation, "userId is required", "")
	}
	if *req.UserID != user.ID {
		return RespondError(c, http.StatusForbidden, services.CodeForbidden, "You can only generate outfits for your own account", "")
	}

	pinnedItems, err := parseSelectedItems(req.SelectedItem)
	if err != nil {
		return RespondError(c, http.StatusBadRequest, services.CodeValidation, "Invalid selectedItem payload", "")
	}
	for _, item := range pinnedItems {
		if item.Id == 0 || item.Category == "" {
			return RespondError(c, http.StatusBadRequest, services.CodeValidation, "Selected items need an id and a category", "")
		}
	}
	if req.WeatherData != nil {
		if err := c.Validate(req.WeatherData); err != nil {
			return RespondError(c, http.StatusBadRequest, services.CodeValidation, "Invalid weatherData payload", "")
		}
	}

	if !controller.Limiter.Allow(UIntToStr(user.ID)) {
		fmt.Printf("[Generate: %v] Rate limited\n", user.ID)
		return RespondError(c, http.StatusTooManyRequests, services.CodeRateLimited, "Too many generation requests, please slow down", "")
	}

	// Daily quota: free plan default, with a per-account enforced override.
	dailyLimit := int64(freePlanDailyGenerationLimit)
	enforced := user.EnforcedDailyGenerationLimit != nil
	if enforced {
		dailyLimit = int64(*user.EnforcedDailyGenerationLimit)
	}
	if enforced || user.Subscription == nil || *user.Subscription == "free" {
		var dailyCount int64
		today := time.Now().UTC().Format("2006-01-02")
		if err := db.Model(&models.Outfit{}).Where("owner_id = ? AND DATE(created_at) = ?", user.ID, today).Count(&dailyCount).Error; err != nil {
			return RespondError(c, http.StatusInternalServerError, services.CodePipelineFailed, "Failed to get generation data", "")
		}
		fmt.Printf("[User %v] Daily generation count: %v, limit: %v\n", user.ID, dailyCount, dailyLimit)
		if dailyCount >= dailyLimit {
			return RespondError(c, http.StatusForbidden, services.CodeForbidden,
				fmt.Sprintf("You have reached the limit of %v daily generations. Please wait for the next day or subscribe.", dailyLimit), "")
		}
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	result, err := controller.Pipeline.Generate(c.Request().Context(), db, services.GenerationRequest{
		User:          user,
		Prompt:        prompt,
		Mood:          req.Mood,
		IsPublic:      isPublic,
		PinnedItems:   pinnedItems,
		PurchaseLinks: req.PurchaseLinks,
		Weather:       req.WeatherData,
		Preferences:   req.UserPreferences,
		TrendContext:  req.PinterestContext,
		TrendPins:     req.PinterestPins,
		GenerateImage: req.GenerateImage,
	})
	if err != nil {
		perr := services.AsPipelineError(err)
		if perr.HTTPStatus() >= 500 {
			sentry.CaptureException(err)
		}
		fmt.Printf("[Generate: %v] Pipeline failed: %v\n", user.ID, err)
		return RespondPipelineError(c, err)
	}

	if result.FromCache {
		return RespondSuccess(c, json.RawMessage(result.CachedPayload), map[string]interface{}{
			"cache":              "hit",
			"fromCache":          true,
			"cacheAge":           result.CacheAgeMs,
			"processing_time_ms": time.Since(started).Milliseconds(),
		})
	}

	imageQueued := false
	if req.GenerateImage {
		result.Outfit.ImageStatus = "pending"
		if err := db.Save(result.Outfit).Error; err != nil {
			sentry.CaptureException(err)
		} else if task, taskErr := tasks.NewOutfitImageTask(result.Outfit.ID); taskErr != nil {
			sentry.CaptureException(taskErr)
		} else if info, enqueueErr := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate")); enqueueErr != nil {
			// image enrichment is best effort, the outfit itself is already saved
			fmt.Printf("[Generate: %v] Failed to enqueue image task: %v\n", user.ID, enqueueErr)
			sentry.CaptureException(enqueueErr)
		} else {
			imageQueued = true
			fmt.Println("[Queue] Outfit image task submitted, Outfit ID: ", result.Outfit.ID, " Task ID: ", info.ID)
		}
	}

	return RespondSuccess(c, result.Data, map[string]interface{}{
		"cache":                   "miss",
		"processing_time_ms":      time.Since(started).Milliseconds(),
		"pipeline_steps":          result.StepsCompleted,
		"items_analyzed":          result.ItemsAnalyzed,
		"candidate_count":         result.CandidateCount,
		"style_context":           result.StyleContext,
		"used_pinterest_trends":   result.UsedTrends,
		"image_generation_queued": imageQueued,
	})
}

func (controller *OutfitsController) outfitResponse(c echo.Context, outfit models.Outfit) OutfitResponse {
	var imageUrl *string
	if outfit.ImageURL != nil && *outfit.ImageURL != "" {
		url, err := controller.URLCache.GetReadURL(c.Request().Context(), *outfit.ImageURL)
		if err != nil {
			sentry.CaptureException(err)
		} else {
			imageUrl = &url
		}
	}
	return OutfitResponse{
		ID:              outfit.ID,
		Title:           outfit.Title,
		Prompt:          outfit.Prompt,
		Mood:            outfit.Mood,
		Description:     outfit.Description,
		IsPublic:        outfit.IsPublic,
		ClothingItemIDs: outfit.ClothingItemIDs,
		ImageStatus:     outfit.ImageStatus,
		ImageURL:        imageUrl,
		LikesCount:      outfit.LikesCount,
		CreatedAt:       outfit.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (controller *OutfitsController) ListOutfits(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	var outfits []models.Outfit
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Limit(100).Find(&outfits).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch outfits"})
	}
	responses := make([]OutfitResponse, 0, len(outfits))
	for _, outfit := range outfits {
		responses = append(responses, controller.outfitResponse(c, outfit))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"outfits": responses})
}

func (controller *OutfitsController) Feed(c echo.Context) error {
	db := c.Get("__db").(*gorm.DB)

	var outfits []models.Outfit
	if err := db.Where("is_public = true").Order("created_at desc").Limit(50).Find(&outfits).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch feed"})
	}
	responses := make([]OutfitResponse, 0, len(outfits))
	for _, outfit := range outfits {
		responses = append(responses, controller.outfitResponse(c, outfit))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"outfits": responses})
}

func (controller *OutfitsController) loadVisibleOutfit(c echo.Context, user models.UserAccount) (*models.Outfit, error) {
	db := c.Get("__db").(*gorm.DB)
	outfitId := c.Param("outfitId")

	var outfit models.Outfit
	result := db.Where("id = ? and (owner_id = ? or is_public = true)", outfitId, user.ID).Limit(1).Find(&outfit)
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return nil, echo.ErrInternalServerError
	}
	if result.RowsAffected == 0 {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Outfit not found")
	}
	return &outfit, nil
}

func (controller *OutfitsController) GetOutfit(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	outfit, err := controller.loadVisibleOutfit(c, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, controller.outfitResponse(c, *outfit))
}

func (controller *OutfitsController) DeleteOutfit(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	outfitId := c.Param("outfitId")

	var outfit models.Outfit
	result := db.Where("id = ? and owner_id = ?", outfitId, user.ID).Limit(1).Find(&outfit)
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return echo.ErrInternalServerError
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "Outfit not found")
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("outfit_id = ?", outfit.ID).Delete(&models.OutfitLike{}).Error; err != nil {
			return err
		}
		return tx.Delete(&outfit).Error
	})
	if err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "ok"})
}

func (controller *OutfitsController) LikeOutfit(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	outfit, err := controller.loadVisibleOutfit(c, user)
	if err != nil {
		return err
	}

	like := models.OutfitLike{OutfitID: outfit.ID, UserAccountID: user.ID}
	result := db.Where(like).FirstOrCreate(&like)
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return echo.ErrInternalServerError
	}
	if result.RowsAffected > 0 {
		if err := db.Model(&models.Outfit{}).Where("id = ?", outfit.ID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + 1")).Error; err != nil {
			sentry.CaptureException(err)
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "ok"})
}

func (controller *OutfitsController) UnlikeOutfit(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	outfit, err := controller.loadVisibleOutfit(c, user)
	if err != nil {
		return err
	}

	result := db.Where("outfit_id = ? and user_account_id = ?", outfit.ID, user.ID).Delete(&models.OutfitLike{})
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return echo.ErrInternalServerError
	}
	if result.RowsAffected > 0 {
		if err := db.Model(&models.Outfit{}).Where("id = ? and likes_count > 0", outfit.ID).
			UpdateColumn("likes_count", gorm.Expr("likes_count - 1")).Error; err != nil {
			sentry.CaptureException(err)
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "ok"})
}
