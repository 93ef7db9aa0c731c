package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"ootdapi/models"
	"ootdapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const freePlanWardrobeLimit = 20

type CreateClothingIn struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Category    string  `json:"category" validate:"required,max=100"`
	Color       *string `json:"color" validate:"omitempty,max=50"`
	Style       *string `json:"style" validate:"omitempty,max=50"`
	Brand       *string `json:"brand" validate:"omitempty,max=100"`
	FileName    *string `json:"file_name"`
}

type ClothingResponse struct {
	ID           uint    `json:"id"`
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	Category     string  `json:"category"`
	MainCategory string  `json:"main_category"`
	Color        *string `json:"color"`
	Style        *string `json:"style"`
	Brand        *string `json:"brand"`
	ImageStatus  string  `json:"image_status"`
	Uri          *string `json:"uri,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type ClothingCreatedResponse struct {
	ClothingResponse ClothingResponse `json:"clothing"`
	FileUploadUrl    string           `json:"file_upload_url"`
}

type WardrobeListResponse struct {
	Items map[string][]ClothingResponse `json:"items"`
	Total int                           `json:"total"`
}

type WardrobeController struct {
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *WardrobeController) WardrobeRoutes(g *echo.Group) {
	g.POST("/create", controller.CreateClothing)
	g.GET("/list", controller.ListClothes)
	g.DELETE("/:clothingId", controller.DeleteClothing)
}

func (controller *WardrobeController) CreateClothing(c echo.Context) error {
	var req CreateClothingIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	if user.Subscription == nil || *user.Subscription == "free" {
		var totalClothingCount int64
		if err := db.Model(&models.Clothing{}).Where("owner_id = ?", user.ID).Count(&totalClothingCount).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get wardrobe data"})
		}
		fmt.Printf("[User %v] Free plan, wardrobe count: %v\n", user.ID, totalClothingCount)
		if totalClothingCount >= freePlanWardrobeLimit {
			return c.JSON(http.StatusForbidden, map[string]string{"error": fmt.Sprintf("You have reached the free limit of %v wardrobe items, please subscribe", freePlanWardrobeLimit)})
		}
	}

	clothing := models.Clothing{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Color:       req.Color,
		Style:       req.Style,
		Brand:       req.Brand,
		OwnerID:     user.ID,
		ImageStatus: "draft",
	}

	var uploadUrl string
	if req.FileName != nil && *req.FileName != "" {
		var bucketName = services.GetEnv("R2_BUCKET_NAME", "")
		// keep the object key per user so wardrobes never collide
		safeFileName := fmt.Sprintf("wardrobe/%v/%s", user.ID, *req.FileName)

		var presignErr error
		uploadUrl, presignErr = controller.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
		if presignErr != nil {
			log.Printf("Unable to presign upload for %s!, %s", clothing.Name, presignErr)
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"message": "Error while creating wardrobe item with attachment",
			})
		}
		clothing.ImageURL = &safeFileName
	}

	if err := db.Create(&clothing).Error; err != nil {
		sentry.CaptureException(err)
		return err
	}

	response := ClothingCreatedResponse{
		ClothingResponse: ClothingResponse{
			ID:           clothing.ID,
			Name:         clothing.Name,
			Description:  clothing.Description,
			Category:     clothing.Category,
			MainCategory: services.ClassifyMainCategory(clothing.Category),
			Color:        clothing.Color,
			Style:        clothing.Style,
			Brand:        clothing.Brand,
			ImageStatus:  clothing.ImageStatus,
			CreatedAt:    clothing.CreatedAt.Format("2006-01-02T15:04:05Z"),
			UpdatedAt:    clothing.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		},
		FileUploadUrl: uploadUrl,
	}
	return c.JSON(http.StatusCreated, response)
}

// populatePresignedClothingImages resolves presigned read URLs concurrently,
// falling back to a direct R2 presign when the cache layer itself fails.
func (controller *WardrobeController) populatePresignedClothingImages(ctx context.Context, clothes []models.Clothing) []ClothingResponse {
	if len(clothes) == 0 {
		return []ClothingResponse{}
	}

	var wg sync.WaitGroup
	processedResponses := make([]ClothingResponse, len(clothes))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")

	for i, clothingItem := range clothes {
		wg.Add(1)
		go func(index int, item models.Clothing) {
			defer wg.Done()

			var imageUrl string
			if item.ImageURL != nil && *item.ImageURL != "" {
				objectKey := *item.ImageURL

				url, err := controller.URLCache.GetReadURL(ctx, objectKey)
				if err == nil {
					imageUrl = url
				} else {
					log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)
					sentry.WithScope(func(scope *sentry.Scope) {
						scope.SetTag("failure_type", "cache_system")
						scope.SetExtra("objectKey", objectKey)
						sentry.CaptureException(err)
					})

					fallbackUrl, fallbackErr := controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
					if fallbackErr != nil {
						log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, fallbackErr)
						sentry.CaptureException(fallbackErr)
					} else {
						imageUrl = fallbackUrl
					}
				}
			}
			processedResponses[index] = ClothingResponse{
				ID:           item.ID,
				Name:         item.Name,
				Description:  item.Description,
				Category:     item.Category,
				MainCategory: services.ClassifyMainCategory(item.Category),
				Color:        item.Color,
				Style:        item.Style,
				Brand:        item.Brand,
				ImageStatus:  item.ImageStatus,
				CreatedAt:    item.CreatedAt.Format("2006-01-02T15:04:05Z"),
				UpdatedAt:    item.UpdatedAt.Format("2006-01-02T15:04:05Z"),
				Uri:          &imageUrl,
			}
		}(i, clothingItem)
	}

	wg.Wait()
	return processedResponses
}

func (controller *WardrobeController) ListClothes(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var clothes []models.Clothing
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Find(&clothes).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch wardrobe"})
	}

	processedResponses := controller.populatePresignedClothingImages(c.Request().Context(), clothes)

	grouped := map[string][]ClothingResponse{}
	for _, category := range services.MainCategories {
		grouped[category] = []ClothingResponse{}
	}
	for _, item := range processedResponses {
		grouped[item.MainCategory] = append(grouped[item.MainCategory], item)
	}

	return c.JSON(http.StatusOK, WardrobeListResponse{
		Items: grouped,
		Total: len(processedResponses),
	})
}

func (controller *WardrobeController) DeleteClothing(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	clothingId := c.Param("clothingId")
	var clothing models.Clothing
	result := db.Where("id = ? and owner_id = ?", clothingId, user.ID).Limit(1).Find(&clothing)
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch wardrobe item"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Wardrobe item not found"})
	}
	if err := db.Delete(&clothing).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete wardrobe item"})
	}
	fmt.Printf("[User %v] Deleted wardrobe item %v\n", user.ID, clothing.ID)
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "ok"})
}
