package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"ootdapi/models"
	"ootdapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

const maxImageRetries = 3

type OutfitImagePayload struct {
	OutfitID uint `json:"outfit_id"`
}

// Client initializes an asynq client for enqueuing tasks
func NewClient() (*asynq.Client, error) {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}), nil
}

func NewOutfitImageTask(outfitID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(OutfitImagePayload{OutfitID: outfitID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask("generate:outfit_image", payload), nil
}

func NewCachePurgeTask() (*asynq.Task, error) {
	return asynq.NewTask("cache:purge", nil), nil
}

// buildImagePrompt turns the persisted outfit into a rendering description,
// preferring the reasoning captured during generation over the bare title.
func buildImagePrompt(outfit models.Outfit) string {
	var parts []string
	parts = append(parts, outfit.Title)
	if outfit.Description != nil && *outfit.Description != "" {
		parts = append(parts, *outfit.Description)
	}
	return strings.Join(parts, ". ")
}

// HandleOutfitImageTask renders the hero image for a generated outfit,
// cleans up its background and uploads it to R2. The outfit itself is already
// saved, so every failure path only touches image columns.
func HandleOutfitImageTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, llm services.OutfitLLMProvider,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	var payload OutfitImagePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Outfit: %v] Image rendering started\n", payload.OutfitID)

	var outfit models.Outfit
	res := db.First(&outfit, payload.OutfitID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving outfit for image rendering %v", payload.OutfitID))
		return res.Error
	}
	if outfit.ImageStatus == "uploaded" {
		fmt.Printf("[Outfit: %v] Image already uploaded\n", payload.OutfitID)
		return nil
	}

	llmResponse, err := llm.GenerateOutfitImage(ctx, buildImagePrompt(outfit), services.Flash25Image)
	if err != nil {
		if strings.Contains(err.Error(), "content violation") {
			saveOutfitImageFail(db, outfit, "Sorry, we could not render an image for this outfit.", false)
			sentry.CaptureException(fmt.Errorf("[Outfit: %v] Content violation on rendering image: %v", payload.OutfitID, err))
			return nil
		}
		saveOutfitImageFail(db, outfit, "Image rendering failed, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Outfit: %v] Error on rendering image: %v", payload.OutfitID, err))
		return err
	}
	if llmResponse == nil || len(llmResponse.Images) == 0 {
		saveOutfitImageFail(db, outfit, "Image rendering returned no image, please try again", true)
		err := fmt.Errorf("[Outfit: %v] No image returned from model", payload.OutfitID)
		sentry.CaptureException(err)
		return err
	}

	imageBytes := llmResponse.Images[0]
	// push the near-white flat-lay backdrop to pure white, keep the outfit area
	cleanedBytes, cleanErr := services.WhitenBackgroundFeathered(imageBytes, 230, 250, 0.6)
	if cleanErr != nil {
		fmt.Printf("[Outfit: %v] Background cleanup failed, using raw render: %v\n", payload.OutfitID, cleanErr)
		sentry.CaptureException(cleanErr)
		cleanedBytes = imageBytes
	}

	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	safeFileName := fmt.Sprintf("outfits/%v/hero.png", outfit.ID)

	uploadUrl, presignErr := awsService.PresignLink(context.Background(), bucketName, safeFileName)
	if presignErr != nil {
		saveOutfitImageFail(db, outfit, "Image upload failed, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Outfit: %v] Unable to presign image upload: %v", outfit.ID, presignErr))
		return presignErr
	}
	respBody, statusCode, err := awsService.UploadToPresignedURL(context.Background(), bucketName, uploadUrl, cleanedBytes)
	fmt.Printf("[Outfit: %v] R2 Upload file size %v, response body: %s, status code: %d\n", payload.OutfitID, len(cleanedBytes), respBody, statusCode)
	if err != nil || statusCode != 200 {
		saveOutfitImageFail(db, outfit, "Image upload failed, please try again", true)
		sentry.CaptureException(fmt.Errorf("[Outfit: %v] Error on uploading image: %v, status %d", payload.OutfitID, err, statusCode))
		return err
	}

	outfit.ImageURL = &safeFileName
	outfit.ImageStatus = "uploaded"
	outfit.ImageErrorMessage = nil
	if err := db.Save(&outfit).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Outfit: %v] Error on saving outfit after image upload: %w", payload.OutfitID, err))
		return err
	}
	fmt.Printf("[Outfit: %v] Image rendering finished successfully\n", payload.OutfitID)

	services.SendNotification(fbApp, db, outfit.OwnerID, "Your outfit is ready",
		fmt.Sprintf("The image for %q has been rendered", outfit.Title),
		map[string]string{"outfit_id": fmt.Sprintf("%d", outfit.ID), "type": "outfit_image_ready"})
	return nil
}

func saveOutfitImageFail(db *gorm.DB, outfit models.Outfit, msg string, shouldRetry bool) error {
	outfit.ImageRetryCount = outfit.ImageRetryCount + 1
	outfit.ImageErrorMessage = &msg
	if !shouldRetry || outfit.ImageRetryCount >= maxImageRetries {
		outfit.ImageStatus = "failed"
	}
	tx := db.Save(&outfit)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Outfit %v] Error on saving outfit for failed image status", outfit.ID))
		return tx.Error
	}
	return nil
}

// HandleCachePurgeTask drops expired generation cache rows. Scheduled hourly
// by the worker.
func HandleCachePurgeTask(ctx context.Context, t *asynq.Task, db *gorm.DB) error {
	cacheService := services.OutfitCacheService{}
	purged, err := cacheService.PurgeExpired(db)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Cache Purge] Error purging expired entries: %w", err))
		return err
	}
	fmt.Printf("[Cache Purge] Removed %d expired entries\n", purged)
	return nil
}
