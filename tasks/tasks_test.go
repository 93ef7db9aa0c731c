package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ootdapi/dbhelper"
	"ootdapi/models"
	"ootdapi/services"
	"ootdapi/test"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func fakeDraftOutfit(db *gorm.DB, userID uint) *models.Outfit {
	outfit := &models.Outfit{
		OwnerID:     userID,
		Title:       "Polished Ensemble",
		Prompt:      "Business meeting tomorrow",
		Description: test.NewRefString("A clean business look"),
		ImageStatus: "pending",
	}
	db.Create(outfit)
	return outfit
}

func TestHandleOutfitImageTaskUploadsHeroImage(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	outfit := fakeDraftOutfit(db, user.ID)
	llm := &test.FakeOutfitLLM{}

	task, err := NewOutfitImageTask(outfit.ID)
	assert.NoError(t, err)
	err = HandleOutfitImageTask(context.Background(), task, db, llm, &test.AWSProviderMock{}, nil)
	assert.NoError(t, err)

	var saved models.Outfit
	assert.NoError(t, db.First(&saved, outfit.ID).Error)
	assert.Equal(t, "uploaded", saved.ImageStatus)
	assert.NotNil(t, saved.ImageURL)
	assert.Equal(t, fmt.Sprintf("outfits/%v/hero.png", outfit.ID), *saved.ImageURL)
	assert.Nil(t, saved.ImageErrorMessage)
	assert.Equal(t, int64(1), llm.ImageCalls)
}

func TestHandleOutfitImageTaskSkipsAlreadyUploaded(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	outfit := fakeDraftOutfit(db, user.ID)
	db.Model(outfit).UpdateColumn("image_status", "uploaded")
	llm := &test.FakeOutfitLLM{}

	task, err := NewOutfitImageTask(outfit.ID)
	assert.NoError(t, err)
	err = HandleOutfitImageTask(context.Background(), task, db, llm, &test.AWSProviderMock{}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), llm.ImageCalls)
}

func TestHandleOutfitImageTaskRetriesOnRenderFailure(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	outfit := fakeDraftOutfit(db, user.ID)
	llm := &test.FakeOutfitLLM{Err: errors.New("upstream timeout")}

	task, err := NewOutfitImageTask(outfit.ID)
	assert.NoError(t, err)
	err = HandleOutfitImageTask(context.Background(), task, db, llm, &test.AWSProviderMock{}, nil)
	assert.Error(t, err)

	var saved models.Outfit
	assert.NoError(t, db.First(&saved, outfit.ID).Error)
	// retryable failure keeps the pending status until the retry budget runs out
	assert.Equal(t, "pending", saved.ImageStatus)
	assert.Equal(t, 1, saved.ImageRetryCount)
	assert.NotNil(t, saved.ImageErrorMessage)
}

func TestHandleOutfitImageTaskContentViolationDoesNotRetry(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	outfit := fakeDraftOutfit(db, user.ID)
	llm := &test.FakeOutfitLLM{Err: errors.New("blocked: content violation")}

	task, err := NewOutfitImageTask(outfit.ID)
	assert.NoError(t, err)
	// a nil return keeps asynq from re-queuing the task
	err = HandleOutfitImageTask(context.Background(), task, db, llm, &test.AWSProviderMock{}, nil)
	assert.NoError(t, err)

	var saved models.Outfit
	assert.NoError(t, db.First(&saved, outfit.ID).Error)
	assert.Equal(t, "failed", saved.ImageStatus)
}

func TestHandleOutfitImageTaskExhaustsRetryBudget(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	outfit := fakeDraftOutfit(db, user.ID)
	db.Model(outfit).UpdateColumn("image_retry_count", maxImageRetries-1)
	llm := &test.FakeOutfitLLM{Err: errors.New("upstream timeout")}

	task, err := NewOutfitImageTask(outfit.ID)
	assert.NoError(t, err)
	err = HandleOutfitImageTask(context.Background(), task, db, llm, &test.AWSProviderMock{}, nil)
	assert.Error(t, err)

	var saved models.Outfit
	assert.NoError(t, db.First(&saved, outfit.ID).Error)
	assert.Equal(t, "failed", saved.ImageStatus)
	assert.Equal(t, maxImageRetries, saved.ImageRetryCount)
}

func TestHandleCachePurgeTaskRemovesExpiredRows(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	expired := models.OutfitCache{
		CacheKey:        "expired-key",
		UserAccountID:   user.ID,
		Prompt:          "old prompt",
		ResponsePayload: "{}",
		ExpiresAt:       time.Now().Add(-time.Hour),
	}
	db.Create(&expired)
	fresh := models.OutfitCache{
		CacheKey:        "fresh-key",
		UserAccountID:   user.ID,
		Prompt:          "new prompt",
		ResponsePayload: "{}",
		ExpiresAt:       time.Now().Add(services.OutfitCacheTTL),
	}
	db.Create(&fresh)

	task, err := NewCachePurgeTask()
	assert.NoError(t, err)
	assert.NoError(t, HandleCachePurgeTask(context.Background(), task, db))

	var keys []string
	db.Model(&models.OutfitCache{}).Pluck("cache_key", &keys)
	assert.Equal(t, []string{"fresh-key"}, keys)
}
