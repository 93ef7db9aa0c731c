package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"ootdapi/models"

	"github.com/getsentry/sentry-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const OutfitCacheTTL = 24 * time.Hour

// DeriveCacheKey hashes (prompt, user, mood) into a stable cache identifier.
// The prompt is trimmed and lowercased first, so case or whitespace noise in
// the prompt alone does not miss the cache. Weather and preference context
// are deliberately not part of the key.
func DeriveCacheKey(prompt string, userID uint, mood *string) string {
	moodPart := "none"
	if mood != nil && *mood != "" {
		moodPart = *mood
	}
	normalized := strings.ToLower(strings.TrimSpace(prompt))
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", normalized, userID, moodPart)))
	return hex.EncodeToString(sum[:])
}

type OutfitCacheService struct{}

// Lookup returns the cached entry when one exists and has not expired,
// bumping its hit count as a side effect. Expired rows are treated as
// misses, the purge job deletes them later.
func (OutfitCacheService) Lookup(db *gorm.DB, key string) (*models.OutfitCache, error) {
	var entry models.OutfitCache
	res := db.Where("cache_key = ? AND expires_at > ?", key, time.Now()).First(&entry)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, res.Error
	}
	if err := db.Model(&entry).UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error; err != nil {
		fmt.Printf("[Cache: %s] Error incrementing hit count: %v\n", key, err)
		sentry.CaptureException(fmt.Errorf("[Cache: %s] error incrementing hit count: %w", key, err))
	}
	entry.HitCount++
	return &entry, nil
}

// Store writes a fresh entry under the derived key. Two concurrent misses
// can both land here and an expired row may still occupy the key, so this is
// an upsert with last write winning.
func (OutfitCacheService) Store(db *gorm.DB, userID uint, key, prompt string, mood *string, payload string) error {
	entry := models.OutfitCache{
		CacheKey:        key,
		UserAccountID:   userID,
		Prompt:          prompt,
		Mood:            mood,
		ResponsePayload: payload,
		ExpiresAt:       time.Now().Add(OutfitCacheTTL),
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_account_id", "prompt", "mood", "response_payload", "expires_at", "hit_count", "updated_at"}),
	}).Create(&entry).Error
}

// PurgeExpired removes rows past their expiry. Housekeeping only, Lookup
// already ignores expired entries.
func (OutfitCacheService) PurgeExpired(db *gorm.DB) (int64, error) {
	res := db.Where("expires_at <= ?", time.Now()).Delete(&models.OutfitCache{})
	return res.RowsAffected, res.Error
}
