package models

import (
	"time"

	"github.com/lib/pq"
)

type Outfit struct {
	JsonModel
	Owner   UserAccount `json:"-"`
	OwnerID uint        `json:"-"`

	Title       string  `json:"title"`
	Prompt      string  `gorm:"type:text" json:"prompt"`
	Mood        *string `json:"mood"`
	Description *string `gorm:"type:text" json:"description"`
	IsPublic    bool    `gorm:"default:true" json:"is_public"`

	ClothingItemIDs pq.Int64Array `gorm:"type:bigint[]" json:"clothing_item_ids"`

	// serialized []PurchaseLink
	PurchaseLinks *string `gorm:"type:text" json:"purchase_links"`

	// full pipeline trace: classification, requirements, winning candidate,
	// score breakdown, style context, trend usage
	AIAnalysis *string `gorm:"type:text" json:"ai_analysis"`

	// hero image rendered by the worker, draft -> pending -> uploaded/failed
	ImageStatus       string  `json:"image_status"`
	ImageURL          *string `json:"image_url"`
	ImageRetryCount   int     `gorm:"default:0" json:"-"`
	ImageErrorMessage *string `json:"-"`

	LikesCount int `gorm:"default:0" json:"likes_count"`
}

type OutfitLike struct {
	JsonModel
	OutfitID      uint        `gorm:"uniqueIndex:idx_outfit_liker" json:"outfit_id"`
	Outfit        Outfit      `json:"-"`
	UserAccountID uint        `gorm:"uniqueIndex:idx_outfit_liker" json:"-"`
	UserAccount   UserAccount `json:"-"`
}

type OutfitCache struct {
	JsonModel
	CacheKey      string      `gorm:"uniqueIndex" json:"cache_key"`
	UserAccountID uint        `json:"-"`
	UserAccount   UserAccount `json:"-"`
	Prompt        string      `gorm:"type:text" json:"prompt"`
	Mood          *string     `json:"mood"`
	// full success payload as returned to the client
	ResponsePayload string    `gorm:"type:text" json:"-"`
	ExpiresAt       time.Time `gorm:"index" json:"expires_at"`
	HitCount        int64     `gorm:"default:0" json:"hit_count"`
}
