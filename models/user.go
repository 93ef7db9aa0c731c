package models

import (
	"time"

	"github.com/lib/pq"
)

type UserAccount struct {
	JsonModel
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"unique"`
	Banned   bool   `gorm:"default:false" json:"-"`
	LastIp   string `json:"-"`
	//"STARTED_AUTH", "FINISHED_AUTH"
	Status         string     `json:"-"`
	GoogleID       string     `json:"-"`
	AppleID        string     `json:"-"`
	UTMSource      string     `json:"utm_source"`
	Platform       Platform   `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Subscription   *string    `json:"subscription"`
	ExpirationDate *time.Time `json:"-"`

	ReceiveNotifications bool   `json:"receive_notifications"`
	AvatarURL            string `json:"avatar_url"`

	// style profile, fed into outfit generation as personalization context
	BodyType         *string        `json:"body_type"`
	StylePreferences pq.StringArray `gorm:"type:text[]" json:"style_preferences"`
	FavoriteColors   pq.StringArray `gorm:"type:text[]" json:"favorite_colors"`

	// daily quota override for abuse cases, nil means plan default
	EnforcedDailyGenerationLimit *int32 `json:"enforced_daily_generation_limit"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint
	UserAccount   UserAccount `json:"user_account"`
	Platform      Platform    `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Token         string      `json:"token"`
	Active        bool        `gorm:"default:false" json:"-"`
}

type UserPushIn struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,platform"`
}

type PreferencesIn struct {
	BodyType         *string  `json:"body_type" validate:"omitempty,max=50"`
	StylePreferences []string `json:"style_preferences" validate:"omitempty,max=20,dive,max=50"`
	FavoriteColors   []string `json:"favorite_colors" validate:"omitempty,max=20,dive,max=30"`
}

type UserMeOut struct {
	Id                   uint     `json:"id"`
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	AvatarURL            string   `json:"avatar_url"`
	Subscription         *string  `json:"subscription"`
	ReceiveNotifications bool     `json:"receive_notifications"`
	BodyType             *string  `json:"body_type"`
	StylePreferences     []string `json:"style_preferences"`
	FavoriteColors       []string `json:"favorite_colors"`
}
