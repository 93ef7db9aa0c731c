package models

import (
	"regexp"
	"time"

	"github.com/go-playground/validator"
)

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

func (p *Platform) Scan(value interface{}) error {
	*p = Platform(value.(string))
	return nil
}

func (p Platform) Value() string {
	return string(p)
}

var platformRule = regexp.MustCompile(`^ios|android|web$`)

func ValidatePlatform(fl validator.FieldLevel) bool {
	return platformRule.MatchString(fl.Field().String())
}

func ValidatePlatformRaw(value string) bool {
	return platformRule.MatchString(value)
}

type GoogleAuthSignIn struct {
	IdToken  string `json:"idToken" validate:"required"`
	Platform string `json:"platform" validate:"required"`
}

type AppleAuthRequest struct {
	IdentityToken     string `json:"identity_token" validate:"required"`
	AuthorizationCode string `json:"authorization_code" validate:"required"`
	Platform          string `json:"platform" validate:"required"`
}

type SignInOut struct {
	Id           uint    `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	New          bool    `json:"new"`
	Avatar       string  `json:"avatar"`
	Subscription *string `json:"subscription"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
}
