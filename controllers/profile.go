package controllers

import (
	"fmt"
	"net/http"

	"ootdapi/models"
	"ootdapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type ProfileController struct {
	AWSService services.AWSServiceProvider
}

func (m *ProfileController) ProfileRoutes(g *echo.Group) {
	g.GET("/me", m.Me)
	g.POST("/preferences", m.UpdatePreferences)
	g.POST("/register-push", m.RegisterPush)
	g.POST("/delete-push", m.DeletePush)
	g.POST("/settings", m.UpdateSettings)
	g.POST("/delete-account", m.DeleteAccount)
}

func (m *ProfileController) Me(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	return c.JSON(http.StatusOK, models.UserMeOut{
		Id:                   user.ID,
		Name:                 user.Name,
		Email:                user.Email,
		AvatarURL:            user.AvatarURL,
		Subscription:         user.Subscription,
		ReceiveNotifications: user.ReceiveNotifications,
		BodyType:             user.BodyType,
		StylePreferences:     user.StylePreferences,
		FavoriteColors:       user.FavoriteColors,
	})
}

func (m *ProfileController) UpdatePreferences(c echo.Context) error {
	db := c.Get("__db").(*gorm.DB)
	user := c.Get("currentUser").(models.UserAccount)

	prefs := new(models.PreferencesIn)
	if err := c.Bind(prefs); err != nil {
		return err
	}
	if err := c.Validate(prefs); err != nil {
		return err
	}

	user.BodyType = prefs.BodyType
	user.StylePreferences = pq.StringArray(prefs.StylePreferences)
	user.FavoriteColors = pq.StringArray(prefs.FavoriteColors)
	if err := db.Save(&user).Error; err != nil {
		fmt.Printf("[Profile: %v] Error saving preferences %v\n", user.ID, err)
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "ok"})
}

func (m *ProfileController) RegisterPush(c echo.Context) error {
	db := c.Get("__db").(*gorm.DB)
	user := c.Get("currentUser").(models.UserAccount)

	pushIn := new(models.UserPushIn)
	if err := c.Bind(pushIn); err != nil {
		return err
	}
	if err := c.Validate(pushIn); err != nil {
		return err
	}

	var pushToken models.UserPushToken
	err := db.Where(models.UserPushToken{
		UserAccountID: user.ID,
		Token:         pushIn.Token,
		Platform:      models.Platform(pushIn.Platform),
	}).Attrs(models.UserPushToken{Active: true}).FirstOrCreate(&pushToken).Error
	if err != nil {
		fmt.Printf("[Push: %v] Error registering token %v\n", user.ID, err)
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	if !pushToken.Active {
		pushToken.Active = true
		db.Save(&pushToken)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "ok"})
}

func (m *ProfileController) DeletePush(c echo.Context) error {
	db := c.Get("__db").(*gorm.DB)
	user := c.Get("currentUser").(models.UserAccount)

	pushIn := new(models.UserPushIn)
	if err := c.Bind(pushIn); err != nil {
		return err
	}
	result := db.Where("user_account_id = ? and token = ?", user.ID, pushIn.Token).Delete(&models.UserPushToken{})
	if result.Error != nil {
		sentry.CaptureException(result.Error)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "ok"})
}

func (m *ProfileController) UpdateSettings(c echo.Context) error {
	type SettingsIn struct {
		ReceiveNotifications *bool `json:"receive_notifications"`
	}
	db := c.Get("__db").(*gorm.DB)
	user := c.Get("currentUser").(models.UserAccount)

	settings := new(SettingsIn)
	if err := c.Bind(settings); err != nil {
		return err
	}
	if settings.ReceiveNotifications != nil {
		user.ReceiveNotifications = *settings.ReceiveNotifications
		if err := db.Save(&user).Error; err != nil {
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "ok"})
}

// DeleteAccount removes the user row together with wardrobe, outfits, likes
// and cache entries. R2 objects are left to the bucket lifecycle policy.
func (m *ProfileController) DeleteAccount(c echo.Context) error {
	db := c.Get("__db").(*gorm.DB)
	user := c.Get("currentUser").(models.UserAccount)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_account_id = ?", user.ID).Delete(&models.UserPushToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_account_id = ?", user.ID).Delete(&models.OutfitLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_account_id = ?", user.ID).Delete(&models.OutfitCache{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", user.ID).Delete(&models.Outfit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", user.ID).Delete(&models.Clothing{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		fmt.Printf("[Profile: %v] Error deleting account %v\n", user.ID, err)
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	fmt.Printf("[Profile: %v] Account deleted\n", user.ID)
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "ok"})
}
