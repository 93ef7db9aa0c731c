package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ootdapi/dbhelper"
	"ootdapi/models"
	"ootdapi/test"

	"github.com/stretchr/testify/assert"
)

func TestProfileMe(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := setupGenerateServer(db, &test.FakeOutfitLLM{}, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("GET", "/api/profile/me", UIntToStr(user.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var me models.UserMeOut
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, user.ID, me.Id)
	assert.Equal(t, user.Email, me.Email)
	assert.Equal(t, "pictureurl", me.AvatarURL)
	assert.Nil(t, me.Subscription)
}

func TestUpdatePreferencesPersists(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := setupGenerateServer(db, &test.FakeOutfitLLM{}, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/api/profile/preferences", UIntToStr(user.ID), map[string]interface{}{
		"body_type":         "athletic",
		"style_preferences": []string{"minimalist", "smart casual"},
		"favorite_colors":   []string{"navy", "white"},
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var saved models.UserAccount
	assert.NoError(t, db.First(&saved, user.ID).Error)
	assert.Equal(t, "athletic", *saved.BodyType)
	assert.Equal(t, []string{"minimalist", "smart casual"}, []string(saved.StylePreferences))
	assert.Equal(t, []string{"navy", "white"}, []string(saved.FavoriteColors))
}

func TestRegisterPushReactivatesToken(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := setupGenerateServer(db, &test.FakeOutfitLLM{}, nil)
	user := test.FakeUser(db)
	stale := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      models.PlatformIOS,
		Token:         "ios-token-1",
		Active:        false,
	}
	db.Create(&stale)

	req := test.NewJSONAuthRequest("POST", "/api/profile/register-push", UIntToStr(user.ID), map[string]interface{}{
		"token":    "ios-token-1",
		"platform": "ios",
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var refreshed models.UserPushToken
	assert.NoError(t, db.First(&refreshed, stale.ID).Error)
	assert.True(t, refreshed.Active)
	var count int64
	db.Model(&models.UserPushToken{}).Where("user_account_id = ? and token = ?", user.ID, "ios-token-1").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUpdateSettings(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := setupGenerateServer(db, &test.FakeOutfitLLM{}, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/api/profile/settings", UIntToStr(user.ID), map[string]interface{}{
		"receive_notifications": true,
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var saved models.UserAccount
	assert.NoError(t, db.First(&saved, user.ID).Error)
	assert.True(t, saved.ReceiveNotifications)
}

func TestDeleteAccountRemovesOwnedData(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := setupGenerateServer(db, &test.FakeOutfitLLM{}, nil)
	user := test.FakeUser(db)
	seedBusinessWardrobe(db, user.ID)
	postGenerate(e, user.ID, map[string]interface{}{"prompt": "Business meeting tomorrow"})

	req := test.NewJSONAuthRequest("POST", "/api/profile/delete-account", UIntToStr(user.ID), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	for _, check := range []struct {
		model interface{}
		where string
	}{
		{&models.UserAccount{}, "id = ?"},
		{&models.Clothing{}, "owner_id = ?"},
		{&models.Outfit{}, "owner_id = ?"},
		{&models.OutfitCache{}, "user_account_id = ?"},
		{&models.UserPushToken{}, "user_account_id = ?"},
	} {
		var count int64
		db.Model(check.model).Where(check.where, user.ID).Count(&count)
		assert.Equal(t, int64(0), count)
	}
}
