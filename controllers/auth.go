package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"ootdapi/models"
	"ootdapi/services"

	firebase "firebase.google.com/go/v4"
	apple "github.com/Timothylock/go-signin-with-apple/apple"
	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const defaultAvatarURL = "https://pub-df730af6a36c46a58d6d948f149dae31.r2.dev/user-circle.png"

type AuthController struct {
	Google      services.GoogleServiceProvider
	FirebaseApp *firebase.App
}

func (m *AuthController) AuthRoutes(g *echo.Group) {
	g.POST("/google", m.GoogleSignIn)
	g.POST("/apple", m.AppleSignIn)
	g.POST("/refresh-token", m.RefreshToken)
}

func (m *AuthController) signInResponse(c echo.Context, user *models.UserAccount, isNew bool) error {
	refreshToken, err := GenerateRefreshToken(fmt.Sprint(user.ID))
	if err != nil {
		fmt.Println(err)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, models.SignInOut{
		Id:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		New:          isNew,
		Avatar:       user.AvatarURL,
		Subscription: user.Subscription,
		AccessToken:  GenerateUserToken(fmt.Sprint(user.ID), c, 72),
		RefreshToken: refreshToken,
	})
}

func (m *AuthController) GoogleSignIn(c echo.Context) error {
	googleCreds := new(models.GoogleAuthSignIn)
	if err := c.Bind(googleCreds); err != nil {
		return err
	}
	if !models.ValidatePlatformRaw(googleCreds.Platform) {
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Please provide proper platform parameter"})
	}
	if err := c.Validate(googleCreds); err != nil {
		return err
	}

	payload, err := m.Google.ValidateIdToken(context.Background(), googleCreds.IdToken, os.Getenv("GOOGLE_CLIENT_ID"))
	if err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't verify credentials"})
	}
	sub, ok := payload.Claims["sub"]
	if !ok {
		sentry.CaptureMessage(fmt.Sprintf("Error when fetching user data %s", payload.Claims))
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't verify credentials"})
	}
	googleId := sub.(string)
	googleEmail, ok := payload.Claims["email"].(string)
	if !ok {
		sentry.CaptureMessage(fmt.Sprintf("Error when fetching user data email %s", payload.Claims))
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't verify credentials"})
	}
	pictureUrl, _ := payload.Claims["picture"].(string)
	googleName, _ := payload.Claims["name"].(string)

	db := c.Get("__db").(*gorm.DB)
	var user *models.UserAccount
	r := db.Where("google_id = ?", googleId).Limit(1).Find(&user)
	if r.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": "Internal server error"})
	}
	if r.RowsAffected > 0 {
		if user.Banned {
			return echo.ErrForbidden
		}
		return m.signInResponse(c, user, false)
	}

	// same email may exist from an Apple sign-in, attach the Google identity
	r = db.Where("email = ?", googleEmail).Limit(1).Find(&user)
	if r.RowsAffected > 0 {
		user.GoogleID = googleId
		user.AvatarURL = pictureUrl
		if user.Name == "" {
			user.Name = googleName
		}
		user.LastIp = c.RealIP()
		user.Platform = models.Platform(googleCreds.Platform)
		db.Save(&user)
		return m.signInResponse(c, user, false)
	}

	user = &models.UserAccount{
		Name:      googleName,
		Email:     googleEmail,
		GoogleID:  googleId,
		Platform:  models.Platform(googleCreds.Platform),
		LastIp:    c.RealIP(),
		Status:    "FINISHED_AUTH",
		AvatarURL: pictureUrl,
	}
	if err := db.Create(&user).Error; err != nil {
		fmt.Println("Error creating user on google sign in", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": "Sorry, something wrong happened, please try again!"})
	}
	fmt.Println("User onboarding finished google: ", googleEmail, googleId)
	return m.signInResponse(c, user, true)
}

func (m *AuthController) AppleSignIn(c echo.Context) error {
	var req models.AppleAuthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if !models.ValidatePlatformRaw(req.Platform) {
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Please provide proper platform parameter"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	teamID := services.GetEnv("APPLE_TEAM_ID", "")
	keyID := services.GetEnv("APPLE_SIGNIN_KEY_ID", "")
	clientID := services.GetEnv("APPLE_BUNDLE_ID", "com.skripe.ootd")

	secret, err := services.DecodeBase64EnvPrivateKey("APPLE_SIGNIN_PKEY_BASE64")
	if err != nil {
		log.Println("Error getting Apple private key:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	secret, err = apple.GenerateClientSecret(secret, teamID, clientID, keyID)
	if err != nil {
		log.Println("Error generating Apple client secret:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	client := apple.New()

	vReq := apple.AppValidationTokenRequest{
		ClientID:     clientID,
		ClientSecret: secret,
		Code:         req.AuthorizationCode,
	}
	var resp apple.ValidationResponse
	err = client.VerifyAppToken(context.Background(), vReq, &resp)
	if err != nil {
		fmt.Println("error verifying: " + err.Error())
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't verify credentials"})
	}
	if resp.Error != "" {
		fmt.Printf("apple returned an error: %s - %s\n", resp.Error, resp.ErrorDescription)
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't verify credentials through Apple"})
	}

	appleId, err := apple.GetUniqueID(resp.IDToken)
	if err != nil {
		fmt.Println("failed to get unique ID: " + err.Error())
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't get your unique identifier"})
	}
	claim, err := apple.GetClaims(resp.IDToken)
	if err != nil {
		fmt.Println("failed to get claims: " + err.Error())
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "Couldn't get your information"})
	}
	appleEmail, ok := (*claim)["email"].(string)
	if !ok {
		fmt.Printf("[Apple signin] no email in token %v\n", claim)
	}

	db := c.Get("__db").(*gorm.DB)
	var user *models.UserAccount
	var r *gorm.DB
	if appleEmail == "" {
		r = db.Where("apple_id = ?", appleId).Limit(1).Find(&user)
	} else {
		r = db.Where("apple_id = ? or email = ?", appleId, appleEmail).Limit(1).Find(&user)
	}
	if r.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": "Internal server error"})
	}
	if r.RowsAffected > 0 {
		if user.Banned {
			return echo.ErrForbidden
		}
		user.AppleID = appleId
		user.LastIp = c.RealIP()
		db.Save(&user)
		return m.signInResponse(c, user, false)
	}
	if appleEmail == "" {
		fmt.Println("[Apple signin] New user but no email in claims")
		return c.JSON(http.StatusForbidden, map[string]interface{}{"message": "It seems that you are signing in the first time and no email was provided by Apple. Please try again or contact support."})
	}

	user = &models.UserAccount{
		Name:      appleEmail,
		Email:     appleEmail,
		AppleID:   appleId,
		Platform:  models.Platform(req.Platform),
		LastIp:    c.RealIP(),
		Status:    "FINISHED_AUTH",
		AvatarURL: defaultAvatarURL,
	}
	if err := db.Create(&user).Error; err != nil {
		fmt.Println("Error creating user on apple sign in", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": "Sorry, something wrong happened, please try again!"})
	}
	fmt.Println("User onboarding finished apple: ", appleEmail, appleId)
	return m.signInResponse(c, user, true)
}

func (m *AuthController) RefreshToken(c echo.Context) error {
	type tokenReqBody struct {
		RefreshToken string `json:"refresh_token"`
	}
	tokenReq := new(tokenReqBody)
	if err := c.Bind(&tokenReq); err != nil {
		fmt.Println(err)
		return echo.ErrBadRequest
	}
	if tokenReq.RefreshToken == "" {
		fmt.Println("Refresh token is empty")
		return echo.ErrBadRequest
	}
	token, err := jwt.Parse(tokenReq.RefreshToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil {
		fmt.Println(err)
		return echo.ErrBadRequest
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return echo.ErrBadRequest
	}

	db := c.Get("__db").(*gorm.DB)
	data, okConvert := claims["sub"].(string)
	if !okConvert {
		fmt.Println("Cannot convert sub to string!")
		return echo.ErrInternalServerError
	}
	userId, err := strconv.Atoi(data)
	if err != nil {
		fmt.Println("Error parsing sub of the user!!", err)
		return echo.ErrInternalServerError
	}
	if userId < 1 {
		fmt.Println("Refresh: sub is:", userId)
		return echo.ErrBadRequest
	}
	var user *models.UserAccount
	result := db.First(&user, userId)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		fmt.Println("Requested user not found!", userId)
		return echo.ErrForbidden
	}
	if result.Error != nil {
		fmt.Println("Error getting user while refreshing token", userId)
		return echo.ErrInternalServerError
	}
	if user.Banned {
		return echo.ErrUnauthorized
	}

	t := GenerateUserToken(fmt.Sprint(userId), c, 72)
	rt, err := GenerateRefreshToken(fmt.Sprint(userId))
	if err != nil {
		fmt.Println("Error refreshing token ", err)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  t,
		"refresh_token": rt,
	})
}
