package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"ootdapi/models"
	"ootdapi/services"

	firebase "firebase.google.com/go/v4"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func allowedOrigins() []string {
	raw := services.GetEnv("ALLOWED_ORIGINS", "")
	if raw == "" {
		return []string{"*"}
	}
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func SetupServer(
	db *gorm.DB,
	googleService services.GoogleServiceProvider,
	awsService services.AWSServiceProvider,
	firebaseApp *firebase.App,
	asynqClient *asynq.Client,
	urlCache services.URLCacheServiceProvider,
	llm services.OutfitLLMProvider,
	limiter *services.RateLimiter,
) *echo.Echo {

	fmt.Println(firebaseApp, "Firebase app")
	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize AWS provider: S3")
	}

	e := echo.New()
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", asynqClient)
			return next(c)
		}
	})
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins(),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// coarse global limiter in front of the per-user generation limiter
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))

	authGroup := e.Group("auth")
	authController := AuthController{Google: googleService, FirebaseApp: firebaseApp}
	authController.AuthRoutes(authGroup)

	apiGroup := e.Group("/api", echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)

	profileController := ProfileController{AWSService: awsService}
	profileController.ProfileRoutes(apiGroup.Group("/profile"))

	wardrobeController := WardrobeController{AWSService: awsService, URLCache: urlCache}
	wardrobeController.WardrobeRoutes(apiGroup.Group("/wardrobe"))

	outfitsController := OutfitsController{
		AWSService: awsService,
		URLCache:   urlCache,
		Pipeline:   services.NewOutfitPipeline(llm),
		Limiter:    limiter,
	}
	outfitsController.OutfitRoutes(apiGroup.Group("/outfits"))

	return e
}
