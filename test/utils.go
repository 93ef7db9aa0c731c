package test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"ootdapi/models"
	"ootdapi/services"

	"github.com/golang-jwt/jwt/v4"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewRefString(data string) *string {
	return &data
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	user := &models.UserAccount{
		Name:      "OurName",
		Email:     fmt.Sprintf("email-%d@example.com", time.Now().UnixNano()),
		GoogleID:  "12232",
		Platform:  models.PlatformIOS,
		LastIp:    "123.122.122.122",
		Status:    "FINISHED_AUTH",
		AvatarURL: "pictureurl",
	}
	db.Create(&user)
	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      "android",
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU-rqG1sxS8_WCF5cGZchf",
		Active:        true,
	}
	db.Save(&tokenDb)
	return user
}

// FakeWardrobeItem inserts a clothing row owned by the user.
func FakeWardrobeItem(db *gorm.DB, userID uint, name, category string, color, style *string) *models.Clothing {
	item := &models.Clothing{
		Name:        name,
		Category:    category,
		Color:       color,
		Style:       style,
		OwnerID:     userID,
		ImageStatus: "uploaded",
	}
	db.Create(&item)
	return item
}

type GoogleServiceMock struct{}

func (gsm GoogleServiceMock) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {

	return &idtoken.Payload{Issuer: "Issue", Audience: "AAA", Expires: 119919191919, IssuedAt: 12312321321, Subject: "fake@example.com", Claims: map[string]interface{}{
		"email":   "fake@example.com",
		"picture": "pictureurl",
		"sub":     "123googleid",
	}}, nil

}

func (gsm GoogleServiceMock) GetUserSubscriptionStatus(ctx context.Context, appUserId string) ([]byte, error) {
	data := `
	{
		"request_date": "2024-05-11T06:50:56Z",
		"subscriber": {
		  "entitlements": {
			"Pro": {
			  "expires_date": "2029-05-11T06:51:15Z",
			  "product_identifier": "prostandard",
			  "purchase_date": "2024-05-11T06:49:05Z"
			}
		  },
		  "subscriptions": {}
		}
	  }
	  `

	return []byte(data), nil
}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

func (awsService AWSProviderMock) UploadToPresignedURL(ctx context.Context, bucketName, url string, fileContent []byte) (string, int, error) {
	return url, 200, nil
}

type URLCacheMock struct {
	MockUrl string
}

func (u URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	return u.MockUrl, nil
}

// FakeOutfitLLM implements the generation stages against canned output. Call
// counters let tests assert whether the AI path ran at all.
type FakeOutfitLLM struct {
	ClassifyCalls     int64
	RequirementsCalls int64
	CandidateCalls    int64
	ImageCalls        int64

	// Candidates overrides the canned single candidate when set.
	Candidates []services.OutfitCandidate
	// Err, when set, is returned from every stage.
	Err error
}

func (f *FakeOutfitLLM) TotalCalls() int64 {
	return atomic.LoadInt64(&f.ClassifyCalls) + atomic.LoadInt64(&f.RequirementsCalls) + atomic.LoadInt64(&f.CandidateCalls)
}

func (f *FakeOutfitLLM) ClassifyRequest(ctx context.Context, in services.GenerationInputs) (*services.OutfitClassification, error) {
	atomic.AddInt64(&f.ClassifyCalls, 1)
	if f.Err != nil {
		return nil, f.Err
	}
	return &services.OutfitClassification{
		Occasion:       "business meeting",
		Style:          "business",
		Season:         "all",
		FormalityLevel: "semi-formal",
	}, nil
}

func (f *FakeOutfitLLM) SynthesizeRequirements(ctx context.Context, in services.GenerationInputs, classification *services.OutfitClassification) (*services.OutfitRequirements, error) {
	atomic.AddInt64(&f.RequirementsCalls, 1)
	if f.Err != nil {
		return nil, f.Err
	}
	return &services.OutfitRequirements{
		RequiredCategories: []string{"top", "bottom", "footwear"},
		StyleRules:         []string{"keep it polished"},
		LayeringStrategy:   "blazer over shirt",
	}, nil
}

func (f *FakeOutfitLLM) GenerateCandidates(ctx context.Context, in services.GenerationInputs, classification *services.OutfitClassification, requirements *services.OutfitRequirements) ([]services.OutfitCandidate, error) {
	atomic.AddInt64(&f.CandidateCalls, 1)
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Candidates != nil {
		return f.Candidates, nil
	}
	var items []services.CandidateItem
	for _, group := range in.InventoryByCategory {
		for _, normalized := range group {
			items = append(items, services.CandidateItem{
				ItemID:   normalized.Item.ID,
				Category: normalized.MainCategory,
				Name:     normalized.Item.Name,
			})
		}
	}
	return []services.OutfitCandidate{
		{
			Title:       "Polished Ensemble",
			Items:       items,
			Description: "A clean look assembled from the available wardrobe",
			Reasoning:   "Best coverage of the requirements",
			Score:       0.9,
			ScoreBreakdown: services.ScoreBreakdown{
				StyleMatch:              0.9,
				WeatherAppropriateness:  0.9,
				ColorHarmony:            0.9,
				RequirementsFulfillment: 0.9,
			},
		},
	}, nil
}

func (f *FakeOutfitLLM) GenerateOutfitImage(ctx context.Context, description string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	atomic.AddInt64(&f.ImageCalls, 1)
	if f.Err != nil {
		return nil, f.Err
	}
	return &services.LLMResponse{Response: "ok", Images: [][]byte{{0x89, 0x50, 0x4e, 0x47}}}, nil
}
