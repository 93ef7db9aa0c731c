package models

// Shared request fragments for outfit generation. They travel from the HTTP
// layer through the pipeline, so they live here instead of controllers.

type WeatherData struct {
	Temperature float64  `json:"temperature" validate:"required"`
	Condition   string   `json:"condition" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Icon        *string  `json:"icon"`
	Humidity    *float64 `json:"humidity"`
	WindSpeed   *float64 `json:"windSpeed"`
}

type UserPreferences struct {
	BodyType         *string  `json:"body_type"`
	StylePreferences []string `json:"style_preferences"`
	FavoriteColors   []string `json:"favorite_colors"`
}

type SelectedItem struct {
	Id       uint    `json:"id" validate:"required"`
	Category string  `json:"category" validate:"required"`
	Color    *string `json:"color"`
	ImageURL *string `json:"image_url"`
}

type PurchaseLink struct {
	StoreName string  `json:"store_name" validate:"required"`
	Price     *string `json:"price"`
	URL       *string `json:"url"`
}

type PinterestPin struct {
	Id          string  `json:"id" validate:"required"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
	Link        *string `json:"link"`
}
