package models

import "encoding/json"

type Clothing struct {
	JsonModel
	Name        string      `json:"name"`
	Description *string     `gorm:"type:text" json:"description"`
	Category    string      `json:"category"` // free text from the user, e.g. "blue blazer", "running sneakers"
	Color       *string     `json:"color"`
	Style       *string     `json:"style"`
	Brand       *string     `json:"brand"`
	Owner       UserAccount `json:"-"`
	OwnerID     uint        `json:"-"`
	ImageStatus string      `json:"image_status"` // draft, uploaded
	ImageURL    *string     `json:"image_url"`

	// JSON blob written by the closet-analysis job, see ClothingAIMetadata.
	// Malformed content is treated as absent.
	AIMetadata *string `gorm:"type:text" json:"ai_metadata"`
}

type ClothingAIMetadata struct {
	Category    string  `json:"category"`
	Color       string  `json:"color"`
	Style       string  `json:"style"`
	Formality   string  `json:"formality"`
	Season      string  `json:"season"`
	Versatility float64 `json:"versatility"`
}

// ParsedAIMetadata returns the detected metadata or nil when missing or malformed.
func (c *Clothing) ParsedAIMetadata() *ClothingAIMetadata {
	if c.AIMetadata == nil || *c.AIMetadata == "" {
		return nil
	}
	var meta ClothingAIMetadata
	if err := json.Unmarshal([]byte(*c.AIMetadata), &meta); err != nil {
		return nil
	}
	if meta.Category == "" && meta.Color == "" && meta.Style == "" {
		return nil
	}
	return &meta
}
