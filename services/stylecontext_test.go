package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectStyleContextKeywords(t *testing.T) {
	cases := []struct {
		prompt   string
		expected string
	}{
		{"Business meeting with investors tomorrow", "business"},
		{"I have a job interview at 9am", "business"},
		{"Black tie gala this weekend", "formal"},
		{"Quick gym session", "athletic"},
		{"Morning yoga class", "athletic"},
		{"Dinner date tonight", "date"},
		{"Skate park with friends", "streetwear"},
		{"Beach vacation outfit", "summer"},
		{"Casual brunch with friends", "casual"},
	}

	for _, c := range cases {
		ctx := DetectStyleContext(c.prompt)
		assert.Equal(t, c.expected, ctx.Name, "prompt: %s", c.prompt)
	}
}

func TestDetectStyleContextDefaultsToCasual(t *testing.T) {
	ctx := DetectStyleContext("Something nice to wear")
	assert.Equal(t, "casual", ctx.Name)
}

func TestDetectStyleContextIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, "business", DetectStyleContext("BUSINESS MEETING").Name)
	assert.Equal(t, "summer", DetectStyleContext("Pool Party").Name)
}

func TestDetectStyleContextOrderWinsOnOverlap(t *testing.T) {
	// both business and summer keywords present, business is checked first
	ctx := DetectStyleContext("office party at the beach")
	assert.Equal(t, "business", ctx.Name)
}

func TestStyleContextByName(t *testing.T) {
	assert.Equal(t, "athletic", StyleContextByName("athletic").Name)
	assert.Equal(t, "casual", StyleContextByName("nonexistent").Name)
}

func TestBusinessContextExcludesCasualItems(t *testing.T) {
	ctx := StyleContextByName("business")
	assert.Contains(t, ctx.Excluded, "sneaker")
	assert.Contains(t, ctx.Excluded, "hoodie")
	assert.Contains(t, ctx.Excluded, "shorts")
}
