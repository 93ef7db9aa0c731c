package services

import "strings"

// StyleContext bundles the vocabulary governing inventory filtering for one
// occasion category. Exactly one context is active per generation request.
type StyleContext struct {
	Name     string
	Priority []string
	Allowed  []string
	Excluded []string
	Keywords []string
}

// Detection order matters, first keyword match wins. "business meeting" must
// resolve to business even though "meeting" alone could read as formal.
var styleContexts = []StyleContext{
	{
		Name:     "business",
		Priority: []string{"professional", "polished", "structured"},
		Allowed:  []string{"blazer", "dress shirt", "shirt", "blouse", "trousers", "slacks", "suit", "pencil skirt", "oxford", "loafer", "derby", "heel", "pump", "watch", "belt", "tie"},
		Excluded: []string{"sneaker", "hoodie", "shorts", "flip flop", "tank top", "graphic tee", "sweatpants", "crop top", "distressed"},
		Keywords: []string{"business", "meeting", "office", "work", "interview", "presentation", "corporate", "professional"},
	},
	{
		Name:     "formal",
		Priority: []string{"elegant", "refined", "tailored"},
		Allowed:  []string{"suit", "tuxedo", "gown", "dress", "dress shirt", "blazer", "oxford", "heel", "pump", "clutch", "cufflink"},
		Excluded: []string{"sneaker", "hoodie", "shorts", "jeans", "flip flop", "tank top", "graphic tee", "sweatpants"},
		Keywords: []string{"formal", "gala", "wedding", "black tie", "ceremony", "cocktail"},
	},
	{
		Name:     "athletic",
		Priority: []string{"functional", "breathable", "flexible"},
		Allowed:  []string{"sneaker", "legging", "shorts", "tank top", "sports bra", "track", "hoodie", "joggers", "running", "cap"},
		Excluded: []string{"heel", "blazer", "dress shirt", "suit", "oxford", "loafer", "gown", "pencil skirt"},
		Keywords: []string{"gym", "workout", "running", "athletic", "sport", "training", "yoga", "hike"},
	},
	{
		Name:     "date",
		Priority: []string{"flattering", "charming", "put-together"},
		Allowed:  []string{"dress", "blouse", "shirt", "jeans", "skirt", "heel", "boot", "loafer", "blazer", "jacket"},
		Excluded: []string{"sweatpants", "flip flop", "sports bra", "track"},
		Keywords: []string{"date", "dinner", "romantic", "anniversary", "night out"},
	},
	{
		Name:     "streetwear",
		Priority: []string{"bold", "relaxed", "expressive"},
		Allowed:  []string{"sneaker", "hoodie", "graphic tee", "jeans", "cargo", "bomber", "cap", "beanie", "oversized"},
		Excluded: []string{"suit", "tuxedo", "gown", "pencil skirt", "oxford", "pump"},
		Keywords: []string{"streetwear", "street", "urban", "skate", "hype"},
	},
	{
		Name:     "summer",
		Priority: []string{"light", "airy", "sun-ready"},
		Allowed:  []string{"shorts", "sundress", "dress", "sandal", "linen", "tank top", "t-shirt", "hat", "skirt"},
		Excluded: []string{"coat", "parka", "wool", "boot", "sweater", "turtleneck"},
		Keywords: []string{"summer", "beach", "vacation", "hot weather", "picnic", "pool"},
	},
	{
		Name:     "casual",
		Priority: []string{"comfortable", "easy", "everyday"},
		Allowed:  []string{"jeans", "t-shirt", "shirt", "sneaker", "hoodie", "sweater", "jacket", "shorts", "boot", "dress"},
		Excluded: []string{"tuxedo", "gown", "cufflink"},
		Keywords: []string{"casual", "weekend", "everyday", "relaxed", "brunch", "errand"},
	},
}

// DetectStyleContext scans the prompt for context keywords in a fixed
// priority order. No AI involved, deterministic. Defaults to casual.
func DetectStyleContext(prompt string) StyleContext {
	lowered := strings.ToLower(prompt)
	for _, ctx := range styleContexts {
		for _, keyword := range ctx.Keywords {
			if strings.Contains(lowered, keyword) {
				return ctx
			}
		}
	}
	return styleContexts[len(styleContexts)-1]
}

// StyleContextByName returns the named context, falling back to casual.
func StyleContextByName(name string) StyleContext {
	for _, ctx := range styleContexts {
		if ctx.Name == name {
			return ctx
		}
	}
	return styleContexts[len(styleContexts)-1]
}
