package market

import (
	"regexp"
	"strings"
)

// "б/к" (tubeless) is stripped before the separators so it does not leave
// "бк" behind. "др" (short for "другое") is stripped after them, so it also
// matches across removed separators.
var separatorReplacer = strings.NewReplacer(
	" ", "",
	"-", "",
	"/", "",
)

// Normalize builds the estimate cache key for a product name.
func Normalize(name string) string {
	key := strings.ReplaceAll(strings.ToLower(name), "б/к", "")
	key = separatorReplacer.Replace(key)
	return strings.ReplaceAll(key, "др", "")
}

var tireKeywords = []string{
	"r1", "r2", "шина", "шины", "колеса", "диск",
	"michelin", "pirelli", "continental", "nokian", "goodyear", "yokohama",
	"/",
	"r13", "r14", "r15", "r16", "r17", "r18", "r19", "r20", "r21", "r22",
}

var tireBrands = []string{
	"Michelin", "Pirelli", "Continental", "Nokian", "Goodyear", "Yokohama",
	"Bridgestone", "Dunlop", "Hankook", "Toyo", "Cordiant",
}

var premiumBrands = map[string]bool{
	"Michelin":    true,
	"Pirelli":     true,
	"Continental": true,
}

var tireSizePattern = regexp.MustCompile(`\d+/\d+R\d+`)

// Classification describes what the estimator could infer from a product name.
type Classification struct {
	Tire  bool
	Brand string
	Size  string
}

func (c Classification) Premium() bool {
	return premiumBrands[c.Brand]
}

// Classify detects tire and wheel products by keyword and, for tires, the
// brand and size designation.
func Classify(name string) Classification {
	lower := strings.ToLower(name)

	var c Classification
	for _, keyword := range tireKeywords {
		if strings.Contains(lower, keyword) {
			c.Tire = true
			break
		}
	}
	if !c.Tire {
		return c
	}

	c.Size = tireSizePattern.FindString(name)
	for _, brand := range tireBrands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			c.Brand = brand
			break
		}
	}
	return c
}
