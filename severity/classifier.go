package severity

import (
	"strings"

	"civic-reports-service/models"
)

// Base confidences per severity tier. Tiers are scanned in a fixed priority
// order, High before Medium before Low, so ties resolve deterministically.
const (
	highConfidence   = 0.85
	mediumConfidence = 0.60
	lowConfidence    = 0.40

	roadCategoryBoost   = 0.10
	safetyCategoryBoost = 0.20
)

type keywordSet struct {
	severity   string
	confidence float64
	keywords   []string
}

// Scan order is the tie-break order.
var keywordSets = []keywordSet{
	{
		severity:   models.SeverityHigh,
		confidence: highConfidence,
		keywords: []string{
			"fire", "explosion", "collapse", "collapsed", "electrocution",
			"live wire", "gas leak", "sewage overflow", "flooding", "flood",
			"sinkhole", "accident", "injury", "injured", "death", "dangerous",
			"hazard", "toxic", "open manhole", "landslide",
		},
	},
	{
		severity:   models.SeverityMedium,
		confidence: mediumConfidence,
		keywords: []string{
			"pothole", "broken", "leaking", "leakage", "blocked drain",
			"streetlight", "street light", "garbage pile", "overflowing bin",
			"damaged", "cracked", "stray", "waterlogging", "no water",
			"power cut", "outage",
		},
	},
	{
		severity:   models.SeverityLow,
		confidence: lowConfidence,
		keywords: []string{
			"litter", "graffiti", "faded", "overgrown", "weeds", "dust",
			"noise", "smell", "minor", "paint", "sign", "bench",
		},
	},
}

var roadCategories = []string{"road", "transport", "traffic", "highway", "street"}

var safetyCategories = []string{"safety", "hazard", "emergency", "fire", "electrical"}

// Classify predicts a severity level from title, description and category
// text using keyword heuristics. The result is always one of the three
// levels; no keyword match defaults to Low.
func Classify(title, description, category string) models.SeverityCheck {
	text := strings.ToLower(title + " " + description + " " + category)

	result := models.SeverityCheck{
		Severity:   models.SeverityLow,
		Confidence: lowConfidence,
	}
	for _, set := range keywordSets {
		var matched []string
		for _, kw := range set.keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > 0 {
			result.Severity = set.severity
			result.Confidence = set.confidence
			result.MatchedKeywords = matched
			break
		}
	}

	cat := strings.ToLower(category)
	for _, rc := range roadCategories {
		if strings.Contains(cat, rc) {
			result.Confidence += roadCategoryBoost
			break
		}
	}
	for _, sc := range safetyCategories {
		if strings.Contains(cat, sc) {
			result.Severity = models.SeverityHigh
			result.Confidence += safetyCategoryBoost
			break
		}
	}
	if result.Confidence > 1.0 {
		result.Confidence = 1.0
	}

	return result
}
