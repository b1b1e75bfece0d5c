package severity

import (
	"testing"

	"civic-reports-service/models"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name        string
		title       string
		description string
		category    string

		wantSeverity   string
		wantConfidence float64
	}{
		{
			name:           "High keyword wins",
			title:          "Gas leak near the market",
			description:    "Strong smell of gas on the corner",
			category:       "utilities",
			wantSeverity:   models.SeverityHigh,
			wantConfidence: 0.85,
		},
		{
			name:           "Medium keyword",
			title:          "Huge pothole",
			description:    "Deep pothole in the middle of the lane",
			category:       "infrastructure",
			wantSeverity:   models.SeverityMedium,
			wantConfidence: 0.60,
		},
		{
			name:           "Low keyword",
			title:          "Graffiti on the wall",
			description:    "Someone sprayed graffiti on the community center",
			category:       "sanitation",
			wantSeverity:   models.SeverityLow,
			wantConfidence: 0.40,
		},
		{
			name:           "No keywords defaults to low",
			title:          "Something odd",
			description:    "Not sure what this is",
			category:       "other",
			wantSeverity:   models.SeverityLow,
			wantConfidence: 0.40,
		},
		{
			name:           "High outranks medium when both match",
			title:          "Dangerous pothole",
			description:    "A pothole that is genuinely dangerous",
			category:       "infrastructure",
			wantSeverity:   models.SeverityHigh,
			wantConfidence: 0.85,
		},
		{
			name:           "Road category boosts confidence",
			title:          "Huge pothole",
			description:    "Deep pothole in the middle of the lane",
			category:       "road",
			wantSeverity:   models.SeverityMedium,
			wantConfidence: 0.70,
		},
		{
			name:           "Safety category forces high",
			title:          "Streetlight broken",
			description:    "Broken streetlight near the school",
			category:       "safety",
			wantSeverity:   models.SeverityHigh,
			wantConfidence: 0.80,
		},
		{
			name:           "Confidence caps at one",
			title:          "Fire at the depot",
			description:    "Fire spreading across the yard",
			category:       "fire safety",
			wantSeverity:   models.SeverityHigh,
			wantConfidence: 1.0,
		},
	}

	for _, testCase := range testCases {
		got := Classify(testCase.title, testCase.description, testCase.category)
		if got.Severity != testCase.wantSeverity {
			t.Errorf("%s: severity = %q, want %q", testCase.name, got.Severity, testCase.wantSeverity)
		}
		if got.Confidence != testCase.wantConfidence {
			t.Errorf("%s: confidence = %v, want %v", testCase.name, got.Confidence, testCase.wantConfidence)
		}
	}
}

func TestClassifyMatchedKeywords(t *testing.T) {
	got := Classify("Gas leak and flooding", "Water everywhere", "utilities")
	if got.Severity != models.SeverityHigh {
		t.Fatalf("severity = %q, want %q", got.Severity, models.SeverityHigh)
	}
	if len(got.MatchedKeywords) < 2 {
		t.Errorf("matched keywords = %v, want at least gas leak and flooding", got.MatchedKeywords)
	}
}
