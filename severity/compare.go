package severity

import "civic-reports-service/models"

// Comparison is the verdict of cross-checking the predicted severity against
// the reporter's self-declared one.
type Comparison struct {
	AIVerified    bool
	FinalSeverity string
	Confidence    float64
	Warning       string
}

var severityRank = map[string]int{
	models.SeverityLow:    1,
	models.SeverityMedium: 2,
	models.SeverityHigh:   3,
}

// Rank returns the numeric rank of a severity level, 0 for unknown input.
func Rank(severity string) int {
	return severityRank[severity]
}

// CompareSeverities cross-checks the predicted severity against the
// user-declared one. When the reporter under-states the predicted severity the
// report is flagged unverified and escalated to the predicted value with a
// warning. In all cases the final severity is the predicted value; only the
// verification flag differs.
func CompareSeverities(predicted, declared string, confidence float64) Comparison {
	if Rank(predicted) > Rank(declared) {
		return Comparison{
			AIVerified:    false,
			FinalSeverity: predicted,
			Confidence:    confidence,
			Warning: "Declared severity is lower than the predicted severity; " +
				"manual review recommended.",
		}
	}
	return Comparison{
		AIVerified:    true,
		FinalSeverity: predicted,
		Confidence:    confidence,
	}
}
