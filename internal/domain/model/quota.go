package model

import "math"

// QuotaEvaluation is derived on demand and never stored.
type QuotaEvaluation struct {
	Limit       Limit `json:"limit"`
	Used        int64 `json:"used"`
	Remaining   Limit `json:"remaining"`
	Exceeded    bool  `json:"exceeded"`
	IsUnlimited bool  `json:"isUnlimited"`
}

// UpgradeAdvice is the user-facing prompt shown instead of a hard error.
type UpgradeAdvice struct {
	NextPlan  *PlanID `json:"nextPlan"`
	NeededNow bool    `json:"neededNow"`
	Message   string  `json:"message"`
}

// NormalizeUsage maps transport numbers onto a usage count.
// NaN, infinities and negatives become 0; fractions are truncated.
func NormalizeUsage(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
