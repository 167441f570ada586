package enums

// ConfidenceLevel buckets a continuous confidence score.
type ConfidenceLevel string

const (
	ConfidenceLevelLow    ConfidenceLevel = "low"
	ConfidenceLevelMedium ConfidenceLevel = "medium"
	ConfidenceLevelHigh   ConfidenceLevel = "high"
)

const (
	HighConfidenceThreshold   = 0.7
	MediumConfidenceThreshold = 0.4
)

// ConfidenceLevelFor maps a score to its bucket. Thresholds are inclusive.
func ConfidenceLevelFor(score float64) ConfidenceLevel {
	switch {
	case score >= HighConfidenceThreshold:
		return ConfidenceLevelHigh
	case score >= MediumConfidenceThreshold:
		return ConfidenceLevelMedium
	default:
		return ConfidenceLevelLow
	}
}

// String implements fmt.Stringer.
func (l ConfidenceLevel) String() string {
	return string(l)
}

// IsValid reports whether the value is a known ConfidenceLevel.
func (l ConfidenceLevel) IsValid() bool {
	switch l {
	case ConfidenceLevelLow, ConfidenceLevelMedium, ConfidenceLevelHigh:
		return true
	}
	return false
}
