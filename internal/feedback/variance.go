package feedback

import "math"

// AccuracyBand is the |variance %| a recommendation may miss by and still count
// as accurate.
const AccuracyBand = 20

// Variance holds the derived accuracy fields for one feedback row.
type Variance struct {
	Units       int
	Percentage  float64
	WasAccurate bool
}

// ComputeVariance compares sold against recommended. A zero recommendation has
// a 0% variance by convention and is treated as accurate.
//
// WasAccurate uses the exact ratio, Percentage is rounded to 2 places for
// display. At large quantities the two can disagree: 20001/100001 stores 20.00
// but is not accurate.
func ComputeVariance(recommended, sold int) Variance {
	units := sold - recommended
	if recommended <= 0 {
		return Variance{Units: units, Percentage: 0, WasAccurate: true}
	}
	pct := float64(units) / float64(recommended) * 100
	return Variance{
		Units:      units,
		Percentage: math.Round(pct*100) / 100,
		// |units/recommended| <= 0.2 without float rounding at the boundary
		WasAccurate: abs(units)*100 <= AccuracyBand*recommended,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
