package feedback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeVariance(t *testing.T) {
	cases := []struct {
		name        string
		recommended int
		sold        int
		want        Variance
	}{
		{"under within band", 18, 16, Variance{Units: -2, Percentage: -11.11, WasAccurate: true}},
		{"over outside band", 10, 15, Variance{Units: 5, Percentage: 50, WasAccurate: false}},
		{"exactly +20%", 10, 12, Variance{Units: 2, Percentage: 20, WasAccurate: true}},
		{"exactly -20%", 10, 8, Variance{Units: -2, Percentage: -20, WasAccurate: true}},
		{"just outside", 15, 11, Variance{Units: -4, Percentage: -26.67, WasAccurate: false}},
		{"zero recommended", 0, 7, Variance{Units: 7, Percentage: 0, WasAccurate: true}},
		{"perfect", 9, 9, Variance{Units: 0, Percentage: 0, WasAccurate: true}},
		{"rounds to band but outside it", 100001, 120002, Variance{Units: 20001, Percentage: 20, WasAccurate: false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ComputeVariance(tc.recommended, tc.sold))
		})
	}
}
