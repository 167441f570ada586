package predictor

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/marketprep-backend/internal/features"
)

// splitTree branches on the 30 day average: <= threshold goes left.
func splitTree(threshold, left, right float64) Tree {
	return Tree{
		ChildrenLeft:  []int{1, leaf, leaf},
		ChildrenRight: []int{2, leaf, leaf},
		Feature:       []int{3, -2, -2},
		Threshold:     []float64{threshold, -2, -2},
		Value:         []float64{0, left, right},
	}
}

func testForest(version string) *Forest {
	return &Forest{
		ModelVersion:  version,
		SchemaVersion: features.SchemaVersion,
		FeatureNames:  features.Names(),
		Trees: []Tree{
			splitTree(10, 5, 20),
			splitTree(10, 7, 22),
		},
	}
}

func mustMarshal(t *testing.T, f *Forest) []byte {
	t.Helper()
	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal forest: %v", err)
	}
	return raw
}

func vectorWithAvg(avg30 float64, low bool) features.Vector {
	values := make([]float64, len(features.Names()))
	values[3] = avg30
	return features.Vector{SchemaVersion: features.SchemaVersion, Values: values, LowConfidence: low}
}
