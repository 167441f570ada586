package predictor

import (
	"context"
	"testing"

	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	"github.com/stretchr/testify/require"
)

type staticModel struct{ forest *Forest }

func (s staticModel) Current() *Forest { return s.forest }

func TestEngineUsesModel(t *testing.T) {
	e := NewEngine(staticModel{forest: testForest("rf-1")}, nil)

	est := e.Estimate(context.Background(), vectorWithAvg(15, false))
	require.Equal(t, SourceModel, est.Source)
	require.Equal(t, "rf-1", est.ModelVersion)
	require.Equal(t, 21, est.Quantity)
	require.InDelta(t, 1-1.0/21, est.Score, 1e-9)
	require.Equal(t, enums.ConfidenceLevelHigh, est.Level)
}

func TestEngineHalvesLowConfidenceScore(t *testing.T) {
	e := NewEngine(staticModel{forest: testForest("rf-1")}, nil)

	est := e.Estimate(context.Background(), vectorWithAvg(15, true))
	require.InDelta(t, (1-1.0/21)/2, est.Score, 1e-9)
	require.Equal(t, enums.ConfidenceLevelMedium, est.Level)
}

func TestEngineFallsBackWithoutModel(t *testing.T) {
	for name, e := range map[string]*Engine{
		"nil source": NewEngine(nil, nil),
		"no model":   NewEngine(staticModel{}, nil),
		"mismatch": NewEngine(staticModel{forest: func() *Forest {
			f := testForest("rf-old")
			f.SchemaVersion = "v0"
			return f
		}()}, nil),
	} {
		t.Run(name, func(t *testing.T) {
			est := e.Estimate(context.Background(), vectorWithAvg(15, false))
			require.Equal(t, SourceHeuristic, est.Source)
			require.Equal(t, "heuristic", est.ModelVersion)
			require.Equal(t, 15, est.Quantity)
			require.Equal(t, 0.5, est.Score)
			require.Equal(t, enums.ConfidenceLevelMedium, est.Level)
		})
	}
}

func TestHeuristicFallsBackTo90DayAverage(t *testing.T) {
	vec := vectorWithAvg(0, true)
	vec.Values[4] = 7.6
	require.Equal(t, 8, Heuristic(vec).Quantity)

	vec.Values[4] = 0
	require.Equal(t, 0, Heuristic(vec).Quantity)

	vec = vectorWithAvg(14.5, false)
	require.Equal(t, 15, Heuristic(vec).Quantity)
}

func TestEngineFallsBackOnOutOfRangePrediction(t *testing.T) {
	// loaded without Validate, so the oversized leaf reaches Predict
	f := testForest("rf-huge")
	f.Trees = []Tree{splitTree(10, 1e20, 1e20)}
	e := NewEngine(staticModel{forest: f}, nil)

	est := e.Estimate(context.Background(), vectorWithAvg(15, false))
	require.Equal(t, SourceHeuristic, est.Source)
	require.Equal(t, 15, est.Quantity)
}

func TestHeuristicCapsQuantity(t *testing.T) {
	est := Heuristic(vectorWithAvg(1e20, false))
	require.Equal(t, MaxQuantity, est.Quantity)
}
