package predictor

import (
	"context"
	"fmt"
	"math"

	"github.com/angelmondragon/marketprep-backend/internal/features"
	"github.com/angelmondragon/marketprep-backend/pkg/enums"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

const (
	SourceModel     = "model"
	SourceHeuristic = "heuristic"

	// HeuristicVersion is stored as model_version on heuristic rows.
	HeuristicVersion = SourceHeuristic
	heuristicScore   = 0.5
)

// ModelSource hands out the currently active model, if any.
type ModelSource interface {
	Current() *Forest
}

// Estimate is the quantity and confidence for one feature vector.
type Estimate struct {
	Quantity     int
	Score        float64
	Level        enums.ConfidenceLevel
	Source       string
	ModelVersion string
}

// Engine picks between the trained model and the history heuristic.
type Engine struct {
	models ModelSource
	logg   *logger.Logger
}

// NewEngine accepts a nil model source; every estimate is then heuristic.
func NewEngine(models ModelSource, logg *logger.Logger) *Engine {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Engine{models: models, logg: logg}
}

// Estimate never fails: a missing, mismatched or erroring model falls back to
// the heuristic.
func (e *Engine) Estimate(ctx context.Context, vec features.Vector) Estimate {
	var forest *Forest
	if e != nil && e.models != nil {
		forest = e.models.Current()
	}
	if forest != nil && forest.SchemaVersion == vec.SchemaVersion {
		pred, err := forest.Predict(vec.Values)
		if err == nil && (math.IsNaN(pred.Mean) || pred.Mean > MaxQuantity) {
			err = fmt.Errorf("prediction %v outside [0, %d]", pred.Mean, MaxQuantity)
		}
		if err == nil {
			score := pred.Confidence()
			if vec.LowConfidence {
				score /= 2
			}
			return Estimate{
				Quantity:     int(math.Round(pred.Mean)),
				Score:        score,
				Level:        enums.ConfidenceLevelFor(score),
				Source:       SourceModel,
				ModelVersion: forest.ModelVersion,
			}
		}
		e.logg.Warn(e.logg.WithField(ctx, "model_version", forest.ModelVersion), "model prediction failed, using heuristic: "+err.Error())
	}
	return Heuristic(vec)
}

// Heuristic recommends the rounded 30 day average, then the 90 day average.
func Heuristic(vec features.Vector) Estimate {
	avg := vec.Get(features.HistoricalAvgQty30d)
	if math.Round(avg) <= 0 {
		avg = vec.Get(features.HistoricalAvgQty90d)
	}
	return Estimate{
		Quantity:     int(math.Min(math.Max(math.Round(avg), 0), MaxQuantity)),
		Score:        heuristicScore,
		Level:        enums.ConfidenceLevelFor(heuristicScore),
		Source:       SourceHeuristic,
		ModelVersion: HeuristicVersion,
	}
}
