package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

const (
	leaf = -1

	// MaxQuantity bounds leaf outputs and recommended quantities.
	MaxQuantity = 100000
)

// Tree is one regression tree in sklearn's flat array layout. Node 0 is the
// root; a node whose ChildrenLeft is -1 is a leaf and Value holds its output.
type Tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`
}

// Forest is a trained random-forest artifact.
type Forest struct {
	ModelVersion  string   `json:"model_version"`
	SchemaVersion string   `json:"schema_version"`
	FeatureNames  []string `json:"feature_names"`
	Trees         []Tree   `json:"trees"`
}

// Prediction is the ensemble output for one vector.
type Prediction struct {
	Mean  float64
	Std   float64
	Trees int
}

// ParseForest decodes an artifact without validating it.
func ParseForest(raw []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	return &f, nil
}

// Validate checks the artifact against the feature names of its schema.
func (f *Forest) Validate(schemaVersion string, featureNames []string) error {
	if f == nil {
		return errors.New("model is nil")
	}
	if f.ModelVersion == "" {
		return errors.New("model_version is required")
	}
	if f.SchemaVersion != schemaVersion {
		return fmt.Errorf("schema_version %q does not match %q", f.SchemaVersion, schemaVersion)
	}
	if !slices.Equal(f.FeatureNames, featureNames) {
		return fmt.Errorf("feature_names do not match schema %s", schemaVersion)
	}
	if len(f.Trees) == 0 {
		return errors.New("model has no trees")
	}
	for i, t := range f.Trees {
		if err := t.validate(len(featureNames)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t Tree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		left, right := t.ChildrenLeft[i], t.ChildrenRight[i]
		if left == leaf {
			if right != leaf {
				return fmt.Errorf("node %d has one child", i)
			}
			if v := t.Value[i]; math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > MaxQuantity {
				return fmt.Errorf("node %d has leaf value %v outside ±%d", i, v, MaxQuantity)
			}
			continue
		}
		if left <= i || left >= n || right <= i || right >= n {
			return fmt.Errorf("node %d has child out of range", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d", i, t.Feature[i])
		}
	}
	return nil
}

// Predict runs every tree. The mean is clamped at zero.
func (f *Forest) Predict(values []float64) (Prediction, error) {
	if f == nil || len(f.Trees) == 0 {
		return Prediction{}, errors.New("model is not loaded")
	}
	if len(values) != len(f.FeatureNames) {
		return Prediction{}, fmt.Errorf("expected %d features, got %d", len(f.FeatureNames), len(values))
	}

	outputs := make([]float64, len(f.Trees))
	for i, t := range f.Trees {
		outputs[i] = t.predict(values)
	}

	var sum float64
	for _, v := range outputs {
		sum += v
	}
	mean := sum / float64(len(outputs))

	var sq float64
	for _, v := range outputs {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(len(outputs)))

	return Prediction{Mean: math.Max(mean, 0), Std: std, Trees: len(outputs)}, nil
}

// predict walks a validated tree; children always have higher indexes, so the
// walk terminates.
func (t Tree) predict(x []float64) float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// Confidence maps ensemble spread to [0,1]: 1 - std/max(mean,1).
func (p Prediction) Confidence() float64 {
	score := 1 - p.Std/math.Max(p.Mean, 1)
	return math.Min(math.Max(score, 0), 1)
}
