package recommender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendLayerShiftAdjustsThreeParams(t *testing.T) {
	recs := Recommend(CurrentParams{"outer_wall_speed": 80}, []DefectKind{DefectLayerShift}, nil)
	require.Len(t, recs, 3)
	for _, r := range recs {
		assert.Equal(t, 1, r.Priority)
	}
}

func TestRecommendClampsToLimits(t *testing.T) {
	recs := Recommend(CurrentParams{"retraction_length": 4.9}, []DefectKind{DefectStringing}, nil)
	var found bool
	for _, r := range recs {
		if r.Parameter == "retraction_length" {
			found = true
			assert.LessOrEqual(t, r.Suggested, 5.0)
		}
	}
	assert.True(t, found)
}

func TestRecommendDedupesAcrossDefects(t *testing.T) {
	recs := Recommend(CurrentParams{}, []DefectKind{DefectLayerShift, DefectBlob}, nil)
	seen := make(map[string]int)
	for _, r := range recs {
		seen[r.Parameter]++
	}
	for param, count := range seen {
		assert.Equal(t, 1, count, "parameter %s recommended more than once", param)
	}
}

func TestRecommendSortedByPriorityThenConfidence(t *testing.T) {
	recs := Recommend(CurrentParams{}, []DefectKind{DefectBlob, DefectSpaghetti, DefectStringing}, nil)
	for i := 1; i < len(recs); i++ {
		assert.LessOrEqual(t, recs[i-1].Priority, recs[i].Priority)
		if recs[i-1].Priority == recs[i].Priority {
			assert.GreaterOrEqual(t, recs[i-1].Confidence, recs[i].Confidence)
		}
	}
}

func TestRecommendLearnsFromHistory(t *testing.T) {
	history := []IterationSummary{
		{Status: "completed", Quality: 90, LayerHeight: 0.16, WallLoops: 4, InfillDensity: 20, OuterWallSpeed: 40},
		{Status: "completed", Quality: 60, LayerHeight: 0.28, WallLoops: 2, InfillDensity: 10, OuterWallSpeed: 80},
	}
	recs := Recommend(CurrentParams{"layer_height": 0.24}, nil, history)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.Equal(t, 3, r.Priority)
		assert.Equal(t, 0.5, r.Confidence)
	}
}

func TestRecommendHistoryIgnoredBelowQualityThreshold(t *testing.T) {
	history := []IterationSummary{
		{Status: "completed", Quality: 70, LayerHeight: 0.3},
	}
	recs := Recommend(CurrentParams{"layer_height": 0.2}, nil, history)
	assert.Empty(t, recs)
}

func TestRecommendDedupeFavorsDefectTableOverHistory(t *testing.T) {
	history := []IterationSummary{
		{Status: "completed", Quality: 95, OuterWallSpeed: 200},
	}
	recs := Recommend(CurrentParams{"outer_wall_speed": 80}, []DefectKind{DefectLayerShift}, history)
	count := 0
	for _, r := range recs {
		if r.Parameter == "outer_wall_speed" {
			count++
			assert.Equal(t, 1, r.Priority)
		}
	}
	assert.Equal(t, 1, count)
}
