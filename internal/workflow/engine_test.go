package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState() *State {
	return New(ParsedIntent{
		Category:     "tube squeezer",
		Dimensions:   map[string]string{"primary": "35mm"},
		SizeCategory: "medium",
	})
}

func TestApproveRequirementsAppliesFitAndStrengthAnswers(t *testing.T) {
	s := newTestState()
	eng := NewEngine()

	cp, err := eng.Approve(s, map[string]interface{}{
		"fit_type":       "snug",
		"strength_level": "heavy",
	})
	require.NoError(t, err)
	assert.Equal(t, StageDesignReview, cp.Stage)
	assert.Equal(t, 0.3, s.Design.ClearanceMM)
	assert.Equal(t, 3.0, s.Design.WallThicknessMM)
	assert.Equal(t, CheckpointApproved, s.Checkpoints[0].Status)
}

func TestApproveDesignReviewFlagsCriticalWallThickness(t *testing.T) {
	s := newTestState()
	eng := NewEngine()

	_, err := eng.Approve(s, map[string]interface{}{"wall_thickness_mm": 0.3})
	require.NoError(t, err)

	cp, _ := s.CurrentCheckpoint()
	assert.Equal(t, StageDesignReview, cp.Stage)
	assert.False(t, cp.AutoApprovable)
	assert.NotEmpty(t, cp.Warnings)
}

func TestApproveDesignReviewAutoApprovableWithoutCriticalSuggestion(t *testing.T) {
	s := newTestState()
	eng := NewEngine()

	_, err := eng.Approve(s, map[string]interface{}{"wall_thickness_mm": 2.0, "clearance_mm": 0.3})
	require.NoError(t, err)

	cp, _ := s.CurrentCheckpoint()
	assert.True(t, cp.AutoApprovable)
}

func TestApproveMaterialCarriesFlexWarningForward(t *testing.T) {
	s := newTestState()
	s.Intent.NeedsFlex = true
	eng := NewEngine()

	_, err := eng.Approve(s, nil)
	require.NoError(t, err)
	cp, err := eng.Approve(s, nil)
	require.NoError(t, err)

	assert.Equal(t, StageMaterial, cp.Stage)
	assert.Contains(t, cp.Warnings[0], "TPU")
}

func TestApproveNozzleRecommendsHardenedForAbrasive(t *testing.T) {
	s := newTestState()
	s.Intent.Abrasive = true
	eng := NewEngine()

	for i := 0; i < 2; i++ {
		_, err := eng.Approve(s, nil)
		require.NoError(t, err)
	}
	cp, err := eng.Approve(s, map[string]interface{}{"material": "generic_petg_cf"})
	require.NoError(t, err)

	assert.Equal(t, StageNozzle, cp.Stage)
	assert.True(t, cp.AutoApprovable)
	assert.Contains(t, cp.Description, "hardened nozzle")
}

func TestApproveSlicingReviewWarnsOnNonSwapperFeedMaterial(t *testing.T) {
	s := newTestState()
	s.Material = "generic_tpu_95a"
	eng := NewEngine()

	for i := 0; i < 3; i++ {
		_, err := eng.Approve(s, nil)
		require.NoError(t, err)
	}
	cp, err := eng.Approve(s, map[string]interface{}{"nozzle": 0.4})
	require.NoError(t, err)

	assert.Equal(t, StageSlicingReview, cp.Stage)
	assert.Condition(t, func() bool {
		for _, w := range cp.Warnings {
			if w == "generic_tpu_95a must be fed directly, not through a spool swapper" {
				return true
			}
		}
		return false
	})
}

func TestApproveFinalReviewAssemblesFunctionalRecipe(t *testing.T) {
	s := newTestState()
	s.Material = "bambu_petg_translucent"
	s.NozzleDiameterMM = 0.4
	eng := NewEngine()

	for i := 0; i < 4; i++ {
		_, err := eng.Approve(s, nil)
		require.NoError(t, err)
	}
	cp, err := eng.Approve(s, map[string]interface{}{"quality": "standard", "use_case": "functional"})
	require.NoError(t, err)

	assert.Equal(t, StageFinalReview, cp.Stage)
	assert.Equal(t, 0.20, s.Slicing.LayerHeight)
	assert.Equal(t, 25.0, s.Slicing.InfillDensity)
	assert.Equal(t, "gyroid", s.Slicing.InfillPattern)
	assert.GreaterOrEqual(t, s.Slicing.WallLoops, 4)
}

func TestApproveFinalStageCompletesWorkflow(t *testing.T) {
	s := newTestState()
	eng := NewEngine()

	for i := 0; i < 5; i++ {
		_, err := eng.Approve(s, nil)
		require.NoError(t, err)
	}
	cp, err := eng.Approve(s, nil)
	require.NoError(t, err)

	assert.Equal(t, StageReady, s.CurrentStage)
	assert.True(t, s.IsComplete)
	assert.Equal(t, StageFinalReview, cp.Stage)
}

func TestApproveWithNoCurrentCheckpointFails(t *testing.T) {
	s := newTestState()
	s.Checkpoints[0].Status = CheckpointApproved
	eng := NewEngine()

	_, err := eng.Approve(s, nil)
	assert.Error(t, err)
}

func TestAssembleSlicingParamsDraftPrototypeCapsInfillAndWalls(t *testing.T) {
	params := assembleSlicingParams(QualityDraft, UseCasePrototype, "bambu_pla_basic", 0.4)
	assert.Equal(t, 2, params.WallLoops)
	assert.LessOrEqual(t, params.InfillDensity, 10.0)
}

func TestAssembleSlicingParamsWarpProneMaterialWidensBrim(t *testing.T) {
	params := assembleSlicingParams(QualityStandard, UseCaseFunctional, "prusa_pc_blend", 0.4)
	assert.Equal(t, 8.0, params.BrimWidth)
}

func TestRoundToStepSnapsToNearestIncrement(t *testing.T) {
	assert.Equal(t, 0.20, roundToStep(0.198, 0.04))
	assert.Equal(t, 0.28, roundToStep(0.27, 0.04))
}
