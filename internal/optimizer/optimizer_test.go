package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizeClampsTemperatureIntoRange(t *testing.T) {
	in := Params{NozzleTemp: 999, NozzleTempSet: true, BedTemp: 999, BedTempSet: true}
	res, err := Optimize(in, "bambu_pla_basic", 0.4, 22)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Params.NozzleTemp, 230.0)
	assert.LessOrEqual(t, res.Params.BedTemp, 65.0)
}

func TestOptimizeUnknownMaterial(t *testing.T) {
	_, err := Optimize(Params{}, "does not exist", 0.4, 22)
	assert.Error(t, err)
}

func TestOptimizeReducesOuterSpeedForVolumetricFlow(t *testing.T) {
	in := Params{LayerHeight: 0.3, LineWidth: 0.6, OuterWallSpeed: 200}
	res, err := Optimize(in, "bambu_pla_basic", 0.4, 22)
	require.NoError(t, err)
	flow := res.Params.LayerHeight * res.Params.LineWidth * res.Params.OuterWallSpeed
	assert.LessOrEqual(t, flow, 15.0)
}

func TestOptimizeFlexibleCapsRetraction(t *testing.T) {
	in := Params{RetractionLength: 1.5, RetractionSpeed: 20}
	res, err := Optimize(in, "generic_tpu_95a", 0.4, 22)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Params.RetractionLength, 0.5)
}

func TestOptimizeWarpProneAddsBrimAndWarning(t *testing.T) {
	in := Params{BrimWidth: 0, LayerHeight: 0.2}
	res, err := Optimize(in, "prusa_pc_blend", 0.4, 22)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Params.BrimWidth, 10.0)
	assert.NotEmpty(t, res.Warnings)
	assert.True(t, res.Params.EnableDraftShield)
}

func TestOptimizeColdAmbientRaisesBedTemp(t *testing.T) {
	in := Params{BedTemp: 55, BedTempSet: true}
	res, err := Optimize(in, "bambu_pla_basic", 0.4, 10)
	require.NoError(t, err)
	assert.Greater(t, res.Params.BedTemp, 55.0)
}

func TestOptimizeColdRoomPCBedBumpMatchesScenario(t *testing.T) {
	in := Params{BedTemp: 100, BedTempSet: true}
	res, err := Optimize(in, "prusa_pc_blend", 0.4, 15)
	require.NoError(t, err)
	assert.Equal(t, 105.0, res.Params.BedTemp)
	assert.True(t, res.Params.EnableDraftShield)
	assert.NotEmpty(t, res.Warnings)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	in := Params{LayerHeight: 0.2, LineWidth: 0.45, BrimWidth: 0}
	first, err := Optimize(in, "prusa_pc_blend", 0.4, 10)
	require.NoError(t, err)

	second, err := Optimize(first.Params, "prusa_pc_blend", 0.4, 10)
	require.NoError(t, err)

	assert.Empty(t, second.Changes)
	assert.Equal(t, first.Params, second.Params)
}

func TestOptimizePETGEnablesZHop(t *testing.T) {
	res, err := Optimize(Params{}, "generic_petg", 0.4, 22)
	require.NoError(t, err)
	assert.True(t, res.Params.ZHopEnabled)
	assert.Equal(t, 0.4, res.Params.ZHopHeight)
}
