package dimension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBareNumberDefaultsToMM(t *testing.T) {
	m, err := Parse("25")
	require.NoError(t, err)
	assert.Equal(t, UnitMM, m.Unit)
	assert.Equal(t, 25.0, m.Value)
}

func TestParseMillimeters(t *testing.T) {
	m, err := Parse("25mm")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, m.MM(), 1e-9)
}

func TestParseInches(t *testing.T) {
	m, err := Parse("1.5 inches")
	require.NoError(t, err)
	assert.InDelta(t, 1.5*mmPerInch, m.MM(), 1e-9)
}

func TestParseInchMark(t *testing.T) {
	m, err := Parse(`2"`)
	require.NoError(t, err)
	assert.InDelta(t, 2*mmPerInch, m.MM(), 1e-9)
}

func TestParseRejectsUnknownUnit(t *testing.T) {
	_, err := Parse("25 furlongs")
	assert.Error(t, err)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}

func TestUniformScaleFactorPicksSmallestAxis(t *testing.T) {
	current := BoundingBox{Width: 25, Depth: 25, Height: 50}
	target := TargetDimensions{Width: 65, Height: 150}
	factor, err := UniformScaleFactor(current, target)
	require.NoError(t, err)
	assert.InDelta(t, 2.6, factor, 1e-9)
}

func TestUniformScaleFactorNoTargetsIsIdentity(t *testing.T) {
	factor, err := UniformScaleFactor(BoundingBox{Width: 10, Depth: 10, Height: 10}, TargetDimensions{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, factor)
}

func TestBoundingBoxScale(t *testing.T) {
	b := BoundingBox{Width: 10, Depth: 20, Height: 30}.Scale(2)
	assert.Equal(t, BoundingBox{Width: 20, Depth: 40, Height: 60}, b)
}

func TestTubeSqueezerScale(t *testing.T) {
	factor, err := TubeSqueezerScale(25, 65, 1)
	require.NoError(t, err)
	assert.InDelta(t, 66.0/25.0, factor, 1e-9)
}

func TestTubeSqueezerScaleNoClearanceIsPlainDiameterRatio(t *testing.T) {
	// Mirrors the original scale_for_tube_squeezer's base_scale, which
	// has no clearance term: target-diameter / original-diameter.
	factor, err := TubeSqueezerScale(25, 65, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.6, factor, 1e-9)

	box := BoundingBox{Width: 38, Depth: 45, Height: 35}.Scale(factor)
	assert.InDelta(t, 98.8, box.Width, 0.01)
	assert.InDelta(t, 117.0, box.Depth, 0.01)
	assert.InDelta(t, 91.0, box.Height, 0.01)
}

func TestWallThicknessAdvisoryThreshold(t *testing.T) {
	_, flagged := WallThicknessAdvisory(1.4, 1.2)
	assert.False(t, flagged)

	note, flagged := WallThicknessAdvisory(2.6, 1.2)
	assert.True(t, flagged)
	assert.Contains(t, note, "20%")
}
