package materials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupFilamentNormalizesKey(t *testing.T) {
	want, ok := LookupFilament("bambu_petg_translucent")
	require.True(t, ok)

	for _, key := range []string{
		"Bambu PETG Translucent",
		"bambu-petg-translucent",
		"  BAMBU_PETG_TRANSLUCENT  ",
	} {
		got, ok := LookupFilament(key)
		require.True(t, ok, key)
		assert.Equal(t, want.Name, got.Name)
	}
}

func TestLookupFilamentAbsent(t *testing.T) {
	_, ok := LookupFilament("does not exist")
	assert.False(t, ok)
}

func TestListFilamentsDeduplicated(t *testing.T) {
	all := ListFilaments()
	seen := make(map[string]bool)
	for _, p := range all {
		assert.False(t, seen[p.Name], "duplicate profile %s", p.Name)
		seen[p.Name] = true
	}
	assert.NotEmpty(t, all)
}

func TestSuggestFilamentsFlexIsExclusive(t *testing.T) {
	got := SuggestFilaments(SuggestionNeeds{Flex: true, Strength: true, Heat: true})
	require.Len(t, got, 1)
	assert.Equal(t, ClassTPUFlex, got[0].Class)
}

func TestSuggestFilamentsHeat(t *testing.T) {
	got := SuggestFilaments(SuggestionNeeds{Heat: true})
	require.NotEmpty(t, got)
	assert.Equal(t, ClassPC, got[0].Class)
}

func TestRecommendNozzleAbrasiveWins(t *testing.T) {
	p, reason := RecommendNozzle(200, true, true, true)
	assert.True(t, p.AbrasiveSafe)
	assert.Contains(t, reason, "abrasive")
}

func TestRecommendNozzleFineDetailSmallPart(t *testing.T) {
	p, _ := RecommendNozzle(30, true, false, false)
	assert.Equal(t, 0.2, p.Diameter)
}

func TestRecommendNozzleSpeedLargePart(t *testing.T) {
	p, _ := RecommendNozzle(200, false, false, true)
	assert.Equal(t, 0.8, p.Diameter)
}

func TestRecommendNozzleDefault(t *testing.T) {
	p, _ := RecommendNozzle(80, false, false, false)
	assert.Equal(t, 0.4, p.Diameter)
	assert.Equal(t, MetallurgyStandard, p.Metallurgy)
}

func TestLayerHeightForSnapsToStep(t *testing.T) {
	cases := []struct {
		diameter float64
		quality  QualityTier
		want     float64
	}{
		{0.4, QualityFine, 0.12},
		{0.4, QualityStandard, 0.20},
		{0.4, QualityDraft, 0.28},
	}
	for _, c := range cases {
		got := LayerHeightFor(c.diameter, c.quality)
		assert.InDelta(t, c.want, got, 1e-9)
	}
}

func TestCheckCompatibilityFlagsRigidForFlexDesign(t *testing.T) {
	pla, _ := LookupFilament("bambu_pla_basic")
	reports := CheckCompatibility(DesignConstraints{RequiresFlexible: true}, []FilamentProfile{pla})
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Compatible)
}
