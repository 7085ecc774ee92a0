package materials

import "fmt"

// NozzleMetallurgy enumerates nozzle construction materials.
type NozzleMetallurgy string

const (
	MetallurgyStandard NozzleMetallurgy = "standard"
	MetallurgyHardened NozzleMetallurgy = "hardened"
)

// LayerHeightRange is a min/optimal/max triple in millimeters.
type LayerHeightRange struct {
	Min     float64
	Optimal float64
	Max     float64
}

// NozzleProfile is an immutable nozzle description.
type NozzleProfile struct {
	Diameter        float64
	Metallurgy      NozzleMetallurgy
	LayerHeight     LayerHeightRange
	SpeedMultiplier float64
	AbrasiveSafe    bool
	BestFor         []string
	AvoidFor        []string
}

func nozzleKey(diameter float64, hardened bool) string {
	return fmt.Sprintf("%.2f|%v", diameter, hardened)
}

var nozzleRegistry = buildNozzleRegistry()

func buildNozzleRegistry() map[string]NozzleProfile {
	profiles := []NozzleProfile{
		{
			Diameter:        0.2,
			Metallurgy:      MetallurgyStandard,
			LayerHeight:     LayerHeightRange{Min: 0.05, Optimal: 0.10, Max: 0.16},
			SpeedMultiplier: 0.6,
			AbrasiveSafe:    false,
			BestFor:         []string{"fine detail", "miniatures", "small parts"},
			AvoidFor:        []string{"large prints", "abrasive filament"},
		},
		{
			Diameter:        0.4,
			Metallurgy:      MetallurgyStandard,
			LayerHeight:     LayerHeightRange{Min: 0.08, Optimal: 0.20, Max: 0.28},
			SpeedMultiplier: 1.0,
			AbrasiveSafe:    false,
			BestFor:         []string{"general purpose"},
			AvoidFor:        []string{"abrasive filament"},
		},
		{
			Diameter:        0.4,
			Metallurgy:      MetallurgyHardened,
			LayerHeight:     LayerHeightRange{Min: 0.08, Optimal: 0.20, Max: 0.28},
			SpeedMultiplier: 1.0,
			AbrasiveSafe:    true,
			BestFor:         []string{"general purpose", "abrasive filament", "carbon fiber"},
			AvoidFor:        []string{},
		},
		{
			Diameter:        0.6,
			Metallurgy:      MetallurgyStandard,
			LayerHeight:     LayerHeightRange{Min: 0.12, Optimal: 0.30, Max: 0.40},
			SpeedMultiplier: 1.3,
			AbrasiveSafe:    false,
			BestFor:         []string{"fast draft prints", "large parts"},
			AvoidFor:        []string{"fine detail", "abrasive filament"},
		},
		{
			Diameter:        0.8,
			Metallurgy:      MetallurgyHardened,
			LayerHeight:     LayerHeightRange{Min: 0.16, Optimal: 0.40, Max: 0.56},
			SpeedMultiplier: 1.6,
			AbrasiveSafe:    true,
			BestFor:         []string{"large parts", "abrasive filament", "structural prints"},
			AvoidFor:        []string{"fine detail"},
		},
	}

	reg := make(map[string]NozzleProfile, len(profiles))
	for _, p := range profiles {
		reg[nozzleKey(p.Diameter, p.Metallurgy == MetallurgyHardened)] = p
	}
	return reg
}

// LookupNozzle returns the profile for the given diameter and
// hardened flag. The second return value is false when no profile
// matches exactly.
func LookupNozzle(diameter float64, hardened bool) (NozzleProfile, bool) {
	p, ok := nozzleRegistry[nozzleKey(diameter, hardened)]
	return p, ok
}

// RecommendNozzle applies the fixed rule order from the knowledge
// base: abrasive filament always forces a hardened nozzle regardless
// of other inputs; then fine detail on a small part favors 0.2mm;
// then a speed priority on a large part favors 0.8mm; otherwise the
// 0.4mm standard nozzle is the default.
func RecommendNozzle(partSizeMM float64, fineDetail bool, abrasive bool, speedPriority bool) (NozzleProfile, string) {
	if abrasive {
		p, ok := LookupNozzle(0.4, true)
		if !ok {
			p, _ = LookupNozzle(0.8, true)
		}
		return p, "abrasive filament requires a hardened nozzle"
	}

	if fineDetail && partSizeMM <= 50 {
		p, _ := LookupNozzle(0.2, false)
		return p, "fine detail on a small part favors a 0.2mm nozzle"
	}

	if speedPriority && partSizeMM > 150 {
		p, _ := LookupNozzle(0.8, true)
		return p, "large part with speed priority favors a 0.8mm nozzle"
	}

	p, _ := LookupNozzle(0.4, false)
	return p, "0.4mm is the standard general-purpose choice"
}

// QualityTier selects a layer-height ratio of nozzle diameter.
type QualityTier string

const (
	QualityFine     QualityTier = "fine"
	QualityStandard QualityTier = "standard"
	QualityDraft    QualityTier = "draft"
)

var qualityRatios = map[QualityTier]float64{
	QualityFine:     0.25,
	QualityStandard: 0.50,
	QualityDraft:    0.70,
}

// LayerHeightFor computes nozzle-diameter × ratio for the given
// quality tier and snaps the result to 0.04mm steps, matching the
// printer's microstepping-friendly layer heights.
func LayerHeightFor(nozzleDiameter float64, quality QualityTier) float64 {
	ratio, ok := qualityRatios[quality]
	if !ok {
		ratio = qualityRatios[QualityStandard]
	}
	raw := nozzleDiameter * ratio
	const step = 0.04
	snapped := step * roundToNearest(raw/step)
	return snapped
}

func roundToNearest(f float64) float64 {
	if f < 0 {
		return -roundToNearest(-f)
	}
	i := int64(f)
	frac := f - float64(i)
	if frac >= 0.5 {
		i++
	}
	return float64(i)
}
