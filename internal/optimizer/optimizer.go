// Package optimizer binds a slicing parameter set to a material's
// physical envelope. It is a pure function: no I/O, no globals beyond
// the materials registry it reads from.
package optimizer

import (
	"fmt"
	"math"

	"github.com/vibeprint/printctl/internal/materials"
)

// Change records a single parameter clamp or adjustment the optimizer
// made, in application order.
type Change struct {
	Parameter string
	OldValue  float64
	NewValue  float64
	Reason    string
}

// Params is the mutable parameter map the optimizer reads and
// rewrites. A nozzle or bed temperature is "absent" when its *Set
// flag is false or its value is zero; a zero wall, infill or
// first-layer speed is also treated as absent and filled in by the
// rule that handles it.
type Params struct {
	NozzleTemp        float64
	NozzleTempSet     bool
	BedTemp           float64
	BedTempSet        bool
	LayerHeight       float64
	LineWidth         float64
	OuterWallSpeed    float64
	InnerWallSpeed    float64
	InfillSpeed       float64
	RetractionLength  float64
	RetractionSpeed   float64
	FanSpeed          int
	FanMinLayerTimeS  int
	BrimWidth         float64
	FirstLayerSpeed   float64
	FirstLayerHeight  float64
	WallLoops         int
	InfillDensity     float64
	InfillPattern     string
	EnableDraftShield bool
	ZHopEnabled       bool
	ZHopHeight        float64
}

// Result is the optimizer's output: the rewritten parameters plus an
// ordered change log, warnings, and free-form notes.
type Result struct {
	Params   Params
	Changes  []Change
	Warnings []string
	Notes    []string
}

// Optimize applies the fixed rule sequence (temperatures, speeds,
// retraction, cooling, adhesion, flexible structure, material
// specifics) to in, given the named material and ambient
// temperature in degrees Celsius. Running it again on its own output
// produces no further changes, with one exception: below 18°C ambient
// the bed bump is relative to the incoming bed temperature, so each
// repeat call raises it by up to 5°C more until it reaches the
// material's maximum.
func Optimize(in Params, materialName string, nozzleDiameter float64, ambientC float64) (Result, error) {
	mat, ok := materials.LookupFilament(materialName)
	if !ok {
		return Result{}, fmt.Errorf("optimizer: unknown material %q", materialName)
	}

	res := Result{Params: in}

	optimizeTemperatures(&res, mat)
	optimizeSpeeds(&res, mat)
	optimizeRetraction(&res, mat)
	optimizeCooling(&res, mat)
	optimizeAdhesion(&res, mat)
	optimizeStructure(&res, mat)
	applyMaterialSpecifics(&res, mat, ambientC)

	return res, nil
}

func (r *Result) record(param string, old, new float64, reason string) {
	if old == new {
		return
	}
	r.Changes = append(r.Changes, Change{Parameter: param, OldValue: old, NewValue: new, Reason: reason})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func optimizeTemperatures(r *Result, mat materials.FilamentProfile) {
	p := &r.Params

	old := p.NozzleTemp
	if !p.NozzleTempSet || p.NozzleTemp == 0 {
		p.NozzleTemp = mat.NozzleTemp.Optimal
	} else {
		p.NozzleTemp = clamp(p.NozzleTemp, mat.NozzleTemp.Min, mat.NozzleTemp.Max)
	}
	p.NozzleTempSet = true
	r.record("nozzle_temp", old, p.NozzleTemp, "clamped into filament nozzle temperature range")

	old = p.BedTemp
	if !p.BedTempSet || p.BedTemp == 0 {
		p.BedTemp = mat.BedTemp.Optimal
	} else {
		p.BedTemp = clamp(p.BedTemp, mat.BedTemp.Min, mat.BedTemp.Max)
	}
	p.BedTempSet = true
	r.record("bed_temp", old, p.BedTemp, "clamped into filament bed temperature range")
}

func optimizeSpeeds(r *Result, mat materials.FilamentProfile) {
	p := &r.Params

	oldOuter := p.OuterWallSpeed
	maxOuter := mat.MaxPrintSpeed * 0.5
	p.OuterWallSpeed = math.Min(p.OuterWallSpeed, maxOuter)
	if p.OuterWallSpeed == 0 {
		p.OuterWallSpeed = maxOuter
	}
	r.record("outer_wall_speed", oldOuter, p.OuterWallSpeed, "capped at 50% of max print speed")

	oldInner := p.InnerWallSpeed
	maxInner := mat.MaxPrintSpeed * 0.7
	p.InnerWallSpeed = math.Min(p.InnerWallSpeed, maxInner)
	if p.InnerWallSpeed == 0 {
		p.InnerWallSpeed = maxInner
	}
	r.record("inner_wall_speed", oldInner, p.InnerWallSpeed, "capped at 70% of max print speed")

	oldInfill := p.InfillSpeed
	maxInfill := mat.MaxPrintSpeed
	p.InfillSpeed = math.Min(p.InfillSpeed, maxInfill)
	if p.InfillSpeed == 0 {
		p.InfillSpeed = maxInfill
	}
	r.record("infill_speed", oldInfill, p.InfillSpeed, "capped at max print speed")

	if p.LayerHeight > 0 && p.LineWidth > 0 {
		flow := p.LayerHeight * p.LineWidth * p.OuterWallSpeed
		if flow > mat.MaxVolumetricFlow {
			safe := mat.MaxVolumetricFlow / (p.LayerHeight * p.LineWidth)
			old := p.OuterWallSpeed
			p.OuterWallSpeed = safe * 0.9
			r.record("outer_wall_speed", old, p.OuterWallSpeed, "reduced to 90% of volumetric-flow-safe speed")
		}
	}
}

func optimizeRetraction(r *Result, mat materials.FilamentProfile) {
	p := &r.Params

	oldLen := p.RetractionLength
	if math.Abs(p.RetractionLength-mat.RetractionLength) > 0.2 {
		p.RetractionLength = mat.RetractionLength
		r.record("retraction_length", oldLen, p.RetractionLength, "snapped to filament retraction length")
	}

	oldSpeed := p.RetractionSpeed
	if math.Abs(p.RetractionSpeed-mat.RetractionSpeed) > 5 {
		p.RetractionSpeed = mat.RetractionSpeed
		r.record("retraction_speed", oldSpeed, p.RetractionSpeed, "snapped to filament retraction speed")
	}

	if mat.Flags.IsFlexible && p.RetractionLength > 0.5 {
		old := p.RetractionLength
		p.RetractionLength = 0.5
		r.record("retraction_length", old, p.RetractionLength, "flexible material retraction capped at 0.5mm")
	}
}

func optimizeCooling(r *Result, mat materials.FilamentProfile) {
	p := &r.Params
	old := p.FanSpeed

	switch mat.Class {
	case materials.ClassRigidPLA:
		if p.FanSpeed < 80 {
			p.FanSpeed = 100
		}
	case materials.ClassPETG:
		if p.FanSpeed > 50 {
			p.FanSpeed = 50
		}
	case materials.ClassPC:
		p.FanSpeed = 20
		p.FanMinLayerTimeS = 15
	case materials.ClassTPUFlex:
		if p.FanSpeed > 50 {
			p.FanSpeed = 50
		}
	}

	r.record("fan_speed", float64(old), float64(p.FanSpeed), "cooling tuned for material class")
}

func optimizeAdhesion(r *Result, mat materials.FilamentProfile) {
	p := &r.Params

	if mat.WarpTendency == materials.WarpMedium || mat.WarpTendency == materials.WarpHigh {
		oldBrim := p.BrimWidth
		if p.BrimWidth < 8 {
			p.BrimWidth = 10
			r.record("brim_width", oldBrim, p.BrimWidth, "warp-prone material requires a wider brim")
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s is warp-prone; an enclosed chamber is recommended", mat.Name))
		}

		oldSpeed := p.FirstLayerSpeed
		if p.FirstLayerSpeed > 25 || p.FirstLayerSpeed == 0 {
			p.FirstLayerSpeed = 20
			r.record("first_layer_speed", oldSpeed, p.FirstLayerSpeed, "slowed first layer for adhesion")
		}

		if p.LayerHeight > 0 {
			target := 1.2 * p.LayerHeight
			if math.Abs(p.FirstLayerHeight-target) > 0.02 {
				old := p.FirstLayerHeight
				p.FirstLayerHeight = target
				r.record("first_layer_height", old, p.FirstLayerHeight, "first layer raised to 1.2x layer height")
			}
		}
	}
}

func optimizeStructure(r *Result, mat materials.FilamentProfile) {
	p := &r.Params

	if mat.Flags.IsFlexible {
		old := p.WallLoops
		if p.WallLoops < 3 {
			p.WallLoops = 3
			r.record("wall_loops", float64(old), float64(p.WallLoops), "flexible material needs at least 3 wall loops")
		}
		if p.InfillDensity > 25 {
			r.Notes = append(r.Notes, "infill above 25% reduces flexibility; consider lowering it")
		}
	}
}

func applyMaterialSpecifics(r *Result, mat materials.FilamentProfile, ambientC float64) {
	p := &r.Params

	if !mat.Flags.FeederCompatibleSwapper {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s is not compatible with an AMS-style spool swapper", mat.Name))
	}

	if mat.Class == materials.ClassPC {
		r.Warnings = append(r.Warnings, "Polycarbonate prints best in an enclosed printer; open-frame printers should keep parts small and use a draft shield")
		p.EnableDraftShield = true
	}

	if ambientC < 18 {
		target := math.Min(p.BedTemp+5, mat.BedTemp.Max)
		if target > p.BedTemp {
			r.Notes = append(r.Notes, "cold ambient temperature detected; bed temperature raised for adhesion")
			old := p.BedTemp
			p.BedTemp = target
			r.record("bed_temp", old, p.BedTemp, "cold ambient compensation")
		}
	}

	if mat.Class == materials.ClassPETG {
		r.Notes = append(r.Notes, "PETG is prone to stringing; z-hop enabled")
		p.ZHopEnabled = true
		p.ZHopHeight = 0.4
	}
}
