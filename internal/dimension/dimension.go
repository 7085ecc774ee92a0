// Package dimension parses free-form size strings and computes the
// scale factors a model needs to hit a target size. It never touches
// a mesh file — mesh generation and measurement extraction are
// external collaborators; this package only does the arithmetic.
package dimension

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit is a length unit recognized in free-form dimension strings.
type Unit string

const (
	UnitMM   Unit = "mm"
	UnitInch Unit = "in"
)

const mmPerInch = 25.4

// Measurement is a single parsed length with its unit.
type Measurement struct {
	Value float64
	Unit  Unit
}

// MM returns the measurement's value converted to millimeters.
func (m Measurement) MM() float64 {
	if m.Unit == UnitInch {
		return m.Value * mmPerInch
	}
	return m.Value
}

var unitAliases = map[string]Unit{
	"mm":     UnitMM,
	"mms":    UnitMM,
	"millimeter":  UnitMM,
	"millimeters": UnitMM,
	"in":      UnitInch,
	"inch":    UnitInch,
	"inches":  UnitInch,
	"\"":      UnitInch,
}

// Parse reads a free-form dimension string like "25mm", "1.5 inches",
// or `2"` into a Measurement. Bare numbers are assumed to be
// millimeters.
func Parse(s string) (Measurement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Measurement{}, fmt.Errorf("dimension: empty string")
	}

	i := 0
	for i < len(s) && (isDigit(s[i]) || s[i] == '.' || s[i] == '-') {
		i++
	}
	if i == 0 {
		return Measurement{}, fmt.Errorf("dimension: no numeric value in %q", s)
	}

	numPart := s[:i]
	unitPart := strings.ToLower(strings.TrimSpace(s[i:]))

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return Measurement{}, fmt.Errorf("dimension: invalid number in %q: %w", s, err)
	}

	unit := UnitMM
	if unitPart != "" {
		u, ok := unitAliases[unitPart]
		if !ok {
			return Measurement{}, fmt.Errorf("dimension: unrecognized unit %q in %q", unitPart, s)
		}
		unit = u
	}

	return Measurement{Value: value, Unit: unit}, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// BoundingBox is a model's width/depth/height in millimeters.
type BoundingBox struct {
	Width, Depth, Height float64
}

// Scale multiplies every dimension by factor.
func (b BoundingBox) Scale(factor float64) BoundingBox {
	return BoundingBox{Width: b.Width * factor, Depth: b.Depth * factor, Height: b.Height * factor}
}

// TargetDimensions is an optional per-axis target; a zero field means
// that axis is unconstrained.
type TargetDimensions struct {
	Width, Depth, Height float64
}

// UniformScaleFactor computes the single scale factor that best meets
// the supplied per-axis targets while preserving the model's aspect
// ratio: each specified axis implies its own scale, and the smallest
// of those is used so that no axis overshoots its target.
func UniformScaleFactor(current BoundingBox, target TargetDimensions) (float64, error) {
	var scales []float64

	if target.Width > 0 {
		if current.Width <= 0 {
			return 0, fmt.Errorf("dimension: current width is zero")
		}
		scales = append(scales, target.Width/current.Width)
	}
	if target.Depth > 0 {
		if current.Depth <= 0 {
			return 0, fmt.Errorf("dimension: current depth is zero")
		}
		scales = append(scales, target.Depth/current.Depth)
	}
	if target.Height > 0 {
		if current.Height <= 0 {
			return 0, fmt.Errorf("dimension: current height is zero")
		}
		scales = append(scales, target.Height/current.Height)
	}

	if len(scales) == 0 {
		return 1.0, nil
	}

	min := scales[0]
	for _, s := range scales[1:] {
		if s < min {
			min = s
		}
	}
	return min, nil
}

// TubeSqueezerScale computes the scale factor for adapting a
// tube-squeezer style model's slot width to a different tube or
// bottle diameter, leaving clearanceMM of play for easy sliding.
// Mirrors the original calculate_tube_squeezer_scale helper.
func TubeSqueezerScale(originalSlotWidthMM, targetTubeDiameterMM, clearanceMM float64) (float64, error) {
	if originalSlotWidthMM <= 0 {
		return 0, fmt.Errorf("dimension: original slot width must be positive")
	}
	targetSlotWidth := targetTubeDiameterMM + clearanceMM
	return targetSlotWidth / originalSlotWidthMM, nil
}

// WallThicknessAdvisory returns a human-readable note recommending a
// wall-thickness increase when a scale factor is large enough that
// the original wall thickness may no longer be structurally sound.
// Mirrors scale_for_tube_squeezer's wall-thickness heuristic: above
// 1.5x scale, flag it.
func WallThicknessAdvisory(scaleFactor, wallThicknessFactor float64) (string, bool) {
	if scaleFactor <= 1.5 {
		return "", false
	}
	pct := (wallThicknessFactor - 1) * 100
	return fmt.Sprintf("recommend increasing wall thickness in slicer by %.0f%% for structural integrity", pct), true
}
