package workflow

import (
	"fmt"
	"strings"

	"github.com/vibeprint/printctl/internal/materials"
)

// reviewDesign runs the fixed set of design checks against design,
// the intended-use text, the chosen material, and nozzle diameter,
// returning every suggestion raised. Grounded on the reference
// implementation's DesignReviewer: three checks — dimension,
// structural, and material compatibility — each contributing
// independently to the suggestion list. There is no separate
// printability check.
func reviewDesign(design DesignParameterSet, intendedUseHint string, materialName string, nozzleDiameterMM float64) []Suggestion {
	var suggestions []Suggestion

	suggestions = append(suggestions, checkDimensions(design, nozzleDiameterMM)...)
	suggestions = append(suggestions, checkStructural(design, intendedUseHint)...)
	suggestions = append(suggestions, checkMaterialCompatibility(design, materialName)...)

	return suggestions
}

func checkDimensions(design DesignParameterSet, nozzleDiameterMM float64) []Suggestion {
	var suggestions []Suggestion

	if design.WallThicknessMM > 0 {
		minWall := nozzleDiameterMM * 2
		if minWall < 0.8 {
			minWall = 0.8
		}
		if design.WallThicknessMM < minWall {
			suggested := minWall
			if suggested < 1.2 {
				suggested = 1.2
			}
			suggestions = append(suggestions, Suggestion{
				Title:       "Wall thickness too thin",
				Description: fmt.Sprintf("Wall thickness of %.2fmm may be too thin for reliable printing.", design.WallThicknessMM),
				Priority:    PriorityCritical,
				WhyItMatters: fmt.Sprintf("Thin walls are fragile. With a %.2fmm nozzle, at least %.2fmm gives two solid perimeters.", nozzleDiameterMM, minWall),
				IfIgnored:   "Part may have gaps, be fragile, or fail to print.",
				AutoFixable: true,
				FixParameter: "wall_thickness_mm",
				SuggestedValue: suggested,
			})
		}
	}

	if design.ClearanceMM > 0 && design.ClearanceMM < 0.2 {
		suggestions = append(suggestions, Suggestion{
			Title:       "Clearance too tight",
			Description: fmt.Sprintf("Clearance of %.2fmm may cause parts to fuse together.", design.ClearanceMM),
			Priority:    PriorityCritical,
			WhyItMatters: "3D printers have slight inaccuracies; under 0.2mm clearance often fuses parts.",
			IfIgnored:   "Parts may not fit together or be impossible to separate.",
			AutoFixable: true,
			FixParameter: "clearance_mm",
			SuggestedValue: 0.3,
		})
	}

	if design.ClearanceMM > 2.0 {
		suggestions = append(suggestions, Suggestion{
			Title:       "Large clearance - verify fit type",
			Description: fmt.Sprintf("Clearance of %.2fmm will create a loose fit.", design.ClearanceMM),
			Priority:    PriorityOptional,
			WhyItMatters: "Large clearance means a loose fit; fine for sliding, possibly too loose for snug.",
			IfIgnored:   "Part may be looser than intended.",
		})
	}

	return suggestions
}

func checkStructural(design DesignParameterSet, intendedUseHint string) []Suggestion {
	var suggestions []Suggestion

	if needsStrength(intendedUseHint) && design.WallThicknessMM > 0 && design.WallThicknessMM < 2.5 {
		suggestions = append(suggestions, Suggestion{
			Title:       "Consider thicker walls for heavy use",
			Description: "For heavy-duty applications, thicker walls add strength.",
			Priority:    PriorityRecommended,
			WhyItMatters: "Thicker walls (2.5-3mm) significantly improve strength under load.",
			IfIgnored:   "Part may crack or break under heavy use.",
			AutoFixable: true,
			FixParameter: "wall_thickness_mm",
			SuggestedValue: 3.0,
		})
	}

	if design.NeedsGrip && !design.AddGripTexture {
		suggestions = append(suggestions, Suggestion{
			Title:       "Consider adding grip texture",
			Description: "Grip texture improves handling for heavy-duty use.",
			Priority:    PriorityOptional,
			WhyItMatters: "Texture helps prevent slipping, especially with wet or oily hands.",
			IfIgnored:   "Part may be slippery when gripping.",
			AutoFixable: true,
			FixParameter: "add_grip_texture",
			SuggestedValue: true,
		})
	}

	return suggestions
}

func checkMaterialCompatibility(design DesignParameterSet, materialName string) []Suggestion {
	var suggestions []Suggestion

	profile, ok := materials.LookupFilament(materialName)
	if !ok {
		return suggestions
	}

	if profile.Flags.IsFlexible && design.WallThicknessMM > 0 && design.WallThicknessMM < 1.5 {
		suggestions = append(suggestions, Suggestion{
			Title:       "Flexible filament needs thicker walls",
			Description: "Flexible materials need extra wall thickness or they print floppy.",
			Priority:    PriorityRecommended,
			WhyItMatters: "Thin walls in a flexible material are very floppy; use at least 2mm for a functional part.",
			IfIgnored:   "Part will be very flexible/floppy.",
			AutoFixable: true,
			FixParameter: "wall_thickness_mm",
			SuggestedValue: 2.5,
		})
	}

	if profile.Class == materials.ClassPC {
		suggestions = append(suggestions, Suggestion{
			Title:       "Polycarbonate properties",
			Description: "PC is strong but prone to warping.",
			Priority:    PriorityOptional,
			WhyItMatters: "Keep the design compact, use a brim, and ensure good bed adhesion.",
			IfIgnored:   "Large PC parts may warp.",
		})
	}

	suggestions = append(suggestions, designRecommendationSuggestions(profile)...)

	return suggestions
}

// designRecommendationSuggestions turns a filament's plain-text design
// guidance into low-priority suggestions, feeding the design-review
// stage's suggestion list the way checkDimensions/checkStructural feed
// it with parameter-specific ones.
func designRecommendationSuggestions(profile materials.FilamentProfile) []Suggestion {
	var suggestions []Suggestion
	for _, rec := range profile.DesignRecommendations() {
		suggestions = append(suggestions, Suggestion{
			Title:       "Design recommendation",
			Description: rec,
			Priority:    PriorityOptional,
			WhyItMatters: fmt.Sprintf("%s works best with design choices suited to its properties.", profile.Name),
		})
	}
	return suggestions
}

func needsStrength(intendedUseHint string) bool {
	lower := strings.ToLower(intendedUseHint)
	keywords := []string{"heavy", "strong", "force", "load", "squeeze", "grip", "hold"}
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func hasCritical(suggestions []Suggestion) bool {
	for _, s := range suggestions {
		if s.Priority == PriorityCritical {
			return true
		}
	}
	return false
}
