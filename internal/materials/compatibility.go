package materials

// CompatibilityReport is the result of checking a design's strength
// requirements against a candidate material's physical envelope.
type CompatibilityReport struct {
	Material   string
	Compatible bool
	Warnings   []string
}

// DesignConstraints is the subset of a DesignParameterSet relevant to
// material compatibility.
type DesignConstraints struct {
	RequiresFlexible  bool
	RequiresHighTemp  bool
	OutdoorUse        bool
	ThinWalledMM      float64 // wall thickness; 0 means not specified
}

// CheckCompatibility mirrors the original implementation's
// get_material_compatibility: it flags mismatches between what a
// design needs and what a candidate material can actually deliver,
// rather than picking a material outright (that's SuggestFilaments'
// job).
func CheckCompatibility(constraints DesignConstraints, candidates []FilamentProfile) []CompatibilityReport {
	reports := make([]CompatibilityReport, 0, len(candidates))

	for _, m := range candidates {
		report := CompatibilityReport{Material: m.Name, Compatible: true}

		if constraints.RequiresFlexible && !m.Flags.IsFlexible {
			report.Compatible = false
			report.Warnings = append(report.Warnings, "design calls for flexibility but material is rigid")
		}

		if constraints.RequiresHighTemp && m.NozzleTemp.Max < 250 {
			report.Compatible = false
			report.Warnings = append(report.Warnings, "design requires high-temperature resistance beyond this material's range")
		}

		if constraints.OutdoorUse && m.Class == ClassRigidPLA {
			report.Warnings = append(report.Warnings, "PLA degrades under UV and heat; consider PETG or PC for outdoor use")
		}

		if constraints.ThinWalledMM > 0 && constraints.ThinWalledMM < 1.2 && m.Flags.IsFlexible {
			report.Warnings = append(report.Warnings, "thin walls under 1.2mm are fragile in flexible material")
		}

		reports = append(reports, report)
	}

	return reports
}
