package iteration

// improvementSuggestions turns the observed defect kinds from a
// terminal iteration into free-text bullets for the next attempt,
// one defect family's worth of guidance per defect name present.
func improvementSuggestions(defects []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range defects {
		if seen[d] {
			continue
		}
		seen[d] = true
		if bullets, ok := suggestionLibrary[d]; ok {
			out = append(out, bullets...)
		}
	}
	return out
}

var suggestionLibrary = map[string][]string{
	"layer-shift": {
		"Reduce outer and inner wall speeds to lessen belt/stepper skipping",
		"Reduce travel speed between features",
		"Check belt tension and pulley set screws",
		"Reduce acceleration and jerk in the slicer profile",
		"Verify the gantry moves freely across its full travel",
	},
	"stringing": {
		"Increase retraction length and speed",
		"Lower nozzle temperature by 5-10C",
		"Increase travel speed to minimize ooze time",
		"Enable or tighten combing/avoid-crossing-perimeters",
		"Dry the filament if it has been exposed to humidity",
	},
	"warping": {
		"Raise bed and first-layer bed temperatures",
		"Add or widen a brim for extra anchor area",
		"Slow the first layer for better bed adhesion",
		"Use an enclosure or draft shield to stabilize ambient temperature",
		"Clean the bed surface before printing",
	},
	"blob": {
		"Increase retraction length slightly",
		"Reduce outer wall speed",
		"Check for a partially clogged nozzle",
		"Lower nozzle temperature slightly if oozing persists",
		"Enable coasting or wipe at the end of each perimeter",
	},
	"under-extrusion": {
		"Raise nozzle temperature by 5-10C",
		"Slow infill and outer wall speeds",
		"Check for a partially clogged nozzle or worn extruder gear",
		"Verify filament diameter matches the slicer setting",
		"Check for filament grinding at the extruder",
	},
	"over-extrusion": {
		"Lower nozzle temperature by 5C",
		"Verify the extrusion multiplier / flow rate setting",
		"Check filament diameter against the slicer setting",
		"Reduce the flow ratio in small steps and reprint a calibration cube",
		"Confirm the nozzle diameter set in the slicer matches the installed nozzle",
	},
	"poor-adhesion": {
		"Raise the initial bed temperature",
		"Increase first-layer height slightly",
		"Slow the first layer",
		"Widen the brim",
		"Level the bed and recalibrate the first-layer z-offset",
	},
	"spaghetti": {
		"Widen the brim significantly",
		"Slow the first layer substantially",
		"Raise the initial bed temperature",
		"Increase first-layer height",
		"Verify the bed is level and clean before the next attempt",
		"Consider an enclosure if ambient drafts are present",
	},
}
