// Package materials is the Material Knowledge Base: an immutable,
// read-only registry of filament and nozzle profiles with physical
// envelopes. Nothing in this package performs I/O.
package materials

import "strings"

// MaterialClass enumerates the supported filament classes.
type MaterialClass string

const (
	ClassRigidPLA  MaterialClass = "rigid-pla"
	ClassPETG      MaterialClass = "petg"
	ClassPC        MaterialClass = "pc"
	ClassTPUFlex   MaterialClass = "tpu-flex"
	ClassCFAbrasive MaterialClass = "cf-abrasive"
	ClassOther     MaterialClass = "other"
)

// WarpTendency enumerates how prone a material is to corner lift.
type WarpTendency string

const (
	WarpNone   WarpTendency = "none"
	WarpLow    WarpTendency = "low"
	WarpMedium WarpTendency = "medium"
	WarpHigh   WarpTendency = "high"
)

// TemperatureRange is a min/optimal/max triple in degrees Celsius.
type TemperatureRange struct {
	Min     float64
	Optimal float64
	Max     float64
}

// CoolingEnvelope bounds the part-cooling fan behavior for a material.
type CoolingEnvelope struct {
	MinPercent       int
	MaxPercent       int
	FirstLayersNoFan int
}

// FilamentFlags are material-level capability bits.
type FilamentFlags struct {
	IsFlexible               bool
	IsAbrasive               bool
	FeederCompatibleSwapper  bool
}

// FilamentProfile is an immutable filament/nozzle-compatible material
// description. Profiles are compared by Name.
type FilamentProfile struct {
	Name                string
	Class               MaterialClass
	NozzleTemp          TemperatureRange
	BedTemp             TemperatureRange
	MaxPrintSpeed       float64 // mm/s
	MaxVolumetricFlow   float64 // mm^3/s
	RetractionLength    float64 // mm
	RetractionSpeed     float64 // mm/s
	Cooling             CoolingEnvelope
	Flags               FilamentFlags
	WarpTendency        WarpTendency
	SpecialNotes        string
}

// normalizeKey lower-cases and collapses whitespace/hyphens so lookups
// are insensitive to "Bambu PETG Translucent", "bambu-petg-translucent",
// and "bambu_petg_translucent" alike.
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer("-", " ", "_", " ")
	s = replacer.Replace(s)
	fields := strings.Fields(s)
	return strings.Join(fields, "_")
}

var filamentRegistry = buildFilamentRegistry()

func buildFilamentRegistry() map[string]FilamentProfile {
	profiles := []FilamentProfile{
		{
			Name:              "bambu_pla_basic",
			Class:             ClassRigidPLA,
			NozzleTemp:        TemperatureRange{Min: 190, Optimal: 210, Max: 230},
			BedTemp:           TemperatureRange{Min: 45, Optimal: 55, Max: 65},
			MaxPrintSpeed:     200,
			MaxVolumetricFlow: 15,
			RetractionLength:  0.8,
			RetractionSpeed:   30,
			Cooling:           CoolingEnvelope{MinPercent: 80, MaxPercent: 100, FirstLayersNoFan: 1},
			Flags:             FilamentFlags{FeederCompatibleSwapper: true},
			WarpTendency:      WarpLow,
			SpecialNotes:      "Easiest material to print; high cooling for crisp detail.",
		},
		{
			Name:              "bambu_petg_translucent",
			Class:             ClassPETG,
			NozzleTemp:        TemperatureRange{Min: 230, Optimal: 240, Max: 250},
			BedTemp:           TemperatureRange{Min: 70, Optimal: 75, Max: 80},
			MaxPrintSpeed:     150,
			MaxVolumetricFlow: 12,
			RetractionLength:  0.8,
			RetractionSpeed:   30,
			Cooling:           CoolingEnvelope{MinPercent: 30, MaxPercent: 50, FirstLayersNoFan: 2},
			Flags:             FilamentFlags{FeederCompatibleSwapper: true},
			WarpTendency:      WarpLow,
			SpecialNotes:      "Tends to string; keep retraction and temperature tuned.",
		},
		{
			Name:              "prusa_pc_blend",
			Class:             ClassPC,
			NozzleTemp:        TemperatureRange{Min: 260, Optimal: 270, Max: 280},
			BedTemp:           TemperatureRange{Min: 100, Optimal: 110, Max: 115},
			MaxPrintSpeed:     100,
			MaxVolumetricFlow: 10,
			RetractionLength:  1.0,
			RetractionSpeed:   35,
			Cooling:           CoolingEnvelope{MinPercent: 0, MaxPercent: 20, FirstLayersNoFan: 3},
			Flags:             FilamentFlags{FeederCompatibleSwapper: true},
			WarpTendency:      WarpHigh,
			SpecialNotes:      "Prone to warping on open-frame printers; use a draft shield and brim.",
		},
		{
			Name:              "generic_petg",
			Class:             ClassPETG,
			NozzleTemp:        TemperatureRange{Min: 225, Optimal: 235, Max: 245},
			BedTemp:           TemperatureRange{Min: 70, Optimal: 75, Max: 80},
			MaxPrintSpeed:     150,
			MaxVolumetricFlow: 11,
			RetractionLength:  0.8,
			RetractionSpeed:   30,
			Cooling:           CoolingEnvelope{MinPercent: 30, MaxPercent: 50, FirstLayersNoFan: 2},
			Flags:             FilamentFlags{FeederCompatibleSwapper: true},
			WarpTendency:      WarpLow,
		},
		{
			Name:              "generic_tpu_95a",
			Class:             ClassTPUFlex,
			NozzleTemp:        TemperatureRange{Min: 210, Optimal: 220, Max: 230},
			BedTemp:           TemperatureRange{Min: 35, Optimal: 45, Max: 50},
			MaxPrintSpeed:     60,
			MaxVolumetricFlow: 6,
			RetractionLength:  0.5,
			RetractionSpeed:   20,
			Cooling:           CoolingEnvelope{MinPercent: 30, MaxPercent: 50, FirstLayersNoFan: 1},
			Flags:             FilamentFlags{IsFlexible: true, FeederCompatibleSwapper: false},
			WarpTendency:      WarpNone,
			SpecialNotes:      "Feed directly — flexible filaments jam most spool swappers.",
		},
		{
			Name:              "generic_petg_cf",
			Class:             ClassCFAbrasive,
			NozzleTemp:        TemperatureRange{Min: 235, Optimal: 245, Max: 255},
			BedTemp:           TemperatureRange{Min: 70, Optimal: 80, Max: 85},
			MaxPrintSpeed:     120,
			MaxVolumetricFlow: 10,
			RetractionLength:  0.8,
			RetractionSpeed:   30,
			Cooling:           CoolingEnvelope{MinPercent: 20, MaxPercent: 40, FirstLayersNoFan: 2},
			Flags:             FilamentFlags{IsAbrasive: true, FeederCompatibleSwapper: true},
			WarpTendency:      WarpMedium,
			SpecialNotes:      "Carbon-fiber filled: requires a hardened nozzle.",
		},
	}

	reg := make(map[string]FilamentProfile, len(profiles))
	for _, p := range profiles {
		reg[normalizeKey(p.Name)] = p
	}
	return reg
}

// LookupFilament finds a profile by case/whitespace/hyphen-insensitive
// name. The second return value is false when no profile matches.
func LookupFilament(key string) (FilamentProfile, bool) {
	p, ok := filamentRegistry[normalizeKey(key)]
	return p, ok
}

// ListFilaments returns every registered profile, deduplicated by name.
func ListFilaments() []FilamentProfile {
	out := make([]FilamentProfile, 0, len(filamentRegistry))
	seen := make(map[string]bool, len(filamentRegistry))
	for _, p := range filamentRegistry {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out
}

// SuggestionNeeds describes the desired properties used by
// SuggestFilaments.
type SuggestionNeeds struct {
	Strength  bool
	Flex      bool
	Heat      bool
	Outdoor   bool
	Waterproof bool
}

// SuggestFilaments returns an ordered candidate list for the given
// needs. Flexibility is an exclusive branch: TPU is suggested only
// when Flex is requested, and no other material is suggested alongside
// it for that case.
func SuggestFilaments(needs SuggestionNeeds) []FilamentProfile {
	if needs.Flex {
		if p, ok := LookupFilament("generic_tpu_95a"); ok {
			return []FilamentProfile{p}
		}
		return nil
	}

	var out []FilamentProfile
	add := func(name string) {
		if p, ok := LookupFilament(name); ok {
			out = append(out, p)
		}
	}

	switch {
	case needs.Waterproof:
		add("generic_petg")
		add("bambu_petg_translucent")
	case needs.Heat:
		add("prusa_pc_blend")
		add("generic_petg")
	case needs.Outdoor:
		add("generic_petg")
		add("prusa_pc_blend")
	case needs.Strength:
		add("generic_petg_cf")
		add("generic_petg")
	default:
		add("bambu_pla_basic")
	}

	return out
}

// DesignRecommendations mirrors the original implementation's
// get_design_recommendations: plain-text design guidance derived from
// the material's mechanical properties, surfaced by the workflow's
// design-review stage.
func (p FilamentProfile) DesignRecommendations() []string {
	var recs []string

	if p.Flags.IsFlexible {
		recs = append(recs,
			"Reduce infill to 15-25% for flexibility",
			"Use 2-3 wall loops minimum",
			"Avoid thin walls under 1.2mm",
		)
	}

	if p.WarpTendency == WarpMedium || p.WarpTendency == WarpHigh {
		recs = append(recs,
			"Use a brim (8mm+) for bed adhesion",
			"Avoid large flat surfaces or add mouse ears",
		)
	}

	if p.Class == ClassCFAbrasive {
		recs = append(recs, "Use a hardened nozzle — abrasive fill wears brass quickly")
	}

	if !p.Flags.FeederCompatibleSwapper {
		recs = append(recs, "Feed directly to the extruder — this material is not spool-swapper compatible")
	}

	return recs
}
