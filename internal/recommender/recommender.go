// Package recommender turns observed print defects and iteration
// history into a priority-ordered list of parameter adjustments. It
// is a pure function: no I/O, no component state.
package recommender

import "sort"

// DefectKind is one of the closed set of defect kinds the print
// lifecycle can observe.
type DefectKind string

const (
	DefectLayerShift     DefectKind = "layer-shift"
	DefectStringing      DefectKind = "stringing"
	DefectWarping        DefectKind = "warping"
	DefectBlob           DefectKind = "blob"
	DefectUnderExtrusion DefectKind = "under-extrusion"
	DefectOverExtrusion  DefectKind = "over-extrusion"
	DefectPoorAdhesion   DefectKind = "poor-adhesion"
	DefectSpaghetti      DefectKind = "spaghetti"
)

// Recommendation is a single suggested parameter adjustment.
type Recommendation struct {
	Parameter  string
	Current    float64
	Suggested  float64
	Reason     string
	Confidence float64
	Priority   int
}

// IterationSummary is the subset of an IterationRecord the recommender
// needs to learn from history: final status, quality score, and the
// four key parameters tracked across iterations.
type IterationSummary struct {
	Status         string
	Quality        float64
	LayerHeight    float64
	WallLoops      float64
	InfillDensity  float64
	OuterWallSpeed float64
}

type adjustment struct {
	parameter string
	delta     float64
	reason    string
}

var defectAdjustments = map[DefectKind][]adjustment{
	DefectLayerShift: {
		{"outer_wall_speed", -10, "reduce outer wall speed to curb layer shift"},
		{"inner_wall_speed", -15, "reduce inner wall speed to curb layer shift"},
		{"travel_speed", -50, "reduce travel speed to curb layer shift"},
	},
	DefectStringing: {
		{"retraction_length", 0.5, "increase retraction to reduce stringing"},
		{"retraction_speed", 5, "increase retraction speed to reduce stringing"},
		{"nozzle_temp", -5, "lower nozzle temperature to reduce stringing"},
		{"travel_speed", 20, "increase travel speed to reduce stringing"},
	},
	DefectWarping: {
		{"bed_temp", 5, "raise bed temperature to reduce warping"},
		{"bed_temp_initial", 10, "raise initial bed temperature to reduce warping"},
		{"brim_width", 5, "widen brim to reduce warping"},
		{"first_layer_speed", -10, "slow first layer to reduce warping"},
	},
	DefectBlob: {
		{"retraction_length", 0.3, "increase retraction to reduce blobbing"},
		{"outer_wall_speed", -5, "reduce outer wall speed to reduce blobbing"},
	},
	DefectUnderExtrusion: {
		{"nozzle_temp", 10, "raise nozzle temperature to fix under-extrusion"},
		{"infill_speed", -20, "slow infill speed to fix under-extrusion"},
	},
	DefectOverExtrusion: {
		{"nozzle_temp", -5, "lower nozzle temperature to fix over-extrusion"},
	},
	DefectPoorAdhesion: {
		{"bed_temp_initial", 10, "raise initial bed temperature to improve adhesion"},
		{"first_layer_height", 0.05, "raise first layer height to improve adhesion"},
		{"first_layer_speed", -10, "slow first layer to improve adhesion"},
		{"brim_width", 8, "widen brim to improve adhesion"},
	},
	DefectSpaghetti: {
		{"brim_width", 10, "widen brim to prevent detachment"},
		{"first_layer_speed", -15, "slow first layer to prevent detachment"},
		{"bed_temp_initial", 15, "raise initial bed temperature to prevent detachment"},
		{"first_layer_height", 0.1, "raise first layer height to prevent detachment"},
	},
}

var defectPriority = map[DefectKind]int{
	DefectSpaghetti:      1,
	DefectLayerShift:     1,
	DefectPoorAdhesion:   1,
	DefectWarping:        2,
	DefectUnderExtrusion: 2,
	DefectOverExtrusion:  3,
	DefectStringing:      3,
	DefectBlob:           4,
}

const defaultPriority = 5

type limit struct{ lo, hi float64 }

var paramLimits = map[string]limit{
	"outer_wall_speed":   {20, 150},
	"inner_wall_speed":   {30, 200},
	"infill_speed":       {50, 300},
	"travel_speed":       {100, 500},
	"nozzle_temp":        {180, 280},
	"bed_temp":           {40, 110},
	"bed_temp_initial":   {40, 110},
	"retraction_length":  {0.2, 5.0},
	"retraction_speed":   {20, 80},
	"brim_width":         {0, 20},
	"first_layer_speed":  {10, 50},
	"first_layer_height": {0.1, 0.4},
	"layer_height":       {0.08, 0.32},
}

func clamp(v float64, l limit) float64 {
	if v < l.lo {
		return l.lo
	}
	if v > l.hi {
		return l.hi
	}
	return v
}

func priorityFor(d DefectKind) int {
	if p, ok := defectPriority[d]; ok {
		return p
	}
	return defaultPriority
}

// CurrentParams names the live value the recommender compares
// suggestions against, keyed the same way as the limits table above.
type CurrentParams map[string]float64

// Recommend produces a deduplicated, priority-sorted recommendation
// list for the observed defects, given the current parameter values
// and optional completed-iteration history.
func Recommend(current CurrentParams, defects []DefectKind, history []IterationSummary) []Recommendation {
	var recs []Recommendation
	seen := make(map[string]bool)

	for _, d := range defects {
		adjustments, ok := defectAdjustments[d]
		if !ok {
			continue
		}
		priority := priorityFor(d)
		for _, adj := range adjustments {
			if seen[adj.parameter] {
				continue
			}
			seen[adj.parameter] = true

			curr := current[adj.parameter]
			suggested := curr + adj.delta
			if l, ok := paramLimits[adj.parameter]; ok {
				suggested = clamp(suggested, l)
			}
			recs = append(recs, Recommendation{
				Parameter:  adj.parameter,
				Current:    curr,
				Suggested:  suggested,
				Reason:     adj.reason,
				Confidence: 0.7,
				Priority:   priority,
			})
		}
	}

	if quality, ok := current["quality_score"]; ok && quality < 50 && !seen["outer_wall_speed"] {
		seen["outer_wall_speed"] = true
		curr := current["outer_wall_speed"]
		suggested := clamp(curr-5, paramLimits["outer_wall_speed"])
		recs = append(recs, Recommendation{
			Parameter:  "outer_wall_speed",
			Current:    curr,
			Suggested:  suggested,
			Reason:     "overall quality is low; slow the outer wall for better surface finish",
			Confidence: 0.6,
			Priority:   2,
		})
	}

	recs = append(recs, learnFromHistory(current, history, seen)...)

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority < recs[j].Priority
		}
		return recs[i].Confidence > recs[j].Confidence
	})

	return recs
}

var historyKeyParams = []string{"layer_height", "wall_loops", "infill_density", "outer_wall_speed"}

func summaryValue(s IterationSummary, param string) float64 {
	switch param {
	case "layer_height":
		return s.LayerHeight
	case "wall_loops":
		return s.WallLoops
	case "infill_density":
		return s.InfillDensity
	case "outer_wall_speed":
		return s.OuterWallSpeed
	}
	return 0
}

func learnFromHistory(current CurrentParams, history []IterationSummary, seen map[string]bool) []Recommendation {
	var best *IterationSummary
	for i := range history {
		h := history[i]
		if h.Status != "completed" || h.Quality < 80 {
			continue
		}
		if best == nil || h.Quality > best.Quality {
			best = &history[i]
		}
	}
	if best == nil {
		return nil
	}

	var recs []Recommendation
	for _, param := range historyKeyParams {
		if seen[param] {
			continue
		}
		bestVal := summaryValue(*best, param)
		currVal := current[param]
		if bestVal == currVal {
			continue
		}
		seen[param] = true
		recs = append(recs, Recommendation{
			Parameter:  param,
			Current:    currVal,
			Suggested:  bestVal,
			Reason:     "matches parameters from a previous high-quality iteration",
			Confidence: 0.5,
			Priority:   3,
		})
	}
	return recs
}
