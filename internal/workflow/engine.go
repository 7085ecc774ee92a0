package workflow

import (
	"fmt"
	"math"
	"time"

	"github.com/vibeprint/printctl/internal/materials"
	"github.com/vibeprint/printctl/internal/optimizer"
)

// QualityPreset is a novice-facing print-quality tier.
type QualityPreset string

const (
	QualityDraft    QualityPreset = "draft"
	QualityStandard QualityPreset = "standard"
	QualityQuality  QualityPreset = "quality"
	QualityUltra    QualityPreset = "ultra"
)

// UseCase is what the finished part is for; it adjusts the quality
// preset's base wall/infill settings.
type UseCase string

const (
	UseCaseFunctional UseCase = "functional"
	UseCaseDecorative UseCase = "decorative"
	UseCasePrototype  UseCase = "prototype"
	UseCaseGift       UseCase = "gift"
)

type qualitySettings struct {
	layerHeightRatio float64
	wallLoops        int
	infillDensity    float64
	speedFactor      float64
}

var qualityPresets = map[QualityPreset]qualitySettings{
	QualityDraft:    {layerHeightRatio: 0.70, wallLoops: 2, infillDensity: 15, speedFactor: 1.2},
	QualityStandard: {layerHeightRatio: 0.50, wallLoops: 3, infillDensity: 20, speedFactor: 1.0},
	QualityQuality:  {layerHeightRatio: 0.35, wallLoops: 4, infillDensity: 25, speedFactor: 0.8},
	QualityUltra:    {layerHeightRatio: 0.25, wallLoops: 5, infillDensity: 30, speedFactor: 0.6},
}

// Engine drives one workflow's stage transitions. It holds no state of
// its own beyond what's passed in — every mutation lands on the State
// given to Approve, so the engine is resumable from a persisted State
// with nothing extra to reconstruct.
type Engine struct{}

// NewEngine returns a stateless workflow engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Approve merges answers into state, marks the current checkpoint
// approved, runs the stage-specific transition, and appends the next
// checkpoint. It returns an error only for a programming mistake (no
// current checkpoint, unknown stage); nothing else fails the call. An
// unknown material is skipped by the stages that look it up and is
// reported only at final review, as the optimizer's error in the
// checkpoint's warnings; a nozzle size with no profile adds no warning.
func (e *Engine) Approve(s *State, answers map[string]interface{}) (*Checkpoint, error) {
	current, ok := s.CurrentCheckpoint()
	if !ok {
		return nil, fmt.Errorf("workflow: no checkpoint awaiting input")
	}

	s.applyAnswers(answers)
	current.Status = CheckpointApproved
	current.Answers = answers

	switch current.Stage {
	case StageRequirements:
		return e.toDesignReview(s), nil
	case StageDesignReview:
		return e.toMaterial(s), nil
	case StageMaterial:
		return e.toNozzle(s, answers), nil
	case StageNozzle:
		return e.toSlicingReview(s, answers), nil
	case StageSlicingReview:
		return e.toFinalReview(s, answers), nil
	case StageFinalReview:
		s.CurrentStage = StageReady
		s.IsComplete = true
		return current, nil
	default:
		return nil, fmt.Errorf("workflow: stage %q has no further transition", current.Stage)
	}
}

func (e *Engine) toDesignReview(s *State) *Checkpoint {
	s.CurrentStage = StageDesignReview

	if s.Design.WallThicknessMM == 0 {
		s.Design.WallThicknessMM = 2.0
	}
	if s.Design.ClearanceMM == 0 {
		s.Design.ClearanceMM = 0.3
	}
	s.Design.NeedsGrip = s.Intent.NeedsGrip
	if primary, ok := s.Intent.Dimensions["primary"]; ok {
		if mm, err := fmtDimension(primary); err == nil {
			s.Design.TubeDiameterMM = mm
		}
	}

	suggestions := reviewDesign(s.Design, s.Intent.Category, s.Material, s.NozzleDiameterMM)

	var warnings []string
	for _, sg := range suggestions {
		if sg.Priority == PriorityCritical {
			warnings = append(warnings, sg.Title)
		}
	}

	cp := Checkpoint{
		Stage:          StageDesignReview,
		Title:          "Design Review",
		Description:    "Review your design parameters.",
		Status:         CheckpointWaitingInput,
		Suggestions:    suggestions,
		Warnings:       warnings,
		AutoApprovable: !hasCritical(suggestions),
		CreatedAt:      time.Now(),
	}
	s.Checkpoints = append(s.Checkpoints, cp)
	return &s.Checkpoints[len(s.Checkpoints)-1]
}

func (e *Engine) toMaterial(s *State) *Checkpoint {
	s.CurrentStage = StageMaterial

	var warnings []string
	if s.Intent.NeedsFlex {
		warnings = append(warnings, "your design needs flexibility - TPU is recommended")
	}
	if s.Intent.Waterproof {
		warnings = append(warnings, "for waterproof parts, PETG works better than PLA")
	}
	if s.Intent.HeatResistant {
		warnings = append(warnings, "for heat resistance, use PC or PETG, not PLA")
	}

	cp := Checkpoint{
		Stage:       StageMaterial,
		Title:       "Material Selection",
		Description: "Choose your filament material.",
		Status:      CheckpointWaitingInput,
		Warnings:    warnings,
		CreatedAt:   time.Now(),
	}
	s.Checkpoints = append(s.Checkpoints, cp)
	return &s.Checkpoints[len(s.Checkpoints)-1]
}

func (e *Engine) toNozzle(s *State, answers map[string]interface{}) *Checkpoint {
	if v, ok := answers["material"].(string); ok {
		s.Material = v
	}
	s.CurrentStage = StageNozzle

	abrasive := s.Intent.Abrasive
	if profile, ok := materials.LookupFilament(s.Material); ok {
		abrasive = abrasive || profile.Flags.IsAbrasive
	}
	partSize := 50.0
	switch s.Intent.SizeCategory {
	case "large":
		partSize = 200
	case "medium":
		partSize = 100
	}

	recommended, reason := materials.RecommendNozzle(partSize, s.Intent.FineDetail, abrasive, s.Intent.SpeedPriority)

	cp := Checkpoint{
		Stage:          StageNozzle,
		Title:          "Nozzle Selection",
		Description:    fmt.Sprintf("Recommendation: %s", reason),
		Status:         CheckpointWaitingInput,
		AutoApprovable: true,
		CreatedAt:      time.Now(),
		Answers:        map[string]interface{}{"recommended_diameter": recommended.Diameter},
	}
	s.Checkpoints = append(s.Checkpoints, cp)
	return &s.Checkpoints[len(s.Checkpoints)-1]
}

func (e *Engine) toSlicingReview(s *State, answers map[string]interface{}) *Checkpoint {
	if v, ok := answers["nozzle"].(float64); ok {
		s.NozzleDiameterMM = v
	}
	s.CurrentStage = StageSlicingReview

	var warnings []string
	if profile, ok := materials.LookupFilament(s.Material); ok {
		if !profile.Flags.FeederCompatibleSwapper {
			warnings = append(warnings, fmt.Sprintf("%s must be fed directly, not through a spool swapper", profile.Name))
		}
		if profile.SpecialNotes != "" {
			warnings = append(warnings, profile.SpecialNotes)
		}
		if profile.Flags.IsFlexible {
			warnings = append(warnings, "flexible filament: keep print speed at 25-30mm/s")
		}
	}

	cp := Checkpoint{
		Stage:       StageSlicingReview,
		Title:       "Print Quality Settings",
		Description: "How should we slice your model?",
		Status:      CheckpointWaitingInput,
		Warnings:    warnings,
		CreatedAt:   time.Now(),
	}
	s.Checkpoints = append(s.Checkpoints, cp)
	return &s.Checkpoints[len(s.Checkpoints)-1]
}

func (e *Engine) toFinalReview(s *State, answers map[string]interface{}) *Checkpoint {
	s.CurrentStage = StageFinalReview

	quality := QualityStandard
	if v, ok := answers["quality"].(string); ok {
		if _, known := qualityPresets[QualityPreset(v)]; known {
			quality = QualityPreset(v)
		}
	}
	useCase := UseCaseFunctional
	if v, ok := answers["use_case"].(string); ok {
		useCase = UseCase(v)
	}

	params := assembleSlicingParams(quality, useCase, s.Material, s.NozzleDiameterMM)

	var warnings []string
	if result, err := optimizer.Optimize(params, s.Material, s.NozzleDiameterMM, 21); err == nil {
		params = result.Params
		warnings = result.Warnings
	} else {
		warnings = append(warnings, err.Error())
	}

	s.Slicing = params

	cp := Checkpoint{
		Stage:       StageFinalReview,
		Title:       "Ready to Generate",
		Description: "Review your settings before slicing.",
		Status:      CheckpointWaitingInput,
		Warnings:    warnings,
		CreatedAt:   time.Now(),
	}
	s.Checkpoints = append(s.Checkpoints, cp)
	return &s.Checkpoints[len(s.Checkpoints)-1]
}

// assembleSlicingParams builds a starting Params from the quality
// preset and use-case adjustments, before the Optimizer's
// material-envelope pass runs over it.
func assembleSlicingParams(quality QualityPreset, useCase UseCase, materialName string, nozzleDiameterMM float64) optimizer.Params {
	preset, ok := qualityPresets[quality]
	if !ok {
		preset = qualityPresets[QualityStandard]
	}

	layerHeight := roundToStep(nozzleDiameterMM*preset.layerHeightRatio, 0.04)

	walls := preset.wallLoops
	infill := preset.infillDensity
	pattern := "grid"

	switch useCase {
	case UseCaseFunctional:
		if walls < 4 {
			walls = 4
		}
		if infill < 25 {
			infill = 25
		}
		pattern = "gyroid"
	case UseCaseDecorative:
		if infill > 15 {
			infill = 15
		}
	case UseCasePrototype:
		if infill > 10 {
			infill = 10
		}
		walls = 2
	case UseCaseGift:
		if walls < 4 {
			walls = 4
		}
	}

	params := optimizer.Params{
		LayerHeight:      layerHeight,
		WallLoops:        walls,
		InfillDensity:    infill,
		InfillPattern:    pattern,
		FirstLayerSpeed:  25,
		FirstLayerHeight: 1.2 * layerHeight,
		BrimWidth:        5,
	}

	profile, ok := materials.LookupFilament(materialName)
	if !ok {
		return params
	}

	if profile.WarpTendency == materials.WarpMedium || profile.WarpTendency == materials.WarpHigh {
		params.BrimWidth = 8
	}

	maxSpeed := profile.MaxPrintSpeed * preset.speedFactor
	params.OuterWallSpeed = math.Min(maxSpeed*0.6, 80)
	params.InnerWallSpeed = math.Min(maxSpeed*0.8, 120)
	params.InfillSpeed = math.Min(maxSpeed, 150)
	params.RetractionLength = profile.RetractionLength
	params.RetractionSpeed = profile.RetractionSpeed
	params.NozzleTemp = profile.NozzleTemp.Optimal
	params.NozzleTempSet = true
	params.BedTemp = profile.BedTemp.Optimal
	params.BedTempSet = true

	return params
}

func roundToStep(value, step float64) float64 {
	return math.Round(value/step) * step
}
