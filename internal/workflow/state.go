// Package workflow implements the guided, checkpoint-driven state
// machine that walks a novice user from a free-form description to a
// ready-to-print SlicingParameterSet.
package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vibeprint/printctl/internal/dimension"
	"github.com/vibeprint/printctl/internal/optimizer"
)

// Stage is one step of the guided workflow's fixed sequence.
type Stage string

const (
	StageRequirements  Stage = "requirements"
	StageDesignReview  Stage = "design-review"
	StageMaterial      Stage = "material"
	StageNozzle        Stage = "nozzle"
	StageSlicingReview Stage = "slicing-review"
	StageFinalReview   Stage = "final-review"
	StageReady         Stage = "ready"
	StagePrinting      Stage = "printing"
	StageComplete      Stage = "complete"
)

// stageOrder lists every stage in sequence. Engine.Approve drives the
// requirements..ready span (approving final review moves the state to
// ready); printing and complete are reached by the orchestrator
// outside this engine.
var stageOrder = []Stage{
	StageRequirements, StageDesignReview, StageMaterial, StageNozzle,
	StageSlicingReview, StageFinalReview, StageReady, StagePrinting, StageComplete,
}

// CheckpointStatus is a checkpoint's position in its own tiny
// lifecycle.
type CheckpointStatus string

const (
	CheckpointWaitingInput CheckpointStatus = "waiting-input"
	CheckpointApproved     CheckpointStatus = "approved"
)

// SuggestionPriority ranks a checkpoint suggestion's urgency.
type SuggestionPriority string

const (
	PriorityCritical    SuggestionPriority = "critical"
	PriorityRecommended SuggestionPriority = "recommended"
	PriorityOptional    SuggestionPriority = "optional"
)

// Suggestion is one piece of advice attached to a checkpoint.
type Suggestion struct {
	Title        string
	Description  string
	Priority     SuggestionPriority
	WhyItMatters string
	IfIgnored    string
	AutoFixable  bool
	FixParameter string
	SuggestedValue interface{}
}

// Checkpoint is one stop in the workflow requiring explicit approval.
type Checkpoint struct {
	Stage       Stage
	Title       string
	Description string
	Status      CheckpointStatus
	Suggestions []Suggestion
	Warnings    []string
	AutoApprovable bool
	Answers     map[string]interface{}
	CreatedAt   time.Time
}

// ParsedIntent is the (already-parsed) shape of a novice user's
// free-form request. The parsing itself is out of this package's
// scope — a workflow is started from an already-parsed intent.
type ParsedIntent struct {
	Category       string
	Dimensions     map[string]string // e.g. "primary" -> "35mm"
	NeedsFlex      bool
	Waterproof     bool
	HeatResistant  bool
	NeedsGrip      bool
	SizeCategory   string // small, medium, large
	FineDetail     bool
	Abrasive       bool
	SpeedPriority  bool
}

// DesignParameterSet is the accumulated, novice-editable design
// description driving material/nozzle/slicing decisions.
type DesignParameterSet struct {
	WallThicknessMM float64
	ClearanceMM     float64
	TubeDiameterMM  float64
	NeedsGrip       bool
	AddGripTexture  bool
}

var fitClearance = map[string]float64{
	"press": 0.0, "tight": 0.15, "snug": 0.3, "sliding": 0.5, "loose": 1.0,
}

var strengthWallThickness = map[string]float64{
	"light": 1.5, "medium": 2.0, "heavy": 3.0, "extreme": 4.0,
}

// State is one workflow's full persisted state. Every mutation goes
// through Engine.Approve, which touches exactly one WorkflowID's
// state at a time.
type State struct {
	WorkflowID   string
	CreatedAt    time.Time
	CurrentStage Stage
	Checkpoints  []Checkpoint

	Intent       ParsedIntent
	Design       DesignParameterSet
	Material     string
	NozzleDiameterMM float64
	Slicing      optimizer.Params

	IsComplete bool
}

// New starts a new workflow from an already-parsed intent and appends
// its first (requirements) checkpoint.
func New(intent ParsedIntent) *State {
	s := &State{
		WorkflowID:   uuid.New().String()[:8],
		CreatedAt:    time.Now(),
		CurrentStage: StageRequirements,
		Intent:       intent,
		Material:     "bambu_pla_basic",
		NozzleDiameterMM: 0.4,
	}
	s.Checkpoints = append(s.Checkpoints, Checkpoint{
		Stage:       StageRequirements,
		Title:       "Understanding Your Requirements",
		Description: "Confirm or adjust what was understood from your description.",
		Status:      CheckpointWaitingInput,
		CreatedAt:   time.Now(),
	})
	return s
}

// CurrentCheckpoint returns the most recent waiting-input checkpoint,
// or false if none is pending.
func (s *State) CurrentCheckpoint() (*Checkpoint, bool) {
	for i := len(s.Checkpoints) - 1; i >= 0; i-- {
		if s.Checkpoints[i].Status == CheckpointWaitingInput {
			return &s.Checkpoints[i], true
		}
	}
	return nil, false
}

// applyAnswers merges named answers into the workflow's design
// parameters, per the fixed fit-type/strength-level tables.
func (s *State) applyAnswers(answers map[string]interface{}) {
	if v, ok := answers["fit_type"].(string); ok {
		if clearance, known := fitClearance[v]; known {
			s.Design.ClearanceMM = clearance
		}
	}
	if v, ok := answers["strength_level"].(string); ok {
		if wall, known := strengthWallThickness[v]; known {
			s.Design.WallThicknessMM = wall
		}
	}
	if v, ok := answers["wall_thickness_mm"].(float64); ok {
		s.Design.WallThicknessMM = v
	}
	if v, ok := answers["clearance_mm"].(float64); ok {
		s.Design.ClearanceMM = v
	}
	if v, ok := answers["material"].(string); ok {
		s.Material = v
	}
	if v, ok := answers["nozzle"].(float64); ok {
		s.NozzleDiameterMM = v
	}
	if v, ok := answers["add_grip_texture"].(bool); ok {
		s.Design.AddGripTexture = v
	}
}

func fmtDimension(value string) (float64, error) {
	m, err := dimension.Parse(value)
	if err != nil {
		return 0, fmt.Errorf("workflow: parsing dimension %q: %w", value, err)
	}
	return m.MM(), nil
}
