// Package facade is the thin adapter between external tool calls and
// the components underneath: workflow engine, printer controller,
// camera detector, slicer invoker, iteration store, and recommender.
// Every method accepts one structured input and returns a
// JSON-encoded string; no error ever crosses a method boundary —
// failures of kinds 1-4 in the error taxonomy are folded into the
// returned document as {"error": "..."}. Only a kind-5 programmer
// error (a nil required dependency) panics, since it has no
// caller-actionable recovery.
package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vibeprint/printctl/internal/camera"
	"github.com/vibeprint/printctl/internal/config"
	"github.com/vibeprint/printctl/internal/dimension"
	"github.com/vibeprint/printctl/internal/iteration"
	"github.com/vibeprint/printctl/internal/materials"
	"github.com/vibeprint/printctl/internal/printer"
	"github.com/vibeprint/printctl/internal/recommender"
	"github.com/vibeprint/printctl/internal/slicer"
	"github.com/vibeprint/printctl/internal/workflow"
)

// Facade owns every long-lived component the tool-invocation surface
// routes to. Exactly one instance is constructed at startup; it is
// safe for concurrent use, since each component it wraps already
// serializes its own mutable state.
type Facade struct {
	cfg *config.Config

	printerCtrl *printer.Controller
	camSession  *camera.Session
	detector    *camera.Detector
	slicerInv   *slicer.Invoker
	store       *iteration.Store
	engine      *workflow.Engine

	mu        sync.Mutex
	workflows map[string]*workflow.State

	events *eventHub
}

// New wires a Facade from already-constructed components. A nil
// printerCtrl/camSession/store is tolerated — the corresponding
// methods then report a configuration error instead of panicking,
// matching a printer-less or camera-less deployment.
func New(cfg *config.Config, printerCtrl *printer.Controller, camSession *camera.Session, slicerInv *slicer.Invoker, store *iteration.Store) *Facade {
	f := &Facade{
		cfg:         cfg,
		printerCtrl: printerCtrl,
		camSession:  camSession,
		detector:    camera.NewDetector(camera.DefaultConfig()),
		slicerInv:   slicerInv,
		store:       store,
		engine:      workflow.NewEngine(),
		workflows:   make(map[string]*workflow.State),
		events:      newEventHub(),
	}
	if printerCtrl != nil {
		printerCtrl.RegisterStatusCallback(func(status printer.Status) {
			f.events.broadcast(Event{Type: "printer_status", Payload: status})
		})
	}
	return f
}

func errorJSON(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}

func resultJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return errorJSON(fmt.Errorf("facade: encoding result: %w", err))
	}
	return string(b)
}

// --- Workflow surface -------------------------------------------------

// StartWorkflowRequest seeds a new guided workflow from an
// already-parsed intent (free-form description parsing is out of
// this facade's scope — callers parse upstream and hand in the
// structured result).
type StartWorkflowRequest struct {
	Intent workflow.ParsedIntent `json:"intent"`
}

// StartWorkflow creates a new workflow and returns its initial state.
func (f *Facade) StartWorkflow(req StartWorkflowRequest) string {
	s := workflow.New(req.Intent)

	f.mu.Lock()
	f.workflows[s.WorkflowID] = s
	f.mu.Unlock()

	f.events.broadcast(Event{Type: "workflow_started", Payload: s})
	return resultJSON(s)
}

// GetWorkflow returns the persisted state for workflowID, or a
// structured error if no such workflow is registered.
func (f *Facade) GetWorkflow(workflowID string) string {
	s, ok := f.lookupWorkflow(workflowID)
	if !ok {
		return errorJSON(fmt.Errorf("facade: no such workflow %q", workflowID))
	}
	return resultJSON(s)
}

// ApproveCheckpointRequest carries the answers for the workflow's
// current waiting-input checkpoint.
type ApproveCheckpointRequest struct {
	WorkflowID string                 `json:"workflow_id"`
	Answers    map[string]interface{} `json:"answers"`
}

// ApproveCheckpoint approves the current checkpoint and returns the
// next one.
func (f *Facade) ApproveCheckpoint(req ApproveCheckpointRequest) string {
	s, ok := f.lookupWorkflow(req.WorkflowID)
	if !ok {
		return errorJSON(fmt.Errorf("facade: no such workflow %q", req.WorkflowID))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cp, err := f.engine.Approve(s, req.Answers)
	if err != nil {
		return errorJSON(err)
	}
	f.events.broadcast(Event{Type: "workflow_checkpoint", Payload: cp})
	return resultJSON(cp)
}

func (f *Facade) lookupWorkflow(id string) (*workflow.State, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.workflows[id]
	return s, ok
}

// --- Printer surface ---------------------------------------------------

// GetPrinterStatus returns the last-known printer status.
func (f *Facade) GetPrinterStatus() string {
	if f.printerCtrl == nil {
		return errorJSON(fmt.Errorf("facade: no printer configured"))
	}
	status, ok := f.printerCtrl.CurrentStatus()
	if !ok {
		return resultJSON(map[string]interface{}{"connected": false})
	}
	return resultJSON(status)
}

// SubmitPrintRequest names the model to submit and its print options.
type SubmitPrintRequest struct {
	FilePath string                 `json:"file_path"`
	FileName string                 `json:"file_name"`
	Options  printer.SubmitOptions  `json:"options"`
}

// SubmitPrint hands filePath to the printer controller.
func (f *Facade) SubmitPrint(req SubmitPrintRequest) string {
	if f.printerCtrl == nil {
		return errorJSON(fmt.Errorf("facade: no printer configured"))
	}
	job, err := f.printerCtrl.Submit(req.FilePath, req.FileName, req.Options)
	if err != nil {
		return errorJSON(err)
	}
	return resultJSON(job)
}

// PausePrint, ResumePrint, and CancelPrint forward to the controller.
func (f *Facade) PausePrint() string  { return f.controlResult(f.printerCtrl.Pause) }
func (f *Facade) ResumePrint() string { return f.controlResult(f.printerCtrl.Resume) }
func (f *Facade) CancelPrint() string { return f.controlResult(f.printerCtrl.Stop) }

func (f *Facade) controlResult(action func() error) string {
	if f.printerCtrl == nil {
		return errorJSON(fmt.Errorf("facade: no printer configured"))
	}
	if err := action(); err != nil {
		return errorJSON(err)
	}
	return resultJSON(map[string]bool{"ok": true})
}

// --- Camera / defect surface -------------------------------------------

// AnalyzeFrameRequest carries one captured frame plus an optional flag
// to set it as the session's reference (baseline) frame instead of
// analyzing it.
type AnalyzeFrameRequest struct {
	Frame        camera.Frame `json:"frame"`
	SetReference bool         `json:"set_reference"`
}

// AnalyzeFrame runs the defect analyzer over one frame.
func (f *Facade) AnalyzeFrame(req AnalyzeFrameRequest) string {
	if req.SetReference {
		f.detector.SetReferenceFrame(req.Frame)
		return resultJSON(map[string]bool{"ok": true})
	}
	result := f.detector.AnalyzeFrame(req.Frame)
	return resultJSON(result)
}

// CaptureAndAnalyze pulls one frame from the camera session and runs
// it through the detector in one call.
func (f *Facade) CaptureAndAnalyze(ctx context.Context) string {
	if f.camSession == nil {
		return errorJSON(fmt.Errorf("facade: no camera configured"))
	}
	frame, ok := f.camSession.CaptureOne(ctx)
	if !ok {
		return errorJSON(fmt.Errorf("facade: camera capture failed or timed out"))
	}
	return resultJSON(f.detector.AnalyzeFrame(frame))
}

// --- Slicer surface ------------------------------------------------------

// SliceRequest wraps one slicing invocation.
type SliceRequest struct {
	slicer.Request
}

// Slice runs the configured slicer over req.
func (f *Facade) Slice(req SliceRequest) string {
	if f.slicerInv == nil {
		return errorJSON(fmt.Errorf("facade: no slicer configured"))
	}
	return resultJSON(f.slicerInv.Slice(req.Request))
}

// ValidateModel checks a model file without invoking the slicer.
func (f *Facade) ValidateModel(modelPath string) string {
	ok, issues := slicer.ValidateModel(modelPath)
	return resultJSON(map[string]interface{}{"valid": ok, "issues": issues})
}

// --- Materials surface ---------------------------------------------------

// ListMaterials returns every registered filament profile.
func (f *Facade) ListMaterials() string {
	return resultJSON(materials.ListFilaments())
}

// CheckCompatibilityRequest carries the design's material requirements
// plus an optional allowlist of candidate material names. An empty
// Candidates list checks every registered filament.
type CheckCompatibilityRequest struct {
	Constraints materials.DesignConstraints `json:"constraints"`
	Candidates  []string                    `json:"candidates"`
}

// CheckMaterialCompatibility is the check_material_compatibility tool:
// it flags mismatches between a design's requirements and each
// candidate material's envelope, without picking a material outright.
func (f *Facade) CheckMaterialCompatibility(req CheckCompatibilityRequest) string {
	candidates := materials.ListFilaments()
	if len(req.Candidates) > 0 {
		named := make([]materials.FilamentProfile, 0, len(req.Candidates))
		for _, name := range req.Candidates {
			if profile, ok := materials.LookupFilament(name); ok {
				named = append(named, profile)
			}
		}
		candidates = named
	}
	return resultJSON(materials.CheckCompatibility(req.Constraints, candidates))
}

// --- Dimension surface ----------------------------------------------------

// TubeSqueezerRequest scales a model by the plain ratio between a
// target tube/bottle diameter and the model's original tube diameter
// (e.g. a toothpaste-tube squeezer resized for a lotion bottle).
// ClearanceMM is additional slack added to the target diameter before
// the ratio is taken; leave it at zero to scale by the diameter ratio
// alone.
type TubeSqueezerRequest struct {
	OriginalDiameterMM float64 `json:"original_diameter_mm"`
	TargetDiameterMM   float64 `json:"target_diameter_mm"`
	ClearanceMM        float64 `json:"clearance_mm"`
}

// ScaleModelRequest describes a scaling job either as a uniform
// per-axis target fit (CurrentDims/Target*) or as a tube-squeezer
// diameter-ratio scale (TubeSqueezer). When TubeSqueezer is set it
// takes precedence over the per-axis targets.
type ScaleModelRequest struct {
	CurrentDims         dimension.BoundingBox `json:"current_dims"`
	TargetWidth         string                `json:"target_width"`
	TargetDepth         string                `json:"target_depth"`
	TargetHeight        string                `json:"target_height"`
	TubeSqueezer        *TubeSqueezerRequest  `json:"tube_squeezer"`
	WallThicknessFactor float64               `json:"wall_thickness_factor"`
}

// ScaleModelResult is the scale_model tool's response: the computed
// factor, the resulting bounding box, and an optional wall-thickness
// advisory for large scale-ups.
type ScaleModelResult struct {
	Factor               float64               `json:"factor"`
	ScaledDims           dimension.BoundingBox `json:"scaled_dims"`
	WallThicknessNote    string                `json:"wall_thickness_note,omitempty"`
	WallThicknessFlagged bool                  `json:"wall_thickness_flagged"`
}

// ScaleModel is the scale_model tool: it computes the uniform scale
// factor needed to hit a target size (either a tube-squeezer diameter
// ratio or a per-axis bounding-box fit), applies it to the model's
// current bounding box, and flags when the resulting scale-up is large
// enough to warrant thicker walls.
func (f *Facade) ScaleModel(req ScaleModelRequest) string {
	var (
		factor float64
		err    error
	)

	if req.TubeSqueezer != nil {
		factor, err = dimension.TubeSqueezerScale(req.TubeSqueezer.OriginalDiameterMM, req.TubeSqueezer.TargetDiameterMM, req.TubeSqueezer.ClearanceMM)
	} else {
		target := dimension.TargetDimensions{}
		if target.Width, err = parseDimensionMM(req.TargetWidth); err == nil {
			if target.Depth, err = parseDimensionMM(req.TargetDepth); err == nil {
				if target.Height, err = parseDimensionMM(req.TargetHeight); err == nil {
					factor, err = dimension.UniformScaleFactor(req.CurrentDims, target)
				}
			}
		}
	}
	if err != nil {
		return errorJSON(err)
	}

	wallFactor := req.WallThicknessFactor
	if wallFactor == 0 {
		wallFactor = 1.2
	}
	note, flagged := dimension.WallThicknessAdvisory(factor, wallFactor)

	return resultJSON(ScaleModelResult{
		Factor:               factor,
		ScaledDims:           req.CurrentDims.Scale(factor),
		WallThicknessNote:    note,
		WallThicknessFlagged: flagged,
	})
}

// parseDimensionMM parses an optional free-form dimension string into
// millimeters; an empty string means "unconstrained" and returns 0.
func parseDimensionMM(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	m, err := dimension.Parse(s)
	if err != nil {
		return 0, err
	}
	return m.MM(), nil
}

// --- Iteration / recommender surface -------------------------------------

// CreateIterationRequest starts a new iteration record for a model.
type CreateIterationRequest struct {
	ModelName    string                       `json:"model_name"`
	ModelPath    string                       `json:"model_path"`
	ScaleFactor  float64                      `json:"scale_factor"`
	OriginalDims [3]float64                   `json:"original_dims"`
	ScaledDims   [3]float64                   `json:"scaled_dims"`
	Params       iteration.ParameterSnapshot  `json:"params"`
	PresetName   string                       `json:"preset_name"`
}

// CreateIteration persists a new pending iteration record.
func (f *Facade) CreateIteration(req CreateIterationRequest) string {
	if f.store == nil {
		return errorJSON(fmt.Errorf("facade: no iteration store configured"))
	}
	rec, err := f.store.Create(req.ModelName, req.ModelPath, req.ScaleFactor, req.OriginalDims, req.ScaledDims, req.Params, req.PresetName)
	if err != nil {
		return errorJSON(err)
	}
	return resultJSON(rec)
}

// RecordOutcomeRequest names the iteration and its terminal outcome.
type RecordOutcomeRequest struct {
	IterationID string            `json:"iteration_id"`
	Outcome     iteration.Outcome `json:"outcome"`
}

// RecordOutcome atomically writes a terminal (or in-progress) outcome
// onto an existing iteration.
func (f *Facade) RecordOutcome(req RecordOutcomeRequest) string {
	if f.store == nil {
		return errorJSON(fmt.Errorf("facade: no iteration store configured"))
	}
	rec, err := f.store.RecordOutcome(req.IterationID, req.Outcome)
	if err != nil {
		return errorJSON(err)
	}
	return resultJSON(rec)
}

// ListIterations returns the most recent iterations for modelName.
func (f *Facade) ListIterations(modelName string, limit int) string {
	if f.store == nil {
		return errorJSON(fmt.Errorf("facade: no iteration store configured"))
	}
	recs, err := f.store.ListForModel(modelName, limit)
	if err != nil {
		return errorJSON(err)
	}
	return resultJSON(recs)
}

// GetStatistics returns aggregate outcome statistics for modelName.
func (f *Facade) GetStatistics(modelName string) string {
	if f.store == nil {
		return errorJSON(fmt.Errorf("facade: no iteration store configured"))
	}
	stats, err := f.store.Statistics(modelName)
	if err != nil {
		return errorJSON(err)
	}
	return resultJSON(stats)
}

// RecommendRequest carries the current parameter set, the defects
// observed on the last attempt, and the model's iteration history.
type RecommendRequest struct {
	ModelName string                     `json:"model_name"`
	Current   recommender.CurrentParams  `json:"current"`
	Defects   []recommender.DefectKind   `json:"defects"`
	History   int                        `json:"history_limit"`
}

// Recommend returns a priority-ordered list of parameter adjustments,
// informed by modelName's recorded history when a store is configured.
func (f *Facade) Recommend(req RecommendRequest) string {
	var history []recommender.IterationSummary
	if f.store != nil && req.ModelName != "" {
		limit := req.History
		if limit <= 0 {
			limit = 10
		}
		recs, err := f.store.ListForModel(req.ModelName, limit)
		if err == nil {
			history = toSummaries(recs)
		}
	}
	return resultJSON(recommender.Recommend(req.Current, req.Defects, history))
}

func toSummaries(recs []iteration.Record) []recommender.IterationSummary {
	out := make([]recommender.IterationSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, recommender.IterationSummary{
			Status:         string(r.Status),
			Quality:        r.QualityScore,
			LayerHeight:    r.Parameters.LayerHeight,
			WallLoops:      float64(r.Parameters.WallLoops),
			InfillDensity:  r.Parameters.InfillDensity,
			OuterWallSpeed: r.Parameters.OuterWallSpeed,
		})
	}
	return out
}

// Connect brings up the printer and camera sessions with the
// configured timeouts (broker 10s, camera open 10s, per spec's
// concurrency model), returning which succeeded.
func (f *Facade) Connect() string {
	result := map[string]bool{}
	if f.printerCtrl != nil {
		result["printer"] = f.printerCtrl.Connect(10 * time.Second)
	}
	if f.camSession != nil {
		result["camera"] = f.camSession.Open(10 * time.Second)
	}
	return resultJSON(result)
}

// Disconnect tears down the printer and camera sessions.
func (f *Facade) Disconnect() {
	if f.printerCtrl != nil {
		f.printerCtrl.Disconnect()
	}
	if f.camSession != nil {
		f.camSession.Close()
	}
}
