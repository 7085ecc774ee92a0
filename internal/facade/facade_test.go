package facade

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeprint/printctl/internal/dimension"
	"github.com/vibeprint/printctl/internal/materials"
	"github.com/vibeprint/printctl/internal/recommender"
	"github.com/vibeprint/printctl/internal/workflow"
)

func unmarshalInto(raw string, v interface{}) error {
	return json.Unmarshal([]byte(raw), v)
}

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	return New(nil, nil, nil, nil, nil)
}

func TestStartWorkflowReturnsWorkflowIDAndRequirementsCheckpoint(t *testing.T) {
	f := newTestFacade(t)

	out := f.StartWorkflow(StartWorkflowRequest{Intent: workflow.ParsedIntent{Category: "bracket"}})

	assert.Contains(t, out, `"WorkflowID"`)
	assert.Contains(t, out, `"requirements"`)
	assert.NotContains(t, out, `"error"`)
}

func TestGetWorkflowUnknownIDReturnsErrorJSON(t *testing.T) {
	f := newTestFacade(t)

	out := f.GetWorkflow("nonexistent")
	assert.Contains(t, out, `"error"`)
}

func TestApproveCheckpointAdvancesStage(t *testing.T) {
	f := newTestFacade(t)
	started := f.StartWorkflow(StartWorkflowRequest{Intent: workflow.ParsedIntent{}})

	var startedState workflow.State
	require.NoError(t, unmarshalInto(started, &startedState))

	out := f.ApproveCheckpoint(ApproveCheckpointRequest{
		WorkflowID: startedState.WorkflowID,
		Answers:    map[string]interface{}{"fit_type": "snug"},
	})
	assert.Contains(t, out, `"design-review"`)
}

func TestGetPrinterStatusWithoutControllerReturnsConfigurationError(t *testing.T) {
	f := newTestFacade(t)
	out := f.GetPrinterStatus()
	assert.Contains(t, out, "no printer configured")
}

func TestSliceWithoutInvokerReturnsConfigurationError(t *testing.T) {
	f := newTestFacade(t)
	out := f.Slice(SliceRequest{})
	assert.Contains(t, out, "no slicer configured")
}

func TestValidateModelRejectsMissingFile(t *testing.T) {
	f := newTestFacade(t)
	out := f.ValidateModel("/nonexistent/model.stl")
	assert.Contains(t, out, `"valid":false`)
}

func TestListMaterialsReturnsNonEmptyArray(t *testing.T) {
	f := newTestFacade(t)
	out := f.ListMaterials()
	assert.Contains(t, out, "bambu_pla_basic")
}

func TestCheckMaterialCompatibilityFlagsFlexMismatch(t *testing.T) {
	f := newTestFacade(t)
	out := f.CheckMaterialCompatibility(CheckCompatibilityRequest{
		Constraints: materials.DesignConstraints{RequiresFlexible: true},
		Candidates:  []string{"bambu_pla_basic"},
	})
	assert.Contains(t, out, `"Compatible":false`)
	assert.Contains(t, out, "rigid")
}

func TestScaleModelTubeSqueezerMatchesScenario(t *testing.T) {
	f := newTestFacade(t)
	out := f.ScaleModel(ScaleModelRequest{
		CurrentDims: dimension.BoundingBox{Width: 38, Depth: 45, Height: 35},
		TubeSqueezer: &TubeSqueezerRequest{
			OriginalDiameterMM: 25,
			TargetDiameterMM:   65,
		},
	})

	var result ScaleModelResult
	require.NoError(t, unmarshalInto(out, &result))
	assert.InDelta(t, 2.6, result.Factor, 1e-9)
	assert.InDelta(t, 98.8, result.ScaledDims.Width, 0.01)
	assert.InDelta(t, 117.0, result.ScaledDims.Depth, 0.01)
	assert.InDelta(t, 91.0, result.ScaledDims.Height, 0.01)
}

func TestScaleModelPerAxisTargetPicksSmallestScale(t *testing.T) {
	f := newTestFacade(t)
	out := f.ScaleModel(ScaleModelRequest{
		CurrentDims:  dimension.BoundingBox{Width: 25, Depth: 25, Height: 50},
		TargetWidth:  "65mm",
		TargetHeight: "150mm",
	})

	var result ScaleModelResult
	require.NoError(t, unmarshalInto(out, &result))
	assert.InDelta(t, 2.6, result.Factor, 1e-9)
}

func TestRecommendWithoutStoreStillReturnsRecommendations(t *testing.T) {
	f := newTestFacade(t)
	out := f.Recommend(RecommendRequest{
		Current: recommender.CurrentParams{"outer_wall_speed": 60, "retraction_length": 0.8, "nozzle_temp": 220},
		Defects: []recommender.DefectKind{recommender.DefectStringing},
	})
	assert.Contains(t, out, "retraction_length")
	assert.NotContains(t, out, `"error"`)
}

func TestCreateIterationWithoutStoreReturnsConfigurationError(t *testing.T) {
	f := newTestFacade(t)
	out := f.CreateIteration(CreateIterationRequest{ModelName: "bracket"})
	assert.Contains(t, out, "no iteration store configured")
}

func TestDisconnectIsSafeWithoutSessions(t *testing.T) {
	f := newTestFacade(t)
	assert.NotPanics(t, func() { f.Disconnect() })
}

func TestConnectWithNoSessionsReturnsEmptyResult(t *testing.T) {
	f := newTestFacade(t)
	out := f.Connect()
	assert.Equal(t, "{}", out)
}
