// Package iteration is the durable store of print attempts: keyed by
// id, indexed by model name and creation time, with atomic
// outcome-recording and per-model statistics.
package iteration

import "time"

// Status is the lifecycle state of an iteration record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPrinting  Status = "printing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParameterSnapshot is the subset of a SlicingParameterSet recorded
// with each iteration, copied by value so the store never shares
// mutable state with a live workflow.
type ParameterSnapshot struct {
	LayerHeight      float64 `json:"layer_height"`
	WallLoops        int     `json:"wall_loops"`
	InfillDensity    float64 `json:"infill_density"`
	InfillPattern    string  `json:"infill_pattern"`
	OuterWallSpeed   float64 `json:"outer_wall_speed"`
	InnerWallSpeed   float64 `json:"inner_wall_speed"`
	NozzleTemp       float64 `json:"nozzle_temp"`
	BedTemp          float64 `json:"bed_temp"`
	RetractionLength float64 `json:"retraction_length"`
	RetractionSpeed  float64 `json:"retraction_speed"`
	BrimWidth        float64 `json:"brim_width"`
}

// Record is one print attempt, from submission through its terminal
// outcome.
type Record struct {
	IterationID  string    `json:"iteration_id"`
	ModelName    string    `json:"model_name"`
	ModelPath    string    `json:"model_path"`
	CreatedAt    time.Time `json:"created_at"`
	ScaleFactor  float64   `json:"scale_factor,omitempty"`
	OriginalDims [3]float64 `json:"original_dims,omitempty"`
	ScaledDims   [3]float64 `json:"scaled_dims,omitempty"`

	Parameters ParameterSnapshot `json:"parameters"`
	PresetName string            `json:"preset_name,omitempty"`

	Status        Status     `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	PrintTimeMin  float64    `json:"print_time_minutes,omitempty"`
	QualityScore  float64    `json:"quality_score,omitempty"`
	Defects       []string   `json:"defects,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Improvements  []string   `json:"improvement_suggestions,omitempty"`
}

// Statistics summarizes outcomes for one model across its iterations.
type Statistics struct {
	ModelName      string         `json:"model_name"`
	TotalAttempts  int            `json:"total_attempts"`
	SuccessRate    float64        `json:"success_rate"`
	AverageQuality float64        `json:"average_quality"`
	BestQuality    float64        `json:"best_quality"`
	DefectCounts   map[string]int `json:"defect_counts"`
	Latest         *Record        `json:"latest,omitempty"`
}
