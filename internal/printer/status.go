package printer

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// GcodeState is the raw execution state reported by the printer.
type GcodeState string

const (
	GcodeIdle    GcodeState = "IDLE"
	GcodeRunning GcodeState = "RUNNING"
	GcodePause   GcodeState = "PAUSE"
	GcodeFinish  GcodeState = "FINISH"
	GcodeFailed  GcodeState = "FAILED"
	GcodeUnknown GcodeState = "UNKNOWN"
)

// State is the operational state derived from GcodeState via a fixed
// mapping.
type State string

const (
	StateIdle     State = "idle"
	StatePrinting State = "printing"
	StatePaused   State = "paused"
	StateFinished State = "finished"
	StateFailed   State = "failed"
	StateUnknown  State = "unknown"
)

var gcodeToState = map[GcodeState]State{
	GcodeIdle:    StateIdle,
	GcodeRunning: StatePrinting,
	GcodePause:   StatePaused,
	GcodeFinish:  StateFinished,
	GcodeFailed:  StateFailed,
}

// TemperatureReading pairs a current reading with its target.
type TemperatureReading struct {
	Current float64
	Target  float64
}

// AtTarget reports whether the reading is within 2 degrees of target.
func (t TemperatureReading) AtTarget() bool {
	return math.Abs(t.Current-t.Target) <= 2.0
}

// Progress is the current print's completion state.
type Progress struct {
	Percentage           float64
	LayerCurrent         int
	LayerTotal           int
	TimeElapsedMinutes   int
	TimeRemainingMinutes int
	GcodeState           GcodeState
}

// IsPrinting reports whether the gcode state is actively running.
func (p Progress) IsPrinting() bool { return p.GcodeState == GcodeRunning }

// IsFinished reports whether the gcode state is FINISH.
func (p Progress) IsFinished() bool { return p.GcodeState == GcodeFinish }

// Status is the full, structured printer status parsed from one MQTT
// report.
type Status struct {
	Connected  bool
	LastUpdate time.Time

	State      State
	GcodeState GcodeState

	NozzleTemp  *TemperatureReading
	BedTemp     *TemperatureReading
	ChamberTemp *float64

	Progress Progress

	GcodeFile   string
	SubtaskName string
	PrintType   string

	FanSpeedPercent int
	SpeedLevel      int
	WifiSignal      int

	PrintError   int
	HWSwitchState int

	Raw map[string]interface{}
}

// reportEnvelope is the shape of a printer MQTT report: a top-level
// "print" object carrying the fields we parse.
type reportEnvelope struct {
	Print map[string]interface{} `json:"print"`
}

func fieldString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func fieldFloat(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func fieldInt(m map[string]interface{}, key string) int {
	f, ok := fieldFloat(m, key)
	if !ok {
		return 0
	}
	return int(f)
}

// ParseReport parses a raw MQTT report payload into a Status.
func ParseReport(raw []byte) (Status, error) {
	var env reportEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Status{}, err
	}

	var rawMap map[string]interface{}
	_ = json.Unmarshal(raw, &rawMap)

	s := Status{
		Connected:  true,
		LastUpdate: time.Now(),
		Raw:        rawMap,
	}

	p := env.Print
	if p == nil {
		p = map[string]interface{}{}
	}

	gcodeState := GcodeState(fieldString(p, "gcode_state"))
	if gcodeState == "" {
		gcodeState = GcodeUnknown
	}
	s.GcodeState = gcodeState
	if mapped, ok := gcodeToState[gcodeState]; ok {
		s.State = mapped
	} else {
		s.State = StateUnknown
	}

	if cur, ok1 := fieldFloat(p, "nozzle_temper"); ok1 {
		if tgt, ok2 := fieldFloat(p, "nozzle_target_temper"); ok2 {
			s.NozzleTemp = &TemperatureReading{Current: cur, Target: tgt}
		}
	}
	if cur, ok1 := fieldFloat(p, "bed_temper"); ok1 {
		if tgt, ok2 := fieldFloat(p, "bed_target_temper"); ok2 {
			s.BedTemp = &TemperatureReading{Current: cur, Target: tgt}
		}
	}
	if chamber, ok := fieldFloat(p, "chamber_temper"); ok {
		s.ChamberTemp = &chamber
	}

	percentage, _ := fieldFloat(p, "mc_percent")
	printTimeSecs := fieldInt(p, "mc_print_time")
	s.Progress = Progress{
		Percentage:           percentage,
		LayerCurrent:         fieldInt(p, "layer_num"),
		LayerTotal:           fieldInt(p, "total_layer_num"),
		TimeElapsedMinutes:   printTimeSecs / 60,
		TimeRemainingMinutes: fieldInt(p, "mc_remaining_time"),
		GcodeState:           gcodeState,
	}

	s.GcodeFile = fieldString(p, "gcode_file")
	s.SubtaskName = fieldString(p, "subtask_name")
	s.PrintType = fieldString(p, "print_type")

	s.FanSpeedPercent = fieldInt(p, "cooling_fan_speed")
	s.SpeedLevel = fieldInt(p, "spd_lvl")
	if s.SpeedLevel == 0 {
		s.SpeedLevel = 1
	}
	s.WifiSignal = fieldInt(p, "wifi_signal")

	s.PrintError = fieldInt(p, "print_error")
	s.HWSwitchState = fieldInt(p, "hw_switch_state")

	return s, nil
}

// HasError reports whether the printer is reporting a nonzero error
// code.
func (s Status) HasError() bool { return s.PrintError != 0 }

// Summary renders a short human-readable report, mirroring the
// reference implementation's get_summary text shape.
func (s Status) Summary() string {
	lines := []string{"Printer State: " + string(s.State)}
	if s.NozzleTemp != nil {
		lines = append(lines, sprintTemp("Nozzle", *s.NozzleTemp))
	}
	if s.BedTemp != nil {
		lines = append(lines, sprintTemp("Bed", *s.BedTemp))
	}
	if s.State == StatePrinting {
		lines = append(lines, sprintProgress(s.Progress))
	}
	if s.SubtaskName != "" {
		lines = append(lines, "Job: "+s.SubtaskName)
	}
	if s.HasError() {
		lines = append(lines, sprintError(s.PrintError))
	}
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func sprintTemp(label string, t TemperatureReading) string {
	return fmt.Sprintf("%s: %.0f°C / %.0f°C", label, t.Current, t.Target)
}

func sprintProgress(p Progress) string {
	return fmt.Sprintf("Progress: %.1f%% (layer %d/%d, ~%d min remaining)",
		p.Percentage, p.LayerCurrent, p.LayerTotal, p.TimeRemainingMinutes)
}

func sprintError(code int) string {
	return fmt.Sprintf("Error code: %d", code)
}
