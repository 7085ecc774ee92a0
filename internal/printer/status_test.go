package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReportMapsGcodeStateToOperationalState(t *testing.T) {
	cases := map[GcodeState]State{
		GcodeIdle:    StateIdle,
		GcodeRunning: StatePrinting,
		GcodePause:   StatePaused,
		GcodeFinish:  StateFinished,
		GcodeFailed:  StateFailed,
	}
	for gcode, want := range cases {
		payload := []byte(`{"print":{"gcode_state":"` + string(gcode) + `"}}`)
		status, err := ParseReport(payload)
		require.NoError(t, err)
		assert.Equal(t, want, status.State, "gcode state %s", gcode)
		assert.Equal(t, gcode, status.GcodeState)
	}
}

func TestParseReportUnknownGcodeStateMapsToUnknown(t *testing.T) {
	status, err := ParseReport([]byte(`{"print":{"gcode_state":"BOGUS"}}`))
	require.NoError(t, err)
	assert.Equal(t, StateUnknown, status.State)
}

func TestParseReportExtractsTemperaturesProgressAndJobInfo(t *testing.T) {
	payload := []byte(`{
		"print": {
			"gcode_state": "RUNNING",
			"nozzle_temper": 210.0,
			"nozzle_target_temper": 215.0,
			"bed_temper": 60.0,
			"bed_target_temper": 60.0,
			"chamber_temper": 35.5,
			"mc_percent": 42.5,
			"layer_num": 80,
			"total_layer_num": 200,
			"mc_print_time": 3600,
			"mc_remaining_time": 55,
			"gcode_file": "part.gcode",
			"subtask_name": "Bracket",
			"print_type": "local",
			"cooling_fan_speed": 80,
			"spd_lvl": 2,
			"wifi_signal": -45,
			"print_error": 0
		}
	}`)

	status, err := ParseReport(payload)
	require.NoError(t, err)

	require.NotNil(t, status.NozzleTemp)
	assert.Equal(t, 210.0, status.NozzleTemp.Current)
	assert.Equal(t, 215.0, status.NozzleTemp.Target)
	assert.False(t, status.NozzleTemp.AtTarget())

	require.NotNil(t, status.BedTemp)
	assert.True(t, status.BedTemp.AtTarget())

	require.NotNil(t, status.ChamberTemp)
	assert.Equal(t, 35.5, *status.ChamberTemp)

	assert.Equal(t, 42.5, status.Progress.Percentage)
	assert.Equal(t, 80, status.Progress.LayerCurrent)
	assert.Equal(t, 200, status.Progress.LayerTotal)
	assert.Equal(t, 60, status.Progress.TimeElapsedMinutes)
	assert.Equal(t, 55, status.Progress.TimeRemainingMinutes)
	assert.True(t, status.Progress.IsPrinting())

	assert.Equal(t, "Bracket", status.SubtaskName)
	assert.Equal(t, 80, status.FanSpeedPercent)
	assert.Equal(t, 2, status.SpeedLevel)
	assert.False(t, status.HasError())
}

func TestParseReportDefaultsSpeedLevelToOneWhenAbsent(t *testing.T) {
	status, err := ParseReport([]byte(`{"print":{"gcode_state":"IDLE"}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, status.SpeedLevel)
}

func TestStatusSummaryIncludesErrorWhenPresent(t *testing.T) {
	status, err := ParseReport([]byte(`{"print":{"gcode_state":"FAILED","print_error":16908318}}`))
	require.NoError(t, err)
	summary := status.Summary()
	assert.Contains(t, summary, "Error code: 16908318")
}
