package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController() *Controller {
	return NewController(Endpoint{Host: "10.0.0.5", Port: 8883, AccessCode: "secret", Serial: "01P00A000000001"})
}

func TestControllerFirstPrintingTransitionSetsStartedAt(t *testing.T) {
	c := newTestController()
	c.mu.Lock()
	c.currentJob = &PrintJob{JobID: "abc12345", Status: JobPending}
	c.mu.Unlock()

	c.handleStatusUpdate(Status{State: StatePrinting, Progress: Progress{Percentage: 10}})

	job, ok := c.CurrentJob()
	require.True(t, ok)
	assert.Equal(t, JobPrinting, job.Status)
	assert.Equal(t, 10.0, job.ProgressPercent)
	require.NotNil(t, job.StartedAt)

	startedAt := *job.StartedAt
	c.handleStatusUpdate(Status{State: StatePrinting, Progress: Progress{Percentage: 20}})
	job2, _ := c.CurrentJob()
	assert.Equal(t, startedAt, *job2.StartedAt, "started_at must not move on subsequent printing updates")
	assert.Equal(t, 20.0, job2.ProgressPercent)
}

func TestControllerFinishedTransitionMarksCompleted(t *testing.T) {
	c := newTestController()
	c.mu.Lock()
	c.currentJob = &PrintJob{JobID: "abc12345", Status: JobPrinting}
	c.mu.Unlock()

	c.handleStatusUpdate(Status{State: StateFinished})

	job, ok := c.CurrentJob()
	require.True(t, ok)
	assert.Equal(t, JobCompleted, job.Status)
	assert.Equal(t, 100.0, job.ProgressPercent)
	assert.NotNil(t, job.CompletedAt)
}

func TestControllerFailedTransitionRecordsErrorCode(t *testing.T) {
	c := newTestController()
	c.mu.Lock()
	c.currentJob = &PrintJob{JobID: "abc12345", Status: JobPrinting}
	c.mu.Unlock()

	c.handleStatusUpdate(Status{State: StateFailed, PrintError: 117506068})

	job, ok := c.CurrentJob()
	require.True(t, ok)
	assert.Equal(t, JobFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "117506068")
}

func TestControllerStatusFansOutToSubscribersAndSwallowsPanics(t *testing.T) {
	c := newTestController()

	var calls int
	c.RegisterStatusCallback(func(Status) { panic("boom") })
	c.RegisterStatusCallback(func(Status) { calls++ })

	assert.NotPanics(t, func() {
		c.handleStatusUpdate(Status{State: StateIdle})
	})
	assert.Equal(t, 1, calls)
}

func TestControllerSubmitWithoutConnectionFails(t *testing.T) {
	c := newTestController()
	_, err := c.Submit("/tmp/part.3mf", "part.3mf", SubmitOptions{})
	assert.Error(t, err)

	_, ok := c.CurrentJob()
	assert.False(t, ok, "a failed submit must not install a tracked job")
}

func TestControllerPauseResumeStopRequireActiveJob(t *testing.T) {
	c := newTestController()
	assert.Error(t, c.Pause())
	assert.Error(t, c.Resume())
	assert.Error(t, c.Stop())
}

func TestControllerSetSpeedLevelValidatesRange(t *testing.T) {
	c := newTestController()
	assert.Error(t, c.SetSpeedLevel(0))
	assert.Error(t, c.SetSpeedLevel(5))
}

func TestControllerSetFanSpeedValidatesRange(t *testing.T) {
	c := newTestController()
	assert.Error(t, c.SetFanSpeed(-1))
	assert.Error(t, c.SetFanSpeed(101))
}

func TestControllerJobSummaryEmptyWithoutJob(t *testing.T) {
	c := newTestController()
	assert.Equal(t, "", c.JobSummary())
}
