package printer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus is a PrintJob's position in its state machine.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobPrinting  JobStatus = "printing"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// PrintJob tracks one submitted print from submission to its
// terminal state.
type PrintJob struct {
	JobID          string
	FilePath       string
	FileName       string
	SubmittedAt    time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	Status         JobStatus
	ProgressPercent float64
	ErrorMessage   string
}

// SubmitOptions are the print-specific flags accepted at submission,
// matching the fields the request payload forwards to the printer.
type SubmitOptions struct {
	UseAMS               bool
	AMSMapping           []int
	BedLeveling          bool
	FlowCalibration      bool
	VibrationCalibration bool
	LayerInspect         bool
	Timelapse            bool
}

// Controller owns a Session and tracks at most one PrintJob at a
// time, fanning parsed status out to registered subscribers.
type Controller struct {
	session *Session

	mu          sync.Mutex
	current     *Status
	currentJob  *PrintJob

	subMu       sync.Mutex
	subscribers []func(Status)
}

// NewController creates a controller around a fresh session for
// endpoint.
func NewController(endpoint Endpoint) *Controller {
	return &Controller{session: NewSession(endpoint)}
}

// Connect opens the underlying session and fetches initial status.
func (c *Controller) Connect(timeout time.Duration) bool {
	c.session.RegisterCallback("controller-status", c.handleStatusUpdate)
	if !c.session.Connect(timeout) {
		return false
	}
	c.RefreshStatus(time.Second)
	return true
}

// Disconnect tears down the session.
func (c *Controller) Disconnect() {
	c.session.UnregisterCallback("controller-status")
	c.session.Disconnect()
}

func (c *Controller) handleStatusUpdate(status Status) {
	c.mu.Lock()
	c.current = &status
	job := c.currentJob

	if job != nil {
		switch status.State {
		case StatePrinting:
			job.ProgressPercent = status.Progress.Percentage
			job.Status = JobPrinting
			if job.StartedAt == nil {
				now := time.Now()
				job.StartedAt = &now
			}
		case StateFinished:
			job.Status = JobCompleted
			job.ProgressPercent = 100.0
			now := time.Now()
			job.CompletedAt = &now
		case StateFailed:
			job.Status = JobFailed
			job.ErrorMessage = fmt.Sprintf("print error code: %d", status.PrintError)
		}
	}
	c.mu.Unlock()

	c.subMu.Lock()
	subs := make([]func(Status), len(c.subscribers))
	copy(subs, c.subscribers)
	c.subMu.Unlock()

	for _, sub := range subs {
		safeCall(sub, status)
	}
}

// safeCall invokes a subscriber callback, swallowing any panic so one
// broken subscriber can never take down status fan-out for the rest.
func safeCall(fn func(Status), status Status) {
	defer func() { recover() }()
	fn(status)
}

// RegisterStatusCallback registers fn to receive every parsed status
// update.
func (c *Controller) RegisterStatusCallback(fn func(Status)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// CurrentStatus returns the most recently parsed status, if any.
func (c *Controller) CurrentStatus() (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Status{}, false
	}
	return *c.current, true
}

// CurrentJob returns the currently tracked job, if any.
func (c *Controller) CurrentJob() (PrintJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentJob == nil {
		return PrintJob{}, false
	}
	return *c.currentJob, true
}

// RefreshStatus requests a fresh status push and updates current
// status from whatever report arrives (or was already cached).
func (c *Controller) RefreshStatus(wait time.Duration) (Status, bool) {
	status, ok := c.session.GetStatus(wait)
	if ok {
		c.mu.Lock()
		c.current = &status
		c.mu.Unlock()
	}
	return status, ok
}

// Submit registers a new PrintJob and sends the project_file print
// command. The command names Metadata/plate_1.gcode inside the file,
// so it targets sliced bundles with embedded G-code; the file itself
// is not inspected here. Actually placing it on the printer is the caller's
// responsibility (the ftp:// URL in the payload just names it).
func (c *Controller) Submit(filePath, fileName string, opts SubmitOptions) (PrintJob, error) {
	ams := opts.AMSMapping
	if ams == nil {
		ams = []int{0}
	}

	job := PrintJob{
		JobID:       uuid.New().String()[:8],
		FilePath:    filePath,
		FileName:    fileName,
		SubmittedAt: time.Now(),
		Status:      JobPending,
	}

	err := c.session.SendCommand("print", "project_file", map[string]interface{}{
		"param":          "Metadata/plate_1.gcode",
		"url":            fmt.Sprintf("ftp://%s/%s", c.session.endpoint.Host, fileName),
		"subtask_name":   fileName,
		"bed_leveling":   opts.BedLeveling,
		"flow_cali":      opts.FlowCalibration,
		"vibration_cali": opts.VibrationCalibration,
		"layer_inspect":  opts.LayerInspect,
		"timelapse":      opts.Timelapse,
		"use_ams":        opts.UseAMS,
		"ams_mapping":    ams,
	})
	if err != nil {
		return PrintJob{}, fmt.Errorf("printer: submitting job: %w", err)
	}

	c.mu.Lock()
	c.currentJob = &job
	c.mu.Unlock()
	return job, nil
}

// Pause pauses the current print.
func (c *Controller) Pause() error {
	c.mu.Lock()
	job := c.currentJob
	c.mu.Unlock()
	if job == nil {
		return fmt.Errorf("printer: no active job")
	}
	if err := c.session.SendCommand("print", "pause", nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.currentJob.Status = JobPaused
	c.mu.Unlock()
	return nil
}

// Resume resumes a paused print.
func (c *Controller) Resume() error {
	c.mu.Lock()
	job := c.currentJob
	c.mu.Unlock()
	if job == nil || job.Status != JobPaused {
		return fmt.Errorf("printer: no paused job to resume")
	}
	if err := c.session.SendCommand("print", "resume", nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.currentJob.Status = JobPrinting
	c.mu.Unlock()
	return nil
}

// Stop cancels the current print.
func (c *Controller) Stop() error {
	c.mu.Lock()
	job := c.currentJob
	c.mu.Unlock()
	if job == nil {
		return fmt.Errorf("printer: no active job")
	}
	if err := c.session.SendCommand("print", "stop", nil); err != nil {
		return err
	}
	now := time.Now()
	c.mu.Lock()
	c.currentJob.Status = JobCancelled
	c.currentJob.CompletedAt = &now
	c.mu.Unlock()
	return nil
}

// SetSpeedLevel sets the print speed level (1=silent .. 4=ludicrous).
func (c *Controller) SetSpeedLevel(level int) error {
	if level < 1 || level > 4 {
		return fmt.Errorf("printer: speed level must be 1-4, got %d", level)
	}
	return c.session.SendCommand("print", "print_speed", map[string]interface{}{"param": fmt.Sprintf("%d", level)})
}

// SetFanSpeed sets the part-cooling fan speed as a 0-100 percentage.
func (c *Controller) SetFanSpeed(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("printer: fan speed must be 0-100, got %d", percent)
	}
	pwm := int(float64(percent) * 2.55)
	return c.SendGCode(fmt.Sprintf("M106 P1 S%d", pwm))
}

// SendGCode sends a raw G-code line.
func (c *Controller) SendGCode(gcode string) error {
	return c.session.SendCommand("print", "gcode_line", map[string]interface{}{"param": gcode})
}

// HomeAxes homes all axes.
func (c *Controller) HomeAxes() error { return c.SendGCode("G28") }

// SetNozzleTemp sets the nozzle target temperature.
func (c *Controller) SetNozzleTemp(celsius int) error {
	return c.SendGCode(fmt.Sprintf("M104 S%d", celsius))
}

// SetBedTemp sets the bed target temperature.
func (c *Controller) SetBedTemp(celsius int) error {
	return c.SendGCode(fmt.Sprintf("M140 S%d", celsius))
}

// JobSummary renders a short human-readable summary of the current
// job, or "" if there is none.
func (c *Controller) JobSummary() string {
	c.mu.Lock()
	job := c.currentJob
	status := c.current
	c.mu.Unlock()
	if job == nil {
		return ""
	}

	out := fmt.Sprintf("Job: %s\nStatus: %s\nProgress: %.1f%%", job.FileName, job.Status, job.ProgressPercent)
	if status != nil && status.Progress.TimeRemainingMinutes > 0 {
		out += fmt.Sprintf("\nTime remaining: ~%d min", status.Progress.TimeRemainingMinutes)
	}
	return out
}
