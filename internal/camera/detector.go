package camera

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DefectKind is one of the closed set of defects the analyzer can
// report.
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
	DefectNozzleClog     DefectKind = "nozzle-clog"
	DefectLayerSeparation DefectKind = "layer-separation"
)

// Severity is how urgently a defect should be acted on.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// BBox is an optional pixel-space location for a defect.
type BBox struct{ X, Y, W, H int }

// Defect is a single detected print defect.
type Defect struct {
	Kind        DefectKind
	Severity    Severity
	Confidence  float64
	Description string
	Location    *BBox
	SuggestedFix string
}

// DetectionResult is the outcome of analyzing one frame.
type DetectionResult struct {
	Timestamp    time.Time
	FrameAnalyzed bool
	Defects      []Defect
	QualityScore float64
	Notes        []string
}

// HasCritical reports whether any defect is critical severity.
func (r DetectionResult) HasCritical() bool {
	for _, d := range r.Defects {
		if d.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// ShouldPause reports whether the print should be paused: any
// critical defect, or an overall quality score below 30.
func (r DetectionResult) ShouldPause() bool {
	return r.HasCritical() || r.QualityScore < 30
}

// Summary renders a human-readable report, mirroring the original
// implementation's get_summary text shape.
func (r DetectionResult) Summary() string {
	lines := []string{fmt.Sprintf("Print quality score: %.0f/100", r.QualityScore)}
	if len(r.Defects) == 0 {
		lines = append(lines, "No defects detected")
	} else {
		lines = append(lines, fmt.Sprintf("Defects found: %d", len(r.Defects)))
		for _, d := range r.Defects {
			lines = append(lines, fmt.Sprintf("  [%s] %s: %s", d.Severity, d.Kind, d.Description))
			if d.SuggestedFix != "" {
				lines = append(lines, fmt.Sprintf("    fix: %s", d.SuggestedFix))
			}
		}
	}
	if r.ShouldPause() {
		lines = append(lines, "RECOMMEND PAUSING PRINT")
	}
	return joinLines(lines)
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

// Config holds the analyzer's tunable detector thresholds. Every
// constant here is a heuristic with no documented physical
// derivation, so they are exposed as configuration rather than
// buried as literals.
type Config struct {
	SpaghettiMinContours int
	LayerShiftMinShifts  int
	StringingMinSegments int
	BlobMinKeypoints     int
	MotionStalledRatio   float64
	MotionHighRatio      float64
}

// DefaultConfig returns the thresholds used by the reference
// implementation.
func DefaultConfig() Config {
	return Config{
		SpaghettiMinContours: 100,
		LayerShiftMinShifts:  5,
		StringingMinSegments: 10,
		BlobMinKeypoints:     5,
		MotionStalledRatio:   0.001,
		MotionHighRatio:      0.3,
	}
}

// Detector runs the fixed detector pipeline over frames, keeping at
// most one previous frame of state for motion analysis.
type Detector struct {
	cfg Config

	mu            sync.Mutex
	referenceGray *grayImage
	lastGray      *grayImage
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// SetReferenceFrame stores f (e.g. an empty bed) as the detector's
// baseline frame. The detectors run by AnalyzeFrame do not read it;
// motion analysis compares against the previously analyzed frame.
// Calling it again simply replaces the baseline — setting the same
// frame twice produces the same state.
func (d *Detector) SetReferenceFrame(f Frame) {
	img, ok := f.decode()
	if !ok {
		return
	}
	g := toGray(img)
	d.mu.Lock()
	d.referenceGray = &g
	d.mu.Unlock()
}

// AnalyzeFrame runs every detector over f and returns the aggregate
// result. A frame that fails to decode returns frame_analyzed=false
// rather than an error, per the no-exceptions-cross-the-boundary
// contract in the printer lifecycle's failure model.
func (d *Detector) AnalyzeFrame(f Frame) DetectionResult {
	result := DetectionResult{Timestamp: time.Now(), FrameAnalyzed: true}

	img, ok := f.decode()
	if !ok {
		result.FrameAnalyzed = false
		result.Notes = append(result.Notes, "failed to decode frame")
		return result
	}

	gray := toGray(img)

	var defects []Defect
	defects = append(defects, d.detectSpaghetti(gray)...)
	defects = append(defects, d.detectLayerShift(gray)...)
	defects = append(defects, d.detectStringing(gray)...)
	defects = append(defects, d.detectWarping(gray)...)
	defects = append(defects, d.detectBlob(gray)...)

	d.mu.Lock()
	prev := d.lastGray
	d.lastGray = &gray
	d.mu.Unlock()

	var notes []string
	if prev != nil {
		motionDefects, motionNotes := d.analyzeMotion(*prev, gray)
		defects = append(defects, motionDefects...)
		notes = append(notes, motionNotes...)
	}

	result.Defects = defects
	result.Notes = notes
	result.QualityScore = qualityScore(defects)
	return result
}

func qualityScore(defects []Defect) float64 {
	score := 100.0
	for _, d := range defects {
		switch d.Severity {
		case SeverityCritical:
			score -= 40 * d.Confidence
		case SeverityWarning:
			score -= 20 * d.Confidence
		case SeverityInfo:
			score -= 5 * d.Confidence
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func edgeMask(g grayImage, threshold float64) []bool {
	mag := sobelMagnitude(g)
	mask := make([]bool, len(mag))
	for i, v := range mag {
		mask[i] = v > threshold
	}
	return mask
}

// detectSpaghetti approximates edge-map + contour-count spaghetti
// detection: connected edge regions sized [10,500] px, triggering
// when there are many of them spread widely across the frame.
func (d *Detector) detectSpaghetti(g grayImage) []Defect {
	mask := edgeMask(g, 80)
	components := connectedComponents(mask, g.w, g.h)

	var small []binaryComponent
	for _, c := range components {
		if c.area >= 10 && c.area <= 500 {
			small = append(small, c)
		}
	}

	if len(small) <= d.cfg.SpaghettiMinContours {
		return nil
	}
	if !isDistributed(small, g.w, g.h) {
		return nil
	}

	confidence := math.Min(0.9, float64(len(small))/200)
	return []Defect{{
		Kind:         DefectSpaghetti,
		Severity:     SeverityCritical,
		Confidence:   confidence,
		Description:  "possible spaghetti failure detected — chaotic filament pattern",
		SuggestedFix: "stop the print immediately; check bed adhesion and first-layer settings",
	}}
}

func isDistributed(components []binaryComponent, w, h int) bool {
	if len(components) < 10 {
		return false
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	for _, c := range components {
		cx, cy := c.centroid()
		minX, maxX = math.Min(minX, cx), math.Max(maxX, cx)
		minY, maxY = math.Min(minY, cy), math.Max(maxY, cy)
	}
	xSpread := (maxX - minX) / float64(w)
	ySpread := (maxY - minY) / float64(h)
	return xSpread > 0.3 && ySpread > 0.3
}

// detectLayerShift sums vertical-edge magnitude per column and counts
// positions whose first difference exceeds mean + 2 standard
// deviations.
func (d *Detector) detectLayerShift(g grayImage) []Defect {
	colSum := make([]float64, g.w)
	for x := 0; x < g.w; x++ {
		var sum float64
		for y := 0; y < g.h; y++ {
			gx := g.at(x+1, y) - g.at(x-1, y)
			sum += math.Abs(gx)
		}
		colSum[x] = sum
	}

	if len(colSum) < 2 {
		return nil
	}
	diffs := make([]float64, len(colSum)-1)
	for i := 1; i < len(colSum); i++ {
		diffs[i-1] = math.Abs(colSum[i] - colSum[i-1])
	}
	mean, std := meanStd(diffs)
	threshold := mean + 2*std

	count := 0
	for _, v := range diffs {
		if v > threshold {
			count++
		}
	}

	if count <= d.cfg.LayerShiftMinShifts {
		return nil
	}
	return []Defect{{
		Kind:         DefectLayerShift,
		Severity:     SeverityWarning,
		Confidence:   0.6,
		Description:  "possible layer shift detected",
		SuggestedFix: "check belt tension and ensure the printer is on a stable surface",
	}}
}

// detectStringing filters edge-mask components to those whose
// bounding box is taller than it is wide by more than 45 degrees'
// worth of aspect ratio — a stand-in for the thin-vertical-line
// segment count the original detector builds from Hough lines.
func (d *Detector) detectStringing(g grayImage) []Defect {
	mask := edgeMask(g, 60)
	components := connectedComponents(mask, g.w, g.h)

	count := 0
	for _, c := range components {
		w, h := float64(c.width()), float64(c.height())
		if w == 0 {
			continue
		}
		angle := math.Atan2(h, w)
		if angle > math.Pi/4 {
			count++
		}
	}

	if count <= d.cfg.StringingMinSegments {
		return nil
	}
	confidence := math.Min(0.8, float64(count)/30)
	return []Defect{{
		Kind:         DefectStringing,
		Severity:     SeverityInfo,
		Confidence:   confidence,
		Description:  fmt.Sprintf("stringing detected (%d strings)", count),
		SuggestedFix: "increase retraction distance/speed or lower nozzle temperature",
	}}
}

// detectWarping restricts analysis to the bottom third of the frame
// (where bed lift shows up) and flags connected regions whose
// bounding box is strongly elongated and roughly horizontal — a
// bounding-box stand-in for the original's fitted-ellipse axis ratio
// and orientation check.
func (d *Detector) detectWarping(g grayImage) []Defect {
	bottom := g.sub(2*g.h/3, g.h)
	if bottom.h == 0 {
		return nil
	}
	mask := edgeMask(bottom, 80)
	components := connectedComponents(mask, bottom.w, bottom.h)

	for _, c := range components {
		if c.area < 100 {
			continue
		}
		w, h := float64(c.width()), float64(c.height())
		if h == 0 {
			continue
		}
		ratio := w / h
		if ratio < 1 {
			ratio = 1 / ratio
		}
		// A wide, shallow region in the bottom strip reads as a
		// horizontal lifted-corner curve.
		if ratio > 3 && w > h {
			cx, cy := c.centroid()
			loc := BBox{X: int(cx), Y: int(cy) + 2*g.h/3, W: c.width(), H: c.height()}
			return []Defect{{
				Kind:         DefectWarping,
				Severity:     SeverityWarning,
				Confidence:   0.5,
				Description:  "possible corner warping detected",
				Location:     &loc,
				SuggestedFix: "increase bed temperature, add a brim, or use an enclosure",
			}}
		}
	}
	return nil
}

// detectBlob flags connected edge regions in [20,500] px whose
// bounding box is close to square — a stand-in for the original's
// circularity/convexity blob filter.
func (d *Detector) detectBlob(g grayImage) []Defect {
	mask := edgeMask(g, 70)
	components := connectedComponents(mask, g.w, g.h)

	count := 0
	for _, c := range components {
		if c.area < 20 || c.area > 500 {
			continue
		}
		w, h := float64(c.width()), float64(c.height())
		if h == 0 {
			continue
		}
		aspect := w / h
		if aspect >= 0.6 && aspect <= 1.67 {
			count++
		}
	}

	if count <= d.cfg.BlobMinKeypoints {
		return nil
	}
	confidence := math.Min(0.7, float64(count)/15)
	return []Defect{{
		Kind:         DefectBlob,
		Severity:     SeverityInfo,
		Confidence:   confidence,
		Description:  fmt.Sprintf("blobs/zits detected (%d spots)", count),
		SuggestedFix: "enable coasting, adjust retraction, or lower nozzle temperature",
	}}
}

// analyzeMotion compares consecutive frames: very little change
// suggests a stalled print; very large change suggests a failure in
// progress.
func (d *Detector) analyzeMotion(prev, curr grayImage) ([]Defect, []string) {
	if prev.w != curr.w || prev.h != curr.h || len(prev.pix) == 0 {
		return nil, nil
	}

	var changed int
	for i := range curr.pix {
		if math.Abs(curr.pix[i]-prev.pix[i]) > 30 {
			changed++
		}
	}
	ratio := float64(changed) / float64(len(curr.pix))

	var notes []string
	var defects []Defect

	switch {
	case ratio < d.cfg.MotionStalledRatio:
		notes = append(notes, "very little motion detected; print may be stalled")
	case ratio > d.cfg.MotionHighRatio:
		notes = append(notes, "high motion detected; possible print failure")
		defects = append(defects, Defect{
			Kind:         DefectSpaghetti,
			Severity:     SeverityWarning,
			Confidence:   0.5,
			Description:  "abnormally high motion detected between frames",
			SuggestedFix: "check the print visually for failures",
		})
	}

	return defects, notes
}
