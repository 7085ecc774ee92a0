package camera

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func solidFrame(t *testing.T, w, h int, c color.Gray) Frame {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, c)
		}
	}
	return Frame{Data: encodeJPEG(t, img), Timestamp: time.Now(), Width: w, Height: h}
}

func noisyFrame(t *testing.T, w, h int, seed int) Frame {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := byte((x*7 + y*13 + seed*101) % 256)
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return Frame{Data: encodeJPEG(t, img), Timestamp: time.Now(), Width: w, Height: h}
}

func TestAnalyzeFrameUndecodableReturnsFrameAnalyzedFalse(t *testing.T) {
	d := NewDetector(DefaultConfig())
	result := d.AnalyzeFrame(Frame{Data: []byte("not a jpeg")})
	assert.False(t, result.FrameAnalyzed)
	assert.NotEmpty(t, result.Notes)
}

func TestAnalyzeFrameSolidImageHasNoDefectsAndFullQuality(t *testing.T) {
	d := NewDetector(DefaultConfig())
	f := solidFrame(t, 64, 64, color.Gray{Y: 128})
	result := d.AnalyzeFrame(f)
	require.True(t, result.FrameAnalyzed)
	assert.Empty(t, result.Defects)
	assert.Equal(t, 100.0, result.QualityScore)
}

func TestAnalyzeFrameChaoticImageFlagsSpaghetti(t *testing.T) {
	d := NewDetector(DefaultConfig())
	f := noisyFrame(t, 96, 96, 1)
	result := d.AnalyzeFrame(f)
	require.True(t, result.FrameAnalyzed)

	found := false
	for _, def := range result.Defects {
		if def.Kind == DefectSpaghetti {
			found = true
			assert.Equal(t, SeverityCritical, def.Severity)
		}
	}
	assert.True(t, found, "expected a spaghetti defect on a chaotic frame")
	assert.True(t, result.ShouldPause())
}

func TestQualityScoreFloorsAtZero(t *testing.T) {
	defects := []Defect{
		{Severity: SeverityCritical, Confidence: 1},
		{Severity: SeverityCritical, Confidence: 1},
		{Severity: SeverityCritical, Confidence: 1},
	}
	assert.Equal(t, 0.0, qualityScore(defects))
}

func TestQualityScoreWeightsBySeverityAndConfidence(t *testing.T) {
	defects := []Defect{
		{Severity: SeverityWarning, Confidence: 0.5},
		{Severity: SeverityInfo, Confidence: 1},
	}
	// 100 - (20*0.5) - (5*1) = 85
	assert.Equal(t, 85.0, qualityScore(defects))
}

func TestDetectionResultShouldPauseOnLowQualityEvenWithoutCritical(t *testing.T) {
	result := DetectionResult{QualityScore: 20}
	assert.True(t, result.ShouldPause())
}

func TestDetectionResultShouldPauseOnCriticalRegardlessOfScore(t *testing.T) {
	result := DetectionResult{
		QualityScore: 90,
		Defects:      []Defect{{Severity: SeverityCritical, Confidence: 1}},
	}
	assert.True(t, result.ShouldPause())
}

func TestDetectionResultSummaryListsDefects(t *testing.T) {
	result := DetectionResult{
		QualityScore: 50,
		Defects: []Defect{
			{Kind: DefectBlob, Severity: SeverityInfo, Description: "blobs present", SuggestedFix: "adjust retraction"},
		},
	}
	summary := result.Summary()
	assert.Contains(t, summary, "blobs present")
	assert.Contains(t, summary, "adjust retraction")
	assert.Contains(t, summary, "50/100")
}

func TestAnalyzeMotionDetectsStallAndHighMotion(t *testing.T) {
	d := NewDetector(DefaultConfig())

	still1 := solidFrame(t, 48, 48, color.Gray{Y: 100})
	still2 := solidFrame(t, 48, 48, color.Gray{Y: 100})

	r1 := d.AnalyzeFrame(still1)
	require.True(t, r1.FrameAnalyzed)
	r2 := d.AnalyzeFrame(still2)
	require.True(t, r2.FrameAnalyzed)
	assert.Contains(t, joinLines(r2.Notes), "stalled")

	d2 := NewDetector(DefaultConfig())
	n1 := noisyFrame(t, 48, 48, 1)
	n2 := noisyFrame(t, 48, 48, 99)
	_, ok := d2.AnalyzeFrame(n1), true
	require.True(t, ok)
	r3 := d2.AnalyzeFrame(n2)
	assert.Contains(t, joinLines(r3.Notes), "high motion")
}

func TestSetReferenceFrameIsIdempotent(t *testing.T) {
	d := NewDetector(DefaultConfig())
	f := solidFrame(t, 32, 32, color.Gray{Y: 200})

	d.SetReferenceFrame(f)
	first := d.referenceGray

	d.SetReferenceFrame(f)
	second := d.referenceGray

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.w, second.w)
	assert.Equal(t, first.h, second.h)
	assert.Equal(t, first.pix, second.pix)
}

func TestIsDistributedRequiresSpreadAndMinimumCount(t *testing.T) {
	var tight []binaryComponent
	for i := 0; i < 12; i++ {
		tight = append(tight, binaryComponent{area: 20, minX: 10, maxX: 11, minY: 10, maxY: 11, sumX: 10.5 * 20, sumY: 10.5 * 20})
	}
	assert.False(t, isDistributed(tight, 100, 100))

	var spread []binaryComponent
	for i := 0; i < 12; i++ {
		x := float64(i * 8)
		spread = append(spread, binaryComponent{area: 1, minX: int(x), maxX: int(x), minY: int(x), maxY: int(x), sumX: x, sumY: x})
	}
	assert.True(t, isDistributed(spread, 100, 100))
}
