package camera

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// Endpoint identifies an opaque frame transport: host/port/credential
// for the connection plus a stream path.
type Endpoint struct {
	Host       string
	Port       int
	Credential string
	Path       string
}

// RTSPSURL renders the endpoint as the printer's RTSPS stream URL.
func (e Endpoint) RTSPSURL() string {
	return fmt.Sprintf("rtsps://bblp:%s@%s:%d%s", e.Credential, e.Host, e.Port, e.Path)
}

// Transport is the pull source a Session drives. Sessions never
// assume a particular protocol; ffmpegTransport is the only
// implementation shipped here.
type Transport interface {
	Open(ctx context.Context) bool
	CaptureOne(ctx context.Context) (Frame, bool)
	Close()
}

// Session pulls frames from a single transport. Concurrent
// capture-one calls on the same session are disallowed; a single
// in-flight capture holds the session's lock.
type Session struct {
	endpoint  Endpoint
	transport Transport
	frameNum  int64

	mu        sync.Mutex
	connected bool

	logger *log.Logger
}

// NewSession creates a session for endpoint using the default
// ffmpeg-subprocess transport (the A1/A1-mini reference device's
// RTSPS feed needs self-signed TLS, which the bundled ffmpeg handles
// more reliably than a pure-Go RTSP client).
func NewSession(endpoint Endpoint) *Session {
	return &Session{
		endpoint:  endpoint,
		transport: newFFmpegTransport(endpoint),
		logger:    log.New(log.Writer(), "camera: ", log.LstdFlags),
	}
}

// Open connects the session's transport, bounded by timeout. Returns
// false (never an error) on any transport failure, per the
// no-exceptions-cross-the-boundary contract.
func (s *Session) Open(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ok := s.transport.Open(ctx)
	s.connected = ok
	if !ok {
		s.logger.Printf("failed to open camera transport for %s:%d", s.endpoint.Host, s.endpoint.Port)
	}
	return ok
}

// Close disconnects the session. It takes the same lock CaptureOne
// holds for a whole capture, so a Close issued mid-capture waits for
// that capture to finish before closing the transport.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport.Close()
	s.connected = false
}

// CaptureOne pulls a single frame, or returns false if the transport
// is not connected or the pull fails.
func (s *Session) CaptureOne(ctx context.Context) (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return Frame{}, false
	}

	frame, ok := s.transport.CaptureOne(ctx)
	if !ok {
		return Frame{}, false
	}
	frame.FrameNumber = atomic.AddInt64(&s.frameNum, 1)
	return frame, true
}

// CaptureMany pulls count frames, sleeping interval between each.
// Frames that fail to capture are skipped; the returned slice may be
// shorter than count.
func (s *Session) CaptureMany(ctx context.Context, count int, interval time.Duration) []Frame {
	frames := make([]Frame, 0, count)
	for i := 0; i < count; i++ {
		if frame, ok := s.CaptureOne(ctx); ok {
			frames = append(frames, frame)
		}
		if i < count-1 {
			select {
			case <-ctx.Done():
				return frames
			case <-time.After(interval):
			}
		}
	}
	return frames
}

// SaveTo captures count frames and writes each to dir, returning the
// written paths.
func (s *Session) SaveTo(ctx context.Context, dir string, count int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("camera: creating output directory %s: %w", dir, err)
	}

	var paths []string
	frames := s.CaptureMany(ctx, count, time.Second)
	for _, f := range frames {
		path := fmt.Sprintf("%s/frame_%04d.jpg", dir, f.FrameNumber)
		if err := f.Save(path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ffmpegTransport captures a single still frame per CaptureOne call by
// shelling out to ffmpeg against the RTSPS URL — the documented
// fallback for RTSPS feeds an in-process decoder cannot negotiate.
type ffmpegTransport struct {
	endpoint Endpoint
	tmpDir   string
}

func newFFmpegTransport(endpoint Endpoint) *ffmpegTransport {
	return &ffmpegTransport{endpoint: endpoint}
}

func (t *ffmpegTransport) Open(ctx context.Context) bool {
	dir, err := os.MkdirTemp("", "printctl-camera-")
	if err != nil {
		return false
	}
	t.tmpDir = dir

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	return true
}

func (t *ffmpegTransport) Close() {
	if t.tmpDir != "" {
		os.RemoveAll(t.tmpDir)
	}
}

func (t *ffmpegTransport) CaptureOne(ctx context.Context) (Frame, bool) {
	if t.tmpDir == "" {
		return Frame{}, false
	}

	out := fmt.Sprintf("%s/still.jpg", t.tmpDir)
	os.Remove(out)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-rtsp_transport", "tcp",
		"-i", t.endpoint.RTSPSURL(),
		"-vframes", "1",
		"-y", out,
	)
	if err := cmd.Run(); err != nil {
		return Frame{}, false
	}

	data, err := os.ReadFile(out)
	if err != nil || len(data) == 0 {
		return Frame{}, false
	}

	frame := Frame{Data: data, Timestamp: time.Now()}
	if img, ok := frame.decode(); ok {
		b := img.Bounds()
		frame.Width = b.Dx()
		frame.Height = b.Dy()
	}
	return frame, true
}
