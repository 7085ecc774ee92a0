// Package camera pulls JPEG frames from a printer's camera transport
// and runs a deterministic defect analysis over them.
package camera

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"
)

// Frame is a single captured camera frame.
type Frame struct {
	Data        []byte
	Timestamp   time.Time
	Width       int
	Height      int
	FrameNumber int64
}

// Save writes the frame's JPEG bytes to path.
func (f Frame) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("camera: creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return fmt.Errorf("camera: saving frame to %s: %w", path, err)
	}
	return nil
}

// Base64 returns the frame encoded as a base64 string, for embedding
// in a tool-surface response.
func (f Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// decode parses the frame's JPEG bytes into an in-memory image, or
// returns false if the bytes do not decode.
func (f Frame) decode() (image.Image, bool) {
	img, err := jpeg.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, false
	}
	return img, true
}
