// Package config loads server configuration once at startup from
// environment variables. No other package reads os.Getenv directly.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds every externally supplied setting the server needs.
type Config struct {
	PrinterIP             string
	AccessCode            string
	Serial                string
	PrinterModel          string
	SlicerPath            string
	SlicerProfiles        string
	TempDir                string
	DBPath                string
	CameraCaptureInterval time.Duration
}

// Load reads `<prefix>_*` environment variables plus the prefix-less
// CAMERA_CAPTURE_INTERVAL variable named by spec §6. prefix is
// upper-cased and defaults to "PRINTCTL" when empty.
func Load(prefix string) (*Config, error) {
	if prefix == "" {
		prefix = "PRINTCTL"
	}
	prefix = strings.ToUpper(prefix)

	k := koanf.New(".")

	defaults := map[string]interface{}{
		"printer_model":   "Generic FDM",
		"temp":            "/tmp/printctl",
		"db":              "printctl.db",
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading config defaults: %w", err)
	}

	envPrefix := prefix + "_"
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return normalizeKey(s, envPrefix)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	// CAMERA_CAPTURE_INTERVAL is deliberately prefix-less per spec §6.
	interval := 2 * time.Second
	if raw := env.Provider("CAMERA_CAPTURE_INTERVAL", ".", func(s string) string { return "camera_interval" }); raw != nil {
		if err := k.Load(raw, nil); err == nil {
			if v := k.String("camera_interval"); v != "" {
				if secs, err := strconv.Atoi(v); err == nil {
					interval = time.Duration(secs) * time.Second
				}
			}
		}
	}

	cfg := &Config{
		PrinterIP:             k.String("printer_ip"),
		AccessCode:            k.String("access_code"),
		Serial:                k.String("serial"),
		PrinterModel:          k.String("printer_model"),
		SlicerPath:            k.String("slicer_path"),
		SlicerProfiles:        k.String("slicer_profiles"),
		TempDir:               k.String("temp"),
		DBPath:                k.String("db"),
		CameraCaptureInterval: interval,
	}

	return cfg, nil
}

// normalizeKey lowercases and strips the configured prefix from an
// environment variable name, e.g. "PRINTCTL_PRINTER_IP" -> "printer_ip".
func normalizeKey(s, prefix string) string {
	if len(s) >= len(prefix) {
		s = s[len(prefix):]
	}
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out[i] = c
	}
	return string(out)
}

// HasPrinterCredentials reports whether enough information is present
// to attempt a printer connection. Missing credentials are a
// configuration error surfaced to the caller, not a startup crash —
// the server runs in offline mode until they are supplied.
func (c *Config) HasPrinterCredentials() bool {
	return c.PrinterIP != "" && c.AccessCode != "" && c.Serial != ""
}
