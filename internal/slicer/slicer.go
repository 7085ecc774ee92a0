// Package slicer invokes an external slicer binary as a bounded
// subprocess and scrapes its textual output for print estimates.
package slicer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vibeprint/printctl/internal/optimizer"
)

// Timeout is the hard ceiling on a single slicing invocation.
const Timeout = 5 * time.Minute

// BedType is one of the slicer's supported build-plate surfaces.
type BedType string

const (
	BedCoolPlate        BedType = "Cool Plate"
	BedEngineeringPlate  BedType = "Engineering Plate"
	BedHighTempPlate     BedType = "High Temp Plate"
	BedTexturedPEI       BedType = "Textured PEI Plate"
)

// Request describes one slicing invocation.
type Request struct {
	ModelPath  string
	Params     optimizer.Params
	OutputDir  string
	OutputName string // defaults to the model's base name
	AutoOrient bool
	AutoArrange bool
	BedType    BedType
	Export3MF  bool
	ExportGCode bool

	// ProfileName, if set, is the base name of a YAML file under the
	// invoker's ProfilesDir (e.g. "textured_pei" for textured_pei.yaml;
	// the loader appends the extension) carrying bed-type and
	// extra-flag overrides for printer/plate combinations the CLI
	// flags above don't cover.
	ProfileName string
}

// ProfileOverrides is a named slicer profile's key/value overrides,
// loaded from a YAML file the way the teacher's own config.go loads
// its server config — one yaml.Unmarshal into a plain struct.
type ProfileOverrides struct {
	BedType   BedType  `yaml:"bed_type"`
	ExtraArgs []string `yaml:"extra_args"`
}

// LoadProfileOverrides reads "<profilesDir>/<name>.yaml" and decodes
// it into a ProfileOverrides. A missing file is not an error: callers
// fall back to request-level defaults.
func LoadProfileOverrides(profilesDir, name string) (ProfileOverrides, error) {
	var overrides ProfileOverrides
	if profilesDir == "" || name == "" {
		return overrides, nil
	}
	path := filepath.Join(profilesDir, name+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return overrides, nil
		}
		return overrides, fmt.Errorf("slicer: reading profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return overrides, fmt.Errorf("slicer: parsing profile %s: %w", path, err)
	}
	return overrides, nil
}

// Result is the outcome of one slicing invocation. On any failure —
// missing binary, nonzero exit, missing artifact — Success is false
// and ErrorMessage explains why; no error ever crosses this boundary.
type Result struct {
	Success   bool
	InputModel string
	Output3MF  string
	OutputGCode string
	ErrorMessage string
	CLIOutput  string

	EstimatedTimeSeconds   float64
	EstimatedFilamentMM    float64
	EstimatedFilamentGrams float64
	LayerCount             int
}

// Invoker runs a configured slicer binary against models.
type Invoker struct {
	ExecutablePath string
	ProfilesDir    string
}

// NewInvoker creates an invoker for the slicer binary at execPath.
func NewInvoker(execPath, profilesDir string) *Invoker {
	return &Invoker{ExecutablePath: execPath, ProfilesDir: profilesDir}
}

// IsAvailable reports whether the configured slicer binary exists and
// responds to --help.
func (inv *Invoker) IsAvailable() (bool, string) {
	if inv.ExecutablePath == "" {
		return false, "no slicer executable configured"
	}
	if _, err := os.Stat(inv.ExecutablePath); err != nil {
		return false, fmt.Sprintf("slicer not found at %s", inv.ExecutablePath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, inv.ExecutablePath, "--help")
	out, err := cmd.CombinedOutput()
	if err == nil || strings.Contains(string(out), "Usage:") {
		return true, "slicer CLI is available"
	}
	return false, fmt.Sprintf("slicer returned error: %v", err)
}

// Slice runs the slicer binary for req, bounded by Timeout.
func (inv *Invoker) Slice(req Request) Result {
	if _, err := os.Stat(req.ModelPath); err != nil {
		return Result{Success: false, InputModel: req.ModelPath, ErrorMessage: fmt.Sprintf("model file not found: %s", req.ModelPath)}
	}

	if available, msg := inv.IsAvailable(); !available {
		return Result{Success: false, InputModel: req.ModelPath, ErrorMessage: msg}
	}

	outputName := req.OutputName
	if outputName == "" {
		base := filepath.Base(req.ModelPath)
		outputName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return Result{Success: false, InputModel: req.ModelPath, ErrorMessage: fmt.Sprintf("creating output directory: %v", err)}
	}

	var output3MF, outputGCode string
	if req.Export3MF {
		output3MF = filepath.Join(req.OutputDir, outputName+".3mf")
	}
	if req.ExportGCode {
		outputGCode = filepath.Join(req.OutputDir, outputName+".gcode")
	}

	overrides, err := LoadProfileOverrides(inv.ProfilesDir, req.ProfileName)
	if err != nil {
		return Result{Success: false, InputModel: req.ModelPath, ErrorMessage: err.Error()}
	}

	args := []string{}
	if req.AutoOrient {
		args = append(args, "--orient")
	}
	if req.AutoArrange {
		args = append(args, "--arrange", "1")
	}
	bedType := req.BedType
	if overrides.BedType != "" {
		bedType = overrides.BedType
	}
	if bedType == "" {
		bedType = BedCoolPlate
	}
	args = append(args, fmt.Sprintf("--curr-bed-type=%s", bedType))
	args = append(args, overrides.ExtraArgs...)
	args = append(args, "--slice", "0")
	if output3MF != "" {
		args = append(args, "--export-3mf", output3MF)
	}
	args = append(args, req.ModelPath)

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, inv.ExecutablePath, args...)
	cmd.Dir = req.OutputDir
	out, err := cmd.CombinedOutput()
	cliOutput := string(out)

	if ctx.Err() == context.DeadlineExceeded {
		return Result{Success: false, InputModel: req.ModelPath, ErrorMessage: "slicing timed out after 5 minutes", CLIOutput: cliOutput}
	}
	if err != nil {
		return Result{Success: false, InputModel: req.ModelPath, ErrorMessage: fmt.Sprintf("slicing failed: %s", cliOutput), CLIOutput: cliOutput}
	}

	if output3MF != "" {
		if _, statErr := os.Stat(output3MF); statErr != nil {
			return Result{Success: false, InputModel: req.ModelPath, ErrorMessage: "slicing completed but 3mf file not found", CLIOutput: cliOutput}
		}
	}

	result := Result{
		Success:     true,
		InputModel:  req.ModelPath,
		Output3MF:   output3MF,
		CLIOutput:   cliOutput,
	}
	if outputGCode != "" {
		if _, statErr := os.Stat(outputGCode); statErr == nil {
			result.OutputGCode = outputGCode
		}
	}

	estimates := parseEstimates(cliOutput)
	result.EstimatedTimeSeconds = estimates.timeSeconds
	result.EstimatedFilamentMM = estimates.filamentMM
	result.EstimatedFilamentGrams = estimates.filamentGrams
	result.LayerCount = estimates.layerCount

	return result
}

type estimates struct {
	timeSeconds   float64
	filamentMM    float64
	filamentGrams float64
	layerCount    int
}

var (
	timeRe     = regexp.MustCompile(`(?i)(?:estimated|total)\s*(?:print(?:ing)?\s*)?time[:\s]+(\d+)[:\s](\d+)`)
	filamentRe = regexp.MustCompile(`(?i)filament(?:\s+used)?[:\s]+(\d+\.?\d*)\s*(?:mm|m)`)
	gramsRe    = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*g(?:rams)?`)
	layerRe    = regexp.MustCompile(`(?i)(\d+)\s*layers?`)
)

// parseEstimates scrapes the slicer's free-form console output for
// print-time, filament-usage, and layer-count estimates, since the
// CLI has no structured machine-readable summary.
func parseEstimates(output string) estimates {
	var e estimates

	if m := timeRe.FindStringSubmatch(output); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		e.timeSeconds = float64(hours*3600 + minutes*60)
	}
	if m := filamentRe.FindStringSubmatch(output); m != nil {
		e.filamentMM, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := gramsRe.FindStringSubmatch(output); m != nil {
		e.filamentGrams, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := layerRe.FindStringSubmatch(output); m != nil {
		e.layerCount, _ = strconv.Atoi(m[1])
	}

	return e
}

// ValidateModel checks a model file's extension and size without
// invoking the slicer.
func ValidateModel(modelPath string) (bool, []string) {
	var issues []string

	info, err := os.Stat(modelPath)
	if err != nil {
		return false, []string{fmt.Sprintf("file not found: %s", modelPath)}
	}

	ext := strings.ToLower(filepath.Ext(modelPath))
	switch ext {
	case ".stl", ".obj", ".3mf", ".step", ".stp":
	default:
		issues = append(issues, fmt.Sprintf("unsupported file format: %s", ext))
	}

	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB > 100 {
		issues = append(issues, fmt.Sprintf("large file (%.1fMB) may be slow to process", sizeMB))
	}

	return len(issues) == 0, issues
}
