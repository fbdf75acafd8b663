// Package diff finds the pixels that changed between two frames and turns
// them into marker regions.
package diff

import (
	"fmt"

	"github.com/junsooki/ScreenDelta/internal/framestore"
)

// Policy selects how changed pixels become regions.
type Policy string

const (
	// PolicyMarkers emits a fixed-size square at every changed pixel.
	PolicyMarkers Policy = "markers"
	// PolicyComponents emits one bounding box per connected component.
	PolicyComponents Policy = "components"
)

// DefaultMarkerSize is the side of a marker square.
const DefaultMarkerSize = 50

// Config configures a Detector.
type Config struct {
	Policy     Policy
	MarkerSize int
	Padding    int
}

// Result is the output of one detection.
type Result struct {
	Regions       []Region
	ChangedPixels int
}

// Detector compares the current frame against the previous one.
type Detector struct {
	cfg Config
}

// New validates cfg and returns a Detector.
func New(cfg Config) (*Detector, error) {
	switch cfg.Policy {
	case PolicyMarkers, PolicyComponents:
	case "":
		cfg.Policy = PolicyComponents
	default:
		return nil, fmt.Errorf("unknown detection policy %q", cfg.Policy)
	}
	if cfg.MarkerSize == 0 {
		cfg.MarkerSize = DefaultMarkerSize
	}
	if cfg.MarkerSize < 0 {
		return nil, fmt.Errorf("marker size must be positive, got %d", cfg.MarkerSize)
	}
	if cfg.Padding < 0 {
		return nil, fmt.Errorf("padding must not be negative, got %d", cfg.Padding)
	}
	return &Detector{cfg: cfg}, nil
}

// Policy returns the configured policy.
func (d *Detector) Policy() Policy {
	return d.cfg.Policy
}

// Detect returns the regions covering every pixel that differs between cur
// and prev. It returns an empty result when prev holds no baseline.
func (d *Detector) Detect(cur, prev framestore.View) (Result, error) {
	m, err := Classify(cur, prev)
	if err != nil {
		return Result{}, err
	}
	if m.Empty() {
		return Result{}, nil
	}

	var regions []Region
	switch d.cfg.Policy {
	case PolicyMarkers:
		regions = Markers(m, d.cfg.MarkerSize)
	default:
		regions = Components(m, d.cfg.Padding)
	}
	return Result{Regions: regions, ChangedPixels: m.Count()}, nil
}
