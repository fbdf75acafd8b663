// Package capturetest provides a scripted capture.Device for tests.
package capturetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/junsooki/ScreenDelta/internal/capture"
)

// Step is one scripted Acquire outcome: either a frame or an error.
type Step struct {
	Frame *capture.Frame
	Err   error
}

// Device replays Steps in order. When the script is exhausted Acquire
// returns capture.ErrEmpty.
type Device struct {
	mu sync.Mutex

	Steps    []Step
	OpenErrs []error

	Opens    int
	Closes   int
	Acquires int
	Releases int

	outstanding bool
}

// New returns a Device scripted with steps.
func New(steps ...Step) *Device {
	return &Device{Steps: steps}
}

// Push appends steps to the script.
func (d *Device) Push(steps ...Step) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Steps = append(d.Steps, steps...)
}

func (d *Device) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Opens++
	if len(d.OpenErrs) > 0 {
		err := d.OpenErrs[0]
		d.OpenErrs = d.OpenErrs[1:]
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) Acquire(ctx context.Context, timeout time.Duration) (*capture.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.outstanding {
		return nil, errors.New("capturetest: acquire with an outstanding frame")
	}
	d.Acquires++
	if len(d.Steps) == 0 {
		return nil, capture.ErrEmpty
	}
	step := d.Steps[0]
	d.Steps = d.Steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	d.outstanding = true
	return step.Frame, nil
}

func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.outstanding {
		return capture.ErrNotAcquired
	}
	d.outstanding = false
	d.Releases++
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closes++
	d.outstanding = false
	return nil
}

// Outstanding reports whether a frame is currently held by the caller.
func (d *Device) Outstanding() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outstanding
}

// Solid returns a tightly packed RGBA frame filled with px.
func Solid(w, h int, px [4]byte) *capture.Frame {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:i+4], px[:])
	}
	return &capture.Frame{
		Pix:       pix,
		Width:     w,
		Height:    h,
		Stride:    w * 4,
		Format:    capture.FormatRGBA8,
		Timestamp: time.Now(),
	}
}

// WithPixel returns a copy of f with the pixel at (x, y) set to px.
func WithPixel(f *capture.Frame, x, y int, px [4]byte) *capture.Frame {
	dup := *f
	dup.Pix = append([]byte(nil), f.Pix...)
	off := y*f.Stride + x*4
	copy(dup.Pix[off:off+4], px[:])
	return &dup
}
