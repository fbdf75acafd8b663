package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/kbinani/screenshot"

	"github.com/junsooki/ScreenDelta/internal/permissions"
)

// Engine is the screen grabbing backend used by ScreenshotDevice.
type Engine interface {
	NumActiveDisplays() int
	GetDisplayBounds(displayIndex int) image.Rectangle
	CaptureRect(bounds image.Rectangle) (*image.RGBA, error)
}

// ScreenshotEngine implements Engine with github.com/kbinani/screenshot.
type ScreenshotEngine struct{}

func (ScreenshotEngine) NumActiveDisplays() int {
	return screenshot.NumActiveDisplays()
}

func (ScreenshotEngine) GetDisplayBounds(displayIndex int) image.Rectangle {
	return screenshot.GetDisplayBounds(displayIndex)
}

func (ScreenshotEngine) CaptureRect(bounds image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(bounds)
}

// ScreenshotDevice implements Device by grabbing the whole display on every
// Acquire. A grab identical to the previously delivered one is reported as
// ErrEmpty, which is how a duplication API reports "no update".
//
// A grab contains every on-screen window, the overlay included, unless the
// window asked the compositor to be left out (display affinity on Windows,
// NSWindowSharingNone on macOS). X11 grabs always include the overlay.
type ScreenshotDevice struct {
	Engine       Engine
	DisplayIndex int

	// CheckPermission is consulted by Open. nil checks the Screen Recording
	// permission and shows the system prompt when it is missing.
	CheckPermission func() bool

	bounds      image.Rectangle
	open        bool
	outstanding bool
	lastDigest  uint64
	haveDigest  bool
}

// NewScreenshotDevice creates a device for the given display (0 = primary).
func NewScreenshotDevice(displayIndex int) *ScreenshotDevice {
	return &ScreenshotDevice{
		Engine:       ScreenshotEngine{},
		DisplayIndex: displayIndex,
	}
}

// Bounds returns the display bounds captured by the device, valid after Open.
func (d *ScreenshotDevice) Bounds() image.Rectangle {
	return d.bounds
}

func (d *ScreenshotDevice) Open(ctx context.Context) error {
	check := d.CheckPermission
	if check == nil {
		check = requestScreenRecording
	}
	if !check() {
		return fmt.Errorf("%w: screen recording permission not granted; grant it in System Settings and restart", ErrFatal)
	}

	n := d.Engine.NumActiveDisplays()
	if n == 0 {
		return fmt.Errorf("%w: no active displays found", ErrFatal)
	}
	if d.DisplayIndex < 0 || d.DisplayIndex >= n {
		return fmt.Errorf("%w: display index %d out of range (have %d displays)", ErrFatal, d.DisplayIndex, n)
	}

	bounds := d.Engine.GetDisplayBounds(d.DisplayIndex)
	if bounds.Empty() {
		return fmt.Errorf("%w: display %d has empty bounds", ErrAccessLost, d.DisplayIndex)
	}
	logger.Debugf(ctx, "capturing display %d with bounds %v", d.DisplayIndex, bounds)

	d.bounds = bounds
	d.open = true
	d.outstanding = false
	d.haveDigest = false
	return nil
}

func requestScreenRecording() bool {
	if permissions.HasScreenRecording() {
		return true
	}
	permissions.RequestScreenRecording()
	return false
}

func (d *ScreenshotDevice) Acquire(ctx context.Context, timeout time.Duration) (*Frame, error) {
	if !d.open {
		return nil, ErrNotOpen
	}
	if d.outstanding {
		return nil, ErrFrameOutstanding
	}

	if n := d.Engine.NumActiveDisplays(); d.DisplayIndex >= n {
		return nil, fmt.Errorf("%w: display %d disappeared", ErrAccessLost, d.DisplayIndex)
	}
	if bounds := d.Engine.GetDisplayBounds(d.DisplayIndex); bounds != d.bounds {
		return nil, fmt.Errorf("%w: display bounds changed from %v to %v", ErrAccessLost, d.bounds, bounds)
	}

	img, err := d.Engine.CaptureRect(d.bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to screenshot bounds %v: %w", ErrAccessLost, d.bounds, err)
	}

	digest := xxhash.Sum64(img.Pix)
	if d.haveDigest && digest == d.lastDigest {
		return nil, ErrEmpty
	}
	d.lastDigest = digest
	d.haveDigest = true
	d.outstanding = true

	return &Frame{
		Pix:       img.Pix,
		Width:     img.Rect.Dx(),
		Height:    img.Rect.Dy(),
		Stride:    img.Stride,
		Format:    FormatRGBA8,
		Timestamp: time.Now(),
	}, nil
}

func (d *ScreenshotDevice) Release() error {
	if !d.outstanding {
		return ErrNotAcquired
	}
	d.outstanding = false
	return nil
}

func (d *ScreenshotDevice) Close() error {
	d.open = false
	d.outstanding = false
	return nil
}
