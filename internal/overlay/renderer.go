// Package overlay draws change markers on a transparent surface.
package overlay

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/junsooki/ScreenDelta/internal/demo"
	"github.com/junsooki/ScreenDelta/internal/diff"
)

var (
	// ErrResourceCreation is returned when a renderer cannot be set up at all.
	ErrResourceCreation = errors.New("unable to create render resources")
	ErrNotInFrame       = errors.New("draw call outside BeginFrame/Present")
	// ErrCaptureExclusionUnsupported is returned by ExcludeFromCapture on
	// platforms that cannot hide a window from screen capture.
	ErrCaptureExclusionUnsupported = errors.New("excluding the overlay from screen capture is not supported")
)

// Renderer paints one overlay frame per pump cycle:
// BeginFrame, any number of draw calls, then Present.
type Renderer interface {
	// BeginFrame clears the surface to fully transparent, discarding any
	// frame that was abandoned before Present.
	BeginFrame() error
	// DrawRegions paints a marker for every region. The renderer does not
	// keep the slice.
	DrawRegions(regions []diff.Region, c color.NRGBA) error
	// DrawDemoContent paints the bouncing demo objects.
	DrawDemoContent(objects []demo.Object) error
	// Present shows the composed frame.
	Present() error
}

// Style describes how markers look.
type Style struct {
	Color       color.NRGBA
	Outline     bool
	StrokeWidth float32
	DemoColor   color.NRGBA
}

// ParseColor converts a hex color such as "#ff0000" and an alpha in [0, 1]
// to a non-premultiplied color.
func ParseColor(hex string, alpha float64) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("unable to parse color %q: %w", hex, err)
	}
	if alpha < 0 || alpha > 1 {
		return color.NRGBA{}, fmt.Errorf("alpha must be within [0, 1], got %v", alpha)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(alpha*255 + 0.5)}, nil
}

// Bracket tracks the BeginFrame/Present pairing shared by renderers.
// A Begin while a frame is open discards the abandoned one.
type Bracket struct {
	open bool
}

func (f *Bracket) Begin() {
	f.open = true
}

// Draw fails unless a frame is open.
func (f *Bracket) Draw() error {
	if !f.open {
		return ErrNotInFrame
	}
	return nil
}

// End closes the open frame.
func (f *Bracket) End() error {
	if !f.open {
		return ErrNotInFrame
	}
	f.open = false
	return nil
}

// Resizer is implemented by renderers that scale frame coordinates to
// their surface. The pump calls SetFrameSize whenever the captured frame
// size changes.
type Resizer interface {
	SetFrameSize(width, height int)
}

// CaptureExcluder is implemented by renderers whose surface is visible on
// the captured display. ExcludeFromCapture hides the surface from screen
// capture so markers are not diffed as screen changes. It is best effort:
// on failure the overlay keeps working but may feed back into the diff.
type CaptureExcluder interface {
	ExcludeFromCapture() error
}
