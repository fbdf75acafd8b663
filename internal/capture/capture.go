package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Acquisition outcomes. Devices wrap these so callers can classify with errors.Is.
var (
	// ErrEmpty means no new frame arrived since the last acquisition. Not a failure.
	ErrEmpty = errors.New("no new frame")
	// ErrAccessLost means the capture surface was invalidated; the source must be reopened.
	ErrAccessLost = errors.New("capture access lost")
	// ErrFatal means capture cannot proceed at all on this machine.
	ErrFatal = errors.New("capture unavailable")

	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	ErrFrameOutstanding  = errors.New("previous frame not released")
	ErrNotAcquired       = errors.New("no frame acquired")
	ErrNotOpen           = errors.New("capture source not open")
)

// PixelFormat identifies the memory layout of a pixel.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	FormatRGBA8
	FormatBGRA8
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// BytesPerPixel returns 0 for formats the pipeline cannot handle.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA8, FormatBGRA8:
		return 4
	default:
		return 0
	}
}

// Frame represents a captured screen frame.
//
// Pix is owned by the device until the frame is released; rows start every
// Stride bytes.
type Frame struct {
	Pix       []byte
	Width     int
	Height    int
	Stride    int
	Format    PixelFormat
	Timestamp time.Time
}

// Validate checks that the frame can be read as Width x Height 4-byte pixels.
func (f *Frame) Validate() error {
	bpp := f.Format.BytesPerPixel()
	if bpp != 4 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Format)
	}
	if f.Width < 0 || f.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrUnsupportedFormat, f.Width, f.Height)
	}
	if f.Width == 0 || f.Height == 0 {
		return nil
	}
	if f.Stride < f.Width*bpp {
		return fmt.Errorf("%w: stride %d shorter than row of %d pixels", ErrUnsupportedFormat, f.Stride, f.Width)
	}
	need := f.Stride*(f.Height-1) + f.Width*bpp
	if len(f.Pix) < need {
		return fmt.Errorf("%w: buffer has %d bytes, need %d", ErrUnsupportedFormat, len(f.Pix), need)
	}
	return nil
}

// Device is a desktop-duplication style capture device. It buffers a single
// outstanding frame: every successful Acquire must be followed by Release
// before the next Acquire.
type Device interface {
	Open(ctx context.Context) error
	// Acquire waits at most timeout for a new frame. A zero timeout polls.
	Acquire(ctx context.Context, timeout time.Duration) (*Frame, error)
	Release() error
	Close() error
}
