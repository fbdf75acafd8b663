//go:build !darwin || !cgo

package capture

import (
	"context"
	"fmt"
	"time"
)

// CoreGraphicsDevice is only available on macOS builds with cgo enabled.
type CoreGraphicsDevice struct{}

// NewCoreGraphicsDevice always fails on this platform.
func NewCoreGraphicsDevice(displayIndex int) (*CoreGraphicsDevice, error) {
	return nil, fmt.Errorf("%w: the coregraphics backend requires macOS with cgo", ErrFatal)
}

func (*CoreGraphicsDevice) Open(context.Context) error {
	return fmt.Errorf("%w: the coregraphics backend requires macOS with cgo", ErrFatal)
}

func (*CoreGraphicsDevice) Acquire(context.Context, time.Duration) (*Frame, error) {
	return nil, ErrNotOpen
}

func (*CoreGraphicsDevice) Release() error {
	return ErrNotAcquired
}

func (*CoreGraphicsDevice) Close() error {
	return nil
}
