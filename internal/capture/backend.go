package capture

import (
	"fmt"
)

// Backend names accepted by NewDevice.
const (
	BackendScreenshot   = "screenshot"
	BackendCoreGraphics = "coregraphics"
)

// NewDevice builds the capture device for the named backend.
func NewDevice(backend string, displayIndex int) (Device, error) {
	switch backend {
	case BackendScreenshot, "":
		return NewScreenshotDevice(displayIndex), nil
	case BackendCoreGraphics:
		dev, err := NewCoreGraphicsDevice(displayIndex)
		if err != nil {
			return nil, err
		}
		return dev, nil
	default:
		return nil, fmt.Errorf("%w: unknown capture backend %q", ErrFatal, backend)
	}
}
