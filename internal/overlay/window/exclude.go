package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/junsooki/ScreenDelta/internal/overlay"
)

var errNoWindow = errors.New("overlay window not created yet")

func errUnsupported() error {
	return fmt.Errorf("%w on %s", overlay.ErrCaptureExclusionUnsupported, runtime.GOOS)
}

// ExcludeFromCapture hides the overlay window from screen capture: display
// affinity on Windows, NSWindowSharingNone on macOS. X11 has no equivalent
// and reports overlay.ErrCaptureExclusionUnsupported.
//
// It is only effective once the game loop created the window, so call it
// from the tick function.
func (w *Window) ExcludeFromCapture() error {
	return excludeFromCapture()
}
