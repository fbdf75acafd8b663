//go:build darwin && cgo

package permissions

/*
#cgo LDFLAGS: -framework CoreGraphics
#include <CoreGraphics/CoreGraphics.h>

static int sd_capture_allowed(void) {
	return CGPreflightScreenCaptureAccess() ? 1 : 0;
}

static int sd_capture_prompt(void) {
	return CGRequestScreenCaptureAccess() ? 1 : 0;
}
*/
import "C"

// HasScreenRecording reports whether display grabs will contain other
// applications' windows. Without the grant macOS returns only the desktop
// and our own windows, which would diff as "nothing changed", so capture
// devices refuse to open instead.
func HasScreenRecording() bool {
	return C.sd_capture_allowed() != 0
}

// RequestScreenRecording registers the process under Privacy & Security >
// Screen Recording and shows the system prompt once per process. A grant
// only takes effect after ScreenDelta is restarted.
func RequestScreenRecording() bool {
	return C.sd_capture_prompt() != 0
}
