//go:build !darwin || !cgo

package permissions

// HasScreenRecording always reports true: only macOS gates screen capture
// behind a per-app permission.
func HasScreenRecording() bool {
	return true
}

// RequestScreenRecording is a no-op outside macOS.
func RequestScreenRecording() bool {
	return true
}
