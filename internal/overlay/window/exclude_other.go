//go:build !windows && !(darwin && cgo)

package window

func excludeFromCapture() error {
	return errUnsupported()
}
