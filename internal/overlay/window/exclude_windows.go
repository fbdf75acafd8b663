//go:build windows

package window

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"github.com/hashicorp/go-multierror"
	"github.com/lxn/win"
)

const (
	wdaMonitor            = 0x01
	wdaExcludeFromCapture = 0x11
)

var (
	user32                       = syscall.NewLazyDLL("user32.dll")
	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procSetWindowDisplayAffinity = user32.NewProc("SetWindowDisplayAffinity")
)

// excludeFromCapture sets the display affinity of every visible top-level
// window of this process. WDA_EXCLUDEFROMCAPTURE needs Windows 10 2004;
// older systems fall back to WDA_MONITOR, which captures the window black.
func excludeFromCapture() error {
	if err := procSetWindowDisplayAffinity.Find(); err != nil {
		return fmt.Errorf("%w: %w", errUnsupported(), err)
	}
	var result *multierror.Error
	n := 0
	for _, hwnd := range ownWindows() {
		n++
		if err := setDisplayAffinity(hwnd, wdaExcludeFromCapture); err != nil {
			if err2 := setDisplayAffinity(hwnd, wdaMonitor); err2 != nil {
				result = multierror.Append(result, fmt.Errorf("window %#x: %w", hwnd, err2))
			}
		}
	}
	if n == 0 {
		return errNoWindow
	}
	return result.ErrorOrNil()
}

func ownWindows() []win.HWND {
	pid := uint32(os.Getpid())
	var found []win.HWND
	cb := syscall.NewCallback(func(hwnd win.HWND, _ uintptr) uintptr {
		if !win.IsWindowVisible(hwnd) {
			return 1
		}
		var owner uint32
		_, _, _ = procGetWindowThreadProcessId.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&owner)))
		if owner == pid {
			found = append(found, hwnd)
		}
		return 1
	})
	_, _, _ = procEnumWindows.Call(cb, 0)
	return found
}

func setDisplayAffinity(hwnd win.HWND, affinity uint32) error {
	r, _, e := procSetWindowDisplayAffinity.Call(uintptr(hwnd), uintptr(affinity))
	if r == 0 {
		return fmt.Errorf("SetWindowDisplayAffinity(%#x): %w", affinity, e)
	}
	return nil
}
