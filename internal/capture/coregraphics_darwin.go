//go:build darwin && cgo

package capture

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation
#include <CoreGraphics/CoreGraphics.h>
#include <dlfcn.h>
#include <stdlib.h>

typedef struct {
    void*  data;
    size_t size;
    int    width;
    int    height;
    size_t bytesPerRow;
} FrameData;

// CGWindowListCreateImage is unavailable in the macOS 15 SDK headers but still
// present in the CoreGraphics dylib. Load it dynamically.
typedef CGImageRef (*CGWindowListCreateImageFunc)(
    CGRect screenBounds,
    uint32_t listOption,
    uint32_t windowID,
    uint32_t imageOption
);

static CGWindowListCreateImageFunc getCGWindowListCreateImage(void) {
    static CGWindowListCreateImageFunc fn = NULL;
    if (!fn) {
        fn = (CGWindowListCreateImageFunc)dlsym(RTLD_DEFAULT, "CGWindowListCreateImage");
    }
    return fn;
}

int hasCGWindowListCreateImage(void) {
    return getCGWindowListCreateImage() != NULL;
}

FrameData captureDisplay(CGDirectDisplayID displayID) {
    FrameData result = {0};

    CGWindowListCreateImageFunc fn = getCGWindowListCreateImage();
    if (!fn) {
        return result;
    }

    CGRect bounds = CGDisplayBounds(displayID);
    // kCGWindowListOptionOnScreenOnly = 1, kCGNullWindowID = 0, kCGWindowImageDefault = 0
    CGImageRef image = fn(bounds, 1, 0, 0);
    if (!image) {
        return result;
    }

    result.width  = (int)CGImageGetWidth(image);
    result.height = (int)CGImageGetHeight(image);

    result.bytesPerRow = result.width * 4;
    result.size        = result.bytesPerRow * result.height;
    result.data        = malloc(result.size);
    if (!result.data) {
        CGImageRelease(image);
        result.size = 0;
        return result;
    }

    CGColorSpaceRef cs = CGColorSpaceCreateDeviceRGB();
    CGContextRef ctx = CGBitmapContextCreate(
        result.data,
        result.width,
        result.height,
        8,
        result.bytesPerRow,
        cs,
        kCGImageAlphaPremultipliedLast
    );
    CGContextDrawImage(ctx, CGRectMake(0, 0, result.width, result.height), image);
    CGContextRelease(ctx);
    CGColorSpaceRelease(cs);
    CGImageRelease(image);

    return result;
}

void freeFrameData(void* data) {
    free(data);
}
*/
import "C"

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/junsooki/ScreenDelta/internal/permissions"
)

// CoreGraphicsDevice implements Device using CoreGraphics.
type CoreGraphicsDevice struct {
	displayIndex int
	displayID    C.CGDirectDisplayID

	width       int
	height      int
	pix         []byte
	open        bool
	outstanding bool
	lastDigest  uint64
	haveDigest  bool
}

// NewCoreGraphicsDevice creates a capture device for the given display (0 = main).
func NewCoreGraphicsDevice(displayIndex int) (*CoreGraphicsDevice, error) {
	return &CoreGraphicsDevice{displayIndex: displayIndex}, nil
}

func (c *CoreGraphicsDevice) Open(ctx context.Context) error {
	if !permissions.HasScreenRecording() {
		permissions.RequestScreenRecording()
		return fmt.Errorf("%w: screen recording permission not granted; grant it in System Settings and restart", ErrFatal)
	}
	if C.hasCGWindowListCreateImage() == 0 {
		return fmt.Errorf("%w: CGWindowListCreateImage is not available", ErrFatal)
	}

	if c.displayIndex == 0 {
		c.displayID = C.CGMainDisplayID()
	} else {
		var displays [16]C.CGDirectDisplayID
		var count C.uint32_t
		C.CGGetActiveDisplayList(16, &displays[0], &count)
		if c.displayIndex >= int(count) {
			return fmt.Errorf("%w: display index %d out of range (have %d displays)", ErrFatal, c.displayIndex, count)
		}
		c.displayID = displays[c.displayIndex]
	}

	c.width = int(C.CGDisplayPixelsWide(c.displayID))
	c.height = int(C.CGDisplayPixelsHigh(c.displayID))
	logger.Debugf(ctx, "capturing CoreGraphics display %d (%dx%d)", c.displayIndex, c.width, c.height)

	c.open = true
	c.outstanding = false
	c.haveDigest = false
	return nil
}

func (c *CoreGraphicsDevice) Acquire(ctx context.Context, timeout time.Duration) (*Frame, error) {
	if !c.open {
		return nil, ErrNotOpen
	}
	if c.outstanding {
		return nil, ErrFrameOutstanding
	}
	if C.CGDisplayIsActive(c.displayID) == 0 {
		return nil, fmt.Errorf("%w: display %d is no longer active", ErrAccessLost, c.displayIndex)
	}

	fd := C.captureDisplay(c.displayID)
	if fd.data == nil {
		return nil, fmt.Errorf("%w: CoreGraphics returned no image", ErrAccessLost)
	}
	defer C.freeFrameData(fd.data)

	w := int(fd.width)
	h := int(fd.height)
	byteLen := int(fd.size)
	if c.pix != nil && (w != c.width || h != c.height) {
		return nil, fmt.Errorf("%w: display mode changed from %dx%d to %dx%d", ErrAccessLost, c.width, c.height, w, h)
	}
	c.width, c.height = w, h

	src := unsafe.Slice((*byte)(fd.data), byteLen)
	digest := xxhash.Sum64(src)
	if c.haveDigest && digest == c.lastDigest {
		return nil, ErrEmpty
	}
	c.lastDigest = digest
	c.haveDigest = true

	if cap(c.pix) < byteLen {
		c.pix = make([]byte, byteLen)
	}
	c.pix = c.pix[:byteLen]
	copy(c.pix, src)
	c.outstanding = true

	return &Frame{
		Pix:       c.pix,
		Width:     w,
		Height:    h,
		Stride:    int(fd.bytesPerRow),
		Format:    FormatRGBA8,
		Timestamp: time.Now(),
	}, nil
}

func (c *CoreGraphicsDevice) Release() error {
	if !c.outstanding {
		return ErrNotAcquired
	}
	c.outstanding = false
	return nil
}

func (c *CoreGraphicsDevice) Close() error {
	c.open = false
	c.outstanding = false
	c.pix = nil
	return nil
}
