package capture

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	displays int
	bounds   image.Rectangle
	img      *image.RGBA
	err      error
	captures int
}

func (e *fakeEngine) NumActiveDisplays() int               { return e.displays }
func (e *fakeEngine) GetDisplayBounds(int) image.Rectangle { return e.bounds }
func (e *fakeEngine) CaptureRect(r image.Rectangle) (*image.RGBA, error) {
	e.captures++
	if e.err != nil {
		return nil, e.err
	}
	return e.img, nil
}

func newFakeDevice(e *fakeEngine) *ScreenshotDevice {
	return &ScreenshotDevice{
		Engine:          e,
		CheckPermission: func() bool { return true },
	}
}

func TestScreenshotDeviceOpen(t *testing.T) {
	ctx := context.Background()

	d := newFakeDevice(&fakeEngine{})
	require.ErrorIs(t, d.Open(ctx), ErrFatal)

	d = newFakeDevice(&fakeEngine{displays: 1, bounds: image.Rect(0, 0, 8, 8)})
	d.DisplayIndex = 3
	require.ErrorIs(t, d.Open(ctx), ErrFatal)

	d = newFakeDevice(&fakeEngine{displays: 1, bounds: image.Rect(0, 0, 8, 8)})
	d.CheckPermission = func() bool { return false }
	require.ErrorIs(t, d.Open(ctx), ErrFatal)

	d = newFakeDevice(&fakeEngine{displays: 1, bounds: image.Rect(0, 0, 8, 8)})
	require.NoError(t, d.Open(ctx))
	require.Equal(t, image.Rect(0, 0, 8, 8), d.Bounds())
}

func TestScreenshotDeviceEmptyOnIdenticalGrab(t *testing.T) {
	ctx := context.Background()
	e := &fakeEngine{displays: 1, bounds: image.Rect(0, 0, 4, 4), img: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	d := newFakeDevice(e)
	require.NoError(t, d.Open(ctx))

	f, err := d.Acquire(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, FormatRGBA8, f.Format)
	require.Equal(t, 16, f.Stride)
	require.NoError(t, f.Validate())

	_, err = d.Acquire(ctx, 0)
	require.ErrorIs(t, err, ErrFrameOutstanding)
	require.NoError(t, d.Release())
	require.ErrorIs(t, d.Release(), ErrNotAcquired)

	_, err = d.Acquire(ctx, 0)
	require.ErrorIs(t, err, ErrEmpty)

	changed := image.NewRGBA(image.Rect(0, 0, 4, 4))
	changed.Pix[0] = 0xff
	e.img = changed
	_, err = d.Acquire(ctx, 0)
	require.NoError(t, err)
}

func TestScreenshotDeviceAccessLost(t *testing.T) {
	ctx := context.Background()
	e := &fakeEngine{displays: 1, bounds: image.Rect(0, 0, 4, 4), img: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	d := newFakeDevice(e)
	require.NoError(t, d.Open(ctx))

	e.bounds = image.Rect(0, 0, 8, 8)
	_, err := d.Acquire(ctx, 0)
	require.ErrorIs(t, err, ErrAccessLost)
	require.Equal(t, 0, e.captures)

	require.NoError(t, d.Close())
	require.NoError(t, d.Open(ctx))
	e.err = errors.New("secure desktop")
	_, err = d.Acquire(ctx, 0)
	require.ErrorIs(t, err, ErrAccessLost)
}
