package capture_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/junsooki/ScreenDelta/internal/capture"
	"github.com/junsooki/ScreenDelta/internal/capture/capturetest"
)

func TestSourceAcquireRelease(t *testing.T) {
	ctx := context.Background()
	dev := capturetest.New(capturetest.Step{Frame: capturetest.Solid(4, 4, [4]byte{1, 2, 3, 4})})
	src := capture.NewSource(dev)

	_, err := src.TryAcquire(ctx, 0)
	require.ErrorIs(t, err, capture.ErrNotOpen)

	require.NoError(t, src.Open(ctx))
	require.Equal(t, capture.SessionReady, src.State())

	lease, err := src.TryAcquire(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 4, lease.Frame().Width)

	_, err = src.TryAcquire(ctx, 0)
	require.ErrorIs(t, err, capture.ErrFrameOutstanding)
	require.Equal(t, 1, dev.Acquires)

	require.NoError(t, lease.Release())
	require.NoError(t, lease.Release())
	require.Equal(t, 1, dev.Releases)
	require.Nil(t, lease.Frame())

	_, err = src.TryAcquire(ctx, 0)
	require.ErrorIs(t, err, capture.ErrEmpty)
	require.Equal(t, capture.SessionReady, src.State())
}

func TestSourceAccessLost(t *testing.T) {
	ctx := context.Background()
	dev := capturetest.New(capturetest.Step{Err: capture.ErrAccessLost})
	src := capture.NewSource(dev)
	require.NoError(t, src.Open(ctx))

	_, err := src.TryAcquire(ctx, 0)
	require.ErrorIs(t, err, capture.ErrAccessLost)
	require.False(t, errors.Is(err, capture.ErrFatal))
	require.Equal(t, capture.SessionSuspended, src.State())

	require.NoError(t, src.Suspend())
	require.Equal(t, capture.SessionSuspended, src.State())
	require.Equal(t, 1, dev.Closes)

	require.NoError(t, src.Open(ctx))
	require.Equal(t, capture.SessionReady, src.State())
	require.Equal(t, 2, dev.Opens)
}

func TestSourceFatal(t *testing.T) {
	ctx := context.Background()
	dev := capturetest.New(capturetest.Step{Err: errors.New("adapter gone")})
	src := capture.NewSource(dev)
	require.NoError(t, src.Open(ctx))

	_, err := src.TryAcquire(ctx, 0)
	require.ErrorIs(t, err, capture.ErrFatal)
	require.Equal(t, capture.SessionFailed, src.State())

	require.ErrorIs(t, src.Open(ctx), capture.ErrFatal)
}

func TestSourceOpenFailure(t *testing.T) {
	ctx := context.Background()
	dev := capturetest.New()
	dev.OpenErrs = []error{capture.ErrAccessLost, nil}
	src := capture.NewSource(dev)

	require.ErrorIs(t, src.Open(ctx), capture.ErrAccessLost)
	require.Equal(t, capture.SessionSuspended, src.State())
	require.NoError(t, src.Open(ctx))
	require.Equal(t, capture.SessionReady, src.State())
}

func TestSourceRejectsUnsupportedFormat(t *testing.T) {
	ctx := context.Background()
	frame := capturetest.Solid(2, 2, [4]byte{})
	frame.Format = capture.FormatUnknown
	dev := capturetest.New(capturetest.Step{Frame: frame})
	src := capture.NewSource(dev)
	require.NoError(t, src.Open(ctx))

	_, err := src.TryAcquire(ctx, 0)
	require.ErrorIs(t, err, capture.ErrUnsupportedFormat)
	require.ErrorIs(t, err, capture.ErrFatal)
	require.False(t, dev.Outstanding())
	require.Equal(t, capture.SessionFailed, src.State())
}

func TestSourceRejectsMissingFrame(t *testing.T) {
	ctx := context.Background()
	dev := capturetest.New(capturetest.Step{})
	src := capture.NewSource(dev)
	require.NoError(t, src.Open(ctx))

	var err error
	require.NotPanics(t, func() { _, err = src.TryAcquire(ctx, 0) })
	require.ErrorIs(t, err, capture.ErrFatal)
	require.False(t, dev.Outstanding())
	require.Equal(t, capture.SessionFailed, src.State())
}

func TestSourceCloseReleasesLease(t *testing.T) {
	ctx := context.Background()
	dev := capturetest.New(capturetest.Step{Frame: capturetest.Solid(1, 1, [4]byte{})})
	src := capture.NewSource(dev)
	require.NoError(t, src.Open(ctx))

	lease, err := src.TryAcquire(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, src.Close())
	require.False(t, dev.Outstanding())
	require.Equal(t, 1, dev.Closes)
	require.Equal(t, capture.SessionUninitialized, src.State())

	require.NoError(t, lease.Release())
	require.Equal(t, 1, dev.Releases)
}

func TestFrameValidate(t *testing.T) {
	for _, tc := range []struct {
		name  string
		frame capture.Frame
		ok    bool
	}{
		{"empty", capture.Frame{Format: capture.FormatBGRA8}, true},
		{"padded stride", capture.Frame{Pix: make([]byte, 16+8), Width: 2, Height: 2, Stride: 16, Format: capture.FormatRGBA8}, true},
		{"short stride", capture.Frame{Pix: make([]byte, 64), Width: 4, Height: 2, Stride: 8, Format: capture.FormatRGBA8}, false},
		{"short buffer", capture.Frame{Pix: make([]byte, 15), Width: 2, Height: 2, Stride: 8, Format: capture.FormatRGBA8}, false},
		{"unknown format", capture.Frame{Pix: make([]byte, 16), Width: 2, Height: 2, Stride: 8}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.frame.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, capture.ErrUnsupportedFormat)
			}
		})
	}
}
