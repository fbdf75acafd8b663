//go:build !windows && !(darwin && cgo)

package window

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/junsooki/ScreenDelta/internal/overlay"
)

func TestExcludeFromCaptureUnsupported(t *testing.T) {
	w, err := New(image.Rect(0, 0, 64, 48), overlay.Style{}, 30*time.Millisecond)
	require.NoError(t, err)
	var _ overlay.CaptureExcluder = w
	require.ErrorIs(t, w.ExcludeFromCapture(), overlay.ErrCaptureExclusionUnsupported)
}
