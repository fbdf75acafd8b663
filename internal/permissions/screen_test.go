//go:build !darwin || !cgo

package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScreenRecordingAlwaysGranted(t *testing.T) {
	require.True(t, HasScreenRecording())
	require.True(t, RequestScreenRecording())
}
