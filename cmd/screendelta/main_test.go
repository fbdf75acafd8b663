package main

import (
	"bytes"
	"image"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/ScreenDelta/internal/config"
)

type stubEngine struct {
	bounds []image.Rectangle
}

func (e stubEngine) NumActiveDisplays() int { return len(e.bounds) }

func (e stubEngine) GetDisplayBounds(i int) image.Rectangle { return e.bounds[i] }

func (e stubEngine) CaptureRect(image.Rectangle) (*image.RGBA, error) { return nil, nil }

func TestDisplayBounds(t *testing.T) {
	engine := stubEngine{bounds: []image.Rectangle{
		image.Rect(0, 0, 1920, 1080),
		image.Rect(1920, 0, 1920, 0),
	}}

	b, err := displayBounds(engine, 0)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 1920, 1080), b)

	_, err = displayBounds(engine, 1)
	require.Error(t, err)
	_, err = displayBounds(engine, 2)
	require.Error(t, err)
	_, err = displayBounds(engine, -1)
	require.Error(t, err)
}

func TestListDisplays(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	engine := stubEngine{bounds: []image.Rectangle{
		image.Rect(0, 0, 1920, 1080),
		image.Rect(1920, 0, 4480, 1440),
	}}

	require.NoError(t, listDisplays(cmd, engine))
	assert.Equal(t, "0\t1920x1080\tat (0,0)\n1\t2560x1440\tat (1920,0)\n", out.String())

	require.Error(t, listDisplays(cmd, stubEngine{}))
}

func TestConfigFlagNamesDefaultFile(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, config.ConfigFile())
}
