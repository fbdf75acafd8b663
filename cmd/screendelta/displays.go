package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/junsooki/ScreenDelta/internal/capture"
)

var displaysCmd = &cobra.Command{
	Use:   "displays",
	Short: "List the active displays and their bounds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return listDisplays(cmd, capture.ScreenshotEngine{})
	},
}

func listDisplays(cmd *cobra.Command, engine capture.Engine) error {
	n := engine.NumActiveDisplays()
	if n == 0 {
		return fmt.Errorf("no active display found")
	}
	out := cmd.OutOrStdout()
	for i := 0; i < n; i++ {
		b := engine.GetDisplayBounds(i)
		fmt.Fprintf(out, "%d\t%dx%d\tat (%d,%d)\n", i, b.Dx(), b.Dy(), b.Min.X, b.Min.Y)
	}
	return nil
}
