package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/junsooki/ScreenDelta/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "screendelta",
	Short: "Highlight screen changes in a transparent overlay",
	Long: `ScreenDelta captures a display at a fixed interval, compares every
frame with the previous one and draws a marker over each changed area
in a click-through overlay window.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runOverlay,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", fmt.Sprintf("config file (default is %s)", config.ConfigFile()))
	pf.String("log-level", "info", "log level: trace, debug, info, warning, error")
	_ = viper.BindPFlag("config", pf.Lookup("config"))
	_ = viper.BindPFlag("logging.level", pf.Lookup("log-level"))

	f := rootCmd.Flags()
	f.String("backend", "screenshot", "capture backend: screenshot or coregraphics")
	f.IntP("display", "d", 0, "index of the display to capture")
	f.Int("interval-ms", 30, "milliseconds between two captures")
	f.String("policy", "components", "region policy: markers or components")
	f.Int("marker-size", 50, "side of a marker square for the markers policy")
	f.Int("padding", 0, "pixels added around every component box")
	f.String("color", "#ff0000", "marker color")
	f.Float64("alpha", 0.6, "marker opacity in [0, 1]")
	f.Bool("outline", true, "draw marker outlines instead of filled boxes")
	f.Bool("demo", false, "draw the bouncing demo squares")
	f.Bool("headless", false, "render into memory instead of an overlay window")
	f.String("telemetry-url", "", "websocket URL of a screendelta monitor")

	for key, flag := range map[string]string{
		"capture.backend":     "backend",
		"capture.display":     "display",
		"capture.interval_ms": "interval-ms",
		"detect.policy":       "policy",
		"detect.marker_size":  "marker-size",
		"detect.padding":      "padding",
		"overlay.color":       "color",
		"overlay.alpha":       "alpha",
		"overlay.outline":     "outline",
		"overlay.demo":        "demo",
		"overlay.headless":    "headless",
		"telemetry.url":       "telemetry-url",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(displaysCmd, monitorCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	config.BindEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
