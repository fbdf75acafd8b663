package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"

	"github.com/junsooki/ScreenDelta/internal/capture"
	"github.com/junsooki/ScreenDelta/internal/config"
	"github.com/junsooki/ScreenDelta/internal/demo"
	"github.com/junsooki/ScreenDelta/internal/diff"
	"github.com/junsooki/ScreenDelta/internal/framestore"
	"github.com/junsooki/ScreenDelta/internal/logging"
	"github.com/junsooki/ScreenDelta/internal/overlay"
	"github.com/junsooki/ScreenDelta/internal/overlay/window"
	"github.com/junsooki/ScreenDelta/internal/pump"
	"github.com/junsooki/ScreenDelta/internal/telemetry"
)

func runOverlay(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, err := logging.New(cmd.Context(), cfg.Logging.Level, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logging.Flush(ctx)
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Infof(ctx, "ScreenDelta starting: backend=%s display=%d interval=%v policy=%s headless=%v",
		cfg.Capture.Backend, cfg.Capture.Display, cfg.Capture.Interval(), cfg.Detect.Policy, cfg.Overlay.Headless)

	return run(ctx, cfg)
}

func run(ctx context.Context, cfg *config.Config) error {
	bounds, err := displayBounds(capture.ScreenshotEngine{}, cfg.Capture.Display)
	if err != nil {
		return err
	}
	dev, err := capture.NewDevice(cfg.Capture.Backend, cfg.Capture.Display)
	if err != nil {
		return err
	}
	detector, err := diff.New(diff.Config{
		Policy:     diff.Policy(cfg.Detect.Policy),
		MarkerSize: cfg.Detect.MarkerSize,
		Padding:    cfg.Detect.Padding,
	})
	if err != nil {
		return err
	}
	regionColor, err := overlay.ParseColor(cfg.Overlay.Color, cfg.Overlay.Alpha)
	if err != nil {
		return err
	}
	demoColor, err := overlay.ParseColor(cfg.Overlay.DemoColor, 1)
	if err != nil {
		return err
	}
	style := overlay.Style{
		Color:       regionColor,
		Outline:     cfg.Overlay.Outline,
		StrokeWidth: float32(cfg.Overlay.StrokeWidth),
		DemoColor:   demoColor,
	}

	pumpCfg := pump.Config{
		Interval:       cfg.Capture.Interval(),
		AcquireTimeout: cfg.Capture.AcquireTimeout(),
		RegionColor:    regionColor,
		BackoffInitial: cfg.Suspend.BackoffInitial(),
		BackoffMax:     cfg.Suspend.BackoffMax(),
	}
	if cfg.Overlay.Demo {
		pumpCfg.Demo = demo.NewScene(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	}
	if cfg.Telemetry.URL != "" {
		client := connectTelemetry(ctx, cfg.Telemetry)
		if client != nil {
			defer client.Close()
			pumpCfg.Observer = client
		}
	}

	source := capture.NewSource(dev)
	store := framestore.New()

	if cfg.Overlay.Headless {
		canvas, err := overlay.NewCanvas(bounds, style)
		if err != nil {
			return err
		}
		p := pump.New(pumpCfg, source, store, detector, canvas)
		err = p.Run(ctx)
		logStats(ctx, p)
		return err
	}

	win, err := window.New(bounds, style, cfg.Capture.Interval())
	if err != nil {
		return err
	}
	p := pump.New(pumpCfg, source, store, detector, win)
	win.SetTick(func() error {
		return p.Tick(ctx)
	})
	err = win.Run()
	if serr := p.Stop(ctx); serr != nil {
		logger.Warnf(ctx, "unable to stop capture cleanly: %v", serr)
	}
	logStats(ctx, p)
	return err
}

func displayBounds(engine capture.Engine, index int) (image.Rectangle, error) {
	n := engine.NumActiveDisplays()
	if index < 0 || index >= n {
		return image.Rectangle{}, fmt.Errorf("display index %d out of range (have %d displays)", index, n)
	}
	b := engine.GetDisplayBounds(index)
	if b.Empty() {
		return image.Rectangle{}, fmt.Errorf("display %d has empty bounds", index)
	}
	return b, nil
}

func connectTelemetry(ctx context.Context, cfg config.TelemetryConfig) *telemetry.Client {
	client := telemetry.NewClient(cfg.URL, cfg.ID, telemetry.Handler{
		OnRegistered: func() {
			logger.Infof(ctx, "registered with monitor %s", cfg.URL)
		},
		OnError: func(msg string) {
			logger.Warnf(ctx, "monitor error: %s", msg)
		},
	})
	if err := client.Connect(ctx); err != nil {
		logger.Warnf(ctx, "telemetry disabled: %v", err)
		return nil
	}
	logger.Debugf(ctx, "publishing telemetry as %s", client.ID())
	return client
}

func logStats(ctx context.Context, p *pump.Pump) {
	s := p.Stats()
	logger.Infof(ctx, "frames=%d empty=%d regions=%d access_losses=%d reinits=%d map_failures=%d render_failures=%d",
		s.Frames, s.Empties, s.Regions, s.AccessLosses, s.Reinits, s.MapFailures, s.RenderFailures)
}
