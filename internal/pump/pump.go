// Package pump drives the capture, diff and overlay cycle, one cycle per
// tick, and tracks whether capture is running, suspended or stopped.
package pump

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/junsooki/ScreenDelta/internal/capture"
	"github.com/junsooki/ScreenDelta/internal/demo"
	"github.com/junsooki/ScreenDelta/internal/diff"
	"github.com/junsooki/ScreenDelta/internal/framestore"
	"github.com/junsooki/ScreenDelta/internal/overlay"
)

// ErrStopped is returned by Tick once the pump reached Stopped.
var ErrStopped = errors.New("capture pump stopped")

// State is the lifecycle state of the pump.
type State int

const (
	Starting State = iota
	Running
	Suspended
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	DefaultInterval       = 30 * time.Millisecond
	DefaultBackoffInitial = 30 * time.Millisecond
	DefaultBackoffMax     = 2 * time.Second
)

// Config tunes a Pump. Zero values get defaults.
type Config struct {
	Interval       time.Duration
	AcquireTimeout time.Duration
	RegionColor    color.NRGBA
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Demo, if set, is stepped and drawn every tick.
	Demo     *demo.Scene
	Observer Observer
	Now      func() time.Time
}

// CycleReport describes one cycle that processed a new frame.
type CycleReport struct {
	Seq uint64
	// Captured is when the device produced the frame.
	Captured      time.Time
	Regions       []diff.Region
	ChangedPixels int
	Reallocated   bool
	Detect        time.Duration
	Cycle         time.Duration
}

// Detector compares the current frame against the previous one.
// *diff.Detector is the production implementation.
type Detector interface {
	Detect(cur, prev framestore.View) (diff.Result, error)
}

// Observer is notified about state transitions and completed cycles.
// Calls happen on the pump goroutine.
type Observer interface {
	StateChanged(ctx context.Context, from, to State, reason string)
	CycleCompleted(ctx context.Context, report CycleReport)
}

// Stats are cumulative counters since the pump was created.
type Stats struct {
	Frames         uint64
	Empties        uint64
	Regions        uint64
	AccessLosses   uint64
	Reinits        uint64
	MapFailures    uint64
	RenderFailures uint64
}

// Pump owns the capture source, the frame store, the detector and the
// renderer. It is not safe for concurrent use: ticks must not overlap.
type Pump struct {
	cfg      Config
	source   *capture.Source
	store    *framestore.Store
	detector Detector
	renderer overlay.Renderer

	state   State
	err     error
	regions []diff.Region
	seq     uint64
	stats   Stats

	backoff time.Duration
	retryAt time.Time
}

// New returns a pump in the Starting state. Nothing is opened until the
// first Tick.
func New(
	cfg Config,
	source *capture.Source,
	store *framestore.Store,
	detector Detector,
	renderer overlay.Renderer,
) *Pump {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = DefaultBackoffInitial
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = max(DefaultBackoffMax, cfg.BackoffInitial)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pump{
		cfg:      cfg,
		source:   source,
		store:    store,
		detector: detector,
		renderer: renderer,
	}
}

// State returns the current lifecycle state.
func (p *Pump) State() State {
	return p.state
}

// Stats returns the cumulative counters.
func (p *Pump) Stats() Stats {
	return p.stats
}

// Err returns the reason the pump stopped, or nil.
func (p *Pump) Err() error {
	return p.err
}

// Regions returns the regions drawn by the last render.
func (p *Pump) Regions() []diff.Region {
	return p.regions
}

// Tick runs one cycle. It returns nil for every recoverable outcome and an
// error wrapping ErrStopped once the pump stopped. A cancelled ctx stops
// the pump and returns ctx.Err().
func (p *Pump) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if serr := p.Stop(ctx); serr != nil {
			logger.Warnf(ctx, "unable to stop the capture pump cleanly: %v", serr)
		}
		return err
	}
	if p.state == Stopped {
		return p.stoppedErr()
	}

	if p.cfg.Demo != nil {
		p.cfg.Demo.Step()
	}

	var (
		render = true
		err    error
	)
	switch p.state {
	case Starting:
		err = p.start(ctx)
	case Running:
		render, err = p.cycle(ctx)
	case Suspended:
		err = p.resume(ctx)
	}
	if err != nil {
		p.stop(ctx, err)
		return p.stoppedErr()
	}
	if render {
		p.render(ctx)
	}
	return nil
}

// Run ticks every cfg.Interval until ctx is done or the pump stops. It
// returns nil on cancellation and the stop reason otherwise.
func (p *Pump) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		if err := p.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return p.Stop(ctx)
		case <-ticker.C:
		}
	}
}

// Stop closes the capture source, releasing any held frame, and moves the
// pump to Stopped. It is idempotent.
func (p *Pump) Stop(ctx context.Context) error {
	if p.state == Stopped {
		return nil
	}
	err := p.source.Close()
	p.transition(ctx, Stopped, "stopped")
	return err
}

func (p *Pump) stop(ctx context.Context, reason error) {
	logger.Errorf(ctx, "capture stopped: %v", reason)
	p.err = reason
	if err := p.source.Close(); err != nil {
		logger.Warnf(ctx, "unable to close the capture source: %v", err)
	}
	p.regions = nil
	p.transition(ctx, Stopped, reason.Error())
}

func (p *Pump) stoppedErr() error {
	if p.err == nil {
		return ErrStopped
	}
	return fmt.Errorf("%w: %w", ErrStopped, p.err)
}

func (p *Pump) start(ctx context.Context) error {
	p.excludeFromCapture(ctx)
	if err := p.source.Open(ctx); err != nil {
		if isFatal(err) {
			return err
		}
		p.suspend(ctx, err)
		return nil
	}
	return p.seed(ctx)
}

// excludeFromCapture hides the overlay from the capture device so drawn
// markers do not come back as changes. Failure only degrades the output.
func (p *Pump) excludeFromCapture(ctx context.Context) {
	e, ok := p.renderer.(overlay.CaptureExcluder)
	if !ok {
		return
	}
	if err := e.ExcludeFromCapture(); err != nil {
		logger.Warnf(ctx, "unable to exclude the overlay from screen capture, markers may be detected as changes: %v", err)
		return
	}
	logger.Debugf(ctx, "overlay excluded from screen capture")
}

// seed takes one frame as the first baseline, without diffing it.
func (p *Pump) seed(ctx context.Context) error {
	lease, err := p.source.TryAcquire(ctx, p.cfg.AcquireTimeout)
	switch {
	case err == nil:
	case errors.Is(err, capture.ErrEmpty):
		p.backoff = 0
		p.transition(ctx, Running, "no initial frame")
		return nil
	case isFatal(err):
		return err
	default:
		p.suspend(ctx, err)
		return nil
	}
	defer p.release(ctx, lease)

	if reallocated, err := p.store.AdoptCurrent(lease.Frame()); err != nil {
		logger.Warnf(ctx, "unable to stage the initial frame: %v", err)
	} else {
		if reallocated {
			p.resize()
		}
		if err := p.store.Commit(); err != nil {
			logger.Warnf(ctx, "unable to commit the initial frame: %v", err)
		}
	}
	p.stats.Frames++
	p.backoff = 0
	p.transition(ctx, Running, "baseline captured")
	return nil
}

// cycle processes one frame. It reports whether the overlay should be
// redrawn this tick.
func (p *Pump) cycle(ctx context.Context) (bool, error) {
	started := p.cfg.Now()
	lease, err := p.source.TryAcquire(ctx, p.cfg.AcquireTimeout)
	switch {
	case err == nil:
	case errors.Is(err, capture.ErrEmpty):
		p.stats.Empties++
		return true, nil
	case isFatal(err):
		return false, err
	default:
		p.suspend(ctx, err)
		return true, nil
	}
	defer p.release(ctx, lease)
	p.stats.Frames++
	p.seq++

	reallocated, err := p.store.AdoptCurrent(lease.Frame())
	if err != nil {
		p.stats.MapFailures++
		logger.Warnf(ctx, "dropping frame %d: %v", p.seq, err)
		return false, nil
	}
	if reallocated {
		logger.Infof(ctx, "frame geometry is now %dx%d, no baseline to compare against", lease.Frame().Width, lease.Frame().Height)
		p.resize()
	}

	detectStarted := p.cfg.Now()
	res, err := p.detect()
	if err != nil {
		p.stats.MapFailures++
		logger.Warnf(ctx, "dropping frame %d: %v", p.seq, err)
		return false, nil
	}
	detectTook := p.cfg.Now().Sub(detectStarted)

	if err := p.store.Commit(); err != nil {
		logger.Warnf(ctx, "unable to commit frame %d: %v", p.seq, err)
	}
	p.regions = res.Regions
	p.stats.Regions += uint64(len(res.Regions))
	if len(res.Regions) > 0 {
		logger.Debugf(ctx, "frame %d: %d changed pixels, %d regions", p.seq, res.ChangedPixels, len(res.Regions))
	}

	if p.cfg.Observer != nil {
		p.cfg.Observer.CycleCompleted(ctx, CycleReport{
			Seq:           p.seq,
			Captured:      lease.Frame().Timestamp,
			Regions:       res.Regions,
			ChangedPixels: res.ChangedPixels,
			Reallocated:   reallocated,
			Detect:        detectTook,
			Cycle:         p.cfg.Now().Sub(started),
		})
	}
	return true, nil
}

// detect maps both buffers, runs the detector and unmaps them again.
func (p *Pump) detect() (diff.Result, error) {
	cur, err := p.store.ReadBack(framestore.Current)
	if err != nil {
		return diff.Result{}, err
	}
	defer cur.Unmap()
	prev, err := p.store.ReadBack(framestore.Previous)
	if err != nil {
		return diff.Result{}, err
	}
	defer prev.Unmap()
	return p.detector.Detect(cur.View, prev.View)
}

func (p *Pump) resume(ctx context.Context) error {
	if !p.retryAt.IsZero() && p.cfg.Now().Before(p.retryAt) {
		return nil
	}
	p.stats.Reinits++
	if err := p.source.Open(ctx); err != nil {
		if isFatal(err) {
			return err
		}
		logger.Debugf(ctx, "capture still unavailable: %v", err)
		p.scheduleRetry()
		return nil
	}
	logger.Infof(ctx, "capture access regained")
	return p.seed(ctx)
}

// suspend tears the session down after access loss. A fresh loss is
// retried on the next tick; a loss while recovering backs off.
func (p *Pump) suspend(ctx context.Context, reason error) {
	if err := p.source.Suspend(); err != nil {
		logger.Warnf(ctx, "unable to close the capture source: %v", err)
	}
	if err := p.store.Reset(); err != nil {
		logger.Warnf(ctx, "unable to reset the frame store: %v", err)
	}
	p.regions = nil
	if p.state == Suspended {
		logger.Debugf(ctx, "capture lost again while recovering: %v", reason)
		p.scheduleRetry()
		return
	}
	logger.Warnf(ctx, "capture access lost: %v", reason)
	p.stats.AccessLosses++
	p.backoff = 0
	p.retryAt = time.Time{}
	p.transition(ctx, Suspended, reason.Error())
}

// scheduleRetry doubles the delay before the next reinitialization attempt.
func (p *Pump) scheduleRetry() {
	if p.backoff == 0 {
		p.backoff = p.cfg.BackoffInitial
	} else {
		p.backoff = min(2*p.backoff, p.cfg.BackoffMax)
	}
	p.retryAt = p.cfg.Now().Add(p.backoff)
}

func (p *Pump) resize() {
	if r, ok := p.renderer.(overlay.Resizer); ok {
		r.SetFrameSize(p.store.Size())
	}
}

func (p *Pump) render(ctx context.Context) {
	if err := p.draw(); err != nil {
		p.stats.RenderFailures++
		logger.Warnf(ctx, "unable to render the overlay: %v", err)
	}
}

func (p *Pump) draw() error {
	if err := p.renderer.BeginFrame(); err != nil {
		return err
	}
	if len(p.regions) > 0 {
		if err := p.renderer.DrawRegions(p.regions, p.cfg.RegionColor); err != nil {
			return err
		}
	}
	if p.cfg.Demo != nil {
		if err := p.renderer.DrawDemoContent(p.cfg.Demo.Snapshot()); err != nil {
			return err
		}
	}
	return p.renderer.Present()
}

func (p *Pump) release(ctx context.Context, lease *capture.Lease) {
	if err := lease.Release(); err != nil {
		logger.Warnf(ctx, "%v", err)
	}
}

func (p *Pump) transition(ctx context.Context, to State, reason string) {
	from := p.state
	p.state = to
	if from == to {
		return
	}
	logger.Infof(belt.WithField(ctx, "reason", reason), "capture %s -> %s", from, to)
	if p.cfg.Observer != nil {
		p.cfg.Observer.StateChanged(ctx, from, to, reason)
	}
}

func isFatal(err error) bool {
	return errors.Is(err, capture.ErrFatal) || !errors.Is(err, capture.ErrAccessLost)
}
