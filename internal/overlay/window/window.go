// Package window shows the overlay in a borderless, click-through window
// on top of the captured display.
package window

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/junsooki/ScreenDelta/internal/demo"
	"github.com/junsooki/ScreenDelta/internal/diff"
	"github.com/junsooki/ScreenDelta/internal/overlay"
)

type quad struct {
	rect   image.Rectangle
	color  color.NRGBA
	filled bool
}

// Window is an overlay.Renderer backed by Ebitengine. Draw calls record
// quads into a pending scene; Present publishes it to the game loop.
type Window struct {
	mu        sync.Mutex
	style     overlay.Style
	bounds    image.Rectangle
	frame     image.Point
	interval  time.Duration
	state     overlay.Bracket
	pending   []quad
	presented []quad
	tick      func() error
}

var (
	_ overlay.Renderer        = (*Window)(nil)
	_ overlay.Resizer         = (*Window)(nil)
	_ overlay.CaptureExcluder = (*Window)(nil)
)

// New creates a window covering frameBounds in desktop coordinates. Frames
// are assumed to be the size of frameBounds until SetFrameSize says otherwise.
func New(frameBounds image.Rectangle, style overlay.Style, interval time.Duration) (*Window, error) {
	if frameBounds.Empty() {
		return nil, fmt.Errorf("%w: empty window bounds %v", overlay.ErrResourceCreation, frameBounds)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: non-positive tick interval %v", overlay.ErrResourceCreation, interval)
	}
	return &Window{
		style:    style,
		bounds:   frameBounds,
		frame:    frameBounds.Size(),
		interval: interval,
	}, nil
}

// SetTick installs the function run on every game update. Returning
// context.Canceled ends the game loop cleanly.
func (w *Window) SetTick(fn func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick = fn
}

// SetFrameSize sets the size of the captured frames that region
// coordinates refer to, e.g. the pixel size of a Retina display.
func (w *Window) SetFrameSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frame = image.Pt(width, height)
}

// Run starts the Ebitengine game loop. Must be called from the main goroutine.
func (w *Window) Run() error {
	ebiten.SetWindowTitle("ScreenDelta")
	ebiten.SetWindowDecorated(false)
	ebiten.SetWindowFloating(true)
	ebiten.SetWindowMousePassthrough(true)
	ebiten.SetWindowSize(w.bounds.Dx(), w.bounds.Dy())
	ebiten.SetWindowPosition(w.bounds.Min.X, w.bounds.Min.Y)
	ebiten.SetTPS(tps(w.interval))
	ebiten.SetRunnableOnUnfocused(true)
	return ebiten.RunGameWithOptions(w, &ebiten.RunGameOptions{
		ScreenTransparent: true,
		SkipTaskbar:       true,
		InitUnfocused:     true,
	})
}

func (w *Window) BeginFrame() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Begin()
	w.pending = w.pending[:0]
	return nil
}

func (w *Window) DrawRegions(regions []diff.Region, c color.NRGBA) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.state.Draw(); err != nil {
		return err
	}
	for _, r := range regions {
		w.pending = append(w.pending, quad{rect: r.Rect(), color: c, filled: !w.style.Outline})
	}
	return nil
}

func (w *Window) DrawDemoContent(objects []demo.Object) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.state.Draw(); err != nil {
		return err
	}
	for _, o := range objects {
		w.pending = append(w.pending, quad{rect: o.Rect(), color: w.style.DemoColor, filled: true})
	}
	return nil
}

func (w *Window) Present() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.state.End(); err != nil {
		return err
	}
	w.presented, w.pending = w.pending, w.presented[:0]
	return nil
}

// --- ebiten.Game interface ---

func (w *Window) Update() error {
	w.mu.Lock()
	tick := w.tick
	w.mu.Unlock()
	if tick == nil {
		return nil
	}
	if err := tick(); err != nil {
		if errors.Is(err, context.Canceled) {
			return ebiten.Termination
		}
		return err
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	screen.Clear()

	w.mu.Lock()
	scene := append([]quad(nil), w.presented...)
	frame := w.frame
	w.mu.Unlock()

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	scale, offsetX, offsetY := aspectFitTransform(float64(sw), float64(sh),
		float64(frame.X), float64(frame.Y))

	stroke := w.style.StrokeWidth
	if stroke <= 0 {
		stroke = 1
	}
	for _, q := range scene {
		x, y, qw, qh := toScreen(q.rect, scale, offsetX, offsetY)
		if q.filled {
			vector.DrawFilledRect(screen, x, y, qw, qh, q.color, false)
		} else {
			vector.StrokeRect(screen, x, y, qw, qh, stroke, q.color, false)
		}
	}
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// aspectFitTransform returns scale and offsets to fit frame into view with letterboxing.
func aspectFitTransform(viewW, viewH, frameW, frameH float64) (scale, offsetX, offsetY float64) {
	scale = math.Min(viewW/frameW, viewH/frameH)
	offsetX = (viewW - frameW*scale) / 2
	offsetY = (viewH - frameH*scale) / 2
	return
}

func toScreen(r image.Rectangle, scale, offsetX, offsetY float64) (x, y, w, h float32) {
	return float32(float64(r.Min.X)*scale + offsetX),
		float32(float64(r.Min.Y)*scale + offsetY),
		float32(float64(r.Dx()) * scale),
		float32(float64(r.Dy()) * scale)
}

// tps converts a tick interval to Ebitengine ticks per second.
func tps(interval time.Duration) int {
	n := int(math.Round(float64(time.Second) / float64(interval)))
	if n < 1 {
		return 1
	}
	return n
}
