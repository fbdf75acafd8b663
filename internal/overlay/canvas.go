package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/junsooki/ScreenDelta/internal/demo"
	"github.com/junsooki/ScreenDelta/internal/diff"
)

// Canvas is a software Renderer drawing into an RGBA image in frame
// coordinates. It backs headless runs and tests.
type Canvas struct {
	style     Style
	target    *image.RGBA
	presented *image.RGBA
	state     Bracket
	presents  int
	excluded  bool
}

// NewCanvas allocates a transparent canvas the size of bounds. Drawing
// coordinates are relative to the frame, so the canvas origin is (0, 0).
func NewCanvas(bounds image.Rectangle, style Style) (*Canvas, error) {
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: empty canvas bounds %v", ErrResourceCreation, bounds)
	}
	bounds = image.Rect(0, 0, bounds.Dx(), bounds.Dy())
	return &Canvas{
		style:     style,
		target:    image.NewRGBA(bounds),
		presented: image.NewRGBA(bounds),
	}, nil
}

func (c *Canvas) BeginFrame() error {
	c.state.Begin()
	draw.Draw(c.target, c.target.Bounds(), image.Transparent, image.Point{}, draw.Src)
	return nil
}

func (c *Canvas) DrawRegions(regions []diff.Region, clr color.NRGBA) error {
	if err := c.state.Draw(); err != nil {
		return err
	}
	for _, r := range regions {
		c.fillOrStroke(r.Rect(), clr, !c.style.Outline)
	}
	return nil
}

func (c *Canvas) DrawDemoContent(objects []demo.Object) error {
	if err := c.state.Draw(); err != nil {
		return err
	}
	for _, o := range objects {
		c.fillOrStroke(o.Rect(), c.style.DemoColor, true)
	}
	return nil
}

func (c *Canvas) Present() error {
	if err := c.state.End(); err != nil {
		return err
	}
	copy(c.presented.Pix, c.target.Pix)
	c.presents++
	return nil
}

// ExcludeFromCapture marks the canvas as hidden from capture. A canvas is
// never on screen, so this only records the request.
func (c *Canvas) ExcludeFromCapture() error {
	c.excluded = true
	return nil
}

// Excluded reports whether ExcludeFromCapture was called.
func (c *Canvas) Excluded() bool {
	return c.excluded
}

// Presented returns the last presented image. It is overwritten by the
// next Present.
func (c *Canvas) Presented() *image.RGBA {
	return c.presented
}

// Presents returns how many frames were presented.
func (c *Canvas) Presents() int {
	return c.presents
}

func (c *Canvas) fillOrStroke(r image.Rectangle, clr color.NRGBA, filled bool) {
	src := image.NewUniform(clr)
	if filled {
		draw.Draw(c.target, r.Intersect(c.target.Bounds()), src, image.Point{}, draw.Over)
		return
	}
	w := int(c.style.StrokeWidth)
	if w < 1 {
		w = 1
	}
	for _, edge := range outlineEdges(r, w) {
		draw.Draw(c.target, edge.Intersect(c.target.Bounds()), src, image.Point{}, draw.Over)
	}
}

// outlineEdges splits the border of r into four non-overlapping strips of
// width w drawn inside r.
func outlineEdges(r image.Rectangle, w int) []image.Rectangle {
	if r.Dx() <= 2*w || r.Dy() <= 2*w {
		return []image.Rectangle{r}
	}
	return []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w),
		image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y+w, r.Min.X+w, r.Max.Y-w),
		image.Rect(r.Max.X-w, r.Min.Y+w, r.Max.X, r.Max.Y-w),
	}
}
