package diff

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/junsooki/ScreenDelta/internal/framestore"
)

var ErrSizeMismatch = errors.New("frame sizes differ")

// blockSize is the byte run compared at once before falling back to
// per-pixel checks. Multiple of 4 so blocks never split a pixel.
const blockSize = 64

// Run is a horizontal span [X0, X1) of changed pixels in one row.
type Run struct {
	X0, X1 int
}

// Mask is the set of changed pixels, stored as sorted runs per row.
type Mask struct {
	Width  int
	Height int
	Rows   [][]Run
	count  int
}

// Count returns the number of changed pixels.
func (m *Mask) Count() int {
	if m == nil {
		return 0
	}
	return m.count
}

// Empty reports whether no pixel changed.
func (m *Mask) Empty() bool {
	return m.Count() == 0
}

// Changed reports whether the pixel at (x, y) is in the mask.
func (m *Mask) Changed(x, y int) bool {
	if m == nil || y < 0 || y >= len(m.Rows) {
		return false
	}
	for _, r := range m.Rows[y] {
		if x < r.X0 {
			return false
		}
		if x < r.X1 {
			return true
		}
	}
	return false
}

func (m *Mask) add(y, x int) {
	row := m.Rows[y]
	if n := len(row); n > 0 && row[n-1].X1 == x {
		row[n-1].X1++
	} else {
		row = append(row, Run{X0: x, X1: x + 1})
	}
	m.Rows[y] = row
	m.count++
}

// Classify marks every pixel whose four raw bytes differ between cur and
// prev. An invalid prev (no baseline yet) yields an empty mask.
func Classify(cur, prev framestore.View) (*Mask, error) {
	if !prev.Valid || cur.Width <= 0 || cur.Height <= 0 {
		return &Mask{Width: max(cur.Width, 0), Height: max(cur.Height, 0)}, nil
	}
	if cur.Width != prev.Width || cur.Height != prev.Height {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, cur.Width, cur.Height, prev.Width, prev.Height)
	}
	rowLen := cur.Width * 4
	if cur.Stride < rowLen || prev.Stride < rowLen ||
		len(cur.Pix) < cur.Stride*(cur.Height-1)+rowLen ||
		len(prev.Pix) < prev.Stride*(prev.Height-1)+rowLen {
		return nil, fmt.Errorf("%w: buffer too small for %dx%d", ErrSizeMismatch, cur.Width, cur.Height)
	}

	m := &Mask{
		Width:  cur.Width,
		Height: cur.Height,
		Rows:   make([][]Run, cur.Height),
	}
	for y := 0; y < cur.Height; y++ {
		a := cur.Pix[y*cur.Stride : y*cur.Stride+rowLen]
		b := prev.Pix[y*prev.Stride : y*prev.Stride+rowLen]
		if bytes.Equal(a, b) {
			continue
		}
		for off := 0; off < rowLen; off += blockSize {
			end := min(off+blockSize, rowLen)
			if bytes.Equal(a[off:end], b[off:end]) {
				continue
			}
			for p := off; p < end; p += 4 {
				if a[p] != b[p] || a[p+1] != b[p+1] || a[p+2] != b[p+2] || a[p+3] != b[p+3] {
					m.add(y, p/4)
				}
			}
		}
	}
	return m, nil
}
