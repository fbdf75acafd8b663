// Package framestore keeps the current and previous frames the change
// detector compares, as CPU-readable staging copies.
package framestore

import (
	"errors"
	"fmt"

	"github.com/junsooki/ScreenDelta/internal/capture"
)

var (
	ErrMapFailed = errors.New("unable to map frame buffer")
	ErrMapped    = errors.New("frame buffer is mapped")
	ErrNoCurrent = errors.New("no current frame adopted")
)

// Which selects one of the two buffers.
type Which int

const (
	Current Which = iota
	Previous
)

func (w Which) String() string {
	switch w {
	case Current:
		return "current"
	case Previous:
		return "previous"
	default:
		return fmt.Sprintf("Which(%d)", int(w))
	}
}

// View is a read-only window onto a buffer. Valid is false for a previous
// buffer that holds no baseline yet.
type View struct {
	Pix    []byte
	Stride int
	Width  int
	Height int
	Format capture.PixelFormat
	Valid  bool
}

type buffer struct {
	pix    []byte
	mapped bool
}

// Store is the current/previous double buffer.
type Store struct {
	width  int
	height int
	format capture.PixelFormat

	current  *buffer
	previous *buffer

	adopted  bool
	baseline bool
}

// New returns an empty store. Buffers are allocated by the first AdoptCurrent.
func New() *Store {
	return &Store{}
}

// HasBaseline reports whether the previous buffer holds a committed frame.
func (s *Store) HasBaseline() bool {
	return s.baseline
}

// Size returns the dimensions of the allocated buffers.
func (s *Store) Size() (width, height int) {
	return s.width, s.height
}

// AdoptCurrent copies f into the current buffer. If f's geometry differs
// from the allocated buffers, both are reallocated and the baseline is
// discarded. It returns true when that happened.
func (s *Store) AdoptCurrent(f *capture.Frame) (reallocated bool, err error) {
	if s.isMapped() {
		return false, ErrMapped
	}
	if err := f.Validate(); err != nil {
		return false, err
	}

	if s.current == nil || f.Width != s.width || f.Height != s.height || f.Format != s.format {
		s.allocate(f.Width, f.Height, f.Format)
		reallocated = true
	}

	rowLen := f.Width * 4
	for y := 0; y < f.Height; y++ {
		copy(s.current.pix[y*rowLen:(y+1)*rowLen], f.Pix[y*f.Stride:y*f.Stride+rowLen])
	}
	s.adopted = true
	return reallocated, nil
}

// Commit makes the current buffer the baseline for the next comparison.
func (s *Store) Commit() error {
	if s.isMapped() {
		return ErrMapped
	}
	if !s.adopted {
		return ErrNoCurrent
	}
	copy(s.previous.pix, s.current.pix)
	s.baseline = true
	return nil
}

// ReadBack maps one buffer for reading. The returned Mapping must be
// unmapped before the store is modified again.
func (s *Store) ReadBack(which Which) (*Mapping, error) {
	var b *buffer
	switch which {
	case Current:
		b = s.current
		if b != nil && !s.adopted {
			b = nil
		}
	case Previous:
		b = s.previous
	default:
		return nil, fmt.Errorf("%w: unknown buffer %v", ErrMapFailed, which)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %v buffer is not allocated", ErrMapFailed, which)
	}
	if b.mapped {
		return nil, fmt.Errorf("%w: %v buffer is already mapped", ErrMapFailed, which)
	}
	b.mapped = true

	valid := true
	if which == Previous {
		valid = s.baseline
	}
	return &Mapping{
		View: View{
			Pix:    b.pix,
			Stride: s.width * 4,
			Width:  s.width,
			Height: s.height,
			Format: s.format,
			Valid:  valid,
		},
		buf: b,
	}, nil
}

// Reset discards both buffers, e.g. after the capture device was reinitialized.
func (s *Store) Reset() error {
	if s.isMapped() {
		return ErrMapped
	}
	*s = Store{}
	return nil
}

func (s *Store) allocate(width, height int, format capture.PixelFormat) {
	size := width * height * 4
	s.width, s.height, s.format = width, height, format
	s.current = &buffer{pix: make([]byte, size)}
	s.previous = &buffer{pix: make([]byte, size)}
	s.adopted = false
	s.baseline = false
}

func (s *Store) isMapped() bool {
	return (s.current != nil && s.current.mapped) || (s.previous != nil && s.previous.mapped)
}

// Mapping is a scoped read access to a buffer.
type Mapping struct {
	View
	buf *buffer
}

// Unmap ends the read access. Only the first call has effect.
func (m *Mapping) Unmap() {
	if m == nil || m.buf == nil {
		return
	}
	m.buf.mapped = false
	m.buf = nil
	m.Pix = nil
}
