package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
)

// SessionState is the state of the connection to the capture device.
type SessionState int

const (
	SessionUninitialized SessionState = iota
	SessionReady
	SessionSuspended
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionUninitialized:
		return "uninitialized"
	case SessionReady:
		return "ready"
	case SessionSuspended:
		return "suspended"
	case SessionFailed:
		return "failed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Source owns a Device and enforces the one-slot acquire/release protocol.
type Source struct {
	dev   Device
	state SessionState
	open  bool
	lease *Lease
}

// NewSource wraps dev. The device is not opened until Open is called.
func NewSource(dev Device) *Source {
	return &Source{dev: dev}
}

// State returns the current session state.
func (s *Source) State() SessionState {
	return s.state
}

// Open initializes the device. Reopening a suspended source is how access
// loss is recovered.
func (s *Source) Open(ctx context.Context) error {
	if s.state == SessionFailed {
		return fmt.Errorf("%w: source already failed", ErrFatal)
	}
	if s.state == SessionReady {
		return nil
	}
	if s.open {
		// access was lost without an explicit Suspend
		if err := s.Close(); err != nil {
			logger.Warnf(ctx, "unable to close the stale capture device: %v", err)
		}
	}
	err := s.dev.Open(ctx)
	if err != nil {
		s.state = classifyState(err)
		return fmt.Errorf("unable to open capture device: %w", normalize(err))
	}
	logger.Debugf(ctx, "capture device open")
	s.open = true
	s.state = SessionReady
	return nil
}

// TryAcquire takes the next frame from the device. On success the caller
// owns the returned Lease and must Release it before acquiring again.
func (s *Source) TryAcquire(ctx context.Context, timeout time.Duration) (*Lease, error) {
	if s.lease != nil {
		return nil, ErrFrameOutstanding
	}
	switch s.state {
	case SessionReady:
	case SessionFailed:
		return nil, fmt.Errorf("%w: source failed", ErrFatal)
	case SessionSuspended:
		return nil, fmt.Errorf("%w: source suspended", ErrAccessLost)
	default:
		return nil, ErrNotOpen
	}

	frame, err := s.dev.Acquire(ctx, timeout)
	if err != nil {
		if errors.Is(err, ErrEmpty) {
			return nil, ErrEmpty
		}
		err = normalize(err)
		s.state = classifyState(err)
		return nil, err
	}
	if err := validate(frame); err != nil {
		if rerr := s.dev.Release(); rerr != nil {
			logger.Warnf(ctx, "unable to release a rejected frame: %v", rerr)
		}
		s.state = SessionFailed
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}

	s.lease = &Lease{src: s, frame: frame}
	return s.lease, nil
}

func validate(f *Frame) error {
	if f == nil {
		return errors.New("device returned neither a frame nor an error")
	}
	return f.Validate()
}

// Close releases an outstanding frame, if any, and closes the device.
func (s *Source) Close() error {
	var result *multierror.Error
	if s.lease != nil {
		if err := s.lease.Release(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.open {
		s.open = false
		if err := s.dev.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("unable to close capture device: %w", err))
		}
	}
	if s.state != SessionFailed {
		s.state = SessionUninitialized
	}
	return result.ErrorOrNil()
}

// Suspend closes the device after access loss, keeping the session
// recoverable by a later Open.
func (s *Source) Suspend() error {
	err := s.Close()
	if s.state != SessionFailed {
		s.state = SessionSuspended
	}
	return err
}

// Lease is the scoped ownership of one acquired frame.
type Lease struct {
	src      *Source
	frame    *Frame
	released bool
}

// Frame returns the leased frame. It must not be used after Release.
func (l *Lease) Frame() *Frame {
	return l.frame
}

// Release returns the frame to the device. Only the first call has effect.
func (l *Lease) Release() error {
	if l == nil || l.released {
		return nil
	}
	l.released = true
	l.frame = nil
	l.src.lease = nil
	if err := l.src.dev.Release(); err != nil {
		return fmt.Errorf("unable to release frame: %w", err)
	}
	return nil
}

// normalize makes every non-empty error classifiable: anything not already
// marked as access loss is fatal.
func normalize(err error) error {
	if errors.Is(err, ErrAccessLost) || errors.Is(err, ErrFatal) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

func classifyState(err error) SessionState {
	if errors.Is(err, ErrAccessLost) && !errors.Is(err, ErrFatal) {
		return SessionSuspended
	}
	return SessionFailed
}
