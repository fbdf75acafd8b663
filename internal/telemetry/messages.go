package telemetry

import (
	"time"

	"github.com/junsooki/ScreenDelta/internal/diff"
	"github.com/junsooki/ScreenDelta/internal/pump"
)

// Message types of the telemetry protocol.
const (
	TypeRegister   = "register"
	TypeRegistered = "registered"
	TypeState      = "state"
	TypeCycle      = "cycle"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeError      = "error"
)

// ClientTypeOverlay identifies overlay publishers in register messages.
const ClientTypeOverlay = "overlay"

// MaxRegions bounds the regions carried by one cycle message. The full
// count is always reported in RegionCount.
const MaxRegions = 256

// Message is the envelope for all telemetry messages. It never carries
// pixel data.
type Message struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	ClientType string `json:"clientType,omitempty"`
	From       string `json:"from,omitempty"`

	State     string `json:"state,omitempty"`
	PrevState string `json:"prevState,omitempty"`
	Reason    string `json:"reason,omitempty"`

	Seq           uint64  `json:"seq,omitempty"`
	Regions       []Rect  `json:"regions,omitempty"`
	RegionCount   int     `json:"regionCount,omitempty"`
	ChangedPixels int     `json:"changedPixels,omitempty"`
	DetectMs      float64 `json:"detectMs,omitempty"`
	CycleMs       float64 `json:"cycleMs,omitempty"`

	Msg       string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Rect is a change region, right and bottom exclusive.
type Rect struct {
	Left   int `json:"l"`
	Top    int `json:"t"`
	Right  int `json:"r"`
	Bottom int `json:"b"`
}

func stateMessage(from, to pump.State, reason string, now time.Time) Message {
	return Message{
		Type:      TypeState,
		State:     to.String(),
		PrevState: from.String(),
		Reason:    reason,
		Timestamp: now.UnixMilli(),
	}
}

func cycleMessage(report pump.CycleReport, now time.Time) Message {
	n := min(len(report.Regions), MaxRegions)
	if !report.Captured.IsZero() {
		now = report.Captured
	}
	rects := make([]Rect, 0, n)
	for _, r := range report.Regions[:n] {
		rects = append(rects, rectOf(r))
	}
	return Message{
		Type:          TypeCycle,
		Seq:           report.Seq,
		Regions:       rects,
		RegionCount:   len(report.Regions),
		ChangedPixels: report.ChangedPixels,
		DetectMs:      millis(report.Detect),
		CycleMs:       millis(report.Cycle),
		Timestamp:     now.UnixMilli(),
	}
}

func rectOf(r diff.Region) Rect {
	return Rect{Left: r.Left, Top: r.Top, Right: r.Right, Bottom: r.Bottom}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
