// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single terminal session.
// It is a leaf package with no internal dependencies. Counters are
// surfaced at debug level when the session closes; nothing is exported
// to an external metrics system.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of session counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Channel traffic
	FramesReceived int64
	FramesSent     int64
	DecodeErrors   int64
	UnknownTags    int64

	// Line processing
	LinesEmitted    int64
	LinesSuppressed int64

	// Acquisition
	StatusPolls     int64
	RuntimesCreated int64
	RuntimesReused  int64

	// Dimensions (informational, set at construction)
	SessionID string
	Variant   string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe
// so callers never need to guard against an absent collector.
type Collector struct {
	mu sync.Mutex

	framesReceived int64
	framesSent     int64
	decodeErrors   int64
	unknownTags    int64

	linesEmitted    int64
	linesSuppressed int64

	statusPolls     int64
	runtimesCreated int64
	runtimesReused  int64

	sessionID string
	variant   string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(sessionID, variant string) *Collector {
	return &Collector{
		sessionID: sessionID,
		variant:   variant,
	}
}

// IncFramesReceived counts one decoded inbound frame.
func (c *Collector) IncFramesReceived() {
	if c == nil {
		return
	}
	c.inc(&c.framesReceived)
}

// IncFramesSent counts one outbound frame.
func (c *Collector) IncFramesSent() {
	if c == nil {
		return
	}
	c.inc(&c.framesSent)
}

// IncDecodeErrors counts one malformed inbound frame.
func (c *Collector) IncDecodeErrors() {
	if c == nil {
		return
	}
	c.inc(&c.decodeErrors)
}

// IncUnknownTags counts one inbound frame with an unimplemented tag.
func (c *Collector) IncUnknownTags() {
	if c == nil {
		return
	}
	c.inc(&c.unknownTags)
}

// IncLinesEmitted counts one completed line forwarded to the caller.
func (c *Collector) IncLinesEmitted() {
	if c == nil {
		return
	}
	c.inc(&c.linesEmitted)
}

// IncLinesSuppressed counts one boilerplate line withheld from display.
func (c *Collector) IncLinesSuppressed() {
	if c == nil {
		return
	}
	c.inc(&c.linesSuppressed)
}

// IncStatusPolls counts one runtime status query during acquisition.
func (c *Collector) IncStatusPolls() {
	if c == nil {
		return
	}
	c.inc(&c.statusPolls)
}

// IncRuntimesCreated counts one runtime creation request.
func (c *Collector) IncRuntimesCreated() {
	if c == nil {
		return
	}
	c.inc(&c.runtimesCreated)
}

// IncRuntimesReused counts one reuse of an existing ready runtime.
func (c *Collector) IncRuntimesReused() {
	if c == nil {
		return
	}
	c.inc(&c.runtimesReused)
}

func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// Snapshot returns an immutable view of all counters.
// Safe to call on a nil Collector (returns a zero Snapshot).
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		FramesReceived:  c.framesReceived,
		FramesSent:      c.framesSent,
		DecodeErrors:    c.decodeErrors,
		UnknownTags:     c.unknownTags,
		LinesEmitted:    c.linesEmitted,
		LinesSuppressed: c.linesSuppressed,
		StatusPolls:     c.statusPolls,
		RuntimesCreated: c.runtimesCreated,
		RuntimesReused:  c.runtimesReused,
		SessionID:       c.sessionID,
		Variant:         c.variant,
	}
}

// Fields returns the snapshot as a log field map.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"frames_received":  s.FramesReceived,
		"frames_sent":      s.FramesSent,
		"decode_errors":    s.DecodeErrors,
		"unknown_tags":     s.UnknownTags,
		"lines_emitted":    s.LinesEmitted,
		"lines_suppressed": s.LinesSuppressed,
		"status_polls":     s.StatusPolls,
		"runtimes_created": s.RuntimesCreated,
		"runtimes_reused":  s.RuntimesReused,
	}
}
