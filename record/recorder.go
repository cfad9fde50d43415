package record

import (
	"io"
	"sync"
	"time"

	"github.com/justapithecus/tether/term"
	"github.com/justapithecus/tether/wire"
)

// Sink receives the encoded recording stream. FileSink writes to local
// disk; S3Sink uploads on Close.
type Sink interface {
	io.Writer
	io.Closer
}

// Recorder appends observed wire frames to a sink, assigning sequence
// numbers in observation order. Safe for the two-goroutine tap shape
// (one reader, one writer).
type Recorder struct {
	mu   sync.Mutex
	enc  *Encoder
	sink Sink
	seq  uint64
	now  func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewRecorder creates a recorder writing to sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{enc: NewEncoder(sink), sink: sink, now: time.Now}
}

// Observe records one frame. The frame's JSON encoding is captured at
// observation time so the recording is self-contained.
func (r *Recorder) Observe(dir Direction, frame wire.Frame) error {
	payload, err := wire.Encode(frame)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.enc.Encode(&RecordedFrame{
		Seq:     r.seq,
		At:      r.now().UTC(),
		Dir:     dir,
		Tag:     frame.Tag(),
		Payload: payload,
	})
}

// Close flushes and closes the underlying sink. Safe to call more than
// once; later calls return the first result.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.closeErr = r.sink.Close()
	})
	return r.closeErr
}

// Tap wraps a channel so every frame crossing it is recorded.
// Recording failures never disturb the session: they are swallowed
// after the first one marks the tap broken.
type Tap struct {
	conn term.Conn
	rec  *Recorder

	frames   chan wire.Frame
	openOnce sync.Once

	mu     sync.Mutex
	broken bool
}

// NewTap wraps conn with recording through rec.
func NewTap(conn term.Conn, rec *Recorder) *Tap {
	return &Tap{conn: conn, rec: rec}
}

// Frames implements term.Conn. Inbound frames are recorded as they are
// relayed.
func (t *Tap) Frames() <-chan wire.Frame {
	t.openOnce.Do(func() {
		t.frames = make(chan wire.Frame)
		go func() {
			defer close(t.frames)
			for frame := range t.conn.Frames() {
				t.observe(DirIn, frame)
				t.frames <- frame
			}
		}()
	})
	return t.frames
}

// Send implements term.Conn.
func (t *Tap) Send(f wire.Frame) error {
	if err := t.conn.Send(f); err != nil {
		return err
	}
	t.observe(DirOut, f)
	return nil
}

// Close implements term.Conn. Closes the channel first so the relay
// goroutine drains, then the recording sink.
func (t *Tap) Close() error {
	err := t.conn.Close()
	if recErr := t.rec.Close(); err == nil {
		err = recErr
	}
	return err
}

// Err implements term.Conn.
func (t *Tap) Err() error {
	return t.conn.Err()
}

func (t *Tap) observe(dir Direction, frame wire.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.broken {
		return
	}
	if err := t.rec.Observe(dir, frame); err != nil {
		t.broken = true
	}
}
