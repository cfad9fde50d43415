package record

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/tether/wire"
)

// memSink is an in-memory Sink for tests. Like FileSink, it fails on a
// second Close.
type memSink struct {
	bytes.Buffer
	closed     bool
	closeCount int
}

func (s *memSink) Close() error {
	s.closed = true
	s.closeCount++
	if s.closeCount > 1 {
		return errors.New("sink already closed")
	}
	return nil
}

// stubConn is a minimal term.Conn for tap tests.
type stubConn struct {
	frames chan wire.Frame

	mu   sync.Mutex
	sent []wire.Frame

	closeOnce sync.Once
}

func newStubConn(frames ...wire.Frame) *stubConn {
	ch := make(chan wire.Frame, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return &stubConn{frames: ch}
}

func (c *stubConn) Frames() <-chan wire.Frame { return c.frames }

func (c *stubConn) Send(f wire.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, f)
	return nil
}

func (c *stubConn) Close() error { return nil }
func (c *stubConn) Err() error   { return nil }

func TestRecorderAssignsSequence(t *testing.T) {
	sink := &memSink{}
	rec := NewRecorder(sink)
	rec.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }

	if err := rec.Observe(DirOut, wire.Stdin{Text: "ls\n"}); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if err := rec.Observe(DirIn, wire.Stdout{Text: "file\n"}); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sink.closed {
		t.Error("sink not closed")
	}

	dec := NewDecoder(bytes.NewReader(sink.Bytes()))
	first, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Seq != 1 || first.Dir != DirOut || first.Tag != "stdin" {
		t.Errorf("first frame = %+v", first)
	}
	if string(first.Payload) != `["stdin","ls\n"]` {
		t.Errorf("first payload = %s", first.Payload)
	}

	second, err := dec.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if second.Seq != 2 || second.Dir != DirIn || second.Tag != "stdout" {
		t.Errorf("second frame = %+v", second)
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestTapRecordsBothDirections(t *testing.T) {
	conn := newStubConn(
		wire.Stdout{Text: "hello\n"},
		wire.Disconnect{Reason: "bye"},
	)
	sink := &memSink{}
	tap := NewTap(conn, NewRecorder(sink))

	if err := tap.Send(wire.Stdin{Text: "echo hello\n"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	var relayed []wire.Frame
	for f := range tap.Frames() {
		relayed = append(relayed, f)
	}
	if err := tap.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(relayed) != 2 {
		t.Fatalf("relayed %d frames, want 2", len(relayed))
	}
	if len(conn.sent) != 1 {
		t.Fatalf("underlying conn got %d sends, want 1", len(conn.sent))
	}

	dec := NewDecoder(bytes.NewReader(sink.Bytes()))
	var dirs []Direction
	var tags []string
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		dirs = append(dirs, frame.Dir)
		tags = append(tags, frame.Tag)
	}

	wantDirs := []Direction{DirOut, DirIn, DirIn}
	wantTags := []string{"stdin", "stdout", "disconnect"}
	if len(dirs) != len(wantDirs) {
		t.Fatalf("recorded %d frames, want %d", len(dirs), len(wantDirs))
	}
	for i := range wantDirs {
		if dirs[i] != wantDirs[i] || tags[i] != wantTags[i] {
			t.Errorf("frame %d = %s/%s, want %s/%s", i, dirs[i], tags[i], wantDirs[i], wantTags[i])
		}
	}
}

func TestTapCloseIdempotent(t *testing.T) {
	conn := newStubConn()
	sink := &memSink{}
	tap := NewTap(conn, NewRecorder(sink))

	if err := tap.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tap.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if sink.closeCount != 1 {
		t.Errorf("sink closed %d times, want 1", sink.closeCount)
	}
}

type failingSink struct{ closed bool }

func (s *failingSink) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (s *failingSink) Close() error              { s.closed = true; return nil }

func TestTapSurvivesRecordingFailure(t *testing.T) {
	conn := newStubConn(wire.Stdout{Text: "still flows\n"})
	tap := NewTap(conn, NewRecorder(&failingSink{}))

	if err := tap.Send(wire.Stdin{Text: "ls\n"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var relayed []wire.Frame
	for f := range tap.Frames() {
		relayed = append(relayed, f)
	}
	if len(relayed) != 1 {
		t.Fatalf("relayed %d frames, want 1; recording failure must not block the session", len(relayed))
	}
}
