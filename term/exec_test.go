package term

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/tether/log"
	"github.com/justapithecus/tether/metrics"
	"github.com/justapithecus/tether/types"
	"github.com/justapithecus/tether/wire"
)

// fakeConn is a scripted channel. Frames queued at construction are
// delivered in order; the frame channel closes when Close is called or,
// for pre-closed fakes, immediately after the script drains.
type fakeConn struct {
	frames chan wire.Frame

	mu   sync.Mutex
	sent []wire.Frame

	closeOnce sync.Once
	err       error
}

// scriptedConn returns a fake whose frame channel drains the script and
// then closes, as if the remote side shut the socket.
func scriptedConn(frames ...wire.Frame) *fakeConn {
	ch := make(chan wire.Frame, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return &fakeConn{frames: ch}
}

// openConn returns a fake that stays open until Close is called.
func openConn() *fakeConn {
	return &fakeConn{frames: make(chan wire.Frame)}
}

func (c *fakeConn) Frames() <-chan wire.Frame { return c.frames }

func (c *fakeConn) Send(f wire.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, f)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.frames) })
	return nil
}

func (c *fakeConn) Err() error { return c.err }

func (c *fakeConn) sentFrames() []wire.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.Frame(nil), c.sent...)
}

func testExecConfig(stdout, stderr, logs io.Writer) ExecConfig {
	if logs == nil {
		logs = io.Discard
	}
	meta := &types.SessionMeta{SessionID: "sess-test"}
	return ExecConfig{
		Logger:    log.NewLogger(meta, false).WithOutput(logs),
		Collector: metrics.NewCollector("sess-test", "default"),
		Stdout:    stdout,
		Stderr:    stderr,
		Marker:    "mk",
	}
}

func TestRunEchoCommand(t *testing.T) {
	conn := scriptedConn(
		wire.Stdout{Text: "hi\n"},
		wire.Stdout{Text: "mk:0\n"},
	)
	var stdout, stderr bytes.Buffer

	code, err := Run(context.Background(), conn, "echo hi", testExecConfig(&stdout, &stderr, nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if got := stdout.String(); got != "hi\n" {
		t.Errorf("stdout = %q, want %q", got, "hi\n")
	}

	sent := conn.sentFrames()
	if len(sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sent))
	}
	stdin, ok := sent[0].(wire.Stdin)
	if !ok {
		t.Fatalf("sent frame is %T, want wire.Stdin", sent[0])
	}
	for _, piece := range []string{"stty -echo", "PS1=", "echo hi", "stty echo", `printf 'mk:%s\n'`, "exit"} {
		if !strings.Contains(stdin.Text, piece) {
			t.Errorf("stdin payload missing %q:\n%s", piece, stdin.Text)
		}
	}
	if !strings.HasSuffix(stdin.Text, "\n") {
		t.Error("stdin payload missing trailing newline")
	}
}

func TestRunExitStatusVariants(t *testing.T) {
	tests := []struct {
		name     string
		sentinel string
		want     int
	}{
		{"zero", "mk:0\n", 0},
		{"sigkill", "mk:137\n", 137},
		{"malformed falls back", "mk:abc\n", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn := scriptedConn(wire.Stdout{Text: tc.sentinel})
			code, err := Run(context.Background(), conn, "true", testExecConfig(io.Discard, io.Discard, nil))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if code != tc.want {
				t.Errorf("exit code = %d, want %d", code, tc.want)
			}
		})
	}
}

func TestRunCloseWithoutSentinel(t *testing.T) {
	conn := scriptedConn(wire.Stdout{Text: "partial output\n"})
	var logs bytes.Buffer

	code, err := Run(context.Background(), conn, "true", testExecConfig(io.Discard, io.Discard, &logs))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 1 {
		t.Errorf("exit code = %d, want fallback 1", code)
	}
	if !strings.Contains(logs.String(), "assuming failure") {
		t.Errorf("expected warning in logs, got: %s", logs.String())
	}
}

func TestRunEmptyCommand(t *testing.T) {
	for _, command := range []string{"", "   ", "\t\n"} {
		conn := openConn()
		_, err := Run(context.Background(), conn, command, testExecConfig(io.Discard, io.Discard, nil))
		if !errors.Is(err, ErrEmptyCommand) {
			t.Errorf("command %q: err = %v, want ErrEmptyCommand", command, err)
		}
		if len(conn.sentFrames()) != 0 {
			t.Errorf("command %q: frames sent before validation", command)
		}
	}
}

func TestRunStderrForwardedRaw(t *testing.T) {
	conn := scriptedConn(
		wire.Stderr{Text: "warning: \x1b[33mdeprecated\x1b[0m\n"},
		wire.Stdout{Text: "mk:0\n"},
	)
	var stdout, stderr bytes.Buffer

	code, err := Run(context.Background(), conn, "true", testExecConfig(&stdout, &stderr, nil))
	if err != nil || code != 0 {
		t.Fatalf("Run = (%d, %v), want (0, nil)", code, err)
	}
	if got := stderr.String(); got != "warning: \x1b[33mdeprecated\x1b[0m\n" {
		t.Errorf("stderr = %q, escapes must pass through unprocessed", got)
	}
	if stdout.Len() != 0 {
		t.Errorf("stderr leaked to stdout: %q", stdout.String())
	}
}

func TestRunBoilerplateSuppression(t *testing.T) {
	script := []wire.Frame{
		wire.Stdout{Text: "stty -echo\nPS1=\n"},
		wire.Stdout{Text: "real output\n"},
		wire.Stdout{Text: "stty echo\nmk:0\nexit\n"},
	}

	var normal bytes.Buffer
	cfg := testExecConfig(&normal, io.Discard, nil)
	if _, err := Run(context.Background(), scriptedConn(script...), "true", cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := normal.String(); got != "real output\n" {
		t.Errorf("normal mode stdout = %q, want %q", got, "real output\n")
	}

	var verbose bytes.Buffer
	cfg = testExecConfig(&verbose, io.Discard, nil)
	cfg.Verbose = true
	if _, err := Run(context.Background(), scriptedConn(script...), "true", cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(verbose.String(), "stty -echo") {
		t.Errorf("verbose mode suppressed boilerplate: %q", verbose.String())
	}
}

func TestRunEchoedCommandSuppressed(t *testing.T) {
	conn := scriptedConn(
		wire.Stdout{Text: "echo hi\n"},
		wire.Stdout{Text: "hi\n"},
		wire.Stdout{Text: "mk:0\n"},
	)
	var stdout bytes.Buffer

	if _, err := Run(context.Background(), conn, "echo hi", testExecConfig(&stdout, io.Discard, nil)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := stdout.String(); got != "hi\n" {
		t.Errorf("stdout = %q, want the command echo suppressed", got)
	}
}

func TestRunDisconnectFrameDoesNotEndRun(t *testing.T) {
	conn := scriptedConn(
		wire.Disconnect{Reason: "idle"},
		wire.Stdout{Text: "mk:0\n"},
	)
	code, err := Run(context.Background(), conn, "true", testExecConfig(io.Discard, io.Discard, nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0; disconnect frame must not end the run", code)
	}
}

func TestRunSentinelSplitAcrossFrames(t *testing.T) {
	conn := scriptedConn(
		wire.Stdout{Text: "hi\nmk:"},
		wire.Stdout{Text: "13"},
		wire.Stdout{Text: "7\n"},
	)
	code, err := Run(context.Background(), conn, "true", testExecConfig(io.Discard, io.Discard, nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 137 {
		t.Errorf("exit code = %d, want 137", code)
	}
}

func TestRunTrailingPartialLineFlushed(t *testing.T) {
	conn := scriptedConn(
		wire.Stdout{Text: "mk:3\n"},
		wire.Stdout{Text: "no trailing newline"},
	)
	var stdout bytes.Buffer

	code, err := Run(context.Background(), conn, "true", testExecConfig(&stdout, io.Discard, nil))
	if err != nil || code != 3 {
		t.Fatalf("Run = (%d, %v), want (3, nil)", code, err)
	}
	if got := stdout.String(); got != "no trailing newline\n" {
		t.Errorf("stdout = %q, trailing partial must flush on close", got)
	}
}

func TestRunSurfacesTransportError(t *testing.T) {
	conn := scriptedConn()
	conn.err = &TransportError{Op: "read", Msg: "socket read failed"}

	_, err := Run(context.Background(), conn, "true", testExecConfig(io.Discard, io.Discard, nil))
	if !IsTransportError(err) {
		t.Fatalf("err = %v, want TransportError", err)
	}
}

func TestRunContextCancelClosesChannel(t *testing.T) {
	conn := openConn()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var (
		code int
		err  error
	)
	go func() {
		defer close(done)
		code, err = Run(ctx, conn, "sleep 60", testExecConfig(io.Discard, io.Discard, io.Discard))
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 1 {
		t.Errorf("exit code = %d, want fallback 1 after cancel", code)
	}
}
