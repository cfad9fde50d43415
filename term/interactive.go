package term

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/justapithecus/tether/log"
	"github.com/justapithecus/tether/wire"
)

// detachByte is Ctrl-], the local escape that ends an interactive
// session without waiting for the remote shell to exit.
const detachByte = 0x1d

// Winsize is a local terminal geometry update.
type Winsize struct {
	Rows     int
	Cols     int
	WidthPx  int
	HeightPx int
}

// InteractiveConfig holds Start inputs beyond the channel itself.
type InteractiveConfig struct {
	// StartupCommand, if set, is injected as the first stdin frame
	// immediately after the channel opens.
	StartupCommand string
	// Input is the local terminal's input stream, expected to be in raw
	// mode. Defaults to os.Stdin.
	Input io.Reader
	// Output receives remote stdout and stderr frames verbatim.
	// Defaults to os.Stdout.
	Output io.Writer
	// Resize delivers local geometry changes to forward as set_size
	// frames. Nil disables resize forwarding.
	Resize <-chan Winsize
	// Logger is the session logger (required).
	Logger *log.Logger
}

// Start runs a pass-through session over an open channel. Keystrokes
// are forwarded verbatim, remote output is written unfiltered, and no
// exit-code protocol is involved. Returns when the channel closes,
// when ctx is cancelled, or when the user presses Ctrl-].
func Start(ctx context.Context, conn Conn, cfg InteractiveConfig) error {
	in := cfg.Input
	if in == nil {
		in = os.Stdin
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	if cfg.StartupCommand != "" {
		if err := conn.Send(wire.Stdin{Text: cfg.StartupCommand + "\n"}); err != nil {
			return err
		}
	}

	go pumpInput(in, conn, cfg.Logger)

	ctxDone := ctx.Done()
	for {
		select {
		case <-ctxDone:
			ctxDone = nil
			_ = conn.Close()
		case ws := <-cfg.Resize:
			frame := wire.SetSize{Rows: ws.Rows, Cols: ws.Cols, WidthPx: ws.WidthPx, HeightPx: ws.HeightPx}
			if err := conn.Send(frame); err != nil {
				cfg.Logger.Debug("resize send failed", map[string]any{"error": err.Error()})
			}
		case frame, ok := <-conn.Frames():
			if !ok {
				return conn.Err()
			}
			switch f := frame.(type) {
			case wire.Stdout:
				io.WriteString(out, f.Text)
			case wire.Stderr:
				io.WriteString(out, f.Text)
			case wire.Disconnect:
				cfg.Logger.Debug("remote disconnect", map[string]any{"reason": f.Reason})
			}
		}
	}
}

// pumpInput forwards local keystrokes as stdin frames until the reader
// ends, a send fails, or the detach byte appears. Bytes preceding a
// detach in the same read are still delivered.
func pumpInput(in io.Reader, conn Conn, logger *log.Logger) {
	buf := make([]byte, 4096)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if i := bytes.IndexByte(chunk, detachByte); i >= 0 {
				if i > 0 {
					_ = conn.Send(wire.Stdin{Text: string(chunk[:i])})
				}
				logger.Debug("detach requested", nil)
				_ = conn.Close()
				return
			}
			if sendErr := conn.Send(wire.Stdin{Text: string(chunk)}); sendErr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
