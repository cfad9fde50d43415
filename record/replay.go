package record

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/justapithecus/tether/wire"
)

// ReplayOptions controls how a recording is rendered.
type ReplayOptions struct {
	// Timing replays inter-frame gaps instead of dumping immediately.
	// Gaps are capped at TimingCap to skip long idle periods.
	Timing bool
	// TimingCap bounds a single replayed gap. Zero means 2s.
	TimingCap time.Duration
	// ShowInput also renders frames the client sent (stdin, set_size),
	// prefixed for distinction. Default renders remote output only.
	ShowInput bool
}

const defaultTimingCap = 2 * time.Second

// Replay renders a recorded session to w. Remote stdout and stderr
// frames are written verbatim; anything else is skipped unless
// ShowInput is set. A truncated tail ends the replay without error
// since recordings of crashed sessions commonly stop mid-frame.
func Replay(r io.Reader, w io.Writer, opts ReplayOptions) error {
	gapCap := opts.TimingCap
	if gapCap <= 0 {
		gapCap = defaultTimingCap
	}

	dec := NewDecoder(r)
	var last time.Time
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var recErr *RecordError
			if errors.As(err, &recErr) && recErr.Kind == RecordErrorPartial {
				return nil
			}
			return err
		}

		if opts.Timing && !last.IsZero() {
			if gap := frame.At.Sub(last); gap > 0 {
				time.Sleep(min(gap, gapCap))
			}
		}
		last = frame.At

		if err := renderFrame(w, frame, opts); err != nil {
			return err
		}
	}
}

func renderFrame(w io.Writer, frame *RecordedFrame, opts ReplayOptions) error {
	decoded, err := wire.Decode(frame.Payload)
	if err != nil {
		// Recordings keep frames the codec no longer (or never) knew.
		return nil
	}

	switch f := decoded.(type) {
	case wire.Stdout:
		_, err = io.WriteString(w, f.Text)
	case wire.Stderr:
		_, err = io.WriteString(w, f.Text)
	case wire.Stdin:
		if opts.ShowInput {
			_, err = fmt.Fprintf(w, ">> %s", f.Text)
		}
	case wire.SetSize:
		if opts.ShowInput {
			_, err = fmt.Fprintf(w, ">> resize %dx%d\n", f.Cols, f.Rows)
		}
	}
	return err
}
