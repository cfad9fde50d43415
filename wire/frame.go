// Package wire implements the terminal frame codec.
//
// Frames travel over the terminal websocket as JSON arrays whose first
// element is a string tag, e.g. ["stdout","hello\n"] or
// ["set_size",24,80,640,480]. The remote side may emit tags this client
// does not understand; decoders surface those as UnknownTag errors so
// callers can skip them without tearing down the channel.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame tags on the wire.
const (
	TagStdout     = "stdout"
	TagStderr     = "stderr"
	TagStdin      = "stdin"
	TagDisconnect = "disconnect"
	TagSetSize    = "set_size"
)

// Frame is one discrete terminal protocol event. The concrete types
// form a closed sum; new wire tags decode to UnknownTag errors rather
// than extending the set silently.
type Frame interface {
	// Tag returns the wire tag for this frame.
	Tag() string
}

// Stdout carries remote terminal output text.
type Stdout struct {
	Text string
}

// Stderr carries remote error-stream text.
type Stderr struct {
	Text string
}

// Stdin carries local input text to the remote terminal.
type Stdin struct {
	Text string
}

// Disconnect announces a server-side disconnect with a reason.
// It does not itself end the session; only socket close does.
type Disconnect struct {
	Reason string
}

// SetSize resizes the remote pseudo-terminal.
type SetSize struct {
	Rows     int
	Cols     int
	WidthPx  int
	HeightPx int
}

func (Stdout) Tag() string     { return TagStdout }
func (Stderr) Tag() string     { return TagStderr }
func (Stdin) Tag() string      { return TagStdin }
func (Disconnect) Tag() string { return TagDisconnect }
func (SetSize) Tag() string    { return TagSetSize }

// FrameErrorKind classifies frame codec errors.
type FrameErrorKind int

const (
	// FrameErrorDecode indicates malformed JSON or a payload that does
	// not match its tag's shape. Recoverable: log and skip.
	FrameErrorDecode FrameErrorKind = iota
	// FrameErrorUnknownTag indicates a structurally valid frame with a
	// tag this client does not implement. Recoverable: ignore.
	FrameErrorUnknownTag
)

// FrameError is a frame codec error.
type FrameError struct {
	Kind FrameErrorKind
	Tag  string
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsUnknownTag returns true if the error is an unknown-tag error.
// Unknown tags must never crash the channel or touch the line buffer.
func IsUnknownTag(err error) bool {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Kind == FrameErrorUnknownTag
	}
	return false
}

// Decode decodes one wire payload into a Frame.
//
// Errors:
//   - *FrameError with Kind=FrameErrorDecode: malformed payload (skip, warn)
//   - *FrameError with Kind=FrameErrorUnknownTag: unimplemented tag (ignore)
func Decode(payload []byte) (Frame, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(payload, &elems); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "frame is not a JSON array",
			Err:  err,
		}
	}
	if len(elems) == 0 {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "frame array is empty",
		}
	}

	var tag string
	if err := json.Unmarshal(elems[0], &tag); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "frame tag is not a string",
			Err:  err,
		}
	}

	switch tag {
	case TagStdout:
		text, err := decodeText(tag, elems)
		if err != nil {
			return nil, err
		}
		return Stdout{Text: text}, nil
	case TagStderr:
		text, err := decodeText(tag, elems)
		if err != nil {
			return nil, err
		}
		return Stderr{Text: text}, nil
	case TagStdin:
		text, err := decodeText(tag, elems)
		if err != nil {
			return nil, err
		}
		return Stdin{Text: text}, nil
	case TagDisconnect:
		reason, err := decodeText(tag, elems)
		if err != nil {
			return nil, err
		}
		return Disconnect{Reason: reason}, nil
	case TagSetSize:
		return decodeSetSize(elems)
	default:
		return nil, &FrameError{
			Kind: FrameErrorUnknownTag,
			Tag:  tag,
			Msg:  fmt.Sprintf("unknown frame tag %q", tag),
		}
	}
}

// decodeText extracts the single string payload of a text-carrying frame.
func decodeText(tag string, elems []json.RawMessage) (string, error) {
	if len(elems) < 2 {
		return "", &FrameError{
			Kind: FrameErrorDecode,
			Tag:  tag,
			Msg:  fmt.Sprintf("%s frame missing payload", tag),
		}
	}
	var text string
	if err := json.Unmarshal(elems[1], &text); err != nil {
		return "", &FrameError{
			Kind: FrameErrorDecode,
			Tag:  tag,
			Msg:  fmt.Sprintf("%s payload is not a string", tag),
			Err:  err,
		}
	}
	return text, nil
}

// decodeSetSize extracts the four integer payload of a set_size frame:
// rows, cols, width px, height px.
func decodeSetSize(elems []json.RawMessage) (Frame, error) {
	if len(elems) < 5 {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Tag:  TagSetSize,
			Msg:  fmt.Sprintf("set_size frame needs 4 integers, got %d elements", len(elems)-1),
		}
	}
	dims := make([]int, 4)
	for i := range dims {
		if err := json.Unmarshal(elems[i+1], &dims[i]); err != nil {
			return nil, &FrameError{
				Kind: FrameErrorDecode,
				Tag:  TagSetSize,
				Msg:  "set_size dimension is not an integer",
				Err:  err,
			}
		}
	}
	return SetSize{Rows: dims[0], Cols: dims[1], WidthPx: dims[2], HeightPx: dims[3]}, nil
}

// Encode encodes a Frame into its JSON array wire form.
func Encode(f Frame) ([]byte, error) {
	var arr []any
	switch fr := f.(type) {
	case Stdout:
		arr = []any{TagStdout, fr.Text}
	case Stderr:
		arr = []any{TagStderr, fr.Text}
	case Stdin:
		arr = []any{TagStdin, fr.Text}
	case Disconnect:
		arr = []any{TagDisconnect, fr.Reason}
	case SetSize:
		arr = []any{TagSetSize, fr.Rows, fr.Cols, fr.WidthPx, fr.HeightPx}
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("cannot encode frame type %T", f),
		}
	}
	payload, err := json.Marshal(arr)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Tag:  f.Tag(),
			Msg:  "frame encode failed",
			Err:  err,
		}
	}
	return payload, nil
}
