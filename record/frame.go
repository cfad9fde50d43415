// Package record persists terminal sessions as streams of
// length-prefixed msgpack frames, replayable after the fact.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame size limits. A recorded frame carries at most one wire frame
// payload, so the cap is generous.
const (
	// MaxFrameSize is the maximum recorded frame size (16 MiB), including
	// the length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
	// MaxPayloadSize is the maximum payload size.
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
)

// Direction marks which way a recorded frame travelled.
type Direction string

const (
	// DirIn is a frame received from the runtime.
	DirIn Direction = "in"
	// DirOut is a frame sent to the runtime.
	DirOut Direction = "out"
)

// RecordedFrame is one observed wire frame with recording metadata.
// Payload holds the frame's original JSON encoding so replay never
// depends on the codec's current tag set.
type RecordedFrame struct {
	Seq     uint64    `msgpack:"seq"`
	At      time.Time `msgpack:"at"`
	Dir     Direction `msgpack:"dir"`
	Tag     string    `msgpack:"tag"`
	Payload []byte    `msgpack:"payload"`
}

// RecordErrorKind classifies recording stream errors.
type RecordErrorKind int

const (
	// RecordErrorPartial indicates a truncated frame.
	RecordErrorPartial RecordErrorKind = iota
	// RecordErrorTooLarge indicates a frame exceeding MaxFrameSize.
	RecordErrorTooLarge
	// RecordErrorDecode indicates a msgpack decoding error.
	RecordErrorDecode
)

// RecordError represents a recording stream error.
type RecordError struct {
	Kind RecordErrorKind
	Msg  string
	Err  error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// IsCorruptRecording reports whether err indicates a recording that
// cannot be read further.
func IsCorruptRecording(err error) bool {
	var recErr *RecordError
	return errors.As(err, &recErr)
}

// Encoder writes length-prefixed msgpack frames to a stream.
type Encoder struct {
	w io.Writer
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode appends one recorded frame.
func (e *Encoder) Encode(frame *RecordedFrame) error {
	payload, err := msgpack.Marshal(frame)
	if err != nil {
		return &RecordError{Kind: RecordErrorDecode, Msg: "failed to encode frame", Err: err}
	}
	if len(payload) > MaxPayloadSize {
		return &RecordError{
			Kind: RecordErrorTooLarge,
			Msg:  fmt.Sprintf("frame size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := e.w.Write(lengthBuf[:]); err != nil {
		return err
	}
	_, err = e.w.Write(payload)
	return err
}

// Decoder reads length-prefixed msgpack frames from a stream.
type Decoder struct {
	r io.Reader
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next reads one recorded frame.
//
// Errors:
//   - io.EOF: stream ended cleanly between frames
//   - *RecordError with Kind=RecordErrorPartial: truncated frame
//   - *RecordError with Kind=RecordErrorTooLarge: frame exceeds limit
//   - *RecordError with Kind=RecordErrorDecode: msgpack decode failure
func (d *Decoder) Next() (*RecordedFrame, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.r, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &RecordError{Kind: RecordErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &RecordError{
			Kind: RecordErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return nil, &RecordError{Kind: RecordErrorPartial, Msg: "failed to read payload", Err: err}
	}

	var frame RecordedFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &RecordError{Kind: RecordErrorDecode, Msg: "failed to decode frame", Err: err}
	}
	return &frame, nil
}
