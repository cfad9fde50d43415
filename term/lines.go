package term

import (
	"regexp"
	"strings"
)

// Classification of one completed line.
type Classification int

const (
	// ClassOutput is real program output, forwarded to the caller.
	ClassOutput Classification = iota
	// ClassBoilerplate is shell plumbing (echoed setup/teardown commands,
	// session artifacts), suppressed unless verbose.
	ClassBoilerplate
	// ClassSentinel is the exit-marker line.
	ClassSentinel
)

// DefaultPrompt is the prompt decoration stripped from line starts.
// The prologue clears PS1, but the line carrying the prologue itself is
// still rendered under the shell's default prompt.
const DefaultPrompt = "$ "

// Session artifacts suppressed alongside the echoed prologue. This list
// is deliberately literal; loosening it risks suppressing real output.
var sessionArtifacts = []string{"exit", "logout"}

// ansiPattern matches CSI sequences, OSC sequences, and single-character
// escapes. Display stripping only; this is not a terminal emulator.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)|\x1b[@-Z\\-_]`)

// StripEscapes removes display escape sequences from a line.
func StripEscapes(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// LineProcessor reassembles a raw byte stream into complete lines,
// strips escape sequences and prompt decoration, and classifies each
// line. The buffer is mutated only from the single per-channel event
// stream, so no locking is needed.
//
// Chunking invariance: feeding a stream as one chunk or as arbitrary
// sub-chunks yields the identical sequence of completed lines.
type LineProcessor struct {
	marker      string
	prompt      string
	boilerplate map[string]struct{}
	emit        func(line string, class Classification)
	buf         strings.Builder
	flushed     bool
}

// NewLineProcessor creates a processor for one channel.
//
// marker is the exit-marker token (classification key is "marker:");
// pass empty to disable sentinel detection. boilerplate lists the exact
// command lines whose echo must be suppressed. emit receives every
// completed line with its classification.
func NewLineProcessor(marker string, boilerplate []string, emit func(string, Classification)) *LineProcessor {
	suppress := make(map[string]struct{}, len(boilerplate)+len(sessionArtifacts))
	for _, line := range boilerplate {
		suppress[strings.TrimSpace(line)] = struct{}{}
	}
	for _, line := range sessionArtifacts {
		suppress[line] = struct{}{}
	}

	return &LineProcessor{
		marker:      marker,
		prompt:      DefaultPrompt,
		boilerplate: suppress,
		emit:        emit,
	}
}

// Feed consumes one raw chunk. Every embedded newline completes a line.
func (p *LineProcessor) Feed(chunk string) {
	if p.flushed {
		return
	}
	for {
		idx := strings.IndexByte(chunk, '\n')
		if idx < 0 {
			p.buf.WriteString(chunk)
			return
		}
		p.buf.WriteString(chunk[:idx])
		line := p.buf.String()
		p.buf.Reset()
		p.process(line)
		chunk = chunk[idx+1:]
	}
}

// Flush completes the trailing unterminated line, if any. Called exactly
// once when the channel closes; later Feed calls are ignored.
func (p *LineProcessor) Flush() {
	if p.flushed {
		return
	}
	p.flushed = true
	if p.buf.Len() == 0 {
		return
	}
	line := p.buf.String()
	p.buf.Reset()
	p.process(line)
}

// process strips and classifies one completed line.
func (p *LineProcessor) process(line string) {
	line = strings.TrimSuffix(line, "\r")
	line = StripEscapes(line)
	if strings.HasPrefix(line, p.prompt) {
		line = line[len(p.prompt):]
	}

	trimmed := strings.TrimSpace(line)

	if p.marker != "" && strings.HasPrefix(trimmed, p.marker+":") {
		p.emit(trimmed, ClassSentinel)
		return
	}
	if _, ok := p.boilerplate[trimmed]; ok && trimmed != "" {
		p.emit(line, ClassBoilerplate)
		return
	}
	p.emit(line, ClassOutput)
}

// SentinelStatus extracts the integer status from a sentinel line of
// the form "<marker>:<digits>". Returns ok=false for malformed
// suffixes; the caller leaves the exit code unset in that case.
func SentinelStatus(line, marker string) (int, bool) {
	suffix, found := strings.CutPrefix(line, marker+":")
	if !found || suffix == "" {
		return 0, false
	}
	status := 0
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return 0, false
		}
		status = status*10 + int(c-'0')
	}
	return status, true
}
