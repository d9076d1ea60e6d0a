package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type StreamMode string

const (
	StreamInstant    StreamMode = "instant"
	StreamTypewriter StreamMode = "typewriter"
	StreamQuiet      StreamMode = "quiet"
)

// StreamWriter renders generation chunks to stdout. Its Write method
// matches the session stream callback, so it plugs straight into
// GenerateStream; it never asks for cancellation.
type StreamWriter struct {
	mode   StreamMode
	buffer *bufio.Writer

	// For quiet mode
	accumulator strings.Builder

	rawOutput bool
}

func NewStreamWriter(mode StreamMode, rawOutput bool) *StreamWriter {
	return &StreamWriter{
		mode:      mode,
		buffer:    bufio.NewWriterSize(os.Stdout, 4096),
		rawOutput: rawOutput,
	}
}

// Write handles a single chunk of generated text.
func (w *StreamWriter) Write(chunk string) error {
	switch w.mode {
	case StreamTypewriter:
		w.writeTypewriter(chunk)
	case StreamQuiet:
		w.accumulator.WriteString(chunk)
	default:
		w.writeInstant(chunk)
	}
	return nil
}

// Finish flushes buffered content; in quiet mode this is where the
// accumulated text is printed.
func (w *StreamWriter) Finish() {
	if w.mode == StreamQuiet {
		text := w.accumulator.String()
		if w.rawOutput {
			text = escapeRawOutput(text)
		}
		fmt.Fprint(w.buffer, text)
	}
	_ = w.buffer.Flush()
}

func (w *StreamWriter) writeInstant(chunk string) {
	if w.rawOutput {
		chunk = escapeRawOutput(chunk)
	}
	_, _ = w.buffer.WriteString(chunk)
	_ = w.buffer.Flush()
}

// writeTypewriter emits character by character without artificial delay.
func (w *StreamWriter) writeTypewriter(chunk string) {
	for _, r := range chunk {
		if w.rawOutput {
			_, _ = w.buffer.WriteString(escapeRawOutputRune(r))
		} else {
			fmt.Fprintf(w.buffer, "%c", r)
		}
		_ = w.buffer.Flush()
	}
}

func escapeRawOutput(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteString(escapeRawOutputRune(r))
	}
	return b.String()
}

// escapeRawOutputRune escapes a single rune for raw output
func escapeRawOutputRune(r rune) string {
	switch r {
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	case '\\':
		return `\\`
	default:
		if strconv.IsPrint(r) {
			return string(r)
		}
		return fmt.Sprintf(`\u%04x`, r)
	}
}
