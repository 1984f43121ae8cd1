package provision

import (
	"bytes"
	"strings"
	"sync"
	"unicode/utf8"
)

// maxLine caps how much of an unterminated line is buffered before it is
// forwarded anyway.
const maxLine = 64 * 1024

// LineWriter is an io.WriteCloser that splits written bytes into lines and
// hands every non-empty line to a callback, in write order. Close flushes a
// trailing line that had no newline.
type LineWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	fn     func(string)
	closed bool
}

// NewLineWriter creates a LineWriter that calls fn for each non-empty line.
func NewLineWriter(fn func(string)) *LineWriter {
	return &LineWriter{fn: fn}
}

// Write implements io.Writer. It never fails.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return len(p), nil
	}

	w.buf.Write(p)

	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}

		line := string(w.buf.Next(i + 1))
		w.emit(line)
	}

	if w.buf.Len() > maxLine {
		data := w.buf.Bytes()
		cut := runeBoundary(data)
		w.emit(string(data[:cut]))
		w.buf.Next(cut)
	}

	return len(p), nil
}

// Close flushes any buffered partial line. Later writes are discarded.
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}

	return nil
}

// runeBoundary returns the length of data without a trailing incomplete
// UTF-8 sequence.
func runeBoundary(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}

		if i > 0 && !utf8.FullRune(data[i:]) {
			return i
		}

		break
	}

	return len(data)
}

func (w *LineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || w.fn == nil {
		return
	}

	w.fn(line)
}
