package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

// Writer is an io.Writer implementation that forwards subprocess output to slog.
// Output is split on newlines; each complete line becomes one info record.
// A trailing partial line is held until the next write or Flush.
type Writer struct {
	logger *slog.Logger
	attrs  []any

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewWriter constructs a Writer bound to the provided logger. The attrs are
// attached to every emitted record (e.g. "step", "build", "stream", "stdout").
func NewWriter(logger *slog.Logger, attrs ...any) *Writer {
	return &Writer{logger: logger, attrs: attrs}
}

// Write logs every complete line in p.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		w.emit(line)
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return
	}
	w.emit(w.buf.String())
	w.buf.Reset()
}

func (w *Writer) emit(line string) {
	if w.logger == nil {
		return
	}
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	args := append([]any{"line", line}, w.attrs...)
	w.logger.Info("command output", args...)
}
