package pipeline

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Sink receives gatekeeper-approved transcripts. Implementations may be slow
// (typing, chat); the pipeline does not wait on them beyond the dispatch call.
type Sink interface {
	Dispatch(text string) error
}

// WriterSink writes approved transcripts to an io.Writer, one per line.
type WriterSink struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriterSink creates a sink around the given writer.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Dispatch writes the transcript followed by a newline.
func (s *WriterSink) Dispatch(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintln(s.w, text); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// FileSink appends approved transcripts to a log file, space-separated, the
// way a running conversation log reads.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink creates a sink appending to the given path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Dispatch appends the transcript to the file.
func (s *FileSink) Dispatch(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open transcript log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s ", text); err != nil {
		return fmt.Errorf("failed to append transcript: %w", err)
	}
	return nil
}
