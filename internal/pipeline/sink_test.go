package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	if err := sink.Dispatch("first"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := sink.Dispatch("second"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	want := "first\nsecond\n"
	if got := buf.String(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")
	sink := NewFileSink(path)

	if err := sink.Dispatch("hello"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := sink.Dispatch("world"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read transcript file: %v", err)
	}

	want := "hello world "
	if string(data) != want {
		t.Errorf("Expected %q, got %q", want, string(data))
	}
}

func TestFileSinkBadPath(t *testing.T) {
	sink := NewFileSink(filepath.Join(t.TempDir(), "missing", "transcript.txt"))

	if err := sink.Dispatch("hello"); err == nil {
		t.Errorf("Expected error for unwritable path")
	}
}
