package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	if New(true) == nil {
		t.Fatal("Expected logger to not be nil")
	}
	if New(false) == nil {
		t.Fatal("Expected logger to not be nil")
	}
}

func TestNew_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true)
	logger.Debug("test debug message")

	if !strings.Contains(buf.String(), "test debug message") {
		t.Errorf("Expected log output to contain 'test debug message', but it didn't")
	}
}

func TestNew_Info_With_Debug_False(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false)
	logger.Debug("test debug message")
	logger.Info("test info message")

	if strings.Contains(buf.String(), "test debug message") {
		t.Errorf("Expected log output to not contain 'test debug message', but it did")
	}
	if !strings.Contains(buf.String(), "test info message") {
		t.Errorf("Expected log output to contain 'test info message', but it didn't")
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false, "text")
	logger.Info("hello", "component", "ratelimit")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("Expected text output, got JSON: %s", out)
	}
	if !strings.Contains(out, "component=ratelimit") {
		t.Errorf("Expected key=value attribute, got %s", out)
	}
}

func TestNewWithOptions_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.log")
	logger := NewWithOptions(Options{File: path})
	logger.Info("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Expected file to contain the record, got %s", data)
	}
}
