package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"relayshow/lib/config"
)

func TestLogsToStdoutAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	var stdout bytes.Buffer

	logger, closer := newLogger(&stdout, config.LogConfig{File: path, MaxSizeMb: 1})
	logger.Printf("END OF DISPLAY")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(stdout.String(), "END OF DISPLAY") {
		t.Errorf("got stdout %q", stdout.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "END OF DISPLAY") {
		t.Errorf("got file %q", data)
	}
}

func TestNoFile(t *testing.T) {
	var stdout bytes.Buffer
	logger, closer := newLogger(&stdout, config.LogConfig{})
	logger.Printf("hello")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "hello") {
		t.Errorf("got %q", stdout.String())
	}
}
