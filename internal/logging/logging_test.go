package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewPrefixesComponent(t *testing.T) {
	l := New("daemon")
	if !strings.Contains(l.Prefix(), "daemon") {
		t.Errorf("expected prefix to contain component name, got %q", l.Prefix())
	}
}

func TestRedirectToFileWritesToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pwcli.log")
	logger, closer, err := RedirectToFile("relay", path)
	if err != nil {
		t.Fatal(err)
	}
	defer closer()

	logger.Println("hello")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "hello") {
		t.Errorf("expected log file to contain message, got %q", string(raw))
	}
}

func TestRedirectToFileInvalidPathErrors(t *testing.T) {
	_, _, err := RedirectToFile("relay", filepath.Join(t.TempDir(), "missing-dir", "pwcli.log"))
	if err == nil {
		t.Error("expected error opening log file in nonexistent directory")
	}
}

func TestDiscardDoesNotPanic(t *testing.T) {
	l := Discard("daemon")
	l.Println("swallowed")
}
