package shell

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diskfs/go-sfs/filesystem/sfs"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testParams() *sfs.Params {
	return &sfs.Params{BlockSize: 512, TotalBlocks: 32, TotalInodes: 16, MaxFileBlocks: 4, MaxNameLength: 32, Logger: testLogger()}
}

func testFS(t *testing.T) *sfs.FileSystem {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "shell.img"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })
	fs, err := sfs.Create(f, 0, testParams())
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

func testShell(t *testing.T, input string) (*Shell, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return New(testFS(t), NewPrompter(strings.NewReader(input), &out), &out, testLogger()), &out
}

func TestExecArguments(t *testing.T) {
	s, _ := testShell(t, "")
	tests := []struct {
		line     string
		expected error
	}{
		{"", ErrMalformedCommand},
		{"c", ErrMalformedCommand},
		{"c a b", ErrMalformedCommand},
		{"mv /a", ErrMalformedCommand},
		{"pwd extra", ErrMalformedCommand},
		{"frobnicate x", ErrUnknownCommand},
		{"ls", nil},
		{"pwd", nil},
		{"help", nil},
	}
	for _, tt := range tests {
		if _, err := s.Exec(tt.line); !errors.Is(err, tt.expected) {
			t.Errorf("Exec(%q) = %v, expected %v", tt.line, err, tt.expected)
		}
	}
	if exit, err := s.Exec("e"); !exit || err != nil {
		t.Errorf("Exec(e) = %v, %v; expected exit", exit, err)
	}
}

func TestExecScenarios(t *testing.T) {
	t.Run("write and read", func(t *testing.T) {
		s, out := testShell(t, "hello\n")
		for _, line := range []string{"mkdir /home", "c /home/notes", "w /home/notes"} {
			if _, err := s.Exec(line); err != nil {
				t.Fatalf("Exec(%q) = %v", line, err)
			}
		}
		out.Reset()
		if _, err := s.Exec("r /home/notes"); err != nil {
			t.Fatal(err)
		}
		if got := out.String(); got != "hello\n" {
			t.Errorf("r printed %q, expected hello", got)
		}
	})
	t.Run("recursive delete", func(t *testing.T) {
		s, out := testShell(t, "")
		for _, line := range []string{"mkdir /a", "mkdir /a/b", "cd /a/b"} {
			if _, err := s.Exec(line); err != nil {
				t.Fatalf("Exec(%q) = %v", line, err)
			}
		}
		if _, err := s.Exec("rmdir /a"); !errors.Is(err, sfs.ErrNotEmpty) {
			t.Errorf("rmdir /a = %v, expected ErrNotEmpty", err)
		}
		if _, err := s.Exec("rm /a"); err != nil {
			t.Fatalf("rm /a = %v", err)
		}
		out.Reset()
		if _, err := s.Exec("ls /"); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(out.String(), "- a ") {
			t.Errorf("ls / still lists a:\n%s", out)
		}
	})
	t.Run("move", func(t *testing.T) {
		s, out := testShell(t, "")
		for _, line := range []string{"c /x", "mkdir /y", "mv /x /y"} {
			if _, err := s.Exec(line); err != nil {
				t.Fatalf("Exec(%q) = %v", line, err)
			}
		}
		out.Reset()
		if _, err := s.Exec("ls /y"); err != nil {
			t.Fatal(err)
		}
		expected := "Contents of '/y':\n- x (file, 0 bytes)\n"
		if diff := cmp.Diff(expected, out.String()); diff != "" {
			t.Errorf("ls /y mismatch (-want +got):\n%s", diff)
		}
		if _, err := s.Exec("mv /x /y"); !errors.Is(err, sfs.ErrSourceNotFound) {
			t.Errorf("repeated mv = %v, expected ErrSourceNotFound", err)
		}
	})
}

func TestRun(t *testing.T) {
	script := strings.Join([]string{
		"mkdir docs",
		"cd docs",
		"c todo",
		"w todo",
		"buy milk",
		"rmdir /",
		"df",
		"check",
		"e",
		"pwd",
	}, "\n") + "\n"
	s, out := testShell(t, script)
	if err := s.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	for _, expected := range []string{
		"\n/: ",
		"\n/docs: ",
		"Wrote 8 bytes to 'todo'.",
		"error: rmdir '/': operation not permitted on the root directory",
		"No problems found.",
		"Filesystem unmounted, all data saved.",
	} {
		if !strings.Contains(out.String(), expected) {
			t.Errorf("output does not contain %q:\n%s", expected, out)
		}
	}
	// commands after e are not run
	if strings.Contains(out.String(), "/docs: /docs\n") {
		t.Errorf("pwd after e was executed:\n%s", out)
	}
	if _, err := s.fs.ReadDir(""); !errors.Is(err, sfs.ErrNotMounted) {
		t.Errorf("filesystem still mounted after Run: %v", err)
	}
}

func TestRunEOF(t *testing.T) {
	s, out := testShell(t, "mkdir /a")
	if err := s.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if !strings.Contains(out.String(), "Directory '/a' created.") {
		t.Errorf("last line without newline was not executed:\n%s", out)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" y \r\n", true},
		{"n\n", false},
		{"\n", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		ok, err := NewPrompter(strings.NewReader(tt.input), &out).Confirm("Proceed?")
		if err != nil {
			t.Fatal(err)
		}
		if ok != tt.expected {
			t.Errorf("Confirm() with %q = %v, expected %v", tt.input, ok, tt.expected)
		}
		if out.String() != "Proceed? (y/n): " {
			t.Errorf("Confirm() asked %q", out.String())
		}
	}
	if _, err := NewPrompter(strings.NewReader(""), io.Discard).Confirm("Proceed?"); !errors.Is(err, io.EOF) {
		t.Errorf("Confirm() on empty input = %v, expected io.EOF", err)
	}
}
