package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

// run executes the app against a small image and returns what it printed
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SFS_CONFIG_FILE", "")
	var out bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	base := []string{appName, "--log-level", "error", "--block-size", "512", "--blocks", "64", "--inodes", "16", "--max-file-blocks", "4"}
	err := app.Run(append(base, args...))
	return out.String(), err
}

func TestFormatInfoCheck(t *testing.T) {
	img := filepath.Join(t.TempDir(), "disk.img")

	out, err := run(t, "", "--image", img, "format", "--label", "docs")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.Contains(out, "Formatted "+img) {
		t.Errorf("format output %q", out)
	}

	if _, err := run(t, "", "--image", img, "format"); err == nil {
		t.Error("reformatting without --force succeeded")
	}
	if _, err := run(t, "", "--image", img, "format", "--force", "--label", "docs"); err != nil {
		t.Errorf("format --force: %v", err)
	}

	out, err = run(t, "", "--image", img, "info")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"label:        docs", "blocks:       1 used, 63 free, 64 total, 512 bytes each", "inodes:       2 used, 14 free, 16 total"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, "", "--image", img, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "No problems found.") {
		t.Errorf("check output %q", out)
	}
}

func TestInvalidFlags(t *testing.T) {
	img := filepath.Join(t.TempDir(), "disk.img")
	if _, err := run(t, "", "--image", img, "--log-format", "xml", "format"); err == nil {
		t.Error("invalid log format accepted")
	}
	if _, err := run(t, "", "--image", img, "--block-size", "1000", "format"); err == nil {
		t.Error("invalid block size accepted")
	}
	if _, err := run(t, "", "--image", img, "info"); err == nil {
		t.Error("info on a missing image succeeded")
	}
}

func TestShellCommand(t *testing.T) {
	img := filepath.Join(t.TempDir(), "disk.img")
	if _, err := run(t, "", "--image", img, "format"); err != nil {
		t.Fatalf("format: %v", err)
	}
	out, err := run(t, "mkdir notes\nc notes/a.txt\nw notes/a.txt\nhello\nls notes\ne\n", "--image", img, "shell")
	if err != nil {
		t.Fatalf("shell: %v", err)
	}
	for _, want := range []string{"File 'notes/a.txt' created.", "- a.txt (file, 5 bytes)", "Filesystem unmounted, all data saved."} {
		if !strings.Contains(out, want) {
			t.Errorf("shell output missing %q:\n%s", want, out)
		}
	}

	// declining to create a missing image mounts nothing
	missing := filepath.Join(t.TempDir(), "missing.img")
	if _, err := run(t, "n\n", "--image", missing); err == nil {
		t.Error("declined mount reported success")
	}
}

func TestSnapshotRestore(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "disk.img")
	snaps := filepath.Join(dir, "snaps")
	if _, err := run(t, "", "--image", img, "format", "--label", "My Docs"); err != nil {
		t.Fatalf("format: %v", err)
	}
	if _, err := run(t, "c kept.txt\nw kept.txt\nstill here\ne\n", "--image", img); err != nil {
		t.Fatalf("shell: %v", err)
	}

	out, err := run(t, "", "--image", img, "snapshot", "--dir", snaps, "--compression", "gzip", "first.sfsnap")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !strings.Contains(out, "Snapshot first.sfsnap") || !strings.Contains(out, "with gzip") {
		t.Errorf("snapshot output %q", out)
	}
	if _, err := run(t, "", "--image", img, "snapshot", "--dir", snaps); err != nil {
		t.Fatalf("snapshot with generated name: %v", err)
	}

	out, err = run(t, "", "snapshots", "--dir", snaps)
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	keys := strings.Fields(out)
	if len(keys) != 2 || keys[0] != "first.sfsnap" || !strings.HasPrefix(keys[1], "my-docs-") {
		t.Errorf("snapshots listed %v", keys)
	}

	if _, err := run(t, "", "--image", img, "restore", "--dir", snaps, "first.sfsnap"); err == nil {
		t.Error("restore over an existing image without --force succeeded")
	}
	if _, err := run(t, "", "--image", img, "restore", "--dir", snaps); err == nil {
		t.Error("restore without a key succeeded")
	}

	restored := filepath.Join(dir, "restored.img")
	if _, err := run(t, "", "--image", restored, "restore", "--dir", snaps, "first.sfsnap"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	out, err = run(t, "r /home/kept.txt\ne\n", "--image", restored)
	if err != nil {
		t.Fatalf("shell on restored image: %v", err)
	}
	if !strings.Contains(out, "still here") {
		t.Errorf("restored file missing:\n%s", out)
	}
}
