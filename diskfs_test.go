package diskfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/diskfs/go-sfs/filesystem/sfs"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testParams() *sfs.Params {
	return &sfs.Params{BlockSize: 512, TotalBlocks: 16, TotalInodes: 8, MaxFileBlocks: 4, MaxNameLength: 32}
}

func TestCreateOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := Create(path, 1024, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if _, err := Create(path, 1024); err == nil {
		t.Errorf("Create() over an existing image succeeded")
	}
	fs, err := d.CreateFilesystem(testParams())
	if err != nil {
		t.Fatalf("CreateFilesystem() = %v", err)
	}
	if err := fs.CreateFile("/kept"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Close(); err != nil {
		t.Fatal(err)
	}
	if d.Size != sfs.ImageSize(testParams()) {
		t.Errorf("disk size = %d, expected %d", d.Size, sfs.ImageSize(testParams()))
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	d, err = Open(path, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	defer d.Close()
	fs, err = d.GetFilesystem(testParams())
	if err != nil {
		t.Fatalf("GetFilesystem() = %v", err)
	}
	if _, err := fs.Stat("/kept"); err != nil {
		t.Errorf("file lost across reopen: %v", err)
	}
	if _, err := d.Times(); err != nil {
		t.Errorf("Times() = %v", err)
	}
}

func TestOpenLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := Create(path, 4096, WithLogger(testLogger()))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if _, err := Open(path, WithLogger(testLogger())); !errors.Is(err, ErrLocked) {
		t.Errorf("second Open() = %v, expected ErrLocked", err)
	}
	if _, err := Open(path, WithOpenMode(ReadOnly), WithLogger(testLogger())); !errors.Is(err, ErrLocked) {
		t.Errorf("read only Open() of a locked image = %v, expected ErrLocked", err)
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(path, make([]byte, 4096), 0o600); err != nil {
		t.Fatal(err)
	}
	d, err := Open(path, WithOpenMode(ReadOnly), WithLogger(testLogger()))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if _, err := d.CreateFilesystem(testParams()); err == nil {
		t.Errorf("CreateFilesystem() on a read only disk succeeded")
	}
	if _, err := d.GetFilesystem(testParams()); !sfs.IsInvalidImage(err) {
		t.Errorf("GetFilesystem() on a blank image = %v, expected an invalid image error", err)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "none.img")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() = %v, expected os.ErrNotExist", err)
	}
	if _, err := Open(""); err == nil {
		t.Errorf("Open() with an empty path succeeded")
	}
}

func TestVolumeTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := Create(path, 4096, WithLogger(testLogger()))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if _, ok, err := d.VolumeTag(); err != nil || ok {
		t.Skipf("untagged image reports %v, %v; extended attributes unusable here", ok, err)
	}
	id := uuid.New()
	if err := d.SetVolumeTag(id); err != nil {
		t.Skipf("extended attributes unsupported on this filesystem: %v", err)
	}
	got, ok, err := d.VolumeTag()
	if err != nil {
		t.Fatal(err)
	}
	if ok && got != id {
		t.Errorf("VolumeTag() = %s, expected %s", got, id)
	}
}
