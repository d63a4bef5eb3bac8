package snapshot

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestName(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	tests := []struct {
		label, expected string
	}{
		{"Scratch Disk", "scratch-disk-20260304T050607Z.sfsnap"},
		{"", "sfs-20260304T050607Z.sfsnap"},
		{"  ", "sfs-20260304T050607Z.sfsnap"},
	}
	for _, tt := range tests {
		if got := Name(tt.label, at); got != tt.expected {
			t.Errorf("Name(%q) = %q, expected %q", tt.label, got, tt.expected)
		}
	}
}

func TestDirStore(t *testing.T) {
	store := &DirStore{Dir: t.TempDir()}
	for _, key := range []string{"b.sfsnap", "a.sfsnap", "nested/c.sfsnap"} {
		if err := store.PutObject(key, strings.NewReader("data of "+key)); err != nil {
			t.Fatalf("PutObject(%q) = %v", key, err)
		}
	}
	keys, err := store.ListObjects("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a.sfsnap", "b.sfsnap", "nested/c.sfsnap"}, keys); diff != "" {
		t.Errorf("ListObjects() mismatch (-want +got):\n%s", diff)
	}
	keys, _ = store.ListObjects("nested/")
	if diff := cmp.Diff([]string{"nested/c.sfsnap"}, keys); diff != "" {
		t.Errorf("ListObjects(nested/) mismatch (-want +got):\n%s", diff)
	}

	body, err := store.GetObject("a.sfsnap")
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	b, _ := io.ReadAll(body)
	if !bytes.Equal(b, []byte("data of a.sfsnap")) {
		t.Errorf("GetObject() = %q", b)
	}
	_, err = store.GetObject("missing")
	var notFound *ObjectNotFoundErr
	if !errors.As(err, &notFound) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("GetObject(missing) = %v, expected ObjectNotFoundErr", err)
	}
	if err := store.PutObject("../escape", strings.NewReader("x")); err == nil {
		t.Errorf("PutObject() accepted a key outside the directory")
	}
}
