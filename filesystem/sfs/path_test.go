package sfs

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-test/deep"
)

// testTree builds /a, /a/b, /a/b/f and /g, inodes 1 to 4, and changes into /a
func testTree(t *testing.T) *FileSystem {
	t.Helper()
	fs := testFileSystem(t, testParams())
	for _, step := range []struct {
		dir  bool
		path string
	}{
		{true, "/a"},
		{true, "/a/b"},
		{false, "/a/b/f"},
		{false, "/g"},
	} {
		create := fs.CreateFile
		if step.dir {
			create = fs.Mkdir
		}
		if err := create(step.path); err != nil {
			t.Fatalf("creating %s: %v", step.path, err)
		}
	}
	if err := fs.Chdir("/a"); err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestResolve(t *testing.T) {
	fs := testTree(t)
	tests := []struct {
		path     string
		expected resolution
	}{
		{"/", resolution{inode: rootInode, parent: noInode, name: "/", found: true}},
		{"/a/b", resolution{inode: 2, parent: 1, name: "b", found: true}},
		{"/a/./b/../b", resolution{inode: 2, parent: 1, name: "b", found: true}},
		{"b", resolution{inode: 2, parent: 1, name: "b", found: true}},
		{"b/f", resolution{inode: 3, parent: 2, name: "f", found: true}},
		{"//a//b", resolution{inode: 2, parent: 1, name: "b", found: true}},
		{"../g", resolution{inode: 4, parent: rootInode, name: "g", found: true}},
		{"../../..", resolution{inode: rootInode, parent: noInode, name: "/", found: true}},
		{".", resolution{inode: 1, parent: rootInode, name: "a", found: true}},
		{"/a/b/", resolution{inode: 2, parent: 1, name: "", found: true}},
		{"/a/x/y", resolution{inode: noInode, parent: 1, name: "x", found: false}},
		{"../missing", resolution{inode: noInode, parent: rootInode, name: "missing", found: false}},
		{"g", resolution{inode: noInode, parent: 1, name: "g", found: false}},
	}
	deep.CompareUnexportedFields = true
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if diff := deep.Equal(fs.resolve(tt.path), tt.expected); diff != nil {
				t.Errorf("resolve(%q): %v", tt.path, diff)
			}
		})
	}
}

func TestResolvePublic(t *testing.T) {
	fs := testTree(t)
	number, parent, name, err := fs.Resolve("/a/b/f")
	if err != nil {
		t.Fatal(err)
	}
	if number != 3 || parent != 2 || name != "f" {
		t.Errorf("Resolve() = %d, %d, %q; expected 3, 2, f", number, parent, name)
	}
	if _, _, _, err := fs.Resolve("/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(/nope) = %v, expected ErrNotFound", err)
	}
}

func TestSplitParent(t *testing.T) {
	tests := []struct {
		path, dir, name string
	}{
		{"file", ".", "file"},
		{"/file", "/", "file"},
		{"/a/b/file", "/a/b", "file"},
		{"a/file", "a", "file"},
		{"/", "/", ""},
	}
	for _, tt := range tests {
		dir, name := splitParent(tt.path)
		if dir != tt.dir || name != tt.name {
			t.Errorf("splitParent(%q) = %q, %q; expected %q, %q", tt.path, dir, name, tt.dir, tt.name)
		}
	}
}

func TestValidateName(t *testing.T) {
	fs := testFileSystem(t, testParams())
	tests := []struct {
		name     string
		expected error
	}{
		{"notes.txt", nil},
		{"ключ", nil},
		{"", ErrInvalidName},
		{".", ErrInvalidName},
		{"..", ErrInvalidName},
		{"tab\there", ErrInvalidName},
		{"nul\x00", ErrInvalidName},
		{"del\x7f", ErrInvalidName},
		{strings.Repeat("n", 16), nil},
		{strings.Repeat("n", 17), ErrNameTooLong},
	}
	for _, tt := range tests {
		err := fs.validateName(tt.name)
		if !errors.Is(err, tt.expected) || (err != nil && tt.expected == nil) {
			t.Errorf("validateName(%q) = %v, expected %v", tt.name, err, tt.expected)
		}
	}
}

func TestPathOf(t *testing.T) {
	fs := testTree(t)
	for number, expected := range map[uint32]string{0: "/", 1: "/a", 2: "/a/b", 3: "/a/b/f"} {
		if got := fs.pathOf(number); got != expected {
			t.Errorf("pathOf(%d) = %q, expected %q", number, got, expected)
		}
	}
	if !fs.isAncestor(1, 3) || fs.isAncestor(2, 4) || !fs.isAncestor(2, 2) {
		t.Errorf("isAncestor() disagrees with the tree")
	}
}
