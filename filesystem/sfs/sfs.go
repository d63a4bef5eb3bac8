// Package sfs implements a simple filesystem over a single flat image: a superblock with
// a block bitmap, a fixed inode table and a flat directory entry table whose parent/child
// relationships are derived from the parent recorded in each inode.
//
// The whole metadata region is held in memory while mounted. Every mutating operation
// rewrites the tables it touched before returning.
package sfs

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/diskfs/go-sfs/filesystem"
	"github.com/diskfs/go-sfs/util"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBlockSize is the size of a data block in bytes
	DefaultBlockSize uint32 = 4096
	// DefaultTotalBlocks is the number of data blocks in an image
	DefaultTotalBlocks uint32 = 1024
	// DefaultTotalInodes is the number of inode and directory entry slots
	DefaultTotalInodes uint32 = 128
	// DefaultMaxFileBlocks is the number of direct blocks an inode can reference
	DefaultMaxFileBlocks uint32 = 16
	// DefaultMaxNameLength is the longest file name in bytes
	DefaultMaxNameLength uint32 = 255

	// HomeDirectory is the directory a session starts in when root contains it
	HomeDirectory = "home"

	minBlockSize uint32 = 512
	maxBlockSize uint32 = 1 << 20
)

// Params are the capacities of an image and the options used to format or mount it.
// Zero capacities take the package defaults.
type Params struct {
	BlockSize     uint32
	TotalBlocks   uint32
	TotalInodes   uint32
	MaxFileBlocks uint32
	MaxNameLength uint32

	// UUID of the volume, only used by Create. A random one is generated if nil.
	UUID *uuid.UUID
	// VolumeLabel is only used by Create
	VolumeLabel string
	// Home makes Create add a /home directory and start the session in it
	Home bool
	// Logger receives debug output for every mutation; defaults to the logrus standard logger
	Logger logrus.FieldLogger
}

func (p *Params) withDefaults() Params {
	var out Params
	if p != nil {
		out = *p
	}
	if out.BlockSize == 0 {
		out.BlockSize = DefaultBlockSize
	}
	if out.TotalBlocks == 0 {
		out.TotalBlocks = DefaultTotalBlocks
	}
	if out.TotalInodes == 0 {
		out.TotalInodes = DefaultTotalInodes
	}
	if out.MaxFileBlocks == 0 {
		out.MaxFileBlocks = DefaultMaxFileBlocks
	}
	if out.MaxNameLength == 0 {
		out.MaxNameLength = DefaultMaxNameLength
	}
	if out.Logger == nil {
		out.Logger = logrus.StandardLogger()
	}
	return out
}

// Validate reports whether the capacities, with defaults applied, can be formatted
func (p *Params) Validate() error {
	return p.withDefaults().validate()
}

func (p Params) validate() error {
	switch {
	case p.BlockSize < minBlockSize || p.BlockSize > maxBlockSize || p.BlockSize&(p.BlockSize-1) != 0:
		return fmt.Errorf("block size %d must be a power of 2 between %d and %d", p.BlockSize, minBlockSize, maxBlockSize)
	case p.TotalInodes < 2:
		return fmt.Errorf("need at least 2 inodes, not %d", p.TotalInodes)
	case p.TotalInodes >= noInode:
		return fmt.Errorf("too many inodes: %d", p.TotalInodes)
	case p.MaxNameLength > 0xffff:
		return fmt.Errorf("maximum name length %d does not fit the directory entry", p.MaxNameLength)
	case len(p.VolumeLabel) > maxLabelLength:
		return fmt.Errorf("volume label %q longer than %d bytes", p.VolumeLabel, maxLabelLength)
	}
	return nil
}

// layout is the set of fixed offsets of the regions of an image
type layout struct {
	superblockSize  int64
	inodeSize       int64
	entrySize       int64
	inodeTableStart int64
	directoryStart  int64
	dataStart       int64
	size            int64
}

func newLayout(p Params) layout {
	l := layout{
		superblockSize: int64(superblockSize(p.TotalBlocks)),
		inodeSize:      int64(inodeSize(p.MaxFileBlocks)),
		entrySize:      int64(directoryEntrySize(p.MaxNameLength)),
	}
	l.inodeTableStart = l.superblockSize
	l.directoryStart = l.inodeTableStart + l.inodeSize*int64(p.TotalInodes)
	l.dataStart = l.directoryStart + l.entrySize*int64(p.TotalInodes)
	l.size = l.dataStart + int64(p.TotalBlocks)*int64(p.BlockSize)
	return l
}

// ImageSize returns the number of bytes an image with the given capacities occupies
func ImageSize(p *Params) int64 {
	return newLayout(p.withDefaults()).size
}

// FileSystem is a mounted image. All of its tables are resident in memory and owned
// exclusively by it until Close.
type FileSystem struct {
	mu         sync.Mutex
	file       util.File
	start      int64
	params     Params
	layout     layout
	superblock *superblock
	inodes     []*inode
	entries    *directoryTable
	cwd        uint32
	cwdPath    string
	mounted    bool
	log        logrus.FieldLogger
}

var _ filesystem.FileSystem = (*FileSystem)(nil)

// Create formats a new filesystem in f, starting start bytes into it, and returns it mounted.
//
// Any existing content of the metadata region is overwritten, and the data region is zeroed,
// extending f if it is too small.
func Create(f util.File, start int64, p *Params) (*FileSystem, error) {
	params := p.withDefaults()
	if err := params.validate(); err != nil {
		return nil, err
	}
	fsuuid := params.UUID
	if fsuuid == nil {
		fsuuid2, err := uuid.NewRandom()
		if err != nil {
			return nil, fmt.Errorf("could not generate volume UUID: %w", err)
		}
		fsuuid = &fsuuid2
	}

	fs := &FileSystem{
		file:   f,
		start:  start,
		params: params,
		layout: newLayout(params),
		superblock: &superblock{
			blockSize:     params.BlockSize,
			totalBlocks:   params.TotalBlocks,
			freeBlocks:    params.TotalBlocks,
			totalInodes:   params.TotalInodes,
			freeInodes:    params.TotalInodes,
			maxFileBlocks: params.MaxFileBlocks,
			maxNameLength: params.MaxNameLength,
			uuid:          *fsuuid,
			volumeLabel:   params.VolumeLabel,
			blockBitmap:   util.NewBitmap(int(params.TotalBlocks)),
		},
		inodes:  make([]*inode, params.TotalInodes),
		entries: newDirectoryTable(params.TotalInodes),
		cwd:     rootInode,
		cwdPath: "/",
		mounted: true,
		log:     params.Logger,
	}
	for i := range fs.inodes {
		fs.inodes[i] = &inode{number: uint32(i)}
	}

	// the root directory is inode 0 and entry 0, owns no block and has no parent
	root, _ := fs.allocateInode(noInode, true)
	if _, err := fs.entries.attach(root.number, noInode, "/"); err != nil {
		return nil, err
	}

	if err := fs.zeroData(); err != nil {
		return nil, err
	}
	if err := fs.flush(regionAll); err != nil {
		return nil, err
	}
	fs.log.WithFields(logrus.Fields{
		"uuid":   fsuuid.String(),
		"blocks": params.TotalBlocks,
		"inodes": params.TotalInodes,
	}).Debug("formatted filesystem")

	if params.Home {
		if err := fs.Mkdir("/" + HomeDirectory); err != nil {
			return nil, fmt.Errorf("could not create home directory: %w", err)
		}
		fs.startSession()
	}
	return fs, nil
}

// Read mounts the filesystem found in f, starting start bytes into it.
//
// The image must match the capacities in p, otherwise the returned error wraps ErrInvalidImage.
func Read(f util.File, start int64, p *Params) (*FileSystem, error) {
	params := p.withDefaults()
	if err := params.validate(); err != nil {
		return nil, err
	}
	l := newLayout(params)

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("could not determine image size: %w", err)
	}
	if size := end - start; size < l.dataStart {
		return nil, fmt.Errorf("%w: image holds %d bytes, metadata alone needs %d", ErrInvalidImage, size, l.dataStart)
	}

	metadata := make([]byte, l.dataStart)
	if err = readFull(f, metadata, start); err != nil {
		return nil, fmt.Errorf("could not read metadata from image: %w", err)
	}
	sb, err := superblockFromBytes(metadata[:l.superblockSize])
	if err != nil {
		return nil, fmt.Errorf("%w: could not interpret superblock: %v", ErrInvalidImage, err)
	}
	if err = sb.matches(params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	fs := &FileSystem{
		file:       f,
		start:      start,
		params:     params,
		layout:     l,
		superblock: sb,
		inodes:     make([]*inode, params.TotalInodes),
		entries:    newDirectoryTable(params.TotalInodes),
		cwd:        rootInode,
		cwdPath:    "/",
		mounted:    true,
		log:        params.Logger,
	}
	for i := range fs.inodes {
		offset := l.inodeTableStart + int64(i)*l.inodeSize
		if fs.inodes[i], err = inodeFromBytes(metadata[offset:offset+l.inodeSize], uint32(i), params.MaxFileBlocks); err != nil {
			return nil, fmt.Errorf("%w: could not interpret inode %d: %v", ErrInvalidImage, i, err)
		}
	}
	if root := fs.inodes[rootInode]; !root.used || !root.directory {
		return nil, fmt.Errorf("%w: root inode is not a directory", ErrInvalidImage)
	}
	for i := range fs.entries.entries {
		offset := l.directoryStart + int64(i)*l.entrySize
		de, err := directoryEntryFromBytes(metadata[offset:offset+l.entrySize], params.MaxNameLength)
		if err != nil {
			return nil, fmt.Errorf("%w: could not interpret directory entry %d: %v", ErrInvalidImage, i, err)
		}
		fs.entries.entries[i] = *de
	}
	fs.entries.reindex(fs.parentOf)

	for _, problem := range fs.check() {
		fs.log.WithField("problem", problem.Error()).Warn("filesystem inconsistency")
	}
	fs.startSession()
	fs.log.WithFields(logrus.Fields{
		"uuid": sb.uuid.String(),
		"cwd":  fs.cwdPath,
	}).Debug("mounted filesystem")
	return fs, nil
}

// matches reports whether the superblock was written with the given capacities
func (sb *superblock) matches(p Params) error {
	for _, c := range []struct {
		name        string
		disk, param uint32
	}{
		{"block size", sb.blockSize, p.BlockSize},
		{"total blocks", sb.totalBlocks, p.TotalBlocks},
		{"total inodes", sb.totalInodes, p.TotalInodes},
		{"blocks per file", sb.maxFileBlocks, p.MaxFileBlocks},
		{"maximum name length", sb.maxNameLength, p.MaxNameLength},
	} {
		if c.disk != c.param {
			return fmt.Errorf("%s on image is %d, expected %d", c.name, c.disk, c.param)
		}
	}
	return nil
}

// startSession sets the current directory to /home when root has such a directory,
// otherwise to root
func (fs *FileSystem) startSession() {
	fs.cwd, fs.cwdPath = rootInode, "/"
	if slot, ok := fs.entries.lookup(rootInode, HomeDirectory); ok {
		if home := fs.entries.entries[slot].inode; fs.inodes[home].directory {
			fs.cwd, fs.cwdPath = home, "/"+HomeDirectory
		}
	}
}

func (fs *FileSystem) parentOf(number uint32) (uint32, bool) {
	if number >= uint32(len(fs.inodes)) || !fs.inodes[number].used {
		return 0, false
	}
	return fs.inodes[number].parent, true
}

// Close flushes every table to the image and unmounts the filesystem.
// It does not close the underlying file.
func (fs *FileSystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return ErrNotMounted
	}
	err := fs.flush(regionAll)
	fs.mounted = false
	if err != nil {
		return fmt.Errorf("could not flush tables on unmount: %w", err)
	}
	fs.log.WithField("uuid", fs.superblock.uuid.String()).Debug("unmounted filesystem")
	return nil
}

// Type returns the type code for the filesystem. Always returns filesystem.TypeSFS
func (fs *FileSystem) Type() filesystem.Type {
	return filesystem.TypeSFS
}

// Label read the volume label
func (fs *FileSystem) Label() string {
	if fs.superblock == nil {
		return ""
	}
	return fs.superblock.volumeLabel
}

// SetLabel changes the label on the filesystem
func (fs *FileSystem) SetLabel(label string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.mounted {
		return ErrNotMounted
	}
	if len(label) > maxLabelLength {
		return fmt.Errorf("volume label %q longer than %d bytes", label, maxLabelLength)
	}
	fs.superblock.volumeLabel = label
	return fs.flush(regionSuperblock)
}

// UUID returns the volume identifier
func (fs *FileSystem) UUID() uuid.UUID {
	return fs.superblock.uuid
}

// Size returns the total size of the image region used by the filesystem
func (fs *FileSystem) Size() int64 {
	return fs.layout.size
}

// Usage returns the block and inode accounting from the superblock
func (fs *FileSystem) Usage() filesystem.Usage {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return filesystem.Usage{
		BlockSize:   fs.superblock.blockSize,
		TotalBlocks: fs.superblock.totalBlocks,
		FreeBlocks:  fs.superblock.freeBlocks,
		TotalInodes: fs.superblock.totalInodes,
		FreeInodes:  fs.superblock.freeInodes,
	}
}

// FreeExtents returns the runs of free data blocks in ascending order
func (fs *FileSystem) FreeExtents() []util.Contiguous {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.superblock.blockBitmap.FreeList()
}

// IsInvalidImage reports whether err means the image holds no usable filesystem
func IsInvalidImage(err error) bool {
	return errors.Is(err, ErrInvalidImage)
}
