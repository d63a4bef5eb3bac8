// Package diskfs opens and creates the images and block devices an sfs filesystem lives on.
//
// An image is locked exclusively while it is open for writing, so a second process cannot
// mount it at the same time. Regular files and block devices are both supported; for block
// devices the size and sector sizes are read from the kernel.
package diskfs

import (
	"errors"
	"fmt"
	"os"

	"github.com/diskfs/go-sfs/filesystem/sfs"
	"github.com/djherbis/times"
	"github.com/google/uuid"
	"github.com/pkg/xattr"
	"github.com/sirupsen/logrus"
)

// OpenModeOption represents file open modes
type OpenModeOption int

const (
	// ReadOnly open file in read only mode
	ReadOnly OpenModeOption = iota
	// ReadWriteExclusive open file in read-write exclusive mode
	ReadWriteExclusive
)

// volumeTagAttr is the extended attribute recording which volume an image holds
const volumeTagAttr = "user.sfs.volume"

// ErrLocked is returned when another process holds the image
var ErrLocked = errors.New("image is in use by another process")

// Disk is an opened image file or block device
type Disk struct {
	File              *os.File
	Path              string
	Size              int64
	LogicalBlocksize  int64
	PhysicalBlocksize int64
	Writable          bool
	Device            bool
	log               logrus.FieldLogger
}

type openOpts struct {
	mode   OpenModeOption
	logger logrus.FieldLogger
}

// OpenOpt configures Open
type OpenOpt func(o *openOpts)

// WithOpenMode sets the open mode; the default is ReadWriteExclusive
func WithOpenMode(mode OpenModeOption) OpenOpt {
	return func(o *openOpts) {
		o.mode = mode
	}
}

// WithLogger sets the logger; the default is the logrus standard logger
func WithLogger(l logrus.FieldLogger) OpenOpt {
	return func(o *openOpts) {
		o.logger = l
	}
}

// Open an existing image or block device
func Open(device string, opts ...OpenOpt) (*Disk, error) {
	o := openOpts{mode: ReadWriteExclusive, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if device == "" {
		return nil, errors.New("must pass device or image path")
	}
	flags := os.O_RDONLY
	if o.mode == ReadWriteExclusive {
		flags = os.O_RDWR
	}
	f, err := os.OpenFile(device, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open device %s: %w", device, err)
	}
	d, err := initDisk(f, device, o)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return d, nil
}

// Create a new image file of the given size. The file must not exist yet.
func Create(device string, size int64, opts ...OpenOpt) (*Disk, error) {
	o := openOpts{mode: ReadWriteExclusive, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	o.mode = ReadWriteExclusive
	if device == "" {
		return nil, errors.New("must pass image path")
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid image size %d", size)
	}
	f, err := os.OpenFile(device, os.O_RDWR|os.O_EXCL|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("could not create image %s: %w", device, err)
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not expand image %s to size %d: %w", device, size, err)
	}
	d, err := initDisk(f, device, o)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return d, nil
}

func initDisk(f *os.File, device string, o openOpts) (*Disk, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not get info for device %s: %w", device, err)
	}
	d := &Disk{
		File:              f,
		Path:              device,
		LogicalBlocksize:  512,
		PhysicalBlocksize: 512,
		Writable:          o.mode == ReadWriteExclusive,
		log:               o.logger,
	}
	switch mode := info.Mode(); {
	case mode.IsRegular():
		d.Size = info.Size()
	case mode&os.ModeDevice != 0:
		d.Device = true
		if d.Size, err = getBlockDeviceSize(f); err != nil {
			return nil, fmt.Errorf("error getting block device %s size: %w", device, err)
		}
		if d.LogicalBlocksize, d.PhysicalBlocksize, err = getSectorSizes(f); err != nil {
			return nil, fmt.Errorf("unable to get sector sizes for device %s: %w", device, err)
		}
	default:
		return nil, fmt.Errorf("device %s is neither a block device nor a regular file", device)
	}
	if err := lockFile(f, d.Writable); err != nil {
		return nil, fmt.Errorf("could not lock %s: %w", device, err)
	}
	d.log.WithFields(logrus.Fields{
		"path":     device,
		"size":     d.Size,
		"writable": d.Writable,
	}).Debug("opened image")
	return d, nil
}

// Close releases the lock and closes the underlying file
func (d *Disk) Close() error {
	if d.File == nil {
		return nil
	}
	unlockErr := unlockFile(d.File)
	err := d.File.Close()
	d.File = nil
	if err != nil {
		return fmt.Errorf("could not close %s: %w", d.Path, err)
	}
	return unlockErr
}

// CreateFilesystem formats a new filesystem on the whole disk. The image grows to fit the
// capacities in p if it is a regular file; a block device must already be large enough.
func (d *Disk) CreateFilesystem(p *sfs.Params) (*sfs.FileSystem, error) {
	if !d.Writable {
		return nil, errors.New("disk opened read only")
	}
	fsParams := d.params(p)
	size := sfs.ImageSize(&fsParams)
	if d.Device && size > d.Size {
		return nil, fmt.Errorf("filesystem needs %d bytes, device %s has %d", size, d.Path, d.Size)
	}
	if fsParams.BlockSize != 0 && int64(fsParams.BlockSize)%d.LogicalBlocksize != 0 {
		return nil, fmt.Errorf("block size %d is not a multiple of the logical sector size %d", fsParams.BlockSize, d.LogicalBlocksize)
	}
	fs, err := sfs.Create(d.File, 0, &fsParams)
	if err != nil {
		return nil, err
	}
	if !d.Device {
		d.Size = size
	}
	if err := d.SetVolumeTag(fs.UUID()); err != nil {
		d.log.WithError(err).Warn("could not tag image with volume id")
	}
	return fs, nil
}

// GetFilesystem mounts the filesystem on the disk
func (d *Disk) GetFilesystem(p *sfs.Params) (*sfs.FileSystem, error) {
	fsParams := d.params(p)
	return sfs.Read(d.File, 0, &fsParams)
}

func (d *Disk) params(p *sfs.Params) sfs.Params {
	var out sfs.Params
	if p != nil {
		out = *p
	}
	if out.Logger == nil {
		out.Logger = d.log
	}
	return out
}

// Times returns the access, modification and, where the platform records them, change
// and birth times of the image file
func (d *Disk) Times() (times.Timespec, error) {
	ts, err := times.StatFile(d.File)
	if err != nil {
		return nil, fmt.Errorf("could not read times of %s: %w", d.Path, err)
	}
	return ts, nil
}

// SetVolumeTag records the volume id in an extended attribute of the image file. It is a
// no-op where extended attributes are unsupported.
func (d *Disk) SetVolumeTag(id uuid.UUID) error {
	if !xattr.XATTR_SUPPORTED || d.Device {
		return nil
	}
	if err := xattr.FSet(d.File, volumeTagAttr, []byte(id.String())); err != nil {
		return fmt.Errorf("could not set %s on %s: %w", volumeTagAttr, d.Path, err)
	}
	return nil
}

// VolumeTag returns the volume id recorded by SetVolumeTag. ok is false when the image
// carries no tag.
func (d *Disk) VolumeTag() (id uuid.UUID, ok bool, err error) {
	if !xattr.XATTR_SUPPORTED || d.Device {
		return uuid.Nil, false, nil
	}
	b, err := xattr.FGet(d.File, volumeTagAttr)
	if errors.Is(err, xattr.ENOATTR) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("could not read %s on %s: %w", volumeTagAttr, d.Path, err)
	}
	if id, err = uuid.ParseBytes(b); err != nil {
		return uuid.Nil, false, fmt.Errorf("invalid volume tag %q on %s: %w", b, d.Path, err)
	}
	return id, true, nil
}
