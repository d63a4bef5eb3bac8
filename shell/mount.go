package shell

import (
	"errors"
	"fmt"
	"os"

	"github.com/diskfs/go-sfs"
	"github.com/diskfs/go-sfs/filesystem/sfs"
	"github.com/sirupsen/logrus"
)

// Mount opens the image at path and mounts the filesystem on it. A missing image is
// created, and an image without a valid filesystem is reformatted, each only after the
// user confirms; declining returns ErrDeclined.
func Mount(path string, p *sfs.Params, prompt *Prompter, log logrus.FieldLogger) (*diskfs.Disk, *sfs.FileSystem, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	d, err := diskfs.Open(path, diskfs.WithLogger(log))
	if errors.Is(err, os.ErrNotExist) {
		ok, err := prompt.Confirm(fmt.Sprintf("Image %s does not exist. Create a new filesystem?", path))
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, ErrDeclined
		}
		if d, err = diskfs.Create(path, sfs.ImageSize(p), diskfs.WithLogger(log)); err != nil {
			return nil, nil, err
		}
		return format(d, p, prompt)
	}
	if err != nil {
		return nil, nil, err
	}

	fs, err := d.GetFilesystem(p)
	if sfs.IsInvalidImage(err) {
		log.WithError(err).Warn("image holds no valid filesystem")
		ok, cerr := prompt.Confirm(fmt.Sprintf("Image %s does not contain a valid filesystem. Initialize it, destroying its contents?", path))
		if cerr != nil || !ok {
			_ = d.Close()
			if cerr != nil {
				return nil, nil, cerr
			}
			return nil, nil, ErrDeclined
		}
		return format(d, p, prompt)
	}
	if err != nil {
		_ = d.Close()
		return nil, nil, err
	}
	fmt.Fprintf(prompt.out, "Filesystem mounted. Current directory: %s\n", fs.Getwd())
	return d, fs, nil
}

func format(d *diskfs.Disk, p *sfs.Params, prompt *Prompter) (*diskfs.Disk, *sfs.FileSystem, error) {
	fs, err := d.CreateFilesystem(p)
	if err != nil {
		_ = d.Close()
		return nil, nil, fmt.Errorf("could not create filesystem: %w", err)
	}
	fmt.Fprintf(prompt.out, "Filesystem formatted. Current directory: %s\n", fs.Getwd())
	return d, fs, nil
}
