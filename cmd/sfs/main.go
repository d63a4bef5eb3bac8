// Command sfs formats, inspects, snapshots and interactively edits sfs images
package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/diskfs/go-sfs"
	"github.com/diskfs/go-sfs/compress"
	"github.com/diskfs/go-sfs/filesystem/sfs"
	"github.com/diskfs/go-sfs/shell"
	"github.com/diskfs/go-sfs/snapshot"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	storeFlags := []cli.Flag{
		&cli.StringFlag{Name: "dir", Usage: "local directory holding snapshots"},
		&cli.StringFlag{Name: "bucket", Usage: "S3 bucket holding snapshots, instead of a local directory"},
		&cli.StringFlag{Name: "region", Usage: "AWS region of the bucket"},
	}
	return &cli.App{
		Name:  appName,
		Usage: "a simple filesystem in a single image file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "config file (default $HOME/.config/sfs.yaml)"},
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "image file or block device"},
			&cli.StringFlag{Name: "log-level", Usage: "panic, fatal, error, warn, info, debug or trace"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
			&cli.UintFlag{Name: "block-size", Usage: "bytes per data block"},
			&cli.UintFlag{Name: "blocks", Usage: "number of data blocks"},
			&cli.UintFlag{Name: "inodes", Usage: "number of inodes"},
			&cli.UintFlag{Name: "max-file-blocks", Usage: "blocks per file"},
			&cli.UintFlag{Name: "max-name-length", Usage: "longest file name in bytes"},
		},
		Action: runShell,
		Commands: []*cli.Command{
			{
				Name:   "shell",
				Usage:  "mount the image and run the interactive shell (default)",
				Action: runShell,
			},
			{
				Name:  "format",
				Usage: "create a new filesystem on the image",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "label", Usage: "volume label"},
					&cli.BoolFlag{Name: "home", Usage: "create /home and start sessions in it"},
					&cli.BoolFlag{Name: "force", Usage: "reformat an image that already holds a filesystem"},
				},
				Action: runFormat,
			},
			{
				Name:   "info",
				Usage:  "show the superblock, usage and image file details",
				Action: runInfo,
			},
			{
				Name:   "check",
				Usage:  "verify the consistency of the filesystem",
				Action: runCheck,
			},
			{
				Name:      "snapshot",
				Usage:     "write a compressed snapshot of the image",
				ArgsUsage: "[KEY]",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "compression", Aliases: []string{"c"}, Usage: "none, gzip, zstd, lz4, xz or lzma"},
				}, storeFlags...),
				Action: runSnapshot,
			},
			{
				Name:      "restore",
				Usage:     "replace the image with a snapshot",
				ArgsUsage: "KEY",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "overwrite an existing image"},
				}, storeFlags...),
				Action: runRestore,
			},
			{
				Name:      "snapshots",
				Usage:     "list stored snapshots",
				ArgsUsage: "[PREFIX]",
				Flags:     storeFlags,
				Action:    runList,
			},
		},
	}
}

// setup loads the config, applies the flags set on the command line and builds the logger
func setup(c *cli.Context) (*Config, *logrus.Logger, error) {
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	for name, dst := range map[string]*string{
		"image":       &cfg.Image,
		"log-level":   &cfg.LogLevel,
		"log-format":  &cfg.LogFormat,
		"label":       &cfg.Label,
		"compression": &cfg.Compression,
		"dir":         &cfg.SnapshotDir,
		"bucket":      &cfg.Bucket,
		"region":      &cfg.Region,
	} {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	for name, dst := range map[string]*uint32{
		"block-size":      &cfg.BlockSize,
		"blocks":          &cfg.Blocks,
		"inodes":          &cfg.Inodes,
		"max-file-blocks": &cfg.MaxFileBlocks,
		"max-name-length": &cfg.MaxNameLength,
	} {
		if c.IsSet(name) {
			*dst = uint32(c.Uint(name))
		}
	}
	if c.IsSet("home") {
		cfg.Home = c.Bool("home")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 2)
	}
	return cfg, cfg.Logger(), nil
}

func runShell(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	prompt := shell.NewPrompter(c.App.Reader, c.App.Writer)
	d, fs, err := shell.Mount(cfg.Image, cfg.Params(log), prompt, log)
	if errors.Is(err, shell.ErrDeclined) {
		return cli.Exit("no filesystem mounted", 1)
	}
	if err != nil {
		return err
	}
	defer d.Close()
	return shell.New(fs, prompt, c.App.Writer, log).Run()
}

func runFormat(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	p := cfg.Params(log)
	d, err := diskfs.Open(cfg.Image, diskfs.WithLogger(log))
	switch {
	case errors.Is(err, os.ErrNotExist):
		d, err = diskfs.Create(cfg.Image, sfs.ImageSize(p), diskfs.WithLogger(log))
	case err == nil && !c.Bool("force"):
		if _, ferr := d.GetFilesystem(p); ferr == nil {
			_ = d.Close()
			return cli.Exit(fmt.Sprintf("%s already holds a filesystem, use --force to reformat it", cfg.Image), 1)
		}
	}
	if err != nil {
		return err
	}
	defer d.Close()

	fs, err := d.CreateFilesystem(p)
	if err != nil {
		return err
	}
	u := fs.Usage()
	fmt.Fprintf(c.App.Writer, "Formatted %s: volume %s, %d blocks of %d bytes, %d inodes.\n", cfg.Image, fs.UUID(), u.TotalBlocks, u.BlockSize, u.TotalInodes)
	return fs.Close()
}

// mountReadOnly opens the image read only and reads its filesystem. The filesystem must
// not be closed since closing flushes the tables.
func mountReadOnly(cfg *Config, log logrus.FieldLogger) (*diskfs.Disk, *sfs.FileSystem, error) {
	d, err := diskfs.Open(cfg.Image, diskfs.WithOpenMode(diskfs.ReadOnly), diskfs.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	fs, err := d.GetFilesystem(cfg.Params(log))
	if err != nil {
		_ = d.Close()
		return nil, nil, err
	}
	return d, fs, nil
}

func runInfo(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	d, fs, err := mountReadOnly(cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	w := c.App.Writer
	u := fs.Usage()
	fmt.Fprintf(w, "image:        %s (%d bytes)\n", d.Path, d.Size)
	if d.Device {
		fmt.Fprintf(w, "sectors:      %d logical, %d physical\n", d.LogicalBlocksize, d.PhysicalBlocksize)
	}
	fmt.Fprintf(w, "volume:       %s\n", fs.UUID())
	fmt.Fprintf(w, "label:        %s\n", fs.Label())
	fmt.Fprintf(w, "blocks:       %d used, %d free, %d total, %d bytes each\n", u.UsedBlocks(), u.FreeBlocks, u.TotalBlocks, u.BlockSize)
	fmt.Fprintf(w, "inodes:       %d used, %d free, %d total\n", u.UsedInodes(), u.FreeInodes, u.TotalInodes)
	fmt.Fprintf(w, "free extents: %d\n", len(fs.FreeExtents()))

	if ts, err := d.Times(); err == nil {
		fmt.Fprintf(w, "modified:     %s\n", ts.ModTime().Format(time.RFC3339))
		fmt.Fprintf(w, "accessed:     %s\n", ts.AccessTime().Format(time.RFC3339))
		if ts.HasChangeTime() {
			fmt.Fprintf(w, "changed:      %s\n", ts.ChangeTime().Format(time.RFC3339))
		}
		if ts.HasBirthTime() {
			fmt.Fprintf(w, "created:      %s\n", ts.BirthTime().Format(time.RFC3339))
		}
	} else {
		log.WithError(err).Warn("could not read image times")
	}

	switch tag, ok, err := d.VolumeTag(); {
	case err != nil:
		log.WithError(err).Warn("could not read volume tag")
	case !ok:
		fmt.Fprintln(w, "tag:          none")
	case tag != fs.UUID():
		fmt.Fprintf(w, "tag:          %s (does not match the volume, image was overwritten)\n", tag)
	default:
		fmt.Fprintln(w, "tag:          matches volume")
	}
	return nil
}

func runCheck(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	d, fs, err := mountReadOnly(cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()
	problems := fs.Check()
	for _, p := range problems {
		fmt.Fprintf(c.App.Writer, "problem: %v\n", p)
	}
	if len(problems) > 0 {
		return cli.Exit(fmt.Sprintf("%d problems found", len(problems)), 3)
	}
	fmt.Fprintln(c.App.Writer, "No problems found.")
	return nil
}

func openStore(cfg *Config) (snapshot.Store, error) {
	if cfg.Bucket != "" {
		return snapshot.NewS3Store(cfg.Bucket, cfg.Region)
	}
	return &snapshot.DirStore{Dir: cfg.SnapshotDir}, nil
}

func runSnapshot(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	t, err := compress.ParseType(cfg.Compression)
	if err != nil {
		return err
	}
	compressor, err := compress.New(t)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	d, fs, err := mountReadOnly(cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	key := c.Args().First()
	if key == "" {
		key = snapshot.Name(fs.Label(), time.Now())
	}
	var b bytes.Buffer
	h, err := snapshot.Write(&b, d.File, fs.Size(), fs.UUID(), compressor)
	if err != nil {
		return err
	}
	size := b.Len()
	if err := store.PutObject(key, bytes.NewReader(b.Bytes())); err != nil {
		return fmt.Errorf("storing snapshot %s: %w", key, err)
	}
	log.WithFields(logrus.Fields{"key": key, "compression": t.String()}).Info("stored snapshot")
	fmt.Fprintf(c.App.Writer, "Snapshot %s: %d bytes compressed to %d with %s.\n", key, h.Size, size, t)
	return nil
}

func runRestore(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	key := c.Args().First()
	if key == "" || c.NArg() > 1 {
		return cli.Exit("usage: sfs restore KEY", 2)
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	body, err := store.GetObject(key)
	if err != nil {
		return err
	}
	defer body.Close()

	p := cfg.Params(log)
	d, err := diskfs.Open(cfg.Image, diskfs.WithLogger(log))
	switch {
	case errors.Is(err, os.ErrNotExist):
		d, err = diskfs.Create(cfg.Image, sfs.ImageSize(p), diskfs.WithLogger(log))
	case err == nil && !c.Bool("force"):
		_ = d.Close()
		return cli.Exit(fmt.Sprintf("%s exists, use --force to overwrite it", cfg.Image), 1)
	}
	if err != nil {
		return err
	}
	defer d.Close()

	h, err := snapshot.Restore(body, d.File)
	if err != nil {
		return err
	}
	if err := d.SetVolumeTag(h.UUID); err != nil {
		log.WithError(err).Warn("could not tag image with volume id")
	}
	if _, err := d.GetFilesystem(p); err != nil {
		log.WithError(err).Warn("restored image does not mount with the configured capacities")
	}
	fmt.Fprintf(c.App.Writer, "Restored volume %s from %s (%s, %d bytes).\n", h.UUID, key, h.Compression, h.Size)
	return nil
}

func runList(c *cli.Context) error {
	cfg, _, err := setup(c)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	keys, err := store.ListObjects(c.Args().First())
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Fprintln(c.App.Writer, key)
	}
	return nil
}
