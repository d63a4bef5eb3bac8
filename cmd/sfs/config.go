package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/diskfs/go-sfs/compress"
	"github.com/diskfs/go-sfs/filesystem/sfs"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "SFS"
	appName      = "sfs"
	defaultImage = "virtual_disk.img"
)

// Config is read from the YAML config file and then overridden by SFS_* environment
// variables and finally by command line flags
type Config struct {
	Image         string `split_words:"true" yaml:"image"`
	LogLevel      string `split_words:"true" yaml:"logLevel"`
	LogFormat     string `split_words:"true" yaml:"logFormat"`
	Label         string `split_words:"true" yaml:"label"`
	Home          bool   `split_words:"true" yaml:"home"`
	BlockSize     uint32 `split_words:"true" yaml:"blockSize"`
	Blocks        uint32 `split_words:"true" yaml:"blocks"`
	Inodes        uint32 `split_words:"true" yaml:"inodes"`
	MaxFileBlocks uint32 `split_words:"true" yaml:"maxFileBlocks"`
	MaxNameLength uint32 `split_words:"true" yaml:"maxNameLength"`
	Compression   string `split_words:"true" yaml:"compression"`
	SnapshotDir   string `split_words:"true" yaml:"snapshotDir"`
	Bucket        string `split_words:"true" yaml:"bucket"`
	Region        string `split_words:"true" yaml:"region"`
}

func defaultConfig() Config {
	return Config{
		Image:         defaultImage,
		LogLevel:      logrus.WarnLevel.String(),
		LogFormat:     "text",
		Home:          true,
		BlockSize:     sfs.DefaultBlockSize,
		Blocks:        sfs.DefaultTotalBlocks,
		Inodes:        sfs.DefaultTotalInodes,
		MaxFileBlocks: sfs.DefaultMaxFileBlocks,
		MaxNameLength: sfs.DefaultMaxNameLength,
		Compression:   compress.TypeZstd.String(),
		SnapshotDir:   ".",
	}
}

// configFile returns the config file to read and whether it was asked for explicitly
func configFile(flag string) (string, bool) {
	if flag != "" {
		return flag, true
	}
	if env := os.Getenv(envVarPrefix + "_CONFIG_FILE"); env != "" {
		return env, true
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(home, ".config", appName+".yaml"), false
}

// LoadConfig layers defaults, the config file and the environment. A config file that was
// named explicitly must exist; the default one is optional.
func LoadConfig(path string) (*Config, error) {
	c := defaultConfig()
	file, explicit := configFile(path)
	if file != "" {
		data, err := os.ReadFile(file)
		switch {
		case err == nil:
			if err := yaml.UnmarshalStrict(data, &c); err != nil {
				return nil, fmt.Errorf("unmarshaling config file %s: %w", file, err)
			}
		case !errors.Is(err, os.ErrNotExist) || explicit:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

// Validate checks every setting can be used
func (c *Config) Validate() error {
	if c.Image == "" {
		return errors.New("missing required setting: image (SFS_IMAGE)")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q, must be text or json", c.LogFormat)
	}
	if _, err := compress.ParseType(c.Compression); err != nil {
		return err
	}
	p := c.Params(nil)
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid capacities: %w", err)
	}
	return nil
}

// Params returns the filesystem parameters described by the config
func (c *Config) Params(log logrus.FieldLogger) *sfs.Params {
	return &sfs.Params{
		BlockSize:     c.BlockSize,
		TotalBlocks:   c.Blocks,
		TotalInodes:   c.Inodes,
		MaxFileBlocks: c.MaxFileBlocks,
		MaxNameLength: c.MaxNameLength,
		VolumeLabel:   c.Label,
		Home:          c.Home,
		Logger:        log,
	}
}

// Logger returns a logger writing to stderr at the configured level and format
func (c *Config) Logger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(level)
	}
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}
