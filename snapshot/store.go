package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/gosimple/slug"
)

// Extension is appended to generated snapshot names
const Extension = ".sfsnap"

// Store keeps snapshots under string keys
type Store interface {
	PutObject(key string, data io.ReadSeeker) error
	GetObject(key string) (io.ReadCloser, error)
	ListObjects(prefix string) ([]string, error)
}

// ObjectNotFoundErr is returned by a Store for a key it does not hold
type ObjectNotFoundErr struct {
	Bucket string
	Key    string
}

func (err *ObjectNotFoundErr) Error() string {
	if err.Bucket == "" {
		return fmt.Sprintf("snapshot not found: %s", err.Key)
	}
	return fmt.Sprintf("snapshot not found: %s/%s", err.Bucket, err.Key)
}

// Is makes errors.Is(err, os.ErrNotExist) hold
func (err *ObjectNotFoundErr) Is(target error) bool {
	return target == os.ErrNotExist
}

// Name returns a key for a snapshot of the volume with the given label taken at t
func Name(label string, t time.Time) string {
	base := slug.Make(label)
	if base == "" {
		base = "sfs"
	}
	return base + "-" + t.UTC().Format("20060102T150405Z") + Extension
}

// DirStore keeps snapshots as files in a local directory
type DirStore struct {
	Dir string
}

func (ds *DirStore) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || filepath.IsAbs(key) {
		return "", fmt.Errorf("invalid snapshot key %q", key)
	}
	return filepath.Join(ds.Dir, filepath.FromSlash(key)), nil
}

func (ds *DirStore) PutObject(key string, data io.ReadSeeker) error {
	p, err := ds.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (ds *DirStore) GetObject(key string) (io.ReadCloser, error) {
	p, err := ds.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &ObjectNotFoundErr{Key: key}
	}
	return f, err
}

func (ds *DirStore) ListObjects(prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(ds.Dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(ds.Dir, p)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	sort.Strings(keys)
	return keys, err
}

// S3Store keeps snapshots in an S3 bucket
type S3Store struct {
	Client *s3.S3
	Bucket string
}

// NewS3Store returns a store for bucket using the default AWS credential chain. An empty
// region falls back to the AWS configuration.
func NewS3Store(bucket, region string) (*S3Store, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return &S3Store{Client: s3.New(sess), Bucket: bucket}, nil
}

func (ss *S3Store) PutObject(key string, data io.ReadSeeker) error {
	_, err := ss.Client.PutObject(&s3.PutObjectInput{
		Bucket: &ss.Bucket,
		Key:    &key,
		Body:   data,
	})
	return err
}

func (ss *S3Store) GetObject(key string) (io.ReadCloser, error) {
	rsp, err := ss.Client.GetObject(&s3.GetObjectInput{
		Bucket: &ss.Bucket,
		Key:    &key,
	})
	if err != nil {
		if err, ok := err.(awserr.Error); ok {
			if err.Code() == s3.ErrCodeNoSuchKey {
				return nil, &ObjectNotFoundErr{ss.Bucket, key}
			}
		}
		return nil, err
	}
	return rsp.Body, nil
}

func (ss *S3Store) ListObjects(prefix string) ([]string, error) {
	var keys []string
	err := ss.Client.ListObjectsPages(
		&s3.ListObjectsInput{
			Bucket: &ss.Bucket,
			Prefix: &prefix,
		},
		func(rsp *s3.ListObjectsOutput, lastPage bool) bool {
			for _, object := range rsp.Contents {
				keys = append(keys, *object.Key)
			}
			return true
		},
	)
	return keys, err
}
