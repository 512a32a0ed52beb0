package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"wa_ingest/storage"
)

// ErrExportDirMissing is returned when the local export directory does not exist.
var ErrExportDirMissing = errors.New("export directory does not exist")

// Source lists and opens chat export files. List returns names in the
// order they should be ingested.
type Source interface {
	Name() string
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// DirSource reads exports from a local directory (not recursive).
type DirSource struct {
	Dir string
	Ext string
}

func NewDirSource(dir, ext string) *DirSource {
	return &DirSource{Dir: dir, Ext: ext}
}

func (d *DirSource) Name() string { return d.Dir }

func (d *DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrExportDirMissing, d.Dir)
		}
		return nil, fmt.Errorf("read export dir: %w", err)
	}

	// ReadDir sorts by filename
	var names []string
	for _, e := range entries {
		if e.IsDir() || !hasExt(e.Name(), d.Ext) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (d *DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(d.Dir, name))
}

func hasExt(name, ext string) bool {
	return len(name) >= len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext)
}

// S3Source reads exports stored as objects under a bucket prefix.
type S3Source struct {
	client *storage.S3Client
	prefix string
	ext    string
}

func NewS3Source(client *storage.S3Client, prefix, ext string) *S3Source {
	return &S3Source{client: client, prefix: prefix, ext: ext}
}

func (s *S3Source) Name() string {
	return "s3://" + s.client.Bucket() + "/" + s.prefix
}

func (s *S3Source) List(ctx context.Context) ([]string, error) {
	return s.client.ListKeys(ctx, s.prefix, s.ext)
}

func (s *S3Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.client.Open(ctx, key)
}
