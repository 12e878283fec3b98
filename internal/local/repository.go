package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const DefaultFileMode fs.FileMode = 0o644

type Option func(*Repository)

// Repository keeps run reports on the local filesystem, one directory per
// run. A report file is either absent or complete: content is staged in a
// temporary file next to its destination and renamed into place.
type Repository struct {
	basePath string
	prefix   string
	mode     fs.FileMode
	logger   *zap.Logger
}

// WithPrefix places every key under prefix, normally the run id.
func WithPrefix(prefix string) Option {
	return func(r *Repository) {
		r.prefix = prefix
	}
}

func WithFileMode(mode fs.FileMode) Option {
	return func(r *Repository) {
		r.mode = mode
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

func New(basePath string, opts ...Option) *Repository {
	r := &Repository{
		basePath: basePath,
		mode:     DefaultFileMode,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns where key is stored. Keys may not leave the run directory.
func (r *Repository) Path(key string) (string, error) {
	root := filepath.Join(r.basePath, r.prefix)
	p := filepath.Join(root, key)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid report key %q", key)
	}
	return p, nil
}

func (r *Repository) Write(ctx context.Context, key string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := r.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*")
	if err != nil {
		return fmt.Errorf("staging %s: %w", key, err)
	}
	staged := tmp.Name()
	defer os.Remove(staged)

	n, err := io.Copy(tmp, reader)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}

	if err := os.Chmod(staged, r.mode); err != nil {
		return fmt.Errorf("setting mode on %s: %w", key, err)
	}
	if err := os.Rename(staged, p); err != nil {
		return fmt.Errorf("publishing %s: %w", key, err)
	}

	r.logger.Info("report file written",
		zap.String("path", p),
		zap.Int64("bytes", n),
	)
	return nil
}
