package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
	"github.com/spf13/afero"
)

// MaxImageSize is the largest accepted upload (2 MiB)
const MaxImageSize = 2 << 20

const listingDir = "images/listings"

var (
	ErrUnsupportedImage = errors.New("image must be a jpeg, jpg, png or gif file")
	ErrImageTooLarge    = errors.New("image must not exceed 2 MiB")
	ErrInvalidPath      = errors.New("path is outside the image directory")
)

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
}

// ImageStore persists listing images and returns paths relative to its root
type ImageStore interface {
	Store(ctx context.Context, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

type fsImageStore struct {
	fs afero.Fs
}

// NewImageStore creates an ImageStore writing to fs
func NewImageStore(fs afero.Fs) ImageStore {
	return &fsImageStore{fs: fs}
}

// NewOSImageStore creates an ImageStore rooted at dir on the local disk
func NewOSImageStore(dir string) ImageStore {
	return NewImageStore(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// Store writes r under a freshly generated name keeping the extension of filename
func (s *fsImageStore) Store(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", ErrUnsupportedImage
	}

	if err := s.fs.MkdirAll(listingDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	name := path.Join(listingDir, xid.New().String()+ext)
	f, err := s.fs.Create(name)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(r, MaxImageSize+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = s.fs.Remove(name)
		return "", fmt.Errorf("failed to write image: %w", copyErr)
	case n > MaxImageSize:
		_ = s.fs.Remove(name)
		return "", ErrImageTooLarge
	case closeErr != nil:
		_ = s.fs.Remove(name)
		return "", fmt.Errorf("failed to close image file: %w", closeErr)
	}

	return name, nil
}

// Delete removes a stored image. A file that is already gone is not an error.
func (s *fsImageStore) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clean := path.Clean(p)
	if !strings.HasPrefix(clean, listingDir+"/") {
		return ErrInvalidPath
	}

	if err := s.fs.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
