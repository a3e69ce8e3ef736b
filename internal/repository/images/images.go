// Package images stores instrument photos as image{number}.{ext} files next to
// the workbook, optionally backing them up to the remote store.
package images

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/repository/remote"
)

// Extensions are probed in this order when looking up a photo.
var Extensions = []string{"png", "jpg", "jpeg", "avif"}

// FileName returns the file name a photo of the given instrument is saved under.
func FileName(number int) string {
	return fmt.Sprintf("image%d.png", number)
}

// Repository reads and writes local instrument photos.
type Repository struct {
	dir    string
	remote remote.Store
	folder string
	logger *zap.Logger
}

// NewRepository builds a repository rooted at dir. backup may be nil.
func NewRepository(dir string, backup remote.Store, folder string, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		dir = "."
	}
	return &Repository{dir: dir, remote: backup, folder: folder, logger: logger}
}

// Find returns the path of the local photo for the instrument, if any.
func (r *Repository) Find(number int) (string, bool) {
	for _, ext := range Extensions {
		p := filepath.Join(r.dir, fmt.Sprintf("image%d.%s", number, ext))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Remove deletes every local photo of the instrument. A missing photo is not
// an error.
func (r *Repository) Remove(number int) error {
	var errs []error
	for _, ext := range Extensions {
		p := filepath.Join(r.dir, fmt.Sprintf("image%d.%s", number, ext))
		err := os.Remove(p)
		switch {
		case err == nil:
			r.logger.Info("image removed", zap.Int("number", number), zap.String("path", p))
		case !errors.Is(err, os.ErrNotExist):
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Save writes the photo of the instrument and returns its path. The file is
// written to a temporary name first and renamed into place.
func (r *Repository) Save(number int, data []byte) (string, error) {
	if number <= 0 {
		return "", fmt.Errorf("invalid instrument number %d", number)
	}
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	target := filepath.Join(r.dir, FileName(number))
	tmp, err := os.CreateTemp(r.dir, ".image-*")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("rename image: %w", err)
	}

	r.logger.Info("image saved", zap.Int("number", number), zap.String("path", target))
	return target, nil
}

// Backup copies the photo to the remote images folder and makes it public.
// An existing remote file of the same name is overwritten rather than
// duplicated. It returns the public link, or "" when no remote store is
// configured.
func (r *Repository) Backup(ctx context.Context, number int, data []byte) (string, error) {
	if r.remote == nil {
		return "", nil
	}

	name := FileName(number)
	existing, err := r.remote.List(ctx, name)
	if err != nil {
		return "", fmt.Errorf("look up image %d: %w", number, err)
	}

	var file remote.FileInfo
	if len(existing) > 0 {
		file = existing[0]
		if err := r.remote.Upload(ctx, file.ID, data, "image/png"); err != nil {
			return "", fmt.Errorf("replace image %d: %w", number, err)
		}
	} else {
		file, err = r.remote.Create(ctx, r.folder, name, data, "image/png")
		if err != nil {
			return "", fmt.Errorf("upload image %d: %w", number, err)
		}
	}
	if err := r.remote.SetPublic(ctx, file.ID); err != nil {
		return "", fmt.Errorf("publish image %d: %w", number, err)
	}

	link := r.remote.Link(file.ID)
	r.logger.Info("image backed up", zap.Int("number", number), zap.String("link", link))
	return link, nil
}
