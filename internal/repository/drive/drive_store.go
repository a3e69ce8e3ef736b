// Package drive keeps the remote copy of the inventory workbook, and the
// image backups, in Google Drive.
package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mamadbah2/toolstock/internal/repository/remote"
)

// Store implements remote.Store on top of the Drive v3 API.
type Store struct {
	service *driveapi.Service
	logger  *zap.Logger
}

var _ remote.Store = (*Store)(nil)

// NewStore builds a Drive backed store. Credentials and endpoint come from opts.
func NewStore(ctx context.Context, logger *zap.Logger, opts ...option.ClientOption) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts = append([]option.ClientOption{option.WithScopes(driveapi.DriveScope)}, opts...)
	service, err := driveapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize drive client: %w", err)
	}

	return &Store{service: service, logger: logger}, nil
}

// Download fetches the raw content of a file.
func (s *Store) Download(ctx context.Context, id string) ([]byte, error) {
	resp, err := s.service.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id, translate(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}

	s.logger.Debug("file downloaded", zap.String("file_id", id), zap.Int("bytes", len(data)))
	return data, nil
}

// Upload replaces the content of an existing file, keeping its id.
func (s *Store) Upload(ctx context.Context, id string, data []byte, mimeType string) error {
	_, err := s.service.Files.Update(id, &driveapi.File{}).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", id, translate(err))
	}

	s.logger.Debug("file updated", zap.String("file_id", id), zap.Int("bytes", len(data)))
	return nil
}

// List looks files up by exact name, ignoring trashed ones.
func (s *Store) List(ctx context.Context, name string) ([]remote.FileInfo, error) {
	query := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name))

	resp, err := s.service.Files.List().
		Q(query).
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", name, translate(err))
	}

	out := make([]remote.FileInfo, 0, len(resp.Files))
	for _, f := range resp.Files {
		out = append(out, remote.FileInfo{ID: f.Id, Name: f.Name})
	}
	return out, nil
}

// Create uploads a new file, optionally inside the parent folder.
func (s *Store) Create(ctx context.Context, parent, name string, data []byte, mimeType string) (remote.FileInfo, error) {
	meta := &driveapi.File{Name: name}
	if parent != "" {
		meta.Parents = []string{parent}
	}

	created, err := s.service.Files.Create(meta).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		Fields("id, name").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return remote.FileInfo{}, fmt.Errorf("create %q: %w", name, translate(err))
	}

	s.logger.Info("file created", zap.String("file_id", created.Id), zap.String("name", created.Name))
	return remote.FileInfo{ID: created.Id, Name: created.Name}, nil
}

// SetPublic grants read access to anyone with the link.
func (s *Store) SetPublic(ctx context.Context, id string) error {
	perm := &driveapi.Permission{Role: "reader", Type: "anyone"}
	if _, err := s.service.Permissions.Create(id, perm).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return fmt.Errorf("share %s: %w", id, translate(err))
	}
	return nil
}

// Link returns the browser URL of a file.
func (s *Store) Link(id string) string {
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", id)
}

func translate(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", remote.ErrNotFound, apiErr.Message)
	}
	return err
}

func escapeQuery(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
