// Package remote describes the capability a remote file store offers to the
// durable store: fetch, overwrite, look up, create and publish a file.
package remote

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the remote file does not exist.
var ErrNotFound = errors.New("remote file not found")

// FileInfo identifies a remote file.
type FileInfo struct {
	ID   string
	Name string
}

// Store is implemented by every remote backend.
type Store interface {
	// Download returns the content of the file with the given id.
	Download(ctx context.Context, id string) ([]byte, error)
	// Upload overwrites the content of an existing file.
	Upload(ctx context.Context, id string, data []byte, mimeType string) error
	// List returns the files whose name equals name.
	List(ctx context.Context, name string) ([]FileInfo, error)
	// Create stores a new file under parent (which may be empty) and returns it.
	Create(ctx context.Context, parent, name string, data []byte, mimeType string) (FileInfo, error)
	// SetPublic makes a file readable by anyone holding its link.
	SetPublic(ctx context.Context, id string) error
	// Link returns a human-openable URL for the file.
	Link(id string) string
}
