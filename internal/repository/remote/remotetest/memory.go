// Package remotetest provides an in-memory remote.Store for tests.
package remotetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/mamadbah2/toolstock/internal/repository/remote"
)

// Memory is a remote.Store that keeps files in a map. Setting one of the
// Err fields makes the matching call fail.
type Memory struct {
	mu      sync.Mutex
	files   map[string][]byte
	names   map[string]string
	public  map[string]bool
	nextID  int
	Creates int
	Uploads int

	DownloadErr error
	UploadErr   error
	ListErr     error
	CreateErr   error
	PublicErr   error
}

var _ remote.Store = (*Memory)(nil)

// New returns an empty store.
func New() *Memory {
	return &Memory{
		files:  make(map[string][]byte),
		names:  make(map[string]string),
		public: make(map[string]bool),
	}
}

// Put seeds a file and returns its id.
func (m *Memory) Put(name string, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(name, data)
}

func (m *Memory) putLocked(name string, data []byte) string {
	m.nextID++
	id := fmt.Sprintf("file-%d", m.nextID)
	m.files[id] = append([]byte(nil), data...)
	m.names[id] = name
	return id
}

// Content returns the stored bytes of a file.
func (m *Memory) Content(id string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[id]
	return append([]byte(nil), data...), ok
}

// IsPublic reports whether SetPublic succeeded for id.
func (m *Memory) IsPublic(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.public[id]
}

// Fail sets or clears the error returned by every file operation except
// SetPublic, as a network outage would.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UploadErr = err
	m.DownloadErr = err
	m.ListErr = err
	m.CreateErr = err
}

func (m *Memory) Download(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}
	data, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, remote.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Upload(_ context.Context, id string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil {
		return m.UploadErr
	}
	if _, ok := m.files[id]; !ok {
		return fmt.Errorf("%s: %w", id, remote.ErrNotFound)
	}
	m.files[id] = append([]byte(nil), data...)
	m.Uploads++
	return nil
}

func (m *Memory) List(_ context.Context, name string) ([]remote.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []remote.FileInfo
	for id, n := range m.names {
		if n == name {
			out = append(out, remote.FileInfo{ID: id, Name: n})
		}
	}
	return out, nil
}

func (m *Memory) Create(_ context.Context, _ string, name string, data []byte, _ string) (remote.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return remote.FileInfo{}, m.CreateErr
	}
	m.Creates++
	return remote.FileInfo{ID: m.putLocked(name, data), Name: name}, nil
}

func (m *Memory) SetPublic(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublicErr != nil {
		return m.PublicErr
	}
	m.public[id] = true
	return nil
}

func (m *Memory) Link(id string) string {
	return "https://remote.test/" + id
}
