// Package durable owns the inventory table and its persistence: every
// mutation is written to the local workbook before the file is pushed to the
// remote copy. Remote failures never undo or block a local change; they leave
// the store pending until a later sync succeeds.
package durable

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/domain/inventory"
	"github.com/mamadbah2/toolstock/internal/domain/models"
	"github.com/mamadbah2/toolstock/internal/metrics"
	"github.com/mamadbah2/toolstock/internal/repository/excel"
	"github.com/mamadbah2/toolstock/internal/repository/remote"
)

// Journal records committed mutations.
type Journal interface {
	Record(ctx context.Context, event models.ChangeEvent) error
	MarkSynced(ctx context.Context) (int64, error)
}

// Mirror receives the whole table after a successful remote sync.
type Mirror interface {
	Mirror(ctx context.Context, table *inventory.Table) error
}

// Options configures a Store. Only Path is required.
type Options struct {
	Path string

	Remote         remote.Store
	RemoteFileID   string
	RemoteFileName string
	// IDFile remembers the id of a remote file this store created or found,
	// so it is never created twice.
	IDFile string
	// SequenceFile keeps the highest instrument number ever issued, so
	// numbers of deleted records are not reused after a restart. Defaults to
	// Path + ".seq".
	SequenceFile string

	Mirror  Mirror
	Journal Journal
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Now     func() time.Time
}

// Result describes a committed mutation.
type Result struct {
	Record   models.Instrument
	Previous float64
	Synced   bool
}

// Store is the single writer of the inventory table.
type Store struct {
	opts   Options
	logger *zap.Logger
	table  *inventory.Table

	writeMu sync.Mutex
	syncMu  sync.Mutex

	idMu     sync.Mutex
	remoteID string

	pending atomic.Bool

	lastSequence int
}

// New builds a store with an empty table; call Load or PullRemote next.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RemoteFileName == "" {
		opts.RemoteFileName = filepath.Base(opts.Path)
	}
	if opts.SequenceFile == "" && opts.Path != "" {
		opts.SequenceFile = opts.Path + ".seq"
	}
	return &Store{
		opts:     opts,
		logger:   logger,
		table:    inventory.Empty(),
		remoteID: opts.RemoteFileID,
	}
}

// Table returns the live table for reading.
func (s *Store) Table() inventory.Reader {
	return s.table
}

// Snapshot returns an independent copy of the table.
func (s *Store) Snapshot() *inventory.Table {
	return s.table.Clone()
}

// Path returns the local workbook path.
func (s *Store) Path() string {
	return s.opts.Path
}

// RemoteEnabled reports whether a remote backend is configured.
func (s *Store) RemoteEnabled() bool {
	return s.opts.Remote != nil
}

// Pending reports whether local changes are waiting for a remote sync.
func (s *Store) Pending() bool {
	return s.pending.Load()
}

// Link returns the URL of the remote copy, or "" when it is not known yet.
func (s *Store) Link() string {
	if s.opts.Remote == nil {
		return ""
	}
	s.idMu.Lock()
	defer s.idMu.Unlock()
	if s.remoteID == "" {
		s.remoteID = s.readIDFile()
	}
	if s.remoteID == "" {
		return ""
	}
	return s.opts.Remote.Link(s.remoteID)
}

// Load reads the local workbook into the table. A missing or unreadable file
// yields an empty table; Load never fails.
func (s *Store) Load() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.loadLocked()
}

func (s *Store) loadLocked() {
	issued := max(s.table.HighWater(), s.readSequence())
	defer s.table.RaiseHighWater(issued)

	data, err := os.ReadFile(s.opts.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info("local inventory file missing, starting empty", zap.String("path", s.opts.Path))
		s.table.Replace(inventory.Empty())
		return
	case err != nil:
		s.logger.Error("failed to read local inventory file", zap.String("path", s.opts.Path), zap.Error(err))
		s.table.Replace(inventory.Empty())
		return
	}

	table, err := excel.Decode(data)
	if err != nil {
		s.logger.Error("failed to decode local inventory file", zap.String("path", s.opts.Path), zap.Error(err))
		s.table.Replace(inventory.Empty())
		return
	}
	s.table.Replace(table)
	s.table.RaiseHighWater(issued)

	if n := s.table.AssignMissingNumbers(); n > 0 {
		s.logger.Warn("assigned numbers to unnumbered rows", zap.Int("rows", n))
		if err := s.persistLocked(); err != nil {
			s.logger.Error("failed to persist renumbered rows", zap.Error(err))
		}
	}

	s.logger.Info("inventory loaded", zap.Int("rows", s.table.Len()), zap.Int("visible", len(s.table.Visible())))
}

// PullRemote downloads the remote copy over the local file and reloads the
// table. When the remote copy is unavailable the local file is used as is.
// It reports whether the remote copy was applied.
func (s *Store) PullRemote(ctx context.Context) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.opts.Remote == nil {
		s.loadLocked()
		return false
	}

	id, _, err := s.ensureRemote(ctx, nil)
	if err != nil {
		s.logger.Warn("remote inventory not found, using local file", zap.Error(err))
		s.loadLocked()
		return false
	}

	data, err := s.opts.Remote.Download(ctx, id)
	if err != nil {
		s.logger.Warn("failed to download remote inventory, using local file", zap.String("file_id", id), zap.Error(err))
		s.loadLocked()
		return false
	}

	if _, err := excel.Decode(data); err != nil {
		s.logger.Error("remote inventory is not a readable workbook, using local file", zap.String("file_id", id), zap.Error(err))
		s.loadLocked()
		return false
	}

	if err := writeFileAtomic(s.opts.Path, data); err != nil {
		s.logger.Error("failed to write pulled inventory", zap.String("path", s.opts.Path), zap.Error(err))
		s.loadLocked()
		return false
	}

	s.logger.Info("remote inventory pulled", zap.String("file_id", id), zap.Int("bytes", len(data)))
	s.loadLocked()
	return true
}

// PersistLocal rewrites the local workbook from the table.
func (s *Store) PersistLocal() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	data, err := excel.Encode(s.table)
	if err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	if err := writeFileAtomic(s.opts.Path, data); err != nil {
		return fmt.Errorf("write inventory: %w", err)
	}
	s.writeSequence()
	return nil
}

func (s *Store) readSequence() int {
	if s.opts.SequenceFile == "" {
		return 0
	}
	data, err := os.ReadFile(s.opts.SequenceFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read number sequence", zap.String("path", s.opts.SequenceFile), zap.Error(err))
		}
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 {
		s.logger.Warn("ignoring malformed number sequence", zap.String("path", s.opts.SequenceFile))
		return 0
	}
	return n
}

// writeSequence records the high-water mark. The workbook is already on disk
// at this point, so a failure only costs reuse protection after a restart.
func (s *Store) writeSequence() {
	if s.opts.SequenceFile == "" {
		return
	}
	n := s.table.HighWater()
	if n == 0 || n == s.lastSequence {
		return
	}
	if err := writeFileAtomic(s.opts.SequenceFile, []byte(strconv.Itoa(n)+"\n")); err != nil {
		s.logger.Warn("failed to write number sequence", zap.String("path", s.opts.SequenceFile), zap.Error(err))
		return
	}
	s.lastSequence = n
}

// SyncRemote uploads the current local file to the remote copy. Failures are
// logged and reported as false; the store stays pending until a sync succeeds.
func (s *Store) SyncRemote(ctx context.Context) bool {
	if s.opts.Remote == nil {
		return true
	}

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	ok := s.syncLocked(ctx)
	s.opts.Metrics.Sync(ok)
	s.pending.Store(!ok)
	return ok
}

func (s *Store) syncLocked(ctx context.Context) bool {
	data, err := os.ReadFile(s.opts.Path)
	if err != nil {
		s.logger.Error("failed to read local inventory for sync", zap.Error(err))
		return false
	}

	id, created, err := s.ensureRemote(ctx, data)
	if err != nil {
		s.logger.Warn("remote sync failed", zap.Error(err))
		return false
	}

	if !created {
		if err := s.opts.Remote.Upload(ctx, id, data, excel.MimeType); err != nil {
			if errors.Is(err, remote.ErrNotFound) {
				s.forgetRemote(id)
			}
			s.logger.Warn("remote sync failed", zap.String("file_id", id), zap.Error(err))
			return false
		}
	}

	s.logger.Info("inventory synced", zap.String("file_id", id), zap.Int("bytes", len(data)))
	s.afterSync(ctx)
	return true
}

func (s *Store) afterSync(ctx context.Context) {
	if s.opts.Mirror != nil {
		if err := s.opts.Mirror.Mirror(ctx, s.table.Clone()); err != nil {
			s.logger.Warn("failed to mirror inventory to sheet", zap.Error(err))
		}
	}
	if s.opts.Journal != nil {
		if _, err := s.opts.Journal.MarkSynced(ctx); err != nil {
			s.logger.Warn("failed to mark journal synced", zap.Error(err))
		}
	}
}

// RetryPending syncs again when an earlier sync failed. It returns true when
// nothing is pending afterwards.
func (s *Store) RetryPending(ctx context.Context) bool {
	if !s.Pending() {
		return true
	}
	s.logger.Info("retrying pending remote sync")
	return s.SyncRemote(ctx)
}

// ForceSync reloads the local file and pushes it to the remote copy.
func (s *Store) ForceSync(ctx context.Context) bool {
	s.Load()
	return s.SyncRemote(ctx)
}

// ensureRemote resolves the remote file id: configured id, remembered id,
// lookup by name, and finally creation from data. With nil data nothing is
// created. created reports that data was uploaded by the creation itself.
func (s *Store) ensureRemote(ctx context.Context, data []byte) (string, bool, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if s.remoteID != "" {
		return s.remoteID, false, nil
	}
	if id := s.readIDFile(); id != "" {
		s.remoteID = id
		return id, false, nil
	}

	files, err := s.opts.Remote.List(ctx, s.opts.RemoteFileName)
	if err != nil {
		return "", false, fmt.Errorf("look up %q: %w", s.opts.RemoteFileName, err)
	}
	if len(files) > 0 {
		if len(files) > 1 {
			s.logger.Warn("several remote files share the inventory name, using the first",
				zap.String("name", s.opts.RemoteFileName), zap.Int("count", len(files)))
		}
		s.remember(files[0].ID)
		return files[0].ID, false, nil
	}

	if data == nil {
		return "", false, fmt.Errorf("%q: %w", s.opts.RemoteFileName, remote.ErrNotFound)
	}

	file, err := s.opts.Remote.Create(ctx, "", s.opts.RemoteFileName, data, excel.MimeType)
	if err != nil {
		return "", false, fmt.Errorf("create %q: %w", s.opts.RemoteFileName, err)
	}
	s.logger.Info("remote inventory created", zap.String("file_id", file.ID))
	s.remember(file.ID)
	return file.ID, true, nil
}

func (s *Store) remember(id string) {
	s.remoteID = id
	if s.opts.IDFile == "" {
		return
	}
	if err := writeFileAtomic(s.opts.IDFile, []byte(id+"\n")); err != nil {
		s.logger.Warn("failed to remember remote file id", zap.String("path", s.opts.IDFile), zap.Error(err))
	}
}

func (s *Store) forgetRemote(id string) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if s.remoteID != id || id == s.opts.RemoteFileID {
		return
	}
	s.logger.Warn("remote inventory disappeared, it will be looked up again", zap.String("file_id", id))
	s.remoteID = ""
	if s.opts.IDFile != "" {
		_ = os.Remove(s.opts.IDFile)
	}
}

func (s *Store) readIDFile() string {
	if s.opts.IDFile == "" {
		return ""
	}
	data, err := os.ReadFile(s.opts.IDFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Add appends a record, assigning the next number when it has none.
func (s *Store) Add(ctx context.Context, record models.Instrument) (Result, error) {
	return s.mutate(ctx, models.ChangeAdded, func(t *inventory.Table) (Result, error) {
		added, err := t.Append(record)
		if err != nil {
			return Result{}, err
		}
		return Result{Record: added}, nil
	})
}

// SetQuantity updates the quantity of the instrument with the given number.
func (s *Store) SetQuantity(ctx context.Context, number int, quantity float64) (Result, error) {
	return s.mutate(ctx, models.ChangeQuantityUpdated, func(t *inventory.Table) (Result, error) {
		updated, previous, err := t.UpdateQuantity(number, quantity)
		if err != nil {
			return Result{}, err
		}
		return Result{Record: updated, Previous: previous}, nil
	})
}

// Delete removes the instrument with the given number.
func (s *Store) Delete(ctx context.Context, number int) (Result, error) {
	return s.mutate(ctx, models.ChangeDeleted, func(t *inventory.Table) (Result, error) {
		removed, err := t.Remove(number)
		if err != nil {
			return Result{}, err
		}
		return Result{Record: removed, Previous: removed.Quantity}, nil
	})
}

// mutate applies fn and persists the table as one step. If persisting fails
// the table is restored, so memory never holds a change the file lacks.
func (s *Store) mutate(ctx context.Context, kind models.ChangeKind, fn func(*inventory.Table) (Result, error)) (Result, error) {
	res, err := s.apply(kind, fn)
	s.opts.Metrics.Mutation(string(kind), err)
	if err != nil {
		return Result{}, err
	}

	s.record(ctx, kind, res)
	res.Synced = s.SyncRemote(ctx)
	return res, nil
}

func (s *Store) apply(kind models.ChangeKind, fn func(*inventory.Table) (Result, error)) (Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snapshot := s.table.Clone()
	res, err := fn(s.table)
	if err != nil {
		return Result{}, err
	}

	if err := s.persistLocked(); err != nil {
		s.table.Replace(snapshot)
		s.logger.Error("failed to persist inventory, change rolled back",
			zap.String("kind", string(kind)), zap.Int("number", res.Record.Number), zap.Error(err))
		return Result{}, err
	}
	return res, nil
}

func (s *Store) record(ctx context.Context, kind models.ChangeKind, res Result) {
	if s.opts.Journal == nil {
		return
	}

	event := models.ChangeEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		Number:      res.Record.Number,
		Name:        res.Record.Name,
		NewQuantity: res.Record.Quantity,
		CreatedAt:   s.opts.Now().UTC(),
	}
	switch kind {
	case models.ChangeQuantityUpdated:
		event.OldQuantity = res.Previous
	case models.ChangeDeleted:
		event.OldQuantity = res.Previous
		event.NewQuantity = 0
	}

	if err := s.opts.Journal.Record(ctx, event); err != nil {
		s.logger.Warn("failed to journal change", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place, so readers never see a partial workbook.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
