// Package bootstrap opens the inventory store and its optional backends from
// configuration. Both the bot server and the operator CLI start here.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/config"
	"github.com/mamadbah2/toolstock/internal/metrics"
	"github.com/mamadbah2/toolstock/internal/repository/drive"
	"github.com/mamadbah2/toolstock/internal/repository/images"
	"github.com/mamadbah2/toolstock/internal/repository/mongodb"
	"github.com/mamadbah2/toolstock/internal/repository/remote"
	s3store "github.com/mamadbah2/toolstock/internal/repository/s3"
	"github.com/mamadbah2/toolstock/internal/repository/sheets"
	"github.com/mamadbah2/toolstock/internal/service/durable"
)

// Stack is the opened storage layer. Remote, Sheets and Journal are nil when
// not configured or unreachable.
type Stack struct {
	Store   *durable.Store
	Images  *images.Repository
	Remote  remote.Store
	Sheets  *sheets.GoogleSheetRepository
	Journal *mongodb.MongoDBRepository

	logger *zap.Logger
}

// OpenRemote builds the configured remote backend, or nil for "none".
func OpenRemote(ctx context.Context, cfg *config.Config, logger *zap.Logger) (remote.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Remote.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendDrive:
		store, err := drive.NewStore(ctx, logger.Named("repo.drive"), cfg.Google.ClientOption())
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendS3:
		store, err := s3store.NewStore(ctx, cfg.S3, logger.Named("repo.s3"))
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
}

// Open wires the durable store. Optional backends that fail to start are
// logged and left out; the store then works from the local file alone.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *Stack {
	if logger == nil {
		logger = zap.NewNop()
	}
	stack := &Stack{logger: logger}

	rs, err := OpenRemote(ctx, cfg, logger)
	if err != nil {
		logger.Warn("remote store unavailable, running on the local file only",
			zap.String("backend", cfg.Remote.Backend), zap.Error(err))
	}
	stack.Remote = rs

	opts := durable.Options{
		Path:           cfg.Inventory.FilePath,
		SequenceFile:   cfg.Inventory.SequenceFile,
		Remote:         rs,
		RemoteFileID:   cfg.Remote.FileID,
		RemoteFileName: cfg.Remote.FileName,
		IDFile:         cfg.Remote.IDFile,
		Metrics:        m,
		Logger:         logger.Named("svc.durable"),
	}

	if cfg.Sheets.SpreadsheetID != "" {
		repo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named("repo.sheets"), cfg.Google.ClientOption())
		if err != nil {
			logger.Warn("sheets mirror disabled", zap.Error(err))
		} else {
			stack.Sheets = repo
			opts.Mirror = repo
		}
	}

	if cfg.MongoDB.URI != "" {
		repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			logger.Warn("change journal disabled", zap.Error(err))
		} else {
			stack.Journal = repo
			opts.Journal = repo
		}
	}

	stack.Store = durable.New(opts)
	stack.Images = images.NewRepository(cfg.Inventory.ImagesDir, rs, cfg.Remote.ImagesFolder, logger.Named("repo.images"))
	return stack
}

// Close releases backend connections.
func (s *Stack) Close(ctx context.Context) {
	if s.Journal != nil {
		if err := s.Journal.Close(ctx); err != nil {
			s.logger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}
}
