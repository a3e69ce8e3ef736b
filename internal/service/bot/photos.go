package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/toolstock/internal/domain/models"
	"github.com/mamadbah2/toolstock/internal/service/wizard"
)

// FileSource resolves and downloads files users sent to the bot.
type FileSource interface {
	GetFile(ctx context.Context, fileID string) (*models.File, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
}

// ImageStore keeps instrument photos locally and, optionally, remotely.
type ImageStore interface {
	Save(number int, data []byte) (string, error)
	Backup(ctx context.Context, number int, data []byte) (string, error)
}

// PhotoSaver downloads a chat photo and stores it as image{number}.png.
type PhotoSaver struct {
	files  FileSource
	images ImageStore
	logger *zap.Logger
}

var _ wizard.ImageSaver = (*PhotoSaver)(nil)

// NewPhotoSaver wires a saver.
func NewPhotoSaver(files FileSource, images ImageStore, logger *zap.Logger) *PhotoSaver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhotoSaver{files: files, images: images, logger: logger}
}

// SavePhoto stores the photo locally. The remote backup is best effort and
// only logged when it fails.
func (p *PhotoSaver) SavePhoto(ctx context.Context, number int, fileID string) error {
	file, err := p.files.GetFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("resolve photo: %w", err)
	}

	data, err := p.files.DownloadFile(ctx, file.FilePath)
	if err != nil {
		return fmt.Errorf("download photo: %w", err)
	}

	if _, err := p.images.Save(number, data); err != nil {
		return err
	}

	if _, err := p.images.Backup(ctx, number, data); err != nil {
		p.logger.Warn("image backup failed", zap.Int("number", number), zap.Error(err))
	}
	return nil
}
