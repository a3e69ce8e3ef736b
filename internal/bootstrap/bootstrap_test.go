package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/toolstock/internal/config"
	"github.com/mamadbah2/toolstock/internal/domain/models"
)

func localConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Inventory: config.InventoryConfig{FilePath: filepath.Join(dir, "tools.xlsx"), ImagesDir: dir},
		Remote:    config.RemoteConfig{Backend: config.BackendNone},
	}
}

func TestOpenLocalOnly(t *testing.T) {
	cfg := localConfig(t)

	stack := Open(context.Background(), cfg, nil, nil)
	defer stack.Close(context.Background())

	assert.Nil(t, stack.Remote)
	assert.Nil(t, stack.Sheets)
	assert.Nil(t, stack.Journal)
	assert.False(t, stack.Store.RemoteEnabled())

	assert.False(t, stack.Store.PullRemote(context.Background()))
	_, err := stack.Store.Add(context.Background(), models.Instrument{Name: "Drill", Quantity: 1})
	require.NoError(t, err)
	assert.FileExists(t, cfg.Inventory.FilePath)
	assert.FileExists(t, cfg.Inventory.FilePath+".seq")
}

func TestOpenRemoteRejectsUnknownBackend(t *testing.T) {
	cfg := localConfig(t)
	cfg.Remote.Backend = "ftp"

	_, err := OpenRemote(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown remote backend")

	stack := Open(context.Background(), cfg, nil, nil)
	assert.Nil(t, stack.Remote)
	assert.False(t, stack.Store.RemoteEnabled())
}
