package content

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfcloud/core/internal/cache"
	"github.com/shelfcloud/core/internal/db"
	"github.com/shelfcloud/core/internal/filecore"
	"github.com/shelfcloud/core/internal/storage/local"
)

func newTestPipeline(t *testing.T) (*Pipeline, *filecore.Core) {
	t.Helper()
	store, err := local.New(t.TempDir())
	require.NoError(t, err)

	files := db.NewFileRepository()
	core := filecore.New(files, store, db.NewPendingDeletionRepository(), nil, nil)
	require.NoError(t, core.Bootstrap(context.Background(), "admin"))

	fingerprints := db.NewFingerprintRepository()
	contentMeta := db.NewContentMetadataRepository()
	c := cache.New(cache.NewDefaultConfig())
	t.Cleanup(c.Close)
	thumbs := NewThumbnailer(core, store, c, 0)

	p := New(core, files, store, fingerprints, contentMeta, thumbs, nil, nil, slog.Default(), nil, 4)
	return p, core
}

func TestProcessExtractsMetadataAndFingerprint(t *testing.T) {
	ctx := context.Background()
	p, core := newTestPipeline(t)

	img := jpegBytes(64, 64)
	f, err := core.CreateFile(ctx, "admin", "img.jpg", bytes.NewReader(img))
	require.NoError(t, err)

	require.NoError(t, p.Process(ctx, f.ID))

	cm, err := p.contentMeta.GetByFileID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 64, cm.Data["width"])

	fp, err := p.fingerprints.GetByFileID(ctx, f.ID)
	require.NoError(t, err)
	assert.NotZero(t, fp.Value)
}

func TestProcessSkipsFolders(t *testing.T) {
	ctx := context.Background()
	p, core := newTestPipeline(t)

	folder, err := core.CreateFolder(ctx, "admin", "dir")
	require.NoError(t, err)

	assert.NoError(t, p.Process(ctx, folder.ID))
}

func TestReindexContentsRepopulatesFingerprints(t *testing.T) {
	ctx := context.Background()
	p, core := newTestPipeline(t)

	img := jpegBytes(32, 32)
	f, err := core.CreateFile(ctx, "admin", "a/img.jpg", bytes.NewReader(img))
	require.NoError(t, err)

	require.NoError(t, p.ReindexContents(ctx, "admin"))

	fp, err := p.fingerprints.GetByFileID(ctx, f.ID)
	require.NoError(t, err)
	assert.NotZero(t, fp.Value)
}
