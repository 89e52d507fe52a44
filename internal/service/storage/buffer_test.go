package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peoplecounter/internal/config"
	"peoplecounter/internal/logger"
)

func newBuffer(t *testing.T) (*PreviewBuffer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "previews")
	buf, err := NewPreviewBuffer(&config.Config{PreviewDir: dir}, logger.Discard())
	require.NoError(t, err)
	return buf, dir
}

func TestPreviewBuffer_SaveAndLoad(t *testing.T) {
	buf, dir := newBuffer(t)

	require.NoError(t, buf.Save("job-1", []byte("first")))
	require.NoError(t, buf.Save("job-1", []byte("second")))

	data, err := buf.Load("job-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
	assert.FileExists(t, filepath.Join(dir, "preview_job-1.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "preview_job-1.jpg.tmp"))

	latest, ok := buf.Latest()
	assert.True(t, ok)
	assert.Equal(t, []byte("second"), latest)
}

func TestPreviewBuffer_LoadMissing(t *testing.T) {
	buf, _ := newBuffer(t)

	_, err := buf.Load("nope")

	assert.ErrorIs(t, err, ErrNoPreview)
	_, ok := buf.Latest()
	assert.False(t, ok)
}

func TestPreviewBuffer_PathStaysInDirectory(t *testing.T) {
	buf, dir := newBuffer(t)

	assert.Equal(t, filepath.Join(dir, "preview_passwd.jpg"), buf.Path("../../etc/passwd"))
}

func TestPreviewBuffer_Remove(t *testing.T) {
	buf, _ := newBuffer(t)
	require.NoError(t, buf.Save("job-2", []byte("x")))

	require.NoError(t, buf.Remove("job-2"))
	require.NoError(t, buf.Remove("job-2"))

	_, err := os.Stat(buf.Path("job-2"))
	assert.True(t, os.IsNotExist(err))
}
