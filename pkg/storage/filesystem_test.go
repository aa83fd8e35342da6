package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-portal-api/pkg/config"
)

func TestLocalStoragePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "proofs/user-1/a.pdf", bytes.NewReader([]byte("%PDF-1.4")), 8, "application/pdf"))

	rc, err := store.Get(ctx, "proofs/user-1/a.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, store.Delete(ctx, "proofs/user-1/a.pdf"))
	require.NoError(t, store.Delete(ctx, "proofs/user-1/a.pdf"))

	_, err = store.Get(ctx, "proofs/user-1/a.pdf")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.txt", bytes.NewReader(nil), 0, "text/plain")
	require.Error(t, err)
}

func TestLocalStorageListBefore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "proofs/u1/old.png", bytes.NewReader([]byte("old")), 3, "image/png"))
	require.NoError(t, store.Put(ctx, "proofs/u1/new.png", bytes.NewReader([]byte("new")), 3, "image/png"))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "proofs", "u1", "old.png"), past, past))

	objects, err := store.List(ctx, "proofs", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.Equal(t, "proofs/u1/old.png", objects[0].Key)

	missing, err := store.List(ctx, "nothing-here", time.Time{})
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestNewSelectsDriver(t *testing.T) {
	store, err := New(context.Background(), config.UploadsConfig{Driver: config.UploadDriverLocal, StorageDir: t.TempDir()}, config.S3Config{})
	require.NoError(t, err)
	require.IsType(t, &LocalStorage{}, store)

	_, err = New(context.Background(), config.UploadsConfig{Driver: "ftp"}, config.S3Config{})
	require.Error(t, err)
}
