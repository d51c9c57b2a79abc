package storage

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.SaveStream("eclearance_proofs", "Proof.PNG", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "eclearance_proofs/"))
	assert.True(t, strings.HasSuffix(rel, ".png"))

	file, err := store.Open(rel)
	require.NoError(t, err)
	content, err := io.ReadAll(file)
	require.NoError(t, file.Close())
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(content))

	require.NoError(t, store.Delete(rel))
	_, err = os.Stat(filepath.Join(store.Root(), filepath.FromSlash(rel)))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Delete(rel))
}

func TestLocalStorageResolveStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(root)
	require.NoError(t, err)

	resolved := store.resolve("../../etc/passwd")
	assert.True(t, strings.HasPrefix(resolved, root))

	rel, err := store.SaveStream("../outside", "x.jpg", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "outside/"))
}

type closeFailingFile struct {
	*os.File
}

func (f closeFailingFile) Close() error {
	_ = f.File.Close()
	return errors.New("disk quota exceeded")
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("client went away")
}

func assertNoStoredFiles(t *testing.T, root string) {
	t.Helper()
	var files []string
	require.NoError(t, filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, p)
		}
		return err
	}))
	assert.Empty(t, files)
}

func TestLocalStorageSaveReportsCloseFailure(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store.create = func(name string) (io.WriteCloser, error) {
		file, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		return closeFailingFile{file}, nil
	}

	rel, err := store.SaveStream("payment_proofs", "receipt.jpg", strings.NewReader("image-bytes"))
	assert.Empty(t, rel)
	assert.ErrorContains(t, err, "close media file")
	assertNoStoredFiles(t, store.Root())
}

func TestLocalStorageSaveRemovesPartialWrite(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("payment_proofs", "receipt.jpg", brokenReader{})
	assert.ErrorContains(t, err, "write media stream")
	assertNoStoredFiles(t, store.Root())
}
