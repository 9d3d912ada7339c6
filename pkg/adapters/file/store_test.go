package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/topolab/pkg/adapters/file"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	tests.ProjectStoreContractTest(t, file.New(t.TempDir()))
}

func TestFileStore_ListMissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "not-yet"))
	records, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b"} {
		assert.Error(t, store.Save(ctx, domain.ProjectRecord{ProjectID: id, Name: "x"}), id)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, store.Save(ctx, domain.ProjectRecord{ProjectID: "p1", Name: "lab"}))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "lab", records[0].Name)
}
