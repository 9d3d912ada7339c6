package tests

import (
	"context"
	"sort"
	"testing"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ProjectStoreContractTest is a reusable test suite that verifies if an adapter complies with ports.ProjectStore.
// The store must be empty when passed in.
func ProjectStoreContractTest(t *testing.T, store ports.ProjectStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	t.Run("Save_Load_Roundtrip", func(t *testing.T) {
		rec := domain.ProjectRecord{ProjectID: "p1", Name: "lab", Path: "/tmp/lab", Status: domain.ProjectOpened}
		require.NoError(t, store.Save(ctx, rec))

		loaded, err := store.Load(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, rec, *loaded)
	})

	t.Run("Save_Overwrites", func(t *testing.T) {
		rec := domain.ProjectRecord{ProjectID: "p1", Name: "lab", Path: "/tmp/lab", Status: domain.ProjectClosed}
		require.NoError(t, store.Save(ctx, rec))

		loaded, err := store.Load(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, domain.ProjectClosed, loaded.Status)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.ProjectRecord{ProjectID: "p2", Name: "core", Status: domain.ProjectClosed}))

		records, err := store.List(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ProjectID)
		}
		sort.Strings(ids)
		assert.Equal(t, []string{"p1", "p2"}, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "p1"))
		_, err := store.Load(ctx, "p1")
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)

		// Deleting twice is fine
		assert.NoError(t, store.Delete(ctx, "p1"))
	})
}
