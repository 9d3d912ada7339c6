package memory_test

import (
	"testing"

	"github.com/aretw0/topolab/pkg/adapters/memory"
	"github.com/aretw0/topolab/pkg/ports/tests"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	tests.ProjectStoreContractTest(t, store)
}
