package compute_test

import (
	"testing"

	"github.com/aretw0/topolab/pkg/compute"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SingletonPerID(t *testing.T) {
	reg := compute.NewRegistry()
	conn := compute.Connection{Protocol: "http", Host: "10.0.0.2", Port: 3080}

	a, err := reg.GetOrCreate("remote-1", conn)
	require.NoError(t, err)
	b, err := reg.GetOrCreate("remote-1", compute.Connection{Host: "ignored", Port: 1})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "10.0.0.2", b.Host())

	dup, err := compute.New("remote-1", conn)
	require.NoError(t, err)
	assert.ErrorIs(t, reg.Add(dup), domain.ErrConflict)
}

func TestRegistry_AppliesOptionsToCreatedProxies(t *testing.T) {
	conn := compute.Connection{Host: "127.0.0.1", Port: 3080}

	_, err := compute.NewRegistry().GetOrCreate(compute.LocalID, conn)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	c, err := compute.NewRegistry(compute.WithLocal(true)).GetOrCreate(compute.LocalID, conn)
	require.NoError(t, err)
	assert.Equal(t, compute.LocalID, c.ID())
}

func TestRegistry_GetListRemove(t *testing.T) {
	reg := compute.NewRegistry()
	for _, id := range []string{"b", "a"} {
		c, err := compute.New(id, compute.Connection{Host: id, Port: 1})
		require.NoError(t, err)
		require.NoError(t, reg.Add(c))
	}

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID())

	_, err := reg.Get("c")
	assert.ErrorIs(t, err, domain.ErrComputeNotFound)

	reg.Remove("a")
	_, err = reg.Get("a")
	assert.ErrorIs(t, err, domain.ErrComputeNotFound)
}
