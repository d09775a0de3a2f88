package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/tests"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	logger := &testutil.Logger{}

	shared, closeStore, err := Open(ctx, core.StoreConfig{Driver: core.StoreMemory}, logger)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closeStore()) }()

	tab1, tab2 := shared.NewStore(), shared.NewStore()
	require.NoError(t, tab1.Set(ctx, "teachers", "[]"))
	val, ok, err := tab2.Get(ctx, "teachers")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", val)

	_, _, err = Open(ctx, core.StoreConfig{Driver: "redis"}, logger)
	assert.Error(t, err)
}

func TestPersistent(t *testing.T) {
	assert.False(t, Persistent(core.StoreConfig{Driver: core.StoreMemory}))
	assert.True(t, Persistent(core.StoreConfig{Driver: core.StorePostgres}))
}
