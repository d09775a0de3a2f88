package memkv

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/storage/kv"
)

type recorder struct {
	mu      sync.Mutex
	changes []kv.Change
}

func (r *recorder) listen(ch kv.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ch)
}

func (r *recorder) all() []kv.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kv.Change(nil), r.changes...)
}

func TestStore_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	db := Open()
	tab1, tab2 := db.NewStore(), db.NewStore()
	assert.NotEqual(t, tab1.Origin(), tab2.Origin())

	_, ok, err := tab1.Get(ctx, "students")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tab1.Set(ctx, "students", "[]"))
	val, ok, err := tab2.Get(ctx, "students")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", val)
	assert.Equal(t, 1, db.Len())

	require.NoError(t, tab2.Remove(ctx, "students"))
	_, ok, _ = tab1.Get(ctx, "students")
	assert.False(t, ok)
	assert.Equal(t, 0, db.Len())
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	db := Open()
	tab1, tab2, tab3 := db.NewStore(), db.NewStore(), db.NewStore()

	var rec1, rec2, rec3 recorder
	tab1.Subscribe(rec1.listen)
	unsub2 := tab2.Subscribe(rec2.listen)
	tab3.Subscribe(rec3.listen)

	require.NoError(t, tab1.Set(ctx, "students", `[{"id":"S1"}]`))

	assert.Empty(t, rec1.all(), "writer must not be notified of its own write")
	assert.Equal(t, []kv.Change{{Key: "students", Value: `[{"id":"S1"}]`}}, rec2.all())
	assert.Equal(t, rec2.all(), rec3.all())

	unsub2()
	unsub2() // idempotent
	require.NoError(t, tab3.Remove(ctx, "students"))

	assert.Equal(t, []kv.Change{{Key: "students", Cleared: true}}, rec1.all())
	assert.Len(t, rec2.all(), 1)
	assert.Len(t, rec3.all(), 1)
}

func TestStore_cancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tab := Open().NewStore()
	assert.Error(t, tab.Set(ctx, "k", "v"))
	assert.Error(t, tab.Remove(ctx, "k"))
}
