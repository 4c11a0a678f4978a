package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"swaproute/storage"
)

type record struct {
	Value uint64
}

func TestOverlayCommitFlushesWrites(t *testing.T) {
	db := storage.NewMemDB()
	base := NewStore(db)

	ov := NewOverlay(base)
	require.NoError(t, ov.KVPut([]byte("a"), record{Value: 1}))
	require.NoError(t, ov.KVPut([]byte("b"), record{Value: 2}))

	// Nothing visible in the base before commit.
	var got record
	ok, err := base.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.False(t, ok)

	// The overlay sees its own writes.
	ok, err = ov.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), got.Value)

	require.NoError(t, ov.Commit())

	ok, err = base.KVGet([]byte("b"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), got.Value)
}

func TestOverlayDiscardLeavesBaseUntouched(t *testing.T) {
	db := storage.NewMemDB()
	base := NewStore(db)
	require.NoError(t, base.KVPut([]byte("a"), record{Value: 7}))

	ov := NewOverlay(base)
	require.NoError(t, ov.KVPut([]byte("a"), record{Value: 99}))
	require.NoError(t, ov.KVDelete([]byte("a")))
	// Overlay dropped without commit.

	var got record
	ok, err := base.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), got.Value)
}

func TestOverlayDeleteShadowsBase(t *testing.T) {
	db := storage.NewMemDB()
	base := NewStore(db)
	require.NoError(t, base.KVPut([]byte("a"), record{Value: 3}))

	ov := NewOverlay(base)
	require.NoError(t, ov.KVDelete([]byte("a")))

	var got record
	ok, err := ov.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, ov.Commit())

	ok, err = base.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 0, db.Len())
}

func TestOverlayLastWriteWins(t *testing.T) {
	db := storage.NewMemDB()
	base := NewStore(db)

	ov := NewOverlay(base)
	require.NoError(t, ov.KVPut([]byte("a"), record{Value: 1}))
	require.NoError(t, ov.KVPut([]byte("a"), record{Value: 2}))
	require.NoError(t, ov.Commit())

	var got record
	ok, err := base.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), got.Value)
}

func TestNestedOverlayCommit(t *testing.T) {
	db := storage.NewMemDB()
	base := NewStore(db)

	outer := NewOverlay(base)
	inner := NewOverlay(outer)
	require.NoError(t, inner.KVPut([]byte("a"), record{Value: 5}))
	require.NoError(t, inner.Commit())

	// Inner commit lands in the outer overlay, not the database.
	require.Equal(t, 0, db.Len())

	require.NoError(t, outer.Commit())

	var got record
	ok, err := base.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), got.Value)
}
