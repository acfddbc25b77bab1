package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestMemoryStore_PutAndGet(t *testing.T) {
	store := NewMemoryStore()

	err := store.Put("widgets", "w1", &widget{ID: "w1", Name: "first"})
	require.NoError(t, err)

	raw, err := store.Get("widgets", "w1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"w1","name":"first"}`, string(raw))
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get("widgets", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	store.Put("widgets", "w1", &widget{ID: "w1"})
	_, err = store.Get("widgets", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListPreservesInsertionOrder(t *testing.T) {
	store := NewMemoryStore()

	for _, id := range []string{"c", "a", "b"} {
		err := store.Put("widgets", id, &widget{ID: id})
		require.NoError(t, err)
	}

	docs, err := store.List("widgets")
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Contains(t, string(docs[0]), `"c"`)
	assert.Contains(t, string(docs[1]), `"a"`)
	assert.Contains(t, string(docs[2]), `"b"`)
}

func TestMemoryStore_PutReplacesWholeDocument(t *testing.T) {
	store := NewMemoryStore()

	store.Put("widgets", "w1", &widget{ID: "w1", Name: "old"})
	store.Put("widgets", "w1", &widget{ID: "w1", Name: "new"})

	docs, err := store.List("widgets")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, string(docs[0]), "new")
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()

	store.Put("widgets", "w1", &widget{ID: "w1"})
	err := store.Delete("widgets", "w1")
	require.NoError(t, err)

	_, err = store.Get("widgets", "w1")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Delete("widgets", "w1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_EmptyCollectionLists(t *testing.T) {
	store := NewMemoryStore()

	docs, err := store.List("empty")
	require.NoError(t, err)
	assert.Empty(t, docs)
}
