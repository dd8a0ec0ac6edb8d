package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UpsertGetMerge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "users/u1/inventory/milk", map[string]interface{}{"item": "Milk", "quantity_estimate": "1"}, UpsertOptions{}))
	require.NoError(t, s.Upsert(ctx, "users/u1/inventory/milk", map[string]interface{}{"category": "Dairy"}, UpsertOptions{Merge: true}))

	doc, err := s.Get(ctx, "users/u1/inventory/milk")
	require.NoError(t, err)
	assert.Equal(t, "milk", doc.ID)
	assert.Equal(t, "Milk", doc.Data["item"])
	assert.Equal(t, "Dairy", doc.Data["category"])

	require.NoError(t, s.Upsert(ctx, "users/u1/inventory/milk", map[string]interface{}{"item": "Milk"}, UpsertOptions{}))
	doc, err = s.Get(ctx, "users/u1/inventory/milk")
	require.NoError(t, err)
	_, hasCategory := doc.Data["category"]
	assert.False(t, hasCategory, "non-merge write replaces the document")
}

func TestMemoryStore_GetMissing(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "users/u1/inventory/none")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_InvalidPaths(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	assert.ErrorIs(t, s.Upsert(ctx, "users/u1/inventory", nil, UpsertOptions{}), ErrInvalidPath)
	_, err := s.List(ctx, "users/u1")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, s.Delete(ctx, "users//x"), ErrInvalidPath)
}

func TestMemoryStore_DeleteAbsentIsSuccess(t *testing.T) {
	assert.NoError(t, NewMemoryStore().Delete(context.Background(), "users/u1/shoppingList/x"))
}

func TestMemoryStore_NormalizesStoredValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	fixed := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	s.SetNow(func() time.Time { return fixed })

	require.NoError(t, s.Upsert(ctx, "ratings/r1", map[string]interface{}{
		"rating":  4,
		"tags":    []string{"a", "b"},
		"created": ServerTimestamp,
	}, UpsertOptions{}))

	doc, err := s.Get(ctx, "ratings/r1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), doc.Data["rating"])
	assert.Equal(t, []interface{}{"a", "b"}, doc.Data["tags"])
	assert.Equal(t, fixed, doc.Data["created"])
}

func TestMemoryStore_SubscribeDeliversFullSnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, "users/u1/shoppingList/1", map[string]interface{}{"item": "Eggs"}, UpsertOptions{}))

	var snapshots [][]Document
	unsub := s.Subscribe(ctx, "users/u1/shoppingList", func(docs []Document) {
		snapshots = append(snapshots, docs)
	}, func(err error) { t.Fatalf("unexpected error: %v", err) })

	require.Len(t, snapshots, 1, "initial snapshot is delivered on subscribe")
	assert.Len(t, snapshots[0], 1)

	require.NoError(t, s.Upsert(ctx, "users/u1/shoppingList/2", map[string]interface{}{"item": "Flour"}, UpsertOptions{}))
	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[1], 2, "every snapshot carries the whole collection")

	// Writes elsewhere do not reach this subscriber.
	require.NoError(t, s.Upsert(ctx, "users/u2/shoppingList/9", map[string]interface{}{"item": "Salt"}, UpsertOptions{}))
	assert.Len(t, snapshots, 2)

	unsub()
	unsub()
	require.NoError(t, s.Delete(ctx, "users/u1/shoppingList/1"))
	assert.Len(t, snapshots, 2, "no callbacks after unsubscribe")
	assert.Equal(t, 0, s.Subscribers("users/u1/shoppingList"))
}

func TestMemoryStore_SubscribeDoc(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var seen []*Document
	unsub := s.SubscribeDoc(ctx, "households/h1", func(doc *Document) { seen = append(seen, doc) }, func(error) {})
	defer unsub()

	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	require.NoError(t, s.Upsert(ctx, "households/h1", map[string]interface{}{"name": "Home"}, UpsertOptions{}))
	require.Len(t, seen, 2)
	require.NotNil(t, seen[1])
	assert.Equal(t, "Home", seen[1].Data["name"])

	require.NoError(t, s.Delete(ctx, "households/h1"))
	require.Len(t, seen, 3)
	assert.Nil(t, seen[2])
}

func TestMemoryStore_BatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, "households/h1/shoppingList/1", map[string]interface{}{"item": "Eggs"}, UpsertOptions{}))
	s.DenyPrefix("households/h1/shoppingList/2")

	b := s.Batch()
	b.Delete("households/h1/shoppingList/1")
	b.Set("households/h1/shoppingList/2", map[string]interface{}{"item": "Flour"})
	assert.Equal(t, 2, b.Len())

	err := b.Commit(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermissionDenied))

	docs, err := s.List(ctx, "households/h1/shoppingList")
	require.NoError(t, err)
	require.Len(t, docs, 1, "the delete must not have been applied")
	assert.Equal(t, "1", docs[0].ID)
}

func TestMemoryStore_BatchNotifiesOncePerCollection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	calls := 0
	unsub := s.Subscribe(ctx, "users/u1/mealPlan", func([]Document) { calls++ }, func(error) {})
	defer unsub()
	calls = 0

	b := s.Batch()
	b.Set("users/u1/mealPlan/2026-10-14", map[string]interface{}{"meals": []interface{}{}})
	b.Set("users/u1/mealPlan/2026-10-15", map[string]interface{}{"meals": []interface{}{}})
	require.NoError(t, b.Commit(ctx))
	assert.Equal(t, 1, calls)
}

func TestMemoryStore_Where(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, "households/h1", map[string]interface{}{"name": "A", "memberIds": []string{"u1", "u2"}}, UpsertOptions{}))
	require.NoError(t, s.Upsert(ctx, "households/h2", map[string]interface{}{"name": "B", "memberIds": []string{"u3"}}, UpsertOptions{}))

	docs, err := s.Where(ctx, "households", "memberIds", "array-contains", "u2")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "h1", docs[0].ID)

	docs, err = s.Where(ctx, "households", "name", "==", "B")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "h2", docs[0].ID)
}

func TestMemoryStore_FailSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var gotErr error
	s.Subscribe(ctx, "users/u1/inventory", func([]Document) {}, func(err error) { gotErr = err })
	s.FailSubscriptions("users/u1", ErrUnavailable)
	assert.ErrorIs(t, gotErr, ErrUnavailable)
	assert.Equal(t, 0, s.Subscribers("users/u1/inventory"))
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "salt-pepper", SanitizeID(" salt/pepper "))
	assert.Equal(t, "_..", SanitizeID(".."))
	assert.True(t, IsDocumentPath("users/u1/inventory/milk"))
	assert.True(t, IsCollectionPath("ratings"))
	assert.False(t, IsCollectionPath("ratings/r1"))
}

func TestMemoryStore_RejectSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.RejectSubscriptions("users/u1", ErrPermissionDenied)

	var gotErr error
	snapshots := 0
	s.Subscribe(ctx, "users/u1/inventory", func([]Document) { snapshots++ }, func(err error) { gotErr = err })
	assert.ErrorIs(t, gotErr, ErrPermissionDenied)
	assert.Equal(t, 0, snapshots)

	s.AllowAll()
	s.Subscribe(ctx, "users/u1/inventory", func([]Document) { snapshots++ }, func(error) {})
	assert.Equal(t, 1, snapshots)
}
