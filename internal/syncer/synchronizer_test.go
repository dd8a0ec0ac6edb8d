package syncer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/pantrysync/internal/codec"
	"github.com/example/pantrysync/internal/household"
	"github.com/example/pantrysync/internal/mealplan"
	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/internal/pantry"
	"github.com/example/pantrysync/pkg/cache"
	"github.com/example/pantrysync/pkg/database"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

var (
	private = household.Scope{ID: "u1"}
	shared  = household.Scope{Household: true, ID: "h1"}
)

type note struct {
	message string
	kind    Kind
}

type recorder struct {
	mu    sync.Mutex
	notes []note
}

func (r *recorder) Notify(message string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{message, kind})
}

func (r *recorder) all() []note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]note(nil), r.notes...)
}

type fixture struct {
	store *database.MemoryStore
	clock *clock.Mock
	gate  *WriteGate
	notes *recorder
	cache *cache.MemoryCache
}

func newFixture() *fixture {
	mock := clock.NewMock()
	return &fixture{
		store: database.NewMemoryStore(),
		clock: mock,
		gate:  NewWriteGate(30*time.Second, mock),
		notes: &recorder{},
		cache: cache.NewMemoryCache(),
	}
}

func (f *fixture) shopping() *Synchronizer[models.ShoppingItem] {
	return New(Options[models.ShoppingItem]{
		Collection: models.CollectionShoppingList,
		Label:      "shopping list",
		Mode:       ModeDiff,
		Debounce:   1200 * time.Millisecond,
		Codec:      codec.Shopping{ClientID: "test"},
		Store:      f.store,
		Gate:       f.gate,
		Notifier:   f.notes,
		Cache:      f.cache,
		Clock:      f.clock,
	})
}

func (f *fixture) inventory() *Synchronizer[models.PantryItem] {
	return New(Options[models.PantryItem]{
		Collection: models.CollectionInventory,
		Label:      "pantry",
		Mode:       ModeEager,
		Codec:      codec.Inventory{ClientID: "test"},
		Store:      f.store,
		Gate:       f.gate,
		Notifier:   f.notes,
		Clock:      f.clock,
	})
}

func (f *fixture) mealPlan() *Synchronizer[models.DayPlan] {
	return New(Options[models.DayPlan]{
		Collection: models.CollectionMealPlan,
		Label:      "meal plan",
		Mode:       ModeWindow,
		Debounce:   2 * time.Second,
		Codec:      codec.MealPlan{ClientID: "test"},
		Apply:      func(remote []models.DayPlan) []models.DayPlan { return mealplan.Reanchor(remote, f.clock.Now().UTC()) },
		Keep:       mealplan.HasMeals,
		Store:      f.store,
		Gate:       f.gate,
		Notifier:   f.notes,
		Clock:      f.clock,
	})
}

// settle lets the echo window of the last snapshot pass.
func settle[T any](t *testing.T, f *fixture, s *Synchronizer[T]) {
	t.Helper()
	f.clock.Add(DefaultEchoWindow)
	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, waitFor, tick)
}

func addShopping(name string) func([]models.ShoppingItem) ([]models.ShoppingItem, error) {
	return func(items []models.ShoppingItem) ([]models.ShoppingItem, error) {
		out, _, err := pantry.AddShoppingItem(items, name, "")
		return out, err
	}
}

func addPantry(names ...string) func([]models.PantryItem) ([]models.PantryItem, error) {
	return func(items []models.PantryItem) ([]models.PantryItem, error) {
		var err error
		for _, n := range names {
			if items, err = pantry.AddPantryItem(items, models.PantryItem{Name: n, QuantityEstimate: "1"}); err != nil {
				return nil, err
			}
		}
		return items, nil
	}
}

func seedShopping(t *testing.T, store database.Store, root string, items ...models.ShoppingItem) {
	t.Helper()
	c := codec.Shopping{}
	for _, it := range items {
		require.NoError(t, store.Upsert(context.Background(), database.Join(root, models.CollectionShoppingList, it.ID), c.Encode(it), database.UpsertOptions{}))
	}
}

func TestSynchronizer_MutateWithoutScope(t *testing.T) {
	s := newFixture().shopping()
	assert.ErrorIs(t, s.Mutate(addShopping("Eggs")), ErrNoScope)
	assert.Equal(t, StateUnsubscribed, s.State())
}

func TestSynchronizer_SnapshotEntersRemoteApplying(t *testing.T) {
	f := newFixture()
	seedShopping(t, f.store, "users/u1", models.ShoppingItem{ID: "1", Name: "Eggs", Category: "Dairy"})
	s := f.shopping()

	s.SetScope(private)
	assert.Equal(t, StateRemoteApplying, s.State())
	assert.Equal(t, []models.ShoppingItem{{ID: "1", Name: "Eggs", Category: "Dairy"}}, s.Items())

	f.clock.Add(DefaultEchoWindow / 2)
	assert.Equal(t, StateRemoteApplying, s.State())
	f.clock.Add(DefaultEchoWindow / 2)
	require.Eventually(t, func() bool { return s.State() == StateSubscribed }, waitFor, tick)
}

func TestSynchronizer_NoWriteScheduledWhileApplyingRemote(t *testing.T) {
	f := newFixture()
	s := f.shopping()
	s.SetScope(private)
	require.Equal(t, StateRemoteApplying, s.State())

	require.NoError(t, s.Mutate(addShopping("Eggs")))
	assert.False(t, s.Pending())
	assert.Len(t, s.Items(), 1, "the edit is kept locally")
	assert.Equal(t, 0, f.store.Writes())

	// Once the echo window is over the held back edit is scheduled.
	f.clock.Add(DefaultEchoWindow)
	require.Eventually(t, s.Pending, waitFor, tick)
	f.clock.Add(1200 * time.Millisecond)
	require.Eventually(t, func() bool { return f.store.Writes() == 1 }, waitFor, tick)
}

func TestSynchronizer_DebounceRestartsOnEveryEdit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	s := f.shopping()
	s.SetScope(private)
	settle(t, f, s)

	require.NoError(t, s.Mutate(addShopping("Eggs")))
	assert.True(t, s.Pending())
	f.clock.Add(time.Second)
	require.NoError(t, s.Mutate(addShopping("Flour")))
	f.clock.Add(time.Second)
	assert.Equal(t, 0, f.store.Writes())

	f.clock.Add(200 * time.Millisecond)
	require.Eventually(t, func() bool { return f.store.Writes() == 2 }, waitFor, tick)
	docs, err := f.store.List(ctx, "users/u1/shoppingList")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	require.Eventually(t, func() bool { return !s.Pending() }, waitFor, tick)
}

func TestSynchronizer_DiffDeletesRemovedItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seedShopping(t, f.store, "users/u1",
		models.ShoppingItem{ID: "1", Name: "Eggs"},
		models.ShoppingItem{ID: "2", Name: "Flour", Checked: true},
	)
	s := f.shopping()
	s.SetScope(private)
	settle(t, f, s)

	require.NoError(t, s.Mutate(func(items []models.ShoppingItem) ([]models.ShoppingItem, error) {
		return pantry.RemoveShoppingItem(items, "2")
	}))
	s.Flush(ctx)

	docs, err := f.store.List(ctx, "users/u1/shoppingList")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "1", docs[0].ID)

	// Nothing changed since the last reconciliation: no writes.
	settle(t, f, s)
	writes := f.store.Writes()
	require.NoError(t, s.Mutate(func(items []models.ShoppingItem) ([]models.ShoppingItem, error) { return items, nil }))
	s.Flush(ctx)
	assert.Equal(t, writes, f.store.Writes())
}

func TestSynchronizer_PermissionBackoffOnlyAffectsHousehold(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	hh := f.inventory()
	hh.SetScope(shared)
	settle(t, f, hh)
	own := f.inventory()
	own.SetScope(private)
	settle(t, f, own)

	f.store.DenyPrefix("households/h1")
	require.NoError(t, hh.Mutate(addPantry("Milk")))
	hh.Flush(ctx)
	require.Eventually(t, func() bool { return f.gate.Blocked() && !hh.Pending() }, waitFor, tick)
	require.Len(t, f.notes.all(), 1)
	assert.Equal(t, KindError, f.notes.all()[0].kind)

	writes := f.store.Writes()
	require.NoError(t, hh.Mutate(addPantry("Eggs")))
	hh.Flush(ctx)
	require.Eventually(t, func() bool { return !hh.Pending() }, waitFor, tick)
	assert.Equal(t, writes, f.store.Writes(), "household writes are skipped during the cooldown")

	require.NoError(t, own.Mutate(addPantry("Bread")))
	own.Flush(ctx)
	_, err := f.store.Get(ctx, "users/u1/inventory/bread")
	assert.NoError(t, err, "private writes are not blocked")
	assert.Len(t, f.notes.all(), 1, "one notification for the whole cooldown")

	f.store.AllowAll()
	f.clock.Add(31 * time.Second)
	require.False(t, f.gate.Blocked())
	hh.Flush(ctx)
	docs, err := f.store.List(ctx, "households/h1/inventory")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestSynchronizer_EagerFailuresAreAggregated(t *testing.T) {
	f := newFixture()
	s := f.inventory()
	s.SetScope(private)
	settle(t, f, s)

	f.store.FailWrites(database.ErrUnavailable)
	require.NoError(t, s.Mutate(addPantry("Milk", "Eggs")))

	require.Eventually(t, func() bool { return len(f.notes.all()) == 1 }, waitFor, tick)
	assert.Never(t, func() bool { return len(f.notes.all()) > 1 }, 50*time.Millisecond, tick)
	n := f.notes.all()[0]
	assert.Equal(t, KindError, n.kind)
	assert.True(t, strings.Contains(n.message, "2 of your pantry"), n.message)
	assert.False(t, f.gate.Blocked(), "only permission failures start the cooldown")
}

func TestSynchronizer_EagerMergesAndDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	s := f.inventory()
	s.SetScope(private)
	settle(t, f, s)

	require.NoError(t, s.Mutate(addPantry("Milk", "milk", "Salt")))
	require.Eventually(t, func() bool { return !s.Pending() }, waitFor, tick)
	s.Flush(ctx)

	doc, err := f.store.Get(ctx, "users/u1/inventory/milk")
	require.NoError(t, err)
	assert.Equal(t, "Milk", doc.Data["item"])
	assert.Equal(t, "2", doc.Data["quantity_estimate"])
	assert.Equal(t, "test", doc.Data[codec.FieldLastModifiedBy])

	settle(t, f, s)
	require.NoError(t, s.Mutate(func(items []models.PantryItem) ([]models.PantryItem, error) {
		return pantry.RemovePantryItem(items, "SALT")
	}))
	require.Eventually(t, func() bool {
		_, err := f.store.Get(ctx, "users/u1/inventory/salt")
		return err != nil
	}, waitFor, tick)
}

func TestSynchronizer_ScopeChangeCancelsAndDropsPendingWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	s := f.shopping()
	s.SetScope(private)
	settle(t, f, s)
	require.NoError(t, s.Mutate(addShopping("Eggs")))
	require.True(t, s.Pending())

	s.SetScope(shared)
	assert.Equal(t, 0, f.store.Subscribers("users/u1/shoppingList"))
	assert.Equal(t, 1, f.store.Subscribers("households/h1/shoppingList"))
	assert.Empty(t, s.Items())
	assert.False(t, s.Pending())
	assert.Equal(t, shared, s.Scope())

	f.clock.Add(2 * time.Second)
	assert.Never(t, func() bool {
		docs, _ := f.store.List(ctx, "users/u1/shoppingList")
		return len(docs) > 0
	}, 50*time.Millisecond, tick)

	seedShopping(t, f.store, "users/u1", models.ShoppingItem{ID: "x", Name: "Late"})
	assert.Empty(t, s.Items(), "the old scope no longer reaches local state")

	// Re-setting the same scope keeps the subscription.
	s.SetScope(shared)
	assert.Equal(t, 1, f.store.Subscribers("households/h1/shoppingList"))

	s.Stop()
	assert.Equal(t, 0, f.store.Subscribers("households/h1/shoppingList"))
	assert.Equal(t, StateUnsubscribed, s.State())
}

func TestSynchronizer_MealPlanWindowRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.clock.Add(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC).Sub(f.clock.Now()))
	c := codec.MealPlan{}
	lapsed := models.DayPlan{Date: "2026-10-10", Meals: []models.MealPlanItem{{ID: "old", Recipe: models.RecipeSnapshot{Title: "Old"}}}}
	emptyDay := models.DayPlan{Date: "2026-10-14", Meals: []models.MealPlanItem{}}
	for _, d := range []models.DayPlan{lapsed, emptyDay} {
		require.NoError(t, f.store.Upsert(ctx, "users/u1/mealPlan/"+d.Date, c.Encode(d), database.UpsertOptions{}))
	}

	s := f.mealPlan()
	s.SetScope(private)
	settle(t, f, s)
	window := s.Items()
	require.Len(t, window, mealplan.WindowDays)
	assert.Equal(t, "2026-10-14", window[0].Date)
	assert.Equal(t, "2026-10-20", window[6].Date)

	var meal models.MealPlanItem
	require.NoError(t, s.Mutate(func(plan []models.DayPlan) ([]models.DayPlan, error) {
		var err error
		plan, meal, err = mealplan.AddMeal(plan, "2026-10-16", models.Recipe{Title: "Curry", Ingredients: []string{"rice"}, Servings: 2})
		return plan, err
	}))
	s.Flush(ctx)

	docs, err := f.store.List(ctx, "users/u1/mealPlan")
	require.NoError(t, err)
	require.Len(t, docs, 1, "lapsed and empty days are not persisted")
	assert.Equal(t, "2026-10-16", docs[0].ID)

	remote := make([]models.DayPlan, 0, len(docs))
	for _, d := range docs {
		day, err := c.Decode(d)
		require.NoError(t, err)
		remote = append(remote, day)
	}
	merged := mealplan.MergeRemote(mealplan.BuildWindow(f.clock.Now().UTC()), remote)
	assert.Equal(t, []models.MealPlanItem{meal}, merged[2].Meals)
	assert.True(t, mealplan.Equal(merged, s.Items()))

	settle(t, f, s)
	writes := f.store.Writes()
	require.NoError(t, s.Mutate(func(plan []models.DayPlan) ([]models.DayPlan, error) { return plan, nil }))
	s.Flush(ctx)
	assert.Equal(t, writes, f.store.Writes(), "an unchanged window is not rewritten")
}

func TestSynchronizer_SubscriptionErrorKeepsLocalState(t *testing.T) {
	f := newFixture()
	seedShopping(t, f.store, "users/u1", models.ShoppingItem{ID: "1", Name: "Eggs"})
	s := f.shopping()
	s.SetScope(private)
	require.Len(t, s.Items(), 1)

	f.store.FailSubscriptions("users/u1", database.ErrUnavailable)
	assert.Equal(t, StateUnsubscribed, s.State())
	assert.Len(t, s.Items(), 1)
	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, KindInfo, notes[0].kind)

	// Setting the same scope again resubscribes.
	s.SetScope(private)
	assert.Equal(t, 1, f.store.Subscribers("users/u1/shoppingList"))
	assert.NotEqual(t, StateUnsubscribed, s.State())
}

func TestSynchronizer_SubscriptionErrorRestoresCachedSnapshot(t *testing.T) {
	f := newFixture()
	seedShopping(t, f.store, "users/u1", models.ShoppingItem{ID: "1", Name: "Eggs", Category: "Dairy"})
	first := f.shopping()
	first.SetScope(private)
	first.Stop()

	// A fresh process whose subscription fails before any snapshot.
	g := newFixture()
	g.cache = f.cache
	g.store.RejectSubscriptions("users/u1", database.ErrUnavailable)
	s := g.shopping()
	s.SetScope(private)

	assert.Equal(t, StateUnsubscribed, s.State())
	assert.Equal(t, []models.ShoppingItem{{ID: "1", Name: "Eggs", Category: "Dairy"}}, s.Items())
	require.Len(t, g.notes.all(), 1)
}

func TestSynchronizer_SkipsUndecodableDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.store.Upsert(ctx, "users/u1/mealPlan/not-a-date", map[string]interface{}{"meals": []interface{}{}}, database.UpsertOptions{}))
	f.clock.Add(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC).Sub(f.clock.Now()))

	s := f.mealPlan()
	s.SetScope(private)
	assert.Len(t, s.Items(), mealplan.WindowDays)
	assert.Equal(t, "subscribed", StateSubscribed.String())
	assert.Equal(t, "users/u1", s.Status().Scope)
}

func TestSynchronizer_EditsAfterSubscriptionErrorAreWritten(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	s := f.shopping()
	s.SetScope(private)
	settle(t, f, s)

	f.store.FailSubscriptions("users/u1", database.ErrUnavailable)
	require.Equal(t, StateUnsubscribed, s.State())
	require.NoError(t, s.Mutate(addShopping("Eggs")))
	assert.True(t, s.Pending(), "edits keep being scheduled while live updates are down")

	f.clock.Add(1200 * time.Millisecond)
	require.Eventually(t, func() bool {
		docs, err := f.store.List(ctx, "users/u1/shoppingList")
		return err == nil && len(docs) == 1
	}, waitFor, tick)

	s.SetScope(private)
	assert.Len(t, s.Items(), 1)
	assert.Len(t, f.notes.all(), 1, "only the paused notice")
}

func TestSynchronizer_ResubscribesAfterErrorKeepingUnwrittenEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seedShopping(t, f.store, "users/u1", models.ShoppingItem{ID: "1", Name: "Eggs"})
	s := f.shopping()
	s.SetScope(private)
	settle(t, f, s)

	f.store.FailSubscriptions("users/u1", database.ErrUnavailable)
	f.store.FailWrites(database.ErrUnavailable)
	require.NoError(t, s.Mutate(addShopping("Flour")))
	f.clock.Add(1200 * time.Millisecond)
	require.Eventually(t, func() bool { return len(f.notes.all()) == 2 }, waitFor, tick)
	require.Len(t, s.Items(), 2)

	// The store recovers; the retry reopens the subscription on its own.
	f.store.FailWrites(nil)
	f.clock.Add(DefaultRetryDelay)
	require.Eventually(t, func() bool { return f.store.Subscribers("users/u1/shoppingList") == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return s.Pending() || !s.Status().Dirty }, waitFor, tick)
	assert.Len(t, s.Items(), 2, "the snapshot does not replace unwritten edits")

	f.clock.Add(1200 * time.Millisecond)
	require.Eventually(t, func() bool {
		docs, err := f.store.List(ctx, "users/u1/shoppingList")
		return err == nil && len(docs) == 2
	}, waitFor, tick)

	notes := f.notes.all()
	assert.Equal(t, KindInfo, notes[0].kind)
	assert.Equal(t, KindError, notes[1].kind)
	assert.Len(t, notes, 2, "a repeated failure does not repeat the paused notice")
}

func TestSynchronizer_RetryStopsAfterScopeChange(t *testing.T) {
	f := newFixture()
	s := f.shopping()
	s.SetScope(private)
	settle(t, f, s)

	f.store.FailSubscriptions("users/u1", database.ErrUnavailable)
	s.SetScope(shared)
	require.Equal(t, 1, f.store.Subscribers("households/h1/shoppingList"))

	f.clock.Add(DefaultRetryDelay)
	assert.Never(t, func() bool { return f.store.Subscribers("users/u1/shoppingList") > 0 }, 50*time.Millisecond, tick)
	assert.Equal(t, shared, s.Scope())
}

func TestSynchronizer_EagerNamesSharingAKeyStayOneItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	s := f.inventory()
	s.SetScope(private)
	settle(t, f, s)

	require.NoError(t, s.Mutate(addPantry("a/b", "a-b")))
	require.Len(t, s.Items(), 1)
	require.Eventually(t, func() bool {
		doc, err := f.store.Get(ctx, "users/u1/inventory/a-b")
		return err == nil && doc.Data["quantity_estimate"] == "2"
	}, waitFor, tick)

	docs, err := f.store.List(ctx, "users/u1/inventory")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	require.Eventually(t, func() bool {
		items := s.Items()
		return len(items) == 1 && items[0].QuantityEstimate == "2"
	}, waitFor, tick)
}

func TestSynchronizer_EditsAreWrittenWhileRetriesKeepFailing(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	core, logs := observer.New(zap.WarnLevel)
	s := New(Options[models.ShoppingItem]{
		Collection: models.CollectionShoppingList,
		Mode:       ModeDiff,
		Codec:      codec.Shopping{ClientID: "test"},
		Store:      f.store,
		Notifier:   f.notes,
		Clock:      f.clock,
		Logger:     zap.New(core),
	})
	s.SetScope(private)
	settle(t, f, s)

	f.store.FailSubscriptions("users/u1", database.ErrUnavailable)
	f.store.RejectSubscriptions("users/u1", database.ErrUnavailable)
	f.clock.Add(DefaultRetryDelay)
	require.Eventually(t, func() bool {
		return logs.FilterMessage("Subscription failed").Len() == 2
	}, waitFor, tick)

	require.NoError(t, s.Mutate(addShopping("Eggs")))
	s.Flush(ctx)
	docs, err := f.store.List(ctx, "users/u1/shoppingList")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Len(t, f.notes.all(), 1)
}
