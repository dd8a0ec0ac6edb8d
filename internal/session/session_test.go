package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/config"
	"github.com/example/pantrysync/internal/household"
	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/internal/pantry"
	"github.com/example/pantrysync/internal/syncer"
	"github.com/example/pantrysync/pkg/cache"
	"github.com/example/pantrysync/pkg/database"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

var (
	alice = models.User{ID: "u1", DisplayName: "Alice", Email: "alice@example.com"}
	bob   = models.User{ID: "u2", DisplayName: "Bob", Email: "bob@example.com"}
)

type recorder struct {
	mu    sync.Mutex
	kinds []syncer.Kind
}

func (r *recorder) Notify(_ string, kind syncer.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.kinds)
}

type fixture struct {
	store      *database.MemoryStore
	clock      *clock.Mock
	households *household.Service
	sink       *recorder
	manager    *Manager
}

func newFixture() *fixture {
	f := &fixture{
		store: database.NewMemoryStore(),
		clock: clock.NewMock(),
		sink:  &recorder{},
	}
	// Background flushes may log after a test returns, so no zaptest here.
	f.households = household.NewService(f.store, zap.NewNop())
	f.manager = NewManager(Options{
		Store:    f.store,
		Cache:    cache.NewMemoryCache(),
		Clock:    f.clock,
		Logger:   zap.NewNop(),
		ClientID: "test",
		Timings:  config.DefaultSyncTimings(),
		Sinks:    func(string) []syncer.Notifier { return []syncer.Notifier{f.sink} },
	}, f.households)
	return f
}

// settle lets the echo window of the initial snapshots pass.
func (f *fixture) settle(t *testing.T, s *Session) {
	t.Helper()
	f.clock.Add(config.DefaultSyncTimings().EchoWindow)
	require.Eventually(t, func() bool {
		for _, c := range s.Status().Collections {
			if c.State != syncer.StateSubscribed.String() {
				return false
			}
		}
		return true
	}, waitFor, tick)
}

func addShopping(name string) func([]models.ShoppingItem) ([]models.ShoppingItem, error) {
	return func(items []models.ShoppingItem) ([]models.ShoppingItem, error) {
		out, _, err := pantry.AddShoppingItem(items, name, "")
		return out, err
	}
}

func (f *fixture) shoppingDocs(t *testing.T, root string) []database.Document {
	t.Helper()
	docs, err := f.store.List(context.Background(), database.Join(root, models.CollectionShoppingList))
	require.NoError(t, err)
	return docs
}

func TestManager_StartsPrivateWithoutHousehold(t *testing.T) {
	f := newFixture()
	s, err := f.manager.GetOrStart(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, household.Scope{ID: "u1"}, s.Scope())
	assert.Nil(t, s.Household())
	st := s.Status()
	assert.Equal(t, "users/u1", st.Scope)
	require.Len(t, st.Collections, 4)
	for _, c := range st.Collections {
		assert.Equal(t, "users/u1", c.Scope)
	}
	assert.Len(t, s.MealPlan().Items(), 7, "the meal plan always shows the rolling week")

	f.settle(t, s)
	require.NoError(t, s.Inventory().Mutate(func(items []models.PantryItem) ([]models.PantryItem, error) {
		return pantry.AddPantryItem(items, models.PantryItem{Name: "Milk", QuantityEstimate: "1"})
	}))
	require.Eventually(t, func() bool {
		_, err := f.store.Get(context.Background(), "users/u1/inventory/milk")
		return err == nil
	}, waitFor, tick, "pantry edits are written without debounce")
}

func TestManager_GetOrStartReusesSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, err := f.manager.GetOrStart(ctx, alice)
	require.NoError(t, err)
	b, err := f.manager.GetOrStart(ctx, alice)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, f.manager.Len())

	got, ok := f.manager.Get("u1")
	assert.True(t, ok)
	assert.Same(t, a, got)

	_, err = f.manager.GetOrStart(ctx, models.User{})
	assert.Error(t, err)
}

func TestManager_StartsInHousehold(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.households.Create(ctx, alice, "Home")
	require.NoError(t, err)

	s, err := f.manager.GetOrStart(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, household.Scope{Household: true, ID: h.ID}, s.Scope())
	require.NotNil(t, s.Household())
	assert.Equal(t, h.ID, s.Status().HouseholdID)

	f.settle(t, s)
	require.NoError(t, s.Shopping().Mutate(addShopping("Eggs")))
	s.Flush(ctx)
	assert.Len(t, f.shoppingDocs(t, "households/"+h.ID), 1)
	assert.Empty(t, f.shoppingDocs(t, "users/u1"))
}

func TestSession_RemovedMemberDropsToPrivate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.households.Create(ctx, alice, "Home")
	require.NoError(t, err)
	_, err = f.households.Invite(ctx, alice, h.ID, bob.Email, "")
	require.NoError(t, err)
	_, err = f.households.Accept(ctx, bob, h.ID)
	require.NoError(t, err)

	s, err := f.manager.GetOrStart(ctx, bob)
	require.NoError(t, err)
	require.True(t, s.Scope().Household)

	_, err = f.households.RemoveMember(ctx, alice, h.ID, bob.Email)
	require.NoError(t, err)

	private := household.Scope{ID: "u2"}
	assert.Equal(t, private, s.Scope())
	assert.Equal(t, private, s.Shopping().Scope())
	assert.Equal(t, private, s.Inventory().Scope())
	assert.Equal(t, private, s.Recipes().Scope())
	assert.Equal(t, private, s.MealPlan().Scope())
	assert.Equal(t, 0, f.store.Subscribers("households/"+h.ID+"/shoppingList"))
}

func TestSession_DeletedHouseholdDropsToPrivate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.households.Create(ctx, alice, "Home")
	require.NoError(t, err)
	s, err := f.manager.GetOrStart(ctx, alice)
	require.NoError(t, err)
	require.True(t, s.Scope().Household)

	_, err = f.households.Leave(ctx, alice, h.ID)
	require.NoError(t, err)

	assert.Equal(t, household.Scope{ID: "u1"}, s.Scope())
	assert.Nil(t, s.Household())
}

func TestSession_HouseholdListenerPermissionErrorDropsToPrivate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.households.Create(ctx, alice, "Home")
	require.NoError(t, err)
	s, err := f.manager.GetOrStart(ctx, alice)
	require.NoError(t, err)

	f.store.FailSubscriptions("households/"+h.ID, database.ErrPermissionDenied)

	assert.Equal(t, household.Scope{ID: "u1"}, s.Scope())
	notes := s.Notifications()
	require.NotEmpty(t, notes)
	assert.Equal(t, householdLostMessage, notes[len(notes)-1].Message)
	assert.Equal(t, syncer.KindInfo, notes[len(notes)-1].Kind)
}

func TestSession_SetHouseholdFollowsNewHousehold(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s, err := f.manager.GetOrStart(ctx, alice)
	require.NoError(t, err)
	require.False(t, s.Scope().Household)

	h, err := f.households.Create(ctx, alice, "Home")
	require.NoError(t, err)
	s.SetHousehold(h)
	assert.Equal(t, household.Scope{Household: true, ID: h.ID}, s.Scope())
	assert.Equal(t, 1, f.store.Subscribers("households/"+h.ID))

	s.SetHousehold(nil)
	assert.Equal(t, household.Scope{ID: "u1"}, s.Scope())
	assert.Equal(t, 0, f.store.Subscribers("households/"+h.ID))
}

func TestSession_WriteFailuresReachBufferAndSinks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	h, err := f.households.Create(ctx, alice, "Home")
	require.NoError(t, err)
	s, err := f.manager.GetOrStart(ctx, alice)
	require.NoError(t, err)
	f.settle(t, s)

	f.store.DenyPrefix("households/" + h.ID + "/shoppingList")
	require.NoError(t, s.Shopping().Mutate(addShopping("Eggs")))
	s.Flush(ctx)

	notes := s.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, syncer.KindError, notes[0].Kind)
	assert.Equal(t, 1, f.sink.count())
	assert.Empty(t, s.Notifications(), "draining clears the buffer")
}

func TestManager_CloseAllFlushesPendingWrites(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	s, err := f.manager.GetOrStart(ctx, alice)
	require.NoError(t, err)
	f.settle(t, s)

	require.NoError(t, s.Shopping().Mutate(addShopping("Eggs")))
	require.True(t, s.Shopping().Pending())

	f.manager.CloseAll(ctx)
	assert.Len(t, f.shoppingDocs(t, "users/u1"), 1)
	assert.Equal(t, 0, f.manager.Len())
	assert.Equal(t, 0, f.store.Subscribers("users/u1/shoppingList"))
	assert.True(t, s.Scope().IsZero())

	// A closed session ignores further changes.
	s.SetUser(alice)
	assert.True(t, s.Scope().IsZero())
}

func TestManager_End(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.manager.GetOrStart(ctx, alice)
	require.NoError(t, err)

	f.manager.End(ctx, "u1")
	f.manager.End(ctx, "u1")
	_, ok := f.manager.Get("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, f.store.Subscribers("users/u1/inventory"))
}
