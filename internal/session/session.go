// Package session ties the collection synchronizers of one user to the
// household that user belongs to.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/codec"
	"github.com/example/pantrysync/internal/config"
	"github.com/example/pantrysync/internal/household"
	"github.com/example/pantrysync/internal/mealplan"
	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/internal/notify"
	"github.com/example/pantrysync/internal/syncer"
	"github.com/example/pantrysync/pkg/cache"
	"github.com/example/pantrysync/pkg/database"
)

const householdLostMessage = "You no longer have access to your household. Showing your personal lists."

// Options configure the sessions created by a Manager.
type Options struct {
	Store    database.Store
	Cache    cache.Cache
	Clock    clock.Clock
	Logger   *zap.Logger
	ClientID string
	Timings  config.SyncTimings
	// Sinks returns the notifiers that receive a copy of every notification
	// of the user's session, next to the session's own buffer.
	Sinks      func(uid string) []syncer.Notifier
	BufferSize int
}

// Status describes a session for diagnostics.
type Status struct {
	UserID      string          `json:"userId"`
	Scope       string          `json:"scope"`
	HouseholdID string          `json:"householdId,omitempty"`
	Collections []syncer.Status `json:"collections"`
}

// Session owns the four synchronizers of one user. The scope they are bound
// to is recomputed whenever the user, the household, or the household
// document changes.
type Session struct {
	opts     Options
	logger   *zap.Logger
	buffer   *notify.Buffer
	notifier syncer.Notifier

	inventory *syncer.Synchronizer[models.PantryItem]
	shopping  *syncer.Synchronizer[models.ShoppingItem]
	recipes   *syncer.Synchronizer[models.SavedRecipe]
	mealPlan  *syncer.Synchronizer[models.DayPlan]

	// scopeMu serializes scope changes. It is never held while subscribing to
	// the household document.
	scopeMu sync.Mutex

	mu             sync.Mutex
	user           models.User
	household      *models.Household
	householdID    string // document currently subscribed to
	householdGen   uint64
	unsubHousehold database.Unsubscribe
	scope          household.Scope
	closed         bool
}

func newSession(u models.User, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.Named("session").With(zap.String("uid", u.ID))
	buffer := notify.NewBuffer(opts.BufferSize)
	notifier := notify.Multi{buffer}
	if opts.Sinks != nil {
		notifier = append(notifier, opts.Sinks(u.ID)...)
	}

	t := opts.Timings
	gate := syncer.NewWriteGate(t.PermissionCooldown, opts.Clock)
	clk := opts.Clock

	s := &Session{
		opts:     opts,
		logger:   logger,
		buffer:   buffer,
		notifier: notifier,
		user:     u,
	}
	s.inventory = syncer.New(syncer.Options[models.PantryItem]{
		Collection: models.CollectionInventory,
		Label:      "pantry",
		Mode:       syncer.ModeEager,
		EchoWindow: t.EchoWindow,
		RetryDelay: t.ResubscribeDelay,
		Codec:      codec.Inventory{ClientID: opts.ClientID},
		Store:      opts.Store,
		Gate:       gate,
		Notifier:   notifier,
		Cache:      opts.Cache,
		CacheTTL:   t.SnapshotCacheTTL,
		Clock:      clk,
		Logger:     logger,
	})
	s.shopping = syncer.New(syncer.Options[models.ShoppingItem]{
		Collection: models.CollectionShoppingList,
		Label:      "shopping list",
		Mode:       syncer.ModeDiff,
		Debounce:   t.ShoppingDebounce,
		EchoWindow: t.EchoWindow,
		RetryDelay: t.ResubscribeDelay,
		Codec:      codec.Shopping{ClientID: opts.ClientID},
		Store:      opts.Store,
		Gate:       gate,
		Notifier:   notifier,
		Cache:      opts.Cache,
		CacheTTL:   t.SnapshotCacheTTL,
		Clock:      clk,
		Logger:     logger,
	})
	s.recipes = syncer.New(syncer.Options[models.SavedRecipe]{
		Collection: models.CollectionSavedRecipes,
		Label:      "saved recipes",
		Mode:       syncer.ModeDiff,
		Debounce:   t.RecipesDebounce,
		EchoWindow: t.EchoWindow,
		RetryDelay: t.ResubscribeDelay,
		Codec:      codec.SavedRecipes{ClientID: opts.ClientID},
		Store:      opts.Store,
		Gate:       gate,
		Notifier:   notifier,
		Cache:      opts.Cache,
		CacheTTL:   t.SnapshotCacheTTL,
		Clock:      clk,
		Logger:     logger,
	})
	s.mealPlan = syncer.New(syncer.Options[models.DayPlan]{
		Collection: models.CollectionMealPlan,
		Label:      "meal plan",
		Mode:       syncer.ModeWindow,
		Debounce:   t.MealPlanDebounce,
		EchoWindow: t.EchoWindow,
		RetryDelay: t.ResubscribeDelay,
		Codec:      codec.MealPlan{ClientID: opts.ClientID},
		Apply: func(remote []models.DayPlan) []models.DayPlan {
			return mealplan.Reanchor(remote, clk.Now())
		},
		Keep:     mealplan.HasMeals,
		Store:    opts.Store,
		Gate:     gate,
		Notifier: notifier,
		Cache:    opts.Cache,
		CacheTTL: t.SnapshotCacheTTL,
		Clock:    clk,
		Logger:   logger,
	})
	return s
}

func (s *Session) controllers() []syncer.Controller {
	return []syncer.Controller{s.inventory, s.shopping, s.recipes, s.mealPlan}
}

// Inventory returns the pantry synchronizer.
func (s *Session) Inventory() *syncer.Synchronizer[models.PantryItem] { return s.inventory }

// Shopping returns the shopping list synchronizer.
func (s *Session) Shopping() *syncer.Synchronizer[models.ShoppingItem] { return s.shopping }

// Recipes returns the saved recipes synchronizer.
func (s *Session) Recipes() *syncer.Synchronizer[models.SavedRecipe] { return s.recipes }

// MealPlan returns the meal plan synchronizer.
func (s *Session) MealPlan() *syncer.Synchronizer[models.DayPlan] { return s.mealPlan }

// Notifications drains the buffered notifications.
func (s *Session) Notifications() []notify.Notification {
	return s.buffer.Drain()
}

// User returns the session's user.
func (s *Session) User() models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Household returns a copy of the last known household, or nil.
func (s *Session) Household() *models.Household {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyHousehold(s.household)
}

// Scope returns the scope the synchronizers are bound to.
func (s *Session) Scope() household.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Status reports the scope and the state of every synchronizer.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{UserID: s.user.ID, Scope: s.scope.String()}
	if s.household != nil {
		st.HouseholdID = s.household.ID
	}
	s.mu.Unlock()
	for _, c := range s.controllers() {
		st.Collections = append(st.Collections, c.Status())
	}
	return st
}

// SetUser replaces the user, e.g. after the profile changed.
func (s *Session) SetUser(u models.User) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.user = u
	s.mu.Unlock()
	s.rescope()
}

// SetHousehold replaces the household and follows its document. nil means
// the user has no household.
func (s *Session) SetHousehold(h *models.Household) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.household = copyHousehold(h)
	id := ""
	if h != nil {
		id = h.ID
	}
	var prev database.Unsubscribe
	resubscribe := id != s.householdID
	if resubscribe {
		prev, s.unsubHousehold = s.unsubHousehold, nil
		s.householdGen++
		s.householdID = id
	}
	gen := s.householdGen
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	s.rescope()
	if resubscribe && id != "" {
		s.followHousehold(gen, id)
	}
}

func (s *Session) followHousehold(gen uint64, id string) {
	path := database.Join(models.CollectionHouseholds, id)
	unsub := s.opts.Store.SubscribeDoc(context.Background(), path,
		func(doc *database.Document) { s.onHouseholdDoc(gen, doc) },
		func(err error) { s.onHouseholdError(gen, err) },
	)
	s.mu.Lock()
	if s.householdGen == gen && !s.closed {
		s.unsubHousehold, unsub = unsub, nil
	}
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (s *Session) onHouseholdDoc(gen uint64, doc *database.Document) {
	var h *models.Household
	if doc != nil {
		decoded, err := codec.DecodeHousehold(*doc)
		if err != nil {
			s.logger.Warn("Household document is malformed", zap.String("path", doc.Path), zap.Error(err))
		} else {
			h = decoded
		}
	}

	s.mu.Lock()
	if gen != s.householdGen || s.closed {
		s.mu.Unlock()
		return
	}
	s.household = h
	s.mu.Unlock()
	if h == nil {
		s.logger.Info("Household document is gone")
	}
	s.rescope()
}

func (s *Session) onHouseholdError(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.householdGen || s.closed {
		s.mu.Unlock()
		return
	}
	s.household = nil
	s.householdID = ""
	s.unsubHousehold = nil
	s.householdGen++
	s.mu.Unlock()

	s.logger.Warn("Household listener failed", zap.Error(err))
	if errors.Is(err, database.ErrPermissionDenied) {
		s.notifier.Notify(householdLostMessage, syncer.KindInfo)
	}
	s.rescope()
}

// rescope recomputes the scope and rebinds the synchronizers if it changed.
func (s *Session) rescope() {
	s.scopeMu.Lock()
	defer s.scopeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	user := s.user
	next := household.Resolve(s.household, &user)
	prev := s.scope
	s.scope = next
	s.mu.Unlock()

	if next != prev {
		s.logger.Info("Scope changed", zap.Stringer("from", prev), zap.Stringer("to", next))
	}
	// SetScope is a no-op for an unchanged, healthy subscription and
	// resubscribes a failed one.
	for _, c := range s.controllers() {
		c.SetScope(next)
	}
}

// Flush writes every pending change now.
func (s *Session) Flush(ctx context.Context) {
	for _, c := range s.controllers() {
		c.Flush(ctx)
	}
}

// Close stops every subscription. Pending writes are dropped; call Flush first
// to keep them.
func (s *Session) Close() {
	s.scopeMu.Lock()
	defer s.scopeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsub := s.unsubHousehold
	s.unsubHousehold = nil
	s.householdGen++
	s.scope = household.Scope{}
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	for _, c := range s.controllers() {
		c.Stop()
	}
	s.logger.Info("Session closed")
}

func copyHousehold(h *models.Household) *models.Household {
	if h == nil {
		return nil
	}
	cp := *h
	cp.Members = append([]models.Member(nil), h.Members...)
	cp.MemberIDs = append([]string(nil), h.MemberIDs...)
	return &cp
}
