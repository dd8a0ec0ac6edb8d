// Package syncer keeps an in-memory collection in sync with the remote
// collection of the current scope.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/household"
	"github.com/example/pantrysync/internal/reconcile"
	"github.com/example/pantrysync/pkg/cache"
	"github.com/example/pantrysync/pkg/database"
)

// DefaultEchoWindow is how long local edits stay suppressed after a snapshot.
const DefaultEchoWindow = 100 * time.Millisecond

// DefaultRetryDelay is how long a failed subscription waits before it is
// opened again.
const DefaultRetryDelay = 5 * time.Second

const cacheTimeout = 5 * time.Second

// ErrNoScope is returned by Mutate before a scope has been set.
var ErrNoScope = errors.New("collection is not bound to a scope")

// Codec converts items to and from documents.
type Codec[T any] interface {
	// Key is the document ID of item.
	Key(item T) string
	Encode(item T) map[string]interface{}
	Decode(doc database.Document) (T, error)
}

// Options configure a Synchronizer.
type Options[T any] struct {
	// Collection is the subcollection name inside a scope, e.g. "shoppingList".
	Collection string
	// Label names the collection in user notifications. Defaults to Collection.
	Label      string
	Mode       Mode
	Debounce   time.Duration
	EchoWindow time.Duration
	// RetryDelay is the wait before resubscribing after a subscription error.
	RetryDelay time.Duration
	Codec      Codec[T]
	// Apply builds the local state from the decoded snapshot, and from nil when
	// a new scope is set. The default uses the snapshot as is.
	Apply func(remote []T) []T
	// Keep selects the items ModeWindow persists. Nil keeps everything.
	Keep func(item T) bool

	Store    database.Store
	Gate     *WriteGate
	Notifier Notifier
	// Cache stores the last applied snapshot of every path. Optional.
	Cache    cache.Cache
	CacheTTL time.Duration
	Clock    clock.Clock
	Logger   *zap.Logger
	// OnChange receives a copy of the items after every local or remote change.
	OnChange func(items []T)
}

// Status is a point in time view of a Synchronizer.
type Status struct {
	Collection string `json:"collection"`
	State      string `json:"state"`
	Scope      string `json:"scope"`
	Pending    bool   `json:"pending"`
	Dirty      bool   `json:"dirty"`
	Items      int    `json:"items"`
}

// Controller is the type independent part of a Synchronizer.
type Controller interface {
	SetScope(scope household.Scope)
	Flush(ctx context.Context)
	Stop()
	Status() Status
}

// Synchronizer owns one collection. Local edits go through Mutate; remote
// snapshots replace local state. Store calls are never made while holding
// the state lock, because stores may deliver snapshots synchronously.
type Synchronizer[T any] struct {
	opts     Options[T]
	logger   *zap.Logger
	clock    clock.Clock
	notifier Notifier

	// flushMu serializes writes.
	flushMu sync.Mutex

	mu        sync.Mutex
	state     State
	scope     household.Scope
	gen       uint64 // bumped on every teardown; stale callbacks compare against it
	unsub     database.Unsubscribe
	items     []T
	remote    map[string]T
	hasRemote bool
	dirty     bool
	scheduled bool
	debounce  *clock.Timer
	echo      *clock.Timer
	echoSeq   uint64
	retry     *clock.Timer
	// failed is set from a subscription error until the next snapshot.
	failed bool
	// resync marks a resubscription that must not replace unwritten edits.
	resync bool
}

var _ Controller = (*Synchronizer[struct{}])(nil)

// New creates an unsubscribed Synchronizer.
func New[T any](opts Options[T]) *Synchronizer[T] {
	if opts.Label == "" {
		opts.Label = opts.Collection
	}
	if opts.EchoWindow <= 0 {
		opts.EchoWindow = DefaultEchoWindow
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Apply == nil {
		opts.Apply = func(remote []T) []T { return remote }
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Synchronizer[T]{
		opts:     opts,
		logger:   opts.Logger.Named("syncer").With(zap.String("collection", opts.Collection)),
		clock:    opts.Clock,
		notifier: notifier,
	}
}

func clone[T any](items []T) []T {
	if items == nil {
		return nil
	}
	return append(make([]T, 0, len(items)), items...)
}

// State returns the current state.
func (s *Synchronizer[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Scope returns the current scope.
func (s *Synchronizer[T]) Scope() household.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Items returns a copy of the local state.
func (s *Synchronizer[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.items)
}

// Pending reports whether a write is scheduled.
func (s *Synchronizer[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}

// Status implements Controller.
func (s *Synchronizer[T]) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Collection: s.opts.Collection,
		State:      s.state.String(),
		Scope:      s.scope.String(),
		Pending:    s.scheduled,
		Dirty:      s.dirty,
		Items:      len(s.items),
	}
}

// SetScope binds the synchronizer to scope. The previous subscription is
// cancelled before the new one is opened, and pending writes of the previous
// scope are dropped. Setting the current scope again is a no-op unless the
// subscription has failed, in which case it resubscribes and keeps local
// edits that were not written yet.
func (s *Synchronizer[T]) SetScope(scope household.Scope) {
	s.bind(scope, 0)
}

// resubscribe reopens a failed subscription unless the scope was changed or
// torn down since generation gen.
func (s *Synchronizer[T]) resubscribe(scope household.Scope, gen uint64) {
	s.bind(scope, gen)
}

func (s *Synchronizer[T]) bind(scope household.Scope, retryGen uint64) {
	s.mu.Lock()
	if retryGen != 0 && (retryGen != s.gen || scope != s.scope || s.state != StateUnsubscribed) {
		s.mu.Unlock()
		return
	}
	if scope == s.scope && (scope.IsZero() || s.state != StateUnsubscribed) {
		s.mu.Unlock()
		return
	}
	prev := s.teardownLocked()
	changed := scope != s.scope
	if changed {
		s.items = nil
		if !scope.IsZero() {
			s.items = s.opts.Apply(nil)
		}
		s.remote = nil
		s.hasRemote = false
		s.dirty = false
		s.failed = false
		s.resync = false
	} else {
		// Resubscribing after a failure: the last snapshot stays the base
		// for writes until a new one arrives.
		s.resync = s.dirty
	}
	s.scope = scope
	items := clone(s.items)
	if scope.IsZero() {
		s.mu.Unlock()
		if prev != nil {
			prev()
		}
		s.logger.Info("Scope cleared")
		s.changed(changed, items)
		return
	}
	s.state = StateSubscribed
	gen := s.gen
	path := scope.CollectionPath(s.opts.Collection)
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	s.changed(changed, items)
	s.logger.Info("Subscribing", zap.String("path", path))
	unsub := s.opts.Store.Subscribe(context.Background(), path,
		func(docs []database.Document) { s.onSnapshot(gen, path, docs) },
		func(err error) { s.onError(gen, path, err) },
	)

	s.mu.Lock()
	if s.gen == gen && s.state != StateUnsubscribed {
		s.unsub, unsub = unsub, nil
	}
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Stop cancels the subscription and drops local state and pending writes.
func (s *Synchronizer[T]) Stop() {
	s.mu.Lock()
	prev := s.teardownLocked()
	s.scope = household.Scope{}
	s.items = nil
	s.remote = nil
	s.hasRemote = false
	s.dirty = false
	s.failed = false
	s.resync = false
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

func (s *Synchronizer[T]) teardownLocked() database.Unsubscribe {
	s.gen++
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	if s.echo != nil {
		s.echo.Stop()
		s.echo = nil
	}
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	s.scheduled = false
	s.state = StateUnsubscribed
	prev := s.unsub
	s.unsub = nil
	return prev
}

func (s *Synchronizer[T]) changed(changed bool, items []T) {
	if changed && s.opts.OnChange != nil {
		s.opts.OnChange(items)
	}
}

func (s *Synchronizer[T]) onSnapshot(gen uint64, path string, docs []database.Document) {
	remote := make(map[string]T, len(docs))
	list := make([]T, 0, len(docs))
	for _, d := range docs {
		item, err := s.opts.Codec.Decode(d)
		if err != nil {
			s.logger.Warn("Skipping undecodable document", zap.String("path", d.Path), zap.Error(err))
			continue
		}
		remote[d.ID] = item
		list = append(list, item)
	}

	s.mu.Lock()
	if gen != s.gen || s.state == StateUnsubscribed {
		s.mu.Unlock()
		return
	}
	s.remote = remote
	s.hasRemote = true
	s.failed = false
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	if s.resync && s.dirty {
		// First snapshot after a failure: local edits win and are written
		// against the fresh remote state.
		s.resync = false
		s.state = StateSubscribed
		if !s.scheduled {
			s.scheduleLocked(gen)
		}
		s.mu.Unlock()
		s.logger.Info("Resubscribed with unwritten local edits", zap.String("path", path), zap.Int("documents", len(docs)))
		s.persist(path, list)
		return
	}
	s.resync = false
	next := s.opts.Apply(clone(list))
	changed := !reconcile.Equal(s.items, next)
	if changed {
		s.items = next
	}
	s.state = StateRemoteApplying
	if s.echo != nil {
		s.echo.Stop()
	}
	s.echoSeq++
	seq := s.echoSeq
	s.echo = s.clock.AfterFunc(s.opts.EchoWindow, func() { go s.exitApplying(gen, seq) })
	items := clone(s.items)
	s.mu.Unlock()

	s.logger.Debug("Snapshot applied", zap.String("path", path), zap.Int("documents", len(docs)), zap.Bool("changed", changed))
	s.persist(path, list)
	s.changed(changed, items)
}

func (s *Synchronizer[T]) exitApplying(gen, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || seq != s.echoSeq || s.state != StateRemoteApplying {
		return
	}
	s.state = StateSubscribed
	s.echo = nil
	// Edits made while applying were held back; schedule them now.
	if s.dirty && !s.scheduled {
		s.scheduleLocked(gen)
	}
}

func (s *Synchronizer[T]) onError(gen uint64, path string, err error) {
	s.mu.Lock()
	if gen != s.gen || s.state == StateUnsubscribed {
		s.mu.Unlock()
		return
	}
	s.state = StateUnsubscribed
	s.unsub = nil
	if s.echo != nil {
		s.echo.Stop()
		s.echo = nil
	}
	first := !s.failed
	s.failed = true
	restore := !s.dirty && (!s.hasRemote || len(s.items) == 0)
	// Edits still go out against the last snapshot while live updates are down.
	if s.dirty && s.hasRemote && !s.scheduled {
		s.scheduleLocked(gen)
	}
	if s.retry != nil {
		s.retry.Stop()
	}
	scope := s.scope
	s.retry = s.clock.AfterFunc(s.opts.RetryDelay, func() { go s.resubscribe(scope, gen) })
	s.mu.Unlock()

	s.logger.Warn("Subscription failed", zap.String("path", path), zap.Duration("retryIn", s.opts.RetryDelay), zap.Error(err))
	if restore {
		s.restore(gen, path)
	}
	if first {
		s.notifier.Notify(fmt.Sprintf("Live updates for your %s are paused. Showing the last saved copy.", s.opts.Label), KindInfo)
	}
}

func cacheKey(path string) string {
	return "snapshot:" + path
}

// persist stores the decoded snapshot as the last known good copy of path.
func (s *Synchronizer[T]) persist(path string, items []T) {
	if s.opts.Cache == nil {
		return
	}
	b, err := json.Marshal(items)
	if err != nil {
		s.logger.Warn("Failed to encode snapshot for cache", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := s.opts.Cache.Set(ctx, cacheKey(path), b, s.opts.CacheTTL); err != nil {
		s.logger.Warn("Failed to cache snapshot", zap.String("path", path), zap.Error(err))
	}
}

func (s *Synchronizer[T]) restore(gen uint64, path string) {
	if s.opts.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	b, err := s.opts.Cache.Get(ctx, cacheKey(path))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Failed to read cached snapshot", zap.String("path", path), zap.Error(err))
		}
		return
	}
	var cached []T
	if err := json.Unmarshal(b, &cached); err != nil {
		s.logger.Warn("Discarding corrupt cached snapshot", zap.String("path", path), zap.Error(err))
		return
	}

	s.mu.Lock()
	if gen != s.gen || s.dirty {
		s.mu.Unlock()
		return
	}
	s.items = s.opts.Apply(cached)
	items := clone(s.items)
	s.mu.Unlock()
	s.logger.Info("Restored cached snapshot", zap.String("path", path), zap.Int("items", len(cached)))
	s.changed(true, items)
}

// Mutate applies fn to a copy of the local state and schedules a write of the
// result. fn runs under the synchronizer's lock and must not call back into
// it. An error from fn discards the edit and is returned as is.
//
// Edits made while a snapshot is being applied update local state but do not
// schedule a write until the echo window has passed. After a subscription
// error edits are written against the last snapshot received.
func (s *Synchronizer[T]) Mutate(fn func(items []T) ([]T, error)) error {
	s.mu.Lock()
	if s.scope.IsZero() {
		s.mu.Unlock()
		return ErrNoScope
	}
	next, err := fn(clone(s.items))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.items = next
	s.dirty = true
	if s.hasRemote && (s.state == StateSubscribed || s.failed) {
		s.scheduleLocked(s.gen)
	}
	items := clone(next)
	s.mu.Unlock()
	s.changed(true, items)
	return nil
}

func (s *Synchronizer[T]) scheduleLocked(gen uint64) {
	s.scheduled = true
	if s.opts.Debounce <= 0 {
		go s.flush(context.Background(), gen)
		return
	}
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = s.clock.AfterFunc(s.opts.Debounce, func() { go s.flush(context.Background(), gen) })
}

// Flush writes pending local changes now instead of waiting for the debounce.
func (s *Synchronizer[T]) Flush(ctx context.Context) {
	s.mu.Lock()
	gen := s.gen
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.mu.Unlock()
	s.flush(ctx, gen)
}

func (s *Synchronizer[T]) flush(ctx context.Context, gen uint64) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if gen != s.gen || !s.hasRemote || !s.dirty {
		if gen == s.gen {
			s.scheduled = false
		}
		s.mu.Unlock()
		return
	}
	s.scheduled = false
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	scope := s.scope
	if scope.Household && s.opts.Gate != nil && s.opts.Gate.Blocked() {
		s.mu.Unlock()
		s.logger.Debug("Household writes blocked, skipping flush", zap.Time("until", s.opts.Gate.Until()))
		return
	}
	local := clone(s.items)
	remote := make(map[string]T, len(s.remote))
	for k, v := range s.remote {
		remote[k] = v
	}
	s.dirty = false
	s.mu.Unlock()

	path := scope.CollectionPath(s.opts.Collection)
	var err error
	switch s.opts.Mode {
	case ModeEager:
		err = s.writeEach(ctx, scope, path, local, remote)
	case ModeWindow:
		err = s.writeWindow(ctx, path, local, remote)
	default:
		err = s.writeDiff(ctx, path, local, remote)
	}
	if err == nil {
		return
	}

	s.mu.Lock()
	if gen == s.gen {
		s.dirty = true
	}
	s.mu.Unlock()
	s.report(scope, err)
}

// writeEach writes every changed item on its own. Failures are collected and
// the rest of the items are still attempted, except after a permission
// failure in a household scope.
func (s *Synchronizer[T]) writeEach(ctx context.Context, scope household.Scope, path string, local []T, remote map[string]T) error {
	plan := reconcile.Diff(reconcile.Index(local, s.opts.Codec.Key), remote)
	if plan.Empty() {
		return nil
	}
	var errs error
	fail := func(docPath string, err error) bool {
		s.logger.Warn("Write failed", zap.String("path", docPath), zap.Error(err))
		errs = multierr.Append(errs, err)
		return scope.Household && errors.Is(err, database.ErrPermissionDenied)
	}
	for _, k := range plan.ToDelete {
		docPath := database.Join(path, k)
		if err := s.opts.Store.Delete(ctx, docPath); err != nil && fail(docPath, err) {
			return errs
		}
	}
	for _, c := range plan.ToUpsert {
		docPath := database.Join(path, c.Key)
		if err := s.opts.Store.Upsert(ctx, docPath, s.opts.Codec.Encode(c.Item), database.UpsertOptions{}); err != nil && fail(docPath, err) {
			return errs
		}
	}
	if errs != nil {
		s.logger.Error("Some writes failed", zap.String("path", path),
			zap.Int("failed", len(multierr.Errors(errs))), zap.Int("attempted", plan.Len()))
	}
	return errs
}

func (s *Synchronizer[T]) commit(ctx context.Context, path string, plan reconcile.Plan[T]) error {
	batch := s.opts.Store.Batch()
	for _, k := range plan.ToDelete {
		batch.Delete(database.Join(path, k))
	}
	for _, c := range plan.ToUpsert {
		batch.Set(database.Join(path, c.Key), s.opts.Codec.Encode(c.Item))
	}
	if err := batch.Commit(ctx); err != nil {
		s.logger.Error("Batch write failed", zap.String("path", path), zap.Int("writes", batch.Len()), zap.Error(err))
		return err
	}
	s.logger.Debug("Batch committed", zap.String("path", path),
		zap.Int("deletes", len(plan.ToDelete)), zap.Int("upserts", len(plan.ToUpsert)))
	return nil
}

func (s *Synchronizer[T]) writeDiff(ctx context.Context, path string, local []T, remote map[string]T) error {
	plan := reconcile.Diff(reconcile.Index(local, s.opts.Codec.Key), remote)
	if plan.Empty() {
		return nil
	}
	return s.commit(ctx, path, plan)
}

// writeWindow rewrites the collection when the persisted part of local state
// differs from the last snapshot.
func (s *Synchronizer[T]) writeWindow(ctx context.Context, path string, local []T, remote map[string]T) error {
	kept := make([]T, 0, len(local))
	for _, it := range local {
		if s.opts.Keep == nil || s.opts.Keep(it) {
			kept = append(kept, it)
		}
	}
	if reconcile.Diff(reconcile.Index(kept, s.opts.Codec.Key), remote).Empty() {
		return nil
	}
	docs, err := s.opts.Store.List(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to list %q before rewrite: %w", path, err)
	}
	existing := make([]string, 0, len(docs))
	for _, d := range docs {
		existing = append(existing, d.ID)
	}
	return s.commit(ctx, path, reconcile.Overwrite(local, existing, s.opts.Codec.Key, s.opts.Keep))
}

func (s *Synchronizer[T]) report(scope household.Scope, err error) {
	errs := multierr.Errors(err)
	denied := false
	for _, e := range errs {
		if errors.Is(e, database.ErrPermissionDenied) {
			denied = true
			break
		}
	}
	if denied && scope.Household && s.opts.Gate != nil {
		if s.opts.Gate.Block() {
			s.logger.Warn("Household writes blocked after permission failure", zap.Time("until", s.opts.Gate.Until()))
			s.notifier.Notify("You don't have permission to change this household right now. Your changes will sync once access is restored.", KindError)
		}
		return
	}
	msg := fmt.Sprintf("Couldn't save your %s changes.", s.opts.Label)
	if len(errs) > 1 {
		msg = fmt.Sprintf("Couldn't save %d of your %s changes.", len(errs), s.opts.Label)
	}
	s.notifier.Notify(msg, KindError)
}
