package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with realtime fan-out. It backs the
// memory store backend for local development and the package tests of every
// component that talks to a Store.
//
// Subscribers are notified synchronously on the goroutine that committed the
// change, after the store lock has been released.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]map[string]interface{}
	now    func() time.Time
	nextID int

	subs    map[int]*memorySub
	denied  []string
	failErr error
	writes  int
	rejects map[string]error
}

type memorySub struct {
	path       string
	doc        bool
	onSnapshot SnapshotFunc
	onDoc      DocFunc
	onError    ErrorFunc
	stopped    bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]interface{}),
		subs: make(map[int]*memorySub),
		now:  time.Now,
	}
}

// SetNow overrides the clock used for ServerTimestamp.
func (m *MemoryStore) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// DenyPrefix makes every write under prefix fail with ErrPermissionDenied.
func (m *MemoryStore) DenyPrefix(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied = append(m.denied, prefix)
}

// AllowAll removes every prefix registered with DenyPrefix or
// RejectSubscriptions.
func (m *MemoryStore) AllowAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied = nil
	m.rejects = nil
}

// RejectSubscriptions makes new subscriptions under prefix fail with err
// before delivering any snapshot.
func (m *MemoryStore) RejectSubscriptions(prefix string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejects == nil {
		m.rejects = make(map[string]error)
	}
	m.rejects[prefix] = err
}

func (m *MemoryStore) rejectedLocked(path string) error {
	for prefix, err := range m.rejects {
		if strings.HasPrefix(path, prefix) {
			return err
		}
	}
	return nil
}

// FailWrites makes every write fail with err until called again with nil.
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Writes reports how many write operations (set or delete, single or inside
// a batch) have been attempted.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailSubscriptions delivers err to every live subscription under prefix and
// ends them.
func (m *MemoryStore) FailSubscriptions(prefix string, err error) {
	m.mu.Lock()
	var targets []*memorySub
	for _, s := range m.subs {
		if !s.stopped && strings.HasPrefix(s.path, prefix) {
			s.stopped = true
			targets = append(targets, s)
		}
	}
	m.mu.Unlock()
	for _, s := range targets {
		s.onError(err)
	}
}

// Subscribers reports the number of live subscriptions on path.
func (m *MemoryStore) Subscribers(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.subs {
		if !s.stopped && s.path == path {
			n++
		}
	}
	return n
}

func (m *MemoryStore) checkWrite(path string) error {
	m.writes++
	if m.failErr != nil {
		return m.failErr
	}
	for _, p := range m.denied {
		if strings.HasPrefix(path, p) {
			return fmt.Errorf("%w: write to %q", ErrPermissionDenied, path)
		}
	}
	return nil
}

func parentOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = copyValue(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = copyValue(vv)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, mm := range t {
			out[i] = copyValue(mm)
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	}
	return v
}

func copyData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return copyValue(data).(map[string]interface{})
}

// stamp stores data the way a document store would hand it back: ints widened,
// slices as []interface{}, ServerTimestamp resolved.
func (m *MemoryStore) stamp(data map[string]interface{}) map[string]interface{} {
	out := copyData(data)
	for k, v := range out {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = m.now().UTC()
		}
	}
	return out
}

func (m *MemoryStore) collectionLocked(path string) []Document {
	var docs []Document
	for p, data := range m.docs {
		if parentOf(p) == path {
			docs = append(docs, Document{ID: p[len(path)+1:], Path: p, Data: copyData(data)})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

// Get retrieves a document.
func (m *MemoryStore) Get(_ context.Context, path string) (*Document, error) {
	if !IsDocumentPath(path) {
		return nil, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return &Document{ID: path[strings.LastIndex(path, "/")+1:], Path: path, Data: copyData(data)}, nil
}

// List returns the documents of a collection ordered by id.
func (m *MemoryStore) List(_ context.Context, path string) ([]Document, error) {
	if !IsCollectionPath(path) {
		return nil, fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectionLocked(path), nil
}

// Where filters a collection by a single field.
func (m *MemoryStore) Where(ctx context.Context, path, field, op string, value interface{}) ([]Document, error) {
	docs, err := m.List(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []Document
	for _, d := range docs {
		v, ok := d.Data[field]
		if !ok {
			continue
		}
		switch op {
		case "==":
			if v == value {
				out = append(out, d)
			}
		case "array-contains":
			if arr, ok := v.([]interface{}); ok {
				for _, e := range arr {
					if e == value {
						out = append(out, d)
						break
					}
				}
			}
		default:
			return nil, fmt.Errorf("unsupported query operator %q", op)
		}
	}
	return out, nil
}

// Subscribe delivers the current collection immediately and then on every change.
func (m *MemoryStore) Subscribe(_ context.Context, path string, onSnapshot SnapshotFunc, onError ErrorFunc) Unsubscribe {
	if !IsCollectionPath(path) {
		onError(fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path))
		return func() {}
	}
	sub := &memorySub{path: path, onSnapshot: onSnapshot, onError: onError}
	m.mu.Lock()
	if err := m.rejectedLocked(path); err != nil {
		m.mu.Unlock()
		onError(err)
		return func() {}
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = sub
	docs := m.collectionLocked(path)
	m.mu.Unlock()

	onSnapshot(docs)
	return m.unsubscribe(id)
}

// SubscribeDoc delivers the current document immediately and then on every change.
func (m *MemoryStore) SubscribeDoc(_ context.Context, path string, onDoc DocFunc, onError ErrorFunc) Unsubscribe {
	if !IsDocumentPath(path) {
		onError(fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path))
		return func() {}
	}
	sub := &memorySub{path: path, doc: true, onDoc: onDoc, onError: onError}
	m.mu.Lock()
	if err := m.rejectedLocked(path); err != nil {
		m.mu.Unlock()
		onError(err)
		return func() {}
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = sub
	doc := m.docLocked(path)
	m.mu.Unlock()

	onDoc(doc)
	return m.unsubscribe(id)
}

func (m *MemoryStore) docLocked(path string) *Document {
	data, ok := m.docs[path]
	if !ok {
		return nil
	}
	return &Document{ID: path[strings.LastIndex(path, "/")+1:], Path: path, Data: copyData(data)}
}

func (m *MemoryStore) unsubscribe(id int) Unsubscribe {
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if s, ok := m.subs[id]; ok {
			s.stopped = true
			delete(m.subs, id)
		}
	}
}

// notify fans out the new state of every touched path. It must be called
// without holding m.mu.
func (m *MemoryStore) notify(touched []string) {
	type delivery struct {
		sub  *memorySub
		docs []Document
		doc  *Document
	}
	var out []delivery

	m.mu.Lock()
	collections := make(map[string]bool)
	docs := make(map[string]bool)
	for _, p := range touched {
		collections[parentOf(p)] = true
		docs[p] = true
	}
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		s := m.subs[id]
		if s.stopped {
			continue
		}
		if s.doc && docs[s.path] {
			out = append(out, delivery{sub: s, doc: m.docLocked(s.path)})
		} else if !s.doc && collections[s.path] {
			out = append(out, delivery{sub: s, docs: m.collectionLocked(s.path)})
		}
	}
	m.mu.Unlock()

	for _, d := range out {
		m.mu.Lock()
		stopped := d.sub.stopped
		m.mu.Unlock()
		if stopped {
			continue
		}
		if d.sub.doc {
			d.sub.onDoc(d.doc)
		} else {
			d.sub.onSnapshot(d.docs)
		}
	}
}

// Upsert writes a document.
func (m *MemoryStore) Upsert(_ context.Context, path string, data map[string]interface{}, opts UpsertOptions) error {
	if !IsDocumentPath(path) {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	m.mu.Lock()
	if err := m.checkWrite(path); err != nil {
		m.mu.Unlock()
		return err
	}
	m.setLocked(path, data, opts.Merge)
	m.mu.Unlock()
	m.notify([]string{path})
	return nil
}

func (m *MemoryStore) setLocked(path string, data map[string]interface{}, merge bool) {
	stamped := m.stamp(data)
	if existing, ok := m.docs[path]; ok && merge {
		for k, v := range stamped {
			existing[k] = v
		}
		return
	}
	m.docs[path] = stamped
}

// Delete removes a document; absent documents are not an error.
func (m *MemoryStore) Delete(_ context.Context, path string) error {
	if !IsDocumentPath(path) {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	m.mu.Lock()
	if err := m.checkWrite(path); err != nil {
		m.mu.Unlock()
		return err
	}
	_, existed := m.docs[path]
	delete(m.docs, path)
	m.mu.Unlock()
	if existed {
		m.notify([]string{path})
	}
	return nil
}

// Batch returns an atomic batch.
func (m *MemoryStore) Batch() Batch {
	return &memoryBatch{store: m}
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

type memoryBatch struct {
	store *MemoryStore
	ops   []batchOp
}

func (b *memoryBatch) Set(path string, data map[string]interface{}) {
	b.ops = append(b.ops, batchOp{path: path, data: data})
}

func (b *memoryBatch) Delete(path string) {
	b.ops = append(b.ops, batchOp{path: path, delete: true})
}

func (b *memoryBatch) Len() int { return len(b.ops) }

// Commit validates every operation first and applies none of them if any fails.
func (b *memoryBatch) Commit(_ context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	m := b.store
	m.mu.Lock()
	for _, op := range b.ops {
		if !IsDocumentPath(op.path) {
			m.mu.Unlock()
			return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, op.path)
		}
		if err := m.checkWrite(op.path); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("failed to commit batch of %d writes: %w", len(b.ops), err)
		}
	}
	touched := make([]string, 0, len(b.ops))
	for _, op := range b.ops {
		if op.delete {
			delete(m.docs, op.path)
		} else {
			m.setLocked(op.path, op.data, false)
		}
		touched = append(touched, op.path)
	}
	m.mu.Unlock()
	m.notify(touched)
	return nil
}
