package database

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on top of Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreStoreConfig contains options for creating a FirestoreStore from scratch.
type NewFirestoreStoreConfig struct {
	ProjectID       string
	CredentialsFile string // Path to the service account key JSON file. If empty, ADC will be used.
}

// NewFirestoreStore creates a Firestore client and wraps it.
func NewFirestoreStore(ctx context.Context, cfg NewFirestoreStoreConfig, logger *zap.Logger) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return NewFirestoreStoreFromClient(client, logger), nil
}

// NewFirestoreStoreFromClient wraps an already initialized client, e.g. one
// obtained from the Firebase Admin SDK.
func NewFirestoreStoreFromClient(client *firestore.Client, logger *zap.Logger) *FirestoreStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirestoreStore{client: client, logger: logger.Named("firestore")}
}

// translateError maps gRPC status codes onto the package's sentinel errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (s *FirestoreStore) doc(path string) (*firestore.DocumentRef, error) {
	if !IsDocumentPath(path) {
		return nil, fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	ref := s.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return ref, nil
}

func (s *FirestoreStore) collection(path string) (*firestore.CollectionRef, error) {
	if !IsCollectionPath(path) {
		return nil, fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	ref := s.client.Collection(path)
	if ref == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return ref, nil
}

// toFirestoreData replaces the ServerTimestamp sentinel with Firestore's own.
func toFirestoreData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = firestore.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}

// Get retrieves a single document.
func (s *FirestoreStore) Get(ctx context.Context, path string) (*Document, error) {
	ref, err := s.doc(path)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get document %q: %w", path, translateError(err))
	}
	return &Document{ID: ref.ID, Path: path, Data: snap.Data()}, nil
}

// List returns all documents of a collection.
func (s *FirestoreStore) List(ctx context.Context, path string) ([]Document, error) {
	ref, err := s.collection(path)
	if err != nil {
		return nil, err
	}
	return s.drain(path, ref.Documents(ctx))
}

// Where runs a single-field query against a collection.
func (s *FirestoreStore) Where(ctx context.Context, path, field, op string, value interface{}) ([]Document, error) {
	ref, err := s.collection(path)
	if err != nil {
		return nil, err
	}
	if op != "==" && op != "array-contains" {
		return nil, fmt.Errorf("unsupported query operator %q", op)
	}
	return s.drain(path, ref.Where(field, op, value).Documents(ctx))
}

func (s *FirestoreStore) drain(path string, iter *firestore.DocumentIterator) ([]Document, error) {
	defer iter.Stop()
	var docs []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate collection %q: %w", path, translateError(err))
		}
		docs = append(docs, Document{ID: snap.Ref.ID, Path: Join(path, snap.Ref.ID), Data: snap.Data()})
	}
	return docs, nil
}

// Subscribe listens to a collection with Firestore's realtime snapshots. The
// listener runs in its own goroutine until the returned Unsubscribe is called
// or the stream fails.
func (s *FirestoreStore) Subscribe(ctx context.Context, path string, onSnapshot SnapshotFunc, onError ErrorFunc) Unsubscribe {
	ref, err := s.collection(path)
	if err != nil {
		onError(err)
		return func() {}
	}
	listenCtx, cancel := context.WithCancel(ctx)
	it := ref.Snapshots(listenCtx)
	var stopped atomic.Bool

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if stopped.Load() {
				return
			}
			if err != nil {
				if status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) || err == iterator.Done {
					return
				}
				s.logger.Warn("Collection listener failed", zap.String("path", path), zap.Error(err))
				onError(fmt.Errorf("listener on %q: %w", path, translateError(err)))
				return
			}
			snaps, err := snap.Documents.GetAll()
			if err != nil {
				onError(fmt.Errorf("failed to read snapshot of %q: %w", path, translateError(err)))
				return
			}
			docs := make([]Document, 0, len(snaps))
			for _, d := range snaps {
				docs = append(docs, Document{ID: d.Ref.ID, Path: Join(path, d.Ref.ID), Data: d.Data()})
			}
			if stopped.Load() {
				return
			}
			onSnapshot(docs)
		}
	}()

	return func() {
		if stopped.Swap(true) {
			return
		}
		cancel()
	}
}

// SubscribeDoc listens to a single document.
func (s *FirestoreStore) SubscribeDoc(ctx context.Context, path string, onDoc DocFunc, onError ErrorFunc) Unsubscribe {
	ref, err := s.doc(path)
	if err != nil {
		onError(err)
		return func() {}
	}
	listenCtx, cancel := context.WithCancel(ctx)
	it := ref.Snapshots(listenCtx)
	var stopped atomic.Bool

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if stopped.Load() {
				return
			}
			if err != nil {
				if status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) {
					return
				}
				s.logger.Warn("Document listener failed", zap.String("path", path), zap.Error(err))
				onError(fmt.Errorf("listener on %q: %w", path, translateError(err)))
				return
			}
			if !snap.Exists() {
				onDoc(nil)
				continue
			}
			onDoc(&Document{ID: ref.ID, Path: path, Data: snap.Data()})
		}
	}()

	return func() {
		if stopped.Swap(true) {
			return
		}
		cancel()
	}
}

// Upsert writes a single document, optionally merging with stored fields.
func (s *FirestoreStore) Upsert(ctx context.Context, path string, data map[string]interface{}, opts UpsertOptions) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if opts.Merge {
		_, err = ref.Set(ctx, toFirestoreData(data), firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, toFirestoreData(data))
	}
	if err != nil {
		return fmt.Errorf("failed to write document %q: %w", path, translateError(err))
	}
	return nil
}

// Delete removes a document. NotFound is treated as success.
func (s *FirestoreStore) Delete(ctx context.Context, path string) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("failed to delete document %q: %w", path, translateError(err))
	}
	return nil
}

// Batch returns a batch committed inside a single Firestore transaction.
func (s *FirestoreStore) Batch() Batch {
	return &firestoreBatch{store: s}
}

// Close closes the Firestore client.
func (s *FirestoreStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

type batchOp struct {
	path   string
	data   map[string]interface{}
	delete bool
}

type firestoreBatch struct {
	store *FirestoreStore
	ops   []batchOp
}

func (b *firestoreBatch) Set(path string, data map[string]interface{}) {
	b.ops = append(b.ops, batchOp{path: path, data: data})
}

func (b *firestoreBatch) Delete(path string) {
	b.ops = append(b.ops, batchOp{path: path, delete: true})
}

func (b *firestoreBatch) Len() int { return len(b.ops) }

// Commit applies the queued writes atomically. Firestore limits a
// transaction to 500 writes; a seven day meal plan or a household shopping
// list stays far below that.
func (b *firestoreBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	refs := make([]*firestore.DocumentRef, len(b.ops))
	for i, op := range b.ops {
		ref, err := b.store.doc(op.path)
		if err != nil {
			return err
		}
		refs[i] = ref
	}
	err := b.store.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for i, op := range b.ops {
			if op.delete {
				if err := tx.Delete(refs[i]); err != nil {
					return err
				}
				continue
			}
			if err := tx.Set(refs[i], toFirestoreData(op.data)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit batch of %d writes: %w", len(b.ops), translateError(err))
	}
	return nil
}
