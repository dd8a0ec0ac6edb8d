package database

import (
	"context"
	"errors"
	"strings"
)

// Errors returned by Store implementations. Implementations translate their
// native error codes into these so callers can use errors.Is.
var (
	// ErrNotFound is returned by Get when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrPermissionDenied is returned when the acting identity may not read or
	// write the path, typically while a membership change is still propagating.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnavailable covers network failures and store-side unavailability.
	ErrUnavailable = errors.New("store unavailable")
	// ErrMalformedDocument is returned by decoders when a document lacks the
	// fields required to build a model.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrInvalidPath is returned for paths that do not address a document or
	// collection (odd/even segment mismatch, empty segments).
	ErrInvalidPath = errors.New("invalid path")
)

// serverTimestamp is the type of the ServerTimestamp sentinel.
type serverTimestamp struct{}

// ServerTimestamp may be used as a top-level field value in any write. The
// store replaces it with its own commit time.
var ServerTimestamp = serverTimestamp{}

// Document is a single stored document.
type Document struct {
	// ID is the last path segment.
	ID string
	// Path is the full slash separated path of the document.
	Path string
	Data map[string]interface{}
}

// UpsertOptions controls single document writes.
type UpsertOptions struct {
	// Merge keeps fields already stored that are absent from the written data.
	Merge bool
}

// Unsubscribe cancels a subscription. After it returns no further callbacks
// are delivered for that subscription. It is safe to call more than once.
type Unsubscribe func()

// SnapshotFunc receives the full current content of a collection.
type SnapshotFunc func(docs []Document)

// DocFunc receives the current content of a single document, or nil when the
// document does not exist.
type DocFunc func(doc *Document)

// ErrorFunc receives a terminal subscription error. No callbacks follow it.
type ErrorFunc func(err error)

// Batch collects writes that are committed atomically: all or nothing.
type Batch interface {
	Set(path string, data map[string]interface{})
	Delete(path string)
	// Len reports the number of queued operations.
	Len() int
	Commit(ctx context.Context) error
}

// Store is the remote document store. Paths are hierarchical and slash
// separated: collections have an odd number of segments
// (users/{uid}/shoppingList), documents an even number
// (users/{uid}/shoppingList/{id}).
type Store interface {
	Get(ctx context.Context, path string) (*Document, error)
	// List returns the documents of a collection. Callers must not rely on the
	// order beyond it being stable enough to diff.
	List(ctx context.Context, path string) ([]Document, error)
	// Where lists documents of a collection matching field <op> value. The
	// supported ops are "==" and "array-contains".
	Where(ctx context.Context, path, field, op string, value interface{}) ([]Document, error)
	// Subscribe pushes a full snapshot of the collection on every change, the
	// first one shortly after subscribing.
	Subscribe(ctx context.Context, path string, onSnapshot SnapshotFunc, onError ErrorFunc) Unsubscribe
	// SubscribeDoc pushes the document on every change.
	SubscribeDoc(ctx context.Context, path string, onDoc DocFunc, onError ErrorFunc) Unsubscribe
	Upsert(ctx context.Context, path string, data map[string]interface{}, opts UpsertOptions) error
	// Delete removes a document. Deleting an absent document succeeds.
	Delete(ctx context.Context, path string) error
	Batch() Batch
	Close() error
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// splitPath validates a path and returns its segments.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for _, s := range segs {
		if s == "" {
			return nil, ErrInvalidPath
		}
	}
	return segs, nil
}

// IsCollectionPath reports whether path addresses a collection.
func IsCollectionPath(path string) bool {
	segs, err := splitPath(path)
	return err == nil && len(segs)%2 == 1
}

// IsDocumentPath reports whether path addresses a document.
func IsDocumentPath(path string) bool {
	segs, err := splitPath(path)
	return err == nil && len(segs)%2 == 0
}

// SanitizeID turns an arbitrary string into a usable document id.
func SanitizeID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "/", "-")
	if s == "." || s == ".." {
		s = "_" + s
	}
	return s
}
