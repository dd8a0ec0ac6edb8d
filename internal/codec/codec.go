// Package codec converts between models and stored documents. Decoders
// normalize loosely typed fields at the store boundary and fill safe
// defaults, so malformed documents never fail a whole collection.
package codec

import (
	"fmt"
	"strings"

	"github.com/example/pantrysync/pkg/database"
)

// Field names stamped on every scoped write.
const (
	FieldLastModifiedBy = "lastModifiedBy"
	FieldLastModifiedAt = "lastModifiedAt"
)

// stamp adds the write provenance fields.
func stamp(data map[string]interface{}, clientID string) map[string]interface{} {
	if clientID != "" {
		data[FieldLastModifiedBy] = clientID
	}
	data[FieldLastModifiedAt] = database.ServerTimestamp
	return data
}

func malformed(doc database.Document, reason string) error {
	return fmt.Errorf("%w: %s: %s", database.ErrMalformedDocument, doc.Path, reason)
}

// InventoryKey is the document ID of a pantry item: its sanitized, lower
// cased name, so case variants always address the same document.
func InventoryKey(name string) string {
	return strings.ToLower(database.SanitizeID(name))
}
