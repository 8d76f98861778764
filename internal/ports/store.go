package ports

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no document exists under a Ref.
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict is returned when a conditional write or delete names
	// a version that is no longer current.
	ErrVersionConflict = errors.New("document version conflict")
	// ErrNotAuthenticated is returned before any I/O when the caller has no identity.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Version preconditions accepted by DocumentStore.Put.
const (
	// AnyVersion overwrites unconditionally.
	AnyVersion = ""
	// CreateOnly fails with ErrVersionConflict if the document exists.
	CreateOnly = "*"
)

// Ref addresses one document. Owner is empty for shared records and holds the
// addressee's identity for inbox records.
type Ref struct {
	Collection string `json:"collection"`
	Owner      string `json:"owner,omitempty"`
	Key        string `json:"key"`
}

// Document is a stored JSON value together with the version it was written at.
type Document struct {
	Ref
	Value     json.RawMessage `json:"value"`
	Version   string          `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DocumentStore is the shared keyed record store every component coordinates
// through. Every successful write produces a new version.
type DocumentStore interface {
	// Get returns the document at ref or ErrNotFound.
	Get(ctx context.Context, ref Ref) (*Document, error)
	// Put writes value at ref. version is AnyVersion, CreateOnly, or the
	// version previously read; a mismatch returns ErrVersionConflict.
	// Returns the new version.
	Put(ctx context.Context, ref Ref, value json.RawMessage, version string) (string, error)
	// Delete removes the document at ref. An empty version deletes
	// unconditionally and treats a missing document as success; otherwise a
	// missing document is ErrNotFound and a changed one ErrVersionConflict.
	Delete(ctx context.Context, ref Ref, version string) error
	// List returns every document of collection under owner, ordered by key.
	List(ctx context.Context, collection, owner string) ([]*Document, error)
}

// GetJSON reads ref and decodes it into out, returning the version read.
func GetJSON(ctx context.Context, store DocumentStore, ref Ref, out any) (string, error) {
	doc, err := store.Get(ctx, ref)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(doc.Value, out); err != nil {
		return "", err
	}
	return doc.Version, nil
}

// PutJSON encodes value and writes it with the given precondition.
func PutJSON(ctx context.Context, store DocumentStore, ref Ref, value any, version string) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return store.Put(ctx, ref, raw, version)
}
