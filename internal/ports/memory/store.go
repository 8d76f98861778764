// Package memory provides an in-process DocumentStore.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"duelhall/internal/ports"
)

type entry struct {
	value     json.RawMessage
	version   string
	updatedAt time.Time
}

// Store keeps versioned documents in a map guarded by a mutex.
type Store struct {
	mu   sync.Mutex
	docs map[ports.Ref]entry
	seq  uint64
	now  func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		docs: make(map[ports.Ref]entry),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Get(ctx context.Context, ref ports.Ref) (*ports.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.docs[ref]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return toDocument(ref, e), nil
}

func (s *Store) Put(ctx context.Context, ref ports.Ref, value json.RawMessage, version string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.docs[ref]
	switch {
	case version == ports.AnyVersion:
	case version == ports.CreateOnly:
		if exists {
			return "", ports.ErrVersionConflict
		}
	default:
		if !exists || cur.version != version {
			return "", ports.ErrVersionConflict
		}
	}
	s.seq++
	next := entry{
		value:     append(json.RawMessage(nil), value...),
		version:   strconv.FormatUint(s.seq, 10),
		updatedAt: s.now(),
	}
	s.docs[ref] = next
	return next.version, nil
}

func (s *Store) Delete(ctx context.Context, ref ports.Ref, version string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.docs[ref]
	if version != ports.AnyVersion {
		if !exists {
			return ports.ErrNotFound
		}
		if cur.version != version {
			return ports.ErrVersionConflict
		}
	}
	delete(s.docs, ref)
	return nil
}

func (s *Store) List(ctx context.Context, collection, owner string) ([]*ports.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ports.Document
	for ref, e := range s.docs {
		if ref.Collection == collection && ref.Owner == owner {
			out = append(out, toDocument(ref, e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func toDocument(ref ports.Ref, e entry) *ports.Document {
	return &ports.Document{
		Ref:       ref,
		Value:     append(json.RawMessage(nil), e.value...),
		Version:   e.version,
		UpdatedAt: e.updatedAt,
	}
}

var _ ports.DocumentStore = (*Store)(nil)
