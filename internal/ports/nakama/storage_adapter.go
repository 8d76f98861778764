package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"duelhall/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// storageEngine is the slice of runtime.NakamaModule the storage adapter uses.
type storageEngine interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error)
	StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error
	StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error)
}

// NakamaStorageAdapter implements ports.DocumentStore over Nakama storage.
// Documents are written with server-only permissions; clients reach them
// through RPCs.
type NakamaStorageAdapter struct {
	nk storageEngine
}

// NewNakamaStorageAdapter creates a new storage adapter.
func NewNakamaStorageAdapter(nk storageEngine) *NakamaStorageAdapter {
	return &NakamaStorageAdapter{nk: nk}
}

func ownerID(owner string) string {
	if owner == "" {
		return systemUserID
	}
	return owner
}

func ownerRef(userID string) string {
	if userID == systemUserID {
		return ""
	}
	return userID
}

func toDocument(obj *api.StorageObject) *ports.Document {
	doc := &ports.Document{
		Ref:     ports.Ref{Collection: obj.GetCollection(), Owner: ownerRef(obj.GetUserId()), Key: obj.GetKey()},
		Value:   json.RawMessage(obj.GetValue()),
		Version: obj.GetVersion(),
	}
	if ts := obj.GetUpdateTime(); ts != nil {
		doc.UpdatedAt = ts.AsTime()
	}
	return doc
}

func (a *NakamaStorageAdapter) Get(ctx context.Context, ref ports.Ref) (*ports.Document, error) {
	objects, err := a.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: ref.Collection,
		Key:        ref.Key,
		UserID:     ownerID(ref.Owner),
	}})
	if err != nil {
		return nil, fmt.Errorf("storage read %s/%s: %w", ref.Collection, ref.Key, err)
	}
	if len(objects) == 0 {
		return nil, ports.ErrNotFound
	}
	return toDocument(objects[0]), nil
}

func (a *NakamaStorageAdapter) Put(ctx context.Context, ref ports.Ref, value json.RawMessage, version string) (string, error) {
	acks, err := a.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      ref.Collection,
		Key:             ref.Key,
		UserID:          ownerID(ref.Owner),
		Value:           string(value),
		Version:         version,
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}})
	if err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return "", ports.ErrVersionConflict
		}
		return "", fmt.Errorf("storage write %s/%s: %w", ref.Collection, ref.Key, err)
	}
	if len(acks) == 0 {
		return "", fmt.Errorf("storage write %s/%s: no ack", ref.Collection, ref.Key)
	}
	return acks[0].GetVersion(), nil
}

// Delete removes ref. Nakama rejects a versioned delete both on a version
// mismatch and on a missing object; a follow-up read tells them apart.
func (a *NakamaStorageAdapter) Delete(ctx context.Context, ref ports.Ref, version string) error {
	err := a.nk.StorageDelete(ctx, []*runtime.StorageDelete{{
		Collection: ref.Collection,
		Key:        ref.Key,
		UserID:     ownerID(ref.Owner),
		Version:    version,
	}})
	if err == nil {
		return nil
	}
	if errors.Is(err, runtime.ErrStorageRejectedVersion) {
		if _, getErr := a.Get(ctx, ref); errors.Is(getErr, ports.ErrNotFound) {
			return ports.ErrNotFound
		}
		return ports.ErrVersionConflict
	}
	return fmt.Errorf("storage delete %s/%s: %w", ref.Collection, ref.Key, err)
}

func (a *NakamaStorageAdapter) List(ctx context.Context, collection, owner string) ([]*ports.Document, error) {
	var (
		out    []*ports.Document
		cursor string
	)
	for {
		objects, next, err := a.nk.StorageList(ctx, "", ownerID(owner), collection, storageListPage, cursor)
		if err != nil {
			return nil, fmt.Errorf("storage list %s: %w", collection, err)
		}
		for _, obj := range objects {
			out = append(out, toDocument(obj))
		}
		if next == "" || len(objects) == 0 {
			break
		}
		cursor = next
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

var _ ports.DocumentStore = (*NakamaStorageAdapter)(nil)
