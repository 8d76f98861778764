package nakama

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type objectKey struct {
	collection, userID, key string
}

// fakeNakama mimics the storage engine's version checks and the account API.
type fakeNakama struct {
	mu       sync.Mutex
	seq      int
	objects  map[objectKey]*api.StorageObject
	accounts map[string]*api.Account
	updates  []string
	listErr  error
}

func newFakeNakama() *fakeNakama {
	return &fakeNakama{
		objects:  make(map[objectKey]*api.StorageObject),
		accounts: make(map[string]*api.Account),
	}
}

func (f *fakeNakama) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*api.StorageObject
	for _, r := range reads {
		if obj, ok := f.objects[objectKey{r.Collection, r.UserID, r.Key}]; ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (f *fakeNakama) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		k := objectKey{w.Collection, w.UserID, w.Key}
		cur, exists := f.objects[k]
		switch {
		case w.Version == "":
		case w.Version == "*":
			if exists {
				return nil, runtime.ErrStorageRejectedVersion
			}
		default:
			if !exists || cur.Version != w.Version {
				return nil, runtime.ErrStorageRejectedVersion
			}
		}
		f.seq++
		version := "v" + strconv.Itoa(f.seq)
		f.objects[k] = &api.StorageObject{
			Collection: w.Collection,
			Key:        w.Key,
			UserId:     w.UserID,
			Value:      w.Value,
			Version:    version,
			UpdateTime: timestamppb.New(time.Date(2026, 5, 4, 18, 0, f.seq, 0, time.UTC)),
		}
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, UserId: w.UserID, Version: version})
	}
	return acks, nil
}

func (f *fakeNakama) StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range deletes {
		k := objectKey{d.Collection, d.UserID, d.Key}
		cur, exists := f.objects[k]
		if d.Version != "" && (!exists || cur.Version != d.Version) {
			return runtime.ErrStorageRejectedVersion
		}
		delete(f.objects, k)
	}
	return nil
}

// StorageList pages two objects at a time to exercise the cursor loop.
func (f *fakeNakama) StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, "", f.listErr
	}
	var all []*api.StorageObject
	for k, obj := range f.objects {
		if k.collection == collection && k.userID == userID {
			all = append(all, obj)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Key > all[j].Key })

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", errors.New("bad cursor")
		}
		start = n
	}
	end := start + 2
	if end >= len(all) {
		return all[start:], "", nil
	}
	return all[start:end], strconv.Itoa(end), nil
}

func (f *fakeNakama) AccountGetId(ctx context.Context, userID string) (*api.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc, ok := f.accounts[userID]; ok {
		return acc, nil
	}
	return nil, errors.New("account not found")
}

func (f *fakeNakama) AccountUpdateId(ctx context.Context, userID, username string, metadata map[string]interface{}, displayName, timezone, location, langTag, avatarUrl string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, userID+":"+displayName)
	f.accounts[userID] = &api.Account{User: &api.User{Id: userID, Username: username, DisplayName: displayName}}
	return nil
}

// fakeInitializer records registrations; the embedded interface panics on
// anything else.
type fakeInitializer struct {
	runtime.Initializer
	rpcs      map[string]bool
	afterAuth bool
}

func (f *fakeInitializer) RegisterRpc(id string, fn func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)) error {
	if f.rpcs == nil {
		f.rpcs = make(map[string]bool)
	}
	f.rpcs[id] = true
	return nil
}

func (f *fakeInitializer) RegisterAfterAuthenticateDevice(fn func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, out *api.Session, in *api.AuthenticateDeviceRequest) error) error {
	f.afterAuth = true
	return nil
}
