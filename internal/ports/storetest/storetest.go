// Package storetest holds the behavioural contract every ports.DocumentStore
// implementation is tested against.
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"duelhall/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises store against the DocumentStore contract. newStore must
// return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) ports.DocumentStore) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(context.Background(), ports.Ref{Collection: "sessions", Key: "nope"})
		require.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("put and get", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		ref := ports.Ref{Collection: "sessions", Key: "s1"}

		v1, err := store.Put(ctx, ref, json.RawMessage(`{"n":1}`), ports.AnyVersion)
		require.NoError(t, err)
		require.NotEmpty(t, v1)

		doc, err := store.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, v1, doc.Version)
		assert.JSONEq(t, `{"n":1}`, string(doc.Value))
		assert.Equal(t, ref, doc.Ref)

		v2, err := store.Put(ctx, ref, json.RawMessage(`{"n":2}`), ports.AnyVersion)
		require.NoError(t, err)
		assert.NotEqual(t, v1, v2)
	})

	t.Run("create only", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		ref := ports.Ref{Collection: "invites", Owner: "bob", Key: "i1"}

		_, err := store.Put(ctx, ref, json.RawMessage(`{}`), ports.CreateOnly)
		require.NoError(t, err)
		_, err = store.Put(ctx, ref, json.RawMessage(`{}`), ports.CreateOnly)
		require.ErrorIs(t, err, ports.ErrVersionConflict)
	})

	t.Run("compare and swap", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		ref := ports.Ref{Collection: "sessions", Key: "s1"}

		v1, err := store.Put(ctx, ref, json.RawMessage(`{"n":1}`), ports.CreateOnly)
		require.NoError(t, err)
		v2, err := store.Put(ctx, ref, json.RawMessage(`{"n":2}`), v1)
		require.NoError(t, err)

		_, err = store.Put(ctx, ref, json.RawMessage(`{"n":3}`), v1)
		require.ErrorIs(t, err, ports.ErrVersionConflict)

		doc, err := store.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, v2, doc.Version)
		assert.JSONEq(t, `{"n":2}`, string(doc.Value))

		_, err = store.Put(ctx, ports.Ref{Collection: "sessions", Key: "absent"}, json.RawMessage(`{}`), v1)
		require.ErrorIs(t, err, ports.ErrVersionConflict)
	})

	t.Run("owners are separate", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		_, err := store.Put(ctx, ports.Ref{Collection: "invites", Owner: "bob", Key: "i1"}, json.RawMessage(`{"to":"bob"}`), ports.AnyVersion)
		require.NoError(t, err)

		_, err = store.Get(ctx, ports.Ref{Collection: "invites", Owner: "carol", Key: "i1"})
		require.ErrorIs(t, err, ports.ErrNotFound)
		_, err = store.Get(ctx, ports.Ref{Collection: "invites", Key: "i1"})
		require.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		ref := ports.Ref{Collection: "matchmaking.maumau", Key: "alice"}

		require.NoError(t, store.Delete(ctx, ref, ports.AnyVersion), "unconditional delete of a missing key is a no-op")
		require.ErrorIs(t, store.Delete(ctx, ref, "1"), ports.ErrNotFound)

		v1, err := store.Put(ctx, ref, json.RawMessage(`{}`), ports.AnyVersion)
		require.NoError(t, err)
		_, err = store.Put(ctx, ref, json.RawMessage(`{"again":true}`), ports.AnyVersion)
		require.NoError(t, err)
		require.ErrorIs(t, store.Delete(ctx, ref, v1), ports.ErrVersionConflict)

		doc, err := store.Get(ctx, ref)
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, ref, doc.Version))
		_, err = store.Get(ctx, ref)
		require.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		for _, key := range []string{"c", "a", "b"} {
			_, err := store.Put(ctx, ports.Ref{Collection: "matchmaking.maumau", Key: key}, json.RawMessage(`{"k":"`+key+`"}`), ports.AnyVersion)
			require.NoError(t, err)
		}
		_, err := store.Put(ctx, ports.Ref{Collection: "matchmaking.chess", Key: "z"}, json.RawMessage(`{}`), ports.AnyVersion)
		require.NoError(t, err)
		_, err = store.Put(ctx, ports.Ref{Collection: "matchmaking.maumau", Owner: "x", Key: "y"}, json.RawMessage(`{}`), ports.AnyVersion)
		require.NoError(t, err)

		docs, err := store.List(ctx, "matchmaking.maumau", "")
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "a", docs[0].Key)
		assert.Equal(t, "b", docs[1].Key)
		assert.Equal(t, "c", docs[2].Key)
		assert.NotEmpty(t, docs[0].Version)

		empty, err := store.List(ctx, "nothing", "")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("one conditional delete wins", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		ref := ports.Ref{Collection: "matchmaking.maumau", Key: "carol"}
		version, err := store.Put(ctx, ref, json.RawMessage(`{}`), ports.AnyVersion)
		require.NoError(t, err)

		const claimants = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < claimants; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := store.Delete(ctx, ref, version); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}
