package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/app/matchmaking"
	"duelhall/internal/app/onboarding"
	"duelhall/internal/auth"
	"duelhall/internal/platform/logging"
	"duelhall/internal/ports"
	"duelhall/internal/ports/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type harness struct {
	server *Server
	store  *memory.Store
	issuer *auth.Issuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	logger := logging.New("error", io.Discard)
	sessions := app.NewService(store, ports.SystemClock{}, rand.New(rand.NewSource(5)))
	issuer := auth.NewIssuer(testSecret, time.Hour)
	onboard := onboarding.NewService(nil, store, nil, rand.New(rand.NewSource(6)))
	return &harness{
		server: NewServer(store, issuer, matchmaking.NewAuthority(sessions, logger), onboard, logger),
		store:  store,
		issuer: issuer,
	}
}

func (h *harness) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := h.issuer.Issue(userID, userID)
	require.NoError(t, err)
	return token
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.server.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestDeviceAuth(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/v1/auth/device", "", DeviceAuthRequest{DeviceID: "device-0123456789", Username: "ada"})
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[DeviceAuthResponse](t, w)
	assert.True(t, first.Created)
	assert.Equal(t, "ada", first.Username)
	assert.NotEmpty(t, first.DisplayName)

	claims, err := h.issuer.Verify(first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, claims.UserID)

	w = h.do(t, http.MethodPost, "/v1/auth/device", "", DeviceAuthRequest{DeviceID: "device-0123456789"})
	require.Equal(t, http.StatusOK, w.Code)
	again := decode[DeviceAuthResponse](t, w)
	assert.False(t, again.Created)
	assert.Equal(t, first.UserID, again.UserID)
	assert.Equal(t, first.DisplayName, again.DisplayName)
}

func TestDeviceAuth_Rejects(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name string
		body any
	}{
		{"short device id", DeviceAuthRequest{DeviceID: "short"}},
		{"empty body", nil},
		{"malformed json", "{not json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/v1/auth/device", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, w).Error)
		})
	}
}

func TestStoreRequiresToken(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", func() string {
			tok, _ := auth.NewIssuer("other", time.Hour).Issue("alice", "alice")
			return tok
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := h.do(t, http.MethodGet, "/v1/store/sessions/s1", tc.token, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice")

	w := h.do(t, http.MethodPut, "/v1/store/sessions/s1?version=*", alice, `{"n":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	v1 := decode[PutResponse](t, w).Version
	require.NotEmpty(t, v1)

	w = h.do(t, http.MethodPut, "/v1/store/sessions/s1?version=*", alice, `{"n":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, http.MethodGet, "/v1/store/sessions/s1", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode[ports.Document](t, w)
	assert.Equal(t, v1, doc.Version)
	assert.JSONEq(t, `{"n":1}`, string(doc.Value))

	w = h.do(t, http.MethodGet, "/v1/store/sessions", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[ListResponse](t, w).Documents, 1)

	w = h.do(t, http.MethodDelete, "/v1/store/sessions/s1?version="+v1, alice, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.do(t, http.MethodGet, "/v1/store/sessions/s1", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoreRejectsInvalidJSON(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPut, "/v1/store/sessions/s1", h.token(t, "alice"), `{"n":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInboxesOfOthersLookEmpty(t *testing.T) {
	h := newHarness(t)
	alice, carol := h.token(t, "alice"), h.token(t, "carol")

	w := h.do(t, http.MethodPut, "/v1/store/invites/i1?owner=bob", alice, `{"from":"alice"}`)
	require.Equal(t, http.StatusOK, w.Code, "anyone can deliver into an inbox")

	w = h.do(t, http.MethodGet, "/v1/store/invites/i1?owner=bob", carol, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = h.do(t, http.MethodGet, "/v1/store/invites?owner=bob", carol, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[ListResponse](t, w).Documents)
	w = h.do(t, http.MethodDelete, "/v1/store/invites/i1?owner=bob", carol, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	bob := h.token(t, "bob")
	w = h.do(t, http.MethodGet, "/v1/store/invites?owner=bob", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[ListResponse](t, w).Documents, 1, "a foreign delete must not remove the invite")
}

func TestMatchmaking(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.token(t, "alice"), h.token(t, "bob")

	w := h.do(t, http.MethodPost, "/v1/matchmaking/maumau", alice, EnqueueRequest{DisplayName: "Ada"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[MatchmakingResponse](t, w).Matched)

	w = h.do(t, http.MethodGet, "/v1/matchmaking/signal", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[MatchmakingResponse](t, w).Matched)

	w = h.do(t, http.MethodPost, "/v1/matchmaking/maumau", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	bobResp := decode[MatchmakingResponse](t, w)
	require.True(t, bobResp.Matched)
	assert.Equal(t, "alice", bobResp.Signal.Opponent)
	assert.Equal(t, "Ada", bobResp.Signal.OpponentName)

	w = h.do(t, http.MethodGet, "/v1/matchmaking/signal", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	aliceResp := decode[MatchmakingResponse](t, w)
	require.True(t, aliceResp.Matched)
	assert.Equal(t, bobResp.Signal.SessionID, aliceResp.Signal.SessionID)
	assert.Equal(t, "bob", aliceResp.Signal.Opponent)

	w = h.do(t, http.MethodGet, "/v1/matchmaking/signal", alice, nil)
	assert.False(t, decode[MatchmakingResponse](t, w).Matched, "signals are consumed once")
}

func TestMatchmakingCancelAndBadMode(t *testing.T) {
	h := newHarness(t)
	alice := h.token(t, "alice")

	w := h.do(t, http.MethodPost, "/v1/matchmaking/poker", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h.do(t, http.MethodPost, "/v1/matchmaking/chess", alice, nil)
	w = h.do(t, http.MethodDelete, "/v1/matchmaking/chess", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[MatchmakingResponse](t, w).Removed)

	w = h.do(t, http.MethodDelete, "/v1/matchmaking/chess", alice, nil)
	assert.False(t, decode[MatchmakingResponse](t, w).Removed)
}

func TestMatchmakingDisabledWithoutAuthority(t *testing.T) {
	store := memory.NewStore()
	server := NewServer(store, auth.NewIssuer(testSecret, time.Hour), nil, nil, nil)
	token, err := auth.NewIssuer(testSecret, time.Hour).Issue("alice", "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/matchmaking/maumau", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
