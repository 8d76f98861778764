package nakama

import (
	"context"

	"duelhall/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
)

type accountEngine interface {
	AccountGetId(ctx context.Context, userID string) (*api.Account, error)
	AccountUpdateId(ctx context.Context, userID, username string, metadata map[string]interface{}, displayName, timezone, location, langTag, avatarUrl string) error
}

// NakamaAccountAdapter implements ports.AccountPort using Nakama's account API.
type NakamaAccountAdapter struct {
	nk accountEngine
}

// NewNakamaAccountAdapter creates a new account adapter.
func NewNakamaAccountAdapter(nk accountEngine) *NakamaAccountAdapter {
	return &NakamaAccountAdapter{nk: nk}
}

// UpdateProfile sets the username and display name of userID.
func (a *NakamaAccountAdapter) UpdateProfile(ctx context.Context, userID, username, displayName string) error {
	return a.nk.AccountUpdateId(ctx, userID, username, nil, displayName, "", "", "", "")
}

// DisplayName returns the display name of userID, falling back to the
// username. Lookup failures yield "".
func (a *NakamaAccountAdapter) DisplayName(ctx context.Context, userID string) string {
	account, err := a.nk.AccountGetId(ctx, userID)
	if err != nil {
		return ""
	}
	if name := account.GetUser().GetDisplayName(); name != "" {
		return name
	}
	return account.GetUser().GetUsername()
}

var _ ports.AccountPort = (*NakamaAccountAdapter)(nil)
