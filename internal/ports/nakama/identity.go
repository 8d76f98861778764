package nakama

import (
	"context"

	"duelhall/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// runtimeIdentity reads the caller from the runtime context of an RPC.
type runtimeIdentity struct{}

func (runtimeIdentity) Identity(ctx context.Context) (string, error) {
	if uid, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string); ok && uid != "" {
		return uid, nil
	}
	return "", ports.ErrNotAuthenticated
}

var _ ports.IdentityProvider = runtimeIdentity{}
