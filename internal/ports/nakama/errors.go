package nakama

import (
	"errors"

	"duelhall/internal/app"
	"duelhall/internal/app/invite"
	"duelhall/internal/app/matchmaking"
	"duelhall/internal/domain"
	"duelhall/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

var errInvalidPayload = errors.New("invalid payload")

// toRuntimeError maps app and store errors onto gRPC coded runtime errors.
// Unexpected errors are logged and reported as INTERNAL.
func toRuntimeError(logger runtime.Logger, op string, err error) error {
	switch {
	case errors.Is(err, ports.ErrNotAuthenticated):
		return runtime.NewError("authentication required", codeUnauthenticated)
	case errors.Is(err, errInvalidPayload), errors.Is(err, domain.ErrUnknownGameType):
		return runtime.NewError(err.Error(), codeInvalidArgument)
	case errors.Is(err, app.ErrSessionNotFound), errors.Is(err, invite.ErrInviteNotFound), errors.Is(err, ports.ErrNotFound):
		return runtime.NewError(err.Error(), codeNotFound)
	case errors.Is(err, app.ErrRaceLost), errors.Is(err, ports.ErrVersionConflict), errors.Is(err, matchmaking.ErrClaimLost):
		return runtime.NewError(err.Error(), codeAborted)
	case errors.Is(err, app.ErrNotParticipant),
		errors.Is(err, app.ErrSessionNotWaiting),
		errors.Is(err, app.ErrSessionNotPlaying),
		errors.Is(err, app.ErrSelfJoin),
		errors.Is(err, invite.ErrInviteClosed),
		errors.Is(err, invite.ErrInviteExpired),
		errors.Is(err, invite.ErrSelfInvite),
		errors.Is(err, invite.ErrAlreadyPending),
		errors.Is(err, invite.ErrNotSessionHost):
		return runtime.NewError(err.Error(), codeFailedPrecondition)
	}
	if rej, ok := domain.AsRejection(err); ok {
		return runtime.NewError(rej.Error(), codeFailedPrecondition)
	}
	logger.Error("%s: %v", op, err)
	return runtime.NewError("internal error", codeInternal)
}
