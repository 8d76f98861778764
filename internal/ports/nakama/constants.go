package nakama

// RPC ids registered with the Nakama runtime.
const (
	RpcSessionGet       = "session_get"
	RpcSessionMove      = "session_move"
	RpcSessionResign    = "session_resign"
	RpcInviteSend       = "invite_send"
	RpcInviteList       = "invite_list"
	RpcInviteRespond    = "invite_respond"
	RpcMatchmakingJoin  = "matchmaking_join"
	RpcMatchmakingLeave = "matchmaking_leave"
	RpcMatchmakingCheck = "matchmaking_check"
)

// Runtime env keys read at module init.
const (
	EnvInviteTTLSec = "duelhall_invite_ttl_sec"
	EnvHandSize     = "duelhall_hand_size"
)

// systemUserID owns shared documents (sessions, queues) in Nakama storage.
const systemUserID = "00000000-0000-0000-0000-000000000000"

// gRPC status codes used with runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codeFailedPrecondition = 9
	codeAborted            = 10
	codeInternal           = 13
	codeUnauthenticated    = 16
)

const storageListPage = 100
