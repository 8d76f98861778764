package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"duelhall/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

type rpcFunc = func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

// RegisterRPCs registers the session, invite and matchmaking RPCs.
func (m *Module) RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]rpcFunc{
		RpcSessionGet:       m.rpcSessionGet,
		RpcSessionMove:      m.rpcSessionMove,
		RpcSessionResign:    m.rpcSessionResign,
		RpcInviteSend:       m.rpcInviteSend,
		RpcInviteList:       m.rpcInviteList,
		RpcInviteRespond:    m.rpcInviteRespond,
		RpcMatchmakingJoin:  m.rpcMatchmakingJoin,
		RpcMatchmakingLeave: m.rpcMatchmakingLeave,
		RpcMatchmakingCheck: m.rpcMatchmakingCheck,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return fmt.Errorf("register rpc %s: %w", id, err)
		}
	}
	return nil
}

func decodePayload(payload string, out any) error {
	if payload == "" {
		payload = "{}"
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return nil
}

func encodeResponse(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", runtime.NewError("internal error", codeInternal)
	}
	return string(b), nil
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type moveRequest struct {
	SessionID string      `json:"session_id"`
	Move      domain.Move `json:"move"`
}

// SessionResponse carries a session and, for rejected moves, why nothing
// changed.
type SessionResponse struct {
	Session   *domain.Session   `json:"session,omitempty"`
	Rejection *domain.Rejection `json:"rejection,omitempty"`
}

func (m *Module) rpcSessionGet(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	me, err := runtimeIdentity{}.Identity(ctx)
	if err != nil {
		return "", toRuntimeError(logger, "RpcSessionGet", err)
	}
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil || req.SessionID == "" {
		return "", runtime.NewError("session_id required", codeInvalidArgument)
	}
	sess, err := m.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return "", toRuntimeError(logger, "RpcSessionGet", err)
	}
	if !sess.IsParticipant(me) && sess.Status != domain.StatusWaiting {
		return "", runtime.NewError("session not found", codeNotFound)
	}
	return encodeResponse(SessionResponse{Session: sess})
}

func (m *Module) rpcSessionMove(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	me, err := runtimeIdentity{}.Identity(ctx)
	if err != nil {
		return "", toRuntimeError(logger, "RpcSessionMove", err)
	}
	var req moveRequest
	if err := decodePayload(payload, &req); err != nil || req.SessionID == "" {
		return "", runtime.NewError("session_id and move required", codeInvalidArgument)
	}
	sess, events, err := m.sessions.SubmitMove(ctx, req.SessionID, me, req.Move)
	if rej, ok := domain.AsRejection(err); ok {
		current, getErr := m.sessions.GetSession(ctx, req.SessionID)
		if getErr != nil {
			current = nil
		}
		return encodeResponse(SessionResponse{Session: current, Rejection: rej})
	}
	if err != nil {
		return "", toRuntimeError(logger, "RpcSessionMove", err)
	}
	for _, ev := range events {
		logger.Debug("RpcSessionMove: %s in session %s", ev.Kind, sess.ID)
	}
	return encodeResponse(SessionResponse{Session: sess})
}

func (m *Module) rpcSessionResign(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	me, err := runtimeIdentity{}.Identity(ctx)
	if err != nil {
		return "", toRuntimeError(logger, "RpcSessionResign", err)
	}
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil || req.SessionID == "" {
		return "", runtime.NewError("session_id required", codeInvalidArgument)
	}
	sess, _, err := m.sessions.Resign(ctx, req.SessionID, me)
	if err != nil {
		return "", toRuntimeError(logger, "RpcSessionResign", err)
	}
	logger.Info("RpcSessionResign: %s resigned session %s", me, sess.ID)
	return encodeResponse(SessionResponse{Session: sess})
}

type inviteSendRequest struct {
	To        string          `json:"to"`
	GameType  domain.GameType `json:"game_type"`
	SessionID string          `json:"session_id,omitempty"`
}

// InviteResponse carries an invite and the session it refers to.
type InviteResponse struct {
	Invite  *domain.Invite  `json:"invite"`
	Session *domain.Session `json:"session,omitempty"`
}

func (m *Module) rpcInviteSend(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req inviteSendRequest
	if err := decodePayload(payload, &req); err != nil || req.To == "" {
		return "", runtime.NewError("to and game_type required", codeInvalidArgument)
	}
	gameType, err := domain.ParseGameType(string(req.GameType))
	if err != nil {
		return "", toRuntimeError(logger, "RpcInviteSend", err)
	}
	if req.SessionID != "" {
		inv, err := m.invites.CreateInvite(ctx, req.SessionID, req.To, gameType)
		if err != nil {
			return "", toRuntimeError(logger, "RpcInviteSend", err)
		}
		return encodeResponse(InviteResponse{Invite: inv})
	}
	inv, sess, err := m.invites.Invite(ctx, req.To, gameType)
	if err != nil {
		return "", toRuntimeError(logger, "RpcInviteSend", err)
	}
	return encodeResponse(InviteResponse{Invite: inv, Session: sess})
}

func (m *Module) rpcInviteList(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	invites, err := m.invites.ListInvites(ctx)
	if err != nil {
		return "", toRuntimeError(logger, "RpcInviteList", err)
	}
	return encodeResponse(struct {
		Invites []*domain.Invite `json:"invites"`
	}{Invites: invites})
}

type inviteRespondRequest struct {
	InviteID string `json:"invite_id"`
	Accept   bool   `json:"accept"`
}

func (m *Module) rpcInviteRespond(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req inviteRespondRequest
	if err := decodePayload(payload, &req); err != nil || req.InviteID == "" {
		return "", runtime.NewError("invite_id required", codeInvalidArgument)
	}
	inv, sess, err := m.invites.Respond(ctx, req.InviteID, req.Accept)
	if err != nil {
		return "", toRuntimeError(logger, "RpcInviteRespond", err)
	}
	if sess != nil {
		m.invites.Forget(inv.From, inv.To)
	}
	return encodeResponse(InviteResponse{Invite: inv, Session: sess})
}

type matchmakingRequest struct {
	GameMode domain.GameType `json:"game_mode"`
}

// MatchmakingResponse reports whether the caller has been paired.
type MatchmakingResponse struct {
	Matched bool                `json:"matched"`
	Signal  *domain.MatchSignal `json:"signal,omitempty"`
	Removed bool                `json:"removed,omitempty"`
}

func (m *Module) rpcMatchmakingJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	me, err := runtimeIdentity{}.Identity(ctx)
	if err != nil {
		return "", toRuntimeError(logger, "RpcMatchmakingJoin", err)
	}
	var req matchmakingRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(logger, "RpcMatchmakingJoin", err)
	}
	mode, err := domain.ParseGameType(string(req.GameMode))
	if err != nil {
		return "", toRuntimeError(logger, "RpcMatchmakingJoin", err)
	}
	sig, err := m.authority.Enqueue(ctx, me, m.displayName(ctx, me), mode)
	if err != nil {
		return "", toRuntimeError(logger, "RpcMatchmakingJoin", err)
	}
	return encodeResponse(MatchmakingResponse{Matched: sig != nil, Signal: sig})
}

func (m *Module) rpcMatchmakingLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	me, err := runtimeIdentity{}.Identity(ctx)
	if err != nil {
		return "", toRuntimeError(logger, "RpcMatchmakingLeave", err)
	}
	var req matchmakingRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(logger, "RpcMatchmakingLeave", err)
	}
	return encodeResponse(MatchmakingResponse{Removed: m.authority.Cancel(me, req.GameMode)})
}

func (m *Module) rpcMatchmakingCheck(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	me, err := runtimeIdentity{}.Identity(ctx)
	if err != nil {
		return "", toRuntimeError(logger, "RpcMatchmakingCheck", err)
	}
	sig, err := m.authority.Check(ctx, me)
	if err != nil {
		return "", toRuntimeError(logger, "RpcMatchmakingCheck", err)
	}
	return encodeResponse(MatchmakingResponse{Matched: sig != nil, Signal: sig})
}

func (m *Module) displayName(ctx context.Context, userID string) string {
	if name := m.onboarding.DisplayName(ctx, userID); name != "" {
		return name
	}
	if m.accounts != nil {
		return m.accounts.DisplayName(ctx, userID)
	}
	return ""
}
