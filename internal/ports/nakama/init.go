package nakama

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"duelhall/internal/app"
	"duelhall/internal/app/invite"
	"duelhall/internal/app/matchmaking"
	"duelhall/internal/app/onboarding"
	"duelhall/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Settings are the module tunables read from the runtime env.
type Settings struct {
	InviteTTL time.Duration
	HandSize  int
}

func settingsFromEnv(env map[string]string, logger runtime.Logger) Settings {
	s := Settings{InviteTTL: app.DefaultInviteTTL}
	if raw := env[EnvInviteTTLSec]; raw != "" {
		if sec, err := strconv.Atoi(raw); err == nil && sec > 0 {
			s.InviteTTL = time.Duration(sec) * time.Second
		} else {
			logger.Warn("InitModule: ignoring %s=%q", EnvInviteTTLSec, raw)
		}
	}
	if raw := env[EnvHandSize]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 15 {
			s.HandSize = n
		} else {
			logger.Warn("InitModule: ignoring %s=%q", EnvHandSize, raw)
		}
	}
	return s
}

// accountDirectory renames accounts and looks up display names.
type accountDirectory interface {
	ports.AccountPort
	DisplayName(ctx context.Context, userID string) string
}

// Module holds the services shared by every RPC and hook of one node.
type Module struct {
	store      ports.DocumentStore
	accounts   accountDirectory
	sessions   *app.Service
	invites    *invite.Broker
	authority  *matchmaking.Authority
	onboarding *onboarding.Service
	logger     runtime.Logger
}

// NewModule wires the services over store. accounts may be nil.
func NewModule(store ports.DocumentStore, accounts accountDirectory, settings Settings, logger runtime.Logger) *Module {
	sessions := app.NewService(store, nil, nil)
	sessions.SetHandSize(settings.HandSize)

	var accountPort ports.AccountPort
	if accounts != nil {
		accountPort = accounts
	}
	return &Module{
		store:      store,
		accounts:   accounts,
		sessions:   sessions,
		invites:    invite.NewBroker(sessions, runtimeIdentity{}, invite.Config{TTL: settings.InviteTTL, Logger: logger}),
		authority:  matchmaking.NewAuthority(sessions, logger),
		onboarding: onboarding.NewService(accountPort, store, nil, nil),
		logger:     logger,
	}
}

// InitModule registers the duelhall RPCs and the device auth hook.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	m := NewModule(NewNakamaStorageAdapter(nk), NewNakamaAccountAdapter(nk), settingsFromEnv(env, logger), logger)

	if err := m.RegisterRPCs(initializer); err != nil {
		return err
	}
	if err := initializer.RegisterAfterAuthenticateDevice(m.AfterAuthenticateDevice); err != nil {
		return err
	}

	logger.Info("duelhall module loaded.")
	return nil
}
