package onboarding

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"duelhall/internal/ports"
)

const (
	// ProfileCollection holds one profile document per identity.
	ProfileCollection = "profiles"
	ProfileKey        = "profile"
)

// Profile is the stored player profile created on first sign-in.
type Profile struct {
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileRef addresses the profile document of userID.
func ProfileRef(userID string) ports.Ref {
	return ports.Ref{Collection: ProfileCollection, Owner: userID, Key: ProfileKey}
}

// Result captures non-fatal onboarding outcomes.
type Result struct {
	Profile Profile
	// Created is false when the profile already existed.
	Created bool
	// ProfileUpdateErr is set when the account rename failed but onboarding continued.
	ProfileUpdateErr error
}

// Service handles post-auth onboarding for new users.
type Service struct {
	accounts ports.AccountPort
	store    ports.DocumentStore
	clock    ports.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService constructs an onboarding service.
// accounts may be nil when the identity backend has no account profile;
// rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, store ports.DocumentStore, clock ports.Clock, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Service{accounts: accounts, store: store, clock: clock, rng: rng}
}

// OnboardNewUser gives userID a friendly display name and stores its profile
// once. Calling it again returns the stored profile unchanged.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) (Result, error) {
	if s.store == nil {
		return Result{}, fmt.Errorf("onboarding service not configured")
	}
	if userID == "" {
		return Result{}, ports.ErrNotAuthenticated
	}

	var existing Profile
	if _, err := ports.GetJSON(ctx, s.store, ProfileRef(userID), &existing); err == nil {
		return Result{Profile: existing}, nil
	} else if !errors.Is(err, ports.ErrNotFound) {
		return Result{}, fmt.Errorf("read profile: %w", err)
	}

	result := Result{Profile: Profile{DisplayName: s.FriendlyName(), CreatedAt: s.clock.Now()}}
	if _, err := ports.PutJSON(ctx, s.store, ProfileRef(userID), result.Profile, ports.CreateOnly); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			// A concurrent sign-in created it first.
			_, err = ports.GetJSON(ctx, s.store, ProfileRef(userID), &result.Profile)
			return result, err
		}
		return result, fmt.Errorf("store profile: %w", err)
	}
	result.Created = true

	if s.accounts != nil {
		name := result.Profile.DisplayName
		if err := s.accounts.UpdateProfile(ctx, userID, name, name); err != nil {
			result.ProfileUpdateErr = err
		}
	}
	return result, nil
}

// DisplayName returns the stored display name of userID, or "" if it has
// none.
func (s *Service) DisplayName(ctx context.Context, userID string) string {
	var p Profile
	if _, err := ports.GetJSON(ctx, s.store, ProfileRef(userID), &p); err != nil {
		return ""
	}
	return p.DisplayName
}

// FriendlyName returns a random name such as "SwiftOtter4821".
func (s *Service) FriendlyName() string {
	adjectives := []string{"Happy", "Shiny", "Brave", "Clever", "Swift", "Calm", "Mighty", "Witty", "Sly", "Wild"}
	nouns := []string{"Panda", "Tiger", "Eagle", "Dolphin", "Wolf", "Otter", "Falcon", "Bear", "Fox", "Lion"}

	s.mu.Lock()
	defer s.mu.Unlock()
	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000
	return fmt.Sprintf("%s%s%d", adj, noun, num)
}
