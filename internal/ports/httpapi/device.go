package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"duelhall/internal/platform/id"
	"duelhall/internal/ports"
)

// DeviceCollection maps device ids onto user ids.
const DeviceCollection = "devices"

// DeviceAuthRequest signs in, creating the account on first use.
type DeviceAuthRequest struct {
	DeviceID string `json:"device_id"`
	Username string `json:"username,omitempty"`
}

// DeviceAuthResponse carries the session token for later requests.
type DeviceAuthResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Created     bool   `json:"created"`
}

type deviceAccount struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type deviceDirectory struct {
	store ports.DocumentStore
}

// resolve returns the account bound to deviceID, creating it once. Concurrent
// first sign-ins of one device agree on a single account.
func (d *deviceDirectory) resolve(ctx context.Context, deviceID, username string) (deviceAccount, bool, error) {
	ref := ports.Ref{Collection: DeviceCollection, Key: deviceID}
	var acct deviceAccount
	if _, err := ports.GetJSON(ctx, d.store, ref, &acct); err == nil {
		return acct, false, nil
	} else if !errors.Is(err, ports.ErrNotFound) {
		return acct, false, fmt.Errorf("read device: %w", err)
	}

	acct = deviceAccount{UserID: id.New(), Username: username, CreatedAt: time.Now().UTC()}
	if acct.Username == "" {
		acct.Username = acct.UserID
	}
	if _, err := ports.PutJSON(ctx, d.store, ref, acct, ports.CreateOnly); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			_, err = ports.GetJSON(ctx, d.store, ref, &acct)
			return acct, false, err
		}
		return acct, false, fmt.Errorf("store device: %w", err)
	}
	return acct, true, nil
}

func (s *Server) handleDeviceAuth(w http.ResponseWriter, r *http.Request) {
	var req DeviceAuthRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, "HandleDeviceAuth", err)
		return
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if len(req.DeviceID) < 10 || len(req.DeviceID) > 128 {
		writeError(w, http.StatusBadRequest, "device_id must be 10 to 128 characters")
		return
	}

	acct, created, err := s.devices.resolve(r.Context(), req.DeviceID, strings.TrimSpace(req.Username))
	if err != nil {
		s.fail(w, "HandleDeviceAuth", err)
		return
	}

	resp := DeviceAuthResponse{UserID: acct.UserID, Username: acct.Username, Created: created}
	if s.onboarding != nil {
		result, err := s.onboarding.OnboardNewUser(r.Context(), acct.UserID)
		if err != nil {
			// Sign-in still succeeds; the profile is retried on the next sign-in.
			if s.logger != nil {
				s.logger.Warn("HandleDeviceAuth: onboarding failed for %s: %v", acct.UserID, err)
			}
		} else {
			resp.DisplayName = result.Profile.DisplayName
		}
	}

	resp.Token, err = s.issuer.Issue(acct.UserID, acct.Username)
	if err != nil {
		s.fail(w, "HandleDeviceAuth", err)
		return
	}
	if created && s.logger != nil {
		s.logger.Info("HandleDeviceAuth: created account %s", acct.UserID)
	}
	writeJSON(w, http.StatusOK, resp)
}
