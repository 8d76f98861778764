// Package auth issues and verifies the bearer tokens of the standalone
// server. Tokens are HS256 JWTs carrying the same "uid" and "usn" claims as
// Nakama session tokens, so one parser serves both.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

const (
	claimUserID   = "uid"
	claimUsername = "usn"

	// DefaultTokenTTL is the lifetime of issued tokens.
	DefaultTokenTTL = 24 * time.Hour
	issuer          = "duelhall"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("token secret is not configured")
)

// Claims identifies the bearer of a token.
type Claims struct {
	UserID   string
	Username string
	Expires  time.Time
}

// Issuer signs and verifies tokens with one shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer. ttl <= 0 uses DefaultTokenTTL.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for userID.
func (i *Issuer) Issue(userID, username string) (string, error) {
	if i == nil || len(i.secret) == 0 {
		return "", ErrNoSecret
	}
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	now := i.now()
	claims := jwt.MapClaims{
		"iss":         issuer,
		"iat":         now.Unix(),
		"exp":         now.Add(i.ttl).Unix(),
		claimUserID:   userID,
		claimUsername: username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks the signature and expiry of token and returns its claims.
func (i *Issuer) Verify(token string) (Claims, error) {
	if i == nil || len(i.secret) == 0 {
		return Claims{}, ErrNoSecret
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	return claimsFrom(mc)
}

// UnverifiedUserID reads the "uid" claim without checking the signature.
// Use it only on tokens the caller just received from a trusted issuer.
func UnverifiedUserID(token string) (string, error) {
	parsed, _, err := new(jwt.Parser).ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	c, err := claimsFrom(mc)
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}

func claimsFrom(mc jwt.MapClaims) (Claims, error) {
	uid, _ := mc[claimUserID].(string)
	if uid == "" {
		return Claims{}, fmt.Errorf("%w: token claims missing uid", ErrInvalidToken)
	}
	c := Claims{UserID: uid}
	c.Username, _ = mc[claimUsername].(string)
	if exp, ok := mc["exp"].(float64); ok {
		c.Expires = time.Unix(int64(exp), 0)
	}
	return c, nil
}
