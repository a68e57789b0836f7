package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims is the JWT payload: subject, expiry, role and free-form
// metadata. The workspace is intentionally not a first-class claim; it is
// resolved from the credential store at validation time and only honored from
// metadata when a caller embedded it explicitly at issuance.
type tokenClaims struct {
	Role     string         `json:"role"`
	Metadata map[string]any `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// TokenInfo is the result of a successful token validation.
type TokenInfo struct {
	Username  string
	Role      string
	Workspace string
	Metadata  map[string]any
	ExpiresAt time.Time
}

// DefaultExpiry selects the role-dependent default token lifetime.
// Pass it as expireHours to CreateToken when no override is wanted.
const DefaultExpiry = -1

// CreateToken issues a signed HS256 token for username.
//
// expireHours sets the token lifetime in hours. DefaultExpiry (negative)
// selects the role-dependent default: the regular lifetime for users, the
// shorter one for guests. Zero is honored literally and yields a token that
// is already expired, which validation reports as ErrTokenExpired.
func (h *Handler) CreateToken(username, role string, expireHours int, metadata map[string]any) (string, error) {
	if role == "" {
		role = RoleUser
	}

	if expireHours < 0 {
		if role == RoleGuest {
			expireHours = h.guestExpireHours
		} else {
			expireHours = h.expireHours
		}
	}

	now := time.Now()
	claims := tokenClaims{
		Role:     role,
		Metadata: metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("signing token for %q: %w", username, err)
	}
	return signed, nil
}

// CreateTokenWithExpiry issues a token with an explicit absolute expiry.
// Used by tests and by callers that need sub-hour lifetimes.
func (h *Handler) CreateTokenWithExpiry(username, role string, expiresAt time.Time, metadata map[string]any) (string, error) {
	if role == "" {
		role = RoleUser
	}
	claims := tokenClaims{
		Role:     role,
		Metadata: metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("signing token for %q: %w", username, err)
	}
	return signed, nil
}

// ValidateToken verifies signature and structure, then independently checks
// that the expiry is strictly in the future. The explicit check is deliberate:
// it does not rely on the library's leeway-tolerant expiry validation, so an
// already-expired token always fails with ErrTokenExpired rather than
// ErrInvalidToken.
//
// On success the workspace is resolved from the credential store and injected
// into the returned info (and into metadata, unless the metadata already
// carries one).
func (h *Handler) ValidateToken(tokenStr string) (TokenInfo, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return h.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, errOrUnverified(err))
	}

	if claims.ExpiresAt == nil {
		return TokenInfo{}, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}
	expiresAt := claims.ExpiresAt.Time
	if !time.Now().Before(expiresAt) {
		return TokenInfo{}, fmt.Errorf("%w: expired at %s", ErrTokenExpired, expiresAt.UTC().Format(time.RFC3339))
	}

	username := claims.Subject
	ws := h.Workspace(username)

	metadata := claims.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	if _, ok := metadata["workspace"]; !ok {
		metadata["workspace"] = ws
	}

	return TokenInfo{
		Username:  username,
		Role:      roleOrDefault(claims.Role),
		Workspace: ws,
		Metadata:  metadata,
		ExpiresAt: expiresAt,
	}, nil
}

func errOrUnverified(err error) error {
	if err != nil {
		return err
	}
	return errors.New("token not verified")
}
