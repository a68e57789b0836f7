// Package auth provides the credential store and token service for the
// gateway: password and API-key accounts merged from two sources (an inline
// environment-style list and a structured JSON file), and signed,
// time-bounded JWT identity tokens.
package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/raggate/raggate/internal/workspace"
)

// Config carries the settings the Handler needs. Secret must be set;
// expiry hours fall back to sensible defaults when zero.
type Config struct {
	// Secret is the HMAC signing secret for tokens.
	Secret string

	// ExpireHours is the default token lifetime for regular users.
	ExpireHours int

	// GuestExpireHours is the default token lifetime for guests.
	GuestExpireHours int

	// Accounts is an inline "user:pass,user2:pass2" list. Accounts defined
	// here land in the default workspace.
	Accounts string

	// UsersFilePath points at the optional structured users file.
	UsersFilePath string
}

// Handler is the credential store plus token service.
// It is immutable after New and safe for concurrent use.
type Handler struct {
	secret           []byte
	expireHours      int
	guestExpireHours int

	accounts map[string]string // username -> password (plain or bcrypt hash)
	apiKeys  map[string]User   // api key -> user record
	users    map[string]User   // username -> user record

	logger *slog.Logger
}

// New builds a Handler from the inline accounts list and the users file.
// The users file overrides inline entries with the same username.
// A missing users file is not an error.
func New(cfg Config, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ExpireHours <= 0 {
		cfg.ExpireHours = 48
	}
	if cfg.GuestExpireHours <= 0 {
		cfg.GuestExpireHours = 24
	}

	h := &Handler{
		secret:           []byte(cfg.Secret),
		expireHours:      cfg.ExpireHours,
		guestExpireHours: cfg.GuestExpireHours,
		accounts:         make(map[string]string),
		apiKeys:          make(map[string]User),
		users:            make(map[string]User),
		logger:           logger,
	}

	if cfg.Accounts != "" {
		for _, account := range strings.Split(cfg.Accounts, ",") {
			username, password, ok := strings.Cut(account, ":")
			if !ok || username == "" {
				return nil, fmt.Errorf("malformed inline account entry %q", account)
			}
			h.accounts[username] = password
			h.users[username] = User{Username: username, Workspace: workspace.Default}
		}
	}

	if cfg.UsersFilePath != "" {
		records, err := loadUsersFile(cfg.UsersFilePath)
		if err != nil {
			return nil, err
		}
		for _, u := range records {
			if u.Username == "" {
				continue
			}
			h.users[u.Username] = u
			if u.Password != "" {
				h.accounts[u.Username] = u.Password
			}
			if u.APIKey != "" {
				h.apiKeys[u.APIKey] = u
			}
		}
		if len(records) > 0 {
			logger.Info("loaded users file", "path", cfg.UsersFilePath, "users", len(records))
		}
	}

	return h, nil
}

// UserInfo is the authenticated identity handed to the HTTP layer.
type UserInfo struct {
	Username  string
	Role      string
	Workspace string
	Metadata  map[string]any
}

// ValidateAPIKey looks up an API key. The second return value is false when
// the key is not known; that is not an error, so the caller can fall through
// to another auth method.
func (h *Handler) ValidateAPIKey(key string) (UserInfo, bool) {
	u, ok := h.apiKeys[key]
	if !ok {
		return UserInfo{}, false
	}
	return UserInfo{
		Username:  u.Username,
		Role:      roleOrDefault(u.Role),
		Workspace: h.Workspace(u.Username),
		Metadata:  map[string]any{"auth_mode": "api_key"},
	}, true
}

// VerifyPassword checks a username/password pair against the credential
// table. Stored credentials may be bcrypt hashes (recognized by prefix) or
// plain values compared in constant time.
func (h *Handler) VerifyPassword(username, password string) error {
	stored, ok := h.accounts[username]
	if !ok {
		return ErrInvalidCredentials
	}

	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)); err != nil {
			return ErrInvalidCredentials
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(password)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// Workspace returns the configured workspace for a username, or the default
// workspace when the user is unknown or has none configured.
func (h *Handler) Workspace(username string) string {
	if u, ok := h.users[username]; ok && u.Workspace != "" {
		return u.Workspace
	}
	return workspace.Default
}

// HasAccounts reports whether any password account is configured. The HTTP
// layer uses this to report auth mode on the status endpoint.
func (h *Handler) HasAccounts() bool {
	return len(h.accounts) > 0
}

func roleOrDefault(role string) string {
	if role == "" {
		return RoleUser
	}
	return role
}
