package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks configuration values that every command depends on.
// Returns the first violation found, wrapped around a sentinel error.
func (c *Config) Validate() error {
	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidListenAddr, c.ListenAddr)
		}
	}

	if c.TokenExpireHours <= 0 {
		return fmt.Errorf("%w: token_expire_hours=%d", ErrInvalidExpireHours, c.TokenExpireHours)
	}
	if c.GuestExpireHours <= 0 {
		return fmt.Errorf("%w: guest_expire_hours=%d", ErrInvalidExpireHours, c.GuestExpireHours)
	}

	if c.AuthAccounts != "" {
		for _, account := range strings.Split(c.AuthAccounts, ",") {
			if !strings.Contains(account, ":") {
				return fmt.Errorf("%w: entry %q missing ':' separator", ErrInvalidAccounts, account)
			}
		}
	}

	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidEmbeddingDim, c.EmbeddingDim)
	}

	return nil
}

// ValidateServe checks the additional requirements of serve mode.
// Token signing must be configured before the gateway can authenticate anyone.
func (c *Config) ValidateServe() error {
	if c.TokenSecret == "" {
		return ErrMissingTokenSecret
	}
	if len(c.TokenSecret) < MinTokenSecretLength {
		return fmt.Errorf("%w: need at least %d bytes, got %d",
			ErrWeakTokenSecret, MinTokenSecretLength, len(c.TokenSecret))
	}
	return nil
}
