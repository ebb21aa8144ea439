package models

import "context"

// TokenProvider is the capability consumed from the external credential
// collaborator. The OAuth handshake itself happens outside this module;
// implementations hand back a currently valid bearer token, refreshing it
// behind the scenes when necessary.
type TokenProvider interface {
	GetValidAccessToken(ctx context.Context) (string, error)
}

// StaticTokenProvider returns a fixed token. Useful for tests and for
// backends configured with long-lived app passwords.
type StaticTokenProvider string

// GetValidAccessToken implements TokenProvider.
func (s StaticTokenProvider) GetValidAccessToken(ctx context.Context) (string, error) {
	return string(s), nil
}
