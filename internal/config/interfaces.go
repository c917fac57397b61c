package config

import "context"

// SecretProvider resolves secret paths to plaintext values. SSMProvider serves
// deployed environments and EnvVarProvider local development.
type SecretProvider interface {
	// GetParametersBatch returns a map of key -> value for every key it could
	// resolve. Implementations batch internally to stay under API limits.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
