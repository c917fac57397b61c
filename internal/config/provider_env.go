package config

import (
	"context"
	"os"
)

// EnvVarProvider serves SECRETS_BACKEND=env deployments, where the platform
// mounts each credential as its own variable. A pointer such as
// PUSH_API_KEY_SSM_PARAM=MOUNTED_PUSH_KEY is then resolved by reading
// MOUNTED_PUSH_KEY instead of calling SSM.
type EnvVarProvider struct{}

func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch returns the variables named by keys. Unset and blank
// variables are left out, so the loader reports them as unresolved instead of
// wiring an empty push or email key.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	found := make(map[string]string, len(keys))
	for _, name := range keys {
		if v := os.Getenv(name); v != "" {
			found[name] = v
		}
	}
	return found, nil
}
