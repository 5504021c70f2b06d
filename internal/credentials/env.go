package credentials

import (
	"context"
	"os"
	"strings"
)

// EnvProvider reads credentials from process environment variables,
// read-only. The variable for (skill, instance, key) is
// "<prefix><SKILL>__<INSTANCE>__<KEY>", uppercased, with every
// non-alphanumeric rune folded to an underscore. Useful for CI and
// container deployments where no keychain exists.
type EnvProvider struct {
	prefix string
}

// DefaultEnvPrefix is prepended to every looked-up variable name.
const DefaultEnvPrefix = "SKILL_ENGINE_CRED_"

// NewEnvProvider builds an EnvProvider; an empty prefix means
// DefaultEnvPrefix.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

// Get looks the credential up in the environment; unset and empty
// variables are both ErrNotFound.
func (p *EnvProvider) Get(ctx context.Context, skill, instance, key string) (*SecureString, error) {
	name := p.prefix + envSegment(skill) + "__" + envSegment(instance) + "__" + envSegment(key)
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil, ErrNotFound
	}
	return newSecureString(value), nil
}

// envSegment folds one identifier segment into environment-variable-safe
// form.
func envSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
