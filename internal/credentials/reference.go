package credentials

import (
	"fmt"
	"strings"
)

// referencePrefix is the scheme under which instance configs point at a
// credential without embedding it: "keyring://skill-engine/{skill}/{instance}/{key}".
const referencePrefix = "keyring://skill-engine/"

// Reference identifies a single credential stored under the platform
// keychain, as addressed from an instance config file.
type Reference struct {
	Skill    string
	Instance string
	Key      string
}

// String renders the reference back to its canonical keyring:// form.
func (r Reference) String() string {
	return referencePrefix + r.Skill + "/" + r.Instance + "/" + r.Key
}

// ParseReference parses a "keyring://skill-engine/{skill}/{instance}/{key}"
// reference string.
func ParseReference(reference string) (Reference, error) {
	if !strings.HasPrefix(reference, referencePrefix) {
		return Reference{}, fmt.Errorf("invalid keyring reference: must start with %q", referencePrefix)
	}

	path := reference[len(referencePrefix):]
	parts := strings.Split(path, "/")
	if len(parts) != 3 {
		return Reference{}, fmt.Errorf("invalid keyring reference format: expected %q", referencePrefix+"{skill}/{instance}/{key}")
	}

	return Reference{Skill: parts[0], Instance: parts[1], Key: parts[2]}, nil
}
