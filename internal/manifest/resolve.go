package manifest

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ResolveSource applies the manifest's source-resolution rules: relative
// sources ("./...") resolve against the manifest's directory; absolute
// paths and scheme URIs pass through unchanged.
func ResolveSource(manifestDir, source string) string {
	if source == "" {
		return source
	}
	if strings.HasPrefix(source, "./") || strings.HasPrefix(source, "../") {
		return filepath.Join(manifestDir, source)
	}
	if filepath.IsAbs(source) {
		return source
	}
	if u, err := url.Parse(source); err == nil && u.Scheme != "" {
		return source
	}
	return source
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// ExpandVars expands "${VAR}", "${VAR:-default}", and "$VAR" references
// from the process environment. Unset variables expand to empty unless a
// default is supplied.
func ExpandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := varPattern.FindStringSubmatch(match)
		name := groups[1]
		def := groups[3]
		if name == "" {
			name = groups[4]
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return def
	})
}
