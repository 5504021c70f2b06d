// Package module executes a skill's tools as a content-addressed,
// capability-sandboxed script: Load parses and validates the source on
// every call and records its content hash in the module cache, and every
// invocation runs in a fresh sandbox drawn from internal/tools/sandbox's
// pool with a default-deny capability grant derived from the instance.
package module

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kubiyabot/skill-engine/pkg/models"
	"github.com/kubiyabot/skill-engine/pkg/pluginsdk"
)

// Module is a loaded, validated module-runtime skill: its manifest, its
// entrypoint source, the sandbox language it targets, and the content hash
// the AOT cache is keyed on.
type Module struct {
	Manifest *pluginsdk.Manifest
	Language string
	Source   string
	Files    map[string]string
	Hash     string
}

// supportedLanguages mirrors internal/tools/sandbox's pooled languages:
// a module targets exactly one of these sandbox runtimes.
var supportedLanguages = map[string]bool{
	"python": true,
	"nodejs": true,
	"go":     true,
	"bash":   true,
}

// Load parses and validates the module at path: a manifest file
// (pluginsdk.ManifestFilename) alongside an entrypoint script named
// "entrypoint.<ext>" for the manifest's declared language. Fails with a
// reported error when the manifest is missing required fields or declares
// an unsupported target language.
func Load(path string) (*Module, *models.ExecError) {
	manifestPath := filepath.Join(path, pluginsdk.ManifestFilename)
	manifest, err := pluginsdk.DecodeManifestFile(manifestPath)
	if err != nil {
		return nil, models.NewInvalidModule("load module manifest", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, models.NewInvalidModule("invalid module manifest", err)
	}

	language, _ := manifest.Metadata["language"].(string)
	language = strings.ToLower(strings.TrimSpace(language))
	if !supportedLanguages[language] {
		return nil, models.NewInvalidModule(fmt.Sprintf("module %q declares unsupported target language %q", manifest.ID, language), nil)
	}

	entrypoint := entrypointFilename(language)
	source, err := os.ReadFile(filepath.Join(path, entrypoint))
	if err != nil {
		return nil, models.NewInvalidModule(fmt.Sprintf("read module entrypoint %q", entrypoint), err)
	}

	files, err := readSupportingFiles(path, entrypoint, manifestPath)
	if err != nil {
		return nil, models.NewInvalidModule("read module supporting files", err)
	}

	hash := contentHash(manifest.ID, language, source, files)

	return &Module{
		Manifest: manifest,
		Language: language,
		Source:   string(source),
		Files:    files,
		Hash:     hash,
	}, nil
}

func entrypointFilename(language string) string {
	switch language {
	case "python":
		return "entrypoint.py"
	case "nodejs":
		return "entrypoint.js"
	case "go":
		return "entrypoint.go"
	default:
		return "entrypoint.sh"
	}
}

// readSupportingFiles collects every file under path other than the
// manifest and the entrypoint, keyed by path relative to the module root,
// so they can be synced alongside the entrypoint into the sandbox.
func readSupportingFiles(root, entrypoint, manifestPath string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == entrypoint || p == manifestPath {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// contentHash hashes everything that determines a module's compiled
// behaviour: its identity, target language, entrypoint, and supporting
// files. A second Load of unchanged content hashes identically, so the
// cache reports a hit.
func contentHash(id, language string, source []byte, files map[string]string) string {
	h := sha256.New()
	h.Write([]byte(id))
	h.Write([]byte{0})
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write(source)
	for _, name := range sortedKeys(files) {
		h.Write([]byte{0})
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(files[name]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
