package manifest

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

// ManifestFilename is the expected filename for the top-level manifest.
const ManifestFilename = ".skill-engine.toml"

// ParseFile parses a ".skill-engine.toml" file. Unknown keys in the TOML
// document are an error, per the external-interface contract.
func ParseFile(path string) (*File, error) {
	var f File
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("manifest has unknown keys: %v", undecoded)
	}
	return &f, nil
}

// Parse parses manifest TOML from memory, with the same unknown-key
// strictness as ParseFile.
func Parse(data []byte) (*File, error) {
	var f File
	meta, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("manifest has unknown keys: %v", undecoded)
	}
	return &f, nil
}

// Serialize renders a File back to TOML. Parsing the output yields an
// equal File, so edit-and-rewrite tooling can round-trip a manifest
// without losing entries.
func Serialize(f *File) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return nil, fmt.Errorf("serialise manifest: %w", err)
	}
	return buf.Bytes(), nil
}
