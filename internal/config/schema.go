package config

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

var (
	schemaOnce sync.Once
	schemaJSON []byte
	schemaErr  error
)

// JSONSchema renders the Config struct as a JSON Schema document, keyed
// by the same yaml field names Load decodes. Operator tooling serves it
// for editor completion against the engine's config file.
func JSONSchema() ([]byte, error) {
	schemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{FieldNameTag: "yaml"}
		schemaJSON, schemaErr = json.MarshalIndent(reflector.Reflect(&Config{}), "", "  ")
	})
	return schemaJSON, schemaErr
}
