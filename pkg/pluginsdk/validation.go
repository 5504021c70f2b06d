package pluginsdk

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateConfig checks an instance's resolved config against the
// module's declared configSchema, so a module never starts with config
// it cannot interpret. config may be any JSON-encodable shape; the
// runtime passes the resolved key/value map.
func (m *Manifest) ValidateConfig(config any) error {
	if err := m.Validate(); err != nil {
		return err
	}

	schema, err := compileSchema(m.ConfigSchema)
	if err != nil {
		return fmt.Errorf("compile module config schema: %w", err)
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("encode module config: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode module config: %w", err)
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("module config invalid: %w", err)
	}
	return nil
}

// schemaCache memoises compiled schemas by their source text; modules are
// re-validated on every invocation but their schemas almost never change.
var schemaCache sync.Map

func compileSchema(schema []byte) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString("module.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
