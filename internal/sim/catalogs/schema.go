package catalogs

import (
	"bytes"
	"encoding/json"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validateSchema checks a raw document against a schema file. An empty
// schemaDir disables validation.
func validateSchema(schemaDir, name string, raw []byte) error {
	if schemaDir == "" {
		return nil
	}
	schema, err := jsonschema.Compile(filepath.Join(schemaDir, name))
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}
