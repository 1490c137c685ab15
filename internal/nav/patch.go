package nav

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed patch.schema.json
var patchSchemaJSON string

// LoadPatch reads a navigation patch from a YAML file and validates it
// against the patch schema before decoding. A malformed patch fails loudly at
// startup instead of silently resolving to a wrong tree.
func LoadPatch(path string) (*Patch, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read navigation patch: %w", err)
	}
	patch, err := ParsePatch(raw)
	if err != nil {
		return nil, fmt.Errorf("navigation patch %s: %w", path, err)
	}
	return patch, nil
}

// ParsePatch validates and decodes YAML patch content.
func ParsePatch(raw []byte) (*Patch, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	// Roundtrip through JSON so the validator sees json-typed values.
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}

	schema, err := compilePatchSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("invalid patch: %w", err)
	}

	var patch Patch
	if err := yaml.Unmarshal(raw, &patch); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	return &patch, nil
}

// Fingerprint identifies a patch's content for cache keying.
func (p *Patch) Fingerprint() string {
	if p == nil {
		return "default"
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return "unkeyed"
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:8])
}

func compilePatchSchema() (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(patchSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse patch schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource("patch.schema.json", parsed); err != nil {
		return nil, fmt.Errorf("add patch schema: %w", err)
	}
	schema, err := compiler.Compile("patch.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile patch schema: %w", err)
	}
	return schema, nil
}
