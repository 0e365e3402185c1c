package scenario

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Format identifies a scenario source format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatFor picks a format from a file extension. JSON files are read as
// CUE, of which JSON is a subset.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue", ".json":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported scenario extension %q (want .yaml, .yml, .cue or .json)", filepath.Ext(path))
	}
}

// Load reads, schema-checks and validates a scenario file.
func Load(path string) (*Scenario, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := Parse(data, format, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes data in the given format, unifies it with the schema
// (applying defaults) and validates the result. filename is used in error
// positions only.
func Parse(data []byte, format Format, filename string) (*Scenario, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Scenario"))

	var input cue.Value
	switch format {
	case FormatYAML:
		var raw Scenario
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true) // Reject unknown fields
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		// Round-trip through JSON so omitted fields stay absent and pick up
		// schema defaults.
		encoded, err := json.Marshal(&raw)
		if err != nil {
			return nil, fmt.Errorf("encode scenario: %w", err)
		}
		input = ctx.CompileBytes(encoded, cue.Filename(filename))
	case FormatCUE:
		input = ctx.CompileBytes(data, cue.Filename(filename))
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", format)
	}
	if err := input.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", formatCUEError(err))
	}

	unified := def.Unify(input)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("schema violation: %w", formatCUEError(err))
	}

	var s Scenario
	if err := unified.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", formatCUEError(err))
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// formatCUEError flattens a CUE error list into one message per line.
func formatCUEError(err error) error {
	list := cueerrors.Errors(err)
	if len(list) <= 1 {
		return err
	}
	msgs := make([]string, 0, len(list))
	for _, e := range list {
		msgs = append(msgs, strings.TrimSpace(cueerrors.Details(e, nil)))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "\n"))
}
