package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Decode parses a YAML document for testID, completes it with the schema
// defaults, and returns the validated typed config. An empty document yields
// the schema defaults, which still requires `clip` for field drivers.
func Decode(testID string, data []byte) (Config, error) {
	raw := map[string]any{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Code: ErrCodeInvalid, Message: fmt.Sprintf("parsing YAML: %v", err)}
	}
	return complete(testID, raw)
}

// LoadFile reads and decodes a YAML config file for testID.
func LoadFile(testID, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Decode(testID, data)
}

// Override applies overrides on top of base and revalidates the result
// through the schema. Keys use the snake_case field names.
func Override(base Config, overrides map[string]any) (Config, error) {
	fields, err := toMap(base)
	if err != nil {
		return nil, err
	}
	for k, v := range overrides {
		fields[k] = v
	}
	return complete(base.TestID(), fields)
}

// Resolve returns the preset for testID, with the YAML file at path applied
// as overrides when path is non-empty.
func Resolve(testID, path string) (Config, error) {
	base, err := Default(testID)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	overrides := map[string]any{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, &Error{Code: ErrCodeInvalid, Message: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	return Override(base, overrides)
}

func complete(testID string, fields map[string]any) (Config, error) {
	target, err := zeroFor(testID)
	if err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#" + testID))
	if !def.Exists() {
		return nil, unknownTest(testID)
	}

	value := def.Unify(ctx.Encode(fields))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, schemaError(err)
	}
	if err := value.Decode(target); err != nil {
		return nil, schemaError(err)
	}

	cfg := deref(target)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func zeroFor(testID string) (any, error) {
	switch testID {
	case TestPG:
		return &PG{}, nil
	case TestPI:
		return &PI{}, nil
	case TestMT01:
		return &MT01{}, nil
	case TestMT02:
		return &MT02{}, nil
	case TestBG01:
		return &BG01{}, nil
	case TestTN:
		return &TN{}, nil
	}
	return nil, unknownTest(testID)
}

func deref(target any) Config {
	switch c := target.(type) {
	case *PG:
		return *c
	case *PI:
		return *c
	case *MT01:
		return *c
	case *MT02:
		return *c
	case *BG01:
		return *c
	case *TN:
		return *c
	}
	panic(fmt.Sprintf("config: unexpected decode target %T", target))
}

func toMap(cfg Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s config: %w", cfg.TestID(), err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding %s config: %w", cfg.TestID(), err)
	}
	return out, nil
}

func schemaError(err error) *Error {
	ce := &Error{Code: ErrCodeInvalid, Message: err.Error()}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		path := errs[0].Path()
		if len(path) > 0 && strings.HasPrefix(path[0], "#") {
			path = path[1:]
		}
		ce.Field = strings.Join(path, ".")
		ce.Message = strings.TrimSpace(errs[0].Error())
		if len(errs) > 1 {
			ce.Details = map[string]any{"additional_errors": len(errs) - 1}
		}
	}
	return ce
}
