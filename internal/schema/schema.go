package schema

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pipeforge/pipeforged/internal/errs"
	"github.com/pipeforge/pipeforged/internal/manifest"
)

// kind names one of the three schema directories under a libdir.
type kind string

const (
	kindStage  kind = "stages"
	kindInput  kind = "inputs"
	kindSource kind = "sources"
)

// Set holds compiled JSON Schemas for every stage, input, and source type
// the host has a program for, keyed by type name.
type Set struct {
	libdir  string
	schemas map[kind]map[string]*jsonschema.Schema
}

// Load walks <libdir>/{stages,inputs,sources}/*.schema.json and compiles
// each file found. A libdir with no schema files at all yields an empty,
// valid Set (every stage/input/source type is then "unknown").
func Load(libdir string) (*Set, error) {
	s := &Set{
		libdir:  libdir,
		schemas: make(map[kind]map[string]*jsonschema.Schema),
	}

	for _, k := range []kind{kindStage, kindInput, kindSource} {
		loaded, err := loadKind(libdir, k)
		if err != nil {
			return nil, err
		}
		s.schemas[k] = loaded
	}

	return s, nil
}

func loadKind(libdir string, k kind) (map[string]*jsonschema.Schema, error) {
	dir := filepath.Join(libdir, string(k))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*jsonschema.Schema{}, nil
		}
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	out := make(map[string]*jsonschema.Schema, len(entries))

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".schema.json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".schema.json")
		path := filepath.Join(dir, e.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := compiler.AddResource(path, bytes.NewReader(data)); err != nil {
			return nil, errs.Wrapf(ErrInvalid, "compiling %s: %w", path, err)
		}
		compiled, err := compiler.Compile(path)
		if err != nil {
			return nil, errs.Wrapf(ErrInvalid, "compiling %s: %w", path, err)
		}
		out[name] = compiled
	}

	return out, nil
}

// Registry returns the manifest.Registry describing every type this Set
// has a schema for.
func (s *Set) Registry() manifest.Registry {
	names := func(k kind) []string {
		list := make([]string, 0, len(s.schemas[k]))
		for n := range s.schemas[k] {
			list = append(list, n)
		}
		sort.Strings(list)
		return list
	}
	return manifest.Registry{
		Stages:  names(kindStage),
		Inputs:  names(kindInput),
		Sources: names(kindSource),
	}
}

// ValidateStageOptions validates a stage's options against its schema. A
// stage with no schema file is not an error here (Registry/Validate
// already rejects genuinely unknown stage names); an empty options object
// against a present schema is validated normally.
func (s *Set) ValidateStageOptions(name string, options json.RawMessage) error {
	return s.validate(kindStage, name, options)
}

// ValidateSourceOptions validates a source type's manifest-level options.
func (s *Set) ValidateSourceOptions(name string, options json.RawMessage) error {
	return s.validate(kindSource, name, options)
}

func (s *Set) validate(k kind, name string, options json.RawMessage) error {
	compiled, ok := s.schemas[k][name]
	if !ok {
		return nil
	}
	if len(options) == 0 {
		options = json.RawMessage("{}")
	}

	var v any
	if err := json.Unmarshal(options, &v); err != nil {
		return errs.Wrapf(ErrInvalid, "%s %q options: %w", k, name, err)
	}
	if err := compiled.Validate(v); err != nil {
		return errs.Wrapf(ErrInvalid, "%s %q: %w", k, name, err)
	}
	return nil
}
