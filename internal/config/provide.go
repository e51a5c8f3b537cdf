package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ProvideEntry is one element of a challenge's provide list. It takes one
// of three shapes in the config file:
//
//   - a bare path string: provide the file under its own basename
//   - a {file, as} mapping: provide the file under an explicit name
//   - a {kind, spec} mapping: dispatch to a registered asset source
//
// Exactly one of Kind or File is set after unmarshalling. For kind entries
// the spec document is kept as a yaml.Node so each asset source can decode
// its own spec type.
type ProvideEntry struct {
	File string
	As   string
	Kind string
	Spec *yaml.Node
}

type provideRecord struct {
	File string    `yaml:"file"`
	As   string    `yaml:"as"`
	Kind string    `yaml:"kind"`
	Spec yaml.Node `yaml:"spec"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *ProvideEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var path string
		if err := value.Decode(&path); err != nil {
			return fmt.Errorf("provide entry: %s: %w", err, ErrInvalid)
		}
		if path == "" {
			return fmt.Errorf("provide entry: path must not be empty: %w", ErrInvalid)
		}
		*p = ProvideEntry{File: path}
		return nil
	case yaml.MappingNode:
		var rec provideRecord
		if err := value.Decode(&rec); err != nil {
			return fmt.Errorf("provide entry: %s: %w", err, ErrInvalid)
		}
		if rec.Kind != "" {
			if rec.File != "" {
				return fmt.Errorf("provide entry: kind and file are mutually exclusive: %w", ErrInvalid)
			}
			if rec.Spec.IsZero() {
				return fmt.Errorf("provide entry (kind %q): spec is required: %w", rec.Kind, ErrInvalid)
			}
			spec := rec.Spec
			*p = ProvideEntry{Kind: rec.Kind, Spec: &spec}
			return nil
		}
		if rec.File == "" {
			return fmt.Errorf("provide entry: file or kind is required: %w", ErrInvalid)
		}
		if rec.As == "" {
			return fmt.Errorf("provide entry (file %q): as is required: %w", rec.File, ErrInvalid)
		}
		*p = ProvideEntry{File: rec.File, As: rec.As}
		return nil
	default:
		return fmt.Errorf("provide entry: expected string or mapping: %w", ErrInvalid)
	}
}
