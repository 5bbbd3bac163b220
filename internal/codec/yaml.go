// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// yaml.go — YAML codec wrapping gopkg.in/yaml.v3; the default serializer for
// Object-tagged attribute values. Nested maps, sequences and scalars decode
// back without any external schema.

package codec

import "gopkg.in/yaml.v3"

// YAML serializes with gopkg.in/yaml.v3.
type YAML struct{}

// Marshal serializes v to a YAML document.
func (YAML) Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// Unmarshal deserializes a YAML document into v.
func (YAML) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

// Name returns "yaml".
func (YAML) Name() string { return "yaml" }

// Default is the codec used for Object values when none is configured.
var Default Codec = YAML{}
