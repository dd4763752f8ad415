package dsl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"resforge/internal/spec"
)

// LoadYAML reads a YAML spec file. The file holds either a document with
// `resources:` and `enums:` or a single resource at the top level.
func LoadYAML(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(data, path)
}

func ParseYAML(data []byte, source string) (*Document, error) {
	doc := &Document{Source: source}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		part := &Document{Source: source}
		if hasKey(&node, "resources") || hasKey(&node, "enums") {
			if err := decodeStrict(&node, part); err != nil {
				return nil, fmt.Errorf("%s: %w", source, err)
			}
		} else {
			var raw spec.Raw
			if err := decodeStrict(&node, &raw); err != nil {
				return nil, fmt.Errorf("%s: %w", source, err)
			}
			part.Resources = []spec.Raw{raw}
		}
		if err := doc.Merge(part); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// decodeStrict decodes node rejecting unknown keys; Node.Decode alone does
// not carry the decoder's KnownFields setting.
func decodeStrict(node *yaml.Node, out any) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

func hasKey(node *yaml.Node, key string) bool {
	n := node
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return true
		}
	}
	return false
}
