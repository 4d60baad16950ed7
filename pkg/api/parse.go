package api

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a piper.yml file, sets Dir/FilePath, and validates it.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config file: %w", ErrConfiguration, err)
	}

	c, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	c.FilePath = absPath
	c.Dir = filepath.Dir(absPath)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", filename, err)
	}

	return c, nil
}

// ParseConfig unmarshals raw YAML without validating it.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: parsing config file: %w", ErrConfiguration, err)
	}
	return &c, nil
}

// UnmarshalYAML decodes a requirements mapping while keeping declaration
// order. A null value yields no requirements.
func (r *Requirements) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*r = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: requirements must be a mapping", node.Line)
	}

	reqs := make(Requirements, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		var req RequirementConfig
		if err := valueNode.Decode(&req); err != nil {
			return fmt.Errorf("requirement %q: %w", keyNode.Value, err)
		}
		req.Name = keyNode.Value
		reqs = append(reqs, req)
	}

	*r = reqs
	return nil
}
