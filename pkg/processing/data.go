package processing

import (
	"fmt"
	"maps"
	"os"

	"github.com/systemstart/piper/pkg/api"
	"gopkg.in/yaml.v3"
)

// LoadTemplateData reads extra template data from a YAML mapping. An empty
// file yields empty data.
func LoadTemplateData(filename string) (map[string]any, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: reading template data: %w", api.ErrConfiguration, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing template data %s: %w", api.ErrConfiguration, filename, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Tag == "!!null" {
		return map[string]any{}, nil
	}
	if root := doc.Content[0]; root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: template data %s: line %d: top level must be a mapping",
			api.ErrConfiguration, filename, root.Line)
	}

	data := map[string]any{}
	if err := doc.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decoding template data %s: %w", api.ErrConfiguration, filename, err)
	}
	return data, nil
}

// templateData lays the run's built-in keys over user supplied data.
func templateData(extra, builtins map[string]any) map[string]any {
	data := maps.Clone(extra)
	if data == nil {
		data = make(map[string]any, len(builtins))
	}
	maps.Copy(data, builtins)
	return data
}
