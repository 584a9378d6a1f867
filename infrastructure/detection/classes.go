package detection

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrNoClasses indicates no class names could be found.
var ErrNoClasses = errors.New("no class names")

// LoadClasses reads class names from a YOLO dataset YAML file. The file
// holds a "names" key, either a list or an index map.
func LoadClasses(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classes: %w", err)
	}
	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse classes %s: %w", path, err)
	}
	if doc.Names.Kind == 0 {
		return nil, fmt.Errorf("%w: %s has no names key", ErrNoClasses, path)
	}
	return decodeNames(&doc.Names)
}

// ParseNames decodes a bare names value, such as the "names" entry an
// exported model carries in its metadata ("{0: 'door', 1: 'window'}").
func ParseNames(value string) ([]string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(value), &node); err != nil {
		return nil, fmt.Errorf("parse names: %w", err)
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		return decodeNames(node.Content[0])
	}
	return decodeNames(&node)
}

func decodeNames(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return nil, fmt.Errorf("decode names list: %w", err)
		}
		if len(names) == 0 {
			return nil, ErrNoClasses
		}
		return names, nil
	case yaml.MappingNode:
		var byIndex map[int]string
		if err := node.Decode(&byIndex); err != nil {
			return nil, fmt.Errorf("decode names map: %w", err)
		}
		if len(byIndex) == 0 {
			return nil, ErrNoClasses
		}
		keys := make([]int, 0, len(byIndex))
		for k := range byIndex {
			if k < 0 {
				return nil, fmt.Errorf("negative class index %d", k)
			}
			keys = append(keys, k)
		}
		sort.Ints(keys)
		names := make([]string, keys[len(keys)-1]+1)
		for k, v := range byIndex {
			names[k] = v
		}
		return names, nil
	default:
		return nil, fmt.Errorf("%w: names must be a list or a map", ErrNoClasses)
	}
}
