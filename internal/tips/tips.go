// Package tips loads the tips shown when a game is complete.
package tips

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed tips.yaml
var defaultTips []byte

type file struct {
	Tips []string `yaml:"tips"`
}

// Default returns the built-in tip list.
func Default() []string {
	list, err := Parse(defaultTips)
	if err != nil {
		panic("tips: invalid embedded tips.yaml: " + err.Error())
	}
	return list
}

// Parse decodes a YAML document with a top-level "tips" list.
func Parse(data []byte) ([]string, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode tips: %w", err)
	}

	list := make([]string, 0, len(f.Tips))
	for _, t := range f.Tips {
		if t != "" {
			list = append(list, t)
		}
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("decode tips: no tips defined")
	}
	return list, nil
}

// Load reads tips from path, falling back to the built-in list when path is empty.
func Load(path string) ([]string, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tips file: %w", err)
	}
	return Parse(data)
}
