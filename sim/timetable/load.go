package timetable

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a problem instance. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON.
func Load(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading problem instance: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return DecodeJSON(data)
	}
}

// DecodeJSON parses a JSON problem instance.
func DecodeJSON(data []byte) (*Instance, error) {
	var inst Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("parsing problem instance: %w", err)
	}
	return &inst, nil
}

// DecodeYAML parses a YAML problem instance.
func DecodeYAML(data []byte) (*Instance, error) {
	var inst Instance
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&inst); err != nil {
		return nil, fmt.Errorf("parsing problem instance: %w", err)
	}
	return &inst, nil
}
