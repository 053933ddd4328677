package fieldstore

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Names lists every field the checkout and copy operations read.
var Names = []string{
	"path",
	"url",
	"clean_working_copy",
	"force_build",
	"executable",
	"environment",
	"options",
	"composition",
	"composition_id",
	"minimum_version",
	"source",
	"destination",
	"revision",
	"message",
}

// LoadFile reads fields from a YAML (or JSON) document. The fields may sit at
// the top level or under a "fields" key.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fields file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fields file %s: %w", path, err)
	}
	if doc == nil {
		return map[string]any{}, nil
	}

	if nested, ok := doc["fields"]; ok {
		fields, ok := nested.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parse fields file %s: \"fields\" must be a mapping", path)
		}
		return fields, nil
	}
	return doc, nil
}

// FromEnv collects the fields supplied as INPUT_<NAME> variables. Empty
// values are treated as unset.
func FromEnv(lookup func(string) (string, bool)) map[string]any {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	fields := make(map[string]any)
	for _, name := range Names {
		value, ok := lookup(InputVariable(name))
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		fields[name] = value
	}
	return fields
}

// InputVariable returns the environment variable GitHub Actions uses for the
// input name.
func InputVariable(name string) string {
	return "INPUT_" + strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
}
