// Package dictconfig loads the ordered map list and max_pattern_fields_count
// bound described by the config contract in §6, the way the teacher's
// database.ParseGeneratorConfig loads its YAML generator config.
package dictconfig

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sqldef/dictsql/dict"
)

type fieldYAML struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type mapYAML struct {
	Pattern       string      `yaml:"pattern"`
	Table         string      `yaml:"table"`
	PatternFields []fieldYAML `yaml:"pattern_fields"`
	ValueField    string      `yaml:"value_field"`
	ValueTypes    []string    `yaml:"value_types"`
	UsernameField string      `yaml:"username_field"`
	ExpireField   string      `yaml:"expire_field"`
}

type configYAML struct {
	MaxPatternFieldsCount int       `yaml:"max_pattern_fields_count"`
	Maps                  []mapYAML `yaml:"maps"`
}

// Config is the loaded, validated map list (§3, §6).
type Config struct {
	Maps                  []*dict.Map
	MaxPatternFieldsCount int
}

// Load reads and validates the map list from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and converts raw YAML bytes into a Config.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)

	var raw configYAML
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	maps := make([]*dict.Map, 0, len(raw.Maps))
	for i, rm := range raw.Maps {
		m, err := convertMap(rm)
		if err != nil {
			return nil, fmt.Errorf("map[%d] (%s): %w", i, rm.Pattern, err)
		}
		maps = append(maps, m)
	}

	return &Config{Maps: maps, MaxPatternFieldsCount: raw.MaxPatternFieldsCount}, nil
}

func convertMap(rm mapYAML) (*dict.Map, error) {
	fields := make([]dict.Field, len(rm.PatternFields))
	for i, f := range rm.PatternFields {
		t, err := parseType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("pattern_fields[%d]: %w", i, err)
		}
		fields[i] = dict.Field{Name: f.Name, Type: t}
	}

	if dollars := strings.Count(rm.Pattern, "$"); dollars != len(fields) {
		return nil, fmt.Errorf("pattern has %d '$' but pattern_fields has %d entries", dollars, len(fields))
	}

	valueTypes := make([]dict.Type, len(rm.ValueTypes))
	for i, vt := range rm.ValueTypes {
		t, err := parseType(vt)
		if err != nil {
			return nil, fmt.Errorf("value_types[%d]: %w", i, err)
		}
		valueTypes[i] = t
	}
	if cols := strings.Split(rm.ValueField, ","); len(cols) != len(valueTypes) {
		return nil, fmt.Errorf("value_field has %d columns but value_types has %d entries", len(cols), len(valueTypes))
	}

	return &dict.Map{
		Pattern:       rm.Pattern,
		Table:         rm.Table,
		PatternFields: fields,
		ValueField:    rm.ValueField,
		ValueTypes:    valueTypes,
		UsernameField: rm.UsernameField,
		ExpireField:   rm.ExpireField,
	}, nil
}

func parseType(s string) (dict.Type, error) {
	switch strings.ToUpper(s) {
	case "STRING":
		return dict.TypeString, nil
	case "INT":
		return dict.TypeInt, nil
	case "UINT":
		return dict.TypeUint, nil
	case "DOUBLE":
		return dict.TypeDouble, nil
	case "UUID":
		return dict.TypeUUID, nil
	case "HEXBLOB":
		return dict.TypeHexblob, nil
	default:
		return 0, fmt.Errorf("unknown type %q", s)
	}
}
