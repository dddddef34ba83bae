// Package mods lists the mods a ruleset offers and the settings each accepts.
package mods

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"osupp/engine"
	"osupp/ruleset"
)

// SettingType is the kind of value a mod setting takes.
type SettingType string

const (
	Bool   SettingType = "bool"
	Number SettingType = "number"
	String SettingType = "string"
)

// UnknownTypeError reports a setting whose engine type has no mapping. It
// means the mapping table needs a new entry.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type: %s", e.Type)
}

var typeMap = map[string]SettingType{
	"System.Int32":   Number,
	"System.Double":  Number,
	"System.Single":  Number,
	"System.Decimal": Number,
	"System.Boolean": Bool,
	"System.String":  String,
}

const nullablePrefix = "System.Nullable`1["

// MapType maps an engine type name to a SettingType. Nullable wrappers are
// unwrapped first; enumerations map to String. An empty type name maps to
// String as well.
func MapType(name string, isEnum bool) (SettingType, error) {
	if name == "" {
		return String, nil
	}
	if inner, ok := strings.CutPrefix(name, nullablePrefix); ok {
		name = strings.TrimSuffix(inner, "]")
		// assembly-qualified arguments look like [System.Int32, System.Private.CoreLib, ...]
		name = strings.TrimPrefix(name, "[")
		if i := strings.IndexByte(name, ','); i >= 0 {
			name = name[:i]
		}
	}
	if t, ok := typeMap[name]; ok {
		return t, nil
	}
	if isEnum {
		return String, nil
	}
	return "", &UnknownTypeError{Type: name}
}

type Setting struct {
	Name        string      `json:"name"`
	Type        SettingType `json:"type"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
}

type Info struct {
	Acronym  string    `json:"acronym"`
	Settings []Setting `json:"settings"`
}

// List returns every mod of rs with its settings.
func List(ctx context.Context, eng engine.Engine, rs ruleset.ID) ([]Info, error) {
	descs, err := eng.ModSettings(ctx, rs)
	if err != nil {
		return nil, fmt.Errorf("mod settings for %s: %w", rs, err)
	}
	out := make([]Info, 0, len(descs))
	for _, d := range descs {
		info := Info{Acronym: d.Acronym, Settings: make([]Setting, 0, len(d.Settings))}
		for _, s := range d.Settings {
			t, err := MapType(s.Type, s.IsEnum)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", d.Acronym, s.Name, err)
			}
			info.Settings = append(info.Settings, Setting{
				Name:        SnakeCase(s.Name),
				Type:        t,
				Label:       s.Label,
				Description: s.Description,
			})
		}
		out = append(out, info)
	}
	return out, nil
}

// SnakeCase turns a property name like NoSliderHeadAccuracy into
// no_slider_head_accuracy. Runs of capitals stay together: HPDrain becomes
// hp_drain.
func SnakeCase(s string) string {
	rs := []rune(s)
	var sb strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := rs[i-1]
				nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sb.WriteByte('_')
				}
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
