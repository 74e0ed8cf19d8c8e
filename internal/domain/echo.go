package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ParamField is one exported configuration value.
// Value is float64, int, int64, bool, string or nil.
type ParamField struct {
	Name  string
	Value any
}

// ParamsEcho is the fixed, ordered export view of a bot configuration.
// Run-state (active deals, rebuilt grid bounds) is never part of it.
type ParamsEcho struct {
	Version int
	BotType BotType
	Fields  []ParamField
}

// Lookup returns the value of the named field.
func (e ParamsEcho) Lookup(name string) (any, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Map returns the fields as a plain key/value map, suitable for
// feeding back into the params parser.
func (e ParamsEcho) Map() map[string]any {
	m := make(map[string]any, len(e.Fields))
	for _, f := range e.Fields {
		if f.Value != nil {
			m[f.Name] = f.Value
		}
	}
	return m
}

// StringValues returns every field string-encoded the way platform
// payloads expect: numbers as canonical decimals, bools as "true"/"false",
// nil fields omitted.
func (e ParamsEcho) StringValues() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		s, ok := FormatParamValue(f.Value)
		if !ok {
			continue
		}
		out[f.Name] = s
	}
	return out
}

// FormatParamValue renders a single echo value. ok is false for nil.
func FormatParamValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case float64:
		return decimal.NewFromFloat(x).String(), true
	case int:
		return decimal.NewFromInt(int64(x)).String(), true
	case int64:
		return decimal.NewFromInt(x).String(), true
	case bool:
		if x {
			return "true", true
		}
		return "false", true
	case string:
		return x, true
	default:
		return fmt.Sprint(x), true
	}
}

// MarshalJSON writes the echo with fields in their declared order:
// {"version":1,"bot_type":"dca","params":{...}}.
func (e ParamsEcho) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"version":%d,"bot_type":`, e.Version)
	bt, err := json.Marshal(string(e.BotType))
	if err != nil {
		return nil, err
	}
	buf.Write(bt)
	buf.WriteString(`,"params":{`)
	for i, f := range e.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal param %s: %w", f.Name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the layout written by MarshalJSON.
// Decoded fields are sorted by name.
func (e *ParamsEcho) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version int                        `json:"version"`
		BotType BotType                    `json:"bot_type"`
		Params  map[string]json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Version = raw.Version
	e.BotType = raw.BotType
	names := make([]string, 0, len(raw.Params))
	for name := range raw.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	e.Fields = make([]ParamField, 0, len(names))
	for _, name := range names {
		var v any
		if err := json.Unmarshal(raw.Params[name], &v); err != nil {
			return fmt.Errorf("unmarshal param %s: %w", name, err)
		}
		e.Fields = append(e.Fields, ParamField{Name: name, Value: v})
	}
	return nil
}
