package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonschema"
	"github.com/spf13/cast"

	"github.com/c360studio/semcoach/llm"
	"github.com/c360studio/semcoach/training"
)

// compileSchema compiles an embedded schema. The schemas are constants, so
// a failure is a programming error.
func compileSchema(src string) *jsonschema.Schema {
	schema, err := jsonschema.NewCompiler().Compile([]byte(src))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded schema: %v", err))
	}
	return schema
}

// decodeObject sanitizes a reply into a JSON object and validates it.
// When listKey is set and the reply is a bare array, the array is wrapped
// under that key.
func decodeObject(raw string, schema *jsonschema.Schema, listKey string) (map[string]any, error) {
	var m map[string]any
	if listKey != "" {
		if arr, ok := bareArray(raw); ok {
			m = map[string]any{listKey: arr}
		}
	}
	if m == nil {
		if err := llm.DecodeJSON(raw, &m); err != nil {
			return nil, err
		}
		if m == nil {
			return nil, llm.NewInvalidError(fmt.Errorf("response is not a JSON object"))
		}
	}
	if schema != nil {
		if err := validate(schema, m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// bareArray reports whether the reply is a top-level JSON array.
func bareArray(raw string) ([]any, bool) {
	arrStart := strings.IndexByte(raw, '[')
	objStart := strings.IndexByte(raw, '{')
	if arrStart < 0 || (objStart >= 0 && objStart < arrStart) {
		return nil, false
	}
	text := llm.ExtractJSONArray(raw)
	if text == "" {
		return nil, false
	}
	var arr []any
	if err := json.Unmarshal([]byte(text), &arr); err != nil {
		return nil, false
	}
	return arr, true
}

func validate(schema *jsonschema.Schema, data any) error {
	result := schema.Validate(data)
	if result.IsValid() {
		return nil
	}
	var msgs []string
	for field, e := range result.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, e.Message))
	}
	sort.Strings(msgs)
	return llm.NewInvalidError(fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; ")))
}

func obj(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	if v == nil {
		return map[string]any{}
	}
	return v
}

// first returns the value of the first present key.
func first(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func str(m map[string]any, keys ...string) string {
	v, _ := first(m, keys...)
	return strings.TrimSpace(cast.ToString(v))
}

func num(m map[string]any, keys ...string) float64 {
	v, _ := first(m, keys...)
	return training.Float(v)
}

// optNum returns nil unless one of the keys holds a usable number.
func optNum(m map[string]any, keys ...string) *float64 {
	v, ok := first(m, keys...)
	if !ok {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	f = training.Float(f)
	return &f
}

// dayIndex returns -1 when no key holds an integer index.
func dayIndex(m map[string]any, keys ...string) int {
	v, ok := first(m, keys...)
	if !ok {
		return -1
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return -1
	}
	return int(f)
}

func strList(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(cast.ToString(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	}
	return []string{}
}

func objList(m map[string]any, key string) []map[string]any {
	items, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if o, ok := item.(map[string]any); ok {
			out = append(out, o)
		}
	}
	return out
}

func zoneMix(m map[string]any) training.ZoneMix {
	return training.ZoneMix{
		Z1:    num(m, "z1", "zone1"),
		Z2:    num(m, "z2", "zone2"),
		Z3:    num(m, "z3", "zone3"),
		Speed: num(m, "speed", "z4"),
	}
}

// percentageThreshold is how far a zone mix may drift from 100 before it
// is rescaled.
const percentageThreshold = 10

// checkDays wraps a day index failure as invalid output.
func checkDays(n int, dayAt func(i int) int) error {
	if err := training.CheckDayIndices(n, dayAt); err != nil {
		return llm.NewInvalidError(err)
	}
	return nil
}

// Terse collapses a description onto one line and truncates it at a word
// boundary so it holds at most maxLen runes.
func Terse(desc string, maxLen int) string {
	desc = strings.Join(strings.Fields(desc), " ")
	if maxLen <= 0 || utf8.RuneCountInString(desc) <= maxLen {
		return desc
	}
	runes := []rune(desc)
	cut := string(runes[:maxLen])
	if runes[maxLen] != ' ' {
		if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i]
		}
	}
	return strings.TrimRight(cut, " +,;-")
}
