package cmd

import (
	"encoding/json"
	"sort"
	"strings"
)

// parseValue reads a command-line value as JSON so that numbers, booleans
// and objects keep their type. Anything that is not valid JSON is taken as
// a plain string. Numbers stay json.Number so large integers are exact.
func parseValue(s string) any {
	var v any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return v
}

// formatValue prints strings bare and everything else as compact JSON.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "<unprintable>"
	}
	return string(raw)
}

// sortedKeys returns the sorted keys of a map.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
