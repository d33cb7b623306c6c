package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// validValues maps known keys to their allowed values.
var validValues = map[string][]string{
	"theme": {ThemeDefault, ThemeDark, ThemeLight},
}

// validators maps known keys to type-specific checks. Each returns a
// message describing the problem, or "" if the value is acceptable.
var validators = map[string]func(any) string{
	"window.width":   positiveNumber,
	"window.height":  positiveNumber,
	"live2d.enabled": boolean,
	"language":       nonEmptyString,
}

// Validate checks all values in s for known keys. It returns an error
// describing every invalid value found, or nil if all values are valid.
// Unknown keys are always accepted.
func Validate(s Store) error {
	errs := Problems(s.All())
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
}

// Problems returns a sorted list of validation messages for values.
func Problems(values map[string]any) []string {
	var errs []string

	for key, allowed := range validValues {
		val, ok := values[key]
		if !ok {
			continue
		}
		str, isString := val.(string)
		if !isString || !contains(allowed, str) {
			errs = append(errs, fmt.Sprintf(
				"%s: invalid value %v (allowed: %s)",
				key, formatValue(val), strings.Join(allowed, ", ")))
		}
	}

	for key, check := range validators {
		val, ok := values[key]
		if !ok {
			continue
		}
		if msg := check(val); msg != "" {
			errs = append(errs, fmt.Sprintf("%s: %s", key, msg))
		}
	}

	sort.Strings(errs)
	return errs
}

func positiveNumber(v any) string {
	var n float64
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return fmt.Sprintf("must be a positive number, got %s", formatValue(v))
		}
		n = f
	case float64:
		n = x
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	default:
		return fmt.Sprintf("must be a positive number, got %s", formatValue(v))
	}
	if n <= 0 {
		return fmt.Sprintf("must be a positive number, got %s", formatValue(v))
	}
	return ""
}

func boolean(v any) string {
	if _, ok := v.(bool); !ok {
		return fmt.Sprintf("must be true or false, got %s", formatValue(v))
	}
	return ""
}

func nonEmptyString(v any) string {
	if s, ok := v.(string); !ok || s == "" {
		return fmt.Sprintf("must be a non-empty string, got %s", formatValue(v))
	}
	return ""
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
