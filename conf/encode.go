package conf

import (
	"fmt"
	"strings"
)

// Encode renders a value as option text. ok is false when the value means absence
// (nil, a blank string or an empty list), in which case the option should be deleted.
//
// Booleans render as "true" and "false", lists as their items joined by ", ".
func Encode(value any) (s string, ok bool) {
	if isList(value) {
		items := EncodeItems(value)
		if len(items) == 0 {
			return "", false
		}
		return strings.Join(items, ", "), true
	}
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}
	// Parsed values never carry surrounding whitespace.
	s = strings.TrimSpace(s)
	return s, s != ""
}

// EncodeItems encodes each item of a list value, skipping absent ones.
// A scalar value is treated as a list of one.
func EncodeItems(value any) []string {
	var items []any
	switch v := value.(type) {
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []int:
		for _, i := range v {
			items = append(items, i)
		}
	case []any:
		items = v
	default:
		items = []any{value}
	}
	var out []string
	for _, item := range items {
		if isList(item) {
			continue
		}
		if s, ok := Encode(item); ok {
			out = append(out, s)
		}
	}
	return out
}

func isList(value any) bool {
	switch value.(type) {
	case []string, []int, []any:
		return true
	}
	return false
}

// SplitList decodes a list value written by Encode.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
