package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// str reads a loosely typed scalar as a string.
func str(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

func boolean(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

func integer(v interface{}) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err == nil {
			return n
		}
		// "4 servings"
		if f := strings.Fields(t); len(f) > 0 {
			n, _ = strconv.Atoi(f[0])
		}
		return n
	}
	return 0
}

func timestamp(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t != nil {
			return *t
		}
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// textKeys are the fields tried, in order, when a list entry is an object
// instead of a plain string.
var textKeys = []string{"text", "step", "instruction", "name", "item", "ingredient", "description"}

// stringList normalizes the encodings seen for ingredient and instruction
// lists: []string, []interface{} mixing strings and objects, or a single
// newline separated string. The result is never nil.
func stringList(v interface{}) []string {
	out := []string{}
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []interface{}:
		for _, e := range t {
			if s := strings.TrimSpace(entryText(e)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, line := range strings.Split(t, "\n") {
			if s := strings.TrimSpace(line); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func entryText(e interface{}) string {
	m, ok := e.(map[string]interface{})
	if !ok {
		return str(e)
	}
	for _, k := range textKeys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			// {"quantity": "2", "name": "eggs"}
			if q := str(m["quantity"]); q != "" && (k == "name" || k == "item" || k == "ingredient") {
				return q + " " + s
			}
			return s
		}
	}
	return ""
}

func toInterfaces(list []string) []interface{} {
	out := make([]interface{}, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}

func object(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}
