package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"swipestats-workers/internal/models"
)

// Accessors over decoded JSON. Each returns its zero value when the field is absent or of another type.

func obj(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]interface{})
	return v
}

func arr(m map[string]interface{}, key string) []interface{} {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]interface{})
	return v
}

func objects(list []interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if o, ok := item.(map[string]interface{}); ok {
			out = append(out, o)
		}
	}
	return out
}

func str(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	return toString(m[key])
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func strs(list []interface{}) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		var s string
		if o, ok := item.(map[string]interface{}); ok {
			s = str(o, "name")
		} else {
			s = toString(item)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func num(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return clampInt(t)
	case int:
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		if f, err := t.Float64(); err == nil {
			return clampInt(f)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return 0
}

// clampInt truncates f toward zero, saturating at the int range. NaN is 0.
func clampInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt
	case f <= math.MinInt64:
		return math.MinInt
	}
	return int(f)
}

func boolean(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	switch t := m[key].(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime accepts the timestamp layouts seen in vendor exports. Values without a zone are UTC.
// Unparseable values yield the zero time.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// usageDate reduces a vendor date key to YYYY-MM-DD, or "" when it is not a date.
func usageDate(key string) string {
	key = strings.TrimSpace(key)
	if len(key) < 10 {
		return ""
	}
	day := key[:10]
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return ""
	}
	return day
}

// ageAt returns whole years between birth and ref, or AgeUnknown when either is unknown or the result is implausible.
func ageAt(birth, ref time.Time) int {
	if birth.IsZero() || ref.IsZero() || ref.Before(birth) {
		return models.AgeUnknown
	}
	age := ref.Year() - birth.Year()
	if ref.Month() < birth.Month() || (ref.Month() == birth.Month() && ref.Day() < birth.Day()) {
		age--
	}
	if age > 130 {
		return models.AgeUnknown
	}
	return age
}
