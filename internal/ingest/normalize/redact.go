package normalize

import (
	"reflect"
	"strings"

	"swipestats-workers/internal/models"
)

// minRedactLen is the shortest vendor id scrubbed from free text. Shorter ids cannot be told
// apart from ordinary words.
const minRedactLen = 8

// redactVendorID replaces every standalone occurrence of vendorID in the profile's string fields
// with the profile key. Vendor media URLs embed the account id as a path segment.
func redactVendorID(p *models.NormalizedProfile, vendorID string) {
	if len(vendorID) < minRedactLen {
		return
	}
	redactValue(reflect.ValueOf(p), vendorID, p.ProfileID)
}

func redactValue(v reflect.Value, vendorID, replacement string) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if !v.IsNil() {
			redactValue(v.Elem(), vendorID, replacement)
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); f.CanSet() {
				redactValue(f, vendorID, replacement)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			redactValue(v.Index(i), vendorID, replacement)
		}
	case reflect.String:
		if v.CanSet() && strings.Contains(v.String(), vendorID) {
			v.SetString(replaceToken(v.String(), vendorID, replacement))
		}
	}
}

// replaceToken replaces occurrences of token that are not embedded in a longer alphanumeric run.
func replaceToken(s, token, replacement string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, token)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := i + len(token)
		if isWordByte(s, i-1) || isWordByte(s, end) {
			b.WriteString(s[:end])
		} else {
			b.WriteString(s[:i])
			b.WriteString(replacement)
		}
		s = s[end:]
	}
}

func isWordByte(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
