package normalize

import (
	"strings"

	"swipestats-workers/internal/models"
)

var genderValues = map[string]models.Gender{
	"m":          models.GenderMale,
	"male":       models.GenderMale,
	"man":        models.GenderMale,
	"f":          models.GenderFemale,
	"female":     models.GenderFemale,
	"woman":      models.GenderFemale,
	"other":      models.GenderOther,
	"non-binary": models.GenderOther,
	"nonbinary":  models.GenderOther,
	"non binary": models.GenderOther,
	"more":       models.GenderMore,
}

// normalizeGender maps a vendor gender string onto the closed enumeration. Unrecognized values are Unknown.
func normalizeGender(s string) models.Gender {
	if g, ok := genderValues[strings.ToLower(strings.TrimSpace(s))]; ok {
		return g
	}
	return models.GenderUnknown
}

var preferenceValues = map[string]models.Preference{
	"m":             models.PreferenceMale,
	"male":          models.PreferenceMale,
	"men":           models.PreferenceMale,
	"f":             models.PreferenceFemale,
	"female":        models.PreferenceFemale,
	"women":         models.PreferenceFemale,
	"m and f":       models.PreferenceEveryone,
	"f and m":       models.PreferenceEveryone,
	"both":          models.PreferenceEveryone,
	"everyone":      models.PreferenceEveryone,
	"men and women": models.PreferenceEveryone,
}

func normalizePreference(s string) models.Preference {
	if p, ok := preferenceValues[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p
	}
	return models.PreferenceUnknown
}

// nonNegative treats negative vendor counters as missing.
func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
