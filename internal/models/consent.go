// internal/models/consent.go
package models

// ConsentCategory names a category of exported data the user may withhold.
type ConsentCategory string

const (
	ConsentPhotos   ConsentCategory = "sharePhotos"
	ConsentWorkInfo ConsentCategory = "shareWorkInfo"
	ConsentMatches  ConsentCategory = "shareMatches"
	ConsentMessages ConsentCategory = "shareMessages"
	ConsentPrompts  ConsentCategory = "sharePrompts"
)

// ConsentCategories lists every category the consent filter knows about.
var ConsentCategories = []ConsentCategory{
	ConsentPhotos,
	ConsentWorkInfo,
	ConsentMatches,
	ConsentMessages,
	ConsentPrompts,
}

// Tinder upload form flags.
var consentAliases = map[string]ConsentCategory{
	"photos": ConsentPhotos,
	"work":   ConsentWorkInfo,
}

// ConsentDeclaration holds the flags captured at upload time. Unknown keys are ignored.
type ConsentDeclaration map[string]bool

// Grants reports whether the category may be kept. A category is withheld when its flag or any
// alias of it is explicitly false; absent flags grant.
func (c ConsentDeclaration) Grants(cat ConsentCategory) bool {
	if v, ok := c[string(cat)]; ok && !v {
		return false
	}
	for alias, target := range consentAliases {
		if target != cat {
			continue
		}
		if v, ok := c[alias]; ok && !v {
			return false
		}
	}
	return true
}

// Withheld returns the categories the declaration removes, in ConsentCategories order.
func (c ConsentDeclaration) Withheld() []ConsentCategory {
	var out []ConsentCategory
	for _, cat := range ConsentCategories {
		if !c.Grants(cat) {
			out = append(out, cat)
		}
	}
	return out
}
