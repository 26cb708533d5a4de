package domain

import "strings"

// NormalizeKey canonicalizes a make/model pair into the join key shared by the
// catalog, the variant deduplicator, and the sales-popularity table: lowercase,
// every run of non-alphanumeric characters collapsed to a single underscore,
// leading and trailing underscores trimmed.
func NormalizeKey(make, model string) string {
	raw := strings.ToLower(make + "_" + model)
	var b strings.Builder
	b.Grow(len(raw))
	lastUnderscore := false
	for _, r := range raw {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
