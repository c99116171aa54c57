package canon

import (
	"regexp"
	"strings"
	"unicode"
)

var reSpace = regexp.MustCompile(`\s+`)

// Name trims a restaurant name and collapses inner whitespace. Case is kept.
func Name(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

// Key is the identity used to spot duplicate names in one run.
func Key(s string) string {
	return strings.ToLower(Name(s))
}

// Names canonicalizes a list, dropping empties and case-insensitive duplicates.
// First spelling wins and order is kept.
func Names(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		n := Name(raw)
		if n == "" {
			continue
		}
		k := Key(n)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out
}

// LikePattern escapes s for a SQL LIKE/ILIKE substring match using '\' as
// the escape character.
func LikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
