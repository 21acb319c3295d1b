// Package agents canonicalizes free-text contributor names into stable Agent
// entities using authority lookups and fuzzy matching.
package agents

import (
	"regexp"
	"strings"
)

// CleanedName is the outcome of cleaning a raw contributor string.
type CleanedName struct {
	Name      string
	BirthDate string
	DeathDate string
	Roles     []string
}

var (
	enclosingBracketsRe = regexp.MustCompile(`^\[(.+)\]$`)
	roleListRe          = regexp.MustCompile(`\[([^\[\]]+)\]`)
	lifespanRe          = regexp.MustCompile(`,?\s*\(?(\d{4})\s*-\s*(\d{4})?\)?\.?\s*$`)
)

// CleanName extracts lifespan dates and bracketed roles from a raw
// contributor string and strips enclosing brackets and edge punctuation.
// Pure string manipulation, no I/O.
//
// "Shakespeare, William, 1564-1616" yields name "Shakespeare, William" with
// birth 1564 and death 1616; "Doe, Jane [editor; illustrator]" yields name
// "Doe, Jane" with those two roles. When neither the string nor the caller
// supplies roles, the role defaults to "author".
func CleanName(raw string, callerRoles []string) CleanedName {
	cleaned := CleanedName{}
	name := strings.TrimSpace(raw)

	if m := enclosingBracketsRe.FindStringSubmatch(name); m != nil && !strings.Contains(m[1], "]") {
		name = strings.TrimSpace(m[1])
	}

	if m := roleListRe.FindStringSubmatch(name); m != nil {
		for _, role := range strings.Split(m[1], ";") {
			role = strings.ToLower(strings.TrimSpace(role))
			if role != "" {
				cleaned.Roles = append(cleaned.Roles, role)
			}
		}
		name = strings.TrimSpace(strings.Replace(name, m[0], "", 1))
	}

	if m := lifespanRe.FindStringSubmatch(name); m != nil {
		cleaned.BirthDate = m[1]
		cleaned.DeathDate = m[2]
		name = strings.TrimSpace(strings.TrimSuffix(name, m[0]))
	}

	// Trailing periods are kept since they usually close an initial.
	name = strings.Trim(name, " \t,;:")
	cleaned.Name = name

	if len(cleaned.Roles) == 0 {
		cleaned.Roles = normalizeRoles(callerRoles)
	}
	if len(cleaned.Roles) == 0 {
		cleaned.Roles = []string{"author"}
	}

	return cleaned
}

func normalizeRoles(roles []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}
