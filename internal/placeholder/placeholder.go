// Package placeholder substitutes deterministic sample values for {{Token}}
// spans in generated query templates.
package placeholder

import "regexp"

// Table maps placeholder token names to sample values. Tables are plain
// values passed explicitly into Normalize so callers (and tests) can supply
// their own without touching shared state.
type Table map[string]string

// tokenRe matches a full {{Name}} span. Partial delimiters and anything that
// is not a bare identifier between the braces are left alone.
var tokenRe = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// Result is the outcome of normalizing one template.
type Result struct {
	// Query is the template with every recognized token substituted.
	Query string
	// Unresolved lists token names that had no entry in the table, in first
	// occurrence order, deduplicated. Unresolved tokens stay verbatim in
	// Query; they are never silently replaced with an empty string.
	Unresolved []string
}

// Resolved reports whether every token in the template was substituted.
func (r Result) Resolved() bool {
	return len(r.Unresolved) == 0
}

// Normalize replaces every recognized {{Token}} span in template with the
// table's sample value. It is pure: same template and table always produce
// byte-identical output, and normalizing an already fully resolved template
// returns it unchanged.
func Normalize(template string, table Table) Result {
	var unresolved []string
	seen := make(map[string]bool)

	out := tokenRe.ReplaceAllStringFunc(template, func(span string) string {
		name := span[2 : len(span)-2]
		if value, ok := table[name]; ok {
			return value
		}
		if !seen[name] {
			seen[name] = true
			unresolved = append(unresolved, name)
		}
		return span
	})

	return Result{Query: out, Unresolved: unresolved}
}
