// Package sqltemplate renders physical-mapping query templates into
// executable, parameter-safe queries. Templates use {{param}} placeholders;
// binding always goes through the target engine's native positional
// parameters, never string interpolation.
package sqltemplate

import "regexp"

// placeholderRegex matches {{parameter_name}} placeholders in query
// templates. Names start with a letter or underscore, followed by
// alphanumerics or underscores.
var placeholderRegex = regexp.MustCompile(`\{\{([a-zA-Z_]\w*)\}\}`)

// ExtractPlaceholders finds all {{param}} placeholders in a template and
// returns a deduplicated list of names in order of first appearance.
func ExtractPlaceholders(template string) []string {
	matches := placeholderRegex.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var names []string
	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// PlaceholdersInStringLiterals returns placeholder names that appear inside
// single-quoted string literals. A placeholder inside a literal cannot be
// bound positionally; the engine would treat the rewritten marker as text.
// These templates are rejected rather than escaped.
func PlaceholdersInStringLiterals(template string) []string {
	var problems []string
	seen := make(map[string]bool)

	inString := false
	stringStart := 0
	i := 0

	for i < len(template) {
		ch := template[i]
		if ch == '\'' {
			if inString {
				// Escaped quote ('') stays inside the literal.
				if i+1 < len(template) && template[i+1] == '\'' {
					i += 2
					continue
				}
				content := template[stringStart+1 : i]
				for _, match := range placeholderRegex.FindAllStringSubmatch(content, -1) {
					name := match[1]
					if !seen[name] {
						seen[name] = true
						problems = append(problems, name)
					}
				}
				inString = false
			} else {
				inString = true
				stringStart = i
			}
		}
		i++
	}

	return problems
}
