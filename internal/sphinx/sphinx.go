// Package sphinx lists the directive and role names Sphinx adds on top of
// plain reStructuredText. Linting a Sphinx project with these names
// ignored keeps them from being reported as unknown.
package sphinx

import "slices"

var baseDirectives = []string{
	"autosummary",
	"centered",
	"currentmodule",
	"deprecated",
	"hlist",
	"include",
	"index",
	"literalinclude",
	"no-code-block",
	"seealso",
	"toctree",
	"todo",
	"versionadded",
	"versionchanged",
}

var baseRoles = []string{
	"ctype",
}

// BaseDirectives returns the Sphinx directive names, sorted.
func BaseDirectives() []string {
	return slices.Clone(baseDirectives)
}

// BaseRoles returns the Sphinx role names, sorted.
func BaseRoles() []string {
	return slices.Clone(baseRoles)
}

// Merge joins name lists in order and drops repeats and empty names.
func Merge(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, name := range list {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
