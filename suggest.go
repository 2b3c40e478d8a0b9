package jsoniq

import "github.com/agnivade/levenshtein"

// Suggest returns the candidate closest to name when it is close enough to
// be a plausible misspelling.
func Suggest(name Name, candidates []Name) (Name, bool) {
	var best Name
	bestDist := -1
	for _, c := range candidates {
		if c.Namespace != name.Namespace || c == name {
			continue
		}
		d := levenshtein.ComputeDistance(name.Local, c.Local)
		if d > 2 || d*2 > len(name.Local) {
			continue
		}
		if bestDist < 0 || d < bestDist || d == bestDist && CompareNames(c, best) < 0 {
			best, bestDist = c, d
		}
	}
	return best, bestDist >= 0
}

// DidYouMean returns a message suffix suggesting the closest candidate, or
// the empty string.
func DidYouMean(name Name, candidates []Name) string {
	if s, ok := Suggest(name, candidates); ok {
		return "; did you mean $" + s.String() + "?"
	}
	return ""
}
