package dict

import "strings"

// matchResult is the outcome of matching a pattern against a path (§4.1).
type matchResult struct {
	Matched          bool
	Values           []string
	PathPrefixLen    int
	PatternPrefixLen int
}

// matchPattern walks pattern and path in lockstep. partialOK allows the
// path to run out before the pattern does (used by iteration); recurse
// relaxes the "exactly one trailing $" requirement that applies to a
// partial match when iteration will not recurse into subtrees.
func matchPattern(pattern, path string, partialOK, recurse bool) matchResult {
	pi, si := 0, 0
	var values []string
	lastWasRemainder := false

	for pi < len(pattern) && si < len(path) {
		c := pattern[pi]
		if c != '$' {
			if path[si] != c {
				return matchResult{}
			}
			pi++
			si++
			lastWasRemainder = false
			continue
		}

		if pi+1 == len(pattern) {
			// Pattern ends right after this '$': it consumes whatever of
			// path remains, trailing slash included.
			values = append(values, path[si:])
			si = len(path)
			pi++
			lastWasRemainder = true
		} else {
			j := si
			for j < len(path) && path[j] != '/' {
				j++
			}
			values = append(values, path[si:j])
			si = j
			pi++
			lastWasRemainder = false
		}
	}

	// Partial-match special case: a "consume the rest" capture that ended
	// up with a trailing '/' is really an unfinished path segment, not a
	// bound value — trim it and un-consume the '$' so the match is
	// recognised as partial (§4.1).
	if partialOK && lastWasRemainder && len(values) > 0 && strings.HasSuffix(values[len(values)-1], "/") {
		values[len(values)-1] = strings.TrimSuffix(values[len(values)-1], "/")
		pi--
	}

	switch {
	case pi == len(pattern) && si == len(path):
		return matchResult{Matched: true, Values: values, PathPrefixLen: si, PatternPrefixLen: pi}
	case pi == len(pattern):
		// pattern exhausted but path has more: a longer key under this
		// pattern is not an exact match.
		return matchResult{}
	case si == len(path):
		if !partialOK {
			return matchResult{}
		}
		if !(pi == 0 || pattern[pi-1] == '/') {
			return matchResult{}
		}
		if !recurse {
			tail := pattern[pi:]
			if tail != "$" {
				return matchResult{}
			}
		}
		return matchResult{Matched: true, Values: values, PathPrefixLen: si, PatternPrefixLen: pi}
	default:
		return matchResult{}
	}
}

// findMap scans maps in order and returns the first exact match
// (partial_ok=false, recurse=false), along with its captured values.
// Order is significant: first-fit, not longest-match.
func findMap(maps []*Map, path string) (*Map, []string) {
	for _, m := range maps {
		res := matchPattern(m.Pattern, path, false, false)
		if res.Matched {
			return m, res.Values
		}
	}
	return nil, nil
}

// iterMatch is one candidate returned by findNextMapForIter.
type iterMatch struct {
	Map              *Map
	Index            int
	Values           []string
	PathPrefixLen    int
	PatternPrefixLen int
}

// findNextMapForIter scans maps[startIdx:] with partial_ok=true, looking
// for the next map an iteration over path can walk into. When !recurse it
// additionally requires at most one unbound pattern variable remains —
// i.e. the iteration is about to enumerate direct children, not grandchildren.
func findNextMapForIter(maps []*Map, path string, startIdx int, recurse bool) (iterMatch, bool) {
	for i := startIdx; i < len(maps); i++ {
		m := maps[i]
		res := matchPattern(m.Pattern, path, true, recurse)
		if !res.Matched {
			continue
		}
		if !recurse {
			unbound := len(m.PatternFields) - len(res.Values)
			if unbound > 1 {
				continue
			}
		}
		return iterMatch{
			Map:              m,
			Index:            i,
			Values:           res.Values,
			PathPrefixLen:    res.PathPrefixLen,
			PatternPrefixLen: res.PatternPrefixLen,
		}, true
	}
	return iterMatch{}, false
}
