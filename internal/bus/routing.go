package bus

import "strings"

// MatchRoutingKey implements the hierarchical wildcard matching spec §4.4
// and §9 ask for: a segment-by-segment comparator over a dot-separated
// routing key of the form {edition}.{domain}.{root_hex}, where `#`
// matches any remaining segments and `*` matches exactly one segment.
// Implemented locally rather than leaning on any one transport's native
// pattern syntax, per spec §9's design note.
func MatchRoutingKey(pattern, key string) bool {
	return matchSegments(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchSegments(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}

	head := pattern[0]

	switch head {
	case "#":
		if len(pattern) == 1 {
			return true
		}
		// # matches zero or more segments; try every split point.
		for i := 0; i <= len(key); i++ {
			if matchSegments(pattern[1:], key[i:]) {
				return true
			}
		}

		return false
	case "*":
		if len(key) == 0 {
			return false
		}

		return matchSegments(pattern[1:], key[1:])
	default:
		if len(key) == 0 || key[0] != head {
			return false
		}

		return matchSegments(pattern[1:], key[1:])
	}
}
