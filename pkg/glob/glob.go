// Package glob implements Redis style glob matching for key and parameter
// names.
//
// Supported syntax:
//
//	*      any sequence, including the empty one and '/'
//	?      any single byte
//	[abc]  one byte from the set; [^abc] negates; [a-z] ranges
//	\x     the literal byte x
//
// Classes follow Redis: a ']' right after '[' or "[^" closes an empty
// class, and an unclosed class runs to the end of the pattern.
package glob

// Match reports whether s matches pattern. Matching is byte oriented and
// case-sensitive.
func Match(pattern, s string) bool {
	return match(pattern, s, false)
}

// MatchFold is Match with ASCII case folding.
func MatchFold(pattern, s string) bool {
	return match(pattern, s, true)
}

func match(p, s string, fold bool) bool {
	// Backtracking point for the most recent '*'.
	starP, starS := -1, -1
	pi, si := 0, 0

	for si < len(s) {
		if pi < len(p) {
			switch p[pi] {
			case '*':
				for pi < len(p) && p[pi] == '*' {
					pi++
				}
				if pi == len(p) {
					return true
				}
				starP, starS = pi, si
				continue

			case '?':
				pi++
				si++
				continue

			case '[':
				if ok, next := matchClass(p, pi, s[si], fold); ok {
					pi = next
					si++
					continue
				}

			case '\\':
				if pi+1 < len(p) {
					if equal(p[pi+1], s[si], fold) {
						pi += 2
						si++
						continue
					}
				} else if s[si] == '\\' {
					pi++
					si++
					continue
				}

			default:
				if equal(p[pi], s[si], fold) {
					pi++
					si++
					continue
				}
			}
		}

		if starP < 0 {
			return false
		}
		starS++
		pi, si = starP, starS
	}

	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// matchClass evaluates the bracket expression starting at p[start] and
// returns the index just past it. Range ends are taken literally.
func matchClass(p string, start int, c byte, fold bool) (ok bool, next int) {
	i := start + 1
	negate := i < len(p) && p[i] == '^'
	if negate {
		i++
	}

	matched := false
	for ; i < len(p) && p[i] != ']'; i++ {
		switch {
		case p[i] == '\\' && i+1 < len(p):
			i++
			if p[i] == c {
				matched = true
			}
		case i+2 < len(p) && p[i+1] == '-':
			if inRange(c, p[i], p[i+2], fold) {
				matched = true
			}
			i += 2
		default:
			if equal(p[i], c, fold) {
				matched = true
			}
		}
	}
	if i < len(p) {
		i++
	}
	return matched != negate, i
}

func inRange(c, lo, hi byte, fold bool) bool {
	if lo > hi {
		lo, hi = hi, lo
	}
	if fold {
		c, lo, hi = lower(c), lower(lo), lower(hi)
	}
	return c >= lo && c <= hi
}

func equal(a, b byte, fold bool) bool {
	if a == b {
		return true
	}
	return fold && lower(a) == lower(b)
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
