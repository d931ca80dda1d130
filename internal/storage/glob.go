package storage

// globMatch implements Redis-style glob matching (*, ?, [...] character
// classes, and \-escapes) used by KEYS and the *SCAN family's MATCH option.
func globMatch(pattern, text string) bool {
	return globMatchBytes([]byte(pattern), []byte(text))
}

// GlobMatch exports globMatch for callers outside the package (the
// dispatcher's HSCAN, which paginates an in-memory field map rather than
// going through a dedicated storage-level cursor).
func GlobMatch(pattern, text string) bool {
	return globMatch(pattern, text)
}

func globMatchBytes(pattern, text []byte) bool {
	var pi, ti int

	var starPi, starTi int = -1, -1

	for ti < len(text) {
		switch {
		case pi < len(pattern) && pattern[pi] == '*':
			starPi = pi
			starTi = ti
			pi++
		case pi < len(pattern) && pattern[pi] == '?':
			pi++
			ti++
		case pi < len(pattern) && pattern[pi] == '[':
			end, ok := findClassEnd(pattern, pi)
			if ok && matchClass(pattern[pi:end+1], text[ti]) {
				pi = end + 1
				ti++

				continue
			}

			if starPi == -1 {
				return false
			}

			starTi++
			ti = starTi
			pi = starPi + 1
		case pi < len(pattern) && pattern[pi] == '\\' && pi+1 < len(pattern):
			if pattern[pi+1] == text[ti] {
				pi += 2
				ti++
			} else if starPi == -1 {
				return false
			} else {
				starTi++
				ti = starTi
				pi = starPi + 1
			}
		case pi < len(pattern) && pattern[pi] == text[ti]:
			pi++
			ti++
		default:
			if starPi == -1 {
				return false
			}

			starTi++
			ti = starTi
			pi = starPi + 1
		}
	}

	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}

	return pi == len(pattern)
}

func findClassEnd(pattern []byte, start int) (int, bool) {
	i := start + 1
	if i < len(pattern) && pattern[i] == '^' {
		i++
	}

	for i < len(pattern) {
		if pattern[i] == ']' {
			return i, true
		}

		i++
	}

	return 0, false
}

func matchClass(class []byte, c byte) bool {
	negate := false
	inner := class[1 : len(class)-1]

	if len(inner) > 0 && inner[0] == '^' {
		negate = true
		inner = inner[1:]
	}

	matched := false

	for i := 0; i < len(inner); i++ {
		if i+2 < len(inner) && inner[i+1] == '-' {
			if inner[i] <= c && c <= inner[i+2] {
				matched = true
			}

			i += 2
		} else if inner[i] == c {
			matched = true
		}
	}

	return matched != negate
}
