package keyword

// EditDistance returns the optimal-string-alignment Damerau-Levenshtein distance between a
// and b: insertions, deletions, substitutions and adjacent transpositions each cost one.
func EditDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Three rolling rows: two back (transpositions), previous, current.
	twoBack := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				curr[j] = min(curr[j], twoBack[j-2]+cost)
			}
		}
		twoBack, prev, curr = prev, curr, twoBack
	}
	return prev[len(rb)]
}

// WithinDistance reports whether a and b are at most maxDist edits apart.
func WithinDistance(a, b string, maxDist int) bool {
	la, lb := len([]rune(a)), len([]rune(b))
	if la-lb > maxDist || lb-la > maxDist {
		return false
	}
	return EditDistance(a, b) <= maxDist
}
