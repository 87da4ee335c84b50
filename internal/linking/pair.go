package linking

// Pair is an unordered pair of note ids in canonical order.
type Pair struct {
	Left  string
	Right string
}

// NormalizePair orders a and b so that Left <= Right.
func NormalizePair(a, b string) Pair {
	if a < b {
		return Pair{Left: a, Right: b}
	}
	return Pair{Left: b, Right: a}
}

// Key identifies the pair in dedup maps.
func (p Pair) Key() string {
	return p.Left + "__" + p.Right
}

// Other returns the endpoint opposite to id.
func (p Pair) Other(id string) string {
	if p.Left == id {
		return p.Right
	}
	return p.Left
}
