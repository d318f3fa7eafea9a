package playlist

// Next returns the index after i in a ring of n entries.
// n must be greater than zero; callers guard the empty case.
func Next(i, n int) int {
	return (i + 1) % n
}

// Prev returns the index before i in a ring of n entries.
// n must be greater than zero; callers guard the empty case.
func Prev(i, n int) int {
	return (i - 1 + n) % n
}
