package match

// Best tracks the highest-scoring candidate offered to it. A candidate
// replaces the current best only with a strictly greater score, so ties
// keep the first one seen. The zero value is ready to use.
type Best[T any] struct {
	item  T
	score float64
	found bool
}

// Offer considers candidate with the given score and reports whether it
// became the new best.
func (b *Best[T]) Offer(candidate T, score float64) bool {
	if b.found && score <= b.score {
		return false
	}
	b.item = candidate
	b.score = score
	b.found = true
	return true
}

// Get returns the best candidate and its score. ok is false when nothing
// has been offered.
func (b *Best[T]) Get() (item T, score float64, ok bool) {
	return b.item, b.score, b.found
}

// Accepted reports whether the best candidate clears Threshold.
func (b *Best[T]) Accepted() bool {
	return b.found && Accept(b.score)
}
