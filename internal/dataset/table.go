package dataset

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Predicate selects rows of a table.
type Predicate[T any] func(row T) bool

// And composes predicates; a row passes only when every predicate accepts it.
func And[T any](preds ...Predicate[T]) Predicate[T] {
	return func(row T) bool {
		for _, pred := range preds {
			if pred != nil && !pred(row) {
				return false
			}
		}
		return true
	}
}

// Table is an immutable, ordered sequence of rows.
// Operations never mutate the receiver; they return new tables.
type Table[T any] struct {
	rows []T
}

// New builds a table from rows. The slice is copied.
func New[T any](rows []T) Table[T] {
	if len(rows) == 0 {
		return Table[T]{}
	}
	copied := make([]T, len(rows))
	copy(copied, rows)
	return Table[T]{rows: copied}
}

// Len returns the number of rows.
func (t Table[T]) Len() int { return len(t.rows) }

// IsEmpty reports whether the table has no rows.
func (t Table[T]) IsEmpty() bool { return len(t.rows) == 0 }

// Rows returns a copy of the rows in table order.
func (t Table[T]) Rows() []T {
	result := make([]T, len(t.rows))
	copy(result, t.rows)
	return result
}

// Filter returns the rows accepted by all predicates, keeping their order.
func (t Table[T]) Filter(preds ...Predicate[T]) Table[T] {
	match := And(preds...)
	result := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		if match(row) {
			result = append(result, row)
		}
	}
	return Table[T]{rows: result}
}

// OrderBy returns a stably sorted copy of the table.
func (t Table[T]) OrderBy(less func(a, b T) bool) Table[T] {
	sorted := t.Rows()
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	return Table[T]{rows: sorted}
}

// Partition splits the table into at most n contiguous, non-empty parts.
func (t Table[T]) Partition(n int) []Table[T] {
	if len(t.rows) == 0 {
		return nil
	}
	if n <= 1 {
		return []Table[T]{t}
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	size := (len(t.rows) + n - 1) / n
	parts := make([]Table[T], 0, n)
	for start := 0; start < len(t.rows); start += size {
		end := start + size
		if end > len(t.rows) {
			end = len(t.rows)
		}
		parts = append(parts, Table[T]{rows: t.rows[start:end:end]})
	}
	return parts
}

// GroupSum sums value over the rows sharing the same key.
func GroupSum[T any, K comparable](t Table[T], key func(T) K, value func(T) decimal.Decimal) map[K]decimal.Decimal {
	sums := make(map[K]decimal.Decimal)
	for _, row := range t.rows {
		k := key(row)
		sums[k] = sums[k].Add(value(row))
	}
	return sums
}

// MergeSums adds the partial sums of src into dst.
func MergeSums[K comparable](dst, src map[K]decimal.Decimal) {
	for k, v := range src {
		dst[k] = dst[k].Add(v)
	}
}
