package manifest

import (
	"math/rand/v2"
	"slices"

	"manifest-relay/internal/model"
)

// RandSource picks pivots. *rand.Rand satisfies it.
type RandSource interface {
	IntN(n int) int
}

type defaultSource struct{}

func (defaultSource) IntN(n int) int { return rand.IntN(n) }

// CompareRows orders by Time, then Res. Missing values sort first.
func CompareRows(a, b model.Row) int {
	if c := model.Compare(a.Get(FieldTime), b.Get(FieldTime)); c != 0 {
		return c
	}
	return model.Compare(a.Get(FieldRes), b.Get(FieldRes))
}

// Order sorts rows by (Time, Res.) with a randomized three-way quicksort
// over the keys and returns copies indexed 0..n-1, each ranked in "#".
// Rows that compare equal keep their key order. rng may be nil.
func Order(rows model.KeyedRows, rng RandSource) []model.Row {
	if rng == nil {
		rng = defaultSource{}
	}

	keys := make([]int, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	sorted := sortKeys(rows, keys, rng)

	out := make([]model.Row, len(sorted))
	for i, k := range sorted {
		row := rows[k].Clone()
		row[FieldRank] = model.Number(float64(i + 1))
		out[i] = row
	}
	return out
}

type segment struct {
	keys []int
	// done segments are already in final order and are emitted as-is.
	done bool
}

// sortKeys runs the partition sort with an explicit stack so deep
// partitions cannot exhaust the goroutine stack.
func sortKeys(rows model.KeyedRows, keys []int, rng RandSource) []int {
	out := make([]int, 0, len(keys))
	stack := []segment{{keys: keys}}

	for len(stack) > 0 {
		seg := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seg.done || len(seg.keys) <= 1 {
			out = append(out, seg.keys...)
			continue
		}

		pivot := rows[seg.keys[rng.IntN(len(seg.keys))]]
		less, equal, greater := partition(rows, seg.keys, pivot)

		// LIFO: less is emitted first, then equal, then greater.
		stack = append(stack,
			segment{keys: greater},
			segment{keys: equal, done: true},
			segment{keys: less},
		)
	}
	return out
}

func partition(rows model.KeyedRows, keys []int, pivot model.Row) (less, equal, greater []int) {
	for _, k := range keys {
		switch c := CompareRows(rows[k], pivot); {
		case c < 0:
			less = append(less, k)
		case c > 0:
			greater = append(greater, k)
		default:
			equal = append(equal, k)
		}
	}
	return less, equal, greater
}
