package dataset

import (
	"math/rand"
	"sort"
)

// Sample returns a dataset holding exactly n rows drawn without replacement
// using a PRNG seeded with seed. Selected rows keep their original order, so
// the same input and seed always produce the same table. When n is not smaller
// than the row count the receiver is returned unchanged.
func (d *Dataset) Sample(n int, seed int64) *Dataset {
	if n <= 0 || n >= d.rows {
		return d
	}
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(d.rows)[:n]
	sort.Ints(idx)
	return d.take(idx, d.columns)
}
