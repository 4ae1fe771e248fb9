package dataset

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// Loader yields shuffled batches of samples, one pass per call to Each.
type Loader struct {
	ds        *Dataset
	batchSize int
	workers   int
	shuffle   bool
	rng       *rand.Rand
}

// NewLoader creates a loader over ds. Samples within a batch are decoded by
// up to workers goroutines.
func NewLoader(ds *Dataset, batchSize, workers int, shuffle bool, seed int64) *Loader {
	return &Loader{
		ds:        ds,
		batchSize: max(batchSize, 1),
		workers:   max(workers, 1),
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Len is the number of batches per epoch. The last batch may be short.
func (l *Loader) Len() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

// Order returns the sample indices of one epoch split into batches.
func (l *Loader) Order() [][]int {
	idx := make([]int, l.ds.Len())
	for i := range idx {
		idx[i] = i
	}
	if l.shuffle {
		l.rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	}
	var batches [][]int
	for start := 0; start < len(idx); start += l.batchSize {
		batches = append(batches, idx[start:min(start+l.batchSize, len(idx))])
	}
	return batches
}

// Each runs one epoch, calling fn for every batch in order. It stops at the
// first error from loading or from fn.
func (l *Loader) Each(ctx context.Context, fn func(Batch) error) error {
	for _, indices := range l.Order() {
		batch, err := l.load(ctx, indices)
		if err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) load(ctx context.Context, indices []int) (Batch, error) {
	batch := make(Batch, len(indices))
	seeds := make([]int64, len(indices))
	for i := range seeds {
		seeds[i] = l.rng.Int63()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, idx := range indices {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := l.ds.Load(idx, rand.New(rand.NewSource(seeds[i])))
			if err != nil {
				return err
			}
			batch[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batch, nil
}
