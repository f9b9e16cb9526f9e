package dataloader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingFetcher struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	rows    map[string]string
	err     error
}

func (f *countingFetcher) fetch(_ context.Context, keys []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.batches = append(f.batches, append([]string(nil), keys...))

	if f.err != nil {
		return nil, f.err
	}

	values := make([]string, len(keys))
	for i, key := range keys {
		values[i] = f.rows[key]
	}
	return values, nil
}

func TestConcurrentLoadsCoalesceIntoOneFetch(t *testing.T) {
	fetcher := &countingFetcher{rows: map[string]string{"p1": "chair"}}
	loader := New(fetcher.fetch, WithWait(5*time.Millisecond))

	p := pool.New().WithErrors()
	for i := 0; i < 5; i++ {
		p.Go(func() error {
			got, err := loader.Load(context.Background(), "p1")
			if err != nil {
				return err
			}
			if got != "chair" {
				return errors.New("wrong value: " + got)
			}
			return nil
		})
	}
	require.NoError(t, p.Wait())

	require.Equal(t, 1, fetcher.calls)
	require.Equal(t, [][]string{{"p1"}}, fetcher.batches)
}

func TestDistinctKeysShareOneBatch(t *testing.T) {
	fetcher := &countingFetcher{rows: map[string]string{"p1": "chair", "p2": "table", "p3": "lamp"}}
	loader := New(fetcher.fetch, WithWait(5*time.Millisecond))

	values, err := loader.LoadMany(context.Background(), []string{"p1", "p2", "p3", "p2"})
	require.NoError(t, err)
	require.Equal(t, []string{"chair", "table", "lamp", "table"}, values)

	require.Equal(t, 1, fetcher.calls)
	require.Equal(t, [][]string{{"p1", "p2", "p3"}}, fetcher.batches)
}

func TestResolvedKeyIsNeverRefetched(t *testing.T) {
	fetcher := &countingFetcher{rows: map[string]string{"p1": "chair"}}
	loader := New(fetcher.fetch, WithWait(time.Millisecond))

	first, err := loader.Load(context.Background(), "p1")
	require.NoError(t, err)

	second, err := loader.Load(context.Background(), "p1")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, fetcher.calls)
}

func TestMissingKeyResolvesToZero(t *testing.T) {
	fetcher := &countingFetcher{rows: map[string]string{}}
	loader := New(fetcher.fetch, WithWait(time.Millisecond))

	got, err := loader.Load(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestBatchFailureFailsAllWaiters(t *testing.T) {
	storeErr := errors.New("connection refused")
	fetcher := &countingFetcher{err: storeErr}
	loader := New(fetcher.fetch, WithWait(5*time.Millisecond))

	p := pool.New().WithErrors()
	for _, key := range []string{"a", "b", "c"} {
		p.Go(func() error {
			_, err := loader.Load(context.Background(), key)
			if !errors.Is(err, storeErr) {
				return errors.New("expected the shared batch error")
			}
			return nil
		})
	}
	require.NoError(t, p.Wait())
	require.Equal(t, 1, fetcher.calls)
}

func TestFullBatchDispatchesEarly(t *testing.T) {
	fetcher := &countingFetcher{rows: map[string]string{"a": "1", "b": "2"}}
	loader := New(fetcher.fetch, WithWait(time.Hour), WithMaxBatch(2))

	values, err := loader.LoadMany(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, values)
	require.Equal(t, 1, fetcher.calls)
}

func TestMisbehavedFetchLengthMismatch(t *testing.T) {
	loader := New(func(context.Context, []string) ([]string, error) {
		return []string{"only one"}, nil
	}, WithWait(time.Millisecond))

	_, err := loader.LoadMany(context.Background(), []string{"a", "b"})
	require.ErrorContains(t, err, "returned 1 values for 2 keys")
}

func TestPrimeSkipsFetch(t *testing.T) {
	fetcher := &countingFetcher{rows: map[string]string{}}
	loader := New(fetcher.fetch, WithWait(time.Millisecond))

	loader.Prime("p1", "chair")

	got, err := loader.Load(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "chair", got)
	require.Zero(t, fetcher.calls)
}

func TestGroupedLoaderPartitionsByOwner(t *testing.T) {
	var calls atomic.Int32
	loader := NewGrouped(func(_ context.Context, owners []string) (map[string][]string, error) {
		calls.Add(1)
		return map[string][]string{
			"u1": {"o1", "o2"},
			"u2": {"o3"},
		}, nil
	}, WithWait(5*time.Millisecond))

	p := pool.New().WithErrors()
	expected := map[string][]string{"u1": {"o1", "o2"}, "u2": {"o3"}, "u3": nil}
	for owner, want := range expected {
		p.Go(func() error {
			got, err := loader.Load(context.Background(), owner)
			if err != nil {
				return err
			}
			if len(got) != len(want) {
				return errors.New("wrong partition for " + owner)
			}
			return nil
		})
	}
	require.NoError(t, p.Wait())
	require.Equal(t, int32(1), calls.Load())
}

func TestLoadersAreIsolated(t *testing.T) {
	fetcherA := &countingFetcher{rows: map[string]string{"k": "from-a"}}
	fetcherB := &countingFetcher{rows: map[string]string{"k": "from-b"}}

	loaderA := New(fetcherA.fetch, WithWait(time.Millisecond))
	loaderB := New(fetcherB.fetch, WithWait(time.Millisecond))

	gotA, err := loaderA.Load(context.Background(), "k")
	require.NoError(t, err)
	gotB, err := loaderB.Load(context.Background(), "k")
	require.NoError(t, err)

	require.Equal(t, "from-a", gotA)
	require.Equal(t, "from-b", gotB)
	require.Equal(t, 1, fetcherA.calls)
	require.Equal(t, 1, fetcherB.calls)
}

func TestDispatchObserver(t *testing.T) {
	var observed atomic.Int32
	fetcher := &countingFetcher{rows: map[string]string{"a": "1", "b": "2"}}
	loader := New(fetcher.fetch,
		WithWait(5*time.Millisecond),
		WithDispatchObserver(func(batchSize int) { observed.Store(int32(batchSize)) }),
	)

	_, err := loader.LoadMany(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, int32(2), observed.Load())
}

func TestLoadHonorsContextCancellation(t *testing.T) {
	release := make(chan struct{})
	drained := make(chan struct{})
	loader := New(func(_ context.Context, keys []string) ([]string, error) {
		<-release
		close(drained)
		return make([]string, len(keys)), nil
	}, WithWait(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, "slow")
	require.ErrorIs(t, err, context.Canceled)

	// let the in-flight batch drain so goleak stays quiet
	close(release)
	<-drained
}
