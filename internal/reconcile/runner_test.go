package reconcile

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFetcher replays responses per item; once exhausted it returns errBoom.
type scriptedFetcher struct {
	mu     sync.Mutex
	script map[int64][]func(itemID int64) ([]Record, error)
	calls  []int64
}

func (f *scriptedFetcher) FetchGallery(_ context.Context, itemID int64) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, itemID)
	steps := f.script[itemID]
	if len(steps) == 0 {
		return nil, errBoom
	}
	next := steps[0]
	f.script[itemID] = steps[1:]
	return next(itemID)
}

func match(itemID int64) ([]Record, error) { return []Record{rec(itemID*10, itemID)}, nil }
func empty(int64) ([]Record, error) { return nil, nil }
func fail(int64) ([]Record, error) { return nil, errBoom }
func foreign(int64) ([]Record, error) { return []Record{rec(1, 999)}, nil }

type sleepLog struct {
	delays []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestRunner(f Fetcher) (*Runner, *sleepLog) {
	sl := &sleepLog{}
	return NewRunner(f, DefaultOptions(), nil).WithSleep(sl.sleep), sl
}

func TestRunner_MixedOutcomesInOrder(t *testing.T) {
	f := &scriptedFetcher{script: map[int64][]func(int64) ([]Record, error){
		101: {match},
		102: {empty, empty, match},
		103: {fail, fail, fail},
	}}
	r, sl := newTestRunner(f)

	items, st, err := r.Run(context.Background(), []Item{{ID: 101}, {ID: 102}, {ID: 103}})
	require.NoError(t, err)

	assert.Equal(t, []int64{101, 102, 102, 102, 103, 103, 103}, f.calls)
	for _, it := range items {
		assert.True(t, it.ImagesLoaded, "item %d", it.ID)
	}
	assert.Len(t, items[0].Images, 1)
	assert.Len(t, items[1].Images, 1)
	assert.Empty(t, items[2].Images)

	assert.Equal(t, 7, st.Fetches)
	assert.Equal(t, 2, st.Loaded)
	assert.Equal(t, 1, st.GaveUp)

	assert.Equal(t, []time.Duration{
		0, DefaultSettleDelay, // 101
		0, DefaultRetryDelay, DefaultRetryDelay, DefaultSettleDelay, // 102
		0, DefaultRetryDelay, DefaultRetryDelay, DefaultSettleDelay, // 103
	}, sl.delays)
}

func TestRunner_AllLoadedMakesNoFetches(t *testing.T) {
	f := &scriptedFetcher{script: map[int64][]func(int64) ([]Record, error){}}
	r, sl := newTestRunner(f)

	items, st, err := r.Run(context.Background(), []Item{{ID: 1, ImagesLoaded: true}, {ID: 2, ImagesLoaded: true}})
	require.NoError(t, err)
	assert.Empty(t, f.calls)
	assert.Equal(t, 0, st.Fetches)
	assert.Len(t, items, 2)
	assert.Equal(t, []time.Duration{DefaultSkipDelay, DefaultSkipDelay}, sl.delays)
}

func TestRunner_UnsavedItemsDoNotStallTheLoop(t *testing.T) {
	f := &scriptedFetcher{script: map[int64][]func(int64) ([]Record, error){
		7: {match},
	}}
	r, _ := newTestRunner(f)

	items, st, err := r.Run(context.Background(), []Item{{ID: 0}, {ID: 7}, {ID: 0}})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, f.calls)
	assert.True(t, items[1].ImagesLoaded)
	assert.False(t, items[0].ImagesLoaded)
	assert.Equal(t, 2, st.Skipped)
}

func TestRunner_MismatchedBatchCountsAsAttempt(t *testing.T) {
	f := &scriptedFetcher{script: map[int64][]func(int64) ([]Record, error){
		5: {foreign, foreign, foreign},
	}}
	r, _ := newTestRunner(f)

	items, st, err := r.Run(context.Background(), []Item{{ID: 5}})
	require.NoError(t, err)
	assert.Len(t, f.calls, DefaultMaxRetryAttempts)
	assert.True(t, items[0].ImagesLoaded)
	assert.Empty(t, items[0].Images)
	assert.Equal(t, 1, st.GaveUp)
}

func TestRunner_CancelStopsPendingWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := FetcherFunc(func(ctx context.Context, itemID int64) ([]Record, error) {
		cancel()
		return nil, errBoom
	})
	r, _ := newTestRunner(f)

	items, _, err := r.Run(ctx, []Item{{ID: 1}, {ID: 2}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, items[1].ImagesLoaded)
}

func TestSleep_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}

// Any mix of outcomes terminates within N*MaxRetryAttempts fetches with every saved item loaded.
func TestRunner_BoundedFetchesProperty(t *testing.T) {
	outcomes := []func(int64) ([]Record, error){match, empty, fail, foreign}
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := rng.Intn(8)
		items := make([]Item, n)
		script := map[int64][]func(int64) ([]Record, error){}
		for i := range items {
			items[i].ID = int64(i + 1)
			if rng.Intn(5) == 0 {
				items[i].ImagesLoaded = true
			}
			for k := 0; k < DefaultMaxRetryAttempts; k++ {
				script[items[i].ID] = append(script[items[i].ID], outcomes[rng.Intn(len(outcomes))])
			}
		}
		f := &scriptedFetcher{script: script}
		r, _ := newTestRunner(f)

		out, st, err := r.Run(context.Background(), items)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(f.calls), n*DefaultMaxRetryAttempts)
		assert.Equal(t, len(f.calls), st.Fetches)
		for _, it := range out {
			assert.True(t, it.ImagesLoaded)
		}
		// strictly sequential: item ids never go backwards
		for i := 1; i < len(f.calls); i++ {
			assert.GreaterOrEqual(t, f.calls[i], f.calls[i-1])
		}
	}
}

func TestFetcherFunc(t *testing.T) {
	called := false
	var f Fetcher = FetcherFunc(func(context.Context, int64) ([]Record, error) {
		called = true
		return nil, errors.New("x")
	})
	_, err := f.FetchGallery(context.Background(), 1)
	assert.Error(t, err)
	assert.True(t, called)
}
