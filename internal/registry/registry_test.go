package registry

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps registrations in memory
type memStore struct {
	mu        sync.Mutex
	used      []int
	records   []Registration
	loadErr   error
	appendErr error
	taken     map[int]bool // numbers claimed by a simulated second writer
}

func (m *memStore) Load(context.Context) ([]int, []Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, nil, m.loadErr
	}
	return append([]int(nil), m.used...), append([]Registration(nil), m.records...), nil
}

func (m *memStore) Append(_ context.Context, reg Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	if m.taken[reg.Number] {
		return ErrAlreadyUsed
	}
	m.records = append(m.records, reg)
	m.used = append(m.used, reg.Number)
	return nil
}

func (m *memStore) Close() error { return nil }

type countingObserver struct {
	allocations map[string]int
	failures    map[string]int
	used        int
	remaining   int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{allocations: map[string]int{}, failures: map[string]int{}}
}

func (o *countingObserver) ObserveAllocation(kind string) { o.allocations[kind]++ }
func (o *countingObserver) ObserveFailure(reason string)  { o.failures[reason]++ }
func (o *countingObserver) ObserveUsage(used, remaining int) {
	o.used, o.remaining = used, remaining
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestRegistry(t *testing.T, store Store, opts ...Option) *Registry {
	t.Helper()
	base := []Option{
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(func() time.Time { return fixedNow }),
	}
	r, err := New(context.Background(), store, append(base, opts...)...)
	require.NoError(t, err)
	return r
}

func TestAllocate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns unique numbers in range", func(t *testing.T) {
		r := newTestRegistry(t, &memStore{})
		seen := make(map[int]bool)
		for i := 0; i < 1000; i++ {
			n, err := r.Allocate(ctx, "App", "desc")
			require.NoError(t, err)
			assert.True(t, InRange(n), "number %d out of range", n)
			assert.False(t, seen[n], "number %d issued twice", n)
			seen[n] = true
		}
	})

	t.Run("records the registration", func(t *testing.T) {
		store := &memStore{}
		r := newTestRegistry(t, store)

		n, err := r.Allocate(ctx, "  WebApp_Login ", " User login system ")
		require.NoError(t, err)

		want := Registration{
			ApplicationName: "WebApp_Login",
			Description:     "User login system",
			Number:          n,
			RegisteredAt:    fixedNow,
		}
		assert.Equal(t, []Registration{want}, store.records)
		assert.Equal(t, []Registration{want}, r.Registrations())
		assert.False(t, r.IsAvailable(n))
	})

	t.Run("rejects empty names", func(t *testing.T) {
		r := newTestRegistry(t, &memStore{})
		_, err := r.Allocate(ctx, "   ", "desc")
		assert.ErrorIs(t, err, ErrEmptyName)
		assert.Equal(t, 0, r.Statistics().UsedCount)
	})

	t.Run("same seed gives same sequence", func(t *testing.T) {
		a := newTestRegistry(t, &memStore{})
		b := newTestRegistry(t, &memStore{})
		for i := 0; i < 10; i++ {
			na, err := a.Allocate(ctx, "A", "")
			require.NoError(t, err)
			nb, err := b.Allocate(ctx, "B", "")
			require.NoError(t, err)
			assert.Equal(t, na, nb)
		}
	})
}

func TestAllocateUntilExhausted(t *testing.T) {
	ctx := context.Background()
	obs := newCountingObserver()
	r := newTestRegistry(t, &memStore{}, WithObserver(obs))

	seen := make(map[int]bool, Capacity)
	for i := 0; i < Capacity; i++ {
		n, err := r.Allocate(ctx, "App", "")
		require.NoError(t, err, "allocation %d", i)
		require.False(t, seen[n], "number %d issued twice", n)
		seen[n] = true

		stats := r.Statistics()
		require.Equal(t, Capacity, stats.UsedCount+stats.RemainingCount)
	}
	assert.Len(t, seen, Capacity)

	_, err := r.Allocate(ctx, "OneTooMany", "")
	assert.ErrorIs(t, err, ErrCapacityExhausted)

	_, err = r.Reserve(ctx, "OneTooMany", "", 5000)
	assert.ErrorIs(t, err, ErrAlreadyUsed)

	stats := r.Statistics()
	assert.Equal(t, Capacity, stats.UsedCount)
	assert.Equal(t, 0, stats.RemainingCount)
	assert.InDelta(t, 100.0, stats.UsagePercentage, 1e-9)
	assert.Equal(t, MinNumber, stats.LowestUsed)
	assert.Equal(t, MaxNumber, stats.HighestUsed)

	assert.Equal(t, Capacity, obs.allocations["random"])
	assert.Equal(t, 1, obs.failures["capacity_exhausted"])
	assert.Equal(t, Capacity, obs.used)
	assert.Equal(t, 0, obs.remaining)
}

func TestAllocateNearlyFullPool(t *testing.T) {
	// Leave a single free number so selection must come from the complement
	store := &memStore{}
	for n := MinNumber; n <= MaxNumber; n++ {
		if n != 4242 {
			store.used = append(store.used, n)
		}
	}
	r := newTestRegistry(t, store)

	n, err := r.Allocate(context.Background(), "Last", "")
	require.NoError(t, err)
	assert.Equal(t, 4242, n)
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		number  int
		wantErr error
	}{
		{name: "lowest number", number: MinNumber},
		{name: "highest number", number: MaxNumber},
		{name: "below range", number: 2999, wantErr: ErrInvalidRange},
		{name: "above range", number: 10000, wantErr: ErrInvalidRange},
		{name: "negative", number: -1, wantErr: ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t, &memStore{})
			n, err := r.Reserve(ctx, "SpecialApp_VIP", "", tt.number)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.number, n)
			assert.False(t, r.IsAvailable(n))
		})
	}

	t.Run("collision with allocated number", func(t *testing.T) {
		r := newTestRegistry(t, &memStore{})

		n1, err := r.Allocate(ctx, "AppA", "desc")
		require.NoError(t, err)

		_, err = r.Reserve(ctx, "AppB", "desc", n1)
		assert.ErrorIs(t, err, ErrAlreadyUsed)

		_, err = r.Reserve(ctx, "AppC", "desc", 10000)
		assert.ErrorIs(t, err, ErrInvalidRange)

		assert.Len(t, r.Registrations(), 1)
	})

	t.Run("rejects empty names", func(t *testing.T) {
		r := newTestRegistry(t, &memStore{})
		_, err := r.Reserve(ctx, "", "", 5000)
		assert.ErrorIs(t, err, ErrEmptyName)
		assert.True(t, r.IsAvailable(5000))
	})
}

func TestIsAvailable(t *testing.T) {
	r := newTestRegistry(t, &memStore{used: []int{3000, 5000}})

	assert.False(t, r.IsAvailable(3000))
	assert.False(t, r.IsAvailable(5000))
	assert.True(t, r.IsAvailable(3001))
	assert.True(t, r.IsAvailable(9999))
	assert.False(t, r.IsAvailable(2999))
	assert.False(t, r.IsAvailable(10000))
}

func TestStatistics(t *testing.T) {
	t.Run("empty pool", func(t *testing.T) {
		r := newTestRegistry(t, &memStore{})
		assert.Equal(t, Statistics{
			TotalCapacity:  Capacity,
			RemainingCount: Capacity,
		}, r.Statistics())
	})

	t.Run("range analysis", func(t *testing.T) {
		r := newTestRegistry(t, &memStore{used: []int{3100, 4000, 9000}})
		stats := r.Statistics()
		assert.Equal(t, 3, stats.UsedCount)
		assert.Equal(t, Capacity-3, stats.RemainingCount)
		assert.InDelta(t, 3.0/7000*100, stats.UsagePercentage, 1e-9)
		assert.Equal(t, 3100, stats.LowestUsed)
		assert.Equal(t, 9000, stats.HighestUsed)
		assert.InDelta(t, 16100.0/3, stats.AverageUsed, 1e-9)
	})
}

func TestStoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("failed append does not burn the number", func(t *testing.T) {
		store := &memStore{}
		r := newTestRegistry(t, store)
		store.appendErr = errors.New("disk full")

		_, err := r.Reserve(ctx, "App", "", 5000)
		require.Error(t, err)
		assert.True(t, r.IsAvailable(5000))
		assert.Empty(t, r.Registrations())

		store.appendErr = nil
		n, err := r.Reserve(ctx, "App", "", 5000)
		require.NoError(t, err)
		assert.Equal(t, 5000, n)
	})

	t.Run("number taken by another writer is skipped", func(t *testing.T) {
		store := &memStore{}
		probe := newTestRegistry(t, &memStore{})
		first, err := probe.Allocate(ctx, "probe", "")
		require.NoError(t, err)

		// Same seed, so the first draw collides with the other writer
		store.taken = map[int]bool{first: true}
		r := newTestRegistry(t, store)

		n, err := r.Allocate(ctx, "App", "")
		require.NoError(t, err)
		assert.NotEqual(t, first, n)
		assert.False(t, r.IsAvailable(first))
		assert.Equal(t, 2, r.Statistics().UsedCount)
	})

	t.Run("reserve of number taken by another writer", func(t *testing.T) {
		store := &memStore{taken: map[int]bool{7000: true}}
		r := newTestRegistry(t, store)

		_, err := r.Reserve(ctx, "App", "", 7000)
		assert.ErrorIs(t, err, ErrAlreadyUsed)
		assert.False(t, r.IsAvailable(7000))
	})
}

func TestNewRejectsCorruptState(t *testing.T) {
	tests := []struct {
		name  string
		store *memStore
	}{
		{
			name:  "load error",
			store: &memStore{loadErr: ErrPersistenceCorrupt},
		},
		{
			name: "duplicate registration",
			store: &memStore{records: []Registration{
				{ApplicationName: "A", Number: 4000},
				{ApplicationName: "B", Number: 4000},
			}},
		},
		{
			name:  "registration out of range",
			store: &memStore{records: []Registration{{ApplicationName: "A", Number: 12}}},
		},
		{
			name:  "used number out of range",
			store: &memStore{used: []int{10000}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.store)
			assert.ErrorIs(t, err, ErrPersistenceCorrupt)
		})
	}
}

func TestNewRestoresState(t *testing.T) {
	records := []Registration{
		{ApplicationName: "A", Number: 4000, RegisteredAt: fixedNow},
		{ApplicationName: "B", Number: 3500, RegisteredAt: fixedNow},
	}
	// 6000 sits only in the membership set
	r := newTestRegistry(t, &memStore{used: []int{4000, 3500, 6000}, records: records})

	assert.Equal(t, records, r.Registrations())
	assert.Equal(t, 3, r.Statistics().UsedCount)
	assert.False(t, r.IsAvailable(6000))

	_, err := r.Reserve(context.Background(), "C", "", 6000)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestRecentLookupTimeline(t *testing.T) {
	day1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 1, 2, 23, 59, 0, 0, time.UTC)
	records := []Registration{
		{ApplicationName: "A", Number: 5000, RegisteredAt: day1},
		{ApplicationName: "B", Number: 3001, RegisteredAt: day1},
		{ApplicationName: "C", Number: 8000, RegisteredAt: day2},
		{ApplicationName: "D", Number: 4000, RegisteredAt: day2},
	}
	r := newTestRegistry(t, &memStore{records: records})

	recent := r.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, []int{8000, 4000, 3001}, []int{recent[0].Number, recent[1].Number, recent[2].Number})
	assert.Len(t, r.Recent(100), 4)
	assert.Empty(t, r.Recent(0))

	rec, ok := r.Lookup(8000)
	require.True(t, ok)
	assert.Equal(t, "C", rec.ApplicationName)
	_, ok = r.Lookup(8001)
	assert.False(t, ok)

	assert.Equal(t, []TimelineEntry{
		{Date: "2025-01-01", Registrations: 2},
		{Date: "2025-01-02", Registrations: 2},
	}, r.Timeline())
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "capacity_exhausted", Reason(ErrCapacityExhausted))
	assert.Equal(t, "already_used", Reason(errors.Join(errors.New("wrapped"), ErrAlreadyUsed)))
	assert.Equal(t, "invalid_name", Reason(ErrInvalidName))
	assert.Equal(t, "store_error", Reason(errors.New("boom")))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		appName     string
		description string
		wantName    string
		wantDesc    string
		wantErr     error
	}{
		{name: "trims both fields", appName: "  WebApp ", description: " login\t", wantName: "WebApp", wantDesc: "login"},
		{name: "unicode text", appName: "Zahlungsdienst_Köln", description: "支付服务", wantName: "Zahlungsdienst_Köln", wantDesc: "支付服务"},
		{name: "longest name", appName: strings.Repeat("x", MaxTextLength), wantName: strings.Repeat("x", MaxTextLength)},
		{name: "blank name", appName: " \t ", wantErr: ErrEmptyName},
		{name: "control character in name", appName: "App\x01Ctl", wantErr: ErrInvalidName},
		{name: "newline inside description", appName: "App", description: "line one\nline two", wantErr: ErrInvalidName},
		{name: "invalid utf-8", appName: "App\xff", wantErr: ErrInvalidName},
		{name: "xml noncharacter", appName: "App\uFFFE", wantErr: ErrInvalidName},
		{name: "name too long", appName: strings.Repeat("x", MaxTextLength+1), wantErr: ErrInvalidName},
		{name: "description too long", appName: "App", description: strings.Repeat("é", MaxTextLength+1), wantErr: ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, desc, err := normalize(tt.appName, tt.description)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantDesc, desc)
		})
	}
}

func TestAllocateRejectsUnstorableText(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	obs := newCountingObserver()
	r := newTestRegistry(t, store, WithObserver(obs))

	_, err := r.Allocate(ctx, "App\x01Ctl", "d")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = r.Reserve(ctx, strings.Repeat("x", 40000), "d", 5000)
	assert.ErrorIs(t, err, ErrInvalidName)

	assert.Empty(t, store.records)
	assert.True(t, r.IsAvailable(5000))
	assert.Equal(t, 2, obs.failures["invalid_name"])
}

func TestConcurrentAllocateAndReserve(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	r := newTestRegistry(t, store)

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	results := make([][]int, workers)
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				var (
					n   int
					err error
				)
				if i%2 == 0 {
					n, err = r.Allocate(ctx, "Concurrent", "")
				} else {
					// Every worker races for the same numbers
					n, err = r.Reserve(ctx, "Contended", "", MinNumber+i)
				}
				if err != nil {
					if !errors.Is(err, ErrAlreadyUsed) {
						errs <- err
					}
					continue
				}
				results[w] = append(results[w], n)
				_ = r.IsAvailable(n)
				_ = r.Statistics()
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	seen := make(map[int]bool)
	total := 0
	for _, nums := range results {
		for _, n := range nums {
			assert.False(t, seen[n], "number %d issued twice", n)
			seen[n] = true
			total++
		}
	}

	stats := r.Statistics()
	assert.Equal(t, total, stats.UsedCount)
	assert.Len(t, r.Registrations(), total)
	assert.Len(t, store.records, total)
}
