package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bits-and-blooms/bitset"
)

// maxRejections bounds random draws before falling back to picking from the complement
const maxRejections = 64

// maxConflictRetries bounds re-draws when the store reports a number taken by another writer
const maxConflictRetries = 8

// Store persists registrations
type Store interface {
	// Load returns every used number and the registrations in the order they were made.
	// Missing backing files yield empty results.
	Load(ctx context.Context) ([]int, []Registration, error)
	// Append durably records a registration. It returns ErrAlreadyUsed when the
	// number was taken by another writer since Load.
	Append(ctx context.Context, reg Registration) error
	Close() error
}

// Observer receives allocation events
type Observer interface {
	ObserveAllocation(kind string)
	ObserveFailure(reason string)
	ObserveUsage(used, remaining int)
}

type nopObserver struct{}

func (nopObserver) ObserveAllocation(string) {}
func (nopObserver) ObserveFailure(string)    {}
func (nopObserver) ObserveUsage(int, int)    {}

// Option configures a Registry
type Option func(*Registry)

// WithRand sets the random source used for number selection
func WithRand(rng *rand.Rand) Option {
	return func(r *Registry) { r.rng = rng }
}

// WithClock overrides the registration timestamp source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithObserver sets the allocation event observer
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// Registry manages SFT number allocations
type Registry struct {
	mu       sync.RWMutex
	store    Store
	used     *bitset.BitSet // bit i set means MinNumber+i is issued
	records  []Registration
	rng      *rand.Rand
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// New loads the store's state and returns a registry over it
func New(ctx context.Context, store Store, opts ...Option) (*Registry, error) {
	r := &Registry{
		store:    store,
		used:     bitset.New(Capacity),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:      time.Now,
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}

	used, records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	if err := CheckRecords(records); err != nil {
		return nil, err
	}
	for _, rec := range records {
		r.used.Set(index(rec.Number))
	}
	for _, n := range used {
		if !InRange(n) {
			return nil, fmt.Errorf("%w: used number %d outside %d-%d", ErrPersistenceCorrupt, n, MinNumber, MaxNumber)
		}
		r.used.Set(index(n))
	}
	r.records = records

	r.logger.Debug("registry loaded", "used", r.used.Count(), "registrations", len(records))
	r.observeUsage()

	return r, nil
}

// Close closes the underlying store
func (r *Registry) Close() error {
	return r.store.Close()
}

// Allocate assigns a random unused number to an application
func (r *Registry) Allocate(ctx context.Context, name, description string) (int, error) {
	name, description, err := normalize(name, description)
	if err != nil {
		r.observer.ObserveFailure(Reason(err))
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; ; attempt++ {
		n, err := r.pick()
		if err != nil {
			r.observer.ObserveFailure(Reason(err))
			return 0, err
		}

		err = r.record(ctx, name, description, n)
		if errors.Is(err, ErrAlreadyUsed) && attempt < maxConflictRetries {
			r.logger.Warn("number taken by another writer, drawing again", "number", n)
			continue
		}
		if err != nil {
			r.observer.ObserveFailure(Reason(err))
			return 0, err
		}

		r.observer.ObserveAllocation("random")
		return n, nil
	}
}

// Reserve assigns a caller-chosen number to an application
func (r *Registry) Reserve(ctx context.Context, name, description string, number int) (int, error) {
	if !InRange(number) {
		r.observer.ObserveFailure(Reason(ErrInvalidRange))
		return 0, fmt.Errorf("%w, got %d", ErrInvalidRange, number)
	}

	name, description, err := normalize(name, description)
	if err != nil {
		r.observer.ObserveFailure(Reason(err))
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.used.Test(index(number)) {
		r.observer.ObserveFailure(Reason(ErrAlreadyUsed))
		return 0, fmt.Errorf("%w: %d", ErrAlreadyUsed, number)
	}

	if err := r.record(ctx, name, description, number); err != nil {
		r.observer.ObserveFailure(Reason(err))
		return 0, err
	}

	r.observer.ObserveAllocation("reserved")
	return number, nil
}

// IsAvailable reports whether number can still be reserved
func (r *Registry) IsAvailable(number int) bool {
	if !InRange(number) {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return !r.used.Test(index(number))
}

// Statistics returns current pool usage
func (r *Registry) Statistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	used := int(r.used.Count())
	stats := Statistics{
		TotalCapacity:   Capacity,
		UsedCount:       used,
		RemainingCount:  Capacity - used,
		UsagePercentage: float64(used) / float64(Capacity) * 100,
	}
	if used == 0 {
		return stats
	}

	first, _ := r.used.NextSet(0)
	stats.LowestUsed = MinNumber + int(first)

	sum := 0
	for i, ok := first, true; ok; i, ok = r.used.NextSet(i + 1) {
		sum += MinNumber + int(i)
		stats.HighestUsed = MinNumber + int(i)
	}
	stats.AverageUsed = float64(sum) / float64(used)

	return stats
}

// Registrations returns every registration in the order it was made
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registration, len(r.records))
	copy(out, r.records)
	return out
}

// Recent returns the last n registrations, highest number first
func (r *Registry) Recent(n int) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n > len(r.records) {
		n = len(r.records)
	}

	out := make([]Registration, n)
	copy(out, r.records[len(r.records)-n:])
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out
}

// Lookup returns the registration holding number, if any
func (r *Registry) Lookup(number int) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.Number == number {
			return rec, true
		}
	}
	return Registration{}, false
}

// Timeline counts registrations per UTC day, oldest first
func (r *Registry) Timeline() []TimelineEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, rec := range r.records {
		counts[rec.RegisteredAt.UTC().Format("2006-01-02")]++
	}

	timeline := make([]TimelineEntry, 0, len(counts))
	for day, count := range counts {
		timeline = append(timeline, TimelineEntry{Date: day, Registrations: count})
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Date < timeline[j].Date })
	return timeline
}

// pick draws a uniformly random unused number. Callers hold r.mu.
func (r *Registry) pick() (int, error) {
	remaining := Capacity - int(r.used.Count())
	if remaining == 0 {
		return 0, ErrCapacityExhausted
	}

	// Rejection sampling is cheap while the pool is mostly free
	if remaining*8 >= Capacity {
		for i := 0; i < maxRejections; i++ {
			idx := uint(r.rng.IntN(Capacity))
			if !r.used.Test(idx) {
				return MinNumber + int(idx), nil
			}
		}
	}

	return MinNumber + int(r.nthClear(r.rng.IntN(remaining))), nil
}

// nthClear returns the index of the k-th (0-based) unused number
func (r *Registry) nthClear(k int) uint {
	idx, _ := r.used.NextClear(0)
	for ; k > 0; k-- {
		idx, _ = r.used.NextClear(idx + 1)
	}
	return idx
}

// record persists a registration and only then marks the number used. Callers hold r.mu.
func (r *Registry) record(ctx context.Context, name, description string, number int) error {
	reg := Registration{
		ApplicationName: name,
		Description:     description,
		Number:          number,
		RegisteredAt:    r.now().UTC().Truncate(time.Second),
	}

	if err := r.store.Append(ctx, reg); err != nil {
		if errors.Is(err, ErrAlreadyUsed) {
			// Another process holds it; never offer it again
			r.used.Set(index(number))
			r.observeUsage()
		}
		return fmt.Errorf("failed to record SFT number %d: %w", number, err)
	}

	r.used.Set(index(number))
	r.records = append(r.records, reg)
	r.observeUsage()

	r.logger.Debug("SFT number issued", "application", name, "number", number)
	return nil
}

func (r *Registry) observeUsage() {
	used := int(r.used.Count())
	r.observer.ObserveUsage(used, Capacity-used)
}

// CheckRecords fails with ErrPersistenceCorrupt if any registration holds a
// number outside the range or shares its number with another registration
func CheckRecords(records []Registration) error {
	seen := make(map[int]bool, len(records))
	for _, rec := range records {
		if !InRange(rec.Number) {
			return fmt.Errorf("%w: registration %q has number %d outside %d-%d",
				ErrPersistenceCorrupt, rec.ApplicationName, rec.Number, MinNumber, MaxNumber)
		}
		if seen[rec.Number] {
			return fmt.Errorf("%w: number %d is registered more than once", ErrPersistenceCorrupt, rec.Number)
		}
		seen[rec.Number] = true
	}
	return nil
}

// normalize trims both fields and rejects text the records file cannot store unchanged
func normalize(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", ErrEmptyName
	}
	description = strings.TrimSpace(description)

	for _, s := range []string{name, description} {
		if !storable(s) {
			return "", "", ErrInvalidName
		}
	}
	return name, description, nil
}

// storable reports whether s survives a spreadsheet round trip
func storable(s string) bool {
	if !utf8.ValidString(s) || utf8.RuneCountInString(s) > MaxTextLength {
		return false
	}
	for _, r := range s {
		// U+FFFE and U+FFFF are not allowed in XML
		if unicode.IsControl(r) || r == 0xFFFE || r == 0xFFFF {
			return false
		}
	}
	return true
}

func index(n int) uint {
	return uint(n - MinNumber)
}
