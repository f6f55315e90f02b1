// Package history keeps per-scope daily aggregates in process memory so the
// alert path always receives chronologically ascending trailing windows.
// Nothing is persisted; the store is a bounded cache over recent snapshots.
package history

import (
	"sort"
	"sync"
	"time"

	"adalert/internal/domain"
)

// DefaultMaxDays bounds retained days per scope when config does not override.
const DefaultMaxDays = 90

// scopeHistory holds ascending daily rows for one provider/campaign scope.
type scopeHistory struct {
	days     []domain.DailyMetricData
	lastSeen time.Time
}

// Store keeps daily metric history keyed by provider/campaign scope.
// Params: in-memory scope map guarded by RWMutex.
// Returns: store serving ascending trailing windows to the evaluator.
type Store struct {
	mu      sync.RWMutex
	scopes  map[string]*scopeHistory
	maxDays int
}

// NewStore creates an empty history store.
// Params: maximum retained days per scope (<=0 uses DefaultMaxDays).
// Returns: initialized store.
func NewStore(maxDays int) *Store {
	if maxDays <= 0 {
		maxDays = DefaultMaxDays
	}
	return &Store{scopes: make(map[string]*scopeHistory), maxDays: maxDays}
}

// scopeKey builds the map key for one provider/campaign scope.
// Params: optional provider and campaign IDs.
// Returns: canonical key; empty parts stay distinguishable.
func scopeKey(providerID, campaignID string) string {
	return providerID + "\x00" + campaignID
}

// Record upserts one daily aggregate for a scope, keeping dates ascending and
// trimming retention to the configured day bound.
// Params: scope IDs, daily row, and current processing time.
// Returns: none.
func (s *Store) Record(providerID, campaignID string, day domain.DailyMetricData, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopeKey(providerID, campaignID)
	scope, ok := s.scopes[key]
	if !ok {
		scope = &scopeHistory{}
		s.scopes[key] = scope
	}
	scope.lastSeen = now

	index := sort.Search(len(scope.days), func(i int) bool { return scope.days[i].Date >= day.Date })
	if index < len(scope.days) && scope.days[index].Date == day.Date {
		scope.days[index] = day
	} else {
		scope.days = append(scope.days, domain.DailyMetricData{})
		copy(scope.days[index+1:], scope.days[index:])
		scope.days[index] = day
	}

	if overflow := len(scope.days) - s.maxDays; overflow > 0 {
		scope.days = append(scope.days[:0:0], scope.days[overflow:]...)
	}
}

// Window returns the trailing history window for one scope.
// Params: scope IDs and window length in days (<=0 returns full history).
// Returns: detached ascending slice, empty for unknown scopes.
func (s *Store) Window(providerID, campaignID string, days int) []domain.DailyMetricData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scope, ok := s.scopes[scopeKey(providerID, campaignID)]
	if !ok {
		return nil
	}
	start := 0
	if days > 0 && len(scope.days) > days {
		start = len(scope.days) - days
	}
	return append([]domain.DailyMetricData(nil), scope.days[start:]...)
}

// Latest returns the most recent daily row for one scope.
// Params: scope IDs.
// Returns: newest row and existence flag.
func (s *Store) Latest(providerID, campaignID string) (domain.DailyMetricData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scope, ok := s.scopes[scopeKey(providerID, campaignID)]
	if !ok || len(scope.days) == 0 {
		return domain.DailyMetricData{}, false
	}
	return scope.days[len(scope.days)-1], true
}

// Compact evicts scopes idle beyond the TTL and enforces an optional scope cap,
// dropping the longest-idle scopes first.
// Params: current time, idle TTL threshold, and max scope count (0 disables cap).
// Returns: number of evicted scopes.
func (s *Store) Compact(now time.Time, idleTTL time.Duration, maxScopes int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	if idleTTL > 0 {
		for key, scope := range s.scopes {
			if scope.lastSeen.IsZero() || now.Sub(scope.lastSeen) < idleTTL {
				continue
			}
			delete(s.scopes, key)
			removed++
		}
	}

	if maxScopes <= 0 || len(s.scopes) <= maxScopes {
		return removed
	}

	type candidate struct {
		key      string
		lastSeen time.Time
	}
	candidates := make([]candidate, 0, len(s.scopes))
	for key, scope := range s.scopes {
		candidates = append(candidates, candidate{key: key, lastSeen: scope.lastSeen})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastSeen.Before(candidates[j].lastSeen)
	})

	need := len(s.scopes) - maxScopes
	for _, item := range candidates {
		if need <= 0 {
			break
		}
		delete(s.scopes, item.key)
		removed++
		need--
	}
	return removed
}

// Len reports current scope count.
// Params: none.
// Returns: number of tracked scopes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scopes)
}
