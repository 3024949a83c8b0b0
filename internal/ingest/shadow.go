package ingest

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"jarfeed/internal/domain"
)

type shadowEntry struct {
	donation domain.Donation
	seq      uint64
}

// Shadow is the in-memory mirror of the donation set. It answers the same
// aggregate questions as the store and is used when the store is failing.
// Adding an id that is already present replaces the entry, so counts match
// the store's upsert semantics.
type Shadow struct {
	mu      sync.RWMutex
	byID    map[string]*shadowEntry
	names   map[string]int
	total   decimal.Decimal
	nextSeq uint64
}

func NewShadow() *Shadow {
	return &Shadow{
		byID:  make(map[string]*shadowEntry),
		names: make(map[string]int),
		total: decimal.Zero,
	}
}

// Add records d and reports whether it replaced an existing id.
func (s *Shadow) Add(d domain.Donation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byID[d.ID]; ok {
		s.total = s.total.Sub(prev.donation.Amount).Add(d.Amount)
		s.releaseName(prev.donation.Name)
		s.names[d.Name]++
		prev.donation = d
		return true
	}
	s.nextSeq++
	s.byID[d.ID] = &shadowEntry{donation: d, seq: s.nextSeq}
	s.total = s.total.Add(d.Amount)
	s.names[d.Name]++
	return false
}

func (s *Shadow) releaseName(name string) {
	if s.names[name] <= 1 {
		delete(s.names, name)
		return
	}
	s.names[name]--
}

func (s *Shadow) Stats() domain.AggregateStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.AggregateStats{
		TotalAmount:  s.total,
		TotalCount:   int64(len(s.byID)),
		UniqueDonors: int64(len(s.names)),
	}
	if latest := s.newestLocked(1); len(latest) == 1 {
		d := latest[0]
		stats.LatestDonation = &d
	}
	return stats
}

// Recent returns up to limit donations, newest first.
func (s *Shadow) Recent(limit int) []domain.Donation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newestLocked(limit)
}

func (s *Shadow) Latest() (domain.Donation, bool) {
	recent := s.Recent(1)
	if len(recent) == 0 {
		return domain.Donation{}, false
	}
	return recent[0], true
}

// Top sums amounts per name. Ties go to the name seen first.
func (s *Shadow) Top(limit int) []domain.TopDonor {
	s.mu.RLock()
	type agg struct {
		name  string
		total decimal.Decimal
		first uint64
	}
	byName := make(map[string]*agg, len(s.names))
	for _, e := range s.byID {
		a, ok := byName[e.donation.Name]
		if !ok {
			a = &agg{name: e.donation.Name, total: decimal.Zero, first: e.seq}
			byName[e.donation.Name] = a
		}
		a.total = a.total.Add(e.donation.Amount)
		if e.seq < a.first {
			a.first = e.seq
		}
	}
	s.mu.RUnlock()

	aggs := make([]*agg, 0, len(byName))
	for _, a := range byName {
		aggs = append(aggs, a)
	}
	sort.Slice(aggs, func(i, j int) bool {
		if c := aggs[i].total.Cmp(aggs[j].total); c != 0 {
			return c > 0
		}
		if aggs[i].first != aggs[j].first {
			return aggs[i].first < aggs[j].first
		}
		return aggs[i].name < aggs[j].name
	})
	if limit >= 0 && len(aggs) > limit {
		aggs = aggs[:limit]
	}
	out := make([]domain.TopDonor, len(aggs))
	for i, a := range aggs {
		out[i] = domain.TopDonor{Name: a.name, Amount: a.total}
	}
	return out
}

func (s *Shadow) newestLocked(limit int) []domain.Donation {
	entries := make([]*shadowEntry, 0, len(s.byID))
	for _, e := range s.byID {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].donation.Timestamp != entries[j].donation.Timestamp {
			return entries[i].donation.Timestamp > entries[j].donation.Timestamp
		}
		return entries[i].seq > entries[j].seq
	})
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.Donation, len(entries))
	for i, e := range entries {
		out[i] = e.donation
	}
	return out
}
