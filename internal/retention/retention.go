// Package retention implements the tiered pruning of a snapshot history:
// full detail for recent runs, progressively decimated further back.
package retention

import (
	"fmt"
	"sort"
	"time"

	"github.com/caevv/trendkeeper/internal/history"
)

// Tier is an age band governing retention granularity.
type Tier int

const (
	Full Tier = iota
	Weekly
	Monthly
	Quarterly
)

// String returns the tier name used in stats and logs.
func (t Tier) String() string {
	switch t {
	case Full:
		return "full"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Policy holds the inclusive upper age bounds, in days, of the first three tiers.
// Anything older than MonthlyDays is Quarterly.
type Policy struct {
	FullDays    int `json:"full_days" yaml:"full_days"`
	WeeklyDays  int `json:"weekly_days" yaml:"weekly_days"`
	MonthlyDays int `json:"monthly_days" yaml:"monthly_days"`
}

// DefaultPolicy keeps everything for 30 days, one run per ISO week up to 180
// days, one per month up to a year and one per quarter beyond.
func DefaultPolicy() Policy {
	return Policy{FullDays: 30, WeeklyDays: 180, MonthlyDays: 365}
}

// Validate checks that the tier bounds are ordered.
func (p Policy) Validate() error {
	if p.FullDays < 0 {
		return fmt.Errorf("full_days must be non-negative, got %d", p.FullDays)
	}
	if p.WeeklyDays <= p.FullDays {
		return fmt.Errorf("weekly_days (%d) must be greater than full_days (%d)", p.WeeklyDays, p.FullDays)
	}
	if p.MonthlyDays <= p.WeeklyDays {
		return fmt.Errorf("monthly_days (%d) must be greater than weekly_days (%d)", p.MonthlyDays, p.WeeklyDays)
	}
	return nil
}

// Classify maps an age in whole days to its tier. Bounds are inclusive, so a
// boundary age belongs to the finer tier.
func (p Policy) Classify(ageDays int) Tier {
	switch {
	case ageDays <= p.FullDays:
		return Full
	case ageDays <= p.WeeklyDays:
		return Weekly
	case ageDays <= p.MonthlyDays:
		return Monthly
	default:
		return Quarterly
	}
}

// AgeDays returns floor((now - t) in days). Timestamps in the future yield a
// negative age and therefore land in the Full tier.
func AgeDays(now, t time.Time) int {
	age := now.Sub(t)
	days := age / day
	if age < 0 && age%day != 0 {
		days--
	}
	return int(days)
}

const day = 24 * time.Hour

// Breakdown counts retained entries per tier.
type Breakdown struct {
	Full      int `json:"full"`
	Weekly    int `json:"weekly"`
	Monthly   int `json:"monthly"`
	Quarterly int `json:"quarterly"`
}

// Stats describes one retention pass. Kept and Removed are relative to the
// input size, so malformed entries count as removed.
type Stats struct {
	Kept      int       `json:"kept"`
	Removed   int       `json:"removed"`
	Malformed int       `json:"malformed"`
	Breakdown Breakdown `json:"breakdown"`

	// Errors holds one parse error per malformed entry, in input order.
	Errors []error `json:"-"`
}

// bucket identifies a calendar period within a tier.
type bucket struct {
	tier   Tier
	year   int
	period int
}

func bucketOf(tier Tier, t time.Time) bucket {
	switch tier {
	case Weekly:
		year, week := t.ISOWeek()
		return bucket{tier: tier, year: year, period: week}
	case Monthly:
		return bucket{tier: tier, year: t.Year(), period: int(t.Month())}
	default:
		return bucket{tier: tier, year: t.Year(), period: (int(t.Month())-1)/3 + 1}
	}
}

type candidate[T any] struct {
	item  T
	at    time.Time
	index int
}

// Apply prunes items according to p relative to now. stamp extracts the
// timestamp of an item; items whose stamp fails are dropped and reported in
// Stats.Errors. The result is sorted ascending by timestamp.
//
// Within a Weekly, Monthly or Quarterly bucket only the entry with the largest
// timestamp survives. When several entries share that timestamp the one that
// appears first in items wins.
func Apply[T any](p Policy, items []T, stamp func(T) (time.Time, error), now time.Time) ([]T, Stats) {
	stats := Stats{}
	now = now.UTC()

	candidates := make([]candidate[T], 0, len(items))
	for i, item := range items {
		at, err := stamp(item)
		if err != nil {
			stats.Malformed++
			stats.Errors = append(stats.Errors, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		candidates = append(candidates, candidate[T]{item: item, at: at.UTC(), index: i})
	}

	// Newest first; equal timestamps keep input order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].at.After(candidates[j].at)
	})

	seen := make(map[bucket]struct{})
	kept := make([]candidate[T], 0, len(candidates))
	for _, c := range candidates {
		tier := p.Classify(AgeDays(now, c.at))
		if tier != Full {
			key := bucketOf(tier, c.at)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		kept = append(kept, c)
		switch tier {
		case Full:
			stats.Breakdown.Full++
		case Weekly:
			stats.Breakdown.Weekly++
		case Monthly:
			stats.Breakdown.Monthly++
		default:
			stats.Breakdown.Quarterly++
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].at.Equal(kept[j].at) {
			return kept[i].index < kept[j].index
		}
		return kept[i].at.Before(kept[j].at)
	})

	out := make([]T, len(kept))
	for i, c := range kept {
		out[i] = c.item
	}

	stats.Kept = len(out)
	stats.Removed = len(items) - len(out)
	return out, stats
}

// ApplySnapshots prunes a history's snapshots.
func ApplySnapshots(p Policy, snapshots []history.Snapshot, now time.Time) ([]history.Snapshot, Stats) {
	return Apply(p, snapshots, history.Snapshot.Time, now)
}
