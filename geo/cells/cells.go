// Package cells tracks the distinct S2 cells a route passes through, a
// cheap "ground covered" statistic attached to finalized workouts.
package cells

import (
	"github.com/golang/geo/s2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
)

// DefaultLevel sizes cells at roughly 10m on a side, fine enough that a
// city-block loop reads as distinct ground from an out-and-back.
const DefaultLevel = 20

const cacheSize = 1 << 16

// Coverage counts distinct S2 cells visited at a fixed level. Recently seen
// cells are cached so the hot path is a lookup, not a set insert per fix.
type Coverage struct {
	Level int

	seen  *lru.Cache[s2.CellID, struct{}]
	count int
}

func NewCoverage(level int) (*Coverage, error) {
	if level <= 0 || level > 30 {
		level = DefaultLevel
	}
	seen, err := lru.New[s2.CellID, struct{}](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Coverage{Level: level, seen: seen}, nil
}

// Visit records the cell containing pt. Returns true if the cell is new.
func (c *Coverage) Visit(pt orb.Point) bool {
	ll := s2.LatLngFromDegrees(pt.Lat(), pt.Lon())
	cell := s2.CellIDFromLatLng(ll).Parent(c.Level)
	if _, ok := c.seen.Get(cell); ok {
		return false
	}
	c.seen.Add(cell, struct{}{})
	c.count++
	return true
}

// Count returns the number of distinct cells visited.
func (c *Coverage) Count() int { return c.count }

// Reset clears all coverage state.
func (c *Coverage) Reset() {
	c.seen.Purge()
	c.count = 0
}
