package sched

import (
	"sort"
	"time"
)

// Stat is one system's most recent measured runtime.
type Stat struct {
	Name        string
	LastRuntime time.Duration
}

// ExecutionStats returns every system's last runtime, slowest first.
// Safe to call while a frame executes: runtimes are atomic snapshots.
func (s *Scheduler) ExecutionStats() []Stat {
	stats := make([]Stat, 0, len(s.nodes))
	for _, n := range s.nodes {
		stats = append(stats, Stat{Name: n.meta.Name, LastRuntime: n.LastRuntime()})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].LastRuntime > stats[j].LastRuntime
	})
	return stats
}
