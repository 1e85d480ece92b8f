package system

import (
	"github.com/voksel/engine/internal/core/ecs"
	"github.com/voksel/engine/internal/core/sched"
	"go.uber.org/zap"
)

// StatsLogSystem periodically logs the slowest systems of the last frame.
type StatsLogSystem struct {
	scheduler *sched.Scheduler
	log       *zap.Logger
	every     int
	frames    int
}

func NewStatsLogSystem(scheduler *sched.Scheduler, every int, log *zap.Logger) *StatsLogSystem {
	if every <= 0 {
		every = 300
	}
	return &StatsLogSystem{scheduler: scheduler, log: log, every: every}
}

func (s *StatsLogSystem) Metadata() sched.Metadata {
	return sched.Metadata{
		Name:     "StatsLog",
		Stage:    sched.StagePostRender,
		Priority: 0,
		Parallel: true,
	}
}

func (s *StatsLogSystem) Run(_ *ecs.World, _ float64) {
	s.frames++
	if s.frames%s.every != 0 {
		return
	}
	stats := s.scheduler.ExecutionStats()
	top := stats
	if len(top) > 5 {
		top = top[:5]
	}
	for _, st := range top {
		s.log.Info("system runtime",
			zap.String("system", st.Name),
			zap.Duration("last", st.LastRuntime))
	}
}
