package sched

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/voksel/engine/internal/core/ecs"
	"go.uber.org/zap"
)

var (
	ErrDuplicateSystem = errors.New("duplicate system name")
	ErrFrozen          = errors.New("scheduler is frozen after build")
	ErrCycle           = errors.New("dependency cycle")
)

// Scheduler turns per-system metadata into a conflict-safe execution DAG,
// partitioned by stage. Registration and Build run on the main thread; after
// Build the scheduler is frozen and safe for concurrent reads.
type Scheduler struct {
	log *zap.Logger

	nodes  []*Node
	byName map[string]*Node
	stages [stageCount][]*Node // registration order within each stage
	plans  [stageCount][]*Node // topological order, computed by Build

	// exempt holds With pairs keyed by (lower id, higher id).
	exempt map[[2]int]struct{}

	built bool
}

func NewScheduler(log *zap.Logger) *Scheduler {
	return &Scheduler{
		log:    log,
		byName: make(map[string]*Node, 32),
		exempt: make(map[[2]int]struct{}),
	}
}

// Register inserts a system node and assigns it the next dense id.
// The scheduler rejects registration after Build.
func (s *Scheduler) Register(meta Metadata, system System) (*Node, error) {
	if s.built {
		return nil, fmt.Errorf("register %q: %w", meta.Name, ErrFrozen)
	}
	if meta.Name == "" {
		return nil, fmt.Errorf("register system with empty name")
	}
	if system == nil {
		return nil, fmt.Errorf("register %q: nil system", meta.Name)
	}
	if meta.Stage < 0 || meta.Stage >= stageCount {
		return nil, fmt.Errorf("register %q: invalid stage %d", meta.Name, meta.Stage)
	}
	if _, exists := s.byName[meta.Name]; exists {
		return nil, fmt.Errorf("register %q: %w", meta.Name, ErrDuplicateSystem)
	}
	n := newNode(len(s.nodes), meta, system)
	s.nodes = append(s.nodes, n)
	s.byName[meta.Name] = n
	s.stages[meta.Stage] = append(s.stages[meta.Stage], n)
	return n, nil
}

// Build resolves explicit dependencies, infers conflicts from component
// masks, validates acyclicity per stage, and freezes the DAG. Idempotent.
func (s *Scheduler) Build(_ *ecs.World) error {
	if s.built {
		return nil
	}
	s.resolveExplicit()
	s.inferConflicts()
	if err := s.computePlans(); err != nil {
		return err
	}
	s.built = true
	s.log.Info("built system execution graph",
		zap.Int("systems", len(s.nodes)),
		zap.Int("edges", s.edgeCount()))
	return nil
}

// Built reports whether the DAG has been frozen.
func (s *Scheduler) Built() bool { return s.built }

// Lookup returns the node registered under name.
func (s *Scheduler) Lookup(name string) (*Node, bool) {
	n, ok := s.byName[name]
	return n, ok
}

// Nodes returns every registered node in id order.
func (s *Scheduler) Nodes() []*Node { return s.nodes }

// StageNodes returns a stage's nodes in registration order.
func (s *Scheduler) StageNodes(stage Stage) []*Node { return s.stages[stage] }

// StagePlan returns a stage's nodes topologically sorted, ties broken by
// (priority desc, id asc). Only valid after Build.
func (s *Scheduler) StagePlan(stage Stage) []*Node { return s.plans[stage] }

// resolveExplicit turns each node's declared relations into edges. Unknown
// targets are warned about and skipped; so are cross-stage declarations,
// since inter-stage ordering is already implied by stage order.
func (s *Scheduler) resolveExplicit() {
	for _, n := range s.nodes {
		for _, dep := range n.meta.Deps {
			target, ok := s.byName[dep.Target]
			if !ok {
				s.log.Warn("system depends on unknown system",
					zap.String("system", n.meta.Name),
					zap.String("target", dep.Target))
				continue
			}
			if target == n {
				s.log.Warn("system declares a relation to itself",
					zap.String("system", n.meta.Name))
				continue
			}
			if target.meta.Stage != n.meta.Stage {
				s.log.Warn("cross-stage relation ignored; stage order already applies",
					zap.String("system", n.meta.Name),
					zap.String("target", dep.Target))
				continue
			}
			switch dep.Kind {
			case Before:
				n.addEdge(target, EdgeExplicit)
			case After:
				target.addEdge(n, EdgeExplicit)
			case With:
				s.exempt[pairKey(n, target)] = struct{}{}
			}
		}
	}
}

// inferConflicts inserts one directed implicit edge between every unordered
// same-stage pair whose masks conflict, unless a With exemption or an
// explicit path already covers the pair. Direction is deterministic:
// higher priority first, ties to the lower id.
func (s *Scheduler) inferConflicts() {
	for _, stage := range Stages() {
		nodes := s.stages[stage]
		reach := explicitReachability(nodes)
		for i := 0; i < len(nodes); i++ {
			for j := i + 1; j < len(nodes); j++ {
				a, b := nodes[i], nodes[j]
				if !Conflicts(a.meta, b.meta) {
					continue
				}
				if _, ok := s.exempt[pairKey(a, b)]; ok {
					continue
				}
				if a.relatedTo(b) {
					continue
				}
				if reach[a][b] || reach[b][a] {
					continue
				}
				first, second := orderByPriority(a, b)
				first.addEdge(second, EdgeImplicit)
				s.log.Debug("inferred dependency from component conflict",
					zap.String("first", first.meta.Name),
					zap.String("second", second.meta.Name))
			}
		}
	}
}

// orderByPriority picks the direction of an implicit edge: priority desc,
// then id asc. Registration order never changes the result.
func orderByPriority(a, b *Node) (first, second *Node) {
	if a.meta.Priority != b.meta.Priority {
		if a.meta.Priority > b.meta.Priority {
			return a, b
		}
		return b, a
	}
	if a.id < b.id {
		return a, b
	}
	return b, a
}

// explicitReachability computes, per node, the set of nodes reachable over
// explicit edges only. Used to skip inference when an explicit path already
// orders a pair.
func explicitReachability(nodes []*Node) map[*Node]map[*Node]bool {
	reach := make(map[*Node]map[*Node]bool, len(nodes))
	for _, n := range nodes {
		seen := make(map[*Node]bool)
		stack := []*Node{n}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for succ, kind := range cur.out {
				if kind != EdgeExplicit || seen[succ] {
					continue
				}
				seen[succ] = true
				stack = append(stack, succ)
			}
		}
		reach[n] = seen
	}
	return reach
}

// computePlans topologically sorts every stage. The ready set is always
// drained in (priority desc, id asc) order, so two builds over identical
// metadata produce identical plans. A cycle is a fatal build error naming
// the systems involved.
func (s *Scheduler) computePlans() error {
	for _, stage := range Stages() {
		nodes := s.stages[stage]
		if len(nodes) == 0 {
			s.plans[stage] = nil
			continue
		}
		indegree := make(map[*Node]int, len(nodes))
		var ready []*Node
		for _, n := range nodes {
			indegree[n] = len(n.in)
			if len(n.in) == 0 {
				ready = append(ready, n)
			}
		}
		plan := make([]*Node, 0, len(nodes))
		for len(ready) > 0 {
			sort.Slice(ready, func(i, j int) bool {
				if ready[i].meta.Priority != ready[j].meta.Priority {
					return ready[i].meta.Priority > ready[j].meta.Priority
				}
				return ready[i].id < ready[j].id
			})
			n := ready[0]
			ready = ready[1:]
			plan = append(plan, n)
			for succ := range n.out {
				indegree[succ]--
				if indegree[succ] == 0 {
					ready = append(ready, succ)
				}
			}
		}
		if len(plan) < len(nodes) {
			var stuck []string
			for _, n := range nodes {
				if indegree[n] > 0 {
					stuck = append(stuck, n.meta.Name)
				}
			}
			sort.Strings(stuck)
			return fmt.Errorf("stage %s: %w among [%s]",
				stage, ErrCycle, strings.Join(stuck, ", "))
		}
		s.plans[stage] = plan
	}
	return nil
}

func (s *Scheduler) edgeCount() int {
	total := 0
	for _, n := range s.nodes {
		total += len(n.out)
	}
	return total
}

func pairKey(a, b *Node) [2]int {
	if a.id < b.id {
		return [2]int{a.id, b.id}
	}
	return [2]int{b.id, a.id}
}
