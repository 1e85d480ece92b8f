package sched

import (
	"fmt"
	"sort"
	"strings"
)

// Visualization renders the frozen DAG as DOT text for offline inspection.
// Nodes are grouped into one cluster per stage and labeled with the popcount
// of their read/write masks. Explicit edges are solid, implicit dashed;
// parallel-eligible systems are lightblue, serialized ones lightcoral.
func (s *Scheduler) Visualization() string {
	var sb strings.Builder
	sb.WriteString("digraph SystemScheduler {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=filled];\n\n")

	for _, stage := range Stages() {
		nodes := s.stages[stage]
		if len(nodes) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "  subgraph cluster_%d {\n", int(stage))
		fmt.Fprintf(&sb, "    label=\"%s\";\n", stage)
		sb.WriteString("    style=filled;\n")
		sb.WriteString("    color=lightgrey;\n\n")

		for _, n := range nodes {
			color := "lightcoral"
			if n.meta.Parallel {
				color = "lightblue"
			}
			label := n.meta.Name
			if !n.meta.Reads.IsEmpty() || !n.meta.Writes.IsEmpty() {
				label += "\\n"
				if !n.meta.Reads.IsEmpty() {
					label += fmt.Sprintf("R:%d", n.meta.Reads.Count())
				}
				if !n.meta.Writes.IsEmpty() {
					if !n.meta.Reads.IsEmpty() {
						label += " "
					}
					label += fmt.Sprintf("W:%d", n.meta.Writes.Count())
				}
			}
			fmt.Fprintf(&sb, "    s%d [label=\"%s\", fillcolor=%s];\n", n.id, label, color)
		}
		sb.WriteString("  }\n\n")
	}

	sb.WriteString("  // Dependencies\n")
	for _, n := range s.nodes {
		for _, succ := range sortedSuccessors(n) {
			style := "solid"
			if n.out[succ] == EdgeImplicit {
				style = "dashed"
			}
			fmt.Fprintf(&sb, "  s%d -> s%d [style=%s];\n", n.id, succ.id, style)
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func sortedSuccessors(n *Node) []*Node {
	succs := make([]*Node, 0, len(n.out))
	for s := range n.out {
		succs = append(succs, s)
	}
	sort.Slice(succs, func(i, j int) bool { return succs[i].id < succs[j].id })
	return succs
}
