package ecs

import (
	"math/bits"
	"strconv"
	"strings"
)

// ComponentID is a dense per-world component type identifier. IDs are
// assigned at registration time and index into Mask bits, so a world
// supports at most 64 component types.
type ComponentID uint8

const MaxComponents = 64

// Mask is an archetype bitset over component type ids. Systems declare
// their read and write sets as masks; the scheduler intersects them to
// infer ordering conflicts.
type Mask uint64

func MaskOf(ids ...ComponentID) Mask {
	var m Mask
	for _, id := range ids {
		m = m.With(id)
	}
	return m
}

func (m Mask) With(id ComponentID) Mask { return m | 1<<id }
func (m Mask) Has(id ComponentID) bool { return m&(1<<id) != 0 }
func (m Mask) Overlaps(other Mask) bool { return m&other != 0 }
func (m Mask) IsEmpty() bool { return m == 0 }

// Count returns the number of component types in the mask.
func (m Mask) Count() int { return bits.OnesCount64(uint64(m)) }

func (m Mask) String() string {
	if m == 0 {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for id := 0; id < MaxComponents; id++ {
		if m.Has(ComponentID(id)) {
			if !first {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(id))
			first = false
		}
	}
	sb.WriteByte('}')
	return sb.String()
}
