package crdt

import (
	"fmt"
	"sort"
	"strings"
)

// Dot is a single causal event: the Counter-th op issued by Actor.
// Counters are 1-based; a zero counter never identifies an event.
type Dot[A Actor] struct {
	Actor   A
	Counter uint64
}

func (d Dot[A]) String() string {
	return fmt.Sprintf("%v:%d", d.Actor, d.Counter)
}

// VClock is a version vector: the max counter observed from each known
// actor. The representation is sparse, a missing actor reads as zero.
// Entries only ever grow; nothing in this package decrements a counter.
//
// Create with NewVClock (or Clone); methods mutate the map in place.
type VClock[A Actor] map[A]uint64

func NewVClock[A Actor]() VClock[A] {
	return make(VClock[A])
}

// Get returns the counter observed for actor, zero when unknown.
func (vv VClock[A]) Get(actor A) uint64 {
	return vv[actor]
}

// Issue mints the next dot for actor, strictly incrementing its entry.
// A counter returned once is never returned again by this clock.
func (vv VClock[A]) Issue(actor A) Dot[A] {
	vv[actor]++
	return Dot[A]{Actor: actor, Counter: vv[actor]}
}

// Dot returns the dot actor would issue next, without issuing it.
func (vv VClock[A]) Dot(actor A) Dot[A] {
	return Dot[A]{Actor: actor, Counter: vv[actor] + 1}
}

// Observe folds one dot into the clock, pointwise max.
func (vv VClock[A]) Observe(dot Dot[A]) {
	if dot.Counter > vv[dot.Actor] {
		vv[dot.Actor] = dot.Counter
	}
}

// Advance observes a dot only if it is exactly the next one in its
// actor's sequence. Duplicates come back as ErrSeen, skips as ErrGap,
// both as a SourceOrderError carrying the offending dot.
func (vv VClock[A]) Advance(dot Dot[A]) error {
	seen := vv[dot.Actor]
	if seen >= dot.Counter || seen+1 < dot.Counter {
		return SourceOrderError[A]{Dot: dot, Seen: seen}
	}
	vv[dot.Actor] = dot.Counter
	return nil
}

// Dominates reports whether the clock has observed the dot.
func (vv VClock[A]) Dominates(dot Dot[A]) bool {
	return vv[dot.Actor] >= dot.Counter
}

// DominatesClock reports whether every entry of b is covered by vv.
func (vv VClock[A]) DominatesClock(b VClock[A]) bool {
	for actor, counter := range b {
		if counter > vv[actor] {
			return false
		}
	}
	return true
}

// Ordering is the outcome of comparing two clocks. Clocks form a genuine
// partial order: two clocks that each hold an entry the other lacks are
// Concurrent, not ordered.
type Ordering int8

const (
	Equal Ordering = iota
	Less
	Greater
	Concurrent
)

func (o Ordering) String() string {
	switch o {
	case Equal:
		return "equal"
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "concurrent"
	}
}

// Compare is total over any two clocks and never fails.
func (vv VClock[A]) Compare(other VClock[A]) Ordering {
	covers := vv.DominatesClock(other)
	covered := other.DominatesClock(vv)
	switch {
	case covers && covered:
		return Equal
	case covers:
		return Greater
	case covered:
		return Less
	default:
		return Concurrent
	}
}

// Merge folds other into vv, pointwise max. The result dominates both
// inputs; merging the same clock twice changes nothing.
func (vv VClock[A]) Merge(other VClock[A]) {
	for actor, counter := range other {
		if counter > vv[actor] {
			vv[actor] = counter
		}
	}
}

// Intersection returns the entries on which both clocks agree exactly.
func (vv VClock[A]) Intersection(other VClock[A]) VClock[A] {
	common := NewVClock[A]()
	for actor, counter := range vv {
		if other[actor] == counter {
			common[actor] = counter
		}
	}
	return common
}

// ResetRemove drops every entry dominated by other: causal garbage
// collection of the clock itself. Entries ahead of other survive whole;
// nothing concurrent with other is touched.
func (vv VClock[A]) ResetRemove(other VClock[A]) {
	for actor, counter := range vv {
		if other[actor] >= counter {
			delete(vv, actor)
		}
	}
}

func (vv VClock[A]) IsEmpty() bool {
	return len(vv) == 0
}

func (vv VClock[A]) Clone() VClock[A] {
	dup := make(VClock[A], len(vv))
	for actor, counter := range vv {
		dup[actor] = counter
	}
	return dup
}

// ValidateMerge makes VClock a CvRDT in its own right; clock merges are
// always safe.
func (vv VClock[A]) ValidateMerge(other VClock[A]) error {
	return nil
}

// ValidateOp reports a malformed or causally premature dot. Duplicates
// pass: applying one is a harmless no-op.
func (vv VClock[A]) ValidateOp(op Dot[A]) error {
	if op.Counter == 0 {
		return ErrBadDot
	}
	if seen := vv[op.Actor]; op.Counter > seen+1 {
		return SourceOrderError[A]{Dot: op, Seen: seen}
	}
	return nil
}

// Apply makes VClock a CmRDT with Dot as its op.
func (vv VClock[A]) Apply(op Dot[A]) {
	vv.Observe(op)
}

func (vv VClock[A]) String() string {
	actors := make([]A, 0, len(vv))
	for actor := range vv {
		actors = append(actors, actor)
	}
	sort.Slice(actors, func(i, j int) bool { return actors[i] < actors[j] })
	var b strings.Builder
	for i, actor := range actors {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%v:%d", actor, vv[actor])
	}
	return b.String()
}

var (
	_ CvRDT[VClock[uint64]] = VClock[uint64]{}
	_ CmRDT[Dot[uint64]]    = VClock[uint64]{}
	_ ResetRemover[uint64]  = VClock[uint64]{}
)
