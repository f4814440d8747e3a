// Package orset implements an add-wins observed-remove set. Every add is
// identified by a dot; a remove only deletes the dots it has observed,
// so an add concurrent with a remove survives it.
package orset

import (
	"slices"

	crdt "github.com/iancoleman/crdt"
)

// Op is either an AddOp or an RmOp.
type Op[A crdt.Actor, V comparable] interface {
	op()
}

// AddOp inserts members under a single fresh dot.
type AddOp[A crdt.Actor, V comparable] struct {
	Dot     crdt.Dot[A]
	Members []V
}

func (AddOp[A, V]) op() {}

// RmOp removes the given members as observed up to Clock. Dots concurrent
// with Clock are untouched: adds win.
type RmOp[A crdt.Actor, V comparable] struct {
	Clock   crdt.VClock[A]
	Members []V
}

func (RmOp[A, V]) op() {}

type deferredRm[A crdt.Actor, V comparable] struct {
	clock   crdt.VClock[A]
	members []V
}

// ORSet is the replica state: the set clock summarizing every dot ever
// observed, a birth clock per live member, and removes received ahead of
// the local causal history, parked until they are ready.
type ORSet[A crdt.Actor, V comparable] struct {
	clock    crdt.VClock[A]
	entries  map[V]crdt.VClock[A]
	deferred []deferredRm[A, V]
}

func NewORSet[A crdt.Actor, V comparable]() *ORSet[A, V] {
	return &ORSet[A, V]{
		clock:   crdt.NewVClock[A](),
		entries: make(map[V]crdt.VClock[A]),
	}
}

func (s *ORSet[A, V]) Contains(member V) bool {
	_, ok := s.entries[member]
	return ok
}

func (s *ORSet[A, V]) Values() []V {
	vals := make([]V, 0, len(s.entries))
	for member := range s.entries {
		vals = append(vals, member)
	}
	return vals
}

func (s *ORSet[A, V]) Len() int {
	return len(s.entries)
}

// Clock exposes a copy of the set clock, the safe lower bound to hand to
// ResetRemove after replicas have merged.
func (s *ORSet[A, V]) Clock() crdt.VClock[A] {
	return s.clock.Clone()
}

// Add prepares an op inserting members on behalf of actor. Apply it
// locally before shipping it.
func (s *ORSet[A, V]) Add(actor A, members ...V) Op[A, V] {
	return AddOp[A, V]{Dot: s.clock.Dot(actor), Members: members}
}

// Remove prepares an op deleting members as currently observed.
func (s *ORSet[A, V]) Remove(members ...V) Op[A, V] {
	return RmOp[A, V]{Clock: s.clock.Clone(), Members: members}
}

func (s *ORSet[A, V]) ValidateOp(op Op[A, V]) error {
	if add, ok := op.(AddOp[A, V]); ok {
		return s.clock.ValidateOp(add.Dot)
	}
	return nil
}

func (s *ORSet[A, V]) Apply(op Op[A, V]) {
	switch o := op.(type) {
	case AddOp[A, V]:
		if s.clock.Dominates(o.Dot) {
			return // seen it, including a remove that already won
		}
		for _, member := range o.Members {
			entry, ok := s.entries[member]
			if !ok {
				entry = crdt.NewVClock[A]()
				s.entries[member] = entry
			}
			entry.Observe(o.Dot)
		}
		s.clock.Observe(o.Dot)
		s.applyDeferred()
	case RmOp[A, V]:
		s.applyRm(o.Clock, o.Members)
	}
}

// applyRm deletes the observed part now and parks the unobserved part
// until the local history catches up.
func (s *ORSet[A, V]) applyRm(clock crdt.VClock[A], members []V) {
	if !s.clock.DominatesClock(clock) {
		s.deferRm(clock, members)
	}
	for _, member := range members {
		entry, ok := s.entries[member]
		if !ok {
			continue
		}
		entry.ResetRemove(clock)
		if entry.IsEmpty() {
			delete(s.entries, member)
		}
	}
}

func (s *ORSet[A, V]) deferRm(clock crdt.VClock[A], members []V) {
	for i := range s.deferred {
		if s.deferred[i].clock.Compare(clock) == crdt.Equal {
			for _, member := range members {
				if !slices.Contains(s.deferred[i].members, member) {
					s.deferred[i].members = append(s.deferred[i].members, member)
				}
			}
			return
		}
	}
	s.deferred = append(s.deferred, deferredRm[A, V]{
		clock:   clock.Clone(),
		members: slices.Clone(members),
	})
}

func (s *ORSet[A, V]) applyDeferred() {
	if len(s.deferred) == 0 {
		return
	}
	pending := s.deferred
	s.deferred = nil
	for _, rm := range pending {
		s.applyRm(rm.clock, rm.members)
	}
}

func (s *ORSet[A, V]) ValidateMerge(other *ORSet[A, V]) error {
	return nil
}

// Merge reconciles two full states. A member survives with the dots both
// sides still hold, plus the dots either side holds that the other has
// never seen; dots one side saw and dropped are gone for good.
func (s *ORSet[A, V]) Merge(other *ORSet[A, V]) {
	for member, ours := range s.entries {
		if _, ok := other.entries[member]; ok {
			continue
		}
		ours.ResetRemove(other.clock)
		if ours.IsEmpty() {
			delete(s.entries, member)
		}
	}
	for member, theirs := range other.entries {
		theirs = theirs.Clone()
		ours, ok := s.entries[member]
		if !ok {
			theirs.ResetRemove(s.clock)
			if !theirs.IsEmpty() {
				s.entries[member] = theirs
			}
			continue
		}
		common := ours.Intersection(theirs)
		ours.ResetRemove(other.clock)
		theirs.ResetRemove(s.clock)
		ours.Merge(common)
		ours.Merge(theirs)
		if ours.IsEmpty() {
			delete(s.entries, member)
		}
	}
	s.clock.Merge(other.clock)
	for _, rm := range other.deferred {
		s.deferRm(rm.clock, rm.members)
	}
	s.applyDeferred()
}

// ResetRemove purges members whose every birth dot is dominated by
// clock; members holding any concurrent or newer dot survive.
func (s *ORSet[A, V]) ResetRemove(clock crdt.VClock[A]) {
	for member, entry := range s.entries {
		entry.ResetRemove(clock)
		if entry.IsEmpty() {
			delete(s.entries, member)
		}
	}
	s.clock.ResetRemove(clock)
}

func (s *ORSet[A, V]) Clone() *ORSet[A, V] {
	dup := NewORSet[A, V]()
	dup.clock = s.clock.Clone()
	for member, entry := range s.entries {
		dup.entries[member] = entry.Clone()
	}
	for _, rm := range s.deferred {
		dup.deferred = append(dup.deferred, deferredRm[A, V]{
			clock:   rm.clock.Clone(),
			members: slices.Clone(rm.members),
		})
	}
	return dup
}

var (
	_ crdt.CvRDT[*ORSet[uint64, string]] = (*ORSet[uint64, string])(nil)
	_ crdt.CmRDT[Op[uint64, string]]     = (*ORSet[uint64, string])(nil)
	_ crdt.ResetRemover[uint64]          = (*ORSet[uint64, string])(nil)
)
