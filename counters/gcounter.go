// Package counters holds the counter family: the grow-only GCounter and
// the increment/decrement PNCounter. Both replicate state-based through
// merge and op-based through dots, and both support causal reset.
package counters

import (
	crdt "github.com/iancoleman/crdt"
)

// GCounter is a grow-only counter. Its whole state is a causal context:
// each actor's entry counts that actor's increments, the value is the
// sum over all actors.
type GCounter[A crdt.Actor] struct {
	inc crdt.VClock[A]
}

func NewGCounter[A crdt.Actor]() *GCounter[A] {
	return &GCounter[A]{inc: crdt.NewVClock[A]()}
}

// Inc prepares an increment op for actor. Nothing changes until the op
// is applied; apply it locally first, then ship it to the other
// replicas.
func (g *GCounter[A]) Inc(actor A) crdt.Dot[A] {
	return g.inc.Dot(actor)
}

// Value is the sum of all increments observed so far.
func (g *GCounter[A]) Value() (sum uint64) {
	for actor := range g.inc {
		sum += g.inc.Get(actor)
	}
	return
}

func (g *GCounter[A]) ValidateOp(op crdt.Dot[A]) error {
	return g.inc.ValidateOp(op)
}

func (g *GCounter[A]) Apply(op crdt.Dot[A]) {
	g.inc.Observe(op)
}

func (g *GCounter[A]) ValidateMerge(other *GCounter[A]) error {
	return nil
}

func (g *GCounter[A]) Merge(other *GCounter[A]) {
	g.inc.Merge(other.inc)
}

// ResetRemove truncates increments dominated by clock. The value shrinks
// accordingly; that is the point of a causal reset.
func (g *GCounter[A]) ResetRemove(clock crdt.VClock[A]) {
	g.inc.ResetRemove(clock)
}

func (g *GCounter[A]) Clone() *GCounter[A] {
	return &GCounter[A]{inc: g.inc.Clone()}
}

var (
	_ crdt.CvRDT[*GCounter[uint64]] = (*GCounter[uint64])(nil)
	_ crdt.CmRDT[crdt.Dot[uint64]]  = (*GCounter[uint64])(nil)
	_ crdt.ResetRemover[uint64]     = (*GCounter[uint64])(nil)
)
