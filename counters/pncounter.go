package counters

import (
	crdt "github.com/iancoleman/crdt"
)

// Dir tells whether a PNOp counts up or down.
type Dir int8

const (
	Pos Dir = 1
	Neg Dir = -1
)

// PNOp is one increment or decrement, causally identified by a dot in
// the corresponding direction's context.
type PNOp[A crdt.Actor] struct {
	Dot crdt.Dot[A]
	Dir Dir
}

// PNCounter is a counter that also decrements: two grow-only contexts,
// one per direction, value is their difference.
type PNCounter[A crdt.Actor] struct {
	pos crdt.VClock[A]
	neg crdt.VClock[A]
}

func NewPNCounter[A crdt.Actor]() *PNCounter[A] {
	return &PNCounter[A]{
		pos: crdt.NewVClock[A](),
		neg: crdt.NewVClock[A](),
	}
}

// Inc prepares an increment op for actor; apply locally, then ship.
func (c *PNCounter[A]) Inc(actor A) PNOp[A] {
	return PNOp[A]{Dot: c.pos.Dot(actor), Dir: Pos}
}

// Dec prepares a decrement op for actor.
func (c *PNCounter[A]) Dec(actor A) PNOp[A] {
	return PNOp[A]{Dot: c.neg.Dot(actor), Dir: Neg}
}

func (c *PNCounter[A]) Value() (val int64) {
	for actor := range c.pos {
		val += int64(c.pos.Get(actor))
	}
	for actor := range c.neg {
		val -= int64(c.neg.Get(actor))
	}
	return
}

func (c *PNCounter[A]) dir(d Dir) crdt.VClock[A] {
	if d == Neg {
		return c.neg
	}
	return c.pos
}

func (c *PNCounter[A]) ValidateOp(op PNOp[A]) error {
	return c.dir(op.Dir).ValidateOp(op.Dot)
}

func (c *PNCounter[A]) Apply(op PNOp[A]) {
	c.dir(op.Dir).Observe(op.Dot)
}

func (c *PNCounter[A]) ValidateMerge(other *PNCounter[A]) error {
	return nil
}

func (c *PNCounter[A]) Merge(other *PNCounter[A]) {
	c.pos.Merge(other.pos)
	c.neg.Merge(other.neg)
}

func (c *PNCounter[A]) ResetRemove(clock crdt.VClock[A]) {
	c.pos.ResetRemove(clock)
	c.neg.ResetRemove(clock)
}

func (c *PNCounter[A]) Clone() *PNCounter[A] {
	return &PNCounter[A]{pos: c.pos.Clone(), neg: c.neg.Clone()}
}

var (
	_ crdt.CvRDT[*PNCounter[uint64]] = (*PNCounter[uint64])(nil)
	_ crdt.CmRDT[PNOp[uint64]]       = (*PNCounter[uint64])(nil)
	_ crdt.ResetRemover[uint64]      = (*PNCounter[uint64])(nil)
)
