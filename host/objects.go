package host

import (
	"time"

	crdt "github.com/iancoleman/crdt"
	"github.com/iancoleman/crdt/counters"
	"github.com/iancoleman/crdt/lww"
	"github.com/iancoleman/crdt/orset"
	"github.com/iancoleman/crdt/store"
)

// StockFolds maps every stock object kind to its storage fold; hand it
// to store.Open when a host persists these objects.
func StockFolds() map[byte]store.Fold {
	return map[byte]store.Fold{
		counters.LitGCounter:  counters.GCounterMergeTLV,
		counters.LitPNCounter: counters.PNCounterMergeTLV,
		orset.LitORSet:        orset.MergeTLV,
		lww.LitReg:            lww.MergeTLV,
	}
}

// The stock object adapters. Each pairs a concrete replicated type with
// its wire forms; the *Op methods prepare bodies for Host.Commit.

// Counter is a replicated increment/decrement counter.
type Counter struct {
	pn *counters.PNCounter[crdt.Source]
}

func NewCounter() *Counter {
	return &Counter{pn: counters.NewPNCounter[crdt.Source]()}
}

func (c *Counter) Lit() byte     { return counters.LitPNCounter }
func (c *Counter) State() []byte { return counters.PNCounterTLV(c.pn) }

func (c *Counter) LoadState(tlv []byte) error {
	pn, err := counters.PNCounterFromTLV(tlv)
	if err != nil {
		return err
	}
	c.pn.Merge(pn)
	return nil
}

func (c *Counter) ApplyTLV(_ crdt.Dot[crdt.Source], body []byte) error {
	op, err := counters.PNOpFromTLV(body)
	if err != nil {
		return err
	}
	c.pn.Apply(op)
	return nil
}

func (c *Counter) IncOp(src crdt.Source) []byte { return counters.PNOpTLV(c.pn.Inc(src)) }
func (c *Counter) DecOp(src crdt.Source) []byte { return counters.PNOpTLV(c.pn.Dec(src)) }
func (c *Counter) Value() int64                 { return c.pn.Value() }

// Set is a replicated add-wins set of strings.
type Set struct {
	set *orset.ORSet[crdt.Source, string]
}

func NewSet() *Set {
	return &Set{set: orset.NewORSet[crdt.Source, string]()}
}

func (s *Set) Lit() byte     { return orset.LitORSet }
func (s *Set) State() []byte { return orset.StateTLV(s.set) }

func (s *Set) LoadState(tlv []byte) error {
	loaded, err := orset.FromTLV(tlv)
	if err != nil {
		return err
	}
	s.set.Merge(loaded)
	return nil
}

func (s *Set) ApplyTLV(_ crdt.Dot[crdt.Source], body []byte) error {
	op, err := orset.OpFromTLV(body)
	if err != nil {
		return err
	}
	s.set.Apply(op)
	return nil
}

func (s *Set) AddOp(src crdt.Source, members ...string) []byte {
	return orset.OpTLV(s.set.Add(src, members...))
}

func (s *Set) RemoveOp(members ...string) []byte {
	return orset.OpTLV(s.set.Remove(members...))
}

func (s *Set) Contains(member string) bool { return s.set.Contains(member) }
func (s *Set) Values() []string            { return s.set.Values() }

// Register is a replicated last-writer-wins string register stamped
// with wall-clock markers. Marker collisions are possible in theory and
// surface as a checked error through Commit/Drain, which is exactly
// what the runtime-checked contract is for.
type Register struct {
	reg *lww.Reg[uint64, string]
}

func NewRegister() *Register {
	return &Register{reg: &lww.Reg[uint64, string]{}}
}

func (r *Register) Lit() byte     { return lww.LitReg }
func (r *Register) State() []byte { return lww.RegTLV(r.reg) }

func (r *Register) LoadState(tlv []byte) error {
	loaded, err := lww.RegFromTLV(tlv)
	if err != nil {
		return err
	}
	return r.reg.MergeChecked(loaded)
}

func (r *Register) ApplyTLV(_ crdt.Dot[crdt.Source], body []byte) error {
	assign, err := lww.RegFromTLV(body)
	if err != nil {
		return err
	}
	return r.reg.ApplyChecked(lww.Assign[uint64, string]{Marker: assign.Marker, Val: assign.Val})
}

func (r *Register) SetOp(val string) []byte {
	marker := uint64(time.Now().UnixNano())
	if marker <= r.reg.Marker {
		marker = r.reg.Marker + 1
	}
	return lww.RegTLV(&lww.Reg[uint64, string]{Marker: marker, Val: val})
}

func (r *Register) Value() (string, uint64) { return r.reg.Val, r.reg.Marker }
