// Package crdt is the convergence core of a replicated data type library:
// the causal-context primitive and the replication contracts that concrete
// types (counters, sets, registers, maps) build on to converge without
// coordination.
//
// Replication is either state-based (ship the whole state, reconcile with
// CvRDT.Merge) or operation-based (ship individual ops, reconcile with
// CmRDT.Apply). Both are pure value algebra: no I/O, no locking, no
// logging. A caller that shares one replica value between goroutines
// provides its own mutual exclusion.
package crdt

import "golang.org/x/exp/constraints"

// Actor identifies a mutation source. Any ordered comparable type will
// do; the algebra needs nothing from an actor beyond ordering, equality
// and usability as a map key.
type Actor interface {
	constraints.Ordered
}

// CvRDT is the state-based (convergent) replication contract.
//
// Merge must make the type a join-semilattice: idempotent, commutative
// and associative over any multiset of states from any subset of
// replicas. Merge may retain other's internal structures; a caller that
// needs other afterwards clones it first.
//
// ValidateMerge is a pure pre-check. It never mutates either operand and
// its errors are advisory: the caller may still merge, accepting
// responsibility for whatever invariant the check reported.
type CvRDT[T any] interface {
	ValidateMerge(other T) error
	Merge(other T)
}

// CmRDT is the operation-based (commutative) replication contract.
//
// Ops from a single actor must be applied in the order that actor
// produced them; ops from different actors may interleave freely. That
// is a partial order over all ops, not a total one, and it is the only
// delivery requirement. Apply must be idempotent: re-applying an op,
// identified by its causal dot, is a no-op.
//
// ValidateOp is advisory, like ValidateMerge. Types that assume
// per-actor order report violations through it (see ErrGap); whether to
// buffer an op until it is causally ready is the caller's business.
type CmRDT[O any] interface {
	ValidateOp(op O) error
	Apply(op O)
}

// ResetRemover is the causal garbage collection contract for types built
// on a causal context. ResetRemove purges data whose dots are dominated
// by clock; data concurrent with or ahead of clock survives. The caller
// must supply a clock that is a safe lower bound (typically the merge of
// the local and remote contexts), or live data is lost.
type ResetRemover[A Actor] interface {
	ResetRemove(clock VClock[A])
}

// CheckedCvRDT is the runtime-checked form of CvRDT, for types whose
// correctness invariant cannot be expressed statically (the classic case
// is marker unicity in a last-writer-wins register). On error the state
// is unchanged and the merge did not take effect; on the success path
// the usual semilattice laws hold.
type CheckedCvRDT[T any] interface {
	MergeChecked(other T) error
}

// CheckedCmRDT is the runtime-checked form of CmRDT. Same error
// semantics as CheckedCvRDT: state untouched on failure.
type CheckedCmRDT[O any] interface {
	ApplyChecked(op O) error
}
