// Package laws holds the convergence-law checkers shared by the tests of
// every concrete replicated type: the join-semilattice laws for
// state-based merge and the replay/interleaving guarantees for
// operation-based apply.
package laws

import (
	"testing"

	"github.com/stretchr/testify/require"

	crdt "github.com/iancoleman/crdt"
)

// Semilattice asserts merge idempotence, commutativity and associativity
// over the three given states. clone must produce an independent deep
// copy; merge arguments are always cloned first, since Merge may consume
// them.
func Semilattice[T crdt.CvRDT[T]](t *testing.T, clone func(T) T, a, b, c T) {
	t.Helper()

	require.NoError(t, a.ValidateMerge(b))

	ab := clone(a)
	ab.Merge(clone(b))

	twice := clone(ab)
	twice.Merge(clone(b))
	require.Equal(t, ab, twice, "merge must be idempotent")

	ba := clone(b)
	ba.Merge(clone(a))
	require.Equal(t, ab, ba, "merge must be commutative")

	abc := clone(ab)
	abc.Merge(clone(c))
	bc := clone(b)
	bc.Merge(clone(c))
	acb := clone(a)
	acb.Merge(bc)
	require.Equal(t, abc, acb, "merge must be associative")
}

// Replay asserts op idempotence: applying op twice leaves the same state
// as applying it once.
func Replay[O any, T crdt.CmRDT[O]](t *testing.T, clone func(T) T, state T, op O) {
	t.Helper()

	once := clone(state)
	once.Apply(op)
	twice := clone(once)
	twice.Apply(op)
	require.Equal(t, once, twice, "op replay must be a no-op")
}

// Interleave asserts that ops from different actors commute: either
// delivery order converges to the same state. Do not hand it two ops of
// one actor; those are ordered by contract, not commutative.
func Interleave[O any, T crdt.CmRDT[O]](t *testing.T, clone func(T) T, state T, a, b O) {
	t.Helper()

	x := clone(state)
	x.Apply(a)
	x.Apply(b)

	y := clone(state)
	y.Apply(b)
	y.Apply(a)
	require.Equal(t, x, y, "concurrent ops must commute")
}
