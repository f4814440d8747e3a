package counters

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crdt "github.com/iancoleman/crdt"
	"github.com/iancoleman/crdt/laws"
)

func TestGCounterIncApply(t *testing.T) {
	g := NewGCounter[string]()
	op := g.Inc("A")
	assert.Equal(t, uint64(0), g.Value(), "prepare must not mutate")
	require.NoError(t, g.ValidateOp(op))
	g.Apply(op)
	assert.Equal(t, uint64(1), g.Value())

	g.Apply(g.Inc("B"))
	g.Apply(g.Inc("B"))
	assert.Equal(t, uint64(3), g.Value())
}

func TestGCounterReplay(t *testing.T) {
	g := NewGCounter[string]()
	op := g.Inc("A")
	laws.Replay[crdt.Dot[string]](t, (*GCounter[string]).Clone, g, op)
}

func TestGCounterGapDetection(t *testing.T) {
	g := NewGCounter[string]()
	op1 := g.Inc("A")
	g.Apply(op1)
	op2 := g.Inc("A")

	fresh := NewGCounter[string]()
	require.NoError(t, fresh.ValidateOp(op1))
	assert.ErrorIs(t, fresh.ValidateOp(op2), crdt.ErrGap)
	fresh.Apply(op1)
	require.NoError(t, fresh.ValidateOp(op2))
}

func randGCounter(rng *rand.Rand) *GCounter[string] {
	g := NewGCounter[string]()
	for _, actor := range []string{"A", "B", "C"} {
		for i := rng.Intn(4); i > 0; i-- {
			g.Apply(g.Inc(actor))
		}
	}
	return g
}

func TestGCounterSemilattice(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		laws.Semilattice(t, (*GCounter[string]).Clone,
			randGCounter(rng), randGCounter(rng), randGCounter(rng))
	}
}

func TestGCounterMergeKeepsMax(t *testing.T) {
	a := NewGCounter[string]()
	a.Apply(crdt.Dot[string]{Actor: "A", Counter: 2})
	a.Apply(crdt.Dot[string]{Actor: "B", Counter: 1})
	b := NewGCounter[string]()
	b.Apply(crdt.Dot[string]{Actor: "A", Counter: 1})
	b.Apply(crdt.Dot[string]{Actor: "B", Counter: 3})

	a.Merge(b)
	assert.Equal(t, uint64(5), a.Value())
}

func TestGCounterResetRemove(t *testing.T) {
	g := NewGCounter[string]()
	g.Apply(crdt.Dot[string]{Actor: "A", Counter: 2})
	g.Apply(crdt.Dot[string]{Actor: "B", Counter: 4})

	g.ResetRemove(crdt.VClock[string]{"A": 2, "B": 1})
	// A's history is dominated and truncated; B is ahead and survives
	assert.Equal(t, uint64(4), g.Value())
}

func TestGCounterWireRoundtrip(t *testing.T) {
	g := NewGCounter[crdt.Source]()
	g.Apply(g.Inc(1))
	g.Apply(g.Inc(2))
	g.Apply(g.Inc(2))

	back, err := GCounterFromTLV(GCounterTLV(g))
	require.NoError(t, err)
	assert.Equal(t, g, back)

	merged, err := GCounterFromTLV(GCounterMergeTLV([][]byte{GCounterTLV(g), GCounterTLV(back)}))
	require.NoError(t, err)
	assert.Equal(t, g.Value(), merged.Value())
}
