package counters

import (
	"math/rand"
	"testing"

	"github.com/learn-decentralized-systems/toytlv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crdt "github.com/iancoleman/crdt"
	"github.com/iancoleman/crdt/laws"
)

func TestPNCounterValue(t *testing.T) {
	c := NewPNCounter[string]()
	c.Apply(c.Inc("A"))
	c.Apply(c.Inc("A"))
	c.Apply(c.Dec("B"))
	assert.Equal(t, int64(1), c.Value())

	c.Apply(c.Dec("A"))
	c.Apply(c.Dec("A"))
	assert.Equal(t, int64(-1), c.Value())
}

func TestPNCounterReplayAndInterleave(t *testing.T) {
	c := NewPNCounter[string]()
	inc := c.Inc("A")
	dec := c.Dec("B")
	laws.Replay[PNOp[string]](t, (*PNCounter[string]).Clone, c, inc)
	laws.Interleave[PNOp[string]](t, (*PNCounter[string]).Clone, c, inc, dec)
}

func TestPNCounterValidateOp(t *testing.T) {
	c := NewPNCounter[string]()
	require.NoError(t, c.ValidateOp(c.Inc("A")))

	// the two directions keep independent sequences
	c.Apply(c.Inc("A"))
	assert.ErrorIs(t,
		c.ValidateOp(PNOp[string]{Dot: crdt.Dot[string]{Actor: "A", Counter: 2}, Dir: Neg}),
		crdt.ErrGap)
	require.NoError(t,
		c.ValidateOp(PNOp[string]{Dot: crdt.Dot[string]{Actor: "A", Counter: 1}, Dir: Neg}))
}

func randPNCounter(rng *rand.Rand) *PNCounter[string] {
	c := NewPNCounter[string]()
	for _, actor := range []string{"A", "B", "C"} {
		for i := rng.Intn(3); i > 0; i-- {
			c.Apply(c.Inc(actor))
		}
		for i := rng.Intn(3); i > 0; i-- {
			c.Apply(c.Dec(actor))
		}
	}
	return c
}

func TestPNCounterSemilattice(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		laws.Semilattice(t, (*PNCounter[string]).Clone,
			randPNCounter(rng), randPNCounter(rng), randPNCounter(rng))
	}
}

func TestPNCounterResetRemove(t *testing.T) {
	c := NewPNCounter[string]()
	c.Apply(c.Inc("A"))
	c.Apply(c.Dec("B"))
	c.ResetRemove(crdt.VClock[string]{"A": 5, "B": 5})
	assert.Equal(t, int64(0), c.Value())
}

func TestPNCounterWireRoundtrip(t *testing.T) {
	c := NewPNCounter[crdt.Source]()
	c.Apply(c.Inc(1))
	c.Apply(c.Inc(1))
	c.Apply(c.Dec(2))

	back, err := PNCounterFromTLV(PNCounterTLV(c))
	require.NoError(t, err)
	assert.Equal(t, c, back)

	op := c.Dec(7)
	opBack, err := PNOpFromTLV(PNOpTLV(op))
	require.NoError(t, err)
	assert.Equal(t, op, opBack)

	merged := PNCounterMergeTLV([][]byte{PNCounterTLV(c), PNCounterTLV(back)})
	assert.Equal(t, PNCounterTLV(c), merged, "self-merge must be a fixpoint")
}

func TestPNOpRecordTypes(t *testing.T) {
	c := NewPNCounter[crdt.Source]()
	// toytlv panics on record types outside A..Z; both directions must
	// frame as plain uppercase records
	for _, rec := range [][]byte{PNOpTLV(c.Inc(1)), PNOpTLV(c.Dec(1))} {
		lit, _, rest, err := toytlv.TakeAnyWary(rec)
		require.NoError(t, err)
		require.Empty(t, rest)
		assert.True(t, lit >= 'A' && lit <= 'Z', "record type %q out of range", lit)
	}
}
