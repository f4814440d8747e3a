package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDotTLVRoundtrip(t *testing.T) {
	dot := Dot[Source]{Actor: 0xb0b, Counter: 345}
	back, err := DotFromTLV(DotTLV(dot))
	require.NoError(t, err)
	assert.Equal(t, dot, back)

	_, err = DotFromTLV([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestVTLVRoundtrip(t *testing.T) {
	vv := VClock[Source]{1: 3, 7: 1, 42: 900}
	back, err := VFromTLV(VTLV(vv))
	require.NoError(t, err)
	assert.Equal(t, vv, back)

	// empty clock serializes to nothing and back to empty
	assert.Nil(t, VTLV(NewVClock[Source]()))
	empty, err := VFromTLV(nil)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	// equal clocks serialize identically regardless of insertion order
	assert.Equal(t, VTLV(VClock[Source]{1: 2, 2: 1}), VTLV(VClock[Source]{2: 1, 1: 2}))
}

func TestVMergeTLV(t *testing.T) {
	a := VClock[Source]{1: 2, 2: 1}
	b := VClock[Source]{1: 1, 2: 3}
	want := a.Clone()
	want.Merge(b)

	merged, err := VFromTLV(VMergeTLV([][]byte{VTLV(a), VTLV(b)}))
	require.NoError(t, err)
	assert.Equal(t, want, merged)

	// fold order must not matter
	assert.Equal(t,
		VMergeTLV([][]byte{VTLV(a), VTLV(b)}),
		VMergeTLV([][]byte{VTLV(b), VTLV(a)}))
}

func TestOpRecordRoundtrip(t *testing.T) {
	dot := Dot[Source]{Actor: 9, Counter: 4}
	rec := OpRecord("cart", dot, []byte("payload"))
	key, got, body, err := ParseOp(rec)
	require.NoError(t, err)
	assert.Equal(t, "cart", key)
	assert.Equal(t, dot, got)
	assert.Equal(t, []byte("payload"), body)

	_, _, _, err = ParseOp(rec[:len(rec)-2])
	assert.Error(t, err)
}
