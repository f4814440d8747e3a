package host

import (
	"testing"

	"github.com/learn-decentralized-systems/toyqueue"
	"github.com/learn-decentralized-systems/toytlv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crdt "github.com/iancoleman/crdt"
	"github.com/iancoleman/crdt/counters"
	"github.com/iancoleman/crdt/store"
)

// noopLogger drops everything; host tests assert on state, not log
// output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func testLogger() noopLogger { return noopLogger{} }

func newTestHost(t *testing.T, src crdt.Source) *Host {
	t.Helper()
	h, err := New(src, testLogger(), nil)
	require.NoError(t, err)
	return h
}

func TestNewSourceUnique(t *testing.T) {
	a, b := NewSource(), NewSource()
	assert.NotEqual(t, a, b)
	assert.NotZero(t, a)
}

func TestHostRegister(t *testing.T) {
	h := newTestHost(t, 1)
	require.NoError(t, h.Register("hits", NewCounter()))
	assert.ErrorIs(t, h.Register("hits", NewCounter()), ErrObjectExists)

	_, err := h.Commit("nope", nil)
	assert.ErrorIs(t, err, ErrObjectUnknown)

	obj, ok := h.Object("hits")
	require.True(t, ok)
	assert.Equal(t, int64(0), obj.(*Counter).Value())
}

func TestHostReplication(t *testing.T) {
	a := newTestHost(t, 1)
	b := newTestHost(t, 2)
	for _, h := range []*Host{a, b} {
		require.NoError(t, h.Register("hits", NewCounter()))
		require.NoError(t, h.Register("tags", NewSet()))
	}
	actr, _ := a.Object("hits")
	aset, _ := a.Object("tags")

	_, err := a.Commit("hits", actr.(*Counter).IncOp(a.Source()))
	require.NoError(t, err)
	_, err = a.Commit("hits", actr.(*Counter).IncOp(a.Source()))
	require.NoError(t, err)
	_, err = a.Commit("tags", aset.(*Set).AddOp(a.Source(), "x", "y"))
	require.NoError(t, err)
	_, err = a.Commit("tags", aset.(*Set).RemoveOp("y"))
	require.NoError(t, err)

	recs, err := a.Feed()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	require.NoError(t, b.Drain(recs))

	bctr, _ := b.Object("hits")
	bset, _ := b.Object("tags")
	assert.Equal(t, int64(2), bctr.(*Counter).Value())
	assert.True(t, bset.(*Set).Contains("x"))
	assert.False(t, bset.(*Set).Contains("y"))
	assert.Equal(t, a.Clock(), b.Clock())

	// redelivery is a no-op
	require.NoError(t, b.Drain(recs))
	assert.Equal(t, int64(2), bctr.(*Counter).Value())

	// nothing new to feed
	empty, err := a.Feed()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHostCommitFailureLeavesNoHole(t *testing.T) {
	a := newTestHost(t, 1)
	b := newTestHost(t, 2)
	for _, h := range []*Host{a, b} {
		require.NoError(t, h.Register("tags", NewSet()))
	}

	// a body no set op parses from must not consume a counter
	_, err := a.Commit("tags", toytlv.Record('Z', []byte("junk")))
	require.Error(t, err)
	assert.Zero(t, a.Clock().Get(a.Source()))

	empty, err := a.Feed()
	require.NoError(t, err)
	require.Empty(t, empty, "a failed commit must not feed a record")

	aset, _ := a.Object("tags")
	_, err = a.Commit("tags", aset.(*Set).AddOp(a.Source(), "x"))
	require.NoError(t, err)

	recs, err := a.Feed()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NoError(t, b.Drain(recs), "the sequence after a failed commit must have no hole")

	bset, _ := b.Object("tags")
	assert.True(t, bset.(*Set).Contains("x"))
	assert.Equal(t, a.Clock(), b.Clock())
}

func TestHostDrainBadBodyRedelivery(t *testing.T) {
	a := newTestHost(t, 1)
	b := newTestHost(t, 2)
	for _, h := range []*Host{a, b} {
		require.NoError(t, h.Register("tags", NewSet()))
	}
	aset, _ := a.Object("tags")
	dot, err := a.Commit("tags", aset.(*Set).AddOp(a.Source(), "x"))
	require.NoError(t, err)

	// a valid envelope around a body that fails to apply: the dot must
	// stay unobserved so a corrected record can still land under it
	bad := crdt.OpRecord("tags", dot, toytlv.Record('Z', []byte("junk")))
	require.Error(t, b.Drain(toyqueue.Records{bad}))
	assert.Zero(t, b.Clock().Get(a.Source()))

	recs, err := a.Feed()
	require.NoError(t, err)
	require.NoError(t, b.Drain(recs))
	bset, _ := b.Object("tags")
	assert.True(t, bset.(*Set).Contains("x"))
	assert.Equal(t, dot.Counter, b.Clock().Get(a.Source()))
}

func TestHostDrainGap(t *testing.T) {
	b := newTestHost(t, 2)
	require.NoError(t, b.Register("hits", NewCounter()))

	ctr := NewCounter()
	// a record claiming to be actor 1's second op, first never delivered
	rec := crdt.OpRecord("hits", crdt.Dot[crdt.Source]{Actor: 1, Counter: 2}, ctr.IncOp(1))
	err := b.Drain(toyqueue.Records{rec})
	assert.ErrorIs(t, err, crdt.ErrGap)

	obj, _ := b.Object("hits")
	assert.Equal(t, int64(0), obj.(*Counter).Value(), "gapped op must not apply")
}

func TestHostRegisterConvergence(t *testing.T) {
	a := newTestHost(t, 1)
	b := newTestHost(t, 2)
	require.NoError(t, a.Register("name", NewRegister()))
	require.NoError(t, b.Register("name", NewRegister()))

	areg, _ := a.Object("name")
	_, err := a.Commit("name", areg.(*Register).SetOp("amsterdam"))
	require.NoError(t, err)

	recs, err := a.Feed()
	require.NoError(t, err)
	require.NoError(t, b.Drain(recs))

	breg, _ := b.Object("name")
	val, marker := breg.(*Register).Value()
	assert.Equal(t, "amsterdam", val)
	assert.NotZero(t, marker)
}

func TestHostPersistence(t *testing.T) {
	dir := t.TempDir()
	open := func() *store.Store {
		s, err := store.Open(store.Options{
			Path: dir,
			Folds: map[byte]store.Fold{
				counters.LitPNCounter: counters.PNCounterMergeTLV,
			},
		})
		require.NoError(t, err)
		return s
	}

	db := open()
	h, err := New(7, testLogger(), db)
	require.NoError(t, err)
	ctr := NewCounter()
	require.NoError(t, h.Register("hits", ctr))
	_, err = h.Commit("hits", ctr.IncOp(h.Source()))
	require.NoError(t, err)
	_, err = h.Commit("hits", ctr.IncOp(h.Source()))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db = open()
	defer func() { require.NoError(t, db.Close()) }()
	h2, err := New(7, testLogger(), db)
	require.NoError(t, err)
	restored := NewCounter()
	require.NoError(t, h2.Register("hits", restored))
	assert.Equal(t, int64(2), restored.Value())
	assert.Equal(t, uint64(2), h2.Clock().Get(7))
}

func TestHostMetricsCollectors(t *testing.T) {
	require.Len(t, Collectors(), 2)
}
