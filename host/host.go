// Package host is the in-process replica runtime: it owns a source id,
// the replica clock, the live replicated objects, and the plumbing that
// turns local mutations into op records and remote op records into local
// applies. Transport stays outside; anything that can move Records can
// replicate two hosts.
package host

import (
	"sync"

	"github.com/cespare/xxhash"
	"github.com/google/uuid"
	"github.com/learn-decentralized-systems/toyqueue"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	crdt "github.com/iancoleman/crdt"
	"github.com/iancoleman/crdt/store"
	"github.com/iancoleman/crdt/utils"
)

var (
	ErrObjectUnknown = errors.New("crdt: unknown object")
	ErrObjectExists  = errors.New("crdt: object already registered")
)

var (
	opsCommitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crdt",
		Subsystem: "host",
		Name:      "ops_committed",
	}, []string{"object"})
	opsDrained = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crdt",
		Subsystem: "host",
		Name:      "ops_drained",
	}, []string{"object", "result"})
)

// Collectors returns the host metrics for registration in the
// surrounding process's registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{opsCommitted, opsDrained}
}

// Object is a replicated object the host can own: TLV state in and out,
// plus checked application of op bodies. The envelope dot is the host's
// causal stamp; bodies carry whatever causal metadata the concrete type
// needs on top.
type Object interface {
	Lit() byte
	State() []byte
	LoadState(tlv []byte) error
	ApplyTLV(dot crdt.Dot[crdt.Source], body []byte) error
}

const (
	outQueueLimit = 1 << 16
	clockKey      = "replica"
)

// Host is one replica. All mutations of one host go through its lock;
// different hosts share nothing, which is the whole point.
type Host struct {
	src     crdt.Source
	log     utils.Logger
	db      *store.Store // nil for a memory-only replica
	clock   crdt.VClock[crdt.Source]
	objects *xsync.MapOf[string, Object]
	out     toyqueue.RecordQueue
	lock    sync.Mutex
}

// NewSource derives a fresh replica source id from a random uuid.
func NewSource() crdt.Source {
	id := uuid.New()
	return xxhash.Sum64(id[:])
}

func New(src crdt.Source, log utils.Logger, db *store.Store) (*Host, error) {
	h := &Host{
		src:     src,
		log:     log,
		db:      db,
		clock:   crdt.NewVClock[crdt.Source](),
		objects: xsync.NewMapOf[string, Object](),
	}
	h.out.Limit = outQueueLimit
	if db != nil {
		state, err := db.Load(store.LitClock, clockKey)
		if err != nil {
			return nil, err
		}
		if state != nil {
			if h.clock, err = crdt.VFromTLV(state); err != nil {
				return nil, errors.Wrap(err, "host: saved clock")
			}
		}
	}
	log.Info("host: replica open", "src", src, "seen", h.clock.String())
	return h, nil
}

func (h *Host) Source() crdt.Source { return h.src }

// Clock is a snapshot of the ops this replica has observed.
func (h *Host) Clock() crdt.VClock[crdt.Source] {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.clock.Clone()
}

// Register adds an object under key, restoring its persisted state when
// a store is attached.
func (h *Host) Register(key string, obj Object) error {
	if _, loaded := h.objects.LoadOrStore(key, obj); loaded {
		return errors.Wrapf(ErrObjectExists, "%q", key)
	}
	if h.db != nil {
		state, err := h.db.Load(obj.Lit(), key)
		if err != nil {
			return err
		}
		if state != nil {
			if err = obj.LoadState(state); err != nil {
				return errors.Wrapf(err, "host: restore %q", key)
			}
		}
	}
	return nil
}

func (h *Host) Object(key string) (Object, bool) {
	return h.objects.Load(key)
}

func (h *Host) Range(fn func(key string, obj Object) bool) {
	h.objects.Range(fn)
}

// Commit applies a locally prepared op body to its object, stamps it
// with a fresh dot of this replica, persists the new state and queues
// the record for the peers. The clock entry is consumed only once the
// record is queued: a failed apply or a full queue leaves the sequence
// without a hole, so peers never gap on an op that was never shipped and
// a retried Commit with the same body converges.
func (h *Host) Commit(key string, body []byte) (crdt.Dot[crdt.Source], error) {
	obj, ok := h.objects.Load(key)
	if !ok {
		return crdt.Dot[crdt.Source]{}, errors.Wrapf(ErrObjectUnknown, "%q", key)
	}
	h.lock.Lock()
	defer h.lock.Unlock()

	dot := h.clock.Dot(h.src)
	if err := obj.ApplyTLV(dot, body); err != nil {
		return crdt.Dot[crdt.Source]{}, errors.Wrapf(err, "host: commit %q", key)
	}
	if err := h.out.Drain(toyqueue.Records{crdt.OpRecord(key, dot, body)}); err != nil {
		return crdt.Dot[crdt.Source]{}, errors.Wrap(err, "host: outbound queue")
	}
	h.clock.Observe(dot)
	if err := h.persist(key, obj); err != nil {
		return dot, err
	}
	opsCommitted.WithLabelValues(key).Inc()
	h.log.Debug("host: committed", "object", key, "dot", dot.String())
	return dot, nil
}

// Feed hands out the op records committed since the last call, empty
// when there is nothing to ship. Together with Drain it makes two hosts
// a toyqueue feed/drain pair.
func (h *Host) Feed() (toyqueue.Records, error) {
	recs, err := h.out.Feed()
	if err == toyqueue.ErrWouldBlock {
		return nil, nil
	}
	return recs, err
}

// Drain applies op records from a peer. Duplicates are skipped, that is
// what the envelope dots are for; a causal gap stops the batch with
// ErrGap so the caller can redeliver in order. The clock observes a dot
// only after its op applied, so a record with a bad body can be
// redelivered corrected under the same dot. At-least-once delivery per
// actor sequence is all a transport has to provide.
func (h *Host) Drain(recs toyqueue.Records) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	for _, rec := range recs {
		key, dot, body, err := crdt.ParseOp(rec)
		if err != nil {
			return errors.Wrap(err, "host: drain")
		}
		obj, ok := h.objects.Load(key)
		if !ok {
			opsDrained.WithLabelValues(key, "unknown").Inc()
			return errors.Wrapf(ErrObjectUnknown, "%q", key)
		}
		seen := h.clock.Get(dot.Actor)
		if seen >= dot.Counter {
			opsDrained.WithLabelValues(key, "seen").Inc()
			h.log.Debug("host: duplicate op", "object", key, "dot", dot.String())
			continue
		}
		if dot.Counter > seen+1 {
			opsDrained.WithLabelValues(key, "gap").Inc()
			err = crdt.SourceOrderError[crdt.Source]{Dot: dot, Seen: seen}
			return errors.Wrapf(err, "host: drain %q", key)
		}
		if err = obj.ApplyTLV(dot, body); err != nil {
			opsDrained.WithLabelValues(key, "invalid").Inc()
			return errors.Wrapf(err, "host: drain %q", key)
		}
		h.clock.Observe(dot)
		if err = h.persist(key, obj); err != nil {
			return err
		}
		opsDrained.WithLabelValues(key, "applied").Inc()
	}
	return nil
}

func (h *Host) persist(key string, obj Object) error {
	if h.db == nil {
		return nil
	}
	if err := h.db.Merge(obj.Lit(), key, obj.State()); err != nil {
		return errors.Wrapf(err, "host: persist %q", key)
	}
	return errors.Wrap(h.db.Merge(store.LitClock, clockKey, crdt.VTLV(h.clock)), "host: persist clock")
}
