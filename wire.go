package crdt

import (
	"encoding/binary"
	"errors"
	"sort"

	"github.com/learn-decentralized-systems/toytlv"
)

// Source is the actor form used by the wire and storage layers: a uint64
// replica id. The algebra stays generic; only serialization pins the
// actor width.
type Source = uint64

var ErrBadRecord = errors.New("crdt: malformed record")

func zipPair(big, lil uint64) []byte {
	buf := make([]byte, 0, 2*binary.MaxVarintLen64)
	buf = binary.AppendUvarint(buf, big)
	return binary.AppendUvarint(buf, lil)
}

func unzipPair(buf []byte) (big, lil uint64, err error) {
	big, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, 0, ErrBadRecord
	}
	lil, m := binary.Uvarint(buf[n:])
	if m <= 0 || n+m != len(buf) {
		return 0, 0, ErrBadRecord
	}
	return big, lil, nil
}

// DotTLV is a D record: actor, counter as a uvarint pair.
func DotTLV(dot Dot[Source]) []byte {
	return toytlv.Record('D', zipPair(dot.Actor, dot.Counter))
}

func DotFromTLV(rec []byte) (dot Dot[Source], err error) {
	dot, rest, err := TakeDot(rec)
	if err == nil && len(rest) != 0 {
		err = ErrBadRecord
	}
	return
}

// TakeDot consumes one D record off the front of tlv.
func TakeDot(tlv []byte) (dot Dot[Source], rest []byte, err error) {
	body, rest, err := toytlv.TakeWary('D', tlv)
	if err != nil {
		return
	}
	dot.Actor, dot.Counter, err = unzipPair(body)
	return
}

// VTLV serializes a clock as a run of V records, one per entry, sorted
// by actor so equal clocks serialize identically. Empty clock is nil.
func VTLV(vv VClock[Source]) (ret []byte) {
	actors := make([]uint64, 0, len(vv))
	for actor := range vv {
		actors = append(actors, actor)
	}
	sort.Slice(actors, func(i, j int) bool { return actors[i] < actors[j] })
	for _, actor := range actors {
		ret = toytlv.Append(ret, 'V', zipPair(actor, vv[actor]))
	}
	return
}

// VFromTLV consumes a run of V records.
func VFromTLV(tlv []byte) (VClock[Source], error) {
	vv := NewVClock[Source]()
	rest := tlv
	for len(rest) > 0 {
		var body []byte
		var err error
		body, rest, err = toytlv.TakeWary('V', rest)
		if err != nil {
			return nil, err
		}
		actor, counter, err := unzipPair(body)
		if err != nil {
			return nil, err
		}
		vv.Observe(Dot[Source]{Actor: actor, Counter: counter})
	}
	return vv, nil
}

// VMergeTLV folds any number of clock TLVs into one, pointwise max.
// Malformed inputs are skipped, same as the fold being fed a state it
// has already absorbed.
func VMergeTLV(tlvs [][]byte) []byte {
	vv := NewVClock[Source]()
	for _, tlv := range tlvs {
		other, err := VFromTLV(tlv)
		if err != nil {
			continue
		}
		vv.Merge(other)
	}
	return VTLV(vv)
}

// OpRecord frames one replicated op: object key, envelope dot, opaque
// body owned by the concrete type.
func OpRecord(key string, dot Dot[Source], body []byte) []byte {
	return toytlv.Record('O',
		toytlv.Record('K', []byte(key)),
		DotTLV(dot),
		toytlv.Record('B', body),
	)
}

func ParseOp(rec []byte) (key string, dot Dot[Source], body []byte, err error) {
	op, rest, err := toytlv.TakeWary('O', rec)
	if err != nil {
		return
	}
	if len(rest) != 0 {
		err = ErrBadRecord
		return
	}
	k, op, err := toytlv.TakeWary('K', op)
	if err != nil {
		return
	}
	d, op, err := toytlv.TakeWary('D', op)
	if err != nil {
		return
	}
	if dot.Actor, dot.Counter, err = unzipPair(d); err != nil {
		return
	}
	body, op, err = toytlv.TakeWary('B', op)
	if err != nil {
		return
	}
	if len(op) != 0 {
		err = ErrBadRecord
		return
	}
	key = string(k)
	return
}
