package counters

import (
	"github.com/learn-decentralized-systems/toytlv"

	crdt "github.com/iancoleman/crdt"
)

// Record type letters used as storage key prefixes.
const (
	LitGCounter  = byte('G')
	LitPNCounter = byte('P')
)

// Wire forms for uint64-source counters, consumed by the store and host
// layers. A GCounter state is exactly its clock's TLV.

func GCounterTLV(g *GCounter[crdt.Source]) []byte {
	return crdt.VTLV(g.inc)
}

func GCounterFromTLV(tlv []byte) (*GCounter[crdt.Source], error) {
	inc, err := crdt.VFromTLV(tlv)
	if err != nil {
		return nil, err
	}
	return &GCounter[crdt.Source]{inc: inc}, nil
}

// GCounterMergeTLV folds states without decoding into counters; it is
// the fold registered with the store for 'G' keys.
func GCounterMergeTLV(tlvs [][]byte) []byte {
	return crdt.VMergeTLV(tlvs)
}

// A PNCounter state is a P record and an N record, one clock each.

func PNCounterTLV(c *PNCounter[crdt.Source]) []byte {
	return toytlv.Concat(
		toytlv.Record('P', crdt.VTLV(c.pos)),
		toytlv.Record('N', crdt.VTLV(c.neg)),
	)
}

func PNCounterFromTLV(tlv []byte) (*PNCounter[crdt.Source], error) {
	p, rest, err := toytlv.TakeWary('P', tlv)
	if err != nil {
		return nil, err
	}
	n, rest, err := toytlv.TakeWary('N', rest)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, crdt.ErrBadRecord
	}
	pos, err := crdt.VFromTLV(p)
	if err != nil {
		return nil, err
	}
	neg, err := crdt.VFromTLV(n)
	if err != nil {
		return nil, err
	}
	return &PNCounter[crdt.Source]{pos: pos, neg: neg}, nil
}

func PNCounterMergeTLV(tlvs [][]byte) []byte {
	acc := NewPNCounter[crdt.Source]()
	for _, tlv := range tlvs {
		c, err := PNCounterFromTLV(tlv)
		if err != nil {
			continue
		}
		acc.Merge(c)
	}
	return PNCounterTLV(acc)
}

// A PNOp is a single I (increment) or N (decrement) record holding the
// dot. Record types must stay in toytlv's A..Z range.

func PNOpTLV(op PNOp[crdt.Source]) []byte {
	lit := byte('I')
	if op.Dir == Neg {
		lit = 'N'
	}
	return toytlv.Record(lit, crdt.DotTLV(op.Dot))
}

func PNOpFromTLV(rec []byte) (op PNOp[crdt.Source], err error) {
	lit, body, rest, err := toytlv.TakeAnyWary(rec)
	if err != nil {
		return
	}
	if len(rest) != 0 || (lit != 'I' && lit != 'N') {
		err = crdt.ErrBadRecord
		return
	}
	op.Dir = Pos
	if lit == 'N' {
		op.Dir = Neg
	}
	op.Dot, err = crdt.DotFromTLV(body)
	return
}
