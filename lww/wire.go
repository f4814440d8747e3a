package lww

import (
	"encoding/binary"

	"github.com/learn-decentralized-systems/toytlv"

	crdt "github.com/iancoleman/crdt"
)

// LitReg is the record type letter / storage key prefix for registers.
const LitReg = byte('W')

// Wire forms for uint64-marker string registers: one W record, marker
// uvarint followed by the value bytes.

func RegTLV(r *Reg[uint64, string]) []byte {
	body := binary.AppendUvarint(nil, r.Marker)
	return toytlv.Record('W', append(body, r.Val...))
}

func RegFromTLV(rec []byte) (*Reg[uint64, string], error) {
	body, rest, err := toytlv.TakeWary('W', rec)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, crdt.ErrBadRecord
	}
	marker, n := binary.Uvarint(body)
	if n <= 0 {
		return nil, crdt.ErrBadRecord
	}
	return &Reg[uint64, string]{Marker: marker, Val: string(body[n:])}, nil
}

// MergeTLV folds register states for the store: greatest marker wins,
// and a marker tie breaks to the greater value so the fold stays
// commutative. The in-memory checked path still reports ties as
// conflicts; the storage fold just has to pick deterministically.
func MergeTLV(tlvs [][]byte) []byte {
	var win *Reg[uint64, string]
	for _, tlv := range tlvs {
		r, err := RegFromTLV(tlv)
		if err != nil {
			continue
		}
		if win == nil ||
			r.Marker > win.Marker ||
			(r.Marker == win.Marker && r.Val > win.Val) {
			win = r
		}
	}
	if win == nil {
		return nil
	}
	return RegTLV(win)
}
