package orset

import (
	"sort"

	"github.com/learn-decentralized-systems/toytlv"

	crdt "github.com/iancoleman/crdt"
)

// LitORSet is the record type letter / storage key prefix for set states.
const LitORSet = byte('S')

// Wire forms for uint64-source string sets. A state is one C record (the
// set clock), an E record per member holding the member name and its
// birth clock, and an X record per parked remove. Members are sorted so
// equal states serialize identically.

func StateTLV(s *ORSet[crdt.Source, string]) []byte {
	ret := toytlv.Record('C', crdt.VTLV(s.clock))
	members := make([]string, 0, len(s.entries))
	for member := range s.entries {
		members = append(members, member)
	}
	sort.Strings(members)
	for _, member := range members {
		ret = append(ret, toytlv.Record('E',
			toytlv.Record('M', []byte(member)),
			crdt.VTLV(s.entries[member]))...)
	}
	for _, rm := range s.deferred {
		ret = append(ret, rmTLV('X', rm.clock, rm.members)...)
	}
	return ret
}

func rmTLV(lit byte, clock crdt.VClock[crdt.Source], members []string) []byte {
	body := toytlv.Record('C', crdt.VTLV(clock))
	sorted := make([]string, len(members))
	copy(sorted, members)
	sort.Strings(sorted)
	for _, member := range sorted {
		body = append(body, toytlv.Record('M', []byte(member))...)
	}
	return toytlv.Record(lit, body)
}

func takeRm(body []byte) (clock crdt.VClock[crdt.Source], members []string, err error) {
	c, rest, err := toytlv.TakeWary('C', body)
	if err != nil {
		return
	}
	if clock, err = crdt.VFromTLV(c); err != nil {
		return
	}
	for len(rest) > 0 {
		var m []byte
		if m, rest, err = toytlv.TakeWary('M', rest); err != nil {
			return
		}
		members = append(members, string(m))
	}
	return
}

func FromTLV(tlv []byte) (*ORSet[crdt.Source, string], error) {
	s := NewORSet[crdt.Source, string]()
	c, rest, err := toytlv.TakeWary('C', tlv)
	if err != nil {
		return nil, err
	}
	if s.clock, err = crdt.VFromTLV(c); err != nil {
		return nil, err
	}
	for len(rest) > 0 {
		lit, body, more, err := toytlv.TakeAnyWary(rest)
		if err != nil {
			return nil, err
		}
		rest = more
		switch lit {
		case 'E':
			m, entryTLV, err := toytlv.TakeWary('M', body)
			if err != nil {
				return nil, err
			}
			entry, err := crdt.VFromTLV(entryTLV)
			if err != nil {
				return nil, err
			}
			s.entries[string(m)] = entry
		case 'X':
			clock, members, err := takeRm(body)
			if err != nil {
				return nil, err
			}
			s.deferred = append(s.deferred, deferredRm[crdt.Source, string]{
				clock:   clock,
				members: members,
			})
		default:
			return nil, crdt.ErrBadRecord
		}
	}
	return s, nil
}

// MergeTLV folds full states; it is the fold registered with the store
// for 'S' keys. Malformed inputs are skipped.
func MergeTLV(tlvs [][]byte) []byte {
	acc := NewORSet[crdt.Source, string]()
	for _, tlv := range tlvs {
		s, err := FromTLV(tlv)
		if err != nil {
			continue
		}
		acc.Merge(s)
	}
	return StateTLV(acc)
}

// An op is an A record (dot + members) or an R record (clock + members).

func OpTLV(op Op[crdt.Source, string]) []byte {
	switch o := op.(type) {
	case AddOp[crdt.Source, string]:
		body := crdt.DotTLV(o.Dot)
		sorted := make([]string, len(o.Members))
		copy(sorted, o.Members)
		sort.Strings(sorted)
		for _, member := range sorted {
			body = append(body, toytlv.Record('M', []byte(member))...)
		}
		return toytlv.Record('A', body)
	case RmOp[crdt.Source, string]:
		return rmTLV('R', o.Clock, o.Members)
	}
	return nil
}

func OpFromTLV(rec []byte) (Op[crdt.Source, string], error) {
	lit, body, rest, err := toytlv.TakeAnyWary(rec)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, crdt.ErrBadRecord
	}
	switch lit {
	case 'A':
		dot, more, err := crdt.TakeDot(body)
		if err != nil {
			return nil, err
		}
		var members []string
		for len(more) > 0 {
			var m []byte
			if m, more, err = toytlv.TakeWary('M', more); err != nil {
				return nil, err
			}
			members = append(members, string(m))
		}
		return AddOp[crdt.Source, string]{Dot: dot, Members: members}, nil
	case 'R':
		clock, members, err := takeRm(body)
		if err != nil {
			return nil, err
		}
		return RmOp[crdt.Source, string]{Clock: clock, Members: members}, nil
	}
	return nil, crdt.ErrBadRecord
}
