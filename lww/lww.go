// Package lww implements a last-writer-wins register. The register's
// invariant — one marker never carries two different values — cannot be
// promised by the type system, so the mutators are the runtime-checked
// contract variants: they return an error and leave the state untouched
// instead of silently losing a write.
package lww

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"

	crdt "github.com/iancoleman/crdt"
)

var ErrConflict = errors.New("lww: conflicting values for one marker")

// ConflictError reports two distinct values sharing a marker. Unwraps to
// ErrConflict.
type ConflictError[M constraints.Ordered, V comparable] struct {
	Marker       M
	Ours, Theirs V
}

func (e ConflictError[M, V]) Error() string {
	return fmt.Sprintf("lww: marker %v carries both %v and %v", e.Marker, e.Ours, e.Theirs)
}

func (e ConflictError[M, V]) Unwrap() error {
	return ErrConflict
}

// Reg is the register: a value and the totally ordered marker that
// stamped it. Markers are the caller's choice — wall clock, hybrid
// logical clock, lamport counter with an actor tiebreak — as long as no
// two writers ever stamp different values with the same marker. The zero
// Reg holds the zero value at the zero marker and is dominated by any
// real write.
type Reg[M constraints.Ordered, V comparable] struct {
	Marker M
	Val    V
}

// Assign is the op form: the written value and its marker.
type Assign[M constraints.Ordered, V comparable] struct {
	Marker M
	Val    V
}

// Update prepares an assignment op. Apply it locally via ApplyChecked,
// then ship it.
func (r *Reg[M, V]) Update(marker M, val V) Assign[M, V] {
	return Assign[M, V]{Marker: marker, Val: val}
}

// MergeChecked keeps whichever side carries the greater marker. Equal
// markers with equal values are the idempotent no-op; equal markers with
// different values violate the invariant and fail without touching the
// state. On the success path merge is idempotent, commutative and
// associative.
func (r *Reg[M, V]) MergeChecked(other *Reg[M, V]) error {
	switch {
	case other.Marker > r.Marker:
		*r = *other
	case other.Marker == r.Marker && other.Val != r.Val:
		return ConflictError[M, V]{Marker: r.Marker, Ours: r.Val, Theirs: other.Val}
	}
	return nil
}

// ApplyChecked is MergeChecked for a single op.
func (r *Reg[M, V]) ApplyChecked(op Assign[M, V]) error {
	return r.MergeChecked(&Reg[M, V]{Marker: op.Marker, Val: op.Val})
}

func (r *Reg[M, V]) Clone() *Reg[M, V] {
	dup := *r
	return &dup
}

var (
	_ crdt.CheckedCvRDT[*Reg[uint64, string]]   = (*Reg[uint64, string])(nil)
	_ crdt.CheckedCmRDT[Assign[uint64, string]] = (*Reg[uint64, string])(nil)
)
