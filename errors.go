package crdt

import (
	"errors"
	"fmt"
)

var (
	ErrSeen   = errors.New("crdt: previously seen dot")
	ErrGap    = errors.New("crdt: causal gap in dot sequence")
	ErrBadDot = errors.New("crdt: zero dot counter")
)

// SourceOrderError reports a dot that is out of sequence for its actor:
// either already observed (duplicate delivery) or ahead of the next
// expected counter (causal gap). It unwraps to ErrSeen or ErrGap so
// callers can branch with errors.Is.
type SourceOrderError[A Actor] struct {
	Dot  Dot[A]
	Seen uint64 // counter observed for Dot.Actor so far
}

func (e SourceOrderError[A]) Error() string {
	return fmt.Sprintf("%s (dot %s, seen up to %d)", e.Unwrap(), e.Dot, e.Seen)
}

func (e SourceOrderError[A]) Unwrap() error {
	if e.Seen >= e.Dot.Counter {
		return ErrSeen
	}
	return ErrGap
}
