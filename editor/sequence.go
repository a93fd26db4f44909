package editor

import (
	"strconv"
	"strings"
)

// Id prefixes for temporary editor ids.
const (
	NodeIDPrefix = "ui-node"
	LinkIDPrefix = "ui-link"
)

// Sequence issues prefix-N ids from a monotonically increasing counter.
// The counter holds the next value to issue.
type Sequence struct {
	prefix string
	next   int
}

// NewSequence creates a sequence starting at zero.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Next returns a fresh id.
func (s *Sequence) Next() string {
	id := s.prefix + "-" + strconv.Itoa(s.next)
	s.next++
	return id
}

// Value returns the counter as persisted in the view state.
func (s *Sequence) Value() int {
	return s.next
}

// RestoreFrom raises the counter to n. It never lowers it.
func (s *Sequence) RestoreFrom(n int) {
	if n > s.next {
		s.next = n
	}
}

// Observe raises the counter past an id this sequence could have issued.
// Ids with a different prefix or a non-numeric suffix are ignored.
func (s *Sequence) Observe(id string) {
	rest, ok := strings.CutPrefix(id, s.prefix+"-")
	if !ok {
		return
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return
	}
	s.RestoreFrom(n + 1)
}

// Reset sets the counter back to zero.
func (s *Sequence) Reset() {
	s.next = 0
}
