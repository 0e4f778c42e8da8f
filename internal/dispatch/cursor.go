package dispatch

import "sync/atomic"

// cursor hands out run indices 0..limit-1, each exactly once.
//
// Thread-safety: cursor is safe for concurrent use (atomic operations).
type cursor struct {
	next  atomic.Int64
	limit int64
}

func newCursor(limit int) *cursor {
	return &cursor{limit: int64(limit)}
}

// take returns the next unissued index, or false once all are issued.
func (c *cursor) take() (int, bool) {
	i := c.next.Add(1) - 1
	if i >= c.limit {
		return 0, false
	}
	return int(i), true
}

// issued returns how many indices have been handed out.
func (c *cursor) issued() int {
	return int(min(c.next.Load(), c.limit))
}
