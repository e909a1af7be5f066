package battle

import "sync"

// Queue is the matchmaking queue. Arrival order is preserved; pairing scans
// from the front so the two longest-waiting players of a (tier, mode) key
// match first.
type Queue struct {
	mu      sync.Mutex
	entries []QueueEntry
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a waiting player. A connection may hold at most one slot;
// an existing entry for the same connection is replaced.
func (q *Queue) Enqueue(e QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].ConnID == e.ConnID {
			q.entries[i] = e
			return
		}
	}
	q.entries = append(q.entries, e)
}

// DequeuePair removes and returns the two oldest entries matching (tier, mode).
// The scan and removal happen under one lock so a player cannot be matched twice.
func (q *Queue) DequeuePair(tier, mode string) (QueueEntry, QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	first := -1
	for i, e := range q.entries {
		if e.Tier != tier || e.Mode != mode {
			continue
		}
		if first == -1 {
			first = i
			continue
		}
		a, b := q.entries[first], q.entries[i]
		rest := make([]QueueEntry, 0, len(q.entries)-2)
		for j, en := range q.entries {
			if j != first && j != i {
				rest = append(rest, en)
			}
		}
		q.entries = rest
		return a, b, true
	}
	return QueueEntry{}, QueueEntry{}, false
}

// Remove drops the entry for a connection, if any.
func (q *Queue) Remove(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.ConnID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
