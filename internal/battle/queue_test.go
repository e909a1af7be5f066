package battle

import (
	"testing"
	"time"
)

func entry(connID, tier, mode string) QueueEntry {
	return QueueEntry{ConnID: connID, PlayerID: "player-" + connID, Tier: tier, Mode: mode, JoinedAt: time.Now()}
}

func TestQueueFIFOPairing(t *testing.T) {
	q := NewQueue()
	q.Enqueue(entry("a", "Bronze", "quick"))
	q.Enqueue(entry("b", "Bronze", "quick"))
	q.Enqueue(entry("c", "Bronze", "quick"))

	p1, p2, ok := q.DequeuePair("Bronze", "quick")
	if !ok {
		t.Fatal("expected a pair")
	}
	if p1.ConnID != "a" || p2.ConnID != "b" {
		t.Fatalf("paired %s/%s, want a/b", p1.ConnID, p2.ConnID)
	}
	if q.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", q.Len())
	}
	if _, _, ok := q.DequeuePair("Bronze", "quick"); ok {
		t.Fatal("c alone should not pair")
	}
}

func TestQueueKeyIsolation(t *testing.T) {
	q := NewQueue()
	q.Enqueue(entry("a", "Bronze", "quick"))
	q.Enqueue(entry("b", "Silver", "quick"))
	q.Enqueue(entry("c", "Bronze", "ranked"))

	if _, _, ok := q.DequeuePair("Bronze", "quick"); ok {
		t.Fatal("different tier/mode must not pair")
	}

	q.Enqueue(entry("d", "Bronze", "quick"))
	p1, p2, ok := q.DequeuePair("Bronze", "quick")
	if !ok || p1.ConnID != "a" || p2.ConnID != "d" {
		t.Fatalf("paired %s/%s ok=%v, want a/d", p1.ConnID, p2.ConnID, ok)
	}
	if q.Len() != 2 {
		t.Fatalf("queue len = %d, want 2", q.Len())
	}
}

func TestQueueRemove(t *testing.T) {
	q := NewQueue()
	q.Enqueue(entry("a", "Gold", "quick"))
	q.Enqueue(entry("b", "Gold", "quick"))

	if !q.Remove("a") {
		t.Fatal("remove existing entry")
	}
	if q.Remove("a") {
		t.Fatal("remove should fail second time")
	}
	if _, _, ok := q.DequeuePair("Gold", "quick"); ok {
		t.Fatal("b alone should not pair")
	}
}

func TestQueueReplacesSameConn(t *testing.T) {
	q := NewQueue()
	q.Enqueue(entry("a", "Bronze", "quick"))
	q.Enqueue(entry("a", "Gold", "quick"))

	if q.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", q.Len())
	}
	if _, _, ok := q.DequeuePair("Bronze", "quick"); ok {
		t.Fatal("stale Bronze entry should be gone")
	}
}
