// Package queue holds the two fixed-capacity ordered containers behind the
// scheduler: the priority-ordered ready queue and the delta-encoded sleep
// queue. Both are array backed with intrusive next links so that no
// allocation happens after construction.
package queue

import (
	"fmt"

	"omibyte.io/rvk/klog"
)

// Policy decides where a push lands among entries of equal priority.
type Policy uint8

const (
	// TieLIFO places the newest entry ahead of existing equal entries.
	TieLIFO Policy = iota

	// TieFIFO places the newest entry behind existing equal entries.
	TieFIFO
)

func (p Policy) String() string {
	switch p {
	case TieLIFO:
		return "lifo"
	case TieFIFO:
		return "fifo"
	}
	return fmt.Sprintf("policy(%d)", uint8(p))
}

// ParsePolicy converts "lifo" or "fifo" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "lifo", "":
		return TieLIFO, nil
	case "fifo":
		return TieFIFO, nil
	}
	return TieLIFO, fmt.Errorf("unknown tie-break policy %q", s)
}

// Node is a read-only view of one ready queue entry.
type Node struct {
	ID       uint32
	Priority uint32
}

type readyNode struct {
	Node
	next int
	used bool
}

// Ready is a priority-ordered list. The head is always the entry with the
// highest priority; ties are ordered by Policy.
type Ready struct {
	nodes []readyNode
	head  int
	count int
	tie   Policy
	log   *klog.Logger
}

// NewReady returns an empty ready queue that can hold capacity entries.
func NewReady(capacity int, tie Policy, log *klog.Logger) *Ready {
	if capacity <= 0 {
		panic("ready queue capacity must be positive")
	}
	return &Ready{
		nodes: make([]readyNode, capacity),
		head:  nilIndex,
		tie:   tie,
		log:   log,
	}
}

// Push inserts id with the given priority. A duplicate id or a full backing
// array leaves the queue unchanged and returns ErrDuplicate or ErrFull.
func (r *Ready) Push(id uint32, priority uint32) error {
	if r.Contains(id) {
		r.log.Warnf("ready queue: id %d already queued, push ignored", id)
		return fmt.Errorf("%w: ready id %d", ErrDuplicate, id)
	}
	slot := r.freeSlot()
	if slot == nilIndex {
		r.log.Warnf("ready queue: full (%d entries), id %d not queued", len(r.nodes), id)
		return fmt.Errorf("%w: ready capacity %d", ErrFull, len(r.nodes))
	}

	prev := nilIndex
	cur := r.head
	for steps := 0; cur != nilIndex; steps++ {
		n := r.node(cur, steps)
		if r.goesBefore(priority, n.Priority) {
			break
		}
		prev = cur
		cur = n.next
	}

	r.nodes[slot] = readyNode{Node: Node{ID: id, Priority: priority}, next: cur, used: true}
	if prev == nilIndex {
		r.head = slot
	} else {
		r.nodes[prev].next = slot
	}
	r.count++
	return nil
}

func (r *Ready) goesBefore(priority, existing uint32) bool {
	if r.tie == TieFIFO {
		return existing < priority
	}
	return existing <= priority
}

// Pop removes and returns the head entry.
func (r *Ready) Pop() (uint32, bool) {
	if r.head == nilIndex {
		if r.count != 0 {
			panic(fmt.Errorf("%w: empty head with %d entries", ErrCorrupt, r.count))
		}
		return 0, false
	}
	n := r.node(r.head, 0)
	id := n.ID
	r.head = n.next
	*n = readyNode{next: nilIndex}
	r.count--
	return id, true
}

// Head returns the entry Pop would return, without removing it.
func (r *Ready) Head() (Node, bool) {
	if r.head == nilIndex {
		return Node{}, false
	}
	return r.node(r.head, 0).Node, true
}

// Contains reports whether id is queued.
func (r *Ready) Contains(id uint32) bool {
	for i := range r.nodes {
		if r.nodes[i].used && r.nodes[i].ID == id {
			return true
		}
	}
	return false
}

// Size returns the number of queued entries.
func (r *Ready) Size() int {
	return r.count
}

// Cap returns the capacity fixed at construction.
func (r *Ready) Cap() int {
	return len(r.nodes)
}

// Count walks the chain and returns the number of linked entries. It panics
// if the walk disagrees with Size.
func (r *Ready) Count() int {
	n := 0
	r.Each(func(Node) bool {
		n++
		return true
	})
	if n != r.count {
		panic(fmt.Errorf("%w: %d linked entries, %d counted", ErrCorrupt, n, r.count))
	}
	return n
}

// Each calls fn on entries in dequeue order until fn returns false.
func (r *Ready) Each(fn func(Node) bool) {
	cur := r.head
	for steps := 0; cur != nilIndex; steps++ {
		n := r.node(cur, steps)
		if !fn(n.Node) {
			return
		}
		cur = n.next
	}
}

func (r *Ready) freeSlot() int {
	for i := range r.nodes {
		if !r.nodes[i].used {
			return i
		}
	}
	return nilIndex
}

// node returns the slot at index i reached after steps hops, panicking on a
// link to an unused slot or a walk longer than the array (a cycle).
func (r *Ready) node(i int, steps int) *readyNode {
	if i < 0 || i >= len(r.nodes) || !r.nodes[i].used {
		panic(fmt.Errorf("%w: ready link to slot %d", ErrCorrupt, i))
	}
	if steps >= len(r.nodes) {
		panic(fmt.Errorf("%w: ready chain longer than capacity %d", ErrCorrupt, len(r.nodes)))
	}
	return &r.nodes[i]
}
