package queue

import (
	"fmt"

	"omibyte.io/rvk/klog"
)

type sleepNode struct {
	id    uint32
	delta uint64
	next  int
	used  bool
}

// Sleep is a delta list ordered by wake tick. Every entry stores the number
// of ticks it wakes after its predecessor; the head's delta is relative to
// the epoch, the tick at which the head was last anchored. Checking whether
// anything is due is therefore a single comparison on the head.
type Sleep struct {
	nodes []sleepNode
	head  int
	count int
	epoch uint64
	log   *klog.Logger
}

// NewSleep returns an empty sleep queue that can hold capacity entries.
func NewSleep(capacity int, log *klog.Logger) *Sleep {
	if capacity <= 0 {
		panic("sleep queue capacity must be positive")
	}
	return &Sleep{
		nodes: make([]sleepNode, capacity),
		head:  nilIndex,
		log:   log,
	}
}

// Push queues id to wake at the absolute tick wake, given that the current
// tick is now. A wake tick in the past is due immediately. Entries with the
// same wake tick wake in push order.
func (s *Sleep) Push(now uint64, id uint32, wake uint64) error {
	if s.Contains(id) {
		s.log.Warnf("sleep queue: id %d already queued, push ignored", id)
		return fmt.Errorf("%w: sleep id %d", ErrDuplicate, id)
	}
	slot := s.freeSlot()
	if slot == nilIndex {
		s.log.Warnf("sleep queue: full (%d entries), id %d not queued", len(s.nodes), id)
		return fmt.Errorf("%w: sleep capacity %d", ErrFull, len(s.nodes))
	}
	if s.count == 0 {
		s.epoch = now
	} else {
		s.rebase(now)
	}
	if wake < now {
		wake = now
	}

	remaining := wake - s.epoch
	prev := nilIndex
	cur := s.head
	for steps := 0; cur != nilIndex; steps++ {
		n := s.node(cur, steps)
		if n.delta > remaining {
			break
		}
		remaining -= n.delta
		prev = cur
		cur = n.next
	}

	s.nodes[slot] = sleepNode{id: id, delta: remaining, next: cur, used: true}
	if cur != nilIndex {
		s.nodes[cur].delta -= remaining
	}
	if prev == nilIndex {
		s.head = slot
	} else {
		s.nodes[prev].next = slot
	}
	s.count++
	return nil
}

// rebase moves the epoch forward to now when the head is not yet due, so the
// head delta stays relative to the present.
func (s *Sleep) rebase(now uint64) {
	if now < s.epoch {
		panic(fmt.Errorf("%w: sleep clock went backwards (%d < epoch %d)", ErrCorrupt, now, s.epoch))
	}
	head := s.node(s.head, 0)
	elapsed := now - s.epoch
	if head.delta < elapsed {
		return
	}
	head.delta -= elapsed
	s.epoch = now
}

// Due reports whether the head entry's wake tick is at or before now.
func (s *Sleep) Due(now uint64) bool {
	if s.head == nilIndex {
		return false
	}
	return s.epoch+s.node(s.head, 0).delta <= now
}

// PopDue removes and returns the head entry if it is due at now.
func (s *Sleep) PopDue(now uint64) (uint32, bool) {
	if !s.Due(now) {
		return 0, false
	}
	n := s.node(s.head, 0)
	id := n.id
	s.epoch += n.delta
	s.head = n.next
	*n = sleepNode{next: nilIndex}
	s.count--
	return id, true
}

// Head returns the id and absolute wake tick of the next entry to wake.
func (s *Sleep) Head() (id uint32, wake uint64, ok bool) {
	if s.head == nilIndex {
		return 0, 0, false
	}
	n := s.node(s.head, 0)
	return n.id, s.epoch + n.delta, true
}

// Contains reports whether id is queued.
func (s *Sleep) Contains(id uint32) bool {
	for i := range s.nodes {
		if s.nodes[i].used && s.nodes[i].id == id {
			return true
		}
	}
	return false
}

// Size returns the number of queued entries.
func (s *Sleep) Size() int {
	return s.count
}

// Cap returns the capacity fixed at construction.
func (s *Sleep) Cap() int {
	return len(s.nodes)
}

// Each calls fn with every entry's id and reconstructed absolute wake tick,
// in wake order, until fn returns false.
func (s *Sleep) Each(fn func(id uint32, wake uint64) bool) {
	abs := s.epoch
	cur := s.head
	for steps := 0; cur != nilIndex; steps++ {
		n := s.node(cur, steps)
		abs += n.delta
		if !fn(n.id, abs) {
			return
		}
		cur = n.next
	}
}

// Deltas returns the stored deltas in chain order.
func (s *Sleep) Deltas() []uint64 {
	out := make([]uint64, 0, s.count)
	cur := s.head
	for steps := 0; cur != nilIndex; steps++ {
		n := s.node(cur, steps)
		out = append(out, n.delta)
		cur = n.next
	}
	return out
}

func (s *Sleep) freeSlot() int {
	for i := range s.nodes {
		if !s.nodes[i].used {
			return i
		}
	}
	return nilIndex
}

func (s *Sleep) node(i int, steps int) *sleepNode {
	if i < 0 || i >= len(s.nodes) || !s.nodes[i].used {
		panic(fmt.Errorf("%w: sleep link to slot %d", ErrCorrupt, i))
	}
	if steps >= len(s.nodes) {
		panic(fmt.Errorf("%w: sleep chain longer than capacity %d", ErrCorrupt, len(s.nodes)))
	}
	return &s.nodes[i]
}
