package dinst

import "log"

// Queue is a FIFO of instructions in program order, used for the reorder
// buffers and the fetch queue.
type Queue struct {
	buf  []*Dinst
	head int
	size int
}

// NewQueue creates a queue with room for capacity entries before it grows.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}

	return &Queue{buf: make([]*Dinst, capacity)}
}

// Len returns the number of queued instructions.
func (q *Queue) Len() int { return q.size }

// Empty reports whether the queue is empty.
func (q *Queue) Empty() bool { return q.size == 0 }

// Push appends d at the tail. Ids must be increasing.
func (q *Queue) Push(d *Dinst) {
	if q.size > 0 && q.At(q.size-1).id >= d.id {
		log.Panicf("dinst: queue push out of order: %d after %d", d.id, q.At(q.size-1).id)
	}

	if q.size == len(q.buf) {
		q.grow()
	}

	q.buf[(q.head+q.size)%len(q.buf)] = d
	q.size++
}

// Front returns the oldest instruction, or nil if empty.
func (q *Queue) Front() *Dinst {
	if q.size == 0 {
		return nil
	}

	return q.buf[q.head]
}

// Pop removes and returns the oldest instruction.
func (q *Queue) Pop() *Dinst {
	if q.size == 0 {
		log.Panic("dinst: pop from empty queue")
	}

	d := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.size--

	return d
}

// At returns the i-th oldest instruction.
func (q *Queue) At(i int) *Dinst {
	if i < 0 || i >= q.size {
		log.Panicf("dinst: queue index %d out of range", i)
	}

	return q.buf[(q.head+i)%len(q.buf)]
}

// Each calls fn on every queued instruction from oldest to youngest.
func (q *Queue) Each(fn func(*Dinst)) {
	for i := 0; i < q.size; i++ {
		fn(q.At(i))
	}
}

func (q *Queue) grow() {
	buf := make([]*Dinst, 2*len(q.buf))
	for i := 0; i < q.size; i++ {
		buf[i] = q.At(i)
	}

	q.buf = buf
	q.head = 0
}
