package timing

import "container/heap"

// eventQueue orders events by time. At the same time primary events come
// before secondary ones, and events of the same kind keep their push order.
// It is not safe for concurrent use.
type eventQueue struct {
	items   []queuedEvent
	nextSeq uint64
}

type queuedEvent struct {
	evt Event
	seq uint64
}

func (q *eventQueue) push(evt Event) {
	heap.Push(q, queuedEvent{evt: evt, seq: q.nextSeq})
	q.nextSeq++
}

func (q *eventQueue) pop() Event {
	return heap.Pop(q).(queuedEvent).evt
}

func (q *eventQueue) peek() Event {
	return q.items[0].evt
}

func (q *eventQueue) Len() int {
	return len(q.items)
}

func (q *eventQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]

	if a.evt.Time() != b.evt.Time() {
		return a.evt.Time() < b.evt.Time()
	}

	if a.evt.IsSecondary() != b.evt.IsSecondary() {
		return !a.evt.IsSecondary()
	}

	return a.seq < b.seq
}

func (q *eventQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *eventQueue) Push(x any) {
	q.items = append(q.items, x.(queuedEvent))
}

func (q *eventQueue) Pop() any {
	n := len(q.items)
	last := q.items[n-1]
	q.items[n-1] = queuedEvent{}
	q.items = q.items[:n-1]

	return last
}
