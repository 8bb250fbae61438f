package coach

// promptQueue keeps prompts ordered by (priority rank ascending, creation
// time ascending). Queue sizes stay in the single digits, so a stable
// insertion sort is sufficient.
type promptQueue struct {
	items []Prompt
}

// insert places p at its sorted position. Prompts that compare equal keep
// insertion order.
func (q *promptQueue) insert(p Prompt) {
	i := len(q.items)
	for i > 0 && less(p, q.items[i-1]) {
		i--
	}
	q.items = append(q.items, Prompt{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = p
}

// less reports whether a should be dequeued strictly before b.
func less(a, b Prompt) bool {
	if a.Type.Rank() != b.Type.Rank() {
		return a.Type.Rank() < b.Type.Rank()
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// pushFront places p ahead of everything else regardless of rank. Used by
// snooze so the snoozed prompt is the first considered for promotion.
func (q *promptQueue) pushFront(p Prompt) {
	q.items = append([]Prompt{p}, q.items...)
}

// popFront removes and returns the head of the queue.
func (q *promptQueue) popFront() (Prompt, bool) {
	if len(q.items) == 0 {
		return Prompt{}, false
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p, true
}

func (q *promptQueue) len() int { return len(q.items) }

func (q *promptQueue) clear() { q.items = nil }

// snapshot returns a copy of the queue contents in dequeue order.
func (q *promptQueue) snapshot() []Prompt {
	out := make([]Prompt, len(q.items))
	copy(out, q.items)
	return out
}
