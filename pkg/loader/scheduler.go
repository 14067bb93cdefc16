package loader

import "container/heap"

// item is a call waiting for admission.
type item struct {
	call  *call
	seq   uint64
	index int
}

// waitList is a min-heap ordered by (priority, seq): the most urgent class
// first, arrival order within a class.
type waitList []*item

func (w waitList) Len() int { return len(w) }

func (w waitList) Less(i, j int) bool {
	if w[i].call.priority != w[j].call.priority {
		return w[i].call.priority < w[j].call.priority
	}
	return w[i].seq < w[j].seq
}

func (w waitList) Swap(i, j int) {
	w[i], w[j] = w[j], w[i]
	w[i].index = i
	w[j].index = j
}

func (w *waitList) Push(x any) {
	it := x.(*item)
	it.index = len(*w)
	*w = append(*w, it)
}

func (w *waitList) Pop() any {
	old := *w
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*w = old[:n-1]
	return it
}

// scheduler admits calls up to a concurrency bound. It does no locking;
// callers hold Loader.mu. Admitted calls are never preempted.
type scheduler struct {
	max    int
	active int
	seq    uint64
	wait   waitList
	byKey  map[string]*item
}

func newScheduler(maxConcurrent int) *scheduler {
	return &scheduler{
		max:   maxConcurrent,
		byKey: make(map[string]*item),
	}
}

// submit queues c behind every call of equal or higher priority.
func (s *scheduler) submit(c *call) {
	s.seq++
	it := &item{call: c, seq: s.seq}
	heap.Push(&s.wait, it)
	s.byKey[c.key] = it
}

// promote raises a queued call to p if p is more urgent. It keeps the
// call's original arrival position relative to its new class. It reports
// whether the call was queued and raised.
func (s *scheduler) promote(key string, p Priority) bool {
	it, ok := s.byKey[key]
	if !ok || p >= it.call.priority {
		return false
	}
	it.call.priority = p
	heap.Fix(&s.wait, it.index)
	return true
}

// next pops the most urgent queued call and counts it as active, or
// returns nil when at capacity or nothing is queued.
func (s *scheduler) next() *call {
	if s.active >= s.max || s.wait.Len() == 0 {
		return nil
	}
	it := heap.Pop(&s.wait).(*item)
	delete(s.byKey, it.call.key)
	s.active++
	return it.call
}

// release frees the slot held by an admitted call.
func (s *scheduler) release() {
	if s.active > 0 {
		s.active--
	}
}

// cancel removes the queued call for key. Admitted calls are not affected.
func (s *scheduler) cancel(key string) (*call, bool) {
	it, ok := s.byKey[key]
	if !ok {
		return nil, false
	}
	heap.Remove(&s.wait, it.index)
	delete(s.byKey, key)
	return it.call, true
}

// drain removes and returns every queued call in admission order.
func (s *scheduler) drain() []*call {
	calls := make([]*call, 0, s.wait.Len())
	for s.wait.Len() > 0 {
		it := heap.Pop(&s.wait).(*item)
		calls = append(calls, it.call)
	}
	s.byKey = make(map[string]*item)
	return calls
}

func (s *scheduler) queued() int {
	return s.wait.Len()
}

// queuedByPriority counts queued calls per priority class.
func (s *scheduler) queuedByPriority() map[Priority]int {
	out := make(map[Priority]int, 3)
	for _, it := range s.wait {
		out[it.call.priority]++
	}
	return out
}
