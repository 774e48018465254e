package observable

import (
	"slices"
	"sync"
	"sync/atomic"
)

type subjectEntry[T any] struct {
	observer  Observer[T]
	active    atomic.Bool
	delivered uint64
}

// deliver hands v to the observer unless a newer value already went out.
// Only the draining goroutine calls it.
func (e *subjectEntry[T]) deliver(v T, seq uint64) {
	if !e.active.Load() || seq <= e.delivered {
		return
	}
	e.delivered = seq
	e.observer.next(v)
}

func (e *subjectEntry[T]) terminate(err error) {
	if !e.active.Swap(false) {
		return
	}
	if err != nil {
		e.observer.error(err)
		return
	}
	e.observer.complete()
}

// notification is one queued emission and the observers it goes to.
type notification[T any] struct {
	value    T
	seq      uint64
	terminal bool
	err      error
	entries  []*subjectEntry[T]
}

// Subject is a hot, multicast Source. Emissions are queued and delivered by
// one goroutine at a time, so every observer sees values in the order they
// were emitted. Emitting from inside a callback is allowed: the value is
// queued and delivered once the current callback returns.
type Subject[T any] struct {
	mu        sync.Mutex
	observers map[uint64]*subjectEntry[T]
	nextId    uint64
	seq       uint64
	done      bool
	err       error

	queue    []notification[T]
	emitting bool

	replay  bool
	last    T
	hasLast bool
}

func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{
		observers: make(map[uint64]*subjectEntry[T]),
	}
}

// NewBehaviorSubject creates a Subject that hands its latest value to every
// new observer.
func NewBehaviorSubject[T any](initial T) *Subject[T] {
	s := NewSubject[T]()
	s.replay = true
	s.last = initial
	s.hasLast = true
	s.seq = 1
	return s
}

func (s *Subject[T]) Subscribe(o Observer[T]) Subscription {
	e := &subjectEntry[T]{observer: o}
	e.active.Store(true)

	s.mu.Lock()
	if s.done {
		err := s.err
		s.mu.Unlock()
		e.terminate(err)
		return noopSubscription
	}
	id := s.nextId
	s.nextId++
	s.observers[id] = e
	if s.replay && s.hasLast {
		s.enqueueLocked(notification[T]{value: s.last, seq: s.seq, entries: []*subjectEntry[T]{e}})
	} else {
		s.mu.Unlock()
	}

	return SubscriptionFunc(func() {
		e.active.Store(false)
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	})
}

// Value returns the latest emitted value.
func (s *Subject[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

func (s *Subject[T]) Next(v T) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.seq++
	s.last = v
	s.hasLast = true
	s.enqueueLocked(notification[T]{value: v, seq: s.seq, entries: s.snapshot()})
}

func (s *Subject[T]) Error(err error) {
	s.terminate(err)
}

func (s *Subject[T]) Complete() {
	s.terminate(nil)
}

func (s *Subject[T]) terminate(err error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.err = err
	entries := s.snapshot()
	s.observers = make(map[uint64]*subjectEntry[T])
	s.enqueueLocked(notification[T]{terminal: true, err: err, entries: entries})
}

// enqueueLocked must be called with s.mu held and releases it. The caller
// drains the queue unless another goroutine is already doing so.
func (s *Subject[T]) enqueueLocked(n notification[T]) {
	s.queue = append(s.queue, n)
	if s.emitting {
		s.mu.Unlock()
		return
	}
	s.emitting = true
	s.mu.Unlock()
	s.drain()
}

func (s *Subject[T]) drain() {
	defer func() {
		// a panicking observer must not wedge the subject
		if r := recover(); r != nil {
			s.mu.Lock()
			s.emitting = false
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.queue = nil
			s.emitting = false
			s.mu.Unlock()
			return
		}
		n := s.queue[0]
		s.queue[0] = notification[T]{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		for _, e := range n.entries {
			if n.terminal {
				e.terminate(n.err)
			} else {
				e.deliver(n.value, n.seq)
			}
		}
	}
}

// snapshot must be called with s.mu held.
func (s *Subject[T]) snapshot() []*subjectEntry[T] {
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	entries := make([]*subjectEntry[T], 0, len(ids))
	for _, id := range ids {
		entries = append(entries, s.observers[id])
	}
	return entries
}
