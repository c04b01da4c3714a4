package hub

import "sync"

// LoadingSignal aggregates "something is in flight" across any number of
// overlapping operations. It is a reference count: it stays active until the
// last outstanding operation ends. It never times out.
type LoadingSignal struct {
	// notifyMu orders transitions with their notifications so listeners
	// always observe on/off in the order the count changed.
	notifyMu  sync.Mutex
	mu        sync.Mutex
	pending   int
	listeners []func(active bool)
}

// NewLoadingSignal creates an inactive signal.
func NewLoadingSignal() *LoadingSignal {
	return &LoadingSignal{}
}

// Begin marks one operation as started and returns the function that ends it.
// The returned function may be called more than once; only the first call counts.
func (s *LoadingSignal) Begin() (end func()) {
	s.notifyMu.Lock()
	s.mu.Lock()
	s.pending++
	notify := s.pending == 1
	listeners := s.snapshotLocked()
	s.mu.Unlock()

	if notify {
		emit(listeners, true)
	}
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(s.end)
	}
}

func (s *LoadingSignal) end() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.pending == 0 {
		s.mu.Unlock()
		return
	}
	s.pending--
	notify := s.pending == 0
	listeners := s.snapshotLocked()
	s.mu.Unlock()

	if notify {
		emit(listeners, false)
	}
}

// Active reports whether any operation is outstanding.
func (s *LoadingSignal) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// Pending returns the number of outstanding operations.
func (s *LoadingSignal) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Subscribe registers fn to be called whenever the signal turns on or off.
// Calls happen on the goroutine that caused the transition. A listener may
// read Active or Pending but must not call Begin or an end function.
func (s *LoadingSignal) Subscribe(fn func(active bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *LoadingSignal) snapshotLocked() []func(bool) {
	return append([]func(bool){}, s.listeners...)
}

func emit(listeners []func(bool), active bool) {
	for _, fn := range listeners {
		fn(active)
	}
}
