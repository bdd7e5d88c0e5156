package loop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Executor driven by the caller. Time only moves on Advance.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	tasks  []func()
	timers []*manualTimer
	seq    int
}

type manualTimer struct {
	at       time.Duration
	interval time.Duration
	seq      int
	fn       func()
	dead     bool
}

// NewManual creates an idle manual executor at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Post implements Executor.
func (m *Manual) Post(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.tasks = append(m.tasks, fn)
	m.mu.Unlock()
}

// Go implements Executor. Background work is queued like any task so tests stay single-threaded.
func (m *Manual) Go(fn func()) {
	m.Post(fn)
}

// AfterFunc implements Executor.
func (m *Manual) AfterFunc(d time.Duration, fn func()) func() bool {
	return m.schedule(d, 0, fn)
}

// Every implements Executor.
func (m *Manual) Every(interval time.Duration, fn func()) func() {
	if interval <= 0 {
		interval = time.Millisecond
	}
	cancel := m.schedule(interval, interval, fn)
	return func() { cancel() }
}

func (m *Manual) schedule(d, interval time.Duration, fn func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{at: m.now + d, interval: interval, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if t.dead {
			return false
		}
		t.dead = true
		return true
	}
}

// Drain runs queued tasks, including tasks they post, until the queue is empty.
func (m *Manual) Drain() {
	for {
		m.mu.Lock()
		if len(m.tasks) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.mu.Unlock()
		fn()
	}
}

// Advance moves virtual time forward by d, firing due timers in order and draining after each.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	m.Drain()
	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.at
		if next.interval > 0 {
			next.at += next.interval
		} else {
			next.dead = true
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
		m.Drain()
	}
}

func (m *Manual) nextDueLocked(target time.Duration) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.dead {
			live = append(live, t)
		}
	}
	m.timers = live
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at == m.timers[j].at {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at < m.timers[j].at
	})
	if len(m.timers) == 0 || m.timers[0].at > target {
		return nil
	}
	return m.timers[0]
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending reports how many tasks are queued.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Await drains repeatedly until cond holds or timeout elapses. It is for tests whose
// producers post from real goroutines.
func (m *Manual) Await(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		m.Drain()
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
