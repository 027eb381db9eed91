package scheduler

import (
	"sort"
	"sync"
	"time"
)

// maxFlushSteps bounds Flush against tasks that keep rescheduling themselves
const maxFlushSteps = 1 << 16

type manualTask struct {
	seq       uint64
	tag       Tag
	due       time.Duration
	fn        func()
	cancelled bool
}

// Manual is a scheduler driven by a virtual clock. Nothing runs until the
// caller advances time, and tasks run on the caller's goroutine in due order.
type Manual struct {
	mu     sync.Mutex
	delays Delays
	now    time.Duration
	seq    uint64
	tasks  []*manualTask
}

// NewManual creates a scheduler whose clock starts at zero
func NewManual(delays Delays) *Manual {
	if delays == nil {
		delays = DefaultDelays()
	}
	return &Manual{delays: delays}
}

// Schedule arms fn at now + delay(tag)
func (m *Manual) Schedule(fn func(), tag Tag) CancelFunc {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	m.seq++
	t := &manualTask{seq: m.seq, tag: tag, due: m.now + m.delays.For(tag), fn: fn}
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if t.cancelled {
			return
		}
		t.cancelled = true
		m.remove(t)
	}
}

// Now returns the virtual time elapsed since creation
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of armed tasks
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// PendingTags returns the tags of armed tasks in due order
func (m *Manual) PendingTags() []Tag {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sortLocked()
	tags := make([]Tag, 0, len(m.tasks))
	for _, t := range m.tasks {
		tags = append(tags, t.tag)
	}
	return tags
}

// Advance moves the clock forward by d, running every task that falls due,
// including tasks armed by other tasks within the window. It returns the
// number of tasks run.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	ran := 0
	for {
		t := m.next(target, true)
		if t == nil {
			break
		}
		t.fn()
		ran++
	}

	m.mu.Lock()
	if m.now < target {
		m.now = target
	}
	m.mu.Unlock()
	return ran
}

// Flush runs tasks until none are armed, moving the clock to each due time
func (m *Manual) Flush() int {
	ran := 0
	for ran < maxFlushSteps {
		t := m.next(0, false)
		if t == nil {
			break
		}
		t.fn()
		ran++
	}
	return ran
}

// next pops the earliest task, optionally only if it is due by limit
func (m *Manual) next(limit time.Duration, bounded bool) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tasks) == 0 {
		return nil
	}
	m.sortLocked()
	t := m.tasks[0]
	if bounded && t.due > limit {
		return nil
	}
	m.tasks = m.tasks[1:]
	if t.due > m.now {
		m.now = t.due
	}
	return t
}

func (m *Manual) sortLocked() {
	sort.SliceStable(m.tasks, func(i, j int) bool {
		if m.tasks[i].due != m.tasks[j].due {
			return m.tasks[i].due < m.tasks[j].due
		}
		return m.tasks[i].seq < m.tasks[j].seq
	})
}

func (m *Manual) remove(t *manualTask) {
	for i, candidate := range m.tasks {
		if candidate == t {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return
		}
	}
}
