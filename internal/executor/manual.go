package executor

import (
	"sync"
	"time"
)

// Manual queues posted work until RunPending is called. Delays are ignored
// and delayed tasks run in post order, which keeps tests deterministic.
type Manual struct {
	mu    sync.Mutex
	tasks []func()
}

var _ Executor = (*Manual)(nil)

func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.tasks = append(m.tasks, fn)
	m.mu.Unlock()
}

func (m *Manual) PostDelayed(fn func(), _ time.Duration) {
	m.Post(fn)
}

// Len returns the number of queued tasks.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// RunPending runs queued tasks, including ones posted while running, until
// the queue is empty. It returns the number of tasks run.
func (m *Manual) RunPending() int {
	n := 0
	for {
		m.mu.Lock()
		if len(m.tasks) == 0 {
			m.mu.Unlock()
			return n
		}
		fn := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.mu.Unlock()
		fn()
		n++
	}
}
