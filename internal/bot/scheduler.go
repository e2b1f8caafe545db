package bot

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	ErrQueueFull       = errors.New("event queue is full")
	ErrSchedulerClosed = errors.New("scheduler is closed")
)

// Task is one unit of inbound work.
type Task func(ctx context.Context)

// Scheduler runs each inbound event as its own task on a fixed pool of
// workers fed by a bounded queue.
type Scheduler struct {
	queue   chan Task
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewScheduler starts workers goroutines. Each task gets timeout to finish.
func NewScheduler(workers, queueSize int, timeout time.Duration) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Scheduler{
		queue:   make(chan Task, queueSize),
		timeout: timeout,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.workerLoop(id)
		}(i)
	}
	log.Printf("[Scheduler] Started %d workers (queue=%d)", workers, queueSize)
	return s
}

func (s *Scheduler) workerLoop(id int) {
	for task := range s.queue {
		s.run(id, task)
	}
}

func (s *Scheduler) run(id int, task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Scheduler] Worker %d recovered from panic: %v", id, r)
		}
	}()
	task(ctx)
}

// Submit enqueues t without blocking.
func (s *Scheduler) Submit(t Task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	select {
	case s.queue <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	log.Printf("[Scheduler] Stopped")
}
