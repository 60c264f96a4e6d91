package utils

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ParallelTask is one unit of work for RunParallelTasks
type ParallelTask[R any] func() (R, error)

// RunParallelTasks runs every task concurrently and returns the results in task order.
// The returned error joins every task failure.
func RunParallelTasks[R any](tasks []ParallelTask[R]) ([]R, error) {
	var wg sync.WaitGroup
	results := make([]R, len(tasks))
	errs := make([]error, len(tasks))

	wg.Add(len(tasks))
	for i, task := range tasks {
		go func(index int, t ParallelTask[R]) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[index] = fmt.Errorf("task %d panicked: %v", index, r)
				}
			}()
			results[index], errs[index] = t()
		}(i, task)
	}

	wg.Wait()
	return results, errors.Join(errs...)
}

// WorkerPool runs fire-and-forget jobs, such as outgoing mail, on a fixed set of goroutines
type WorkerPool struct {
	maxWorkers int
	taskChan   chan func()
	wg         sync.WaitGroup
	log        *zap.Logger

	mu     sync.RWMutex
	closed bool
}

var ErrPoolClosed = errors.New("worker pool is closed")

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(maxWorkers int, log *zap.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	pool := &WorkerPool{
		maxWorkers: maxWorkers,
		taskChan:   make(chan func(), maxWorkers*2),
		log:        log,
	}

	for i := 0; i < maxWorkers; i++ {
		go pool.worker()
	}

	return pool
}

func (p *WorkerPool) worker() {
	for task := range p.taskChan {
		p.run(task)
	}
}

func (p *WorkerPool) run(task func()) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Background task panicked", zap.Any("panic", r))
		}
	}()
	task()
}

// AddTask queues a task; it blocks while the queue is full
func (p *WorkerPool) AddTask(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.taskChan <- task
	return nil
}

// Wait waits for all queued tasks to complete
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Close stops accepting tasks, drains the queue and stops the workers
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	close(p.taskChan)
}
