package queue

import (
	"sync"

	"shop-api/logger"
)

// TaskQueue is a buffered in-memory queue of functions run by one background
// worker. It is used for side effects a request should not wait for.
type TaskQueue struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

func New(size int) *TaskQueue {
	return &TaskQueue{tasks: make(chan func(), size)}
}

// StartWorker launches a background goroutine that processes queued tasks.
func (q *TaskQueue) StartWorker() {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for task := range q.tasks {
			run(task)
		}
	}()
}

// Enqueue adds a task without blocking. It reports false when the queue is
// full and the task was dropped.
func (q *TaskQueue) Enqueue(task func()) bool {
	select {
	case q.tasks <- task:
		return true
	default:
		logger.Warn.Printf("task queue full, dropping task")
		return false
	}
}

// Stop closes the queue and waits until queued tasks have run. Enqueue must
// not be called after Stop.
func (q *TaskQueue) Stop() {
	q.once.Do(func() { close(q.tasks) })
	q.wg.Wait()
}

func run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error.Printf("task panicked: %v", r)
		}
	}()
	task()
}
