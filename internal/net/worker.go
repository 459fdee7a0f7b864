package net

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	TASK_CHAN_SIZE = 100
)

type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool runs a fixed number of workers under a tomb. Each task is handed
// to exactly one worker.
type WorkerPool struct {
	n     int      // number of workers
	tasks chan any // pending tasks
	busy  atomic.Int32
}

func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		n:     size,
		tasks: make(chan any, TASK_CHAN_SIZE),
	}
}

// Setup starts the workers. They exit once the tomb starts dying.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	for id := range pool.n {
		t.Go(func() error {
			return pool.worker(t, id, work)
		})
	}
}

// Idle returns the number of workers not currently running a task.
func (pool *WorkerPool) Idle() int {
	return pool.n - int(pool.busy.Load())
}

// AddTask queues a task, blocking while the queue is full. It returns false if
// the tomb died first.
func (pool *WorkerPool) AddTask(t *tomb.Tomb, task any) bool {
	if !t.Alive() {
		return false
	}
	select {
	case <-t.Dying():
		return false
	case pool.tasks <- task:
		return true
	}
}

// Workers wait on tasks in the task pool and action them. An error from work
// is fatal to the tomb.
func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			pool.busy.Add(1)
			err := work(t, task)
			pool.busy.Add(-1)
			if err != nil {
				log.Error().Err(err).Int("id", id).Msg("worker exiting")
				return err
			}
		}
	}
}
