package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/nimasrn/loyalty-engine/pkg/logger"
)

var ErrStopped = errors.New("worker manager stopped")

type WorkerHandler = func(workerIndex int, job interface{})

// WorkerManager fans jobs out to a fixed set of goroutines over a buffered
// channel. Jobs still buffered when Exit is called are dropped.
type WorkerManager struct {
	jobChannel     chan interface{}
	numberOfWorker int
	do             WorkerHandler
	quit           chan struct{}
	exitOnce       sync.Once
	startOnce      sync.Once
	waiter         sync.WaitGroup
}

func NewWorkerManager(bufferSize, numberOfWorkers int) *WorkerManager {
	if numberOfWorkers <= 0 {
		numberOfWorkers = 1
	}
	return &WorkerManager{
		numberOfWorker: numberOfWorkers,
		jobChannel:     make(chan interface{}, bufferSize),
		quit:           make(chan struct{}),
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue blocks until a worker slot accepts the job, ctx is done or the
// manager exits.
func (w *WorkerManager) Enqueue(ctx context.Context, job interface{}) error {
	select {
	case <-w.quit:
		return ErrStopped
	default:
	}

	select {
	case w.jobChannel <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.quit:
		return ErrStopped
	}
}

// Start launches the workers and returns immediately.
func (w *WorkerManager) Start() error {
	if w.do == nil {
		return errors.New("worker handler is not set")
	}

	w.startOnce.Do(func() {
		w.waiter.Add(w.numberOfWorker)
		for i := 0; i < w.numberOfWorker; i++ {
			go func(index int) {
				defer w.waiter.Done()
				for {
					select {
					case <-w.quit:
						return
					case job := <-w.jobChannel:
						w.do(index, job)
					}
				}
			}(i)
		}
	})
	return nil
}

// Exit stops the workers and waits for in-flight jobs to return.
func (w *WorkerManager) Exit() {
	w.exitOnce.Do(func() {
		logger.Info("worker manager shutting down", "workers", w.numberOfWorker, "dropped", len(w.jobChannel))
		close(w.quit)
	})
	w.waiter.Wait()
}
