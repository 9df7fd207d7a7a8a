package pools

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

var (
	// ErrPoolClosed is returned by Submit after Close
	ErrPoolClosed = errors.New("pools: worker pool closed")
	// ErrPoolBusy is returned by TrySubmit when no worker is idle
	ErrPoolBusy = errors.New("pools: no idle worker")
)

// Task represents a unit of work
type Task func()

// WorkerPool runs tasks on a fixed set of work-stealing workers. Each
// worker owns a bounded queue; idle workers take tasks from their
// neighbours' queues. Idle workers also accept tasks handed to them
// directly by TrySubmit.
type WorkerPool struct {
	numWorkers int
	queues     []chan Task
	direct     chan Task
	next       atomic.Uint64
	done       chan struct{}
	closed     atomic.Bool
	closeOnce  sync.Once
	wg         sync.WaitGroup

	// held shared by submitters, exclusively by Close
	mu sync.RWMutex

	submitted atomic.Uint64
	completed atomic.Uint64
	rejected  atomic.Uint64
	steals    atomic.Uint64
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	NumWorkers     int
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksPending   uint64
	TasksRejected  uint64
	Steals         uint64
}

// NewWorkerPool starts numWorkers workers, each with a queue of queueSize
// tasks. Non-positive values default to NumCPU workers and 256 slots.
func NewWorkerPool(numWorkers, queueSize int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	p := &WorkerPool{
		numWorkers: numWorkers,
		queues:     make([]chan Task, numWorkers),
		direct:     make(chan Task),
		done:       make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan Task, queueSize)
	}

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.run(i)
	}
	return p
}

// Submit queues task on the next worker in round-robin order, falling
// back to its neighbour. When both queues are full it waits for room
// until ctx is done.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return ErrPoolClosed
	}

	idx := int(p.next.Add(1) % uint64(p.numWorkers))
	for i := 0; i < 2; i++ {
		select {
		case p.queues[(idx+i)%p.numWorkers] <- task:
			p.submitted.Add(1)
			return nil
		default:
		}
	}

	select {
	case p.queues[idx] <- task:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		p.rejected.Add(1)
		return errors.Wrap(ctx.Err(), "submit task")
	case <-p.done:
		p.rejected.Add(1)
		return ErrPoolClosed
	}
}

// TrySubmit hands task to a worker that is idle right now. It never
// queues and never blocks: with every worker busy it returns ErrPoolBusy.
func (p *WorkerPool) TrySubmit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return ErrPoolClosed
	}

	select {
	case p.direct <- task:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolBusy
	}
}

func (p *WorkerPool) run(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case task := <-own:
			p.exec(task)
			continue
		default:
		}

		if p.trySteal(id) {
			continue
		}

		select {
		case task := <-own:
			p.exec(task)
		case task := <-p.direct:
			p.exec(task)
		case <-p.done:
			p.drain(own)
			return
		}
	}
}

// trySteal runs one task taken from another worker's queue
func (p *WorkerPool) trySteal(id int) bool {
	for i := 1; i < p.numWorkers; i++ {
		select {
		case task := <-p.queues[(id+i)%p.numWorkers]:
			p.steals.Add(1)
			p.exec(task)
			return true
		default:
		}
	}
	return false
}

func (p *WorkerPool) exec(task Task) {
	defer p.completed.Add(1)
	task()
}

// Close rejects new tasks and stops the workers once every queued task
// has run.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		// Wakes submitters waiting for queue room
		close(p.done)

		// Submitters that passed the closed check finish before the flag flips
		p.mu.Lock()
		p.closed.Store(true)
		p.mu.Unlock()

		p.wg.Wait()

		// Tasks queued after their worker drained and exited
		for _, q := range p.queues {
			p.drain(q)
		}
	})
}

func (p *WorkerPool) drain(q chan Task) {
	for {
		select {
		case task := <-q:
			p.exec(task)
		default:
			return
		}
	}
}

// Stats returns pool statistics
func (p *WorkerPool) Stats() WorkerPoolStats {
	submitted := p.submitted.Load()
	completed := p.completed.Load()
	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		TasksSubmitted: submitted,
		TasksCompleted: completed,
		TasksPending:   submitted - min(submitted, completed),
		TasksRejected:  p.rejected.Load(),
		Steals:         p.steals.Load(),
	}
}
