package worker

import (
	"errors"
	"time"

	"cvtailor/internal/models"
)

// ErrDispatcherBusy means the job queue is full and the caller should back off.
var ErrDispatcherBusy = errors.New("tailoring queue is full")

// Dispatcher feeds tailoring jobs to the worker pool in arrival order.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job
	manager  *Manager
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, manager *Manager, idleTimeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 16
	}
	pool := newJobChannelPool(minWorkers, maxWorkers, idleTimeout, manager)

	d := &Dispatcher{
		pool:     pool,
		jobQueue: make(chan Job, queueSize),
		manager:  manager,
	}

	// warm up to min workers
	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for job := range d.jobQueue {
		workerChan := d.pool.acquire()
		workerChan <- job
	}
}

// Tailor runs one tailoring request through the pool and waits for the
// outcome. A full queue fails fast with ErrDispatcherBusy.
func (d *Dispatcher) Tailor(req TailorRequest) (*models.TailorSession, error) {
	resultCh := make(chan tailorReturn, 1)
	job := Job{Type: Tailor, Task: &tailorTask{req: req, resultCh: resultCh}}

	select {
	case d.jobQueue <- job:
	default:
		return nil, ErrDispatcherBusy
	}

	ret := <-resultCh
	return ret.session, ret.err
}
