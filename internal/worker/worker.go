package worker

import "cvtailor/internal/models"

type JobType string

const (
	Tailor JobType = "tailor"
	Stop   JobType = "stop"
)

type Job struct {
	Type JobType
	Task *tailorTask
}

type tailorReturn struct {
	session *models.TailorSession
	err     error
}

type tailorTask struct {
	req      TailorRequest
	resultCh chan tailorReturn
}

type Worker struct {
	pool       *jobChannelPool
	manager    *Manager
	jobChannel chan Job
}

func NewWorker(pool *jobChannelPool, manager *Manager) *Worker {
	return &Worker{
		pool:       pool,
		manager:    manager,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for {
			w.pool.Release(w.jobChannel)
			job := <-w.jobChannel
			switch job.Type {
			case Tailor:
				w.manager.handleTailor(job.Task)
			case Stop:
				w.pool.retire(w.jobChannel)
				return
			}
		}
	}()
}
