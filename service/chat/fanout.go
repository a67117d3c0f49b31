package chat

import "pulsehr/logger"

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout pushes one payload to many connections off the caller's
// goroutine, so a presence broadcast never stalls a read loop.
type Fanout struct {
	jobs chan fanoutJob
}

func NewFanout(workers, queue int) *Fanout {
	f := &Fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		go func() {
			for job := range f.jobs {
				deliver(job)
			}
		}()
	}
	return f
}

// deliver pushes one job; a panic loses the job, never the worker.
func deliver(job fanoutJob) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[fanout] panic recovered: %v", r)
		}
	}()
	for _, c := range job.conns {
		c.Push(job.payload)
	}
}

func (f *Fanout) Broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	f.jobs <- fanoutJob{conns: conns, payload: payload}
}
