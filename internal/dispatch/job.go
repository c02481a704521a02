package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
)

type State string

const (
	Idle      State = "idle"
	Running   State = "running"
	Completed State = "completed"
	Cancelled State = "cancelled"
)

// Job is the progress record of one batch. Every read and write goes through mu,
// so a Status snapshot always satisfies succeeded+failed == processed <= total.
type Job struct {
	mu sync.Mutex

	id    string
	total int

	processed     int
	succeeded     int
	failed        int
	persistErrors int

	cancelled bool
	active    bool
	state     State

	results []model.SendOutcome

	startedAt  time.Time
	finishedAt time.Time

	// waitCtx is cancelled by Cancel and interrupts delays and backoff waits.
	waitCtx    context.Context
	waitCancel context.CancelFunc
}

func newJob(total int, now time.Time) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	return &Job{
		id:         uuid.NewString(),
		total:      total,
		active:     true,
		state:      Running,
		results:    make([]model.SendOutcome, 0, total),
		startedAt:  now,
		waitCtx:    ctx,
		waitCancel: cancel,
	}
}

func (j *Job) ID() string { return j.id }

func (j *Job) isActive() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.active
}

func (j *Job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// cancel flags the job. Returns false if it had already finished.
func (j *Job) cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.active {
		return false
	}
	j.cancelled = true
	j.waitCancel()
	return true
}

func (j *Job) record(o model.SendOutcome) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.results = append(j.results, o)
	j.processed++
	if o.Success {
		j.succeeded++
	} else {
		j.failed++
	}
}

func (j *Job) persistFailed() {
	j.mu.Lock()
	j.persistErrors++
	j.mu.Unlock()
}

func (j *Job) finish(now time.Time) State {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.active = false
	j.finishedAt = now
	if j.processed == j.total {
		j.state = Completed
	} else {
		j.state = Cancelled
	}
	j.waitCancel()
	return j.state
}

// Status is a point-in-time copy of a Job.
type Status struct {
	JobID             string              `json:"job_id,omitempty"`
	State             State               `json:"state"`
	Active            bool                `json:"active"`
	Total             int                 `json:"total"`
	Processed         int                 `json:"processed"`
	Succeeded         int                 `json:"succeeded"`
	Failed            int                 `json:"failed"`
	Cancelled         bool                `json:"cancelled"`
	PersistenceErrors int                 `json:"persistence_errors"`
	StartedAt         *time.Time          `json:"started_at,omitempty"`
	FinishedAt        *time.Time          `json:"finished_at,omitempty"`
	Results           []model.SendOutcome `json:"results"`
}

func (j *Job) snapshot() Status {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := Status{
		JobID:             j.id,
		State:             j.state,
		Active:            j.active,
		Total:             j.total,
		Processed:         j.processed,
		Succeeded:         j.succeeded,
		Failed:            j.failed,
		Cancelled:         j.cancelled,
		PersistenceErrors: j.persistErrors,
		Results:           make([]model.SendOutcome, len(j.results)),
	}
	copy(s.Results, j.results)

	started := j.startedAt
	s.StartedAt = &started
	if !j.finishedAt.IsZero() {
		finished := j.finishedAt
		s.FinishedAt = &finished
	}
	return s
}

func idleStatus() Status {
	return Status{State: Idle, Results: []model.SendOutcome{}}
}
