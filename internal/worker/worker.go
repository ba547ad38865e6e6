// Package worker implements the background job contract (types.Worker) as
// an in-process queue drained by a bounded goroutine pool, grounded on the
// durable job catalogue a file-storage system hands off work to: content
// processing, thumbnail generation, and trash/deletion sweeps.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/shelfcloud/core/pkg/errors"
	"github.com/shelfcloud/core/pkg/types"
)

// Job names in the catalogue. Handlers are registered under these names
// with Register before the pool starts draining the queue.
const (
	JobProcessFileContent          = "process_file_content"
	JobGenerateFileThumbnails      = "generate_file_thumbnails"
	JobProcessFilePendingDeletion  = "process_file_pending_deletion"
	JobDeleteImmediatelyBatch      = "delete_immediately_batch"
	JobEmptyTrash                  = "empty_trash"
	JobMoveBatch                   = "move_batch"
	JobMoveToTrashBatch            = "move_to_trash_batch"
)

// ItemResult is one per-item outcome of a batch job: a batch job never
// aborts wholesale on one bad item, it records a typed error code per
// item and keeps going.
type ItemResult struct {
	Value   any
	ErrCode errors.Code
}

// Handler processes one job's arguments and returns its result.
type Handler func(ctx context.Context, args any) (any, error)

type job struct {
	id     string
	name   string
	args   any
	status types.JobStatus
	result any
	err    error
}

// Pool is an in-process implementation of types.Worker.
type Pool struct {
	mu       sync.Mutex
	handlers map[string]Handler
	jobs     map[string]*job
	queue    chan string
	p        *pool.Pool
	metrics  func(job string, depth int)
}

// New creates a Pool draining jobs with concurrency workers. metricsFn, if
// non-nil, is called by Enqueue with the job name and the queue depth
// including the new job (for Prometheus gauge wiring); it is not called
// when a job leaves the queue. It may be nil.
func New(concurrency int, metricsFn func(job string, depth int)) *Pool {
	if concurrency <= 0 {
		concurrency = 4
	}
	p := &Pool{
		handlers: make(map[string]Handler),
		jobs:     make(map[string]*job),
		queue:    make(chan string, 4096),
		p:        pool.New().WithMaxGoroutines(concurrency),
		metrics:  metricsFn,
	}
	go p.drain()
	return p
}

// Register binds a handler to a job name. Call before Enqueue.
func (p *Pool) Register(name string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[name] = h
}

var _ types.Worker = (*Pool)(nil)

// Enqueue submits a job by name, returning its handle immediately.
func (p *Pool) Enqueue(ctx context.Context, name string, args any) (types.Job, error) {
	id := uuid.NewString()

	p.mu.Lock()
	p.jobs[id] = &job{id: id, name: name, args: args, status: types.JobPending}
	depth := len(p.queue)
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics(name, depth+1)
	}

	select {
	case p.queue <- id:
	case <-ctx.Done():
		return types.Job{}, ctx.Err()
	}
	return types.Job{ID: id, Name: name}, nil
}

func (p *Pool) drain() {
	for id := range p.queue {
		id := id
		p.p.Go(func() { p.run(id) })
	}
}

func (p *Pool) run(id string) {
	p.mu.Lock()
	j, ok := p.jobs[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	j.status = types.JobRunning
	handler, hasHandler := p.handlers[j.name]
	p.mu.Unlock()

	if !hasHandler {
		p.finish(id, nil, errors.New(errors.CodeInternalError, "no handler registered for job: "+j.name))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := handler(ctx, j.args)
	p.finish(id, result, err)
}

func (p *Pool) finish(id string, result any, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.jobs[id]
	if !ok {
		return
	}
	j.result = result
	j.err = err
	if err != nil {
		j.status = types.JobFailed
	} else {
		j.status = types.JobComplete
	}
}

// GetStatus returns a job's current lifecycle state.
func (p *Pool) GetStatus(ctx context.Context, jobID string) (types.JobStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.jobs[jobID]
	if !ok {
		return "", errors.New(errors.CodeNotFound, "job not found")
	}
	return j.status, nil
}

// GetResult returns a completed job's result, or its failure error.
func (p *Pool) GetResult(ctx context.Context, jobID string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.jobs[jobID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, "job not found")
	}
	if j.status == types.JobFailed {
		return nil, j.err
	}
	return j.result, nil
}

// QueueDepth reports how many jobs are queued (not yet picked up).
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// ExcToErrCode maps a domain error to its job catalogue error code,
// defaulting to CodeInternalError, mirroring exc_to_err_code's
// exception-to-ErrorCode table.
func ExcToErrCode(err error) errors.Code {
	if err == nil {
		return ""
	}
	var de *errors.Error
	if e, ok := err.(*errors.Error); ok {
		de = e
	}
	if de == nil {
		return errors.CodeInternalError
	}
	switch de.Code {
	case errors.CodeActionNotAllowed, errors.CodeAlreadyExists, errors.CodeNotFound,
		errors.CodeTooLarge, errors.CodeIsADirectory, errors.CodeMalformedPath,
		errors.CodeMissingParent, errors.CodeNotADirectory:
		return de.Code
	default:
		return errors.CodeInternalError
	}
}
