package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type DispatcherConfig struct {
	Workers      int
	QueueSize    int
	PollInterval time.Duration
	JobTimeout   time.Duration
}

type dispatchTask struct {
	jobID   string
	doc     *TempDocument
	printer PrinterDescriptor
	opts    PrintOptions
}

type jobResult struct {
	jobID  string
	state  JobState
	reason string
	doc    *TempDocument
}

type nativeRef struct {
	printer  string
	nativeID uint32
}

// Dispatcher accepts staged documents and drives them through the native
// spooler on a worker pool, so Submit never blocks on driver I/O. Terminal
// transitions funnel through a single applier goroutine fed by resultCh,
// keeping spooler callbacks away from registry state.
type Dispatcher struct {
	registry *Registry
	spooler  Spooler
	cfg      DispatcherConfig
	logger   zerolog.Logger

	taskCh   chan dispatchTask
	resultCh chan jobResult
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	running  bool
	inflight map[string]nativeRef
	canceled map[string]bool
}

func NewDispatcher(registry *Registry, spooler Spooler, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}

	return &Dispatcher{
		registry: registry,
		spooler:  spooler,
		cfg:      cfg,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		taskCh:   make(chan dispatchTask, cfg.QueueSize),
		resultCh: make(chan jobResult, cfg.QueueSize),
		stopCh:   make(chan struct{}),
		inflight: make(map[string]nativeRef),
		canceled: make(map[string]bool),
	}
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	d.wg.Add(1)
	go d.applyResults()
}

func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()

	// Undelivered tasks still own their staged files.
	for {
		select {
		case t := <-d.taskCh:
			t.doc.Release()
		case r := <-d.resultCh:
			r.doc.Release()
		default:
			return
		}
	}
}

// Submit registers the job as queued and hands it to the worker pool. The
// registry insert happens before any native interaction, so a status query
// issued right after Submit returns always finds the job.
func (d *Dispatcher) Submit(doc *TempDocument, printer PrinterDescriptor, opts PrintOptions) (string, error) {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		return "", ErrNotRunning
	}

	if printer.Status == PrinterOffline || printer.Status == PrinterError {
		return "", fmt.Errorf("%w: %s reports %s", ErrPrinterUnavailable, printer.Name, printer.Status)
	}

	if opts.Copies <= 0 {
		opts.Copies = 1
	}

	job := &PrintJob{
		ID:           uuid.NewString(),
		PrinterName:  printer.Name,
		DocumentPath: doc.Path(),
		Options:      opts,
		State:        StateQueued,
		CreatedAt:    time.Now(),
	}
	if err := d.registry.Insert(job); err != nil {
		return "", err
	}

	select {
	case d.taskCh <- dispatchTask{jobID: job.ID, doc: doc, printer: printer, opts: opts}:
	default:
		// Backpressure: the job stays queryable with the reason recorded
		// instead of blocking the caller on a saturated pool.
		d.registry.UpdateState(job.ID, StateFailed, "dispatch queue is full")
		doc.Release()
	}

	d.logger.Info().
		Str("job_id", job.ID).
		Str("printer", printer.Name).
		Int("copies", opts.Copies).
		Msg("job submitted")

	return job.ID, nil
}

// Cancel is best-effort. A job that has not reached the spooler yet is
// failed immediately; one already sent is handed to the spooler's own
// cancel, and its final state is whatever the poll loop reports.
func (d *Dispatcher) Cancel(id string) error {
	job, ok := d.registry.Get(id)
	if !ok {
		return ErrJobNotFound
	}

	switch job.State {
	case StateQueued:
		d.mu.Lock()
		d.canceled[id] = true
		d.mu.Unlock()
		d.registry.UpdateState(id, StateFailed, "canceled before dispatch")
		return nil
	case StateSent:
		d.mu.Lock()
		ref, inflight := d.inflight[id]
		d.mu.Unlock()
		if !inflight {
			// Completion raced the cancel; nothing left to do.
			return nil
		}
		if err := d.spooler.CancelJob(ref.printer, ref.nativeID); err != nil {
			return fmt.Errorf("spooler cancel failed: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("job is already %s", job.State)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			return
		case t := <-d.taskCh:
			d.process(t)
		}
	}
}

func (d *Dispatcher) process(t dispatchTask) {
	d.mu.Lock()
	skip := d.canceled[t.jobID]
	delete(d.canceled, t.jobID)
	d.mu.Unlock()
	if skip {
		t.doc.Release()
		return
	}

	nativeID, err := d.spooler.Submit(t.printer.Name, t.doc.Path(), "directprint "+t.jobID, t.opts)
	if err != nil {
		// Synchronous rejection: the queued entry becomes failed with the
		// native error recorded, so the job stays queryable.
		d.finish(jobResult{
			jobID:  t.jobID,
			state:  StateFailed,
			reason: fmt.Sprintf("spooler rejected job: %v", err),
			doc:    t.doc,
		})
		return
	}

	d.mu.Lock()
	d.inflight[t.jobID] = nativeRef{printer: t.printer.Name, nativeID: nativeID}
	d.mu.Unlock()

	d.registry.UpdateState(t.jobID, StateSent, "")
	d.logger.Debug().
		Str("job_id", t.jobID).
		Uint32("native_id", nativeID).
		Msg("job handed to spooler")

	state, reason := d.await(t.printer.Name, nativeID)

	d.mu.Lock()
	delete(d.inflight, t.jobID)
	d.mu.Unlock()

	d.finish(jobResult{jobID: t.jobID, state: state, reason: reason, doc: t.doc})
}

// await polls the spooler until the job leaves the queue or the bound is
// hit. winspool offers no completion notification usable from a headless
// agent, so polling at a configured interval is the completion signal.
func (d *Dispatcher) await(printer string, nativeID uint32) (JobState, string) {
	deadline := time.Now().Add(d.cfg.JobTimeout)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return StateFailed, "agent shutting down"
		case <-ticker.C:
			status, err := d.spooler.JobStatus(printer, nativeID)
			if err != nil {
				return StateFailed, fmt.Sprintf("status poll failed: %v", err)
			}
			if status.Done {
				if status.Failed {
					return StateFailed, status.Reason
				}
				return StateCompleted, ""
			}
			if time.Now().After(deadline) {
				return StateFailed, "timed out waiting for the spooler"
			}
		}
	}
}

func (d *Dispatcher) finish(r jobResult) {
	select {
	case d.resultCh <- r:
	case <-d.stopCh:
		r.doc.Release()
	}
}

// applyResults is the single consumer of completion messages. It applies
// the terminal transition and releases the staged file exactly once.
func (d *Dispatcher) applyResults() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			return
		case r := <-d.resultCh:
			d.registry.UpdateState(r.jobID, r.state, r.reason)
			r.doc.Release()

			d.mu.Lock()
			delete(d.canceled, r.jobID)
			d.mu.Unlock()

			evt := d.logger.Info()
			if r.state == StateFailed {
				evt = d.logger.Warn().Str("reason", r.reason)
			}
			evt.Str("job_id", r.jobID).Str("state", string(r.state)).Msg("job finished")
		}
	}
}
