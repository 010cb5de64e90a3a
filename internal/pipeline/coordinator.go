// Package pipeline wires the source, fetch pool, and sink together.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/metabolink/hmdbscan/internal/clock/system"
	idgen "github.com/metabolink/hmdbscan/internal/id/uuid"
	"github.com/metabolink/hmdbscan/internal/progress"
	"github.com/metabolink/hmdbscan/internal/queue"
	"github.com/metabolink/hmdbscan/internal/scan"
)

// ErrFetchesFailed reports a completed run in which some identifiers could
// not be resolved. Distinct from a fatal abort: the report is intact and the
// failed identifiers can be retried with a resumed run.
var ErrFetchesFailed = errors.New("one or more fetches failed")

// Config controls Coordinator behavior.
type Config struct {
	// Workers is the fetch pool size; in-flight fetches never exceed it.
	Workers int
	// QueueDepth bounds the pending-identifier queue. Zero means Workers.
	QueueDepth int
}

// Coordinator owns the lifecycle of one scan run: it drives the source,
// fans identifiers out to a bounded fetch pool, and serializes completions
// through a single writer goroutine so the sink never sees concurrent
// appends.
type Coordinator struct {
	source   scan.Source
	fetcher  scan.Fetcher
	sink     scan.Sink
	resume   scan.ResumeSet
	counters *scan.Counters
	emitter  progress.Emitter
	clock    scan.Clock
	idGen    scan.IDGenerator
	cfg      Config
	logger   *zap.Logger

	state    atomic.Value // scan.RunState
	runID    string
	runBytes [16]byte
}

// New constructs a Coordinator. The resume set must already be loaded; pass
// an empty set when resume was not requested.
func New(
	source scan.Source,
	fetcher scan.Fetcher,
	sink scan.Sink,
	resume scan.ResumeSet,
	counters *scan.Counters,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if resume == nil {
		resume = scan.ResumeSet{}
	}
	if counters == nil {
		counters = &scan.Counters{}
	}
	if emitter == nil {
		emitter = progress.Null{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = cfg.Workers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		source:   source,
		fetcher:  fetcher,
		sink:     sink,
		resume:   resume,
		counters: counters,
		emitter:  emitter,
		clock:    system.New(),
		idGen:    idgen.NewGenerator(),
		cfg:      cfg,
		logger:   logger,
	}
	c.state.Store(scan.StateStarting)
	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() scan.RunState {
	return c.state.Load().(scan.RunState)
}

// Snapshot returns read-only progress totals.
func (c *Coordinator) Snapshot() scan.CountersSnapshot {
	return c.counters.Snapshot()
}

// Run executes the pipeline until the source is exhausted, the context ends,
// or a fatal error aborts it. Per-identifier fetch failures are recorded and
// never abort the run; if any occurred the returned error wraps
// ErrFetchesFailed. Already-written rows stay valid on every exit path.
func (c *Coordinator) Run(ctx context.Context) (scan.Summary, error) {
	start := c.clock.Now()
	c.initRunID()
	c.logger.Info("scan starting",
		zap.String("run_id", c.runID),
		zap.Int("workers", c.cfg.Workers),
		zap.Int("resume_set", len(c.resume)),
	)
	c.emitRun(progress.StageRunStart, 0, "")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := queue.New[scan.Identifier](c.cfg.QueueDepth)
	results := make(chan scan.Result, c.cfg.Workers)

	c.state.Store(scan.StateRunning)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return c.produce(gctx, tasks)
	})
	for range c.cfg.Workers {
		g.Go(func() error {
			c.work(gctx, tasks, results)
			return nil
		})
	}

	writerDone := make(chan error, 1)
	go func() {
		err := c.drainResults(results)
		if err != nil {
			// Sink integrity is gone; stop producing and fetching.
			cancel()
		}
		writerDone <- err
	}()

	srcErr := g.Wait()
	close(results)
	sinkErr := <-writerDone

	summary := c.buildSummary(c.clock.Now().Sub(start))
	switch {
	case srcErr != nil:
		c.state.Store(scan.StateAborted)
		summary.State = scan.StateAborted
		c.emitRun(progress.StageRunError, summary.Elapsed, srcErr.Error())
		c.logSummary("scan aborted", summary)
		return summary, srcErr
	case sinkErr != nil:
		c.state.Store(scan.StateAborted)
		summary.State = scan.StateAborted
		c.emitRun(progress.StageRunError, summary.Elapsed, sinkErr.Error())
		c.logSummary("scan aborted", summary)
		return summary, sinkErr
	case ctx.Err() != nil:
		c.state.Store(scan.StateDone)
		summary.State = scan.StateDone
		c.emitRun(progress.StageRunDone, summary.Elapsed, "interrupted")
		c.logSummary("scan interrupted, report remains resumable", summary)
		return summary, ctx.Err()
	}

	c.state.Store(scan.StateDone)
	summary.State = scan.StateDone
	if summary.Produced == 0 {
		c.logger.Warn("no identifiers found in input; is the path correct?")
	}
	c.emitRun(progress.StageRunDone, summary.Elapsed, "")
	c.logSummary("scan finished", summary)
	if summary.Failed > 0 {
		return summary, fmt.Errorf("%w: %d of %d dispatched", ErrFetchesFailed, summary.Failed, summary.Dispatched)
	}
	return summary, nil
}

// produce drives the source, applies resume filtering and in-run
// deduplication, and enqueues work. Enqueue blocks when the pool is
// saturated, so in-flight work stays bounded no matter the input size.
func (c *Coordinator) produce(ctx context.Context, tasks *queue.Queue[scan.Identifier]) error {
	defer tasks.Close()
	enqueued := make(map[scan.Identifier]struct{})
	for {
		id, err := c.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			c.state.Store(scan.StateDraining)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				// Interrupted, not corrupt input.
				return nil
			}
			return err
		}
		c.counters.AddProduced()
		if c.resume.Contains(id) {
			c.counters.AddSkipped()
			c.emitSkip(id)
			continue
		}
		if _, dup := enqueued[id]; dup {
			c.logger.Debug("duplicate identifier skipped", zap.String("id", string(id)))
			continue
		}
		enqueued[id] = struct{}{}
		if err := tasks.Enqueue(ctx, id); err != nil {
			return nil
		}
	}
}

// work consumes the task queue until it closes or the context ends.
func (c *Coordinator) work(ctx context.Context, tasks *queue.Queue[scan.Identifier], results chan<- scan.Result) {
	for {
		id, err := tasks.Dequeue(ctx)
		if err != nil {
			return
		}
		c.counters.AddDispatched()
		started := c.clock.Now()
		flag, ferr := c.fetcher.Fetch(ctx, id)
		res := scan.Result{
			ID:       id,
			Flag:     flag,
			Duration: c.clock.Now().Sub(started),
			Err:      ferr,
		}
		var fe *scan.FetchError
		if errors.As(ferr, &fe) {
			res.Attempts = fe.Attempts
		}
		select {
		case results <- res:
		case <-ctx.Done():
			return
		}
	}
}

// drainResults is the single writer: it alone touches the sink.
func (c *Coordinator) drainResults(results <-chan scan.Result) error {
	for res := range results {
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
				// Abandoned by shutdown, not a fetch failure.
				continue
			}
			c.counters.AddFailed()
			c.logger.Warn("fetch failed",
				zap.String("id", string(res.ID)),
				zap.Int("attempts", res.Attempts),
				zap.Error(res.Err),
			)
			c.emitFetch(progress.StageFetchError, res)
			continue
		}
		if err := c.sink.Append(scan.Row{ID: res.ID, Flag: res.Flag}); err != nil {
			return err
		}
		c.counters.AddSucceeded()
		c.emitFetch(progress.StageFetchDone, res)
	}
	return nil
}

func (c *Coordinator) initRunID() {
	id, err := c.idGen.NewID()
	if err != nil {
		c.logger.Warn("generate run id", zap.Error(err))
		id = uuid.NewString()
	}
	c.runID = id
	if parsed, err := uuid.Parse(id); err == nil {
		c.runBytes = progress.UUIDToBytes(parsed)
	} else {
		c.runBytes = progress.UUIDToBytes(uuid.New())
	}
}

func (c *Coordinator) buildSummary(elapsed time.Duration) scan.Summary {
	snap := c.counters.Snapshot()
	return scan.Summary{
		RunID:      c.runID,
		Produced:   snap.Produced,
		Dispatched: snap.Dispatched,
		Succeeded:  snap.Succeeded,
		Failed:     snap.Failed,
		Skipped:    snap.Skipped,
		Elapsed:    elapsed,
	}
}

func (c *Coordinator) logSummary(msg string, s scan.Summary) {
	c.logger.Info(msg,
		zap.String("run_id", s.RunID),
		zap.Int64("produced", s.Produced),
		zap.Int64("dispatched", s.Dispatched),
		zap.Int64("succeeded", s.Succeeded),
		zap.Int64("failed", s.Failed),
		zap.Int64("skipped", s.Skipped),
		zap.Duration("elapsed", s.Elapsed),
	)
}

func (c *Coordinator) emitRun(stage progress.Stage, dur time.Duration, note string) {
	c.emitter.Emit(progress.Event{
		RunID: c.runBytes,
		TS:    c.clock.Now(),
		Stage: stage,
		Dur:   dur,
		Note:  note,
	})
}

func (c *Coordinator) emitFetch(stage progress.Stage, res scan.Result) {
	evt := progress.Event{
		RunID:    c.runBytes,
		TS:       c.clock.Now(),
		Stage:    stage,
		ID:       string(res.ID),
		Attempts: res.Attempts,
		Dur:      res.Duration,
	}
	if stage == progress.StageFetchDone {
		evt.Flag = string(res.Flag)
	} else if res.Err != nil {
		evt.Note = res.Err.Error()
	}
	c.emitter.Emit(evt)
}

func (c *Coordinator) emitSkip(id scan.Identifier) {
	c.emitter.Emit(progress.Event{
		RunID: c.runBytes,
		TS:    c.clock.Now(),
		Stage: progress.StageResumeSkip,
		ID:    string(id),
	})
}
