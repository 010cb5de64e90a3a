package scan

import "sync/atomic"

// Counters tracks run progress. All fields are updated atomically so the
// status server and progress sinks can read snapshots while the pipeline
// runs. Snapshots are read-only; nothing ever writes them back.
type Counters struct {
	produced   atomic.Int64
	dispatched atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	skipped    atomic.Int64
}

// CountersSnapshot is a point-in-time copy of the counters.
type CountersSnapshot struct {
	Produced   int64 `json:"produced"`
	Dispatched int64 `json:"dispatched"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
	Skipped    int64 `json:"skipped"`
}

// AddProduced records one identifier read from the source.
func (c *Counters) AddProduced() { c.produced.Add(1) }

// AddDispatched records one identifier handed to a fetch worker.
func (c *Counters) AddDispatched() { c.dispatched.Add(1) }

// AddSucceeded records one row appended to the sink.
func (c *Counters) AddSucceeded() { c.succeeded.Add(1) }

// AddFailed records one fetch abandoned after exhausting retries.
func (c *Counters) AddFailed() { c.failed.Add(1) }

// AddSkipped records one identifier dropped via the resume set.
func (c *Counters) AddSkipped() { c.skipped.Add(1) }

// Snapshot copies the current totals.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		Produced:   c.produced.Load(),
		Dispatched: c.dispatched.Load(),
		Succeeded:  c.succeeded.Load(),
		Failed:     c.failed.Load(),
		Skipped:    c.skipped.Load(),
	}
}
