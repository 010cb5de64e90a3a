package progress

import "context"

// Sink consumes batches of progress events. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// coordinator stays agnostic about how events are buffered or exported.
type Emitter interface {
	Emit(evt Event)
}

// Null is an Emitter that discards everything. Used when no reporting is
// configured.
type Null struct{}

// Emit drops the event.
func (Null) Emit(Event) {}
