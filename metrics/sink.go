// Package metrics provides pluggable dispatch-metrics sinks for a
// Manager. It is kept free of any dependency on the root package's
// types (EventIdentity, Priority) so the root package can import it
// without creating a cycle: labels cross the boundary as plain strings.
package metrics

import "time"

// Sink receives dispatch observations from a Manager. Implementations
// must be safe for concurrent use.
type Sink interface {
	// ObserveDispatch records one handler invocation: identity is a
	// stable label for the event identity dispatched, priority is its
	// numeric handler priority, duration is how long the handler took,
	// and failed reports whether it returned a non-nil error.
	ObserveDispatch(identity string, priority int, duration time.Duration, failed bool)

	// ObserveQueueDepth records the current length of a Manager's
	// post/wait queue.
	ObserveQueueDepth(depth int)
}

type noopSink struct{}

func (noopSink) ObserveDispatch(string, int, time.Duration, bool) {}
func (noopSink) ObserveQueueDepth(int)                            {}

// Noop returns a Sink that discards every observation. It is the default
// for a Manager constructed without WithManagerMetrics.
func Noop() Sink { return noopSink{} }
