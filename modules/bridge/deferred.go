package bridge

import (
	"github.com/gammazero/deque"

	"github.com/rigbridge/rigbridge/modules/settings"
	"github.com/rigbridge/rigbridge/modules/ui"
)

// deferredQueue collects callbacks that must not run inside a host event
// handler, typically because they edit the document and editing during
// event delivery is undefined. The host integration drains it at the next
// safe point, e.g. its idle callback.
type deferredQueue struct {
	queue deque.Deque[func()]
}

// Defer schedules fn to run at the next Flush. FIFO.
func (s *Session) Defer(fn func()) {
	s.deferred.queue.PushBack(fn)
}

// Flush runs the deferred callbacks queued so far, at most the configured
// deferredLimit per call. Callbacks queued while flushing wait for the next
// flush, so a callback that re-defers itself cannot starve the loop. Panics
// are contained per callback.
func (s *Session) Flush() int {
	n := s.deferred.queue.Len()
	if limit, ok := settings.Get("deferredLimit").(int); ok && n > limit {
		n = limit
	}
	for i := 0; i < n; i++ {
		fn := s.deferred.queue.PopFront()
		s.safely("deferred", fn)
	}
	if n > 0 {
		ui.Trace().Msgf("Flushed %v deferred callbacks", n)
	}
	return n
}

// Pending reports how many callbacks await the next flush.
func (s *Session) Pending() int {
	return s.deferred.queue.Len()
}
