package bridge

import (
	"fmt"
	"time"

	"github.com/gammazero/deque"
)

const reportCapacity = 256

// Report is one entry in the session's rolling event log: what happened to
// which object, and when. Failures carry a detail string instead of an
// identity. The log exists for inspection; nothing in the synchronization
// path reads it.
type Report struct {
	Time   time.Time
	Event  string
	Ident  Identity
	Name   string
	Detail string
}

func (r Report) String() string {
	s := fmt.Sprintf("%s %s %s (%s)", r.Time.Format(time.TimeOnly), r.Event, r.Name, r.Ident)
	if r.Detail != "" {
		s += ": " + r.Detail
	}
	return s
}

type reportLog struct {
	entries deque.Deque[Report]
}

func (l *reportLog) push(r Report) {
	if l.entries.Len() >= reportCapacity {
		l.entries.PopFront()
	}
	r.Time = time.Now()
	l.entries.PushBack(r)
}

func (l *reportLog) add(event string, p *Proxy) {
	l.push(Report{Event: event, Ident: p.identity, Name: p.lastName})
}

func (l *reportLog) note(event, name, detail string) {
	l.push(Report{Event: event, Name: name, Detail: detail})
}

// Reports returns the rolling event log, oldest first.
func (s *Session) Reports() []Report {
	out := make([]Report, 0, s.reports.entries.Len())
	for i := 0; i < s.reports.entries.Len(); i++ {
		out = append(out, s.reports.entries.At(i))
	}
	return out
}
