package bridge

import (
	"github.com/rigbridge/rigbridge/modules/host"
)

// selectionTracker maintains a click-ordered selection on top of the host's
// unordered selection reports. The host tells us WHAT is selected; the order
// in which things entered the selection is reconstructed by reconciling each
// report against the previous ordered list.
type selectionTracker struct {
	ordered []*Proxy
}

// reconcile merges a host selection report into the ordered list: survivors
// keep their relative order, newcomers append in report order, everything
// else drops. Proxies that died since the last report are pruned first.
func (t *selectionTracker) reconcile(s *Session, handles []host.Handle) []*Proxy {
	if len(handles) == 0 {
		t.ordered = nil
		return nil
	}

	current := make(map[*Proxy]bool, len(handles))
	report := make([]*Proxy, 0, len(handles))
	for _, h := range handles {
		p, err := s.Wrap(h)
		if err != nil {
			continue
		}
		if !current[p] {
			current[p] = true
			report = append(report, p)
		}
	}

	merged := make([]*Proxy, 0, len(report))
	for _, p := range t.ordered {
		if current[p] && !p.removed && !p.destroyed {
			merged = append(merged, p)
			delete(current, p)
		}
	}
	for _, p := range report {
		if current[p] {
			merged = append(merged, p)
		}
	}

	t.ordered = merged
	return merged
}

// drop removes a dead proxy from the ordered list without touching the
// relative order of the rest.
func (t *selectionTracker) drop(p *Proxy) {
	for i, q := range t.ordered {
		if q == p {
			t.ordered = append(t.ordered[:i], t.ordered[i+1:]...)
			return
		}
	}
}

// Selection returns the current selection in the order things were
// selected, oldest first.
func (s *Session) Selection() []*Proxy {
	out := make([]*Proxy, len(s.selection.ordered))
	copy(out, s.selection.ordered)
	return out
}
