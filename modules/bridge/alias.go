package bridge

import (
	"weak"

	"github.com/rigbridge/rigbridge/modules/engine"
)

// aliasTable maps engine entities back to proxies, so engine-side callbacks
// can address host objects without a scan. The table holds weak pointers:
// it must never be the thing keeping a forgotten proxy alive, and a proxy
// collected elsewhere simply reads as unbound here.
type aliasTable struct {
	byEntity map[engine.Entity]weak.Pointer[Proxy]
}

func newAliasTable() aliasTable {
	return aliasTable{byEntity: make(map[engine.Entity]weak.Pointer[Proxy])}
}

// BindAlias associates an engine entity with a proxy, replacing any
// previous binding for that entity.
func (s *Session) BindAlias(e engine.Entity, p *Proxy) {
	if e == engine.Null || p == nil {
		return
	}
	s.aliases.byEntity[e] = weak.Make(p)
}

// Alias resolves an entity to its proxy. Returns nil when the entity was
// never bound, was unbound, or the proxy has been collected. A removed or
// destroyed proxy still resolves; the caller decides what liveness it needs.
func (s *Session) Alias(e engine.Entity) *Proxy {
	w, ok := s.aliases.byEntity[e]
	if !ok {
		return nil
	}
	p := w.Value()
	if p == nil {
		// Collected; drop the dead entry while we're here
		delete(s.aliases.byEntity, e)
	}
	return p
}

func (s *Session) UnbindAlias(e engine.Entity) {
	delete(s.aliases.byEntity, e)
}

// Aliases visits the live bindings.
func (s *Session) Aliases(yield func(engine.Entity, *Proxy) bool) {
	for e, w := range s.aliases.byEntity {
		p := w.Value()
		if p == nil {
			continue
		}
		if !yield(e, p) {
			return
		}
	}
}
