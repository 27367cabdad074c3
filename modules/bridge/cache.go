package bridge

import (
	"github.com/gofrs/uuid"
	"github.com/rigbridge/rigbridge/modules/host"
)

// objectCache short-circuits the full-document scan that resolving an
// identity otherwise requires. It holds no lifecycle state of its own; a
// cached handle is re-validated on every hit and the whole table is dropped
// whenever handles are invalidated en masse.
type objectCache struct {
	byID map[Identity]host.Handle
}

func newObjectCache() objectCache {
	return objectCache{byID: make(map[Identity]host.Handle)}
}

func (c *objectCache) get(id Identity) (host.Handle, bool) {
	h, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	// It may be cached, but is it still valid?
	if !h.Valid() {
		return nil, false
	}
	return h, true
}

func (c *objectCache) store(id Identity, h host.Handle) {
	c.byID[id] = h
}

func (c *objectCache) clear() {
	c.byID = make(map[Identity]host.Handle)
}

// rawObjectIdentity reads (or assigns) the identity metadata without the
// duplicate check; used by the scan itself to avoid recursing into it.
func rawObjectIdentity(h host.Handle) uuid.UUID {
	raw, ok := h.Meta(identField)
	if ok && raw != "" {
		if id, err := uuid.FromString(raw); err == nil {
			return id
		}
	}
	id := newUUID()
	h.SetMeta(identField, id.String())
	return id
}

// findByIdentity resolves an identity to a live host handle. On a cache miss
// it scans the host document once, caching every object visited along the
// way, so the cost of a cold cache is paid once per invalidation rather than
// once per lookup. Returns false when the object no longer exists anywhere,
// including linked sub-documents.
func (s *Session) findByIdentity(id Identity) (host.Handle, bool) {
	if id.Sub != "" {
		return s.findBone(id)
	}

	if h, ok := s.cache.get(id); ok {
		return h, true
	}

	var result host.Handle
	scan := func(h host.Handle) bool {
		hid := Identity{Object: rawObjectIdentity(h)}
		if _, cached := s.cache.byID[hid]; !cached {
			s.cache.store(hid, h)
		}
		if hid == id {
			result = h
			return false
		}
		return true
	}

	s.doc.Objects(scan)

	// Objects can live in a linked sub-document, which to the user looks
	// like any other object but is not enumerated with the scene.
	if result == nil && s.doc.HasLinks() {
		s.doc.LinkedObjects(scan)
	}

	return result, result != nil
}

// findBone resolves a bone identity: first the owning armature, then the
// bone itself. The caller's cached bone index is tried first since scanning
// bones by sub-identifiers costs a metadata read per bone.
func (s *Session) findBone(id Identity) (host.Handle, bool) {
	armature, ok := s.findByIdentity(Identity{Object: id.Object})
	if !ok {
		return nil, false
	}

	var result host.Handle
	s.doc.Bones(armature, func(b host.Handle) bool {
		sub, ok := b.Meta(boneIDField)
		if ok && sub == id.Sub {
			result = b
			return false
		}
		return true
	})
	return result, result != nil
}

// findBoneByIndex is the fast path: indices go stale when bones are removed
// or reordered, so the hit is verified against the bone sub-identifier.
func (s *Session) findBoneByIndex(id Identity, armature host.Handle, index int) (host.Handle, bool) {
	if index < 0 {
		return nil, false
	}
	b, ok := s.doc.BoneHandle(armature, index)
	if !ok {
		return nil, false
	}
	sub, ok := b.Meta(boneIDField)
	if !ok || sub != id.Sub {
		return nil, false
	}
	return b, true
}
