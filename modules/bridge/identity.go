package bridge

import (
	"github.com/gofrs/uuid"
	"github.com/rigbridge/rigbridge/modules/host"
	"github.com/rigbridge/rigbridge/modules/ui"
)

// Metadata fields holding the persistent identity on the host object. These
// survive handle invalidation and file round-trips within a session; they are
// never written to exported files.
const (
	identField  = "rigId"
	boneIDField = "rigBoneId"
)

// Identity is the process-unique persistent identifier of a host object or
// sub-object. For bones it is a pair: the owning object's identifier plus a
// sub-identifier unique within the owner. Identities are assigned once, at
// first observation, and never recycled within a session.
type Identity struct {
	Object uuid.UUID
	Sub    string
}

func (id Identity) IsZero() bool {
	return id.Object == uuid.Nil
}

func (id Identity) String() string {
	if id.Sub == "" {
		return id.Object.String()
	}
	return id.Object.String() + "/" + id.Sub
}

func newUUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// IdentityOf computes the persistent identity of a host handle, assigning
// and storing one if the object has never been observed. A duplicated object
// carries the original's identity metadata verbatim; when the original is
// still live somewhere else in the document, the newcomer gets a fresh one.
func (s *Session) IdentityOf(h host.Handle) (Identity, error) {
	switch h.Kind() {
	case host.KindEmpty, host.KindMesh, host.KindArmature:
		id, err := s.objectIdentity(h)
		if err != nil {
			return Identity{}, err
		}
		return Identity{Object: id}, nil

	case host.KindBone:
		owner := h.Owner()
		if owner == nil {
			return Identity{}, ExistError{What: h.Name()}
		}
		ownerID, err := s.objectIdentity(owner)
		if err != nil {
			return Identity{}, err
		}
		sub, ok := h.Meta(boneIDField)
		if !ok || sub == "" {
			sub = newUUID().String()
			h.SetMeta(boneIDField, sub)
		}
		return Identity{Object: ownerID, Sub: sub}, nil
	}

	return Identity{}, UnsupportedHandleTypeError{Kind: h.Kind()}
}

func (s *Session) objectIdentity(h host.Handle) (uuid.UUID, error) {
	raw, ok := h.Meta(identField)
	if ok && raw != "" {
		id, err := uuid.FromString(raw)
		if err == nil {
			if s.isDuplicate(Identity{Object: id}, h) {
				// Host duplicated the object, metadata and all. The
				// original keeps the identity, the copy gets a new one.
				fresh := newUUID()
				h.SetMeta(identField, fresh.String())
				ui.Debug().Msgf("Duplicate of %v detected, assigned %v to %v", id, fresh, h.Name())
				return fresh, nil
			}
			return id, nil
		}
		ui.Warn().Msgf("Malformed identity %q on %v, reassigning", raw, h.Name())
	}

	id := newUUID()
	h.SetMeta(identField, id.String())
	return id, nil
}

// isDuplicate reports whether `id` already belongs to a different live host
// object than `h`.
func (s *Session) isDuplicate(id Identity, h host.Handle) bool {
	p, ok := s.proxies[id]
	if !ok {
		return false
	}
	if p.handle != nil && p.handle.Valid() {
		return !p.handle.Same(h)
	}
	// Proxy handle is stale; scan for the identity's current holder.
	if found, ok := s.findByIdentity(id); ok {
		return !found.Same(h)
	}
	return false
}
