package yt

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/kevinxiao27/yata-text/ol"
)

// integrate links an allocated, unlinked chunk into the sequence between its
// two origins.
//
// Chunks found between the origins were inserted concurrently at the same
// place. Those sharing our left origin are ordered by (peer, clock), lower
// first. A chunk whose left origin lies inside the scanned region belongs to
// the run started by that origin and is skipped over together with it, so
// concurrent runs never interleave. Every peer runs the same scan over the
// same set of chunks and therefore picks the same slot.
func (s *store) integrate(ref ChunkRef) {
	c := s.get(ref)
	id, originLeft, originRight := c.id, c.originLeft, c.originRight

	left, right := nilRef, nilRef
	if originLeft != nil {
		left = s.splitAfter(*originLeft)
	}
	if originRight != nil {
		right = s.splitBefore(*originRight)
	}

	o := s.start
	if left != nilRef {
		o = s.get(left).right
	}

	conflicting := mapset.NewThreadUnsafeSet[ChunkRef]()
	beforeOrigin := mapset.NewThreadUnsafeSet[ChunkRef]()
	for o != nilRef && o != right {
		beforeOrigin.Add(o)
		conflicting.Add(o)
		oc := s.get(o)
		if ol.IdEq(oc.originLeft, originLeft) {
			if oc.id.Less(id) {
				left = o
				conflicting.Clear()
			} else if ol.IdEq(oc.originRight, originRight) {
				// same slot, and o sorts after us
				break
			}
		} else if oc.originLeft != nil && beforeOrigin.Contains(s.findByID(*oc.originLeft)) {
			if !conflicting.Contains(s.findByID(*oc.originLeft)) {
				left = o
				conflicting.Clear()
			}
		} else {
			break
		}
		o = oc.right
	}

	s.link(ref, left)
}

// link places ref directly after left (or at the start).
func (s *store) link(ref, left ChunkRef) {
	c := s.get(ref)
	c.left = left
	if left != nilRef {
		l := s.get(left)
		c.right = l.right
		l.right = ref
	} else {
		c.right = s.start
		s.start = ref
	}
	if c.right != nilRef {
		s.get(c.right).left = ref
	}
	if !c.deleted {
		s.length += len(c.content)
	}
	s.epoch++
}
