package yt

import (
	"sort"

	"github.com/kevinxiao27/yata-text/ol"
)

// canMerge reports whether r can be folded into l without changing what any
// peer would compute: r must continue l's clock run, have been inserted right
// after l's last byte towards the same right origin, and share its state.
func (s *store) canMerge(l, r ChunkRef) bool {
	if l == nilRef || r == nilRef {
		return false
	}
	lc, rc := s.get(l), s.get(r)
	if lc.gone || rc.gone || lc.right != r || rc.left != l {
		return false
	}
	if lc.id.Peer != rc.id.Peer || lc.end() != rc.id.Clock || lc.deleted != rc.deleted {
		return false
	}
	last := lc.lastID()
	return ol.IdEq(rc.originLeft, &last) && ol.IdEq(rc.originRight, lc.originRight)
}

// merge folds l.right into l. The merged chunk keeps l's id and origins, so
// ordering decisions against it are unchanged.
func (s *store) merge(l ChunkRef) bool {
	r := s.get(l).right
	if !s.canMerge(l, r) {
		return false
	}
	lc, rc := s.get(l), s.get(r)
	lc.content += rc.content
	lc.right = rc.right
	if rc.right != nilRef {
		s.get(rc.right).left = l
	}
	s.unindex(r)
	rc.gone = true
	rc.content = ""
	s.epoch++
	return true
}

// squashAround tries to merge the chunk holding id with both neighbours.
func (s *store) squashAround(id ol.ID) {
	ref := s.findByID(id)
	if ref == nilRef {
		return
	}
	if l := s.get(ref).left; l != nilRef && s.merge(l) {
		ref = l
	}
	for s.merge(ref) {
	}
}

// squash merges the chunks a transaction touched: every chunk created since
// before, and both edges of every range deleted in it. Created chunks may
// also merge into chunks committed by earlier transactions.
func (s *store) squash(before ol.StateVector, deleted *ol.DeleteSet) {
	var ids []ol.ID
	for peer, refs := range s.byPeer {
		since := before.Get(peer)
		i := sort.Search(len(refs), func(i int) bool {
			return s.chunks[refs[i]].end() > since
		})
		for _, ref := range refs[i:] {
			ids = append(ids, ol.ID{Peer: peer, Clock: max(s.get(ref).id.Clock, since)})
		}
	}
	for _, r := range deleted.Slice() {
		ids = append(ids, ol.ID{Peer: r.Peer, Clock: r.Clock}, ol.ID{Peer: r.Peer, Clock: r.Clock + r.Len})
	}
	for _, id := range ids {
		s.squashAround(id)
	}
}
