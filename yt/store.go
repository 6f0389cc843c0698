package yt

import (
	"iter"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kevinxiao27/yata-text/ol"
)

// store owns every chunk of one text. Chunks live in an arena and link to
// their neighbours by index, so tombstones stay addressable by id.
type store struct {
	chunks []chunk
	start  ChunkRef
	byPeer map[ol.PeerID][]ChunkRef // clock order
	length int                      // visible bytes
	epoch  uint64                   // bumped whenever links or chunk bounds change
}

func newStore() *store {
	return &store{
		start:  nilRef,
		byPeer: make(map[ol.PeerID][]ChunkRef),
	}
}

func (s *store) get(ref ChunkRef) *chunk {
	return &s.chunks[ref]
}

func (s *store) alloc(c chunk) ChunkRef {
	ref := ChunkRef(len(s.chunks))
	s.chunks = append(s.chunks, c)

	refs := s.byPeer[c.id.Peer]
	i := sort.Search(len(refs), func(i int) bool {
		return s.chunks[refs[i]].id.Clock > c.id.Clock
	})
	s.byPeer[c.id.Peer] = slices.Insert(refs, i, ref)
	return ref
}

func (s *store) unindex(ref ChunkRef) {
	c := s.get(ref)
	refs := s.byPeer[c.id.Peer]
	i := sort.Search(len(refs), func(i int) bool {
		return s.chunks[refs[i]].id.Clock >= c.id.Clock
	})
	invariant(i < len(refs) && refs[i] == ref, "chunk ", c.id, " missing from peer index")
	s.byPeer[c.id.Peer] = slices.Delete(refs, i, i+1)
}

// findByID returns the chunk holding id, or nilRef.
func (s *store) findByID(id ol.ID) ChunkRef {
	refs := s.byPeer[id.Peer]
	i := sort.Search(len(refs), func(i int) bool {
		return s.chunks[refs[i]].id.Clock > id.Clock
	}) - 1
	if i < 0 || !s.chunks[refs[i]].contains(id) {
		return nilRef
	}
	return refs[i]
}

func (s *store) mustFind(id ol.ID) ChunkRef {
	ref := s.findByID(id)
	invariant(ref != nilRef, "merge inconsistency: unknown chunk ", id)
	return ref
}

// split cuts ref after off bytes and returns the right half. The right half
// continues the clock sequence and is left-anchored on the left half, which
// is exactly how the same bytes would look had they been inserted separately.
func (s *store) split(ref ChunkRef, off uint64) ChunkRef {
	c := s.get(ref)
	invariant(off > 0 && off < c.length(), "split offset ", off, " outside chunk ", c.id)

	leftID := c.id.Add(off - 1)
	right := chunk{
		id:          c.id.Add(off),
		originLeft:  &leftID,
		originRight: c.originRight,
		content:     c.content[off:],
		left:        ref,
		right:       c.right,
		deleted:     c.deleted,
	}
	c.content = c.content[:off]

	r := s.alloc(right)
	s.get(ref).right = r
	if right.right != nilRef {
		s.get(right.right).left = r
	}
	s.epoch++
	return r
}

// splitBefore makes id the first byte of its chunk and returns that chunk.
func (s *store) splitBefore(id ol.ID) ChunkRef {
	ref := s.mustFind(id)
	if off := id.Clock - s.get(ref).id.Clock; off > 0 {
		return s.split(ref, off)
	}
	return ref
}

// splitAfter makes id the last byte of its chunk and returns that chunk.
func (s *store) splitAfter(id ol.ID) ChunkRef {
	ref := s.mustFind(id)
	c := s.get(ref)
	if off := id.Clock - c.id.Clock + 1; off < c.length() {
		s.split(ref, off)
	}
	return ref
}

// locate finds the chunk and inner offset of a visible byte index without
// modifying anything. An index equal to the length yields nilRef.
func (s *store) locate(index int) (ChunkRef, int) {
	remaining := index
	for ref := s.start; ref != nilRef; ref = s.get(ref).right {
		c := s.get(ref)
		if c.deleted {
			continue
		}
		if remaining < len(c.content) {
			return ref, remaining
		}
		remaining -= len(c.content)
	}
	return nilRef, 0
}

// checkIndex validates a visible byte index against the live state.
func (s *store) checkIndex(index int) error {
	if index < 0 || index > s.length {
		return rangeError("index %d, length %d", index, s.length)
	}
	ref, off := s.locate(index)
	if ref != nilRef && off > 0 && !utf8.RuneStart(s.get(ref).content[off]) {
		return rangeError("index %d splits a code point", index)
	}
	return nil
}

// position splits at a visible index and returns the chunks around it. Left
// is the last chunk before the index; right is whatever follows, which may be
// a tombstone.
func (s *store) position(index int) (left, right ChunkRef) {
	left, right = nilRef, s.start
	remaining := uint64(index)
	for right != nilRef && remaining > 0 {
		c := s.get(right)
		if !c.deleted {
			if remaining < c.length() {
				s.split(right, remaining)
				c = s.get(right)
			}
			remaining -= c.length()
		}
		left, right = right, c.right
	}
	invariant(remaining == 0, "position ", index, " beyond text end")
	return left, right
}

// insert creates a chunk at a visible index and integrates it.
func (s *store) insert(index int, content string, id ol.ID) ChunkRef {
	left, right := s.position(index)

	c := chunk{id: id, content: content, left: nilRef, right: nilRef}
	if left != nilRef {
		l := s.get(left).lastID()
		c.originLeft = &l
	}
	if right != nilRef {
		r := s.get(right).id
		c.originRight = &r
	}

	ref := s.alloc(c)
	s.integrate(ref)
	return ref
}

// delete tombstones length visible bytes from index, reporting every newly
// deleted clock range to mark.
func (s *store) delete(index, length int, mark func(id ol.ID, n uint64)) {
	_, ref := s.position(index)
	remaining := uint64(length)
	for ref != nilRef && remaining > 0 {
		c := s.get(ref)
		if !c.deleted {
			if remaining < c.length() {
				s.split(ref, remaining)
				c = s.get(ref)
			}
			s.tombstone(ref, mark)
			remaining -= c.length()
		}
		ref = c.right
	}
	invariant(remaining == 0, "delete beyond text end")
}

// deleteID tombstones the bytes of id's chunk up to end and returns how many
// clocks it covered. Already deleted bytes are left alone.
func (s *store) deleteID(id ol.ID, end uint64, mark func(id ol.ID, n uint64)) uint64 {
	ref := s.splitBefore(id)
	if c := s.get(ref); c.end() > end {
		s.split(ref, end-c.id.Clock)
	}
	s.tombstone(ref, mark)
	return s.get(ref).length()
}

func (s *store) tombstone(ref ChunkRef, mark func(id ol.ID, n uint64)) {
	c := s.get(ref)
	if c.deleted {
		return
	}
	c.deleted = true
	s.length -= len(c.content)
	if mark != nil {
		mark(c.id, c.length())
	}
}

// iterate yields the visible content in [from, to). The sequence can be
// ranged over repeatedly; if chunks are split or squashed while it runs, the
// cursor re-anchors on the id of the last byte it produced.
func (s *store) iterate(from, to int) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		pos, inner := 0, 0
		ref := s.start
		for ref != nilRef && pos < to {
			c := s.get(ref)
			n := len(c.content) - inner
			if c.deleted || n <= 0 {
				ref, inner = c.right, 0
				continue
			}
			if pos+n <= from {
				pos += n
				ref, inner = c.right, 0
				continue
			}
			lo := inner + max(from-pos, 0)
			hi := inner + min(to-pos, n)
			seg := Segment{
				ID:     c.id.Add(uint64(lo)),
				Offset: pos + lo - inner,
				Text:   c.content[lo:hi],
			}
			last, next, epoch := c.id.Add(uint64(hi-1)), c.right, s.epoch
			if !yield(seg) {
				return
			}
			pos = seg.Offset + len(seg.Text)
			if s.epoch == epoch {
				ref, inner = next, 0
				continue
			}
			ref = s.mustFind(last)
			inner = int(last.Clock-s.get(ref).id.Clock) + 1
		}
	}
}

func (s *store) String() string {
	var sb strings.Builder
	sb.Grow(s.length)
	for seg := range s.iterate(0, s.length) {
		sb.WriteString(seg.Text)
	}
	return sb.String()
}

// count is the number of live chunks, tombstones included.
func (s *store) count() int {
	n := 0
	for ref := s.start; ref != nilRef; ref = s.get(ref).right {
		n++
	}
	return n
}
