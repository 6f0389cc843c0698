package yt

import (
	"github.com/kevinxiao27/yata-text/ol"
)

// ChunkRef is the arena index of a chunk. It stays valid until the chunk is
// squashed into its left neighbour.
type ChunkRef int

const nilRef ChunkRef = -1

type chunk struct {
	id          ol.ID
	originLeft  *ol.ID // last byte to the left at creation, nil at the document start
	originRight *ol.ID // first byte to the right at creation, nil at the document end
	content     string
	left, right ChunkRef
	deleted     bool
	gone        bool // squashed into its left neighbour
}

func (c *chunk) length() uint64 { return uint64(len(c.content)) }

// end is one past the last clock of the chunk.
func (c *chunk) end() uint64 { return c.id.Clock + c.length() }

func (c *chunk) lastID() ol.ID { return c.id.Add(c.length() - 1) }

func (c *chunk) contains(id ol.ID) bool {
	return id.Peer == c.id.Peer && id.Clock >= c.id.Clock && id.Clock < c.end()
}

// Segment is a run of visible text produced by iteration. ID is the id of
// its first byte and Offset its byte position in the visible text.
type Segment struct {
	ID     ol.ID
	Offset int
	Text   string
}
