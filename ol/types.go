package ol

import (
	"fmt"

	"github.com/google/uuid"
)

// PeerID identifies one replica of a document. It is assigned once by the
// hosting store and must never be reused while stale state may still refer to it.
type PeerID uint64

// NewPeerID returns a random 32-bit peer id.
func NewPeerID() PeerID {
	return PeerID(uuid.New().ID())
}

type ID struct { // GUID of a single byte
	Peer  PeerID `json:"peer"`
	Clock uint64 `json:"clock"`
}

func (id ID) Unpack() (PeerID, uint64) {
	return id.Peer, id.Clock
}

// Add returns the id n bytes further along the same peer's clock.
func (id ID) Add(n uint64) ID {
	return ID{Peer: id.Peer, Clock: id.Clock + n}
}

// Less is the total order used to break ties between concurrent inserts:
// peer id first, then clock.
func (id ID) Less(o ID) bool {
	if id.Peer != o.Peer {
		return id.Peer < o.Peer
	}
	return id.Clock < o.Clock
}

func (id ID) String() string {
	return fmt.Sprintf("%d@%d", id.Clock, id.Peer)
}

// IdEq compares two optional ids; two nils are equal.
func IdEq(a, b *ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Clock hands out ids for locally created content.
type Clock struct {
	peer PeerID
	next uint64
}

func NewClock(peer PeerID, next uint64) *Clock {
	return &Clock{peer: peer, next: next}
}

func (c *Clock) Peer() PeerID { return c.peer }

// Next is the clock the next local byte will receive.
func (c *Clock) Next() uint64 { return c.next }

// Tick reserves n consecutive clocks and returns the id of the first one.
func (c *Clock) Tick(n uint64) ID {
	id := ID{Peer: c.peer, Clock: c.next}
	c.next += n
	return id
}

// Witness moves the clock past end, e.g. after receiving this peer's own
// content back from a replica.
func (c *Clock) Witness(end uint64) {
	if end > c.next {
		c.next = end
	}
}

// InsertRecord describes one integrated chunk for replay on another peer.
type InsertRecord struct {
	Parent      string `json:"parent"`
	ID          ID     `json:"id"`
	OriginLeft  *ID    `json:"originLeft,omitempty"`
	OriginRight *ID    `json:"originRight,omitempty"`
	Content     string `json:"content"`
}

// Len is the number of clocks the record occupies.
func (r InsertRecord) Len() uint64 { return uint64(len(r.Content)) }

// End is one past the last clock of the record.
func (r InsertRecord) End() uint64 { return r.ID.Clock + r.Len() }

type DeleteRange struct {
	Peer  PeerID `json:"peer"`
	Clock uint64 `json:"clock"`
	Len   uint64 `json:"len"`
}

// Update is the set of operations one peer ships to another. The core does
// not define how it travels; the JSON tags only serve the demo server.
type Update struct {
	Inserts []InsertRecord `json:"inserts,omitempty"`
	Deletes []DeleteRange  `json:"deletes,omitempty"`
}

func (u *Update) IsEmpty() bool {
	return u == nil || (len(u.Inserts) == 0 && len(u.Deletes) == 0)
}
