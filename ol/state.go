package ol

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/kevinxiao27/yata-text/util"
)

// StateVector maps a peer to the next clock not yet seen from it. Every clock
// below that value has been integrated locally.
type StateVector map[PeerID]uint64

func (sv StateVector) Get(peer PeerID) uint64 {
	return sv[peer]
}

func (sv StateVector) Contains(id ID) bool {
	return id.Clock < sv[id.Peer]
}

// Advance raises the peer's clock to end; it never moves backwards.
func (sv StateVector) Advance(peer PeerID, end uint64) {
	if end > sv[peer] {
		sv[peer] = end
	}
}

func (sv StateVector) Clone() StateVector {
	c := make(StateVector, len(sv))
	for k, v := range sv {
		c[k] = v
	}
	return c
}

func (sv StateVector) Peers() []PeerID {
	peers := make([]PeerID, 0, len(sv))
	for p := range sv {
		peers = append(peers, p)
	}
	return sortPeers(peers)
}

// Missing returns, for every peer sv knows more of than remote, the first
// clock remote lacks.
func (sv StateVector) Missing(remote StateVector) map[PeerID]uint64 {
	all := mapset.NewThreadUnsafeSet(sv.Peers()...)
	all = all.Union(mapset.NewThreadUnsafeSet(remote.Peers()...))

	missing := map[PeerID]uint64{}
	for _, p := range all.ToSlice() {
		if sv[p] > remote[p] {
			missing[p] = remote[p]
		}
	}
	return missing
}

func sortPeers(peers []PeerID) []PeerID {
	sort.Slice(peers, func(i, j int) bool {
		return peers[i] < peers[j]
	})
	return peers
}

// DeleteSet holds deleted clock ranges per peer, sorted and coalesced.
type DeleteSet struct {
	ranges map[PeerID][]DeleteRange
}

func NewDeleteSet() *DeleteSet {
	return &DeleteSet{ranges: make(map[PeerID][]DeleteRange)}
}

func (ds *DeleteSet) Add(peer PeerID, clock, length uint64) {
	if length == 0 {
		return
	}
	rs := ds.ranges[peer]
	// first range that ends at or after clock
	i := sort.Search(len(rs), func(i int) bool {
		return rs[i].Clock+rs[i].Len >= clock
	})
	start, end := clock, clock+length
	j := i
	for j < len(rs) && rs[j].Clock <= end {
		start = min(start, rs[j].Clock)
		end = max(end, rs[j].Clock+rs[j].Len)
		j++
	}
	merged := DeleteRange{Peer: peer, Clock: start, Len: end - start}

	out := make([]DeleteRange, 0, len(rs)-(j-i)+1)
	out = append(out, rs[:i]...)
	out = append(out, merged)
	out = append(out, rs[j:]...)
	ds.ranges[peer] = out
}

func (ds *DeleteSet) Contains(id ID) bool {
	rs := ds.ranges[id.Peer]
	i := sort.Search(len(rs), func(i int) bool {
		return rs[i].Clock+rs[i].Len > id.Clock
	})
	return i < len(rs) && rs[i].Clock <= id.Clock
}

// Ranges returns the ranges of one peer in clock order.
func (ds *DeleteSet) Ranges(peer PeerID) []DeleteRange {
	return ds.ranges[peer]
}

// Overlapping returns the ranges of peer intersecting [clock, clock+length),
// clipped to it.
func (ds *DeleteSet) Overlapping(peer PeerID, clock, length uint64) []DeleteRange {
	end := clock + length
	clipped := util.Filter(ds.ranges[peer], func(r DeleteRange) bool {
		return r.Clock < end && r.Clock+r.Len > clock
	})
	return util.Map(clipped, func(r DeleteRange) DeleteRange {
		s, e := max(r.Clock, clock), min(r.Clock+r.Len, end)
		return DeleteRange{Peer: peer, Clock: s, Len: e - s}
	})
}

func (ds *DeleteSet) Peers() []PeerID {
	peers := make([]PeerID, 0, len(ds.ranges))
	for p, rs := range ds.ranges {
		if len(rs) > 0 {
			peers = append(peers, p)
		}
	}
	return sortPeers(peers)
}

// Slice flattens the set in (peer, clock) order.
func (ds *DeleteSet) Slice() []DeleteRange {
	out := []DeleteRange{}
	for _, p := range ds.Peers() {
		out = append(out, ds.ranges[p]...)
	}
	return out
}

func (ds *DeleteSet) Merge(other *DeleteSet) {
	for _, r := range other.Slice() {
		ds.Add(r.Peer, r.Clock, r.Len)
	}
}

// Size is the total number of deleted clocks.
func (ds *DeleteSet) Size() uint64 {
	return util.Reduce(ds.Slice(), func(r DeleteRange, n uint64) uint64 {
		return n + r.Len
	}, 0)
}

func (ds *DeleteSet) IsEmpty() bool {
	return len(ds.Peers()) == 0
}
