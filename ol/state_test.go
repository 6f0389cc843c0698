package ol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockTick(t *testing.T) {
	c := NewClock(7, 0)
	assert.Equal(t, ID{Peer: 7, Clock: 0}, c.Tick(3))
	assert.Equal(t, ID{Peer: 7, Clock: 3}, c.Tick(1))
	assert.Equal(t, uint64(4), c.Next())

	c.Witness(2)
	assert.Equal(t, uint64(4), c.Next())
	c.Witness(10)
	assert.Equal(t, ID{Peer: 7, Clock: 10}, c.Tick(1))
}

func TestIDOrder(t *testing.T) {
	assert.True(t, ID{Peer: 1, Clock: 9}.Less(ID{Peer: 2, Clock: 0}))
	assert.True(t, ID{Peer: 1, Clock: 0}.Less(ID{Peer: 1, Clock: 1}))
	assert.False(t, ID{Peer: 2, Clock: 0}.Less(ID{Peer: 2, Clock: 0}))

	a, b := ID{Peer: 1, Clock: 2}, ID{Peer: 1, Clock: 2}
	assert.True(t, IdEq(&a, &b))
	assert.True(t, IdEq(nil, nil))
	assert.False(t, IdEq(&a, nil))
}

func TestStateVector(t *testing.T) {
	sv := StateVector{}
	sv.Advance(1, 5)
	sv.Advance(1, 3)
	sv.Advance(2, 1)
	assert.Equal(t, uint64(5), sv.Get(1))
	assert.True(t, sv.Contains(ID{Peer: 1, Clock: 4}))
	assert.False(t, sv.Contains(ID{Peer: 1, Clock: 5}))
	assert.False(t, sv.Contains(ID{Peer: 3, Clock: 0}))
	assert.Equal(t, []PeerID{1, 2}, sv.Peers())

	c := sv.Clone()
	c.Advance(1, 9)
	assert.Equal(t, uint64(5), sv.Get(1))

	remote := StateVector{1: 2, 2: 1, 3: 4}
	assert.Equal(t, map[PeerID]uint64{1: 2}, sv.Missing(remote))
	assert.Equal(t, map[PeerID]uint64{3: 0}, remote.Missing(StateVector{1: 2, 2: 1}))
}

func TestDeleteSetAdd(t *testing.T) {
	tests := []struct {
		name string
		adds [][2]uint64
		want []DeleteRange
	}{
		{"single", [][2]uint64{{2, 3}}, []DeleteRange{{1, 2, 3}}},
		{"disjoint", [][2]uint64{{8, 1}, {2, 3}}, []DeleteRange{{1, 2, 3}, {1, 8, 1}}},
		{"adjacent", [][2]uint64{{2, 3}, {5, 2}}, []DeleteRange{{1, 2, 5}}},
		{"overlap", [][2]uint64{{2, 3}, {4, 4}}, []DeleteRange{{1, 2, 6}}},
		{"bridge", [][2]uint64{{0, 2}, {5, 1}, {1, 5}}, []DeleteRange{{1, 0, 6}}},
		{"contained", [][2]uint64{{0, 10}, {3, 2}}, []DeleteRange{{1, 0, 10}}},
		{"empty", [][2]uint64{{3, 0}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := NewDeleteSet()
			for _, a := range tt.adds {
				ds.Add(1, a[0], a[1])
			}
			assert.Equal(t, tt.want, ds.Ranges(1))
		})
	}
}

func TestDeleteSetQueries(t *testing.T) {
	ds := NewDeleteSet()
	require.True(t, ds.IsEmpty())
	ds.Add(2, 10, 5)
	ds.Add(1, 0, 2)
	ds.Add(2, 20, 1)

	assert.False(t, ds.IsEmpty())
	assert.True(t, ds.Contains(ID{Peer: 2, Clock: 14}))
	assert.False(t, ds.Contains(ID{Peer: 2, Clock: 15}))
	assert.False(t, ds.Contains(ID{Peer: 3, Clock: 0}))
	assert.Equal(t, uint64(8), ds.Size())
	assert.Equal(t, []DeleteRange{{1, 0, 2}, {2, 10, 5}, {2, 20, 1}}, ds.Slice())
	assert.Equal(t, []DeleteRange{{2, 12, 3}, {2, 20, 1}}, ds.Overlapping(2, 12, 10))

	other := NewDeleteSet()
	other.Add(2, 15, 5)
	ds.Merge(other)
	assert.Equal(t, []DeleteRange{{2, 10, 11}}, ds.Ranges(2))
}

func TestNewPeerID(t *testing.T) {
	assert.NotEqual(t, NewPeerID(), NewPeerID())
}
