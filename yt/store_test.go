package yt

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segments(t *testing.T, text *Text, from, to int) []string {
	t.Helper()
	seq, err := text.Iterate(from, to)
	require.NoError(t, err)
	var out []string
	for seg := range seq {
		out = append(out, seg.Text)
	}
	return out
}

func TestStoreInsertSplits(t *testing.T) {
	d := newTestDoc(1)
	insert(t, d, 0, "hello")
	insert(t, d, 2, "XY")

	text := d.GetText("t")
	assert.Equal(t, "heXYllo", text.String())
	assert.Equal(t, 7, text.Len())
	assert.Equal(t, []string{"he", "XY", "llo"}, segments(t, text, 0, 7))
	assert.Equal(t, 3, text.store().count())
}

func TestStoreDeleteTombstones(t *testing.T) {
	d := newTestDoc(1)
	insert(t, d, 0, "hello")
	remove(t, d, 1, 2)

	text := d.GetText("t")
	assert.Equal(t, "hlo", text.String())
	assert.Equal(t, 3, text.Len())
	// the deleted run stays in the chunk list
	assert.Equal(t, 3, text.store().count())
	assert.Equal(t, []string{"h", "lo"}, segments(t, text, 0, 3))

	remove(t, d, 0, 3)
	assert.Equal(t, "", text.String())
	assert.Equal(t, 0, text.Len())
}

func TestStoreFindByID(t *testing.T) {
	d := newTestDoc(4, WithoutSquash())
	insert(t, d, 0, "abc")
	insert(t, d, 3, "de")

	s := d.GetText("t").store()
	for clock, want := range "abcde" {
		ref := s.findByID(s.get(s.start).id.Add(uint64(clock)))
		require.NotEqual(t, nilRef, ref)
		c := s.get(ref)
		assert.Equal(t, byte(want), c.content[uint64(clock)-c.id.Clock])
	}
	assert.Equal(t, nilRef, s.findByID(s.get(s.start).id.Add(5)))
}

func TestStoreRangeErrors(t *testing.T) {
	d := newTestDoc(1)
	insert(t, d, 0, "añb") // ñ is two bytes
	text := d.GetText("t")

	tests := []struct {
		name string
		fn   func(txn *Transaction) error
	}{
		{"insert past end", func(txn *Transaction) error { return text.Insert(txn, 5, "x") }},
		{"insert negative", func(txn *Transaction) error { return text.Insert(txn, -1, "x") }},
		{"insert mid rune", func(txn *Transaction) error { return text.Insert(txn, 2, "x") }},
		{"delete past end", func(txn *Transaction) error { return text.Delete(txn, 2, 3) }},
		{"delete mid rune", func(txn *Transaction) error { return text.Delete(txn, 0, 2) }},
		{"delete negative", func(txn *Transaction) error { return text.Delete(txn, 0, -1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Transact(tt.fn)
			assert.True(t, errors.Is(err, ErrOutOfRange), "got %v", err)
			assert.Equal(t, "añb", text.String())
			assert.Equal(t, 4, text.Len())
		})
	}
}

func TestIterateRange(t *testing.T) {
	d := newTestDoc(1, WithoutSquash())
	insert(t, d, 0, "abc")
	insert(t, d, 3, "def")
	remove(t, d, 2, 2)
	text := d.GetText("t")
	require.Equal(t, "abef", text.String())

	assert.Equal(t, []string{"b", "ef"}, segments(t, text, 1, 4))
	assert.Equal(t, []string{"e"}, segments(t, text, 2, 3))
	assert.Empty(t, segments(t, text, 2, 2))

	_, err := text.Iterate(3, 5)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// restartable
	seq, err := text.Iterate(0, 4)
	require.NoError(t, err)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, second[1].Offset)
}

func TestIterateSurvivesSquash(t *testing.T) {
	d := newTestDoc(1)
	text := d.GetText("t")
	txn, err := d.Begin()
	require.NoError(t, err)
	require.NoError(t, text.Push(txn, "a"))
	require.NoError(t, text.Push(txn, "b"))
	require.Equal(t, 2, text.store().count())

	seq, err := text.Iterate(0, 2)
	require.NoError(t, err)
	var got []string
	for seg := range seq {
		got = append(got, seg.Text)
		if len(got) == 1 {
			// squashes "a" and "b" into one chunk mid-iteration
			require.NoError(t, txn.Commit())
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, text.store().count())
}
