package yt

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kevinxiao27/yata-text/ol"
)

func newTestDoc(peer ol.PeerID, opts ...Option) *Doc {
	return NewDoc(append([]Option{WithPeerID(peer)}, opts...)...)
}

// edit runs fn against the root text "t" in one committed transaction.
func edit(t *testing.T, d *Doc, fn func(txn *Transaction, text *Text)) {
	t.Helper()
	text := d.GetText("t")
	require.NoError(t, d.Transact(func(txn *Transaction) error {
		fn(txn, text)
		return nil
	}))
}

func insert(t *testing.T, d *Doc, index int, s string) {
	t.Helper()
	edit(t, d, func(txn *Transaction, text *Text) {
		require.NoError(t, text.Insert(txn, index, s))
	})
}

func remove(t *testing.T, d *Doc, index, length int) {
	t.Helper()
	edit(t, d, func(txn *Transaction, text *Text) {
		require.NoError(t, text.Delete(txn, index, length))
	})
}

// exchange brings a and b to the same state.
func exchange(t *testing.T, a, b *Doc) {
	t.Helper()
	ua := a.EncodeStateAsUpdate(b.StateVector())
	ub := b.EncodeStateAsUpdate(a.StateVector())
	require.NoError(t, b.ApplyUpdate(ua))
	require.NoError(t, a.ApplyUpdate(ub))
}

func textOf(d *Doc) string {
	return d.GetText("t").String()
}

var alphabet = []rune("abcdefghijklmnopqrstuvwxyz")

func randWord(rng *rand.Rand) string {
	n := 1 + rng.IntN(4)
	w := make([]rune, n)
	for i := range w {
		w[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return string(w)
}

// randomEdit applies one to three random local edits to text.
func randomEdit(t *testing.T, rng *rand.Rand, txn *Transaction, text *Text) {
	t.Helper()
	for k := 1 + rng.IntN(3); k > 0; k-- {
		n := text.Len()
		if n > 0 && rng.IntN(3) == 0 {
			i := rng.IntN(n)
			require.NoError(t, text.Delete(txn, i, 1+rng.IntN(min(4, n-i))))
			continue
		}
		require.NoError(t, text.Insert(txn, rng.IntN(n+1), randWord(rng)))
	}
}

// trackDeltas checks every event's delta against the text it last saw and
// records the deltas.
func trackDeltas(t *testing.T, text *Text, deltas *[][]Delta) {
	t.Helper()
	last := text.String()
	_, err := text.Observe(func(e *TextEvent) {
		got, err := ApplyDelta(last, e.Delta())
		require.NoError(t, err)
		require.Equal(t, e.Target().String(), got, "delta %v on %q", e.Delta(), last)
		last = got
		if deltas != nil {
			*deltas = append(*deltas, e.Delta())
		}
	})
	require.NoError(t, err)
}
