package yt

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/kevinxiao27/yata-text/ol"
)

// Transaction batches edits on one doc. Edits apply immediately; observers
// hear about them once, on Commit. There is no rollback.
type Transaction struct {
	doc     *Doc
	before  ol.StateVector
	deleted *ol.DeleteSet
	changed mapset.Set[*Text] // texts whose visible content changed
	touched mapset.Set[*Text] // texts split without visible change
	closed  bool
	update  *ol.Update
}

func newTransaction(d *Doc) *Transaction {
	return &Transaction{
		doc:     d,
		before:  d.state.Clone(),
		deleted: ol.NewDeleteSet(),
		changed: mapset.NewThreadUnsafeSet[*Text](),
		touched: mapset.NewThreadUnsafeSet[*Text](),
	}
}

// Doc returns the document this transaction edits.
func (txn *Transaction) Doc() *Doc { return txn.doc }

// Closed reports whether Commit has run.
func (txn *Transaction) Closed() bool { return txn.closed }

func (txn *Transaction) markDeleted(id ol.ID, n uint64) {
	txn.deleted.Add(id.Peer, id.Clock, n)
	txn.doc.deleted.Add(id.Peer, id.Clock, n)
}

func (txn *Transaction) check(d *Doc) error {
	if txn == nil || txn.closed {
		return ErrTransactionClosed
	}
	if txn.doc != d {
		return ErrForeignTransaction
	}
	return nil
}

// Commit squashes what the transaction touched, notifies text observers and
// then update observers.
func (txn *Transaction) Commit() error {
	if txn.closed {
		return ErrTransactionClosed
	}
	d := txn.doc
	txn.closed = true
	d.txn = nil

	if d.squash {
		for _, t := range sortByName(txn.changed.Union(txn.touched)) {
			t.store().squash(txn.before, txn.deleted)
		}
	}

	txn.update = &ol.Update{
		Inserts: d.encodeInserts(txn.before),
		Deletes: txn.deleted.Slice(),
	}

	// freeze deltas before any observer can edit the text again
	var events []*TextEvent
	for _, t := range sortByName(txn.changed) {
		in := t.integrated()
		if in.observers.len() == 0 {
			continue
		}
		e := newTextEvent(t, in.name, in.store, txn.before, txn.deleted)
		e.Delta()
		events = append(events, e)
	}

	update := txn.update
	d.dispatch(func() {
		for _, e := range events {
			e.Target().integrated().observers.emit(e)
		}
		if !update.IsEmpty() {
			d.logger.Printf("commit: peer=%d inserts=%d deletes=%d", d.peer, len(update.Inserts), len(update.Deletes))
			d.updateObservers.emit(update)
		}
	})
	return nil
}

// Update returns the records the transaction produced. It is nil until
// Commit has run.
func (txn *Transaction) Update() *ol.Update {
	return txn.update
}

func sortByName(set mapset.Set[*Text]) []*Text {
	texts := set.ToSlice()
	sort.Slice(texts, func(i, j int) bool {
		return texts[i].name() < texts[j].name()
	})
	return texts
}
