package yt

import (
	"fmt"
	"sort"

	"github.com/kevinxiao27/yata-text/ol"
)

func copyID(id *ol.ID) *ol.ID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

// record describes c from clock since onwards.
func record(parent string, c *chunk, since uint64) ol.InsertRecord {
	off := uint64(0)
	if since > c.id.Clock {
		off = since - c.id.Clock
	}
	rec := ol.InsertRecord{
		Parent:      parent,
		ID:          c.id.Add(off),
		OriginLeft:  copyID(c.originLeft),
		OriginRight: copyID(c.originRight),
		Content:     c.content[off:],
	}
	if off > 0 {
		left := c.id.Add(off - 1)
		rec.OriginLeft = &left
	}
	return rec
}

// encodeInserts returns records for everything integrated beyond remote, in
// (peer, clock) order.
func (d *Doc) encodeInserts(remote ol.StateVector) []ol.InsertRecord {
	missing := d.state.Missing(remote)
	recs := []ol.InsertRecord{}
	for _, name := range d.Names() {
		s := d.texts[name].store()
		for peer, since := range missing {
			refs := s.byPeer[peer]
			i := sort.Search(len(refs), func(i int) bool {
				return s.chunks[refs[i]].end() > since
			})
			for _, ref := range refs[i:] {
				recs = append(recs, record(name, s.get(ref), since))
			}
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].ID.Less(recs[j].ID)
	})
	return recs
}

// EncodeStateAsUpdate returns what a peer at remote needs to catch up. A nil
// remote encodes the whole document.
func (d *Doc) EncodeStateAsUpdate(remote ol.StateVector) *ol.Update {
	if remote == nil {
		remote = ol.StateVector{}
	}
	return &ol.Update{
		Inserts: d.encodeInserts(remote),
		Deletes: d.deleted.Slice(),
	}
}

func ready(known ol.StateVector, rec ol.InsertRecord) bool {
	if rec.ID.Clock > known.Get(rec.ID.Peer) {
		return false
	}
	if rec.OriginLeft != nil && !known.Contains(*rec.OriginLeft) {
		return false
	}
	return rec.OriginRight == nil || known.Contains(*rec.OriginRight)
}

// plan orders the records of u so that each one's dependencies precede it.
// Nothing is modified; an update that cannot be fully ordered is rejected.
func (d *Doc) plan(u *ol.Update) ([]ol.InsertRecord, error) {
	known := d.state.Clone()
	pending := append([]ol.InsertRecord(nil), u.Inserts...)
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ID.Less(pending[j].ID)
	})

	var order []ol.InsertRecord
	for len(pending) > 0 {
		var rest []ol.InsertRecord
		for _, rec := range pending {
			if !ready(known, rec) {
				rest = append(rest, rec)
				continue
			}
			order = append(order, rec)
			known.Advance(rec.ID.Peer, rec.End())
		}
		if len(rest) == len(pending) {
			return nil, fmt.Errorf("%w: %d records wait on missing content, first %v", ErrMergeInconsistency, len(rest), rest[0].ID)
		}
		pending = rest
	}

	for _, r := range u.Deletes {
		if r.Clock+r.Len > known.Get(r.Peer) {
			return nil, fmt.Errorf("%w: delete of %d@%d+%d", ErrMergeInconsistency, r.Clock, r.Peer, r.Len)
		}
	}
	return order, nil
}

// ApplyUpdate integrates remote records in a transaction of its own. Records
// already known are skipped, so updates may be applied repeatedly and in any
// order as long as each one's dependencies were delivered before or with it.
func (d *Doc) ApplyUpdate(u *ol.Update) error {
	if u.IsEmpty() {
		return nil
	}
	if d.txn != nil {
		return ErrTransactionOpen
	}
	order, err := d.plan(u)
	if err != nil {
		d.logger.Printf("apply: peer=%d rejected update: %v", d.peer, err)
		return err
	}

	txn, err := d.Begin()
	if err != nil {
		return err
	}
	for _, rec := range order {
		d.integrateRecord(txn, rec)
	}
	for _, r := range u.Deletes {
		d.applyDelete(txn, r)
	}
	return txn.Commit()
}

func (d *Doc) integrateRecord(txn *Transaction, rec ol.InsertRecord) {
	peer, clock := rec.ID.Unpack()
	known := d.state.Get(peer)
	if rec.End() <= known {
		return
	}

	c := chunk{
		id:          rec.ID,
		originLeft:  copyID(rec.OriginLeft),
		originRight: copyID(rec.OriginRight),
		content:     rec.Content,
		left:        nilRef,
		right:       nilRef,
	}
	if known > clock {
		off := known - clock
		left := rec.ID.Add(off - 1)
		c.id, c.originLeft, c.content = rec.ID.Add(off), &left, rec.Content[off:]
	}

	t := d.GetText(rec.Parent)
	s := t.store()
	s.integrate(s.alloc(c))
	d.state.Advance(peer, rec.End())
	if peer == d.peer {
		d.clock.Witness(rec.End())
	}
	txn.changed.Add(t)
}

func (d *Doc) applyDelete(txn *Transaction, r ol.DeleteRange) {
	clock, end := r.Clock, r.Clock+r.Len
	for clock < end {
		id := ol.ID{Peer: r.Peer, Clock: clock}
		t, _ := d.locate(id)
		txn.touched.Add(t)
		clock += t.store().deleteID(id, end, func(id ol.ID, n uint64) {
			txn.markDeleted(id, n)
			txn.changed.Add(t)
		})
	}
}
