package yt

import (
	"encoding/json"
	"iter"
	"unicode/utf8"
)

// Text is a shared string measured in UTF-8 bytes.
//
// A Text starts out preliminary: a plain local string with no identity.
// Attaching it to a Doc integrates it, after which every edit goes through a
// transaction and the chunk store. The transition happens exactly once.
type Text struct {
	state textState
}

type textState interface {
	isTextState()
}

type prelimText struct {
	content string
}

type integratedText struct {
	doc       *Doc
	name      string
	store     *store
	observers observers[*TextEvent]
}

func (*prelimText) isTextState()     {}
func (*integratedText) isTextState() {}

// NewText returns a preliminary text holding init.
func NewText(init string) *Text {
	return &Text{state: &prelimText{content: init}}
}

func newIntegratedText(d *Doc, name string) *Text {
	return &Text{state: &integratedText{doc: d, name: name, store: newStore()}}
}

func (t *Text) integrated() *integratedText {
	in, ok := t.state.(*integratedText)
	invariant(ok, "text is not integrated")
	return in
}

func (t *Text) store() *store { return t.integrated().store }

func (t *Text) name() string { return t.integrated().name }

// Prelim reports whether the text has not been attached to a doc yet.
func (t *Text) Prelim() bool {
	_, ok := t.state.(*prelimText)
	return ok
}

// Len is the length in bytes.
func (t *Text) Len() int {
	switch s := t.state.(type) {
	case *prelimText:
		return len(s.content)
	case *integratedText:
		return s.store.length
	}
	return 0
}

// String reads the live state, including edits of a still open transaction.
func (t *Text) String() string {
	switch s := t.state.(type) {
	case *prelimText:
		return s.content
	case *integratedText:
		return s.store.String()
	}
	return ""
}

// ToJSON encodes the text as a JSON string.
func (t *Text) ToJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Iterate yields the visible content in the byte range [from, to).
func (t *Text) Iterate(from, to int) (iter.Seq[Segment], error) {
	if from < 0 || from > to || to > t.Len() {
		return nil, rangeError("range [%d, %d), length %d", from, to, t.Len())
	}
	switch s := t.state.(type) {
	case *prelimText:
		return func(yield func(Segment) bool) {
			if from < to {
				yield(Segment{Offset: from, Text: s.content[from:to]})
			}
		}, nil
	case *integratedText:
		return s.store.iterate(from, to), nil
	}
	return nil, nil
}

// Insert adds chunk at a byte index. Preliminary texts ignore txn.
func (t *Text) Insert(txn *Transaction, index int, chunk string) error {
	switch s := t.state.(type) {
	case *prelimText:
		if err := checkStringIndex(s.content, index); err != nil {
			return err
		}
		s.content = s.content[:index] + chunk + s.content[index:]
	case *integratedText:
		if err := txn.check(s.doc); err != nil {
			return err
		}
		if err := s.store.checkIndex(index); err != nil {
			return err
		}
		if chunk == "" {
			return nil
		}
		id := s.doc.clock.Tick(uint64(len(chunk)))
		s.store.insert(index, chunk, id)
		s.doc.state.Advance(id.Peer, s.doc.clock.Next())
		txn.changed.Add(t)
	}
	return nil
}

// Push appends chunk to the end of the text.
func (t *Text) Push(txn *Transaction, chunk string) error {
	return t.Insert(txn, t.Len(), chunk)
}

// Delete removes length bytes starting at index.
func (t *Text) Delete(txn *Transaction, index, length int) error {
	if length < 0 {
		return rangeError("negative length %d", length)
	}
	switch s := t.state.(type) {
	case *prelimText:
		if err := checkStringIndex(s.content, index); err != nil {
			return err
		}
		if err := checkStringIndex(s.content, index+length); err != nil {
			return err
		}
		s.content = s.content[:index] + s.content[index+length:]
	case *integratedText:
		if err := txn.check(s.doc); err != nil {
			return err
		}
		if err := s.store.checkIndex(index); err != nil {
			return err
		}
		if err := s.store.checkIndex(index + length); err != nil {
			return err
		}
		if length == 0 {
			return nil
		}
		s.store.delete(index, length, txn.markDeleted)
		txn.changed.Add(t)
	}
	return nil
}

// Observe registers fn to run once per committed transaction that changed
// the text.
func (t *Text) Observe(fn func(*TextEvent)) (*Subscription, error) {
	s, ok := t.state.(*integratedText)
	if !ok {
		return nil, ErrPrelimObserve
	}
	return &Subscription{cancel: s.observers.add(fn)}, nil
}

func checkStringIndex(s string, index int) error {
	if index < 0 || index > len(s) {
		return rangeError("index %d, length %d", index, len(s))
	}
	if index < len(s) && !utf8.RuneStart(s[index]) {
		return rangeError("index %d splits a code point", index)
	}
	return nil
}
