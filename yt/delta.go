package yt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kevinxiao27/yata-text/ol"
)

type DeltaKind int

const (
	Retain DeltaKind = iota
	Insert
	Delete
)

func (k DeltaKind) String() string {
	switch k {
	case Retain:
		return "retain"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("DeltaKind(%d)", int(k))
}

// Delta is one step of a change description. Len counts bytes; Text is only
// set for inserts.
type Delta struct {
	Kind DeltaKind
	Len  int
	Text string
}

func RetainOp(n int) Delta { return Delta{Kind: Retain, Len: n} }
func InsertOp(s string) Delta { return Delta{Kind: Insert, Len: len(s), Text: s} }
func DeleteOp(n int) Delta { return Delta{Kind: Delete, Len: n} }

func (d Delta) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case Insert:
		return json.Marshal(map[string]string{"insert": d.Text})
	case Retain, Delete:
		return json.Marshal(map[string]int{d.Kind.String(): d.Len})
	}
	return nil, fmt.Errorf("unknown delta kind %v", d.Kind)
}

func (d *Delta) UnmarshalJSON(b []byte) error {
	var raw struct {
		Insert *string `json:"insert"`
		Retain *int    `json:"retain"`
		Delete *int    `json:"delete"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch {
	case raw.Insert != nil:
		*d = InsertOp(*raw.Insert)
	case raw.Retain != nil:
		*d = RetainOp(*raw.Retain)
	case raw.Delete != nil:
		*d = DeleteOp(*raw.Delete)
	default:
		return fmt.Errorf("delta entry %s has no known key", b)
	}
	return nil
}

type deltaBuilder struct {
	ops []Delta
}

func (b *deltaBuilder) add(d Delta) {
	if d.Len == 0 {
		return
	}
	if n := len(b.ops); n > 0 && b.ops[n-1].Kind == d.Kind {
		last := &b.ops[n-1]
		last.Len += d.Len
		last.Text += d.Text
		return
	}
	b.ops = append(b.ops, d)
}

func (b *deltaBuilder) done() []Delta {
	if n := len(b.ops); n > 0 && b.ops[n-1].Kind == Retain {
		b.ops = b.ops[:n-1]
	}
	if b.ops == nil {
		return []Delta{}
	}
	return b.ops
}

// computeDelta describes what a transaction did to the visible text. A byte
// is new if its clock is at or past before; it was removed by the
// transaction if it is old and in deleted. Chunks squashed across the
// transaction boundary are handled by splitting them at before.
func computeDelta(s *store, before ol.StateVector, deleted *ol.DeleteSet) []Delta {
	var b deltaBuilder
	for ref := s.start; ref != nilRef; ref = s.get(ref).right {
		c := s.get(ref)
		boundary := min(max(before.Get(c.id.Peer), c.id.Clock), c.end())
		old := boundary - c.id.Clock
		if c.deleted {
			var n uint64
			for _, r := range deleted.Overlapping(c.id.Peer, c.id.Clock, old) {
				n += r.Len
			}
			b.add(DeleteOp(int(n)))
			continue
		}
		b.add(RetainOp(int(old)))
		b.add(InsertOp(c.content[old:]))
	}
	return b.done()
}

// ApplyDelta replays d on s.
func ApplyDelta(s string, d []Delta) (string, error) {
	var sb strings.Builder
	pos := 0
	for _, op := range d {
		switch op.Kind {
		case Retain, Delete:
			if pos+op.Len > len(s) {
				return "", rangeError("%v(%d) at %d, length %d", op.Kind, op.Len, pos, len(s))
			}
			if op.Kind == Retain {
				sb.WriteString(s[pos : pos+op.Len])
			}
			pos += op.Len
		case Insert:
			sb.WriteString(op.Text)
		}
	}
	sb.WriteString(s[pos:])
	return sb.String(), nil
}
