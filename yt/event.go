package yt

import (
	"sync"

	"github.com/kevinxiao27/yata-text/ol"
)

// TextEvent is delivered to observers once per commit that changed a text.
// Its fields are computed on first access and cached for the event's life.
type TextEvent struct {
	target func() *Text
	path   func() []string
	delta  func() []Delta
}

func newTextEvent(t *Text, name string, s *store, before ol.StateVector, deleted *ol.DeleteSet) *TextEvent {
	return &TextEvent{
		target: sync.OnceValue(func() *Text { return t }),
		path:   sync.OnceValue(func() []string { return []string{name} }),
		delta: sync.OnceValue(func() []Delta {
			return computeDelta(s, before, deleted)
		}),
	}
}

// Target is the text the event refers to.
func (e *TextEvent) Target() *Text { return e.target() }

// Path lists the keys leading from the document root to the target.
func (e *TextEvent) Path() []string { return e.path() }

// Delta is the net change of the transaction on the target's visible text.
func (e *TextEvent) Delta() []Delta { return e.delta() }

type observer[E any] struct {
	id uint64
	fn func(E)
}

// observers is an ordered callback list.
type observers[E any] struct {
	next uint64
	list []observer[E]
}

func (o *observers[E]) add(fn func(E)) func() {
	o.next++
	id := o.next
	o.list = append(o.list, observer[E]{id: id, fn: fn})
	return func() {
		for i, ob := range o.list {
			if ob.id == id {
				o.list = append(o.list[:i:i], o.list[i+1:]...)
				return
			}
		}
	}
}

func (o *observers[E]) len() int { return len(o.list) }

func (o *observers[E]) emit(e E) {
	// copy so callbacks may unsubscribe while we iterate
	list := append([]observer[E](nil), o.list...)
	for _, ob := range list {
		ob.fn(e)
	}
}

// Subscription keeps an observer registered until Unsubscribe is called.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}
