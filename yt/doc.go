package yt

import (
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/kevinxiao27/yata-text/ol"
)

// Doc hosts named root texts and owns the identity state every edit needs:
// the local peer id, its clock and what is known of other peers.
type Doc struct {
	peer    ol.PeerID
	clock   *ol.Clock
	state   ol.StateVector
	deleted *ol.DeleteSet
	texts   map[string]*Text
	txn     *Transaction
	squash  bool
	logger  *log.Logger

	updateObservers observers[*ol.Update]

	// notifications of commits made from inside a callback wait for the
	// running dispatch to finish
	dispatching bool
	pending     []func()
}

type Option func(*Doc)

func WithPeerID(peer ol.PeerID) Option {
	return func(d *Doc) { d.peer = peer }
}

// WithoutSquash keeps every inserted chunk separate. Output is identical,
// only the chunk count differs.
func WithoutSquash() Option {
	return func(d *Doc) { d.squash = false }
}

func WithLogger(l *log.Logger) Option {
	return func(d *Doc) { d.logger = l }
}

func NewDoc(opts ...Option) *Doc {
	d := &Doc{
		state:   ol.StateVector{},
		deleted: ol.NewDeleteSet(),
		texts:   make(map[string]*Text),
		squash:  true,
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.peer == 0 {
		d.peer = ol.NewPeerID()
	}
	d.clock = ol.NewClock(d.peer, 0)
	return d
}

func (d *Doc) PeerID() ol.PeerID { return d.peer }

// StateVector returns a copy of what this doc has integrated.
func (d *Doc) StateVector() ol.StateVector { return d.state.Clone() }

// Begin opens a transaction. Only one may be open at a time.
func (d *Doc) Begin() (*Transaction, error) {
	if d.txn != nil {
		return nil, ErrTransactionOpen
	}
	d.txn = newTransaction(d)
	return d.txn, nil
}

// Transact runs fn in a new transaction and commits it, even when fn fails:
// whatever fn applied stays applied.
func (d *Doc) Transact(fn func(txn *Transaction) error) error {
	txn, err := d.Begin()
	if err != nil {
		return err
	}
	fnErr := fn(txn)
	if err := txn.Commit(); err != nil {
		return err
	}
	return fnErr
}

// GetText returns the root text called name, creating an empty one if needed.
func (d *Doc) GetText(name string) *Text {
	if t, ok := d.texts[name]; ok {
		return t
	}
	t := newIntegratedText(d, name)
	d.texts[name] = t
	return t
}

// Attach integrates a preliminary text under name. Its content becomes a
// local insert of txn.
func (d *Doc) Attach(txn *Transaction, name string, t *Text) error {
	p, ok := t.state.(*prelimText)
	if !ok {
		return ErrAlreadyIntegrated
	}
	if err := txn.check(d); err != nil {
		return err
	}
	if _, taken := d.texts[name]; taken {
		return fmt.Errorf("%w: %q", ErrNameTaken, name)
	}

	content := p.content
	t.state = &integratedText{doc: d, name: name, store: newStore()}
	d.texts[name] = t
	return t.Insert(txn, 0, content)
}

// Names lists the root texts in name order.
func (d *Doc) Names() []string {
	names := make([]string, 0, len(d.texts))
	for name := range d.texts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OnUpdate registers fn to receive the records of every commit that produced
// some. The returned func unregisters it.
func (d *Doc) OnUpdate(fn func(*ol.Update)) func() {
	return d.updateObservers.add(fn)
}

// dispatch runs notify once every earlier commit's observers have been called.
func (d *Doc) dispatch(notify func()) {
	d.pending = append(d.pending, notify)
	if d.dispatching {
		return
	}
	d.dispatching = true
	defer func() { d.dispatching = false }()
	for len(d.pending) > 0 {
		next := d.pending[0]
		d.pending = d.pending[1:]
		next()
	}
}

// locate finds the text and chunk holding id.
func (d *Doc) locate(id ol.ID) (*Text, ChunkRef) {
	for _, name := range d.Names() {
		t := d.texts[name]
		if ref := t.store().findByID(id); ref != nilRef {
			return t, ref
		}
	}
	panic(fmt.Sprintf("merge inconsistency: unknown chunk %v", id))
}
