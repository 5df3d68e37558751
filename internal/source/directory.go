package source

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// ErrNotOpen indicates an operation on a document without an open buffer.
var ErrNotOpen = errors.New("document is not open")

// ChangeKind classifies a Directory change notification.
type ChangeKind uint8

const (
	ChangeOpened ChangeKind = iota + 1
	ChangeEdited
	ChangeClosed
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeOpened:
		return "opened"
	case ChangeEdited:
		return "edited"
	case ChangeClosed:
		return "closed"
	}
	return "unknown"
}

// Change reports a buffer lifecycle or text change. Snapshot is the new
// current snapshot, or the last one for ChangeClosed.
type Change struct {
	Kind     ChangeKind
	Document DocumentID
	Snapshot *Snapshot
}

// Directory tracks open buffers by document. It is the capability the
// decoration pipeline uses to ask whether a document is open and what its
// current snapshot is.
type Directory struct {
	mu           sync.RWMutex
	buffers      map[DocumentID]*Buffer
	listeners    map[uint64]func(Change)
	nextListener uint64
	historyLimit int
}

// NewDirectory creates an empty directory. historyLimit is passed to every
// buffer it opens.
func NewDirectory(historyLimit int) *Directory {
	return &Directory{
		buffers:      make(map[DocumentID]*Buffer),
		listeners:    make(map[uint64]func(Change)),
		historyLimit: historyLimit,
	}
}

// Open opens doc with content. An already open document has its content
// replaced instead, keeping the buffer identity.
func (d *Directory) Open(doc DocumentID, content []byte) *Snapshot {
	d.mu.Lock()
	if b, ok := d.buffers[doc]; ok {
		d.mu.Unlock()
		snap, err := d.replace(b, content)
		if err != nil {
			return b.Current()
		}
		return snap
	}
	b := NewBuffer(doc, content, d.historyLimit)
	d.buffers[doc] = b
	d.mu.Unlock()
	snap := b.Current()
	d.notify(Change{Kind: ChangeOpened, Document: doc, Snapshot: snap})
	return snap
}

// Load reads path from disk, normalizes BOM and CRLF, and opens it.
func (d *Directory) Load(path string) (*Snapshot, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return d.Open(PathDocument(path), Normalize(content)), nil
}

// Close drops the buffer of doc. It reports whether doc was open.
func (d *Directory) Close(doc DocumentID) bool {
	d.mu.Lock()
	b, ok := d.buffers[doc]
	if ok {
		delete(d.buffers, doc)
	}
	d.mu.Unlock()
	if ok {
		d.notify(Change{Kind: ChangeClosed, Document: doc, Snapshot: b.Current()})
	}
	return ok
}

func (d *Directory) Lookup(doc DocumentID) (*Buffer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.buffers[doc]
	return b, ok
}

func (d *Directory) IsOpen(doc DocumentID) bool {
	_, ok := d.Lookup(doc)
	return ok
}

// CurrentSnapshot returns the current snapshot of the open buffer for doc.
func (d *Directory) CurrentSnapshot(doc DocumentID) (*Snapshot, bool) {
	b, ok := d.Lookup(doc)
	if !ok {
		return nil, false
	}
	return b.Current(), true
}

// Apply edits the open buffer of doc.
func (d *Directory) Apply(doc DocumentID, edits ...Edit) (*Snapshot, error) {
	b, ok := d.Lookup(doc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, doc)
	}
	before := b.Current()
	snap, err := b.Apply(edits...)
	if err != nil {
		return nil, err
	}
	if snap != before {
		d.notify(Change{Kind: ChangeEdited, Document: doc, Snapshot: snap})
	}
	return snap, nil
}

// Replace swaps the content of the open buffer of doc via a minimal edit.
func (d *Directory) Replace(doc DocumentID, content []byte) (*Snapshot, error) {
	b, ok := d.Lookup(doc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, doc)
	}
	return d.replace(b, content)
}

func (d *Directory) replace(b *Buffer, content []byte) (*Snapshot, error) {
	before := b.Current()
	snap, err := b.Replace(content)
	if err != nil {
		return nil, err
	}
	if snap != before {
		d.notify(Change{Kind: ChangeEdited, Document: b.doc, Snapshot: snap})
	}
	return snap, nil
}

// Documents lists open documents in sorted order.
func (d *Directory) Documents() []DocumentID {
	d.mu.RLock()
	out := make([]DocumentID, 0, len(d.buffers))
	for doc := range d.buffers {
		out = append(out, doc)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Subscribe registers fn for every change. The returned function unsubscribes.
func (d *Directory) Subscribe(fn func(Change)) func() {
	d.mu.Lock()
	d.nextListener++
	id := d.nextListener
	d.listeners[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

func (d *Directory) notify(change Change) {
	d.mu.RLock()
	fns := make([]func(Change), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.mu.RUnlock()
	for _, fn := range fns {
		fn(change)
	}
}
