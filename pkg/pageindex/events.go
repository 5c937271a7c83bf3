package pageindex

import (
	"slices"
	"sync"
)

// Listener receives change notifications. Notifications are queued while a
// write transaction runs and delivered in emission order after the outermost
// commit; a rolled back transaction delivers nothing.
//
// Listeners run on the goroutine that committed, outside of all index locks,
// so they may call read views. They must not block for long.
type Listener interface {
	// PageAdded is called after a new row was inserted.
	PageAdded(page IndexPath)
	// PageChanged is called after a page's content was re-indexed.
	PageChanged(page IndexPath)
	// PageHasChildrenToggled is called when a page gained its first child
	// or lost its last one.
	PageHasChildrenToggled(page IndexPath, hasChildren bool)
	// PageToBeRemoved is called for a row that was removed in the committed
	// transaction. page is the snapshot taken while the row still existed.
	PageToBeRemoved(page IndexPath)
}

// NopListener implements [Listener] with no-ops. Embed it to handle only
// some notifications.
type NopListener struct{}

func (NopListener) PageAdded(IndexPath)                    {}
func (NopListener) PageChanged(IndexPath)                  {}
func (NopListener) PageHasChildrenToggled(IndexPath, bool) {}
func (NopListener) PageToBeRemoved(IndexPath)              {}

type eventKind uint8

const (
	eventPageAdded eventKind = iota + 1
	eventPageChanged
	eventHasChildrenToggled
	eventToBeRemoved
)

type event struct {
	kind        eventKind
	page        IndexPath
	hasChildren bool
}

func (e event) deliver(l Listener) {
	switch e.kind {
	case eventPageAdded:
		l.PageAdded(e.page)
	case eventPageChanged:
		l.PageChanged(e.page)
	case eventHasChildrenToggled:
		l.PageHasChildrenToggled(e.page, e.hasChildren)
	case eventToBeRemoved:
		l.PageToBeRemoved(e.page)
	}
}

type subscription struct {
	id int
	l  Listener
}

// listenerSet keeps subscribers in subscription order.
type listenerSet struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

func (s *listenerSet) subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, l: l})

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			s.subs = slices.DeleteFunc(s.subs, func(sub subscription) bool { return sub.id == id })
		})
	}
}

func (s *listenerSet) dispatch(events []event) {
	if len(events) == 0 {
		return
	}

	s.mu.Lock()
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	for _, e := range events {
		for _, sub := range subs {
			e.deliver(sub.l)
		}
	}
}
