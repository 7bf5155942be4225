package realtime

import (
	"log"
	"sync"
)

type SyncStatus string

const (
	StatusConnecting     SyncStatus = "Connecting..."
	StatusConnected      SyncStatus = "Connected"
	StatusReconnecting   SyncStatus = "Reconnecting..."
	StatusOffline        SyncStatus = "Offline"
	StatusSaving         SyncStatus = "Saving..."
	StatusSaved          SyncStatus = "Saved"
	StatusLoading        SyncStatus = "Loading..."
	StatusLoaded         SyncStatus = "Loaded"
	StatusCalculating    SyncStatus = "Calculating..."
	StatusError          SyncStatus = "Error"
	StatusOfflinePending SyncStatus = "Offline - Changes pending"
)

type EventKind int

const (
	// EventStatus carries a SyncStatus change.
	EventStatus EventKind = iota
	// EventNotification is a message for the user.
	EventNotification
	// EventActiveUsers carries the active user count.
	EventActiveUsers
	// EventReconnected fires on an offline to online transition.
	EventReconnected
	// EventEdited fires after every local edit.
	EventEdited
	// EventLocks fires after the lock view was recomputed.
	EventLocks
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Event struct {
	Kind    EventKind
	Status  SyncStatus
	Level   Level
	Message string
	Count   int
}

type subscriber struct {
	ch    chan Event
	kinds map[EventKind]bool
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// Subscribe returns a channel receiving the given kinds, or every kind when
// none are named, and a function that ends the subscription.
func (b *Bus) Subscribe(buffer int, kinds ...EventKind) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, buffer)}
	if len(kinds) > 0 {
		sub.kinds = make(map[EventKind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub.kinds != nil && !sub.kinds[e.Kind] {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			log.Printf("[Bus] Subscriber full, dropped event %d", e.Kind)
		}
	}
}

func (b *Bus) notify(level Level, msg string) {
	b.Publish(Event{Kind: EventNotification, Level: level, Message: msg})
}
