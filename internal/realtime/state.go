package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"route-recon/internal/localstore"
	"route-recon/internal/models"
)

// PendingChange is a save that could not reach the server.
type PendingChange struct {
	Timestamp int64           `json:"timestamp"`
	Module    string          `json:"module"`
	Route     string          `json:"route"`
	Date      string          `json:"date"`
	Payload   json.RawMessage `json:"payload"`

	// seq and epoch locate the snapshot in this run; zero after a restart.
	seq   uint64
	epoch uint64
}

func (p PendingChange) sameTarget(o PendingChange) bool {
	return p.Module == o.Module && p.Route == o.Route && p.Date == o.Date
}

// localDoc is the persisted form of the open document.
type localDoc struct {
	Route string          `json:"route"`
	Date  string          `json:"date"`
	Data  json.RawMessage `json:"data"`
}

// State is the client context shared by the presence tracker, lock
// coordinator, poller and saver. Every field is guarded by mu and no
// network call is made while holding it.
type State struct {
	mu      sync.Mutex
	session Session
	doc     Document

	online    bool
	connected bool
	status    SyncStatus
	epoch     uint64
	cursor    int64
	seq       uint64

	users    []models.ActiveUser
	focused  string
	held     map[string]bool
	lockedBy map[string]models.LockHolder
	pending  []PendingChange

	// persistMu orders snapshot writes so an older one never lands last.
	persistMu sync.Mutex
	store     LocalStore
	bus       *Bus
	now       func() time.Time
}

func NewState(session Session, doc Document, store LocalStore, bus *Bus) *State {
	return &State{
		session:  session,
		doc:      doc,
		status:   StatusConnecting,
		held:     make(map[string]bool),
		lockedBy: make(map[string]models.LockHolder),
		store:    store,
		bus:      bus,
		now:      time.Now,
	}
}

func (s *State) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *State) Module() string {
	return s.doc.Module()
}

func (s *State) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *State) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Cursor is the last server timestamp seen for the open partition.
func (s *State) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *State) Users() []models.ActiveUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ActiveUser(nil), s.users...)
}

func (s *State) Pending() []PendingChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PendingChange(nil), s.pending...)
}

func (s *State) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Dirty()
}

// Held lists the items this client holds a lock on.
func (s *State) Held() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.held))
	for code := range s.held {
		out = append(out, code)
	}
	return out
}

func (s *State) Focused() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

// LockedBy returns the holder of an item locked by another user.
func (s *State) LockedBy(code string) (models.LockHolder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.lockedBy[code]
	return h, ok
}

// View runs fn with the document under the state lock. fn must not keep
// references to the document.
func (s *State) View(fn func(doc Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

func (s *State) setStatus(st SyncStatus) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	s.mu.Unlock()
	if changed {
		s.bus.Publish(Event{Kind: EventStatus, Status: st})
	}
}

// setOnline records connectivity and reports whether this call brought the
// client back online. The first connection also counts.
func (s *State) setOnline(online bool) (reconnected, first bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return false, false
	}
	s.online = online
	first = online && !s.connected
	if online {
		s.connected = true
	}
	status := StatusOffline
	if online {
		status = StatusConnected
	} else if len(s.pending) > 0 {
		status = StatusOfflinePending
	}
	s.mu.Unlock()

	s.setStatus(status)
	return online, first
}

// partition is the epoch a request was issued under.
func (s *State) partition() (Session, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.epoch
}

func (s *State) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

// pollTarget returns what to poll, or false when nothing should be polled.
func (s *State) pollTarget() (Session, uint64, int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.online && s.session.Route != "" && s.session.Date != ""
	return s.session, s.epoch, s.cursor, ok
}

// advanceCursor moves the cursor forward only.
func (s *State) advanceCursor(epoch uint64, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch && ts > s.cursor {
		s.cursor = ts
	}
}

// SetPartition switches route and date. A change starts a new epoch: the
// document is cleared, the cursor and lock view are reset, and responses
// to requests issued before are discarded.
func (s *State) SetPartition(ctx context.Context, route, date string) bool {
	s.mu.Lock()
	if s.session.Route == route && s.session.Date == date {
		s.mu.Unlock()
		return false
	}
	s.session.Route, s.session.Date = route, date
	s.epoch++
	s.cursor = 0
	s.doc.Reset()
	s.focused = ""
	s.held = make(map[string]bool)
	s.lockedBy = make(map[string]models.LockHolder)
	s.mu.Unlock()

	s.persist(ctx)
	s.bus.Publish(Event{Kind: EventLocks})
	return true
}

// Edit applies one field change to the open document.
func (s *State) Edit(ctx context.Context, code, field, value string) error {
	s.mu.Lock()
	if err := requireRoute(s.session); err != nil {
		s.mu.Unlock()
		return err
	}
	if holder, ok := s.lockedBy[code]; ok {
		s.mu.Unlock()
		return &LockConflictError{ItemCode: code, HeldBy: holder}
	}
	s.seq++
	if err := s.doc.Edit(code, field, value, s.seq); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.persist(ctx)
	s.bus.Publish(Event{Kind: EventEdited})
	return nil
}

// mutate runs fn on the document with a fresh edit sequence and persists
// the result.
func (s *State) mutate(ctx context.Context, fn func(doc Document, seq uint64)) {
	s.mu.Lock()
	s.seq++
	fn(s.doc, s.seq)
	s.mu.Unlock()
	s.persist(ctx)
}

// mutateAt is mutate for the response to a request issued in epoch. It
// leaves the document alone and reports false when the partition changed.
func (s *State) mutateAt(ctx context.Context, epoch uint64, fn func(doc Document, seq uint64)) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	s.seq++
	fn(s.doc, s.seq)
	s.mu.Unlock()
	s.persist(ctx)
	return true
}

// merge applies a server record if it belongs to the current epoch.
func (s *State) merge(ctx context.Context, epoch uint64, record interface{}) (bool, error) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false, nil
	}
	changed, err := s.doc.Merge(record)
	s.mu.Unlock()
	if changed {
		s.persist(ctx)
	}
	return changed, err
}

// snapshot captures the save payload and the edit sequence it covers.
func (s *State) snapshot() (PendingChange, uint64, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := requireRoute(s.session); err != nil {
		return PendingChange{}, 0, 0, err
	}
	now := s.now()
	payload, err := json.Marshal(s.doc.Payload(s.session, now))
	if err != nil {
		return PendingChange{}, 0, 0, err
	}
	change := PendingChange{
		Timestamp: now.UnixMilli(),
		Module:    s.doc.Module(),
		Route:     s.session.Route,
		Date:      s.session.Date,
		Payload:   payload,
		seq:       s.seq,
		epoch:     s.epoch,
	}
	return change, s.seq, s.epoch, nil
}

func (s *State) markSaved(ctx context.Context, epoch, seq uint64) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.doc.MarkSaved(seq)
	s.mu.Unlock()
	s.persist(ctx)
}

// enqueue keeps one pending change per module, route and date; the newest wins.
func (s *State) enqueue(ctx context.Context, change PendingChange) {
	s.mu.Lock()
	replaced := false
	for i := range s.pending {
		if s.pending[i].sameTarget(change) {
			s.pending[i] = change
			replaced = true
			break
		}
	}
	if !replaced {
		s.pending = append(s.pending, change)
	}
	s.mu.Unlock()
	s.persistPending(ctx)
}

// dropPending removes the entry for change's target unless a newer one
// replaced it meanwhile.
func (s *State) dropPending(ctx context.Context, change PendingChange) {
	s.mu.Lock()
	kept := s.pending[:0]
	removed := false
	for _, p := range s.pending {
		if p.sameTarget(change) && p.Timestamp <= change.Timestamp {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	s.pending = kept
	s.mu.Unlock()
	if removed {
		s.persistPending(ctx)
	}
}

// ApplyLocks recomputes the lock view of the current route from the
// server's lock list. Own locks never enter the held set here: an item
// only counts as held while it is focused.
func (s *State) ApplyLocks(locks []models.ItemLock) {
	s.mu.Lock()
	view := make(map[string]models.LockHolder)
	for _, l := range locks {
		if l.Route != s.session.Route || l.UserID == s.session.UserID {
			continue
		}
		code, ok := productCode(s.doc.Module(), l.ItemCode)
		if !ok {
			continue
		}
		view[code] = models.LockHolder{UserID: l.UserID, UserName: l.UserName}
	}
	s.lockedBy = view
	s.mu.Unlock()
	s.bus.Publish(Event{Kind: EventLocks})
}

func (s *State) setUsers(users []models.ActiveUser) {
	s.mu.Lock()
	s.users = append([]models.ActiveUser(nil), users...)
	s.mu.Unlock()
}

// lockCode is the item code sent to the server for a product of the
// open module.
func lockCode(module, code string) string {
	if module == ModuleSales {
		return models.SalesItemCode(code)
	}
	return code
}

// productCode maps a server lock code back to a product of module.
func productCode(module, itemCode string) (string, bool) {
	sales := models.SalesItemCode("")
	if module == ModuleSales {
		if !strings.HasPrefix(itemCode, sales) {
			return "", false
		}
		return strings.TrimPrefix(itemCode, sales), true
	}
	if strings.HasPrefix(itemCode, sales) {
		return "", false
	}
	return itemCode, true
}

// Restore loads the persisted document and pending queue.
func (s *State) Restore(ctx context.Context) error {
	var doc localDoc
	found, err := s.store.Get(ctx, s.doc.LocalKey(), &doc)
	if err != nil {
		return err
	}
	var pending []PendingChange
	if _, err := s.store.Get(ctx, localstore.KeyPendingChanges, &pending); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = pending
	if !found || doc.Route == "" {
		return nil
	}
	s.session.Route, s.session.Date = doc.Route, doc.Date
	s.epoch++
	s.doc.Reset()
	return s.doc.Restore(doc.Data)
}

func (s *State) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	data, err := json.Marshal(s.doc.Local())
	doc := localDoc{Route: s.session.Route, Date: s.session.Date, Data: data}
	key := s.doc.LocalKey()
	s.mu.Unlock()
	if err != nil {
		log.Printf("[Local] Failed to encode %s: %v", key, err)
		return
	}
	if err := s.store.Put(ctx, key, doc); err != nil {
		log.Printf("[Local] Failed to store %s: %v", key, err)
	}
}

func (s *State) persistPending(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	pending := s.Pending()
	if pending == nil {
		pending = []PendingChange{}
	}
	if err := s.store.Put(ctx, localstore.KeyPendingChanges, pending); err != nil {
		log.Printf("[Local] Failed to store pending changes: %v", err)
	}
}

func (s *State) backup(ctx context.Context, change PendingChange, limit int) {
	if err := s.store.AppendBackup(ctx, change, limit); err != nil {
		log.Printf("[Local] Failed to append backup: %v", err)
	}
}
