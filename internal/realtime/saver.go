package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"route-recon/internal/models"
	"route-recon/internal/remote"
)

// Saver writes the open document to the server and queues what could not
// be delivered.
type Saver struct {
	state       *State
	remote      Remote
	bus         *Bus
	backupLimit int

	saving  atomic.Bool
	syncing atomic.Bool
}

func NewSaver(state *State, remote Remote, bus *Bus, backupLimit int) *Saver {
	return &Saver{state: state, remote: remote, bus: bus, backupLimit: backupLimit}
}

func saveAction(module string) string {
	if module == ModuleSales {
		return models.ActionSaveCash
	}
	return models.ActionSaveInventory
}

// Save sends a snapshot of the open document. A network failure queues
// the snapshot and is not returned as an error; only one save runs at a time.
func (s *Saver) Save(ctx context.Context) error {
	if !s.saving.CompareAndSwap(false, true) {
		return ErrSaveInProgress
	}
	defer s.saving.Store(false)

	change, seq, epoch, err := s.state.snapshot()
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.bus.notify(LevelWarning, verr.Message)
		}
		return err
	}

	s.state.setStatus(StatusSaving)
	if err := s.send(ctx, change); err != nil {
		var netErr *remote.NetworkError
		if errors.As(err, &netErr) {
			log.Printf("[Save] Queued %s %s %s: %v", change.Module, change.Route, change.Date, err)
			s.state.enqueue(ctx, change)
			s.state.setOnline(false)
			s.state.setStatus(StatusOfflinePending)
			s.bus.notify(LevelWarning, "Saved locally, will sync when online")
			return nil
		}
		s.state.setStatus(StatusError)
		s.bus.notify(LevelError, "Save failed: "+err.Error())
		return err
	}

	s.state.markSaved(ctx, epoch, seq)
	s.state.dropPending(ctx, change)
	s.state.setStatus(StatusSaved)
	s.state.backup(ctx, change, s.backupLimit)
	s.bus.notify(LevelSuccess, "Data saved successfully")
	return nil
}

func (s *Saver) send(ctx context.Context, change PendingChange) error {
	_, err := s.remote.Call(ctx, saveAction(change.Module), change.Payload)
	return err
}

// SyncPending replays queued saves in order. A replayed entry is removed
// on success; the first failure stops the replay.
func (s *Saver) SyncPending(ctx context.Context) error {
	if !s.syncing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.syncing.Store(false)

	pending := s.state.Pending()
	if len(pending) == 0 {
		return nil
	}
	s.state.setStatus(StatusReconnecting)

	synced := 0
	for _, change := range pending {
		if err := s.send(ctx, change); err != nil {
			log.Printf("[Sync] Replay of %s %s %s failed: %v", change.Module, change.Route, change.Date, err)
			var netErr *remote.NetworkError
			if errors.As(err, &netErr) {
				s.state.setOnline(false)
				s.state.setStatus(StatusOfflinePending)
				return err
			}
			s.state.setStatus(StatusError)
			return err
		}
		s.state.dropPending(ctx, change)
		s.state.markReplayed(ctx, change)
		synced++
	}
	s.state.setStatus(StatusSaved)
	s.bus.notify(LevelSuccess, fmt.Sprintf("Synced %d pending change(s)", synced))
	return nil
}

// AutoSave saves once the document has been quiet for delay after an edit,
// and replays the queue whenever the client comes back online.
func (s *Saver) AutoSave(ctx context.Context, delay time.Duration) {
	events, unsubscribe := s.subscribe()
	defer unsubscribe()
	s.autoSave(ctx, delay, events)
}

func (s *Saver) subscribe() (<-chan Event, func()) {
	return s.bus.Subscribe(32, EventEdited, EventReconnected)
}

func (s *Saver) autoSave(ctx context.Context, delay time.Duration, events <-chan Event) {
	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()
	rearm := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(delay)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Kind {
			case EventEdited:
				rearm()
			case EventReconnected:
				if err := s.SyncPending(ctx); err != nil && ctx.Err() == nil {
					log.Printf("[Sync] %v", err)
				}
				// Edits made while offline were never attempted.
				if s.state.Dirty() {
					rearm()
				}
			}
		case <-timer.C:
			if !s.state.Dirty() || !s.state.Online() {
				continue
			}
			if err := s.Save(ctx); err != nil && !errors.Is(err, ErrSaveInProgress) {
				log.Printf("[AutoSave] %v", err)
			}
		}
	}
}

// markReplayed clears dirty marks covered by a replayed snapshot taken in
// this run. Edits made after the snapshot stay dirty.
func (s *State) markReplayed(ctx context.Context, change PendingChange) {
	if change.seq == 0 {
		return
	}
	s.markSaved(ctx, change.epoch, change.seq)
}
