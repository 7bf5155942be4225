package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"route-recon/internal/config"
	"route-recon/internal/models"
	"route-recon/internal/timeutil"
)

// Remote is the part of the exec endpoint client the engine uses.
type Remote interface {
	Call(ctx context.Context, action string, payload interface{}) (*models.RawEnvelope, error)
	Heartbeat(ctx context.Context, req models.HeartbeatRequest) (*models.HeartbeatResponse, error)
	GetActiveUsers(ctx context.Context) (*models.ActiveUsersResponse, error)
	GetRealTimeData(ctx context.Context, req models.RealTimeRequest) (*models.RealTimeData, error)
	LockItem(ctx context.Context, req models.LockRequest) (*models.LockResponse, error)
	UnlockItem(ctx context.Context, req models.LockRequest) error
	GetInventoryData(ctx context.Context, route, date string) (*models.InventoryRecord, error)
	GetCashReconciliationData(ctx context.Context, route, date string) (*models.CashRecord, error)
	CalculateSalesFromInventory(ctx context.Context, req models.SalesRequest) ([]models.SalesQuantity, error)
}

type Options struct {
	HeartbeatInterval time.Duration
	PollInterval      time.Duration
	AutoSaveDelay     time.Duration
	BackupLimit       int
}

func OptionsFrom(cfg config.ClientConfig) Options {
	return Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		PollInterval:      cfg.PollInterval,
		AutoSaveDelay:     cfg.AutoSaveDelay,
		BackupLimit:       cfg.BackupLimit,
	}
}

// Engine wires the client components around one State.
type Engine struct {
	State    *State
	Bus      *Bus
	Presence *PresenceTracker
	Locks    *LockCoordinator
	Poller   *Poller
	Saver    *Saver

	remote Remote
	opts   Options
}

// NewEngine restores the persisted document and queue. Without a stored
// date the session starts on today's business date.
func NewEngine(ctx context.Context, remote Remote, store LocalStore, doc Document, session Session, opts Options) (*Engine, error) {
	bus := NewBus()
	state := NewState(session, doc, store, bus)
	if err := state.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore local state: %w", err)
	}
	if sess := state.Session(); sess.Date == "" {
		state.SetPartition(ctx, sess.Route, timeutil.Today())
	}

	return &Engine{
		State:    state,
		Bus:      bus,
		Presence: NewPresenceTracker(state, remote, bus),
		Locks:    NewLockCoordinator(state, remote, bus),
		Poller:   NewPoller(state, remote, bus),
		Saver:    NewSaver(state, remote, bus, opts.BackupLimit),
		remote:   remote,
		opts:     opts,
	}, nil
}

// Run starts the heartbeat, poll and auto-save loops and blocks until ctx
// is done. The held lock is released on the way out.
func (e *Engine) Run(ctx context.Context) {
	events, unsubscribe := e.Saver.subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		e.Saver.autoSave(ctx, e.opts.AutoSaveDelay, events)
	}()
	go func() {
		defer wg.Done()
		e.every(ctx, e.opts.HeartbeatInterval, func() {
			e.Presence.SendHeartbeat(ctx)
			e.Presence.RefreshActiveUsers(ctx)
		})
	}()
	go func() {
		defer wg.Done()
		e.every(ctx, e.opts.PollInterval, func() { e.Poller.Poll(ctx) })
	}()
	wg.Wait()

	release, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e.Locks.ReleaseAll(release)
}

// every runs fn now and then on each tick until ctx is done.
func (e *Engine) every(ctx context.Context, interval time.Duration, fn func()) {
	fn()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (e *Engine) SelectRoute(ctx context.Context, route string) error {
	return e.switchTo(ctx, route, e.State.Session().Date)
}

func (e *Engine) SelectDate(ctx context.Context, date string) error {
	if !timeutil.ValidDate(date) {
		return &ValidationError{Field: "date", Message: "Please select a date!"}
	}
	return e.switchTo(ctx, e.State.Session().Route, date)
}

// Open moves to route and date, keeping the current value of either one
// left empty. Unsaved edits of the open partition are saved first, and an
// unchanged partition is reloaded.
func (e *Engine) Open(ctx context.Context, route, date string) error {
	cur := e.State.Session()
	if route == "" {
		route = cur.Route
	}
	if date == "" {
		date = cur.Date
	}
	if !timeutil.ValidDate(date) {
		return &ValidationError{Field: "date", Message: "Please select a date!"}
	}
	if route == "" {
		// nothing can be dirty without a route
		e.State.SetPartition(ctx, route, date)
		return nil
	}
	return e.switchTo(ctx, route, date)
}

// switchTo saves unsaved edits of the open partition, then opens route
// and date and loads what the server has.
func (e *Engine) switchTo(ctx context.Context, route, date string) error {
	if route == "" {
		return &ValidationError{Field: "route", Message: "Please select a route first!"}
	}
	if cur := e.State.Session(); cur.Route == route && cur.Date == date {
		return e.Poller.Load(ctx)
	}
	e.Locks.ReleaseAll(ctx)
	if e.State.Dirty() && requireRoute(e.State.Session()) == nil {
		if err := e.Saver.Save(ctx); err != nil {
			log.Printf("[Engine] Save before switching failed: %v", err)
		}
	}
	if !e.State.SetPartition(ctx, route, date) {
		return nil
	}
	if e.State.Online() {
		e.Presence.SendHeartbeat(ctx)
	}
	return e.Poller.Load(ctx)
}

func (e *Engine) Focus(ctx context.Context, code string) LockOutcome {
	return e.Locks.Focus(ctx, code)
}

func (e *Engine) Blur(ctx context.Context, code string) {
	e.Locks.Blur(ctx, code)
}

func (e *Engine) Set(ctx context.Context, code, field, value string) error {
	return e.State.Edit(ctx, code, field, value)
}

func (e *Engine) Save(ctx context.Context) error {
	return e.Saver.Save(ctx)
}

func (e *Engine) Load(ctx context.Context) error {
	return e.Poller.Load(ctx)
}

var errWrongModule = errors.New("not available in this module")

// LoadPrevious copies the previous day's physical counts into today's
// system counts. It returns how many rows were filled.
func (e *Engine) LoadPrevious(ctx context.Context) (int, error) {
	sess, epoch := e.State.partition()
	if err := requireRoute(sess); err != nil {
		return 0, err
	}
	if e.State.Module() != ModuleInventory {
		return 0, errWrongModule
	}
	prev, err := timeutil.PreviousDay(sess.Date)
	if err != nil {
		return 0, err
	}

	e.State.setStatus(StatusLoading)
	rec, err := e.remote.GetInventoryData(ctx, sess.Route, prev)
	if err != nil {
		e.State.setStatus(StatusError)
		return 0, err
	}
	if rec == nil || len(rec.Items) == 0 {
		e.State.setStatus(StatusLoaded)
		e.Bus.notify(LevelWarning, "No data found for "+prev)
		return 0, nil
	}

	n := 0
	applied := e.State.mutateAt(ctx, epoch, func(doc Document, seq uint64) {
		if inv, ok := doc.(*InventoryDoc); ok {
			n = inv.LoadPrevious(rec.Items, seq)
		}
	})
	if !applied {
		log.Printf("[Engine] Discarding previous day for %s %s", sess.Route, sess.Date)
		return 0, nil
	}
	e.State.setStatus(StatusLoaded)
	e.Bus.Publish(Event{Kind: EventEdited})
	e.Bus.notify(LevelSuccess, fmt.Sprintf("Loaded %d item(s) from %s", n, prev))
	return n, nil
}

// FetchFromInventory replaces sales quantities with what the inventory
// counts of today and yesterday imply was sold.
func (e *Engine) FetchFromInventory(ctx context.Context) (int, error) {
	sess, epoch := e.State.partition()
	if err := requireRoute(sess); err != nil {
		return 0, err
	}
	if e.State.Module() != ModuleSales {
		return 0, errWrongModule
	}
	prev, err := timeutil.PreviousDay(sess.Date)
	if err != nil {
		return 0, err
	}

	e.State.setStatus(StatusCalculating)
	sales, err := e.remote.CalculateSalesFromInventory(ctx, models.SalesRequest{
		Route:        sess.Route,
		CurrentDate:  sess.Date,
		PreviousDate: prev,
	})
	if err != nil {
		e.State.setStatus(StatusError)
		return 0, err
	}

	n := 0
	applied := e.State.mutateAt(ctx, epoch, func(doc Document, seq uint64) {
		if cash, ok := doc.(*CashDoc); ok {
			n = cash.ApplySales(sales, seq)
		}
	})
	if !applied {
		log.Printf("[Engine] Discarding sales for %s %s", sess.Route, sess.Date)
		return 0, nil
	}
	e.State.setStatus(StatusLoaded)
	e.Bus.Publish(Event{Kind: EventEdited})
	return n, nil
}

// Clear empties the inventory form without saving.
func (e *Engine) Clear(ctx context.Context) error {
	if e.State.Module() != ModuleInventory {
		return errWrongModule
	}
	e.State.mutate(ctx, func(doc Document, _ uint64) {
		doc.(*InventoryDoc).Clear()
	})
	return nil
}

func (e *Engine) Summary() string {
	var out string
	e.State.View(func(doc Document) {
		if inv, ok := doc.(*InventoryDoc); ok {
			inv.AutoCalculate()
		}
		out = doc.Summary()
	})
	return out
}

func (e *Engine) Status() SyncStatus {
	return e.State.Status()
}

func (e *Engine) Users() []models.ActiveUser {
	return e.State.Users()
}

// Info is a point-in-time view of the client for display.
type Info struct {
	Session Session
	Status  SyncStatus
	Online  bool
	Pending int
	Focused string
	Cursor  int64
}

func (e *Engine) Info() Info {
	s := e.State
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Session: s.session,
		Status:  s.status,
		Online:  s.online,
		Pending: len(s.pending),
		Focused: s.focused,
		Cursor:  s.cursor,
	}
}
