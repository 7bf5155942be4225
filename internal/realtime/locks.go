package realtime

import (
	"context"
	"log"

	"route-recon/internal/models"
)

type LockResult int

const (
	LockGranted LockResult = iota
	LockDenied
	LockError
)

func (r LockResult) String() string {
	switch r {
	case LockGranted:
		return "granted"
	case LockDenied:
		return "denied"
	default:
		return "error"
	}
}

// LockOutcome is the result of focusing an item. HeldBy is set when the
// lock was denied, Err when the request failed.
type LockOutcome struct {
	Result LockResult
	HeldBy *models.LockHolder
	Err    error
}

// LockCoordinator ties item locks to focus. Locks are advisory: a failed
// request never blocks editing.
type LockCoordinator struct {
	state  *State
	remote Remote
	bus    *Bus
}

func NewLockCoordinator(state *State, remote Remote, bus *Bus) *LockCoordinator {
	return &LockCoordinator{state: state, remote: remote, bus: bus}
}

func (c *LockCoordinator) request(sess Session, code string) models.LockRequest {
	return models.LockRequest{
		Route:    sess.Route,
		ItemCode: lockCode(c.state.Module(), code),
		UserID:   sess.UserID,
		UserName: sess.UserName,
	}
}

// Focus moves focus to code and asks the server for its lock. Focus on
// another item is released first.
func (c *LockCoordinator) Focus(ctx context.Context, code string) LockOutcome {
	sess, epoch, previous, err := c.state.beginFocus(code)
	if err != nil {
		return LockOutcome{Result: LockError, Err: err}
	}
	if previous != "" {
		c.unlock(ctx, sess, previous)
	}

	resp, err := c.remote.LockItem(ctx, c.request(sess, code))
	if err != nil {
		log.Printf("[Locks] Lock request for %s failed: %v", code, err)
		c.bus.notify(LevelWarning, "Could not lock item "+code+", editing anyway")
		return LockOutcome{Result: LockError, Err: err}
	}

	if resp == nil || !resp.Success {
		holder := models.LockHolder{}
		if resp != nil && resp.HeldBy != nil {
			holder = *resp.HeldBy
		}
		c.state.denyLock(epoch, code, holder)
		name := holder.UserName
		if name == "" {
			name = "another user"
		}
		c.bus.notify(LevelWarning, "Item is being edited by "+name)
		return LockOutcome{Result: LockDenied, HeldBy: &holder}
	}

	if !c.state.grantLock(epoch, code) {
		// Focus moved on while the request was in flight.
		c.unlock(ctx, sess, code)
	}
	return LockOutcome{Result: LockGranted}
}

// Blur drops focus and releases the lock. The release is best effort.
func (c *LockCoordinator) Blur(ctx context.Context, code string) {
	sess, held := c.state.endFocus(code)
	if held {
		c.unlock(ctx, sess, code)
	}
}

// ReleaseAll drops focus and any held lock, e.g. before switching route.
func (c *LockCoordinator) ReleaseAll(ctx context.Context) {
	if code := c.state.Focused(); code != "" {
		c.Blur(ctx, code)
	}
}

func (c *LockCoordinator) unlock(ctx context.Context, sess Session, code string) {
	if err := c.remote.UnlockItem(ctx, c.request(sess, code)); err != nil && ctx.Err() == nil {
		log.Printf("[Locks] Unlock of %s failed: %v", code, err)
	}
}

// ApplyLocks recomputes the lock view from a server lock list.
func (c *LockCoordinator) ApplyLocks(locks []models.ItemLock) {
	c.state.ApplyLocks(locks)
}

// beginFocus records code as focused and returns the previously held item,
// if any, which the caller must release.
func (s *State) beginFocus(code string) (Session, uint64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := requireRoute(s.session); err != nil {
		return s.session, s.epoch, "", err
	}
	previous := ""
	if s.focused != "" && s.focused != code && s.held[s.focused] {
		previous = s.focused
		delete(s.held, previous)
	}
	s.focused = code
	return s.session, s.epoch, previous, nil
}

// grantLock marks code held if it is still focused in the same epoch.
func (s *State) grantLock(epoch uint64, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.focused != code {
		return false
	}
	s.held[code] = true
	delete(s.lockedBy, code)
	return true
}

func (s *State) denyLock(epoch uint64, code string, holder models.LockHolder) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.lockedBy[code] = holder
	if s.focused == code {
		s.focused = ""
	}
	s.mu.Unlock()
	s.bus.Publish(Event{Kind: EventLocks})
}

// endFocus clears focus on code and reports whether it was held.
func (s *State) endFocus(code string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focused == code {
		s.focused = ""
	}
	held := s.held[code]
	delete(s.held, code)
	return s.session, held
}
