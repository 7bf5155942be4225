package realtime

import (
	"context"
	"log"

	"route-recon/internal/models"
)

// PresenceTracker announces this client and keeps the active user list.
type PresenceTracker struct {
	state  *State
	remote Remote
	bus    *Bus
}

func NewPresenceTracker(state *State, remote Remote, bus *Bus) *PresenceTracker {
	return &PresenceTracker{state: state, remote: remote, bus: bus}
}

// SendHeartbeat reports this client as active. A failure only marks the
// client offline.
func (p *PresenceTracker) SendHeartbeat(ctx context.Context) {
	sess := p.state.Session()
	resp, err := p.remote.Heartbeat(ctx, models.HeartbeatRequest{
		UserID:   sess.UserID,
		UserName: sess.UserName,
		Route:    sess.Route,
		Module:   p.state.Module(),
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[Presence] Heartbeat failed: %v", err)
		}
		p.state.setOnline(false)
		return
	}

	reconnected, first := p.state.setOnline(true)
	count := 0
	if resp != nil {
		count = resp.ActiveUsers
	}
	p.bus.Publish(Event{Kind: EventActiveUsers, Count: count})
	if reconnected {
		if !first {
			p.bus.notify(LevelSuccess, "Connection restored")
		}
		p.bus.Publish(Event{Kind: EventReconnected})
	}
}

// RefreshActiveUsers replaces the active user list and recomputes the
// lock view from the locks those users hold.
func (p *PresenceTracker) RefreshActiveUsers(ctx context.Context) {
	resp, err := p.remote.GetActiveUsers(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[Presence] Failed to load active users: %v", err)
		}
		return
	}
	if resp == nil {
		resp = &models.ActiveUsersResponse{}
	}
	p.state.setUsers(resp.Users)

	var locks []models.ItemLock
	for _, u := range resp.Users {
		locks = append(locks, u.LockedItems...)
	}
	p.state.ApplyLocks(locks)
	p.bus.Publish(Event{Kind: EventActiveUsers, Count: len(resp.Users)})
}
