package realtime

import (
	"context"
	"log"

	"route-recon/internal/models"
)

// Poller pulls the change feed of the open route and date and merges
// what other users saved.
type Poller struct {
	state  *State
	remote Remote
	bus    *Bus
}

func NewPoller(state *State, remote Remote, bus *Bus) *Poller {
	return &Poller{state: state, remote: remote, bus: bus}
}

// Poll fetches updates after the cursor. It does nothing while offline or
// with no route selected. A response for an older epoch is dropped.
func (p *Poller) Poll(ctx context.Context) {
	sess, epoch, cursor, ok := p.state.pollTarget()
	if !ok {
		return
	}

	data, err := p.remote.GetRealTimeData(ctx, models.RealTimeRequest{
		Route:     sess.Route,
		Date:      sess.Date,
		Timestamp: cursor,
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[Poll] Failed to fetch updates: %v", err)
		}
		return
	}
	if data == nil {
		return
	}
	if !p.state.current(epoch) {
		log.Printf("[Poll] Discarding response for %s %s", sess.Route, sess.Date)
		return
	}

	p.state.ApplyLocks(data.LockedItems)

	external, reload := false, false
	for _, u := range data.Updates {
		if u.UserID == sess.UserID || u.Route != sess.Route || u.Date != sess.Date {
			continue
		}
		if u.Type != p.state.updateType() {
			continue
		}
		external = true
		if u.Type == models.UpdateCash && !p.state.Dirty() {
			reload = true
			continue
		}
		if _, err := p.state.merge(ctx, epoch, u.Data); err != nil {
			log.Printf("[Poll] Failed to merge update %d: %v", u.Timestamp, err)
		}
	}
	p.state.advanceCursor(epoch, data.ServerTimestamp)

	if external {
		p.bus.notify(LevelInfo, "Data updated by another user")
	}
	if reload {
		if err := p.Load(ctx); err != nil {
			log.Printf("[Poll] Reload failed: %v", err)
		}
	}
}

// Load fetches the saved record of the open route and date and merges it.
// Dirty fields keep their local values. On failure the form is untouched.
func (p *Poller) Load(ctx context.Context) error {
	sess, epoch := p.state.partition()
	if err := requireRoute(sess); err != nil {
		return err
	}
	p.state.setStatus(StatusLoading)

	var (
		record interface{}
		err    error
	)
	switch p.state.Module() {
	case ModuleSales:
		record, err = p.remote.GetCashReconciliationData(ctx, sess.Route, sess.Date)
	default:
		record, err = p.remote.GetInventoryData(ctx, sess.Route, sess.Date)
	}
	if err != nil {
		p.state.setStatus(StatusError)
		p.bus.notify(LevelError, "Failed to load data: "+err.Error())
		return err
	}

	if _, err := p.state.merge(ctx, epoch, record); err != nil {
		p.state.setStatus(StatusError)
		return err
	}
	p.state.setStatus(StatusLoaded)
	return nil
}

func (s *State) updateType() string {
	return s.doc.UpdateType()
}
