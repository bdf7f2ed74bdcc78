package client

import (
	"context"
	"time"

	"go.uber.org/zap"
	"notify_poller/internal/listener"
	"notify_poller/internal/model"
)

// checkNewNotifications is one poll cycle: fetch the unread set, fan out
// what was created after the checkpoint and move the checkpoint to the time
// the cycle started. The first cycle without a checkpoint only primes it.
// A failed fetch leaves the checkpoint where it was. Results of a cycle
// that outlived a Reset or user switch are dropped.
func (c *Client) checkNewNotifications(ctx context.Context, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	now := c.now()
	ctx, snap := c.begin(ctx)
	if snap.generation != gen {
		c.metrics.cycle(resultDiscarded)
		return
	}
	log := c.log.With(zap.String("user_id", snap.userID))

	last, primed, err := c.checkpoints.Load(ctx)
	if err != nil {
		log.Warn("checkpoint load failed, treating as absent", zap.Error(err))
		primed = false
	}

	fetched, err := c.store.ListUnread(ctx)
	if err != nil {
		log.Error("poll fetch failed", zap.Error(err))
		c.metrics.cycle(resultFailed)
		return
	}

	fresh, ok := c.diff(fetched, snap, last, primed)
	if !ok {
		c.metrics.cycle(resultDiscarded)
		return
	}

	for _, n := range fresh {
		if !c.isGeneration(gen) {
			c.metrics.cycle(resultDiscarded)
			return
		}
		c.registry.Broadcast(listener.Event{Kind: listener.EventCreated, ID: n.ID, Notification: n})
		c.metrics.deliver()
		c.notify(ctx, n)
	}

	if !c.saveCheckpoint(ctx, gen, now) {
		c.metrics.cycle(resultDiscarded)
		return
	}

	if primed {
		c.metrics.cycle(resultDelivered)
		log.Debug("poll cycle done", zap.Int("fetched", len(fetched)), zap.Int("new", len(fresh)))
	} else {
		c.metrics.cycle(resultPrimed)
		log.Debug("poll cycle primed checkpoint", zap.Int("fetched", len(fetched)), zap.Time("checkpoint", now))
	}
}

// diff merges fetched into the central state and returns, in server order,
// the unread notifications created after last that this client has never
// delivered. Every visible fetched id is remembered, so a later cycle
// cannot deliver it again even if the clock moves backwards.
func (c *Client) diff(fetched []model.Notification, snap snapshot, last time.Time, primed bool) ([]model.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(snap) {
		return nil, false
	}

	var fresh []model.Notification
	for _, n := range fetched {
		view, visible := c.mergeLocked(n, snap)
		if !visible || view.IsRead {
			continue
		}
		_, seen := c.delivered[n.ID]
		c.delivered[n.ID] = struct{}{}
		if !primed || seen || !n.CreatedAt.After(last) {
			continue
		}
		fresh = append(fresh, view)
	}
	return fresh, true
}

func (c *Client) notify(ctx context.Context, n model.Notification) {
	if c.notifier == nil {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			c.log.Warn("notifier panicked", zap.Any("error", recovered), zap.String("notification_id", n.ID))
		}
	}()
	c.notifier.Attempt(ctx, n)
}

func (c *Client) isGeneration(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

func (c *Client) saveCheckpoint(ctx context.Context, gen uint64, at time.Time) bool {
	c.cpMu.Lock()
	defer c.cpMu.Unlock()
	if !c.isGeneration(gen) {
		return false
	}
	if err := c.checkpoints.Save(ctx, at); err != nil {
		c.log.Error("checkpoint save failed", zap.Time("checkpoint", at), zap.Error(err))
	}
	return true
}
