package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/park285/instant-chess/internal/rules"
)

// armTicker starts the reconciliation loop against the authority.
func (c *Coordinator) armTicker() {
	c.ticker = time.NewTicker(c.cfg.PollInterval)
	ticks, ctx := c.ticker.C, c.runCtx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				c.reconcile(ctx)
			}
		}
	}()
}

// reconcile replaces the local position with the authority snapshot. A failed
// fetch skips the tick; a snapshot taken before a local change, or while a
// local move is still being sent, is discarded.
func (c *Coordinator) reconcile(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.handle == nil || c.notifying > 0 {
		c.mu.Unlock()
		return
	}
	h, ver := c.handle, c.version
	c.mu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, c.cfg.PollInterval)
	snap, err := h.Poll(pctx)
	cancel()
	if err != nil {
		c.log.Debug("reconcile_skipped", zap.Error(err))
		return
	}
	remote, err := c.rules.FromNotation(snap.FEN)
	if err != nil {
		c.log.Debug("reconcile_bad_position", zap.String("fen", snap.FEN), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if ver != c.version || c.notifying > 0 {
		c.log.Debug("reconcile_stale_snapshot")
		return
	}
	if c.rules.ToNotation(remote) == c.rules.ToNotation(c.pos) {
		return
	}
	mv, found := c.moveBetween(c.pos, remote)
	c.pos = remote
	c.version++
	if found {
		c.publish(&mv)
	} else {
		c.publish(nil)
	}
}

// moveBetween finds the single legal move leading from prev to next, for highlighting.
func (c *Coordinator) moveBetween(prev, next rules.Position) (rules.Move, bool) {
	want := c.rules.ToNotation(next)
	for _, mv := range c.rules.LegalMoves(prev, "") {
		p, err := c.rules.ApplyMove(prev, mv)
		if err == nil && c.rules.ToNotation(p) == want {
			return mv, true
		}
	}
	return rules.Move{}, false
}
