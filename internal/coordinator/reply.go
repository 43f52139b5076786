package coordinator

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/instant-chess/internal/opponent"
	"github.com/park285/instant-chess/internal/rules"
)

// maybeResolveLocked starts the single opponent resolution when the machine
// opponent is to move and the game is still running.
func (c *Coordinator) maybeResolveLocked() {
	if c.closed || c.resolving || !c.opp.Machine() {
		return
	}
	if c.myTurnLocked() || c.rules.IsGameOver(c.pos) {
		return
	}
	c.resolving = true
	pos, ver, kind, d, ctx := c.pos, c.version, c.opp.Kind, c.difficulty, c.runCtx

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		mv, err := c.resolver.Resolve(ctx, pos, kind, d)
		if errors.Is(err, opponent.ErrNoUsableReply) && ctx.Err() == nil {
			c.log.Warn("engine_no_reply_fallback_random", zap.Error(err))
			mv, err = c.randomMove(pos)
		}
		c.applyReply(ver, mv, err)
	}()
}

func (c *Coordinator) randomMove(pos rules.Position) (rules.Move, error) {
	moves := c.rules.LegalMoves(pos, "")
	if len(moves) == 0 {
		return rules.Move{}, opponent.ErrNoLegalMoves
	}
	return moves[c.intn(len(moves))], nil
}

func (c *Coordinator) applyReply(ver uint64, mv rules.Move, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolving = false
	if c.closed {
		return
	}
	if err != nil {
		c.log.Error("opponent_reply_failed", zap.Error(err))
		return
	}
	if ver != c.version {
		c.log.Debug("opponent_reply_stale", zap.String("move", mv.String()))
		return
	}
	next, aerr := c.rules.ApplyMove(c.pos, mv)
	if aerr != nil {
		c.log.Error("opponent_reply_illegal", zap.String("move", mv.String()), zap.Error(aerr))
		return
	}
	c.pos = next
	c.version++
	c.log.Debug("opponent_reply_applied", zap.String("move", mv.String()))
	c.publish(&mv)
	c.maybeRematchLocked()
}

// maybeRematchLocked resets a finished offline game to the start position after
// RematchDelay, then lets the engine open if the local player is black.
func (c *Coordinator) maybeRematchLocked() {
	if c.closed || c.state != LocalOnly || !c.rules.IsGameOver(c.pos) {
		return
	}
	c.stopRematchLocked()
	ver := c.version
	c.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(c.cfg.RematchDelay, func() {
		defer c.wg.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.rematch == timer {
			c.rematch = nil
		}
		if c.closed || c.version != ver {
			return
		}
		c.pos = rules.StartPosition()
		c.version++
		c.log.Info("rematch_in_place", zap.String("color", string(c.color)))
		c.publish(nil)
		c.maybeResolveLocked()
	})
	c.rematch = timer
}

// stopRematchLocked cancels a pending reset; a timer that never fires releases its wg slot here.
func (c *Coordinator) stopRematchLocked() {
	if c.rematch != nil && c.rematch.Stop() {
		c.wg.Done()
	}
	c.rematch = nil
}
