package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/instant-chess/internal/chess"
	"github.com/park285/instant-chess/internal/obslog"
	"github.com/park285/instant-chess/internal/opponent"
	"github.com/park285/instant-chess/internal/rules"
	"github.com/park285/instant-chess/internal/session"
)

// State is the coordinator lifecycle. Connecting is entered once and left once.
type State int

const (
	Idle State = iota
	Connecting
	PollingRemote
	LocalOnly
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case PollingRemote:
		return "polling_remote"
	case LocalOnly:
		return "local_only"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNotStarted       = errors.New("game not started")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrGameOver         = errors.New("game is over")
	ErrOpponentThinking = errors.New("opponent move in progress")
	ErrIllegalMove      = errors.New("illegal move")
	ErrClosed           = errors.New("coordinator closed")
)

// Presenter receives every position mutation. Callbacks run while the
// coordinator lock is held and must not call back into the Coordinator.
type Presenter interface {
	OnPositionChanged(pos rules.Position)
	OnMoveHighlight(mv rules.Move)
	OnTurnChanged(myTurn bool)
}

// SessionPresenter is an optional Presenter extension told how the session came
// up, before the first frame is published.
type SessionPresenter interface {
	OnSessionStarted(local bool, opponent string)
}

type Connector interface {
	Connect(ctx context.Context, self, opponent session.Identity, gameRef string) session.Outcome
}

type Resolver interface {
	Resolve(ctx context.Context, pos rules.Position, kind opponent.Kind, d chess.Difficulty) (rules.Move, error)
}

type Config struct {
	Self     session.Identity
	Opponent opponent.Opponent
	// Standin plays a remote player's side when the session ends up offline.
	// Defaults to the random opponent.
	Standin    opponent.Opponent
	GameRef    string
	Difficulty chess.Difficulty

	PollInterval  time.Duration
	NotifyTimeout time.Duration
	// RematchDelay is how long a finished offline game stays on screen before the board resets.
	RematchDelay time.Duration
}

// Coordinator owns the position for one game and serializes every change to it.
type Coordinator struct {
	rules     rules.Rules
	connector Connector
	resolver  Resolver
	presenter Presenter
	cfg       Config
	log       *zap.Logger
	intn      func(n int) int

	mu         sync.Mutex
	state      State
	opp        opponent.Opponent
	color      rules.Color
	pos        rules.Position
	handle     *session.Handle
	difficulty chess.Difficulty
	version    uint64
	resolving  bool
	notifying  int
	closed     bool

	runCtx  context.Context
	cancel  context.CancelFunc
	ticker  *time.Ticker
	rematch *time.Timer
	wg      sync.WaitGroup
}

type Option func(*Coordinator)

// WithIntn sets the uniform source for the random fallback move.
func WithIntn(f func(n int) int) Option {
	return func(c *Coordinator) {
		if f != nil {
			c.intn = f
		}
	}
}

func New(rs rules.Rules, conn Connector, res Resolver, p Presenter, cfg Config, opts ...Option) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	if cfg.RematchDelay <= 0 {
		cfg.RematchDelay = 3 * time.Second
	}
	if !cfg.Standin.Machine() {
		cfg.Standin = opponent.Parse("random")
	}
	c := &Coordinator{
		rules:      rs,
		connector:  conn,
		resolver:   res,
		presenter:  p,
		cfg:        cfg,
		log:        obslog.Tag("ui"),
		intn:       rand.IntN,
		difficulty: cfg.Difficulty,
		opp:        cfg.Opponent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start connects the session and enters PollingRemote or LocalOnly. Only a
// remote player gets PollingRemote; offline, Config.Standin plays their side.
// When the opponent moves first, its reply is requested immediately.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != Idle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = Connecting
	c.runCtx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Unlock()

	out := c.connector.Connect(ctx, c.cfg.Self, c.cfg.Opponent.Identity, c.cfg.GameRef)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.color = out.Color
	pos, err := c.rules.FromNotation(out.Position)
	if err != nil {
		c.log.Warn("session_position_invalid", zap.String("fen", out.Position), zap.Error(err))
		pos = rules.StartPosition()
	}
	c.pos = pos
	c.version++
	switch {
	case out.Remote && out.Handle != nil && !c.opp.Machine():
		c.state = PollingRemote
		c.handle = out.Handle
		c.armTicker()
	default:
		if out.Remote && out.Handle != nil {
			// Machine replies never reach the authority.
			c.log.Warn("machine_opponent_session_ignored", zap.String("game", out.Handle.Game()))
		}
		c.state = LocalOnly
		if !c.opp.Machine() {
			c.log.Info("opponent_offline_standin",
				zap.String("player", c.opp.Identity.ID),
				zap.String("standin", c.cfg.Standin.Kind.String()),
			)
			c.opp = c.cfg.Standin
		}
	}
	c.log.Info("coordinator_started",
		zap.String("state", c.state.String()),
		zap.String("color", string(c.color)),
		zap.String("opponent", c.opp.Kind.String()),
	)
	if sp, ok := c.presenter.(SessionPresenter); ok {
		sp.OnSessionStarted(c.state == LocalOnly, label(c.opp))
	}
	c.publish(nil)
	c.maybeResolveLocked()
	c.maybeRematchLocked()
	return nil
}

// SubmitLocalMove applies the local player's move. Invalid calls return a typed
// error and leave the position untouched.
func (c *Coordinator) SubmitLocalMove(ctx context.Context, mv rules.Move) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return ErrClosed
	case c.state == Idle || c.state == Connecting:
		return ErrNotStarted
	case c.rules.IsGameOver(c.pos):
		return ErrGameOver
	case c.resolving:
		return ErrOpponentThinking
	case !c.myTurnLocked():
		return ErrNotYourTurn
	}

	legal, ok := rules.FindLegal(c.rules, c.pos, mv)
	if !ok {
		return fmt.Errorf("%w: %s", ErrIllegalMove, mv)
	}
	next, err := c.rules.ApplyMove(c.pos, legal)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	if c.handle != nil {
		c.notifyLocked(legal)
	}
	c.pos = next
	c.version++
	c.publish(&legal)
	c.maybeResolveLocked()
	c.maybeRematchLocked()
	return nil
}

// MyTurn is recomputed from the current position on every call.
func (c *Coordinator) MyTurn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.myTurnLocked()
}

// SetDifficulty takes effect from the next opponent reply.
func (c *Coordinator) SetDifficulty(d chess.Difficulty) {
	c.mu.Lock()
	c.difficulty = d
	c.mu.Unlock()
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Color() rules.Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.color
}

// Game is the authority game reference, empty while offline.
func (c *Coordinator) Game() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return ""
	}
	return c.handle.Game()
}

// Opponent is who actually plays the other side: the configured opponent, or
// its standin once the session went offline.
func (c *Coordinator) Opponent() opponent.Opponent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opp
}

func (c *Coordinator) Position() rules.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// Close stops reconciliation and abandons any pending opponent reply.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.ticker != nil {
		c.ticker.Stop()
	}
	c.stopRematchLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) myTurnLocked() bool {
	if !c.color.Valid() {
		return false
	}
	return c.rules.TurnColor(c.pos) == c.color
}

func (c *Coordinator) publish(mv *rules.Move) {
	if c.presenter == nil {
		return
	}
	c.presenter.OnPositionChanged(c.pos)
	if mv != nil {
		c.presenter.OnMoveHighlight(*mv)
	}
	c.presenter.OnTurnChanged(c.myTurnLocked())
}

// notifyLocked tells the authority about a local move without waiting for it.
func (c *Coordinator) notifyLocked(mv rules.Move) {
	h, ctx, timeout := c.handle, c.runCtx, c.cfg.NotifyTimeout
	c.notifying++
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		nctx, cancel := context.WithTimeout(ctx, timeout)
		err := h.NotifyMove(nctx, mv.String())
		cancel()
		if err != nil {
			c.log.Warn("move_notify_failed", zap.String("move", mv.String()), zap.String("game", h.Game()), zap.Error(err))
		}
		c.mu.Lock()
		c.notifying--
		c.mu.Unlock()
	}()
}

func label(o opponent.Opponent) string {
	if o.Identity.DisplayName != "" {
		return o.Identity.DisplayName
	}
	return o.Identity.ID
}
