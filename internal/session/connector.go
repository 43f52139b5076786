package session

import (
	"context"
	"crypto/rand"
	"math/big"

	"go.uber.org/zap"

	"github.com/park285/instant-chess/internal/authority"
	"github.com/park285/instant-chess/internal/obslog"
	"github.com/park285/instant-chess/internal/rules"
)

// Identity describes a player. It does not change once a session starts.
type Identity struct {
	ID          string
	DisplayName string
	AvatarRef   string
	Rating      int
}

// Authority is the remote side of a session.
type Authority interface {
	AppStart(ctx context.Context, playerID, name string) error
	GameState(ctx context.Context, playerID, gameRef string) (authority.Snapshot, error)
	StartGame(ctx context.Context, playerID, opponentID, gameRef string) (authority.Snapshot, error)
	SendMove(ctx context.Context, playerID, opponentID, move, gameRef string) error
}

// RetryBudget counts connection attempts. AttemptsMade only grows.
type RetryBudget struct {
	AttemptsMade int
	MaxAttempts  int
}

// Exhausted reports whether the attempts made exceed the budget.
func (b RetryBudget) Exhausted() bool { return b.AttemptsMade > b.MaxAttempts }

// Outcome is the result of Connect: Active when Remote is true, Offline otherwise.
// Handle is nil for offline outcomes.
type Outcome struct {
	Remote   bool
	Color    rules.Color
	Position string
	Handle   *Handle
	Budget   RetryBudget
}

// Handle binds an authority to one game and player pair.
type Handle struct {
	auth     Authority
	player   string
	opponent string
	game     string
}

func (h *Handle) Game() string { return h.game }

// Poll fetches the authority's current position for this game.
func (h *Handle) Poll(ctx context.Context) (authority.Snapshot, error) {
	return h.auth.GameState(ctx, h.player, h.game)
}

func (h *Handle) NotifyMove(ctx context.Context, move string) error {
	return h.auth.SendMove(ctx, h.player, h.opponent, move, h.game)
}

// ColorPicker draws the offline colour.
type ColorPicker func() rules.Color

// RandomColor flips a fair coin with crypto/rand.
func RandomColor() rules.Color {
	if n, _ := rand.Int(rand.Reader, big.NewInt(2)); n != nil && n.Int64() == 1 {
		return rules.Black
	}
	return rules.White
}

// Connector establishes a session with bounded retries, then degrades to offline.
type Connector struct {
	auth        Authority
	maxAttempts int
	pick        ColorPicker
	log         *zap.Logger
}

type Option func(*Connector)

func WithMaxAttempts(n int) Option {
	return func(c *Connector) {
		if n >= 0 {
			c.maxAttempts = n
		}
	}
}

func WithColorPicker(p ColorPicker) Option {
	return func(c *Connector) {
		if p != nil {
			c.pick = p
		}
	}
}

// NewConnector accepts a nil authority, which makes every Connect offline.
func NewConnector(auth Authority, opts ...Option) *Connector {
	c := &Connector{auth: auth, maxAttempts: 1, pick: RandomColor, log: obslog.Tag("server")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect runs AppStart, GameStateRequest and, when no game is found, GameStart.
// Every pass counts as one attempt, so maxAttempts+1 handshakes are tried before
// the outcome degrades to Offline with a random colour. A nil authority or a
// cancelled ctx goes offline without further calls.
func (c *Connector) Connect(ctx context.Context, self, opponent Identity, gameRef string) Outcome {
	budget := RetryBudget{MaxAttempts: c.maxAttempts}
	for c.auth != nil && ctx.Err() == nil {
		budget.AttemptsMade++
		snap, err := c.attempt(ctx, self, opponent, gameRef)
		if err == nil {
			return c.active(self, opponent, snap, budget)
		}
		c.log.Debug("session_attempt_failed", zap.Int("attempt", budget.AttemptsMade), zap.Error(err))
		if budget.Exhausted() {
			break
		}
	}
	color := c.pick()
	c.log.Info("session_offline", zap.String("color", string(color)), zap.Int("attempts", budget.AttemptsMade))
	return Outcome{Color: color, Position: rules.StartFEN, Budget: budget}
}

func (c *Connector) active(self, opponent Identity, snap authority.Snapshot, budget RetryBudget) Outcome {
	position := snap.FEN
	if position == "" {
		position = rules.StartFEN
	}
	c.log.Info("session_active",
		zap.String("game", snap.Game),
		zap.String("color", string(snap.Colour)),
		zap.Int("attempts", budget.AttemptsMade),
	)
	return Outcome{
		Remote:   true,
		Color:    snap.Colour,
		Position: position,
		Handle:   &Handle{auth: c.auth, player: self.ID, opponent: opponent.ID, game: snap.Game},
		Budget:   budget,
	}
}

func (c *Connector) attempt(ctx context.Context, self, opponent Identity, gameRef string) (authority.Snapshot, error) {
	if err := c.auth.AppStart(ctx, self.ID, self.DisplayName); err != nil {
		return authority.Snapshot{}, err
	}
	snap, err := c.auth.GameState(ctx, self.ID, gameRef)
	if err != nil {
		c.log.Debug("session_game_lookup_failed", zap.String("game", gameRef), zap.Error(err))
		if snap, err = c.auth.StartGame(ctx, self.ID, opponent.ID, gameRef); err != nil {
			return authority.Snapshot{}, err
		}
	}
	if snap.Game == "" {
		snap.Game = gameRef
	}
	return snap, nil
}
