package opponent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/instant-chess/internal/chess"
	"github.com/park285/instant-chess/internal/obslog"
	"github.com/park285/instant-chess/internal/rules"
	"github.com/park285/instant-chess/internal/session"
)

// Kind is who produces the opponent's moves.
type Kind int

const (
	Remote Kind = iota
	LocalEngine
	LocalRandom
)

func (k Kind) String() string {
	switch k {
	case Remote:
		return "remote"
	case LocalEngine:
		return "engine"
	case LocalRandom:
		return "random"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Opponent pairs a Kind with the identity sent to the authority.
type Opponent struct {
	Kind     Kind
	Identity session.Identity
}

// Machine reports whether moves are produced locally.
func (o Opponent) Machine() bool { return o.Kind != Remote }

// Parse maps a config value to an opponent: "stockfish", "random", or a remote player id.
func Parse(v string) Opponent {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "stockfish", "engine":
		return Opponent{Kind: LocalEngine, Identity: session.Identity{ID: "stockfish", DisplayName: "Stockfish"}}
	case "random":
		return Opponent{Kind: LocalRandom, Identity: session.Identity{ID: "random", DisplayName: "Random"}}
	default:
		id := strings.TrimSpace(v)
		return Opponent{Kind: Remote, Identity: session.Identity{ID: id, DisplayName: id}}
	}
}

var (
	ErrNoUsableReply  = errors.New("engine gave no usable reply")
	ErrRemoteOpponent = errors.New("remote opponents are not resolved locally")
	ErrNoLegalMoves   = errors.New("no legal moves")
)

// EngineAdapter returns the engine's best-move token for a position.
type EngineAdapter interface {
	RequestBestMove(ctx context.Context, notation string, cfg chess.EngineConfig) (string, error)
}

// Resolver picks the opponent's next move. It keeps no per-game state.
type Resolver struct {
	rules  rules.Rules
	engine EngineAdapter
	intn   func(n int) int
	log    *zap.Logger
}

type Option func(*Resolver)

// WithIntn replaces the uniform source used for random moves.
func WithIntn(f func(n int) int) Option {
	return func(r *Resolver) {
		if f != nil {
			r.intn = f
		}
	}
}

// NewResolver accepts a nil engine; LocalEngine requests then fail with ErrNoUsableReply.
func NewResolver(rs rules.Rules, engine EngineAdapter, opts ...Option) *Resolver {
	r := &Resolver{rules: rs, engine: engine, intn: rand.IntN, log: obslog.Tag("stockfish")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a legal move for the side to move, or an error. Thermal
// always plays a uniform random legal move without consulting the engine.
func (r *Resolver) Resolve(ctx context.Context, pos rules.Position, opp Kind, d chess.Difficulty) (rules.Move, error) {
	if d.IsThermal() {
		return r.random(pos)
	}
	switch opp {
	case LocalEngine:
		return r.fromEngine(ctx, pos, d)
	case LocalRandom:
		return r.random(pos)
	case Remote:
		return rules.Move{}, ErrRemoteOpponent
	default:
		return rules.Move{}, fmt.Errorf("unknown opponent kind %v", opp)
	}
}

func (r *Resolver) random(pos rules.Position) (rules.Move, error) {
	moves := r.rules.LegalMoves(pos, "")
	if len(moves) == 0 {
		return rules.Move{}, ErrNoLegalMoves
	}
	return moves[r.intn(len(moves))], nil
}

func (r *Resolver) fromEngine(ctx context.Context, pos rules.Position, d chess.Difficulty) (rules.Move, error) {
	if r.engine == nil {
		return rules.Move{}, fmt.Errorf("%w: no engine configured", ErrNoUsableReply)
	}
	cfg := chess.MapDifficulty(d.Level())
	notation := r.rules.ToNotation(pos)
	token, err := r.engine.RequestBestMove(ctx, notation, cfg)
	if err != nil {
		return rules.Move{}, fmt.Errorf("%w: %v", ErrNoUsableReply, err)
	}
	mv, err := rules.ParseMove(token)
	if err != nil {
		return rules.Move{}, fmt.Errorf("%w: token %q", ErrNoUsableReply, token)
	}
	legal, ok := rules.FindLegal(r.rules, pos, mv)
	if !ok {
		return rules.Move{}, fmt.Errorf("%w: %s is not legal", ErrNoUsableReply, mv)
	}
	r.log.Debug("engine_best_move",
		zap.String("move", legal.String()),
		zap.Int("depth", cfg.SearchDepth),
		zap.Int("skill", cfg.SkillLevel),
	)
	return legal, nil
}
