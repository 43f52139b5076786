package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrInvalidNotation = errors.New("invalid position notation")
	ErrIllegalMove     = errors.New("illegal move")
)

// Color identifies chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) Valid() bool { return c == White || c == Black }

// ParseColor accepts the long and short spellings used on the wire.
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return "", false
	}
}

// Position is an immutable board snapshot. The zero value is the start position.
type Position struct {
	fen string
}

func StartPosition() Position { return Position{fen: StartFEN} }

func (p Position) String() string {
	if p.fen == "" {
		return StartFEN
	}
	return p.fen
}

// Rules is the move-legality collaborator. Positions only change through ApplyMove.
type Rules interface {
	LegalMoves(pos Position, from string) []Move
	ApplyMove(pos Position, mv Move) (Position, error)
	IsGameOver(pos Position) bool
	TurnColor(pos Position) Color
	ToNotation(pos Position) string
	FromNotation(notation string) (Position, error)
}

// Standard implements Rules for orthodox chess.
type Standard struct{}

func NewStandard() Standard { return Standard{} }

// LegalMoves enumerates legal moves; a non-empty from restricts them to that origin square.
func (Standard) LegalMoves(pos Position, from string) []Move {
	game, err := load(pos.String())
	if err != nil {
		return nil
	}
	from = strings.ToLower(strings.TrimSpace(from))
	valid := game.ValidMoves()
	out := make([]Move, 0, len(valid))
	for _, mv := range valid {
		if from != "" && mv.S1().String() != from {
			continue
		}
		parsed, perr := ParseMove(mv.String())
		if perr != nil {
			continue
		}
		parsed.Capture = mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant)
		out = append(out, parsed)
	}
	return out
}

func (s Standard) ApplyMove(pos Position, mv Move) (Position, error) {
	game, err := load(pos.String())
	if err != nil {
		return pos, err
	}
	if err := game.PushNotationMove(mv.String(), nchess.UCINotation{}, nil); err != nil {
		return pos, fmt.Errorf("%w: %s", ErrIllegalMove, mv)
	}
	return Position{fen: game.FEN()}, nil
}

func (Standard) IsGameOver(pos Position) bool {
	game, err := load(pos.String())
	if err != nil {
		return false
	}
	if game.Outcome() != nchess.NoOutcome {
		return true
	}
	return len(game.ValidMoves()) == 0
}

func (Standard) TurnColor(pos Position) Color {
	game, err := load(pos.String())
	if err != nil {
		return White
	}
	if game.Position().Turn() == nchess.Black {
		return Black
	}
	return White
}

func (Standard) ToNotation(pos Position) string { return pos.String() }

func (Standard) FromNotation(notation string) (Position, error) {
	notation = strings.TrimSpace(notation)
	if notation == "" || notation == "startpos" {
		return StartPosition(), nil
	}
	game, err := load(notation)
	if err != nil {
		return Position{}, err
	}
	return Position{fen: game.FEN()}, nil
}

func load(fen string) (*nchess.Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotation, err)
	}
	return nchess.NewGame(opt), nil
}
