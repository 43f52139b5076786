package server

import (
	"time"

	"github.com/park285/instant-chess/internal/rules"
)

// Status represents a game lifecycle state.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
	StatusDraw     Status = "DRAW"
)

// Game is the persisted state of one authority game.
type Game struct {
	ID        string      `json:"id"`
	FEN       string      `json:"fen"`
	MovesUCI  []string    `json:"moves_uci"`
	MovesSAN  []string    `json:"moves_san"`
	Turn      rules.Color `json:"turn"`
	Status    Status      `json:"status"`
	WhiteID   string      `json:"white_id"`
	WhiteName string      `json:"white_name"`
	BlackID   string      `json:"black_id"`
	BlackName string      `json:"black_name"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Winner    string      `json:"winner,omitempty"`
	Outcome   string      `json:"outcome,omitempty"`
}

// ColourOf returns the player's side, or "" when they are not in the game.
func (g *Game) ColourOf(playerID string) rules.Color {
	switch playerID {
	case g.WhiteID:
		return rules.White
	case g.BlackID:
		return rules.Black
	default:
		return ""
	}
}
