package rules

import (
	"fmt"
	"strings"
)

// Move is a from/to pair in coordinate notation. Capture is informational only.
type Move struct {
	From      string
	To        string
	Promotion string
	Capture   bool
}

// ParseMove decodes UCI coordinate notation such as e2e4 or e7e8q.
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrIllegalMove, s)
	}
	mv := Move{From: s[0:2], To: s[2:4]}
	if !validSquare(mv.From) || !validSquare(mv.To) {
		return Move{}, fmt.Errorf("%w: %q", ErrIllegalMove, s)
	}
	if len(s) == 5 {
		if !strings.ContainsRune("qrbn", rune(s[4])) {
			return Move{}, fmt.Errorf("%w: bad promotion in %q", ErrIllegalMove, s)
		}
		mv.Promotion = s[4:]
	}
	return mv, nil
}

func (m Move) String() string { return m.From + m.To + m.Promotion }

// Same compares moves ignoring the presentation-only capture flag.
func (m Move) Same(o Move) bool {
	return m.From == o.From && m.To == o.To && m.Promotion == o.Promotion
}

func validSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

// FindLegal returns the legal move matching mv, carrying its capture flag.
func FindLegal(r Rules, pos Position, mv Move) (Move, bool) {
	for _, legal := range r.LegalMoves(pos, mv.From) {
		if legal.Same(mv) {
			return legal, true
		}
	}
	return Move{}, false
}
