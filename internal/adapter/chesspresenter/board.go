package chesspresenter

import (
	"strings"

	"github.com/park285/instant-chess/internal/rules"
)

const (
	emptySquare          = '.'
	materialScoreNeutral = 39
)

// grid is the piece placement of a position, rank 8 first, file a first.
type grid [8][8]byte

func placement(pos rules.Position) grid {
	var g grid
	for r := range g {
		for f := range g[r] {
			g[r][f] = emptySquare
		}
	}
	field, _, _ := strings.Cut(pos.String(), " ")
	for r, row := range strings.Split(field, "/") {
		if r >= 8 {
			break
		}
		f := 0
		for i := 0; i < len(row) && f < 8; i++ {
			ch := row[i]
			if ch >= '1' && ch <= '8' {
				f += int(ch - '0')
				continue
			}
			g[r][f] = ch
			f++
		}
	}
	return g
}

func pieceValue(ch byte) int {
	switch ch | 0x20 {
	case 'q':
		return 9
	case 'r':
		return 5
	case 'b', 'n':
		return 3
	case 'p':
		return 1
	default:
		return 0
	}
}

// material returns what each side has captured, in pawn units.
func material(pos rules.Position) (white, black int) {
	var onWhite, onBlack int
	for _, row := range placement(pos) {
		for _, ch := range row {
			if ch == emptySquare {
				continue
			}
			if ch >= 'A' && ch <= 'Z' {
				onWhite += pieceValue(ch)
			} else {
				onBlack += pieceValue(ch)
			}
		}
	}
	return max(materialScoreNeutral-onBlack, 0), max(materialScoreNeutral-onWhite, 0)
}
