package chesspresenter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/instant-chess/internal/msgcat"
	"github.com/park285/instant-chess/internal/rules"
)

// Formatter renders positions and session events into terminal text blocks.
type Formatter struct {
	cat *msgcat.Catalog
}

func NewFormatter(cat *msgcat.Catalog) *Formatter {
	return &Formatter{cat: cat}
}

// Board draws the position from the perspective side, with rank labels on the left.
func (f *Formatter) Board(pos rules.Position, perspective rules.Color) string {
	g := placement(pos)
	header := f.cat.Text("board.header", nil)

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	for i := 0; i < 8; i++ {
		r := i
		if perspective == rules.Black {
			r = 7 - i
		}
		sb.WriteString(fmt.Sprintf("%d  ", 8-r))
		for j := 0; j < 8; j++ {
			file := j
			if perspective == rules.Black {
				file = 7 - j
			}
			sb.WriteByte(' ')
			sb.WriteByte(g[r][file])
		}
		sb.WriteString("\n")
	}
	if perspective == rules.Black {
		sb.WriteString(flipHeader(header))
	} else {
		sb.WriteString(header)
	}
	sb.WriteString("\n")
	return sb.String()
}

func flipHeader(header string) string {
	trimmed := strings.TrimLeft(header, " ")
	pad := header[:len(header)-len(trimmed)]
	files := strings.Fields(trimmed)
	for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
		files[i], files[j] = files[j], files[i]
	}
	return pad + strings.Join(files, " ")
}

func (f *Formatter) LastMove(mv rules.Move) string {
	return f.cat.Text("board.last_move", map[string]any{"From": mv.From, "To": mv.To, "Capture": mv.Capture})
}

func (f *Formatter) Material(pos rules.Position) string {
	white, black := material(pos)
	return f.cat.Text("board.material", map[string]any{"White": white, "Black": black})
}

// Turn describes who moves next; over wins over everything else.
func (f *Formatter) Turn(myTurn, over bool, toMove rules.Color, opponent string) string {
	switch {
	case over:
		return f.cat.Text("board.turn.over", nil)
	case myTurn:
		return f.cat.Text("board.turn.mine", map[string]any{"Color": string(toMove)})
	default:
		return f.cat.Text("board.turn.theirs", map[string]any{"Opponent": opponent, "Color": string(toMove)})
	}
}

func (f *Formatter) Rematch(delay time.Duration) string {
	return f.cat.Text("board.turn.rematch", map[string]any{"Delay": delay.String()})
}

// Session reports how the connection attempt ended; an empty game means offline.
func (f *Formatter) Session(color rules.Color, authority, game, opponent string) string {
	if game != "" {
		return f.cat.Text("session.online", map[string]any{"Authority": authority, "Color": string(color), "Game": game})
	}
	return f.cat.Text("session.offline", map[string]any{"Color": string(color), "Opponent": opponent})
}

func (f *Formatter) DifficultySet(d fmt.Stringer) string {
	return f.cat.Text("input.difficulty", map[string]any{"Difficulty": d.String()})
}

func (f *Formatter) Rejected(move string, err error) string {
	reason := "rejected"
	if err != nil {
		reason = err.Error()
		if u := errors.Unwrap(err); u != nil {
			reason = u.Error()
		}
	}
	return f.cat.Text("input.rejected", map[string]any{"Move": move, "Reason": reason})
}

func (f *Formatter) Unknown(input string) string {
	return f.cat.Text("input.unknown", map[string]any{"Input": input})
}

// Probe formats one authority round trip for the probe command.
func (f *Formatter) Probe(kind string, colour rules.Color, fen string, err error) string {
	if err != nil {
		return f.cat.Text("probe.failed", map[string]any{"Kind": kind, "Error": err.Error()})
	}
	return f.cat.Text("probe.ok", map[string]any{"Kind": kind, "Colour": string(colour), "FEN": fen})
}
