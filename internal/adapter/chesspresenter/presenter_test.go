package chesspresenter

import (
	"strings"
	"testing"
	"time"

	"github.com/park285/instant-chess/internal/msgcat"
	"github.com/park285/instant-chess/internal/rules"
)

func newFormatter(t *testing.T) *Formatter {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	return NewFormatter(cat)
}

func TestBoardOrientation(t *testing.T) {
	f := newFormatter(t)
	white := strings.Split(f.Board(rules.StartPosition(), rules.White), "\n")
	if white[0] != "    a b c d e f g h" {
		t.Fatalf("header = %q", white[0])
	}
	if white[1] != "8   r n b q k b n r" {
		t.Fatalf("rank 8 = %q", white[1])
	}
	if white[8] != "1   R N B Q K B N R" {
		t.Fatalf("rank 1 = %q", white[8])
	}

	black := strings.Split(f.Board(rules.StartPosition(), rules.Black), "\n")
	if black[0] != "    h g f e d c b a" {
		t.Fatalf("flipped header = %q", black[0])
	}
	if black[1] != "1   R N B K Q B N R" {
		t.Fatalf("flipped first rank = %q", black[1])
	}
}

func TestMaterial(t *testing.T) {
	f := newFormatter(t)
	if got := f.Material(rules.StartPosition()); got != "material: even" {
		t.Fatalf("start material = %q", got)
	}
	rs := rules.NewStandard()
	pos := rules.StartPosition()
	for _, s := range []string{"e2e4", "d7d5", "e4d5"} {
		mv, _ := rules.ParseMove(s)
		next, err := rs.ApplyMove(pos, mv)
		if err != nil {
			t.Fatalf("apply %s: %v", s, err)
		}
		pos = next
	}
	if got := f.Material(pos); got != "material: white +1" {
		t.Fatalf("material = %q", got)
	}
}

func TestPresenterFrame(t *testing.T) {
	var out []string
	p := NewPresenter(newFormatter(t), rules.NewStandard(), "stockfish", func(m string) error {
		out = append(out, m)
		return nil
	}, WithRematchNotice(3*time.Second))

	rs := rules.NewStandard()
	next, _ := rs.ApplyMove(rules.StartPosition(), rules.Move{From: "e2", To: "e4"})
	p.OnPositionChanged(next)
	p.OnMoveHighlight(rules.Move{From: "e2", To: "e4"})
	p.OnTurnChanged(false)

	if len(out) != 1 {
		t.Fatalf("frames = %d", len(out))
	}
	frame := out[0]
	for _, want := range []string{"last move: e2 -> e4", "Waiting for stockfish (black to move)", "4   . . . . P . . ."} {
		if !strings.Contains(frame, want) {
			t.Fatalf("frame missing %q:\n%s", want, frame)
		}
	}

	mate, err := rs.FromNotation("rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	if err != nil {
		t.Fatalf("FromNotation: %v", err)
	}
	p.OnPositionChanged(mate)
	p.OnTurnChanged(false)
	if last := out[len(out)-1]; !strings.Contains(last, "Game over. New game starting in 3s.") {
		t.Fatalf("over frame:\n%s", last)
	}
}

func TestPresenterRemoteSessionHasNoRematchNotice(t *testing.T) {
	var out []string
	p := NewPresenter(newFormatter(t), rules.NewStandard(), "p2", func(m string) error {
		out = append(out, m)
		return nil
	}, WithRematchNotice(3*time.Second))

	mate, err := rules.NewStandard().FromNotation("rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	if err != nil {
		t.Fatalf("FromNotation: %v", err)
	}
	p.OnSessionStarted(false, "")
	p.OnPositionChanged(mate)
	p.OnTurnChanged(false)
	if last := out[len(out)-1]; strings.Contains(last, "New game starting") {
		t.Fatalf("remote frame announces a rematch:\n%s", last)
	}

	p.OnSessionStarted(true, "Random")
	p.OnPositionChanged(rules.StartPosition())
	p.OnTurnChanged(false)
	if last := out[len(out)-1]; !strings.Contains(last, "Waiting for Random") {
		t.Fatalf("standin label not used:\n%s", last)
	}
}
