package rules

import (
	"errors"
	"testing"
)

func mustMove(t *testing.T, s string) Move {
	t.Helper()
	mv, err := ParseMove(s)
	if err != nil {
		t.Fatalf("ParseMove(%q): %v", s, err)
	}
	return mv
}

func TestParseMove(t *testing.T) {
	mv := mustMove(t, "E7E8Q")
	if mv.From != "e7" || mv.To != "e8" || mv.Promotion != "q" {
		t.Fatalf("unexpected move: %+v", mv)
	}
	for _, bad := range []string{"", "e2", "e2e9", "i2e4", "e7e8k", "e2e4e5"} {
		if _, err := ParseMove(bad); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("ParseMove(%q) expected ErrIllegalMove, got %v", bad, err)
		}
	}
}

func TestStartPosition(t *testing.T) {
	r := NewStandard()
	pos := StartPosition()
	if got := r.TurnColor(pos); got != White {
		t.Fatalf("turn = %s, want white", got)
	}
	if n := len(r.LegalMoves(pos, "")); n != 20 {
		t.Fatalf("legal moves = %d, want 20", n)
	}
	if n := len(r.LegalMoves(pos, "g1")); n != 2 {
		t.Fatalf("knight moves = %d, want 2", n)
	}
	if r.IsGameOver(pos) {
		t.Fatalf("start position reported game over")
	}
	var zero Position
	if zero.String() != StartFEN {
		t.Fatalf("zero position should be the start position")
	}
}

func TestApplyMoveFlipsTurn(t *testing.T) {
	r := NewStandard()
	pos, err := r.ApplyMove(StartPosition(), mustMove(t, "e2e4"))
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if r.TurnColor(pos) != Black {
		t.Fatalf("expected black to move")
	}
	if _, err := r.ApplyMove(pos, mustMove(t, "e2e4")); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
}

func TestNotationRoundTrip(t *testing.T) {
	r := NewStandard()
	pos := StartPosition()
	for _, s := range []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"} {
		next, err := r.ApplyMove(pos, mustMove(t, s))
		if err != nil {
			t.Fatalf("ApplyMove(%s): %v", s, err)
		}
		pos = next
		back, err := r.FromNotation(r.ToNotation(pos))
		if err != nil {
			t.Fatalf("FromNotation: %v", err)
		}
		if back != pos {
			t.Fatalf("round trip mismatch: %q vs %q", back, pos)
		}
	}
}

func TestFromNotationRejectsGarbage(t *testing.T) {
	if _, err := NewStandard().FromNotation("not a fen"); !errors.Is(err, ErrInvalidNotation) {
		t.Fatalf("expected ErrInvalidNotation, got %v", err)
	}
	pos, err := NewStandard().FromNotation("startpos")
	if err != nil || pos != StartPosition() {
		t.Fatalf("startpos alias: %v %v", pos, err)
	}
}

func TestFoolsMateIsGameOver(t *testing.T) {
	r := NewStandard()
	pos := StartPosition()
	for _, s := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		next, err := r.ApplyMove(pos, mustMove(t, s))
		if err != nil {
			t.Fatalf("ApplyMove(%s): %v", s, err)
		}
		pos = next
	}
	if !r.IsGameOver(pos) {
		t.Fatalf("expected checkmate to end the game")
	}
	if len(r.LegalMoves(pos, "")) != 0 {
		t.Fatalf("mated side should have no moves")
	}
}

func TestCaptureFlag(t *testing.T) {
	r := NewStandard()
	pos := StartPosition()
	for _, s := range []string{"e2e4", "d7d5"} {
		pos, _ = r.ApplyMove(pos, mustMove(t, s))
	}
	mv, ok := FindLegal(r, pos, mustMove(t, "e4d5"))
	if !ok || !mv.Capture {
		t.Fatalf("expected e4d5 to be a legal capture: %+v ok=%v", mv, ok)
	}
	if _, ok := FindLegal(r, pos, mustMove(t, "e4e6")); ok {
		t.Fatalf("e4e6 should not be legal")
	}
}
