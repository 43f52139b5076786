package chess

import (
	"strings"
	"testing"
	"time"
)

func TestMapDifficultyEndpoints(t *testing.T) {
	if got, want := MapDifficulty(1), (EngineConfig{SearchDepth: 1}); got != want {
		t.Fatalf("level 1 = %+v, want %+v", got, want)
	}
	want := EngineConfig{SearchDepth: 10, SkillLevel: 20, MaxErrorCentipawns: 5000, BlunderProbability: 1000}
	if got := MapDifficulty(10); got != want {
		t.Fatalf("level 10 = %+v, want %+v", got, want)
	}
}

func TestMapDifficultyBoundsAndMonotonic(t *testing.T) {
	prev := MapDifficulty(MinLevel)
	for level := MinLevel; level <= MaxLevel; level++ {
		cfg := MapDifficulty(level)
		if cfg.SearchDepth < 1 || cfg.SearchDepth > 10 {
			t.Fatalf("level %d depth %d out of range", level, cfg.SearchDepth)
		}
		if cfg.SkillLevel < 0 || cfg.SkillLevel > 20 {
			t.Fatalf("level %d skill %d out of range", level, cfg.SkillLevel)
		}
		if cfg.SearchDepth < prev.SearchDepth || cfg.SkillLevel < prev.SkillLevel {
			t.Fatalf("level %d decreased: %+v after %+v", level, cfg, prev)
		}
		prev = cfg
	}
}

func TestDirectives(t *testing.T) {
	d := MapDifficulty(10).Directives()
	want := []string{
		"setoption name Skill Level value 20",
		"setoption name Skill Level Maximum Error value 5000",
		"setoption name Skill Level Probability value 1000",
		"setoption name Contempt value 100",
	}
	if strings.Join(d, "|") != strings.Join(want, "|") {
		t.Fatalf("directives = %v", d)
	}
	cmd, err := FormatGoCommand(MapDifficulty(4))
	if err != nil || cmd != "go depth 4" {
		t.Fatalf("go command = %q, %v", cmd, err)
	}
	if _, err := FormatGoCommand(EngineConfig{}); err == nil {
		t.Fatalf("expected error without depth")
	}
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty(" Thermal ")
	if err != nil || !d.IsThermal() {
		t.Fatalf("thermal: %v %v", d, err)
	}
	d, err = ParseDifficulty("level7")
	if err != nil || d.IsThermal() || d.Level() != 7 {
		t.Fatalf("level7: %v %v", d, err)
	}
	for _, bad := range []string{"0", "11", "hard", ""} {
		if _, err := ParseDifficulty(bad); err == nil {
			t.Fatalf("ParseDifficulty(%q) should fail", bad)
		}
	}
	if Level(3).String() != "3" || Thermal.String() != "thermal" {
		t.Fatalf("unexpected String output")
	}
}

func TestReplyTimeoutClamped(t *testing.T) {
	if got := ReplyTimeout(MapDifficulty(1)); got != 6*time.Second {
		t.Fatalf("low depth timeout = %s", got)
	}
	if got := ReplyTimeout(EngineConfig{SearchDepth: 100}); got != 20*time.Second {
		t.Fatalf("high depth timeout = %s", got)
	}
}
