package chess

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MinLevel = 1
	MaxLevel = 10

	thermalName = "thermal"
)

// Difficulty is either a numeric engine level or the thermal (uniform random) mode.
type Difficulty struct {
	level   int
	thermal bool
}

// Thermal bypasses the engine entirely.
var Thermal = Difficulty{thermal: true}

// Level returns a numeric difficulty. Callers constrain n to MinLevel..MaxLevel.
func Level(n int) Difficulty { return Difficulty{level: n} }

func ParseDifficulty(s string) (Difficulty, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == thermalName {
		return Thermal, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(v, "level"))
	if err != nil {
		return Difficulty{}, fmt.Errorf("difficulty %q: want %d-%d or %s", s, MinLevel, MaxLevel, thermalName)
	}
	if n < MinLevel || n > MaxLevel {
		return Difficulty{}, fmt.Errorf("difficulty %d out of range %d-%d", n, MinLevel, MaxLevel)
	}
	return Level(n), nil
}

func (d Difficulty) IsThermal() bool { return d.thermal }
func (d Difficulty) Level() int      { return d.level }

func (d Difficulty) String() string {
	if d.thermal {
		return thermalName
	}
	return strconv.Itoa(d.level)
}

// EngineConfig carries search parameters handed verbatim to the engine.
type EngineConfig struct {
	SearchDepth        int
	SkillLevel         int
	MaxErrorCentipawns float64
	BlunderProbability float64
}

// MapDifficulty scales a level linearly onto engine parameters; level 1 is the weakest.
func MapDifficulty(level int) EngineConfig {
	ratio := float64(level-1) / 9
	return EngineConfig{
		SearchDepth:        int(math.Floor(1 + ratio*9)),
		SkillLevel:         int(math.Floor(ratio * 20)),
		MaxErrorCentipawns: ratio * 5000,
		BlunderProbability: ratio * 1000,
	}
}

// Directives renders the setoption lines sent before each search.
func (c EngineConfig) Directives() []string {
	return []string{
		fmt.Sprintf("setoption name Skill Level value %d", c.SkillLevel),
		"setoption name Skill Level Maximum Error value " + formatFloat(c.MaxErrorCentipawns),
		"setoption name Skill Level Probability value " + formatFloat(c.BlunderProbability),
		"setoption name Contempt value 100",
	}
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
