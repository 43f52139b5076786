package chess

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func BuildGoCommand(c EngineConfig) ([]string, error) {
	if c.SearchDepth <= 0 {
		return nil, fmt.Errorf("engine config does not define a search depth")
	}
	return []string{"go", "depth", strconv.Itoa(c.SearchDepth)}, nil
}

func FormatGoCommand(c EngineConfig) (string, error) {
	args, err := BuildGoCommand(c)
	if err != nil {
		return "", err
	}
	return strings.Join(args, " "), nil
}

// ReplyTimeout bounds how long a best-move request may take at the configured depth.
func ReplyTimeout(c EngineConfig) time.Duration {
	base := time.Duration(c.SearchDepth) * 300 * time.Millisecond
	if base < 6*time.Second {
		base = 6 * time.Second
	}
	if base > 20*time.Second {
		base = 20 * time.Second
	}
	return base
}
