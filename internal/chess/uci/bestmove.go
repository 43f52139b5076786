package uci

import (
	"errors"
	"strings"
)

var (
	ErrNoBestMove   = errors.New("engine reply has no bestmove")
	ErrReplyTimeout = errors.New("engine reply timed out")
)

const bestMoveMarker = "bestmove"

// ParseBestMove returns the first token following the bestmove marker.
// Diagnostic tokens around the marker (info lines, ponder hints) are ignored.
func ParseBestMove(payload string) (string, bool) {
	fields := strings.Fields(payload)
	for i, f := range fields {
		if f != bestMoveMarker {
			continue
		}
		if i+1 >= len(fields) {
			return "", false
		}
		mv := fields[i+1]
		if mv == "(none)" || mv == "0000" {
			return "", false
		}
		return mv, true
	}
	return "", false
}

func hasBestMoveMarker(line string) bool {
	for _, f := range strings.Fields(line) {
		if f == bestMoveMarker {
			return true
		}
	}
	return false
}
