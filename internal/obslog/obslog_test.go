package obslog

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTagFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() {
		Set(nil)
		SetTags("")
	})

	SetTags("server, stockfish")
	Tag("server").Debug("server_debug")
	Tag("ui").Debug("ui_debug")
	Tag("ui").Warn("ui_warn")

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "server_debug" || entries[0].LoggerName != "server" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Message != "ui_warn" {
		t.Fatalf("filtered tag should still emit warnings: %+v", entries[1])
	}
}

func TestAllTags(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() {
		Set(nil)
		SetTags("")
	})

	SetTags("*")
	Tag("server_tick").Debug("tick")
	if logs.Len() != 1 {
		t.Fatalf("expected wildcard to enable every tag")
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING") != zapcore.WarnLevel || parseLevel("nope") != zapcore.InfoLevel {
		t.Fatalf("unexpected level parsing")
	}
}
