package chess

import (
	"context"
	"time"

	"github.com/park285/instant-chess/internal/chess/uci"
)

// Engine answers best-move requests from a pool of UCI processes.
type Engine struct {
	pool         *uci.Pool
	replyTimeout time.Duration
}

type EngineOptions struct {
	Threads      int
	HashMB       int
	Capacity     int
	ReplyTimeout time.Duration
}

func NewEngine(binaryPath string, opts EngineOptions) (*Engine, error) {
	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath: binaryPath,
		Capacity:   opts.Capacity,
		Options:    uci.Options{Threads: opts.Threads, HashMB: opts.HashMB},
	})
	if err != nil {
		return nil, err
	}
	return &Engine{pool: pool, replyTimeout: opts.ReplyTimeout}, nil
}

// RequestBestMove searches notation with cfg and returns the engine's move token.
func (e *Engine) RequestBestMove(ctx context.Context, notation string, cfg EngineConfig) (string, error) {
	goCmd, err := FormatGoCommand(cfg)
	if err != nil {
		return "", err
	}
	timeout := e.replyTimeout
	if timeout <= 0 {
		timeout = ReplyTimeout(cfg)
	}

	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	var releaseErr error
	defer func() {
		e.pool.Release(session, releaseErr)
	}()

	mv, err := session.BestMove(ctx, uci.BestMoveRequest{
		FEN:        notation,
		Directives: cfg.Directives(),
		GoCommand:  goCmd,
		Timeout:    timeout,
	})
	if err != nil {
		releaseErr = err
		return "", err
	}
	return mv, nil
}

func (e *Engine) Close() error {
	if e.pool == nil {
		return nil
	}
	return e.pool.Close()
}
