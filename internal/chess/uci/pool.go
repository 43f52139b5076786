package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
)

type PoolConfig struct {
	BinaryPath string
	Capacity   int
	Options    Options
}

// Pool keeps warm engine processes. Search options travel with each request,
// so one bucket of interchangeable sessions is enough.
type Pool struct {
	binaryPath string
	opt        Options
	capacity   int

	mu    sync.Mutex
	total int
	idle  chan *Session
	owned map[*Session]struct{}
}

var errPoolAtCapacity = errors.New("engine pool at capacity")

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("stockfish binary check: %w", err)
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity()
	}
	opt := cfg.Options
	if opt.HashMB <= 0 {
		opt.HashMB = 16
	}
	return &Pool{
		binaryPath: cfg.BinaryPath,
		opt:        opt,
		capacity:   capacity,
		idle:       make(chan *Session, capacity),
		owned:      make(map[*Session]struct{}),
	}, nil
}

func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		select {
		case session := <-p.idle:
			if session == nil {
				continue
			}
			if err := session.EnsureReady(ctx); err != nil {
				p.discard(session)
				continue
			}
			p.track(session)
			return session, nil
		default:
		}

		session, err := p.create(ctx)
		if err == nil {
			p.track(session)
			return session, nil
		}
		if !errors.Is(err, errPoolAtCapacity) {
			return nil, err
		}

		select {
		case session := <-p.idle:
			if session == nil {
				continue
			}
			if err := session.EnsureReady(ctx); err != nil {
				p.discard(session)
				continue
			}
			p.track(session)
			return session, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns a session to the pool; a non-nil err discards it instead.
func (p *Pool) Release(session *Session, err error) {
	if session == nil {
		return
	}
	p.mu.Lock()
	_, ok := p.owned[session]
	delete(p.owned, session)
	p.mu.Unlock()
	if !ok {
		_ = session.Close()
		return
	}
	if err != nil {
		p.discard(session)
		return
	}
	select {
	case p.idle <- session:
	default:
		p.discard(session)
	}
}

func (p *Pool) Close() error {
	var errs []error
	for {
		select {
		case session := <-p.idle:
			if session == nil {
				continue
			}
			if err := session.Close(); err != nil {
				errs = append(errs, err)
			}
			p.decrement()
		default:
			return errors.Join(errs...)
		}
	}
}

func (p *Pool) create(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.total >= p.capacity {
		p.mu.Unlock()
		return nil, errPoolAtCapacity
	}
	p.total++
	p.mu.Unlock()

	session, err := NewSession(ctx, p.binaryPath, p.opt)
	if err != nil {
		p.decrement()
		return nil, err
	}
	return session, nil
}

func (p *Pool) track(session *Session) {
	p.mu.Lock()
	p.owned[session] = struct{}{}
	p.mu.Unlock()
}

func (p *Pool) discard(session *Session) {
	if session != nil {
		_ = session.Close()
	}
	p.decrement()
}

func (p *Pool) decrement() {
	p.mu.Lock()
	if p.total > 0 {
		p.total--
	}
	p.mu.Unlock()
}

func defaultCapacity() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 1
	}
	if cpu > 4 {
		return 4
	}
	return cpu
}
