package chesspresenter

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/instant-chess/internal/obslog"
	"github.com/park285/instant-chess/internal/rules"
)

// Presenter prints the board after every position change. It satisfies
// coordinator.Presenter; a full frame is written on OnTurnChanged, which the
// coordinator always calls last.
type Presenter struct {
	fmt      *Formatter
	rules    rules.Rules
	send     func(message string) error
	opponent string
	rematch  time.Duration

	mu     sync.Mutex
	pos    rules.Position
	last   *rules.Move
	remote bool
}

type Option func(*Presenter)

// WithRematchNotice announces the in-place reset of finished offline games.
// Remote sessions never print it.
func WithRematchNotice(delay time.Duration) Option {
	return func(p *Presenter) { p.rematch = delay }
}

func NewPresenter(f *Formatter, rs rules.Rules, opponent string, send func(message string) error, opts ...Option) *Presenter {
	p := &Presenter{fmt: f, rules: rs, send: send, opponent: opponent}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnSessionStarted records whether the game is played locally and who actually
// plays the other side.
func (p *Presenter) OnSessionStarted(local bool, opponent string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = !local
	if opponent != "" {
		p.opponent = opponent
	}
}

func (p *Presenter) OnPositionChanged(pos rules.Position) {
	p.mu.Lock()
	p.pos = pos
	p.last = nil
	p.mu.Unlock()
}

func (p *Presenter) OnMoveHighlight(mv rules.Move) {
	p.mu.Lock()
	p.last = &mv
	p.mu.Unlock()
}

func (p *Presenter) OnTurnChanged(myTurn bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	toMove := p.rules.TurnColor(p.pos)
	perspective := toMove
	if !myTurn {
		perspective = toMove.Opposite()
	}
	over := p.rules.IsGameOver(p.pos)

	var sb strings.Builder
	sb.WriteString(p.fmt.Board(p.pos, perspective))
	if p.last != nil {
		sb.WriteString(p.fmt.LastMove(*p.last))
		sb.WriteString("\n")
	}
	sb.WriteString(p.fmt.Material(p.pos))
	sb.WriteString("\n")
	sb.WriteString(p.fmt.Turn(myTurn, over, toMove, p.opponent))
	if over && p.rematch > 0 && !p.remote {
		sb.WriteString(" ")
		sb.WriteString(p.fmt.Rematch(p.rematch))
	}
	p.write(sb.String())
}

// Notice prints a single line outside the board frame.
func (p *Presenter) Notice(message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.write(message)
}

func (p *Presenter) write(message string) {
	if p.send == nil {
		return
	}
	if err := p.send(message); err != nil {
		obslog.Tag("ui").Warn("presenter_write_failed", zap.Error(err))
	}
}
