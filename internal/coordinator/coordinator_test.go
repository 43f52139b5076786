package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/park285/instant-chess/internal/authority"
	"github.com/park285/instant-chess/internal/chess"
	"github.com/park285/instant-chess/internal/opponent"
	"github.com/park285/instant-chess/internal/rules"
	"github.com/park285/instant-chess/internal/session"
)

const (
	afterG4   = "rnbqkbnr/pppp1ppp/8/4p3/6P1/5P2/PPPPP2P/RNBQKBNR b KQkq g3 0 2"
	foolsMate = "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"
)

var (
	self   = session.Identity{ID: "me", DisplayName: "Me"}
	engine = opponent.Opponent{Kind: opponent.LocalEngine, Identity: session.Identity{ID: "stockfish"}}
	human  = opponent.Opponent{Kind: opponent.Remote, Identity: session.Identity{ID: "them"}}
)

type recordingPresenter struct {
	mu         sync.Mutex
	positions  []rules.Position
	highlights []rules.Move
	turns      []bool
}

func (p *recordingPresenter) OnPositionChanged(pos rules.Position) {
	p.mu.Lock()
	p.positions = append(p.positions, pos)
	p.mu.Unlock()
}

func (p *recordingPresenter) OnMoveHighlight(mv rules.Move) {
	p.mu.Lock()
	p.highlights = append(p.highlights, mv)
	p.mu.Unlock()
}

func (p *recordingPresenter) OnTurnChanged(myTurn bool) {
	p.mu.Lock()
	p.turns = append(p.turns, myTurn)
	p.mu.Unlock()
}

func (p *recordingPresenter) highlightCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.highlights)
}

// offlineConnector always returns an offline outcome with a fixed colour and position.
type offlineConnector struct {
	color    rules.Color
	position string
}

func (o offlineConnector) Connect(context.Context, session.Identity, session.Identity, string) session.Outcome {
	pos := o.position
	if pos == "" {
		pos = rules.StartFEN
	}
	return session.Outcome{Color: o.color, Position: pos}
}

type countingResolver struct {
	mu     sync.Mutex
	calls  int
	levels []chess.Difficulty
	kinds  []opponent.Kind
	err    error
	gate   chan struct{}
	inner  *opponent.Resolver
}

func (r *countingResolver) Resolve(ctx context.Context, pos rules.Position, kind opponent.Kind, d chess.Difficulty) (rules.Move, error) {
	r.mu.Lock()
	r.calls++
	r.levels = append(r.levels, d)
	r.kinds = append(r.kinds, kind)
	gate, err := r.gate, r.err
	r.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return rules.Move{}, ctx.Err()
		}
	}
	if err != nil {
		return rules.Move{}, err
	}
	return r.inner.Resolve(ctx, pos, opponent.LocalRandom, d)
}

func (r *countingResolver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *countingResolver) kindsSeen() []opponent.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]opponent.Kind(nil), r.kinds...)
}

func newResolver() *countingResolver {
	return &countingResolver{inner: opponent.NewResolver(rules.NewStandard(), nil, opponent.WithIntn(func(int) int { return 0 }))}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func start(t *testing.T, c *Coordinator) {
	t.Helper()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(c.Close)
}

type fakeEngine struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEngine) RequestBestMove(context.Context, string, chess.EngineConfig) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return "e7e5", nil
}

func TestThermalReplyWithoutEngineCalls(t *testing.T) {
	rs := rules.NewStandard()
	eng := &fakeEngine{}
	p := &recordingPresenter{}
	c := New(rs, offlineConnector{color: rules.White}, opponent.NewResolver(rs, eng), p,
		Config{Self: self, Opponent: engine, Difficulty: chess.Thermal})
	start(t, c)

	if !c.MyTurn() || c.State() != LocalOnly {
		t.Fatalf("expected local white to move first")
	}
	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("SubmitLocalMove: %v", err)
	}
	waitFor(t, "black reply", func() bool { return p.highlightCount() == 2 })
	if !c.MyTurn() {
		t.Fatalf("turn should return to white")
	}
	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.calls != 0 {
		t.Fatalf("engine adapter called %d times", eng.calls)
	}
}

func TestExactlyOneResolutionPerSubmit(t *testing.T) {
	res := newResolver()
	p := &recordingPresenter{}
	c := New(rules.NewStandard(), offlineConnector{color: rules.White}, res, p, Config{Self: self, Opponent: engine, Difficulty: chess.Level(4)})
	start(t, c)
	if res.count() != 0 {
		t.Fatalf("resolver called on my turn")
	}
	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "d2", To: "d4"}); err != nil {
		t.Fatalf("SubmitLocalMove: %v", err)
	}
	waitFor(t, "reply", func() bool { return p.highlightCount() == 2 })
	time.Sleep(30 * time.Millisecond)
	if res.count() != 1 {
		t.Fatalf("resolver calls = %d, want 1", res.count())
	}
}

func TestEngineOpensWhenLocalIsBlack(t *testing.T) {
	res := newResolver()
	c := New(rules.NewStandard(), offlineConnector{color: rules.Black}, res, nil, Config{Self: self, Opponent: engine, Difficulty: chess.Level(1)})
	start(t, c)
	waitFor(t, "opening move", c.MyTurn)
	if res.count() != 1 {
		t.Fatalf("resolver calls = %d", res.count())
	}
}

func TestNoResolutionWhenGameOver(t *testing.T) {
	res := newResolver()
	c := New(rules.NewStandard(), offlineConnector{color: rules.Black, position: foolsMate}, res, nil,
		Config{Self: self, Opponent: engine, Difficulty: chess.Level(5), RematchDelay: time.Hour})
	start(t, c)
	time.Sleep(20 * time.Millisecond)
	if res.count() != 0 {
		t.Fatalf("resolver called on a finished game")
	}
	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "e7", To: "e6"}); !errors.Is(err, ErrGameOver) {
		t.Fatalf("submit after mate: %v", err)
	}
}

func TestSubmitRejections(t *testing.T) {
	res := newResolver()
	res.gate = make(chan struct{})
	c := New(rules.NewStandard(), offlineConnector{color: rules.White}, res, nil, Config{Self: self, Opponent: engine, Difficulty: chess.Level(5)})

	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "e2", To: "e4"}); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("before start: %v", err)
	}
	start(t, c)
	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "e2", To: "e5"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("illegal: %v", err)
	}
	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("SubmitLocalMove: %v", err)
	}
	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "d2", To: "d4"}); !errors.Is(err, ErrOpponentThinking) {
		t.Fatalf("while resolving: %v", err)
	}
	close(res.gate)
	waitFor(t, "reply", c.MyTurn)
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start: %v", err)
	}
	c.Close()
	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "d2", To: "d4"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("after close: %v", err)
	}
}

func TestNoUsableReplyFallsBackToRandom(t *testing.T) {
	res := newResolver()
	res.err = opponent.ErrNoUsableReply
	c := New(rules.NewStandard(), offlineConnector{color: rules.White}, res, nil,
		Config{Self: self, Opponent: engine, Difficulty: chess.Level(5)}, WithIntn(func(int) int { return 0 }))
	start(t, c)
	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("SubmitLocalMove: %v", err)
	}
	waitFor(t, "fallback reply", c.MyTurn)
}

func TestSetDifficultyAppliesToNextReply(t *testing.T) {
	res := newResolver()
	c := New(rules.NewStandard(), offlineConnector{color: rules.White}, res, nil, Config{Self: self, Opponent: engine, Difficulty: chess.Level(5)})
	start(t, c)
	c.SetDifficulty(chess.Level(2))
	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("SubmitLocalMove: %v", err)
	}
	waitFor(t, "reply", c.MyTurn)
	res.mu.Lock()
	defer res.mu.Unlock()
	if len(res.levels) != 1 || res.levels[0] != chess.Level(2) {
		t.Fatalf("levels = %v", res.levels)
	}
}

func TestRematchInPlace(t *testing.T) {
	res := newResolver()
	p := &recordingPresenter{}
	c := New(rules.NewStandard(), offlineConnector{color: rules.Black, position: afterG4}, res, p,
		Config{Self: self, Opponent: engine, Difficulty: chess.Level(5), RematchDelay: 10 * time.Millisecond})
	start(t, c)
	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "d8", To: "h4"}); err != nil {
		t.Fatalf("mating move: %v", err)
	}
	// board resets, then white (the engine) opens
	waitFor(t, "rematch opening", func() bool { return res.count() == 1 && c.MyTurn() })
	if got := c.Position().String(); got == foolsMate {
		t.Fatalf("board was not reset")
	}
}

// scriptedAuthority backs a real session.Handle for remote tests.
type scriptedAuthority struct {
	mu       sync.Mutex
	snap     authority.Snapshot
	pollGate chan struct{}
	sent     []string
	sendErr  error
	// accepted maps a sent move to the position the authority reports afterwards.
	accepted map[string]string
}

func (a *scriptedAuthority) AppStart(context.Context, string, string) error { return nil }

func (a *scriptedAuthority) GameState(ctx context.Context, _, _ string) (authority.Snapshot, error) {
	a.mu.Lock()
	gate, snap := a.pollGate, a.snap
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return authority.Snapshot{}, ctx.Err()
		}
	}
	return snap, nil
}

func (a *scriptedAuthority) StartGame(context.Context, string, string, string) (authority.Snapshot, error) {
	return authority.Snapshot{}, errors.New("unused")
}

func (a *scriptedAuthority) SendMove(_ context.Context, _, _, move, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, move)
	if fen, ok := a.accepted[move]; ok && a.sendErr == nil {
		a.snap.FEN = fen
	}
	return a.sendErr
}

func (a *scriptedAuthority) setSnapshot(fen string) {
	a.mu.Lock()
	a.snap.FEN = fen
	a.mu.Unlock()
}

func TestRemoteMoveNotifyAndReconcile(t *testing.T) {
	rs := rules.NewStandard()
	afterE4, _ := rs.ApplyMove(rules.StartPosition(), rules.Move{From: "e2", To: "e4"})
	afterE5, _ := rs.ApplyMove(afterE4, rules.Move{From: "e7", To: "e5"})

	auth := &scriptedAuthority{
		snap:     authority.Snapshot{Colour: rules.White, FEN: rules.StartFEN, Game: "g1"},
		accepted: map[string]string{"e2e4": afterE4.String()},
	}
	res := newResolver()
	p := &recordingPresenter{}
	c := New(rs, session.NewConnector(auth), res, p,
		Config{Self: self, Opponent: human, GameRef: "g1", PollInterval: 10 * time.Millisecond})
	start(t, c)
	if c.State() != PollingRemote {
		t.Fatalf("state = %v", c.State())
	}

	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("SubmitLocalMove: %v", err)
	}
	waitFor(t, "notify", func() bool {
		auth.mu.Lock()
		defer auth.mu.Unlock()
		return len(auth.sent) == 1
	})
	auth.setSnapshot(afterE5.String())

	waitFor(t, "reconciled reply", c.MyTurn)
	if res.count() != 0 {
		t.Fatalf("remote opponents must not be resolved locally")
	}
	if got := c.Position().String(); got != afterE5.String() {
		t.Fatalf("position = %s", got)
	}
	p.mu.Lock()
	last := p.highlights[len(p.highlights)-1]
	p.mu.Unlock()
	if last.String() != "e7e5" {
		t.Fatalf("highlight = %s", last)
	}
}

func TestNotifyFailureKeepsLocalMove(t *testing.T) {
	auth := &scriptedAuthority{
		snap:    authority.Snapshot{Colour: rules.White, FEN: rules.StartFEN, Game: "g1"},
		sendErr: errors.New("boom"),
	}
	c := New(rules.NewStandard(), session.NewConnector(auth), newResolver(), nil,
		Config{Self: self, Opponent: human, GameRef: "g1", PollInterval: time.Hour})
	start(t, c)

	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("notify failure must not reject the move: %v", err)
	}
	if c.MyTurn() {
		t.Fatalf("local move was not applied")
	}
	waitFor(t, "notify", func() bool {
		auth.mu.Lock()
		defer auth.mu.Unlock()
		return len(auth.sent) == 1 && auth.sent[0] == "e2e4"
	})
}

func TestStaleSnapshotIsDiscarded(t *testing.T) {
	auth := &scriptedAuthority{snap: authority.Snapshot{Colour: rules.White, FEN: rules.StartFEN, Game: "g1"}}
	c := New(rules.NewStandard(), session.NewConnector(auth), newResolver(), nil,
		Config{Self: self, Opponent: human, GameRef: "g1", PollInterval: time.Hour})
	start(t, c)

	gate := make(chan struct{})
	auth.mu.Lock()
	auth.pollGate = gate
	auth.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.reconcile(context.Background())
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "g1", To: "f3"}); err != nil {
		t.Fatalf("SubmitLocalMove: %v", err)
	}
	close(gate)
	<-done

	if c.MyTurn() {
		t.Fatalf("stale start-position snapshot overwrote the local move")
	}
}

func TestOfflineRemotePlayerIsPlayedByStandin(t *testing.T) {
	for _, tc := range []struct {
		color   rules.Color
		standin opponent.Opponent
		want    opponent.Kind
	}{
		{color: rules.White, want: opponent.LocalRandom},
		{color: rules.Black, want: opponent.LocalRandom},
		{color: rules.White, standin: engine, want: opponent.LocalEngine},
		{color: rules.Black, standin: engine, want: opponent.LocalEngine},
	} {
		t.Run(string(tc.color)+"/"+tc.want.String(), func(t *testing.T) {
			res := newResolver()
			c := New(rules.NewStandard(), offlineConnector{color: tc.color}, res, nil,
				Config{Self: self, Opponent: human, Standin: tc.standin, Difficulty: chess.Level(3)})
			start(t, c)
			if c.State() != LocalOnly {
				t.Fatalf("state = %v", c.State())
			}
			if got := c.Opponent().Kind; got != tc.want {
				t.Fatalf("effective opponent = %v, want %v", got, tc.want)
			}

			if tc.color == rules.White {
				if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "e2", To: "e4"}); err != nil {
					t.Fatalf("SubmitLocalMove: %v", err)
				}
			}
			waitFor(t, "standin reply", c.MyTurn)
			if kinds := res.kindsSeen(); len(kinds) != 1 || kinds[0] != tc.want {
				t.Fatalf("resolved kinds = %v", kinds)
			}
		})
	}
}

type sessionRecorder struct {
	recordingPresenter
	local    bool
	opponent string
}

func (p *sessionRecorder) OnSessionStarted(local bool, opponent string) {
	p.mu.Lock()
	p.local, p.opponent = local, opponent
	p.mu.Unlock()
}

func TestOfflineStandinIsAnnounced(t *testing.T) {
	p := &sessionRecorder{}
	c := New(rules.NewStandard(), offlineConnector{color: rules.White}, newResolver(), p,
		Config{Self: self, Opponent: human})
	start(t, c)
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.local || p.opponent != "Random" {
		t.Fatalf("session = local %v opponent %q", p.local, p.opponent)
	}
	if len(p.turns) == 0 {
		t.Fatalf("no frame published")
	}
}

func TestMachineOpponentNeverUsesAuthoritySession(t *testing.T) {
	rs := rules.NewStandard()
	auth := &scriptedAuthority{snap: authority.Snapshot{Colour: rules.White, FEN: rules.StartFEN, Game: "g1"}}
	res := newResolver()
	p := &sessionRecorder{}
	c := New(rs, session.NewConnector(auth), res, p,
		Config{Self: self, Opponent: engine, GameRef: "g1", PollInterval: 10 * time.Millisecond})
	start(t, c)
	if c.State() != LocalOnly || c.Game() != "" {
		t.Fatalf("state = %v game = %q", c.State(), c.Game())
	}

	if err := c.SubmitLocalMove(context.Background(), rules.Move{From: "e2", To: "e4"}); err != nil {
		t.Fatalf("SubmitLocalMove: %v", err)
	}
	waitFor(t, "engine reply", c.MyTurn)
	auth.mu.Lock()
	sent := len(auth.sent)
	auth.mu.Unlock()
	if sent != 0 {
		t.Fatalf("authority was sent %d moves", sent)
	}
	p.mu.Lock()
	local := p.local
	p.mu.Unlock()
	if !local {
		t.Fatalf("presenter was told the session is remote")
	}
}
