package authority

import (
	"context"
	"fmt"

	"github.com/park285/instant-chess/internal/rules"
)

// Snapshot is the authority's view of a game for the calling player.
type Snapshot struct {
	Colour rules.Color
	FEN    string
	Game   string
}

// Gateway turns request frames into typed calls. Any transport error or
// failure marker is an error.
type Gateway struct {
	t Transport
}

func NewGateway(t Transport) *Gateway {
	return &Gateway{t: t}
}

func (g *Gateway) AppStart(ctx context.Context, playerID, name string) error {
	_, err := g.call(ctx, Request{Kind: KindAppStart, From: playerID, Name: name})
	return err
}

func (g *Gateway) GameState(ctx context.Context, playerID, gameRef string) (Snapshot, error) {
	resp, err := g.call(ctx, Request{Kind: KindGameStateRequest, From: playerID, Game: gameRef})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotFrom(resp, gameRef)
}

func (g *Gateway) StartGame(ctx context.Context, playerID, opponentID, gameRef string) (Snapshot, error) {
	resp, err := g.call(ctx, Request{Kind: KindGameStart, From: playerID, To: opponentID, Game: gameRef})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotFrom(resp, gameRef)
}

func (g *Gateway) SendMove(ctx context.Context, playerID, opponentID, move, gameRef string) error {
	_, err := g.call(ctx, Request{Kind: KindChessMove, From: playerID, To: opponentID, Move: move, Game: gameRef})
	return err
}

func (g *Gateway) call(ctx context.Context, req Request) (Response, error) {
	resp, err := g.t.Do(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", req.Kind, err)
	}
	if !resp.OK {
		return Response{}, fmt.Errorf("%s: %w: %s", req.Kind, ErrRejected, resp.Error)
	}
	return resp, nil
}

func snapshotFrom(resp Response, gameRef string) (Snapshot, error) {
	colour, ok := rules.ParseColor(resp.Colour)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: colour %q", ErrMalformed, resp.Colour)
	}
	game := resp.Game
	if game == "" {
		game = gameRef
	}
	return Snapshot{Colour: colour, FEN: resp.FEN, Game: game}, nil
}
