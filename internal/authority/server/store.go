package server

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/instant-chess/internal/obslog"
	"github.com/park285/instant-chess/internal/rules"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameExists   = errors.New("game already exists with other players")
	ErrNotInGame    = errors.New("player not in game")
	ErrNotYourTurn  = errors.New("not your turn")
	ErrIllegalMove  = errors.New("illegal move")
	ErrGameOver     = errors.New("game is over")
	ErrConflict     = errors.New("concurrent update, retry")
)

const (
	gameTTL      = 24 * time.Hour
	maxTxRetries = 3
)

// ColourPicker returns White for the creating player or Black.
type ColourPicker func() rules.Color

// CryptoColour flips a fair coin with crypto/rand.
func CryptoColour() rules.Color {
	if n, _ := rand.Int(rand.Reader, big.NewInt(2)); n != nil && n.Int64() == 0 {
		return rules.Black
	}
	return rules.White
}

// Store keeps games and players in redis. Moves use WATCH on the game key.
type Store struct {
	rdb     *redis.Client
	results ResultSink
	pick    ColourPicker
}

func NewStore(redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for authority store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb, pick: CryptoColour}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// AttachResults wires a sink for finished games.
func (s *Store) AttachResults(r ResultSink) { s.results = r }

// SetColourPicker overrides the creator's colour assignment.
func (s *Store) SetColourPicker(p ColourPicker) {
	if p != nil {
		s.pick = p
	}
}

func (s *Store) RegisterPlayer(ctx context.Context, id, name string) error {
	key := playerKey(id)
	if err := s.rdb.HSet(ctx, key, "name", strings.TrimSpace(name), "seen_at", time.Now().Unix()).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, 30*24*time.Hour).Err()
}

func (s *Store) PlayerName(ctx context.Context, id string) string {
	name, err := s.rdb.HGet(ctx, playerKey(id), "name").Result()
	if err != nil || name == "" {
		return id
	}
	return name
}

// Find returns the game or ErrGameNotFound.
func (s *Store) Find(ctx context.Context, ref string) (*Game, error) {
	raw, err := s.rdb.Get(ctx, gameKey(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Create starts a game under ref. Repeating GameStart with the same pair returns the existing game.
func (s *Store) Create(ctx context.Context, ref, fromID, toID string) (*Game, error) {
	fromID, toID = strings.TrimSpace(fromID), strings.TrimSpace(toID)
	if fromID == "" || toID == "" || fromID == toID {
		return nil, fmt.Errorf("invalid participants")
	}
	whiteID, blackID := fromID, toID
	if s.pick() == rules.Black {
		whiteID, blackID = toID, fromID
	}
	now := time.Now()
	g := &Game{
		ID:        strings.TrimSpace(ref),
		FEN:       rules.StartFEN,
		MovesUCI:  []string{},
		MovesSAN:  []string{},
		Turn:      rules.White,
		Status:    StatusActive,
		WhiteID:   whiteID,
		WhiteName: s.PlayerName(ctx, whiteID),
		BlackID:   blackID,
		BlackName: s.PlayerName(ctx, blackID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	created, err := s.rdb.SetNX(ctx, gameKey(g.ID), raw, gameTTL).Result()
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := s.Find(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		if existing.ColourOf(fromID) == "" || existing.ColourOf(toID) == "" {
			return nil, ErrGameExists
		}
		return existing, nil
	}
	obslog.Tag("server").Info("authority_game_create",
		zap.String("game_id", g.ID),
		zap.String("white_id", g.WhiteID),
		zap.String("black_id", g.BlackID),
	)
	return g, nil
}

// PlayMove validates turn and legality, then updates FEN and the move list atomically.
func (s *Store) PlayMove(ctx context.Context, ref, playerID, uci string) (*Game, error) {
	key := gameKey(ref)
	uci = strings.ToLower(strings.TrimSpace(uci))
	var out *Game

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrGameNotFound
		}
		if err != nil {
			return err
		}
		var cur Game
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if cur.Status != StatusActive {
			return ErrGameOver
		}
		colour := cur.ColourOf(playerID)
		if colour == "" {
			return ErrNotInGame
		}
		if colour != cur.Turn {
			return ErrNotYourTurn
		}

		game, err := replay(cur.MovesUCI)
		if err != nil {
			return err
		}
		pos := game.Position()
		mv, err := nchess.UCINotation{}.Decode(pos, uci)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrIllegalMove, uci)
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, mv)
		if err := game.Move(mv, nil); err != nil {
			return fmt.Errorf("%w: %s", ErrIllegalMove, uci)
		}
		cur.MovesUCI = append(cur.MovesUCI, uci)
		cur.MovesSAN = append(cur.MovesSAN, san)
		cur.FEN = game.FEN()
		if game.Position().Turn() == nchess.Black {
			cur.Turn = rules.Black
		} else {
			cur.Turn = rules.White
		}
		cur.UpdatedAt = time.Now()
		switch game.Outcome() {
		case nchess.WhiteWon:
			cur.Status, cur.Winner, cur.Outcome = StatusFinished, cur.WhiteID, "white"
		case nchess.BlackWon:
			cur.Status, cur.Winner, cur.Outcome = StatusFinished, cur.BlackID, "black"
		case nchess.Draw:
			cur.Status, cur.Outcome = StatusDraw, "draw"
		}

		next, err := json.Marshal(&cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, gameTTL)
			return nil
		})
		if err != nil {
			return err
		}
		out = &cur
		return nil
	}

	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}

	obslog.Tag("server").Info("authority_move",
		zap.String("game_id", out.ID),
		zap.String("player_id", playerID),
		zap.String("uci", uci),
		zap.String("status", string(out.Status)),
	)
	if out.Status != StatusActive {
		s.persistIfFinal(ctx, out)
	}
	return out, nil
}

func (s *Store) persistIfFinal(ctx context.Context, g *Game) {
	if s.results == nil {
		return
	}
	method := "checkmate"
	if g.Status == StatusDraw {
		method = "draw"
	}
	if err := s.results.SaveResult(ctx, g, method); err != nil {
		obslog.L().Error("authority_result_persist_error", zap.String("game_id", g.ID), zap.Error(err))
		return
	}
	obslog.Tag("server").Info("authority_result_persist", zap.String("game_id", g.ID), zap.String("outcome", g.Outcome))
}

// replay rebuilds from the start position; the stored FEN is for presentation.
func replay(moves []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay %s: %w", mv, err)
		}
	}
	return game, nil
}

func gameKey(ref string) string  { return "instant-chess:game:" + strings.TrimSpace(ref) }
func playerKey(id string) string { return "instant-chess:player:" + strings.TrimSpace(id) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
