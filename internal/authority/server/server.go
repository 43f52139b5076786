package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/instant-chess/internal/authority"
	"github.com/park285/instant-chess/internal/obslog"
)

// Server answers authority frames over HTTP (fasthttp) and websocket.
type Server struct {
	store *Store
	log   *zap.Logger
	tick  *zap.Logger
}

func New(store *Store) *Server {
	return &Server{store: store, log: obslog.Tag("server"), tick: obslog.Tag("server_tick")}
}

// Handle executes one decoded request. Domain errors become failure frames.
func (s *Server) Handle(ctx context.Context, req authority.Request) authority.Response {
	switch req.Kind {
	case authority.KindAppStart:
		if err := s.store.RegisterPlayer(ctx, req.From, req.Name); err != nil {
			return s.fail(req, err)
		}
		s.log.Debug("authority_app_start", zap.String("player_id", req.From))
		return authority.Response{OK: true}

	case authority.KindGameStateRequest:
		g, err := s.store.Find(ctx, req.Game)
		if err != nil {
			return s.fail(req, err)
		}
		s.tick.Debug("authority_state", zap.String("game_id", g.ID), zap.String("player_id", req.From))
		return s.snapshot(req, g)

	case authority.KindGameStart:
		g, err := s.store.Create(ctx, req.Game, req.From, req.To)
		if err != nil {
			return s.fail(req, err)
		}
		return s.snapshot(req, g)

	case authority.KindChessMove:
		g, err := s.store.PlayMove(ctx, req.Game, req.From, req.Move)
		if err != nil {
			return s.fail(req, err)
		}
		return s.snapshot(req, g)

	default:
		return s.fail(req, authority.ErrMalformed)
	}
}

func (s *Server) snapshot(req authority.Request, g *Game) authority.Response {
	colour := g.ColourOf(req.From)
	if colour == "" {
		return s.fail(req, ErrNotInGame)
	}
	return authority.Response{OK: true, Colour: string(colour), FEN: g.FEN, Game: g.ID}
}

func (s *Server) fail(req authority.Request, err error) authority.Response {
	lvl := s.log.Debug
	if !errors.Is(err, ErrGameNotFound) && !errors.Is(err, ErrNotYourTurn) && !errors.Is(err, ErrIllegalMove) {
		lvl = s.log.Warn
	}
	lvl("authority_request_failed", zap.String("kind", string(req.Kind)), zap.String("player_id", req.From), zap.Error(err))
	return authority.Response{Error: err.Error()}
}

// HTTPHandler serves POST /exchange and GET /healthz.
func (s *Server) HTTPHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		case authority.ExchangePath:
			if !ctx.IsPost() {
				ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
				return
			}
			ctx.SetContentType("text/plain; charset=utf-8")
			req, err := authority.DecodeRequest(ctx.PostBody())
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusBadRequest)
				ctx.SetBody(authority.EncodeResponse(authority.Response{Error: err.Error()}))
				return
			}
			// RequestCtx implements context.Context
			ctx.SetBody(authority.EncodeResponse(s.Handle(ctx, req)))
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}

// WSHandler upgrades to a websocket and answers one response frame per request frame.
func (s *Server) WSHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{CompressionMode: websocket.CompressionNoContextTakeover})
		if err != nil {
			s.log.Warn("authority_ws_accept_error", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusInternalError, "closing")

		ctx := r.Context()
		for {
			typ, raw, err := conn.Read(ctx)
			if err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
					conn.Close(websocket.StatusNormalClosure, "")
				}
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			var resp authority.Response
			if req, derr := authority.DecodeRequest(raw); derr != nil {
				resp = authority.Response{Error: derr.Error()}
			} else {
				resp = s.Handle(ctx, req)
			}
			if err := conn.Write(ctx, websocket.MessageText, authority.EncodeResponse(resp)); err != nil {
				return
			}
		}
	})
}

// Serve runs the HTTP exchange on httpLn and the websocket endpoint on wsLn
// (when non-nil) until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, httpLn, wsLn net.Listener) error {
	fast := &fasthttp.Server{Handler: s.HTTPHandler(), Name: "instant-chess-authority", ReadTimeout: 10 * time.Second}
	errCh := make(chan error, 2)
	go func() { errCh <- fast.Serve(httpLn) }()

	var wsSrv *http.Server
	if wsLn != nil {
		mux := http.NewServeMux()
		mux.Handle("/ws", s.WSHandler())
		wsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() { errCh <- wsSrv.Serve(wsLn) }()
	}
	s.log.Info("authority_listen", zap.String("http", httpLn.Addr().String()))

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = fast.ShutdownWithContext(shutdownCtx)
	if wsSrv != nil {
		_ = wsSrv.Shutdown(shutdownCtx)
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}
