package authority

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Transport carries one request frame to the authority and returns its reply.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

const (
	ModeHTTP = "http"
	ModeWS   = "ws"
	ModeAuto = "auto"
)

// NewTransport picks a transport by mode. Auto prefers the websocket and falls
// back to HTTP once per request when the websocket call fails.
func NewTransport(mode string, c *Client, ws *WSClient, logger *zap.Logger) Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch mode {
	case ModeWS:
		return &wsTransport{ws: ws}
	case ModeAuto:
		return &autoTransport{ws: &wsTransport{ws: ws}, http: &httpTransport{c: c}, logger: logger}
	default:
		return &httpTransport{c: c}
	}
}

type httpTransport struct{ c *Client }

func (h *httpTransport) Do(ctx context.Context, req Request) (Response, error) {
	if h == nil || h.c == nil {
		return Response{}, errors.New("http transport not available")
	}
	return h.c.Do(ctx, req)
}

type wsTransport struct{ ws *WSClient }

func (w *wsTransport) Do(ctx context.Context, req Request) (Response, error) {
	if w == nil || w.ws == nil {
		return Response{}, errors.New("ws transport not available")
	}
	return w.ws.Do(ctx, req)
}

type autoTransport struct {
	ws     *wsTransport
	http   *httpTransport
	logger *zap.Logger
}

func (a *autoTransport) Do(ctx context.Context, req Request) (Response, error) {
	if a.ws != nil && a.ws.ws != nil && a.ws.ws.State() != WSStateFailed {
		resp, err := a.ws.Do(ctx, req)
		if err == nil {
			return resp, nil
		}
		a.logger.Warn("authority_transport_fallback", zap.String("kind", string(req.Kind)), zap.Error(err))
	}
	return a.http.Do(ctx, req)
}
