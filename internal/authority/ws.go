package authority

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

type WSState int

const (
	WSStateDisconnected WSState = iota
	WSStateConnected
	WSStateFailed
)

// WSClient exchanges request frames over one websocket connection.
// Calls are serialized: each request waits for its response frame.
type WSClient struct {
	wsURL       string
	dialTimeout time.Duration
	httpClient  *http.Client

	mu    sync.Mutex
	conn  *websocket.Conn
	state WSState
}

func NewWSClient(wsURL string) *WSClient {
	return &WSClient{wsURL: wsURL, dialTimeout: 10 * time.Second}
}

// SetHTTPClient sets the client used for the handshake (httptest servers in tests).
func (w *WSClient) SetHTTPClient(c *http.Client) { w.httpClient = c }

func (w *WSClient) State() WSState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Connect dials eagerly; Do dials lazily when needed.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dialLocked(ctx)
}

func (w *WSClient) dialLocked(ctx context.Context) error {
	if w.conn != nil {
		return nil
	}
	if w.wsURL == "" {
		return errors.New("ws url not configured")
	}
	dialCtx, cancel := context.WithTimeout(ctx, w.dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, w.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPClient:      w.httpClient,
	})
	if err != nil {
		w.state = WSStateFailed
		return fmt.Errorf("ws dial: %w", err)
	}
	w.conn = conn
	w.state = WSStateConnected
	return nil
}

func (w *WSClient) Do(ctx context.Context, in Request) (Response, error) {
	payload, err := EncodeRequest(in)
	if err != nil {
		return Response{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.dialLocked(ctx); err != nil {
		return Response{}, err
	}

	ioCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ioCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := w.conn.Write(ioCtx, websocket.MessageText, payload); err != nil {
		w.dropLocked(websocket.StatusGoingAway, "write failure")
		return Response{}, fmt.Errorf("ws write: %w", err)
	}
	_, raw, err := w.conn.Read(ioCtx)
	if err != nil {
		w.dropLocked(websocket.StatusGoingAway, "read failure")
		return Response{}, fmt.Errorf("ws read: %w", err)
	}
	return DecodeResponse(raw)
}

func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close(websocket.StatusNormalClosure, "close")
	w.conn = nil
	w.state = WSStateDisconnected
	return err
}

func (w *WSClient) dropLocked(code websocket.StatusCode, reason string) {
	if w.conn == nil {
		return
	}
	_ = w.conn.Close(code, reason)
	w.conn = nil
	w.state = WSStateDisconnected
}
