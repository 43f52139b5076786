package cli

import (
	"errors"
	"time"

	"github.com/park285/instant-chess/internal/authority"
	"github.com/park285/instant-chess/internal/config"
	"github.com/park285/instant-chess/internal/obslog"
	"github.com/park285/instant-chess/internal/session"
)

// gateway builds the authority client stack for cfg. It returns nil for an
// offline configuration; the closer is always safe to call.
func gateway(cfg *config.AppConfig) (*authority.Gateway, func(), error) {
	noop := func() {}
	if cfg.Offline() {
		return nil, noop, nil
	}

	mode := cfg.AuthorityTransport
	if mode == config.TransportAuto && cfg.AuthorityWSURL == "" {
		mode = config.TransportHTTP
	}
	if mode == config.TransportHTTP && cfg.AuthorityURL == "" {
		return nil, noop, errors.New("AUTHORITY_URL is required for the http transport")
	}

	var client *authority.Client
	if cfg.AuthorityURL != "" {
		client = authority.NewClient(cfg.AuthorityURL,
			authority.WithTimeout(cfg.RequestTimeout),
			authority.WithMaxConnsPerHost(4),
			// The connector's attempt budget is the only retry layer for bring-up.
			authority.WithRetry(1),
		)
	}
	var ws *authority.WSClient
	if cfg.AuthorityWSURL != "" && mode != config.TransportHTTP {
		ws = authority.NewWSClient(cfg.AuthorityWSURL)
	}

	t := authority.NewTransport(mode, client, ws, obslog.Tag("server"))
	closer := func() {
		if ws != nil {
			_ = ws.Close()
		}
	}
	return authority.NewGateway(t), closer, nil
}

// sessionAuthority avoids handing the connector a typed nil.
func sessionAuthority(gw *authority.Gateway) session.Authority {
	if gw == nil {
		return nil
	}
	return gw
}

func authorityName(cfg *config.AppConfig) string {
	if cfg.AuthorityURL != "" {
		return cfg.AuthorityURL
	}
	return cfg.AuthorityWSURL
}

// rematchDelay is how long a finished offline game stays on screen.
const rematchDelay = 3 * time.Second
