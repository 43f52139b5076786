package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/park285/instant-chess/internal/chess"
)

const (
	TransportHTTP = "http"
	TransportWS   = "ws"
	TransportAuto = "auto"

	OpponentStockfish = "stockfish"
	OpponentRandom    = "random"

	configFileRel = "instant-chess/config.yaml"
)

type AppConfig struct {
	AuthorityURL       string
	AuthorityTransport string
	AuthorityWSURL     string

	PlayerID     string
	PlayerName   string
	PlayerAvatar string
	PlayerRating int

	GameRef    string
	Opponent   string
	Difficulty chess.Difficulty

	SessionMaxAttempts int
	PollInterval       time.Duration
	RequestTimeout     time.Duration

	StockfishPath      string
	EngineReplyTimeout time.Duration

	// authority server
	AuthorityListen   string
	AuthorityWSListen string
	RedisURL          string
	DatabaseURL       string

	// File is the config file that was merged, empty when none was found.
	File string
}

// Offline reports whether no authority endpoint is configured.
func (c *AppConfig) Offline() bool {
	return c.AuthorityURL == "" && c.AuthorityWSURL == ""
}

// Load merges defaults, the optional YAML file and the environment, in that order.
func Load() (*AppConfig, error) {
	values := map[string]string{}

	path, err := locateFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := readFile(path, values); err != nil {
			return nil, err
		}
	}
	for _, key := range knownKeys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			values[key] = v
		}
	}

	cfg, err := build(values)
	if err != nil {
		return nil, err
	}
	cfg.File = path
	return cfg, nil
}

var knownKeys = []string{
	"AUTHORITY_URL", "AUTHORITY_TRANSPORT", "AUTHORITY_WS_URL",
	"PLAYER_ID", "PLAYER_NAME", "PLAYER_AVATAR", "PLAYER_RATING",
	"GAME_REF", "OPPONENT", "DIFFICULTY",
	"SESSION_MAX_ATTEMPTS", "POLL_INTERVAL", "REQUEST_TIMEOUT",
	"STOCKFISH_PATH", "ENGINE_REPLY_TIMEOUT",
	"AUTHORITY_LISTEN", "AUTHORITY_WS_LISTEN", "REDIS_URL", "DATABASE_URL",
}

func locateFile() (string, error) {
	if p := strings.TrimSpace(os.Getenv("INSTANT_CHESS_CONFIG")); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return p, nil
	}
	p, err := xdg.SearchConfigFile(configFileRel)
	if err != nil {
		// no file is fine
		return "", nil
	}
	return p, nil
}

func readFile(path string, into map[string]string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var doc map[string]string
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	for k, v := range doc {
		key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(k), "-", "_"))
		if v = strings.TrimSpace(v); v != "" {
			into[key] = v
		}
	}
	return nil
}

func build(v map[string]string) (*AppConfig, error) {
	cfg := &AppConfig{
		AuthorityTransport: TransportHTTP,
		PlayerName:         "player",
		Opponent:           OpponentStockfish,
		Difficulty:         chess.Level(5),
		SessionMaxAttempts: 1,
		PollInterval:       time.Second,
		RequestTimeout:     5 * time.Second,
		AuthorityListen:    ":8080",
		AuthorityWSListen:  ":8081",
	}

	cfg.AuthorityURL = strings.TrimRight(v["AUTHORITY_URL"], "/")
	cfg.AuthorityWSURL = v["AUTHORITY_WS_URL"]
	if s := strings.ToLower(v["AUTHORITY_TRANSPORT"]); s != "" {
		switch s {
		case TransportHTTP, TransportWS, TransportAuto:
			cfg.AuthorityTransport = s
		default:
			return nil, fmt.Errorf("AUTHORITY_TRANSPORT must be http, ws or auto: %q", s)
		}
	}
	if cfg.AuthorityTransport == TransportWS && cfg.AuthorityWSURL == "" && cfg.AuthorityURL != "" {
		return nil, errors.New("AUTHORITY_WS_URL is required when AUTHORITY_TRANSPORT=ws")
	}

	cfg.PlayerID = v["PLAYER_ID"]
	if cfg.PlayerID == "" {
		cfg.PlayerID = uuid.NewString()
	}
	if s := v["PLAYER_NAME"]; s != "" {
		cfg.PlayerName = s
	}
	cfg.PlayerAvatar = v["PLAYER_AVATAR"]
	if s := v["PLAYER_RATING"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("PLAYER_RATING: %w", err)
		}
		cfg.PlayerRating = n
	}

	cfg.GameRef = v["GAME_REF"]
	if cfg.GameRef == "" {
		cfg.GameRef = uuid.NewString()
	}
	if s := v["OPPONENT"]; s != "" {
		cfg.Opponent = s
	}
	if s := v["DIFFICULTY"]; s != "" {
		d, err := chess.ParseDifficulty(s)
		if err != nil {
			return nil, err
		}
		cfg.Difficulty = d
	}

	if s := v["SESSION_MAX_ATTEMPTS"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("SESSION_MAX_ATTEMPTS must be a non-negative integer: %q", s)
		}
		cfg.SessionMaxAttempts = n
	}
	var err error
	if cfg.PollInterval, err = duration(v, "POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = duration(v, "REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.EngineReplyTimeout, err = duration(v, "ENGINE_REPLY_TIMEOUT", 0); err != nil {
		return nil, err
	}

	cfg.StockfishPath = v["STOCKFISH_PATH"]
	if s := v["AUTHORITY_LISTEN"]; s != "" {
		cfg.AuthorityListen = s
	}
	if s := v["AUTHORITY_WS_LISTEN"]; s != "" {
		cfg.AuthorityWSListen = s
	}
	cfg.RedisURL = v["REDIS_URL"]
	cfg.DatabaseURL = v["DATABASE_URL"]

	if cfg.PlayerID == cfg.Opponent {
		return nil, errors.New("OPPONENT must differ from PLAYER_ID")
	}
	return cfg, nil
}

// duration accepts Go duration strings or bare seconds.
func duration(v map[string]string, key string, def time.Duration) (time.Duration, error) {
	s := v[key]
	if s == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, s)
	}
	return d, nil
}
