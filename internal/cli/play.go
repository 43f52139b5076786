package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/instant-chess/internal/adapter/chesspresenter"
	"github.com/park285/instant-chess/internal/chess"
	"github.com/park285/instant-chess/internal/config"
	"github.com/park285/instant-chess/internal/coordinator"
	"github.com/park285/instant-chess/internal/msgcat"
	"github.com/park285/instant-chess/internal/obslog"
	"github.com/park285/instant-chess/internal/opponent"
	"github.com/park285/instant-chess/internal/rules"
	"github.com/park285/instant-chess/internal/session"
)

// instant-chess play
func Play() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a game in the terminal",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`play connects to the configured authority and starts or
			resumes the game. Without an authority, or when it cannot be
			reached, the game is played offline with a random colour.

			Enter moves in coordinate form (e2e4, e7e8q). "level <1-10>"
			or "thermal" changes the difficulty of a local opponent for
			its next reply, and "quit" leaves the game.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("opponent"); v != "" {
				cfg.Opponent = v
			}
			if v, _ := cmd.Flags().GetString("difficulty"); v != "" {
				d, err := chess.ParseDifficulty(v)
				if err != nil {
					return err
				}
				cfg.Difficulty = d
			}
			messages, _ := cmd.Flags().GetString("messages")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPlay(ctx, cfg, messages, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("opponent", "", "Opponent: a player id, stockfish or random")
	cmd.Flags().String("difficulty", "", "Opponent difficulty: 1-10 or thermal")
	cmd.Flags().String("messages", "", "Directory of YAML message overrides")
	return cmd
}

func runPlay(ctx context.Context, cfg *config.AppConfig, messagesDir string, in io.Reader, out io.Writer) error {
	cat, err := msgcat.New(messagesDir)
	if err != nil {
		return err
	}
	rs := rules.NewStandard()
	opp := opponent.Parse(cfg.Opponent)

	var adapter opponent.EngineAdapter
	standin := opponent.Parse("random")
	switch {
	case opp.Kind == opponent.LocalEngine && cfg.StockfishPath == "":
		obslog.Tag("stockfish").Warn("stockfish_path_unset", zap.String("fallback", "random"))
	case opp.Kind == opponent.LocalEngine:
		eng, err := startEngine(cfg)
		if err != nil {
			return fmt.Errorf("start stockfish: %w", err)
		}
		defer eng.Close()
		adapter = eng
	case opp.Kind == opponent.Remote && cfg.StockfishPath != "":
		eng, err := startEngine(cfg)
		if err != nil {
			obslog.Tag("stockfish").Warn("standin_engine_unavailable", zap.Error(err))
			break
		}
		defer eng.Close()
		adapter = eng
		standin = opponent.Parse("stockfish")
	}

	// Machine replies never reach the authority, so only remote players get a session.
	var auth session.Authority
	if !opp.Machine() {
		gw, closeGateway, err := gateway(cfg)
		if err != nil {
			return err
		}
		defer closeGateway()
		auth = sessionAuthority(gw)
	}

	f := chesspresenter.NewFormatter(cat)
	send := func(m string) error {
		_, err := fmt.Fprintln(out, m)
		return err
	}
	pres := chesspresenter.NewPresenter(f, rs, opponentLabel(opp), send, chesspresenter.WithRematchNotice(rematchDelay))

	self := session.Identity{
		ID:          cfg.PlayerID,
		DisplayName: cfg.PlayerName,
		AvatarRef:   cfg.PlayerAvatar,
		Rating:      cfg.PlayerRating,
	}
	c := coordinator.New(rs,
		session.NewConnector(auth, session.WithMaxAttempts(cfg.SessionMaxAttempts)),
		opponent.NewResolver(rs, adapter),
		pres,
		coordinator.Config{
			Self:          self,
			Opponent:      opp,
			Standin:       standin,
			GameRef:       cfg.GameRef,
			Difficulty:    cfg.Difficulty,
			PollInterval:  cfg.PollInterval,
			NotifyTimeout: cfg.RequestTimeout,
			RematchDelay:  rematchDelay,
		},
	)
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()
	pres.Notice(f.Session(c.Color(), authorityName(cfg), c.Game(), opponentLabel(c.Opponent())))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleInput(ctx, c, f, pres, line); quit {
				return nil
			}
		}
	}
}

// handleInput applies one line of player input and reports whether to quit.
func handleInput(ctx context.Context, c *coordinator.Coordinator, f *chesspresenter.Formatter, pres *chesspresenter.Presenter, line string) bool {
	input := strings.ToLower(strings.TrimSpace(line))
	switch {
	case input == "":
		return false
	case input == "quit" || input == "exit":
		return true
	case input == "thermal" || strings.HasPrefix(input, "level"):
		d, err := chess.ParseDifficulty(strings.ReplaceAll(input, " ", ""))
		if err != nil {
			pres.Notice(f.Unknown(line))
			return false
		}
		c.SetDifficulty(d)
		pres.Notice(f.DifficultySet(d))
		return false
	}

	mv, err := rules.ParseMove(input)
	if err != nil {
		pres.Notice(f.Unknown(line))
		return false
	}
	if err := c.SubmitLocalMove(ctx, mv); err != nil {
		if !errors.Is(err, coordinator.ErrIllegalMove) {
			obslog.Tag("ui").Debug("move_rejected", zap.String("move", input), zap.Error(err))
		}
		pres.Notice(f.Rejected(input, err))
	}
	return false
}

func startEngine(cfg *config.AppConfig) (*chess.Engine, error) {
	return chess.NewEngine(cfg.StockfishPath, chess.EngineOptions{
		Threads:      1,
		HashMB:       16,
		Capacity:     1,
		ReplyTimeout: cfg.EngineReplyTimeout,
	})
}

func opponentLabel(o opponent.Opponent) string {
	if o.Identity.DisplayName != "" {
		return o.Identity.DisplayName
	}
	return o.Identity.ID
}
