package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/park285/instant-chess/internal/adapter/chesspresenter"
	"github.com/park285/instant-chess/internal/authority"
	"github.com/park285/instant-chess/internal/config"
	"github.com/park285/instant-chess/internal/msgcat"
)

// instant-chess probe
func Probe() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the authority with one handshake",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`probe sends AppStart and GameStateRequest for the configured
			player and game and prints each reply. With --start it also
			sends GameStart against the configured opponent.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			start, _ := cmd.Flags().GetBool("start")
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*cfg.RequestTimeout)
			defer cancel()
			return runProbe(ctx, cfg, start, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Bool("start", false, "Also send GameStart")
	return cmd
}

func runProbe(ctx context.Context, cfg *config.AppConfig, start bool, out io.Writer) error {
	gw, closeGateway, err := gateway(cfg)
	if err != nil {
		return err
	}
	defer closeGateway()
	if gw == nil {
		return errors.New("no authority configured: set AUTHORITY_URL or AUTHORITY_WS_URL")
	}
	cat, err := msgcat.New("")
	if err != nil {
		return err
	}
	f := chesspresenter.NewFormatter(cat)

	err = gw.AppStart(ctx, cfg.PlayerID, cfg.PlayerName)
	fmt.Fprintln(out, f.Probe(string(authority.KindAppStart), "", "", err))
	if err != nil {
		return err
	}

	snap, err := gw.GameState(ctx, cfg.PlayerID, cfg.GameRef)
	fmt.Fprintln(out, f.Probe(string(authority.KindGameStateRequest), snap.Colour, snap.FEN, err))
	if !start {
		if errors.Is(err, authority.ErrRejected) {
			// no game under this reference yet
			return nil
		}
		return err
	}

	snap, err = gw.StartGame(ctx, cfg.PlayerID, cfg.Opponent, cfg.GameRef)
	fmt.Fprintln(out, f.Probe(string(authority.KindGameStart), snap.Colour, snap.FEN, err))
	return err
}
