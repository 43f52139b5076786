package cli

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/park285/instant-chess/internal/obslog"
)

const version = "v0.1.0"

func Root() *cobra.Command {
	root := &cobra.Command{
		Use:  "instant-chess",
		Args: cobra.NoArgs,
		Long: heredoc.Doc(`instant-chess plays a game of chess in the terminal, against
			a remote player through a session authority or locally against
			stockfish or a random mover.

			Settings come from $XDG_CONFIG_HOME/instant-chess/config.yaml
			(or INSTANT_CHESS_CONFIG) and are overridden by the environment.`),

		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := obslog.InitFromEnv(); err != nil {
				return err
			}
			if tags, _ := cmd.Flags().GetString("log-tags"); tags != "" {
				obslog.SetTags(tags)
			}
			return nil
		},
	}

	root.PersistentFlags().String("log-tags", "", "Comma separated log tags to show at debug level (server, server_tick, stockfish, ui, *)")

	root.Version = version
	root.SetVersionTemplate(version + "\n")

	root.AddCommand(Play())
	root.AddCommand(Probe())
	root.AddCommand(Serve())

	return root
}
