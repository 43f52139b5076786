package cli

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/instant-chess/internal/authority/server"
	"github.com/park285/instant-chess/internal/config"
	"github.com/park285/instant-chess/internal/obslog"
)

// instant-chess serve
func Serve() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a session authority backed by redis",
		Args:  cobra.NoArgs,
		Long: heredoc.Doc(`serve hosts the authority that clients reach through
			AUTHORITY_URL (POST /exchange) and AUTHORITY_WS_URL (/ws).

			REDIS_URL is required and holds live games. When DATABASE_URL
			is set, finished games are stored in postgres with their PGN.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.AppConfig) error {
	store, err := server.NewStore(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.DatabaseURL != "" {
		repo, err := server.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer repo.Close()
		store.AttachResults(repo)
	}

	httpLn, err := net.Listen("tcp", cfg.AuthorityListen)
	if err != nil {
		return err
	}
	var wsLn net.Listener
	if cfg.AuthorityWSListen != "" {
		if wsLn, err = net.Listen("tcp", cfg.AuthorityWSListen); err != nil {
			_ = httpLn.Close()
			return err
		}
		obslog.Tag("server").Info("authority_ws_listen", zap.String("addr", wsLn.Addr().String()))
	}
	return server.New(store).Serve(ctx, httpLn, wsLn)
}
