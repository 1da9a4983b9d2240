package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agenthands/examina/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer closeEngine(cmd, e)

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		return server.NewServer(e, logger.Named("http")).Run(ctx, addr, cfg.Server.Mode)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: configured)")
}
