// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/amp-optimizer/internal/observability"
	"github.com/xkilldash9x/amp-optimizer/internal/pipeline"
	"github.com/xkilldash9x/amp-optimizer/internal/sanitize"
	"github.com/xkilldash9x/amp-optimizer/internal/server"
)

// newServeCmd creates the `serve` command, which hosts the optimizer over HTTP
// until the process receives SIGINT or SIGTERM.
func newServeCmd() *cobra.Command {
	var listenAddr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the optimizer over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.SetServerListenAddr(listenAddr)
			}

			logger := observability.GetLogger()
			p, err := pipeline.Build(cfg, logger)
			if err != nil {
				return err
			}

			blocks := sanitize.NewBlockProcessor(cfg.Sanitizer().HomeURL, logger)
			srv := server.New(cfg.Server(), p, logger, server.WithBlockProcessor(blocks))

			logger.Info("Serving optimizer",
				zap.String("listen_addr", cfg.Server().ListenAddr),
				zap.Strings("transformers", p.Transformers()),
			)
			return srv.Start(ctx)
		},
	}

	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Address to listen on (default from config)")
	return serveCmd
}
