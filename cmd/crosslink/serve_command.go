package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crosslink/internal/api"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cron trigger, link reads and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.open()
			if err != nil {
				return err
			}
			if bind == "" {
				bind = eng.cfg.Paths.APIBind
			}
			server, err := api.NewServer(bind, api.Deps{
				Store:   eng.store,
				Syncer:  eng.orchestrator,
				Lookup:  eng.lookup,
				Metrics: eng.metrics,
				Token:   eng.cfg.Paths.APIToken,
				Logger:  eng.logger,
			})
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if err := server.Start(signalCtx); err != nil {
				return err
			}
			<-signalCtx.Done()
			server.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to paths.api_bind)")
	return cmd
}
